package content

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/umputun/pagewatch/pkg/domain"
)

var stripPolicy = bluemonday.StrictPolicy()

// extractFeed returns feed title and text made of item titles and descriptions
func extractFeed(page *domain.RawPage) (title, text string, err error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(page.Body))
	if err != nil {
		return "", "", fmt.Errorf("parse feed: %w", err)
	}

	var sb strings.Builder
	for _, item := range feed.Items {
		sb.WriteString(stripTags(item.Title))
		sb.WriteByte('\n')
		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		sb.WriteString(stripTags(desc))
		sb.WriteByte('\n')
	}

	return strings.TrimSpace(stripTags(feed.Title)), normalizeText(sb.String()), nil
}

// stripTags removes markup and decodes entities, block tags become line breaks
func stripTags(s string) string {
	if s == "" {
		return ""
	}
	s = strings.NewReplacer("<br>", "\n", "<br/>", "\n", "<br />", "\n", "</p>", "</p>\n").Replace(s)
	return html.UnescapeString(stripPolicy.Sanitize(s))
}
