package content

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/markusmobius/go-trafilatura"

	"github.com/umputun/pagewatch/pkg/domain"
)

// extractArticle returns the main content of the page, skipping navigation and other boilerplate
func extractArticle(page *domain.RawPage) (title, text string, err error) {
	parsedURL, err := url.Parse(page.URL)
	if err != nil {
		return "", "", fmt.Errorf("parse URL: %w", err)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   false,
		IncludeImages:   false,
		IncludeLinks:    false,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	body, err := utf8Body(page)
	if err != nil {
		return "", "", err
	}
	result, err := trafilatura.Extract(body, opts)
	if err != nil {
		return "", "", fmt.Errorf("extract article: %w", err)
	}
	if result == nil {
		return "", "", errors.New("no article extracted")
	}

	title = strings.TrimSpace(result.Metadata.Title)
	if title == "" {
		// trafilatura may drop the title on pages without metadata
		if t, _, htmlErr := extractHTML(page); htmlErr == nil {
			title = t
		}
	}
	return title, normalizeText(result.ContentText), nil
}
