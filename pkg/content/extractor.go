// Package content fetches the watched page and turns it into a normalized snapshot.
package content

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"

	"github.com/umputun/pagewatch/pkg/domain"
)

// Mode defines how page body is converted to text
type Mode string

// enum of extraction modes
const (
	ModeAuto    Mode = "auto"    // feed if body is RSS/Atom/JSON feed, html otherwise
	ModeHTML    Mode = "html"    // all visible text of the page
	ModeArticle Mode = "article" // main content only, via trafilatura
	ModeFeed    Mode = "feed"    // feed items titles and descriptions
)

// ParseMode converts string to Mode, empty string means ModeAuto
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeHTML, ModeArticle, ModeFeed:
		return m, nil
	default:
		return "", fmt.Errorf("unknown extraction mode %q", s)
	}
}


// Extractor converts raw page into PageSnapshot
type Extractor struct {
	mode Mode
}

// NewExtractor makes an extractor for the given mode, empty mode is ModeAuto
func NewExtractor(mode Mode) *Extractor {
	if mode == "" {
		mode = ModeAuto
	}
	return &Extractor{mode: mode}
}

// Extract parses the page into title and normalized text. Failures returned as *domain.ParseError
func (e *Extractor) Extract(page *domain.RawPage) (*domain.PageSnapshot, error) {
	if page == nil {
		return nil, &domain.ParseError{Err: errors.New("nil page")}
	}
	if len(bytes.TrimSpace(page.Body)) == 0 {
		return nil, &domain.ParseError{URL: page.URL, Err: errors.New("empty body")}
	}

	var title, text string
	var err error
	switch e.resolveMode(page) {
	case ModeFeed:
		title, text, err = extractFeed(page)
	case ModeArticle:
		title, text, err = extractArticle(page)
	default:
		title, text, err = extractHTML(page)
	}
	if err != nil {
		return nil, &domain.ParseError{URL: page.URL, Err: err}
	}
	if text == "" {
		// valid page without visible text, nothing can match but it's not a parse failure
		lgr.Printf("[DEBUG] no text content on %s", page.URL)
	}
	if title == "" {
		title = page.URL
	}

	return &domain.PageSnapshot{
		Title:     title,
		URL:       page.URL,
		BodyText:  text,
		FetchedAt: page.FetchedAt,
	}, nil
}

func (e *Extractor) resolveMode(page *domain.RawPage) Mode {
	if e.mode != ModeAuto {
		return e.mode
	}
	ct := strings.ToLower(page.ContentType)
	if strings.Contains(ct, "rss") || strings.Contains(ct, "atom") || strings.Contains(ct, "feed+json") {
		return ModeFeed
	}
	if gofeed.DetectFeedType(bytes.NewReader(page.Body)) != gofeed.FeedTypeUnknown {
		return ModeFeed
	}
	return ModeHTML
}

// normalizeText trims every line and drops empty ones
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	res := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			res = append(res, line)
		}
	}
	return strings.Join(res, "\n")
}
