// Package watcher runs the poll loop: fetch the page, extract text, match keywords,
// check for new content and send an alert.
//
// Cycles run strictly one after another. The next cycle is scheduled after the previous one
// completes, so a slow fetch delays the schedule instead of overlapping with the next check.
// Any cycle failure is logged and the loop goes on, the page is checked again after the interval.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/pagewatch/pkg/domain"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher
//go:generate moq -out mocks/extractor.go -pkg mocks -skip-ensure -fmt goimports . Extractor
//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier

// DefaultInterval between the end of one cycle and the start of the next one
const DefaultInterval = 300 * time.Second

// Fetcher retrieves raw page
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.RawPage, error)
}

// Extractor converts raw page to snapshot
type Extractor interface {
	Extract(page *domain.RawPage) (*domain.PageSnapshot, error)
}

// Matcher finds keywords in text
type Matcher interface {
	Match(text string) []string
}

// Tracker decides if matched content is new
type Tracker interface {
	ShouldNotify(snap domain.PageSnapshot, match domain.MatchResult) bool
	Last() domain.Fingerprint
}

// Notifier sends alerts
type Notifier interface {
	Send(ctx context.Context, alert domain.Alert) error
}

// Outcome of a single poll cycle
type Outcome string

// enum of cycle outcomes
const (
	OutcomeFetchFailed  Outcome = "fetch_failed"
	OutcomeParseFailed  Outcome = "parse_failed"
	OutcomeNoMatch      Outcome = "no_match"
	OutcomeUnchanged    Outcome = "unchanged"
	OutcomeNotified     Outcome = "notified"
	OutcomeNotifyFailed Outcome = "notify_failed"
	OutcomeFailed       Outcome = "failed" // unexpected failure, e.g. panic in a collaborator
)

// Params for New
type Params struct {
	Fetcher   Fetcher
	Extractor Extractor
	Matcher   Matcher
	Tracker   Tracker
	Notifier  Notifier
	URL       string
	Interval  time.Duration
}

// Stats of the watcher run, for status reporting
type Stats struct {
	Cycles          int64              `json:"cycles"`
	Notifications   int64              `json:"notifications"`
	Failures        int64              `json:"failures"`
	LastCheck       time.Time          `json:"last_check"`
	LastOutcome     Outcome            `json:"last_outcome,omitempty"`
	LastError       string             `json:"last_error,omitempty"`
	LastKeywords    []string           `json:"last_keywords,omitempty"`
	LastNotified    time.Time          `json:"last_notified"`
	LastFingerprint domain.Fingerprint `json:"last_fingerprint,omitempty"`
}

// Watcher drives poll cycles for a single page
type Watcher struct {
	fetcher   Fetcher
	extractor Extractor
	matcher   Matcher
	tracker   Tracker
	notifier  Notifier
	url       string
	interval  time.Duration

	mu    sync.Mutex // guards stats, read by status server
	stats Stats
}

// New makes a watcher. Interval defaults to DefaultInterval.
func New(p Params) *Watcher {
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	return &Watcher{
		fetcher:   p.Fetcher,
		extractor: p.Extractor,
		matcher:   p.Matcher,
		tracker:   p.Tracker,
		notifier:  p.Notifier,
		url:       p.URL,
		interval:  p.Interval,
	}
}

// Run checks the page immediately and then every interval after the previous check completes.
// Blocks until ctx is canceled, always returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	lgr.Printf("[INFO] start watching %s, interval %v", w.url, w.interval)
	for {
		if ctx.Err() != nil {
			break
		}
		w.cycle(ctx)

		timer := time.NewTimer(w.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			lgr.Printf("[INFO] watcher for %s stopped", w.url)
			return nil
		case <-timer.C:
		}
	}
	lgr.Printf("[INFO] watcher for %s stopped", w.url)
	return nil
}

// cycle runs a single check and logs its failure
func (w *Watcher) cycle(ctx context.Context) {
	_, err := w.Check(ctx)
	if err == nil {
		return
	}

	var fetchErr *domain.FetchError
	var parseErr *domain.ParseError
	var notifyErr *domain.NotifyError
	switch {
	case errors.As(err, &fetchErr):
		lgr.Printf("[WARN] can't fetch page, next try in %v: %v", w.interval, err)
	case errors.As(err, &parseErr):
		lgr.Printf("[WARN] can't parse page, next try in %v: %v", w.interval, err)
	case errors.As(err, &notifyErr):
		lgr.Printf("[ERROR] notification not delivered and won't be re-sent for this content: %v", err)
	default:
		lgr.Printf("[ERROR] check failed: %v", err)
	}
}

// Check runs one fetch-extract-match-notify cycle and returns its outcome.
// Errors wrap *domain.FetchError, *domain.ParseError or *domain.NotifyError.
// A panic in any collaborator is recovered and reported as OutcomeFailed.
func (w *Watcher) Check(ctx context.Context) (outcome Outcome, err error) {
	var keywords []string
	defer func() {
		if r := recover(); r != nil {
			outcome, err = OutcomeFailed, fmt.Errorf("check panicked: %v", r)
		}
		w.record(outcome, keywords, err)
	}()

	page, err := w.fetcher.Fetch(ctx, w.url)
	if err != nil {
		return OutcomeFetchFailed, fmt.Errorf("fetch page: %w", err)
	}

	snap, err := w.extractor.Extract(page)
	if err != nil {
		return OutcomeParseFailed, fmt.Errorf("extract page: %w", err)
	}

	match := domain.MatchResult{Keywords: w.matcher.Match(snap.BodyText), Snapshot: *snap}
	keywords = match.Keywords
	if !match.Found() {
		lgr.Printf("[INFO] no matches found on %s", w.url)
		return OutcomeNoMatch, nil
	}

	if !w.tracker.ShouldNotify(*snap, match) {
		lgr.Printf("[INFO] matches found: %s, no changes, notification skipped", strings.Join(keywords, ", "))
		return OutcomeUnchanged, nil
	}

	lgr.Printf("[INFO] matches found: %s (new content)", strings.Join(keywords, ", "))
	if sendErr := w.notifier.Send(ctx, domain.NewAlert(match, time.Now())); sendErr != nil {
		return OutcomeNotifyFailed, fmt.Errorf("send notification: %w", sendErr)
	}
	lgr.Printf("[INFO] notification sent for %q", snap.Title)
	return OutcomeNotified, nil
}

// Stats returns a copy of current run statistics
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	res := w.stats
	res.LastKeywords = append([]string(nil), w.stats.LastKeywords...)
	return res
}

func (w *Watcher) record(outcome Outcome, keywords []string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Cycles++
	w.stats.LastCheck = time.Now()
	w.stats.LastOutcome = outcome
	w.stats.LastError = ""
	if err != nil {
		w.stats.Failures++
		w.stats.LastError = err.Error()
	}
	if outcome == OutcomeNotified {
		w.stats.Notifications++
		w.stats.LastNotified = w.stats.LastCheck
	}
	switch outcome {
	case OutcomeNoMatch, OutcomeUnchanged, OutcomeNotified, OutcomeNotifyFailed:
		w.stats.LastKeywords = append([]string(nil), keywords...)
	}
	if w.tracker != nil {
		w.stats.LastFingerprint = w.tracker.Last()
	}
}
