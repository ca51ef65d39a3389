// Package tracker decides whether a matched page snapshot is new enough to be reported.
//
// The tracker remembers the fingerprint of the last content it approved and rejects
// snapshots with the same fingerprint. The state is updated as soon as a snapshot is
// approved, before the notification is sent, so a failed send is not repeated for the
// same content. It is not safe for concurrent use, the poll loop is its only caller.
package tracker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/umputun/pagewatch/pkg/domain"
)

// Policy defines which part of the snapshot goes into the fingerprint
type Policy string

// enum of fingerprint policies
const (
	PolicyFull    Policy = "full"    // title and the whole body text
	PolicyContext Policy = "context" // text around each matched keyword
	PolicyTitle   Policy = "title"   // page title only
)

// DefaultWindow is the number of runes taken on each side of a keyword for PolicyContext
const DefaultWindow = 1000

// ParsePolicy converts string to Policy, empty string means PolicyFull
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyFull, nil
	case PolicyFull, PolicyContext, PolicyTitle:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fingerprint policy %q", s)
	}
}

// State is the dedup state kept between poll cycles, in memory only
type State struct {
	LastFingerprint domain.Fingerprint
	NotifiedAt      time.Time
}

// Options for the tracker
type Options struct {
	Policy Policy
	Window int
	Now    func() time.Time
}

// Tracker holds the last notified fingerprint and approves new content
type Tracker struct {
	state  *State
	policy Policy
	window int
	now    func() time.Time
}

// New makes a tracker working on the given state. Nil state starts empty.
func New(state *State, opts Options) *Tracker {
	if state == nil {
		state = &State{}
	}
	if opts.Policy == "" {
		opts.Policy = PolicyFull
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{state: state, policy: opts.Policy, window: opts.Window, now: opts.Now}
}

// ShouldNotify returns true if match has keywords and the snapshot's fingerprint differs from
// the last notified one. On true the state is updated immediately.
func (t *Tracker) ShouldNotify(snap domain.PageSnapshot, match domain.MatchResult) bool {
	if !match.Found() {
		return false
	}
	fp := t.Fingerprint(snap, match)
	if fp == t.state.LastFingerprint {
		return false
	}
	t.state.LastFingerprint = fp
	t.state.NotifiedAt = t.now()
	return true
}

// Last returns the last notified fingerprint, empty if nothing was notified yet
func (t *Tracker) Last() domain.Fingerprint {
	return t.state.LastFingerprint
}

// Fingerprint derives the content fingerprint of the snapshot according to the policy
func (t *Tracker) Fingerprint(snap domain.PageSnapshot, match domain.MatchResult) domain.Fingerprint {
	switch t.policy {
	case PolicyTitle:
		return hash(snap.Title)
	case PolicyContext:
		return hash(keywordContext(snap.BodyText, match.Keywords, t.window))
	default:
		return hash(snap.Title + "\n" + snap.BodyText)
	}
}

// keywordContext collects lowercased keyword and the text around its first occurrence,
// keywords sorted to make result independent of match order
func keywordContext(text string, keywords []string, window int) string {
	low := strings.ToLower(text)
	runes := []rune(low)

	kws := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kws = append(kws, strings.ToLower(kw))
	}
	slices.Sort(kws)
	kws = slices.Compact(kws)

	parts := make([]string, 0, len(kws)*2)
	for _, kw := range kws {
		idx := strings.Index(low, kw)
		if idx < 0 {
			continue
		}
		pos := utf8.RuneCountInString(low[:idx])
		start := max(0, pos-window)
		end := min(len(runes), pos+utf8.RuneCountInString(kw)+window)
		parts = append(parts, kw, string(runes[start:end]))
	}
	return strings.Join(parts, "\n")
}

func hash(s string) domain.Fingerprint {
	sum := sha256.Sum256([]byte(s))
	return domain.Fingerprint(hex.EncodeToString(sum[:]))
}
