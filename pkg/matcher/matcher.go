// Package matcher finds configured keywords in page text.
package matcher

import "strings"

// Matcher checks text for a static list of keywords, case-insensitive.
// Safe for concurrent use, the keyword list never changes after New.
type Matcher struct {
	keywords []string
	lowered  []string
}

// New makes a Matcher for the given keywords. Blank keywords are dropped,
// duplicates (ignoring case) keep the first spelling and position.
func New(keywords []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		low := strings.ToLower(kw)
		if seen[low] {
			continue
		}
		seen[low] = true
		m.keywords = append(m.keywords, kw)
		m.lowered = append(m.lowered, low)
	}
	return m
}

// Match returns keywords found in text as substrings, in configured order.
// Returns nil if nothing matched.
func (m *Matcher) Match(text string) []string {
	if text == "" || len(m.keywords) == 0 {
		return nil
	}
	low := strings.ToLower(text)
	var res []string
	for i, kw := range m.lowered {
		if strings.Contains(low, kw) {
			res = append(res, m.keywords[i])
		}
	}
	return res
}

// Keywords returns a copy of configured keywords
func (m *Matcher) Keywords() []string {
	res := make([]string, len(m.keywords))
	copy(res, m.keywords)
	return res
}
