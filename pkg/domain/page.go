package domain

import "time"

// RawPage is the unparsed result of fetching the watched URL
type RawPage struct {
	URL         string
	ContentType string
	StatusCode  int
	Body        []byte
	Truncated   bool // body cut at the fetcher's size limit
	FetchedAt   time.Time
}

// PageSnapshot represents normalized page content produced by a single poll cycle
type PageSnapshot struct {
	Title     string
	URL       string
	BodyText  string
	FetchedAt time.Time
}

// Fingerprint identifies page content already seen, hex-encoded sha256
type Fingerprint string

// MatchResult holds keywords found in a snapshot
type MatchResult struct {
	Keywords []string
	Snapshot PageSnapshot
}

// Found returns true if at least one keyword matched
func (m MatchResult) Found() bool {
	return len(m.Keywords) > 0
}

// Alert is the message sent to the webhook for a new match
type Alert struct {
	Keywords   []string
	Title      string
	URL        string
	DetectedAt time.Time
}

// NewAlert makes alert from the match result
func NewAlert(m MatchResult, detectedAt time.Time) Alert {
	kws := make([]string, len(m.Keywords))
	copy(kws, m.Keywords)
	return Alert{
		Keywords:   kws,
		Title:      m.Snapshot.Title,
		URL:        m.Snapshot.URL,
		DetectedAt: detectedAt,
	}
}
