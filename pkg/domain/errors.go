package domain

import "fmt"

// FetchError is a transient failure to retrieve the page: transport error, timeout or non-2xx status.
// The cycle is skipped and the page is fetched again on the next one.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports page content which can't be turned into a snapshot
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NotifyError reports a failed webhook delivery. Not retried.
type NotifyError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *NotifyError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook status %d: %v, response: %q", e.StatusCode, e.Err, e.Body)
	}
	return fmt.Sprintf("webhook: %v", e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }
