package client

import "fmt"

// PushError reports a non-success response to a push request. Pushes are safe
// to retry: the server deduplicates operations by id.
type PushError struct {
	StatusCode int
	Body       string
}

func (e *PushError) Error() string {
	return fmt.Sprintf("cannot push operations to the server: %d %s", e.StatusCode, e.Body)
}

// PullError reports a non-success response to a pull request. The table's
// watermark is left untouched, so a retry re-reads the same window.
type PullError struct {
	StatusCode int
}

func (e *PullError) Error() string {
	return fmt.Sprintf("cannot pull table from the server: %d", e.StatusCode)
}
