package fetch

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse reports a successful pipeline run that yielded neither
// text nor bytes.
var ErrEmptyResponse = errors.New("fetch succeeded but produced no usable content")

// AllFailedError reports that every URL in a failover chain failed. It
// carries the last URL tried and its underlying error for diagnostics.
type AllFailedError struct {
	URL string
	Err error
}

func (e *AllFailedError) Error() string {
	return fmt.Sprintf("all endpoint urls failed, last %s: %v", e.URL, e.Err)
}

func (e *AllFailedError) Unwrap() error { return e.Err }

// DownloadError reports a failed indirection redownload. URL is the
// embedded URL whose discovery triggered the redownload.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("indirect download failed for %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }
