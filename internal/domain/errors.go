package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrNoContentLength  = errors.New("content length unavailable")
	ErrUnsafePath       = errors.New("archive entry escapes destination")
	ErrRunNotFound      = errors.New("run not found")
)

// SizeProbeError means an entry's expected size could not be determined.
// It degrades to a zero-size estimate and never fails the entry.
type SizeProbeError struct {
	URL string
	Err error
}

func (e *SizeProbeError) Error() string {
	return fmt.Sprintf("probe size of %s: %v", e.URL, e.Err)
}

func (e *SizeProbeError) Unwrap() error { return e.Err }

// FetchError is a network or local write failure during download.
type FetchError struct {
	Name string
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UnpackError is a decode or extraction failure for an archive.
type UnpackError struct {
	Archive string
	Err     error
}

func (e *UnpackError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Archive, e.Err)
}

func (e *UnpackError) Unwrap() error { return e.Err }

// ConfigError is a missing or malformed configuration. It is fatal.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
