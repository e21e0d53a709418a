package scraper

import (
	"fmt"
	"strings"
)

// ConfigurationError is fatal and surfaced immediately: the job as described
// can never run (unknown pagination strategy, missing required selector
// group).
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// NoCandidateMatchedError reports that every candidate in a selector set was
// tried and failed. It carries the attempted selector strings and the last
// underlying failure so callers can see exactly what was looked for.
type NoCandidateMatchedError struct {
	Attempted []string
	Last      error
}

func (e *NoCandidateMatchedError) Error() string {
	msg := fmt.Sprintf("no selector candidate matched (%d tried)", len(e.Attempted))
	if len(e.Attempted) > 0 {
		msg += ": " + strings.Join(e.Attempted, ", ")
	}
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *NoCandidateMatchedError) Unwrap() error {
	return e.Last
}

// TableNotFoundError is the fatal form of a resolution failure: the table
// container never appeared, even after the one recovery re-navigation. It
// carries diagnostics for the page that was actually there.
type TableNotFoundError struct {
	Attempted      []string
	Snippet        string
	ScreenshotPath string
	Last           error
}

func (e *TableNotFoundError) Error() string {
	msg := "table container not found"
	if len(e.Attempted) > 0 {
		msg += ": tried " + strings.Join(e.Attempted, ", ")
	}
	if e.ScreenshotPath != "" {
		msg += " (screenshot: " + e.ScreenshotPath + ")"
	}
	if e.Snippet != "" {
		msg += "; page content: " + e.Snippet
	}
	return msg
}

func (e *TableNotFoundError) Unwrap() error {
	return e.Last
}
