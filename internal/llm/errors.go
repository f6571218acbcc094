package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrReasoningTransport marks a failed call to the reasoning service.
	ErrReasoningTransport = errors.New("reasoning transport failure")

	// ErrReasoningParse marks a well-formed response that does not match
	// the expected structured shape.
	ErrReasoningParse = errors.New("reasoning parse failure")

	// ErrFatalAPI marks provider errors that retrying cannot fix
	// (credentials, billing, quota).
	ErrFatalAPI = errors.New("fatal API error")
)

var fatalMarkers = []string{
	"credit balance",
	"rate limit",
	"quota exceeded",
	"billing",
	"invalid api key",
	"authentication",
	"unauthorized",
	"401",
	"403",
}

// isFatalAPIError reports whether err looks like a credential, billing or
// quota problem.
func isFatalAPIError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range fatalMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// wrapFatalError tags fatal provider errors with ErrFatalAPI and passes
// everything else through unchanged.
func wrapFatalError(err error) error {
	if !isFatalAPIError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrFatalAPI, err)
}
