// Package extract turns pages and videos into recipes through an ordered set
// of fallback tiers.
package extract

import (
	"errors"
	"fmt"
)

// Kind classifies a terminal extraction failure.
type Kind string

const (
	KindInvalidURL                 Kind = "InvalidURL"
	KindFetchFailed                Kind = "FetchFailed"
	KindNoRecipeFound              Kind = "NoRecipeFound"
	KindIncompleteRecipe           Kind = "IncompleteRecipe"
	KindUpstreamServiceUnavailable Kind = "UpstreamServiceUnavailable"
	KindInternal                   Kind = "Internal"
)

// User-visible messages.
const (
	MsgURLRequired         = "URL is required"
	MsgInvalidURL          = "Invalid URL"
	MsgFetchFailed         = "Failed to fetch page"
	MsgNoRecipe            = "Could not extract recipe from this page"
	MsgIncomplete          = "Recipe data was found but appears to be incomplete."
	MsgVideoNotFound       = "Video not found"
	MsgVideoNoInstructions = "Could not find cooking instructions for this video"
	MsgVideoNotConfigured  = "YouTube API not configured"
	MsgVideoUnavailable    = "Video service is unavailable. Please try again later."
	MsgInternal            = "Failed to extract recipe"
)

// Error is a classified extraction failure. Message is safe to show to the
// caller; Err holds the diagnostic cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("extract: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Fail builds a classified error.
func Fail(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the user-visible message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return MsgInternal
}
