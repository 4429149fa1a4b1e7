package worker

import (
	"errors"
	"fmt"
)

var errEmptyPayload = errors.New("empty payload")

// PayloadParseError marks a malformed push payload. It is recovered
// locally by falling back to default notification content and is only
// logged, never surfaced to the user.
type PayloadParseError struct {
	Err error
}

func (e *PayloadParseError) Error() string {
	return fmt.Sprintf("payload parse failed: %v", e.Err)
}

func (e *PayloadParseError) Unwrap() error {
	return e.Err
}

// DisplayError marks a refused notification display. The handler makes
// one fallback attempt with minimal content, then logs and drops.
type DisplayError struct {
	Tag string
	Err error
}

func (e *DisplayError) Error() string {
	return fmt.Sprintf("display failed for tag %s: %v", e.Tag, e.Err)
}

func (e *DisplayError) Unwrap() error {
	return e.Err
}
