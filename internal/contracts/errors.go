package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is
var (
	ErrInvalidRange  = errors.New("invalid range")
	ErrTransport     = errors.New("transport failure")
	ErrFormat        = errors.New("unrecognized response format")
	ErrStreamDecode  = errors.New("stream decode failure")
	ErrFetchInFlight = errors.New("fetch already in flight")
)

// InvalidRangeError rejects a range before any network activity
type InvalidRangeError struct {
	Field   string
	Message string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid range: %s %s", e.Field, e.Message)
}

func (e *InvalidRangeError) Is(target error) bool {
	return target == ErrInvalidRange
}

// TransportError is returned once every fetch attempt has failed
type TransportError struct {
	Attempts   int
	StatusCode int // last HTTP status, 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport failure after %d attempts (last status %d): %v", e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport failure after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// FormatError means a payload matched no recognized shape
// or none of its observations validated. Not retried.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unrecognized response format: %s", e.Reason)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// StreamDecodeError describes a dropped stream message
type StreamDecodeError struct {
	Reason   string
	Upstream string // message from an upstream error frame, if any
}

func (e *StreamDecodeError) Error() string {
	if e.Upstream != "" {
		return fmt.Sprintf("stream error from upstream: %s", e.Upstream)
	}
	return fmt.Sprintf("stream decode failure: %s", e.Reason)
}

func (e *StreamDecodeError) Is(target error) bool {
	return target == ErrStreamDecode
}

// IsUpstream reports whether the frame was an explicit upstream error
func (e *StreamDecodeError) IsUpstream() bool {
	return e.Upstream != ""
}
