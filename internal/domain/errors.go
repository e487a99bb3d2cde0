package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionActive = errors.New("live session already active")
	ErrChatBusy      = errors.New("chat request already in flight")
	ErrEmptyPrompt   = errors.New("empty prompt")

	ErrStartCancelled = errors.New("live session start cancelled")
)

// PermissionError means the capture device could not be opened.
type PermissionError struct {
	Device string
	Err    error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("audio capture %q unavailable: %v", e.Device, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// SessionError covers live session open and transport failures.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("live session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// DecodeError is returned for malformed inbound or encoded audio.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decoding audio: %s: %v", e.Reason, e.Err)
	}
	return "decoding audio: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RequestError wraps a failed text model call.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("text request failed: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

var (
	ErrNotLive   = errors.New("live session not open")
	ErrQueueFull = errors.New("outbound audio queue full")
)
