package tractor

import "errors"

var (
	// ErrInvalidParameter is returned by the Session setters when a value
	// would break the time scale (non-positive tempo, zero sample rate etc.).
	// The previous value is always retained.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrResourceExhausted signals a soft failure: the operation completed,
	// but without the requested resource (e.g. no free MIDI tag).
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrEngineBinding is returned by Session.Open when either the audio or
	// the MIDI engine could not be opened.
	ErrEngineBinding = errors.New("engine binding failed")

	// ErrSessionClosed is returned for transport requests that need an open
	// session.
	ErrSessionClosed = errors.New("session is closed")
)
