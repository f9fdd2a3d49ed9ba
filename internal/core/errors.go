// Package core holds error-kind definitions shared across the control plane
// components (sandbox, tool executor, provider router, engine).
package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a failure the way §7 of the design enumerates it, so
// callers can decide policy (retry, surface, cooldown) without string
// matching on error text.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindSandboxBlocked
	KindSandboxAsk
	KindTimeout
	KindSpawn
	KindCommandFailed
	KindIO
	KindProviderRateLimit
	KindProviderQuota
	KindProviderServerError
	KindProviderClientError
	KindParseError
	KindStateCorruption
)

func (k ErrorKind) String() string {
	switch k {
	case KindSandboxBlocked:
		return "SandboxBlocked"
	case KindSandboxAsk:
		return "SandboxAsk"
	case KindTimeout:
		return "Timeout"
	case KindSpawn:
		return "Spawn"
	case KindCommandFailed:
		return "CommandFailed"
	case KindIO:
		return "Io"
	case KindProviderRateLimit:
		return "ProviderRateLimit"
	case KindProviderQuota:
		return "ProviderQuota"
	case KindProviderServerError:
		return "ProviderServerError"
	case KindProviderClientError:
		return "ProviderClientError"
	case KindParseError:
		return "ParseError"
	case KindStateCorruption:
		return "StateCorruption"
	default:
		return "Unknown"
	}
}

// Error is a typed error carrying a Kind plus the wrapped cause.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error

	// Duration is populated for KindTimeout to report how long the
	// subprocess ran before being killed.
	Duration time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed Error.
func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a typed Error around an existing cause.
func Wrap(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Timeout builds a KindTimeout error carrying the elapsed duration.
func Timeout(msg string, d time.Duration) *Error {
	return &Error{Kind: KindTimeout, Msg: msg, Duration: d}
}

// KindOf extracts the ErrorKind of err, or KindUnknown if err is not (or does
// not wrap) a *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
