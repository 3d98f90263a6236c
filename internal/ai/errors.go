// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a backend failure.
type Kind int

const (
	// KindBackend is a terminal failure inside the backend or its response.
	KindBackend Kind = iota
	// KindInvalidInput means the backend rejected the image or prompt.
	KindInvalidInput
	// KindUnavailable is a transient capacity or connectivity problem.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnavailable:
		return "unavailable"
	default:
		return "backend"
	}
}

// Error is returned by every Transformer.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ai: %s: %s (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ai: %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindUnavailable }

// IsRetryable reports whether err wraps a retry-eligible *Error.
func IsRetryable(err error) bool {
	var aerr *Error
	return errors.As(err, &aerr) && aerr.Retryable()
}

// statusKind maps an HTTP status from a backend to a failure kind.
// 501 is terminal: the backend does not support the operation at all.
func statusKind(status int) Kind {
	switch {
	case status == http.StatusBadRequest,
		status == http.StatusRequestEntityTooLarge,
		status == http.StatusUnsupportedMediaType,
		status == http.StatusUnprocessableEntity:
		return KindInvalidInput
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests:
		return KindUnavailable
	case status == http.StatusNotImplemented:
		return KindBackend
	case status >= 500:
		return KindUnavailable
	default:
		return KindBackend
	}
}

// statusError builds an *Error from a non-2xx backend response.
func statusError(provider string, status int, msg string) *Error {
	return &Error{
		Provider:   provider,
		Kind:       statusKind(status),
		StatusCode: status,
		Err:        errors.New(msg),
	}
}

// transportError wraps an error that occurred before a response arrived.
// Timeouts and network failures are transient; caller cancellation is not.
func transportError(provider string, err error) *Error {
	kind := KindUnavailable
	if errors.Is(err, context.Canceled) {
		kind = KindBackend
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		kind = KindUnavailable
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}
