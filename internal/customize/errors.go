// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package customize

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of a submission.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindGeneration
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindNotFound:
		return "not_found"
	case KindGeneration:
		return "generation_error"
	case KindPersistence:
		return "persistence_error"
	default:
		return "unknown_error"
	}
}

// Error is the only error type returned by Service.Submit. Message is safe
// to show to customers; Cause is for logs.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf returns the kind of a customization error, or 0 if err is not one.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return 0
}

func validationError(msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Cause: cause}
}

func notFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func generationError(retryable bool, cause error) *Error {
	msg := "The image could not be generated. Please try another photo or style."
	if retryable {
		msg = "The image service is busy. Please try again in a moment."
	}
	return &Error{Kind: KindGeneration, Message: msg, Retryable: retryable, Cause: cause}
}

func persistenceError(cause error) *Error {
	return &Error{Kind: KindPersistence, Message: "The generated image could not be saved. Please try again.", Cause: cause}
}
