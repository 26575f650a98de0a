// Package models defines typed errors for collaborator calls.
//
// Each external collaborator (classifier, completion service, session store,
// messaging gateway) gets its own error type so the composer boundary can map
// failures to exactly one user-visible fallback string without catching
// unrelated errors.
package models

import (
	"errors"
	"fmt"
)

// CompletionErrorKind buckets completion-service failures into the classes
// that map to distinct user-facing apology strings.
type CompletionErrorKind string

const (
	// CompletionErrorAuth covers authentication and authorization failures.
	CompletionErrorAuth CompletionErrorKind = "auth"
	// CompletionErrorUnavailable covers rate limits, timeouts and transport
	// failures where the service could not be reached or was overloaded.
	CompletionErrorUnavailable CompletionErrorKind = "unavailable"
	// CompletionErrorOther covers everything else.
	CompletionErrorOther CompletionErrorKind = "other"
)

// CompletionError wraps a failure from the LLM completion service.
type CompletionError struct {
	Kind CompletionErrorKind
	Err  error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion service error (%s): %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// NewCompletionError wraps err with the given kind.
func NewCompletionError(kind CompletionErrorKind, err error) *CompletionError {
	return &CompletionError{Kind: kind, Err: err}
}

// CompletionKind extracts the failure class from an error chain.
// Non-completion errors report CompletionErrorOther.
func CompletionKind(err error) CompletionErrorKind {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return CompletionErrorOther
}

// ClassificationError wraps a failure of the intent classifier. It is kept
// distinct from CompletionError so the router can tell "could not classify"
// apart from "could not generate".
type ClassificationError struct {
	Err error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("intent classification failed: %v", e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

// StoreError wraps a failure of the session store. Callers treat any store
// error as "no pending image" rather than propagating it.
type StoreError struct {
	Op  string // get, set, delete, count
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("session store %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// DeliveryError wraps a failure to deliver a reply through the messaging
// gateway. Deliveries are not retried: reply tokens are single-use and
// short-lived, so a retry after failure cannot succeed.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("reply delivery failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
