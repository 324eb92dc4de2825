package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrInvalidWebhookSignature is returned when an inbound webhook HMAC does not match its body.
var ErrInvalidWebhookSignature = stderrors.New("invalid webhook signature")

// ErrEmptyCart is returned when checkout is attempted on a cart with no lines.
var ErrEmptyCart = stderrors.New("cart is empty")

// ErrRemoteUnavailable is returned when the remote commerce API cannot be reached or answers with a failure status
type ErrRemoteUnavailable struct {
	Op  string
	Err error
}

func (e *ErrRemoteUnavailable) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote unavailable: %s", e.Op)
	}
	return fmt.Sprintf("remote unavailable: %s: %v", e.Op, e.Err)
}

func (e *ErrRemoteUnavailable) Unwrap() error {
	return e.Err
}

// ErrRemoteValidation carries structured errors returned by the remote API
type ErrRemoteValidation struct {
	Messages []string
}

func (e *ErrRemoteValidation) Error() string {
	if len(e.Messages) == 0 {
		return "remote validation failed"
	}
	return "remote validation failed: " + strings.Join(e.Messages, "; ")
}

// ErrNotFound is returned when a resource is not found
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrConcurrentSync is returned when a full sync of the same kind is already queued
type ErrConcurrentSync struct {
	Kind string
}

func (e *ErrConcurrentSync) Error() string {
	return fmt.Sprintf("%s sync already in progress", e.Kind)
}

// ErrCheckoutRejected is returned when the remote refuses to create a checkout
type ErrCheckoutRejected struct {
	Message string
}

func (e *ErrCheckoutRejected) Error() string {
	if e.Message != "" {
		return "checkout rejected: " + e.Message
	}
	return "checkout rejected"
}

// ErrValidation is returned when validation fails
type ErrValidation struct {
	Message string
	Fields  map[string]string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return stderrors.As(err, &nf)
}

func IsRemoteUnavailable(err error) bool {
	var ru *ErrRemoteUnavailable
	return stderrors.As(err, &ru)
}

func IsValidation(err error) bool {
	var v *ErrValidation
	return stderrors.As(err, &v)
}
