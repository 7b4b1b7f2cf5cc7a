package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNetwork: no response was received (transport failure, timeout, cancel).
	ErrNetwork = errors.New("network unavailable")
	// ErrRejected: the server answered 4xx; its message is authoritative.
	ErrRejected = errors.New("request rejected")
	// ErrServer: the server answered 5xx, 408, 429 or an unusable response.
	ErrServer = errors.New("server error")
	// ErrUnauthorized is a rejection with status 401. It also matches ErrRejected.
	ErrUnauthorized = errors.New("unauthorized")

	ErrRateLimited  = errors.New("too many requests, try again later")
	ErrInvalidEmail = errors.New("invalid email address")
)

// APIError carries the failure class of a call plus whatever the server
// said about it.
type APIError struct {
	Kind    error
	Status  int
	Message string
	Detail  string
	cause   error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *APIError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// UserMessage returns the server message with the debug detail appended.
func (e *APIError) UserMessage() string {
	if e.Detail == "" {
		return e.Message
	}
	if e.Message == "" {
		return e.Detail
	}
	return e.Message + " (" + e.Detail + ")"
}

// Retriable reports whether the same request may succeed if repeated.
func Retriable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrServer)
}
