// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pdiddy/medref/pkg/types"
)

// Kind classifies a provider failure.
type Kind int

const (
	// KindConfig means the provider is missing a credential or setting.
	KindConfig Kind = iota + 1
	// KindAuth means an authenticated target has no live session.
	KindAuth
	// KindUpstream means the provider answered with an error status or an
	// unreadable body.
	KindUpstream
	// KindTransport means the request never completed: network failure,
	// timeout or cancellation.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindAuth:
		return "auth"
	case KindUpstream:
		return "upstream"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// Error is a classified provider failure.
type Error struct {
	Provider types.ProviderName
	Kind     Kind

	// Status is the upstream HTTP status for KindUpstream, otherwise 0.
	Status int

	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func configError(p types.ProviderName, msg string) *Error {
	return &Error{Provider: p, Kind: KindConfig, Message: msg}
}

func authError(p types.ProviderName, err error) *Error {
	return &Error{Provider: p, Kind: KindAuth, Message: "not logged in", Err: err}
}

func upstreamError(p types.ProviderName, status int, msg string) *Error {
	return &Error{Provider: p, Kind: KindUpstream, Status: status, Message: msg}
}

func transportError(p types.ProviderName, msg string, err error) *Error {
	return &Error{Provider: p, Kind: KindTransport, Message: msg, Err: err}
}

// KindOf returns the classification of err, or 0 when err is not a
// provider error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRetryable reports whether repeating the call could succeed: transport
// failures, upstream rate limits and upstream 5xx responses.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTransport:
		return true
	case KindUpstream:
		return e.Status == http.StatusTooManyRequests || e.Status >= 500
	}
	return false
}
