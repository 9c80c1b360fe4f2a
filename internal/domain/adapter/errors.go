// Package adapter defines the typed failures returned by external service adapters.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an adapter failure.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindUnavailable     Kind = "unavailable"
	KindInvalidResponse Kind = "invalid_response"
)

// Sentinels usable with errors.Is against any *Error of the same kind.
var (
	ErrTimeout         = errors.New("timeout")
	ErrUnavailable     = errors.New("unavailable")
	ErrInvalidResponse = errors.New("invalid response")
)

// Error is the failure of one call to an external service.
type Error struct {
	Service string
	Kind    Kind
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Service, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrInvalidResponse:
		return e.Kind == KindInvalidResponse
	}
	return false
}

func Timeout(service string, err error) error {
	return &Error{Service: service, Kind: KindTimeout, Err: err}
}

func Unavailable(service string, err error) error {
	return &Error{Service: service, Kind: KindUnavailable, Err: err}
}

func InvalidResponse(service string, err error) error {
	return &Error{Service: service, Kind: KindInvalidResponse, Err: err}
}

// Classify turns a transport error into a typed failure: deadline and
// network timeouts become KindTimeout, everything else KindUnavailable.
func Classify(service string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(service, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Timeout(service, err)
	}
	return Unavailable(service, err)
}
