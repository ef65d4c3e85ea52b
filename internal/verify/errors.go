package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind classifies a failed verification
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindNetwork    Kind = "NetworkError"
	KindServer     Kind = "ServerError"
	KindUnknown    Kind = "UnknownError"
)

// ErrSuperseded is returned to the caller of a request that finished after a
// newer one started. It is not a failure: nothing was recorded or shown.
var ErrSuperseded = errors.New("verification superseded by a newer request")

// ErrMalformedResponse marks a 2xx body that is not a JSON object
var ErrMalformedResponse = errors.New("malformed response from backend")

// Error is a classified verification failure. Message is fit for display.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int // set for ServerError when the backend answered
	Err        error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// ServerFailure is what the backend said when it refused a request
type ServerFailure struct {
	StatusCode int
	Message    string // backend "error" field, may be empty
}

func (e *ServerFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Message)
}

// KindOf reports the classification of err, or "" if err is not a *Error
func KindOf(err error) Kind {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return ""
}

func validationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Classify maps any failure from the backend exchange onto the taxonomy
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var verr *Error
	if errors.As(err, &verr) {
		return verr
	}

	var sf *ServerFailure
	if errors.As(err, &sf) {
		msg := sf.Message
		if msg == "" {
			msg = "Server Error"
		}
		return &Error{Kind: KindServer, Message: msg, StatusCode: sf.StatusCode, Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindNetwork, Message: "Network Error: the backend did not answer in time", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindUnknown, Message: "Request cancelled", Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindNetwork, Message: "Network Error: the backend did not answer in time", Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return &Error{Kind: KindNetwork, Message: "Network Error: Could not reach the backend", Err: err}
	}

	if errors.Is(err, ErrMalformedResponse) {
		return &Error{Kind: KindUnknown, Message: "Invalid response from backend", Err: err}
	}

	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}
