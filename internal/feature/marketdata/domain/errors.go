// Package domain defines the error taxonomy of the marketdata feature.
package domain

import (
	"errors"
	"fmt"
)

// Kinds of failure. Callers match on these with errors.Is; adapters wrap them
// in an *UpstreamError to carry the provider's own code and message.
var (
	// ErrAuth means the session provider rejected the credentials.
	// It is terminal for a connection attempt and never retried automatically.
	ErrAuth = errors.New("upstream authentication failed")

	// ErrConnection means the upstream could not be reached or the connection dropped.
	ErrConnection = errors.New("upstream connection failed")

	// ErrTimeout means the upstream did not answer in time.
	ErrTimeout = errors.New("upstream timeout")

	// ErrUpstreamRejection means the upstream answered but signalled a logical failure,
	// such as an unknown instrument.
	ErrUpstreamRejection = errors.New("upstream rejected the request")

	// ErrDataUnavailable means the cache was unusable and the direct fetch failed too.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrNotReady means the subscription has not produced data yet.
	ErrNotReady = errors.New("market data not ready")

	// ErrMalformedRecord means a single upstream record could not be normalized.
	ErrMalformedRecord = errors.New("malformed upstream record")

	// ErrInvalidTimeframe is returned for an unsupported interval.
	ErrInvalidTimeframe = errors.New("invalid timeframe")

	// ErrInvalidInstrument is returned for an empty or malformed instrument code.
	ErrInvalidInstrument = errors.New("invalid instrument")
)

// Provider-agnostic ret codes used in the boundary error envelope.
const (
	RetOK              = 200
	RetInvalidArgument = 400
	RetRejection       = 4001
	RetTimeout         = 5001
	RetConnection      = 5002
	RetAuth            = 5003
	RetUnavailable     = 5004
	RetNotReady        = 5005
	RetInternal        = 5000
)

// UpstreamError is a failure reported by, or while talking to, an upstream provider.
type UpstreamError struct {
	Provider string // "alltick" or "tqsession"
	Kind     error  // one of the sentinel errors above
	Status   int    // upstream HTTP status, 0 when there was no response
	Ret      int    // upstream ret code, 0 when the upstream did not report one
	Msg      string
	Trace    string
	Err      error // underlying cause, may be nil
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (http %d)", e.Status)
	}
	if e.Ret != 0 {
		msg += fmt.Sprintf(" (ret %d)", e.Ret)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RetCode maps an error onto the provider-agnostic ret code.
// ErrDataUnavailable and ErrNotReady win over the cause they wrap.
// An upstream rejection keeps the upstream's own ret when it reported one.
func RetCode(err error) int {
	var ue *UpstreamError
	switch {
	case err == nil:
		return RetOK
	case errors.Is(err, ErrInvalidTimeframe), errors.Is(err, ErrInvalidInstrument):
		return RetInvalidArgument
	case errors.Is(err, ErrDataUnavailable):
		return RetUnavailable
	case errors.Is(err, ErrNotReady):
		return RetNotReady
	case errors.Is(err, ErrAuth):
		return RetAuth
	case errors.Is(err, ErrTimeout):
		return RetTimeout
	case errors.Is(err, ErrConnection):
		return RetConnection
	case errors.Is(err, ErrUpstreamRejection):
		if errors.As(err, &ue) && ue.Ret != 0 && ue.Ret != RetOK {
			return ue.Ret
		}
		return RetRejection
	default:
		return RetInternal
	}
}
