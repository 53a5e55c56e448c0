package weather

import (
	"errors"
	"fmt"
)

// TransportErrorKind classifies failures raised while talking to a provider.
type TransportErrorKind int

const (
	URLConstructionFailed TransportErrorKind = iota + 1
	NetworkFailure
	EmptyResponseBody
	DecodeFailure
)

func (k TransportErrorKind) String() string {
	switch k {
	case URLConstructionFailed:
		return "url_construction_failed"
	case NetworkFailure:
		return "network_failure"
	case EmptyResponseBody:
		return "empty_response_body"
	case DecodeFailure:
		return "decode_failure"
	default:
		return "unknown"
	}
}

// Sentinels matching each kind, for use with errors.Is.
var (
	ErrURLConstruction   = errors.New("url construction failed")
	ErrNetworkFailure    = errors.New("network failure")
	ErrEmptyResponseBody = errors.New("empty response body")
	ErrDecodeFailure     = errors.New("decode failure")
)

var (
	// ErrNoData is returned when a projection is requested before any forecast was fetched.
	ErrNoData = errors.New("no weather data fetched yet")
	// ErrEmptyCity is returned when a refresh is requested without a city.
	ErrEmptyCity = errors.New("city must not be empty")
	// ErrPreferenceNotFound is returned by PreferenceStore.Get for unknown keys.
	ErrPreferenceNotFound = errors.New("preference not found")
)

// TransportError wraps a provider failure with its kind.
// The service passes these through untouched.
type TransportError struct {
	Kind     TransportErrorKind
	Provider string
	Op       string // "current" or "forecast"
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a TransportError against the kind sentinels.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrURLConstruction:
		return e.Kind == URLConstructionFailed
	case ErrNetworkFailure:
		return e.Kind == NetworkFailure
	case ErrEmptyResponseBody:
		return e.Kind == EmptyResponseBody
	case ErrDecodeFailure:
		return e.Kind == DecodeFailure
	}
	return false
}

// KindOf extracts the transport kind from err, or 0 when err is not a TransportError.
func KindOf(err error) TransportErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
