package routing

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies a failed directions fetch
type ErrorKind int

const (
	// KindAPIStatus means the API answered with a status other than OK
	KindAPIStatus ErrorKind = iota + 1
	// KindMalformed means the response body could not be interpreted
	KindMalformed
	// KindTransport means the API answered with a non-200 HTTP status
	KindTransport
	// KindNetwork means the request never completed (timeout, DNS, refused)
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindAPIStatus:
		return "api_status"
	case KindMalformed:
		return "malformed"
	case KindTransport:
		return "transport"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// DirectionsError is returned for every failure to obtain a route
type DirectionsError struct {
	Kind       ErrorKind
	Status     string // API status for KindAPIStatus
	Message    string // API error_message, if any
	StatusCode int    // HTTP status for KindTransport
	Err        error  // cause for KindMalformed and KindNetwork
}

// NewAPIStatusError creates an error for a non-OK API status
func NewAPIStatusError(apiStatus, message string) *DirectionsError {
	return &DirectionsError{Kind: KindAPIStatus, Status: apiStatus, Message: message}
}

// NewMalformedError creates an error for an uninterpretable response
func NewMalformedError(format string, args ...any) *DirectionsError {
	return &DirectionsError{Kind: KindMalformed, Err: fmt.Errorf(format, args...)}
}

// NewTransportError creates an error for a non-200 HTTP response
func NewTransportError(statusCode int) *DirectionsError {
	return &DirectionsError{Kind: KindTransport, StatusCode: statusCode}
}

// NewNetworkError creates an error for a request that failed to complete
func NewNetworkError(cause error) *DirectionsError {
	return &DirectionsError{Kind: KindNetwork, Err: cause}
}

func (e *DirectionsError) Error() string {
	switch e.Kind {
	case KindAPIStatus:
		if e.Message != "" {
			return fmt.Sprintf("directions API returned status %s: %s", e.Status, e.Message)
		}
		return fmt.Sprintf("directions API returned status %s", e.Status)
	case KindMalformed:
		return fmt.Sprintf("malformed directions response: %v", e.Err)
	case KindTransport:
		return fmt.Sprintf("directions API returned HTTP %d", e.StatusCode)
	case KindNetwork:
		return fmt.Sprintf("directions request failed: %v", e.Err)
	default:
		return "directions error"
	}
}

func (e *DirectionsError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout
func (e *DirectionsError) Timeout() bool {
	if e.Kind != KindNetwork || e.Err == nil {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// GRPCStatus lets status.FromError and the gateway map the error to a code
func (e *DirectionsError) GRPCStatus() *status.Status {
	return status.New(e.Code(), e.Error())
}

// Code returns the gRPC code for the error
func (e *DirectionsError) Code() codes.Code {
	switch e.Kind {
	case KindAPIStatus:
		switch e.Status {
		case "ZERO_RESULTS", "NOT_FOUND":
			return codes.NotFound
		case "REQUEST_DENIED":
			return codes.PermissionDenied
		case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
			return codes.ResourceExhausted
		case "INVALID_REQUEST", "MAX_WAYPOINTS_EXCEEDED", "MAX_ROUTE_LENGTH_EXCEEDED":
			return codes.InvalidArgument
		default:
			return codes.Unknown
		}
	case KindMalformed:
		return codes.Internal
	case KindTransport:
		if e.StatusCode == 429 {
			return codes.ResourceExhausted
		}
		return codes.Unavailable
	case KindNetwork:
		if e.Timeout() {
			return codes.DeadlineExceeded
		}
		if errors.Is(e.Err, context.Canceled) {
			return codes.Canceled
		}
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}

// IsKind reports whether err is a DirectionsError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *DirectionsError
	return errors.As(err, &de) && de.Kind == kind
}

// AsDirectionsError extracts a DirectionsError from err
func AsDirectionsError(err error) (*DirectionsError, bool) {
	var de *DirectionsError
	ok := errors.As(err, &de)
	return de, ok
}
