// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GeocodingError represents provider specific geocoding failures.
type GeocodingError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies geocoding failures.
type ErrorType int

const (
	// ErrorTypeUnknown unclassified failure.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeRateLimit rate limit reached.
	ErrorTypeRateLimit
	// ErrorTypeQuotaExceeded quota exceeded or key rejected.
	ErrorTypeQuotaExceeded
	// ErrorTypeTimeout connection or deadline timeout.
	ErrorTypeTimeout
	// ErrorTypeNotFound no match for the address.
	ErrorTypeNotFound
	// ErrorTypeInvalidRequest malformed request.
	ErrorTypeInvalidRequest
	// ErrorTypeNetworkError transport failure.
	ErrorTypeNetworkError
)

func (e *GeocodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *GeocodingError) Unwrap() error {
	return e.Err
}

func notFound(query string) *GeocodingError {
	return &GeocodingError{
		Type:    ErrorTypeNotFound,
		Message: "no results found for address: " + query,
	}
}

func typeOf(err error) (ErrorType, bool) {
	var geoErr *GeocodingError
	if errors.As(err, &geoErr) {
		return geoErr.Type, true
	}

	return ErrorTypeUnknown, false
}

// hasType reports whether err is a GeocodingError of type t or, for errors
// that did not come from this package, whether its text mentions one of hints.
func hasType(err error, t ErrorType, hints ...string) bool {
	if err == nil {
		return false
	}

	if got, ok := typeOf(err); ok {
		return got == t
	}

	msg := strings.ToLower(err.Error())
	for _, h := range hints {
		if strings.Contains(msg, h) {
			return true
		}
	}

	return false
}

// IsNotFoundError reports whether the provider had no match. Only typed
// errors count: "not found" in free text is too common to mean anything.
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsRateLimitError reports whether err was caused by rate limiting.
func IsRateLimitError(err error) bool {
	return hasType(err, ErrorTypeRateLimit, "rate limit", "too many requests", "429")
}

// IsQuotaExceededError reports whether err was caused by an exhausted quota.
func IsQuotaExceededError(err error) bool {
	return hasType(err, ErrorTypeQuotaExceeded, "over_query_limit", "quota exceeded")
}

// IsTimeoutError reports whether err was caused by a timeout.
func IsTimeoutError(err error) bool {
	return hasType(err, ErrorTypeTimeout, "timeout", "deadline exceeded")
}

var httpErrorTypes = map[int]ErrorType{
	http.StatusTooManyRequests:    ErrorTypeRateLimit,
	http.StatusForbidden:          ErrorTypeQuotaExceeded,
	http.StatusUnauthorized:       ErrorTypeQuotaExceeded,
	http.StatusBadRequest:         ErrorTypeInvalidRequest,
	http.StatusNotFound:           ErrorTypeNotFound,
	http.StatusServiceUnavailable: ErrorTypeNetworkError,
	http.StatusBadGateway:         ErrorTypeNetworkError,
	http.StatusGatewayTimeout:     ErrorTypeNetworkError,
}

// ClassifyHTTPError maps a non 200 response for query into a geocoding error.
func ClassifyHTTPError(statusCode int, query string) *GeocodingError {
	msg := fmt.Sprintf("geocoding %q: HTTP %d %s", query, statusCode, http.StatusText(statusCode))

	return &GeocodingError{Type: httpErrorTypes[statusCode], Message: msg}
}

// classifyTransportError wraps a failed round trip.
func classifyTransportError(err error) *GeocodingError {
	if IsTimeoutError(err) {
		return &GeocodingError{Type: ErrorTypeTimeout, Message: "geocoding request timed out", Err: err}
	}

	return &GeocodingError{Type: ErrorTypeNetworkError, Message: "geocoding request failed", Err: err}
}
