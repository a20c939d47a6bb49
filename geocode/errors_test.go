// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// googleStatusError is what GoogleMapsGeocoder returns when the API
// answers with status.
func googleStatusError(t *testing.T, status string) error {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `{"status": %q, "results": []}`, status)
	}))
	t.Cleanup(srv.Close)

	g := NewGoogleMapsGeocoder("k", ClientOptions{Endpoint: srv.URL})
	_, err := g.Geocode(context.Background(), "Avenida Central", "San José", "")

	return err
}

func TestProviderFailureKinds(t *testing.T) {
	overQuota := googleStatusError(t, "OVER_QUERY_LIMIT")
	denied := googleStatusError(t, "REQUEST_DENIED")
	zero := googleStatusError(t, "ZERO_RESULTS")
	nominatim429 := ClassifyHTTPError(http.StatusTooManyRequests, "Barrio Escalante, San José")
	deadline := classifyTransportError(fmt.Errorf("Get \"https://nominatim.openstreetmap.org/search\": %w", context.DeadlineExceeded))
	refused := classifyTransportError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})

	tests := []struct {
		name      string
		err       error
		notFound  bool
		rateLimit bool
		quota     bool
		timeout   bool
	}{
		{name: "google OVER_QUERY_LIMIT", err: overQuota, quota: true},
		{name: "google REQUEST_DENIED", err: denied, quota: true},
		{name: "google ZERO_RESULTS", err: zero, notFound: true},
		{name: "nominatim 429", err: nominatim429, rateLimit: true},
		{name: "nominatim 429 wrapped", err: fmt.Errorf("geocoding property 42: %w", nominatim429), rateLimit: true},
		{name: "request deadline", err: deadline, timeout: true},
		{name: "connection refused", err: refused},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatal("expected an error")
			}

			if got := IsNotFoundError(tt.err); got != tt.notFound {
				t.Errorf("IsNotFoundError() = %v, want %v", got, tt.notFound)
			}

			if got := IsRateLimitError(tt.err); got != tt.rateLimit {
				t.Errorf("IsRateLimitError() = %v, want %v", got, tt.rateLimit)
			}

			if got := IsQuotaExceededError(tt.err); got != tt.quota {
				t.Errorf("IsQuotaExceededError() = %v, want %v", got, tt.quota)
			}

			if got := IsTimeoutError(tt.err); got != tt.timeout {
				t.Errorf("IsTimeoutError() = %v, want %v", got, tt.timeout)
			}
		})
	}
}

// Errors from outside this package (other SDKs, proxies) are recognised by
// their text; not found never is.
func TestUntypedProviderErrors(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
		want  bool
	}{
		{errors.New("mapbox: 429 Too Many Requests"), IsRateLimitError, true},
		{errors.New("You have exceeded your rate limit"), IsRateLimitError, true},
		{errors.New("google maps status: OVER_QUERY_LIMIT"), IsQuotaExceededError, true},
		{errors.New("read tcp: i/o timeout"), IsTimeoutError, true},
		{errors.New("address not found"), IsNotFoundError, false},
		{errors.New("invalid JSON"), IsRateLimitError, false},
		{nil, IsTimeoutError, false},
	}

	for _, tt := range tests {
		if got := tt.check(tt.err); got != tt.want {
			t.Errorf("check(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		statusCode int
		wantType   ErrorType
	}{
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusForbidden, ErrorTypeQuotaExceeded},
		{http.StatusUnauthorized, ErrorTypeQuotaExceeded},
		{http.StatusBadRequest, ErrorTypeInvalidRequest},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusServiceUnavailable, ErrorTypeNetworkError},
		{http.StatusBadGateway, ErrorTypeNetworkError},
		{http.StatusGatewayTimeout, ErrorTypeNetworkError},
		{http.StatusInternalServerError, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			got := ClassifyHTTPError(tt.statusCode, "Barrio Amón, San José")
			if got.Type != tt.wantType {
				t.Errorf("ClassifyHTTPError() type = %v, want %v", got.Type, tt.wantType)
			}

			if !strings.Contains(got.Error(), "Barrio Amón") {
				t.Errorf("ClassifyHTTPError() = %q, want the query in the message", got.Error())
			}
		})
	}
}

func TestGeocodingErrorUnwrap(t *testing.T) {
	err := classifyTransportError(context.Canceled)

	if !errors.Is(err, context.Canceled) {
		t.Error("errors.Is should find the transport error")
	}

	if !strings.Contains(err.Error(), "context canceled") {
		t.Errorf("Error() = %q, want the cause in the message", err.Error())
	}
}
