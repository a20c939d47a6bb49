// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/jcodagnone/pinpoint/utils/httputils"
)

const googleMapsEndpoint = "https://maps.googleapis.com/maps/api/geocode/json"

// ClientOptions configures the HTTP backed geocoders.
type ClientOptions struct {
	// Endpoint overrides the provider URL (tests, proxies).
	Endpoint string

	// Region biases results towards a ccTLD region, e.g. "cr".
	Region string

	// Country appended to queries when not blank, e.g. "Costa Rica".
	Country string

	// Timeout bounds each HTTP request. Defaults to 10 seconds.
	Timeout time.Duration

	// Trace receives a dump of every HTTP transaction when not nil.
	Trace io.Writer
}

func (o ClientOptions) httpClient(headers map[string]string) *http.Client {
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var transport http.RoundTripper = &httputils.LoggingRoundTripper{
		Transport: http.DefaultTransport,
		Writer:    o.Trace,
		DumpBody:  true,
		Redact:    []string{"key"},
	}

	if len(headers) > 0 {
		transport = &httputils.AppendRequestHeadersRoundTripper{
			Transport: transport,
			Headers:   headers,
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// GoogleMapsGeocoder uses Google Maps Geocoding API.
type GoogleMapsGeocoder struct {
	apiKey     string
	endpoint   string
	region     string
	country    string
	httpClient *http.Client
}

// NewGoogleMapsGeocoder creates a new Google Maps geocoder.
func NewGoogleMapsGeocoder(apiKey string, opts ClientOptions) *GoogleMapsGeocoder {
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = googleMapsEndpoint
	}

	return &GoogleMapsGeocoder{
		apiKey:     apiKey,
		endpoint:   endpoint,
		region:     opts.Region,
		country:    opts.Country,
		httpClient: opts.httpClient(nil),
	}
}

// googleConfidence maps location_type to a coarse confidence.
var googleConfidence = map[string]string{
	"ROOFTOP":            "high",
	"RANGE_INTERPOLATED": "high",
	"GEOMETRIC_CENTER":   "medium",
	"APPROXIMATE":        "low",
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"` // ROOFTOP, RANGE_INTERPOLATED, GEOMETRIC_CENTER, APPROXIMATE
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string `json:"error_message"`
}

func (g *GoogleMapsGeocoder) Geocode(ctx context.Context, address, city, state string) (*Result, error) {
	searchQuery := joinQuery(address, city, state, g.country)

	params := url.Values{}
	params.Set("address", searchQuery)
	params.Set("key", g.apiKey)

	if g.region != "" {
		params.Set("region", g.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "building request", Err: err}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, searchQuery)
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	switch gmResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, notFound(searchQuery)
	case "OVER_QUERY_LIMIT":
		return nil, &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "google maps status: OVER_QUERY_LIMIT"}
	case "REQUEST_DENIED":
		return nil, &GeocodingError{Type: ErrorTypeQuotaExceeded, Message: "google maps denied the request: " + gmResp.ErrorMessage}
	case "INVALID_REQUEST":
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "google maps status: INVALID_REQUEST"}
	default:
		return nil, &GeocodingError{Type: ErrorTypeUnknown, Message: "google maps status: " + gmResp.Status}
	}

	if len(gmResp.Results) == 0 {
		return nil, notFound(searchQuery)
	}

	result := gmResp.Results[0]

	confidence, ok := googleConfidence[result.Geometry.LocationType]
	if !ok {
		confidence = "low"
	}

	return &Result{
		Point: spatial.Point{
			Lat: result.Geometry.Location.Lat,
			Lng: result.Geometry.Location.Lng,
		},
		Confidence:  confidence,
		Provider:    "google_maps",
		DisplayName: result.FormattedAddress,
	}, nil
}
