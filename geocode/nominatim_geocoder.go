// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jcodagnone/pinpoint/spatial"
	"golang.org/x/time/rate"
)

const nominatimEndpoint = "https://nominatim.openstreetmap.org/search"

// NominatimGeocoder uses the OpenStreetMap Nominatim search API. The public
// instance requires an identifying User-Agent and allows one request per
// second, which the geocoder enforces.
type NominatimGeocoder struct {
	endpoint    string
	countryCode string
	country     string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewNominatimGeocoder creates a Nominatim geocoder identified by userAgent.
func NewNominatimGeocoder(userAgent string, opts ClientOptions) *NominatimGeocoder {
	endpoint := opts.Endpoint
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)

	if endpoint == "" {
		endpoint = nominatimEndpoint
	} else {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	return &NominatimGeocoder{
		endpoint:    endpoint,
		countryCode: strings.ToLower(opts.Region),
		country:     opts.Country,
		httpClient:  opts.httpClient(map[string]string{"User-Agent": userAgent}),
		limiter:     limiter,
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	PlaceRank   int    `json:"place_rank"`
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, address, city, state string) (*Result, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			// The next slot is past the deadline of ctx.
			return nil, &GeocodingError{Type: ErrorTypeRateLimit, Message: "nominatim request slot unavailable", Err: err}
		}

		return nil, classifyTransportError(err)
	}

	searchQuery := joinQuery(address, city, state, g.country)

	params := url.Values{}
	params.Set("q", searchQuery)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")

	if g.countryCode != "" {
		params.Set("countrycodes", g.countryCode)
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

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if len(places) == 0 {
		return nil, notFound(searchQuery)
	}

	place := places[0]

	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing latitude %q: %w", place.Lat, err)
	}

	lng, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing longitude %q: %w", place.Lon, err)
	}

	// place_rank 26+ are streets and buildings, 16-25 towns and suburbs.
	confidence := "low"

	switch {
	case place.PlaceRank >= 26:
		confidence = "high"
	case place.PlaceRank >= 16:
		confidence = "medium"
	}

	return &Result{
		Point:       spatial.Point{Lat: lat, Lng: lng},
		Confidence:  confidence,
		Provider:    "nominatim",
		DisplayName: place.DisplayName,
	}, nil
}
