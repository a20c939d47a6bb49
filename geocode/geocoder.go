// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode turns free-text property addresses into coordinates using
// online providers and an offline gazetteer of local landmarks.
package geocode

import (
	"context"
	"strings"

	"github.com/jcodagnone/pinpoint/spatial"
)

// Result represents a geocoding result from any provider.
type Result struct {
	Point       spatial.Point
	Confidence  string // high, medium, low
	Provider    string
	DisplayName string
}

// Geocoder interface for different geocoding providers. Implementations
// return a *GeocodingError of type ErrorTypeNotFound when nothing matches.
type Geocoder interface {
	Geocode(ctx context.Context, address, city, state string) (*Result, error)
}

// GeocoderFunc adapts a function to the Geocoder interface.
type GeocoderFunc func(ctx context.Context, address, city, state string) (*Result, error)

// Geocode calls f.
func (f GeocoderFunc) Geocode(ctx context.Context, address, city, state string) (*Result, error) {
	return f(ctx, address, city, state)
}

// IsBlank reports whether there is nothing to geocode.
func IsBlank(address, city, state string) bool {
	return strings.TrimSpace(address) == "" &&
		strings.TrimSpace(city) == "" &&
		strings.TrimSpace(state) == ""
}

// joinQuery builds a single-line query out of the non blank parts.
func joinQuery(parts ...string) string {
	kept := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, ", ")
}
