// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"fmt"
)

// DiagnosticKind tags how the canonical position of an Outcome was obtained.
type DiagnosticKind int

const (
	// Stored the property already had coordinates.
	Stored DiagnosticKind = iota
	// DecodedCode the property had only a location code.
	DecodedCode
	// GpsConfirmed the device position, with the address agreeing or unavailable.
	GpsConfirmed
	// GpsConflict the device position, with the geocoded address too far away.
	GpsConflict
	// GeocodedApproximate the geocoded address, without device position.
	GeocodedApproximate
	// Fallback the region default position.
	Fallback
	// Invalid the stored coordinates were unusable and nothing else resolved.
	Invalid
)

var kindNames = map[DiagnosticKind]string{
	Stored:              "stored",
	DecodedCode:         "decoded_code",
	GpsConfirmed:        "gps_confirmed",
	GpsConflict:         "gps_conflict",
	GeocodedApproximate: "geocoded_approximate",
	Fallback:            "fallback",
	Invalid:             "invalid",
}

func (k DiagnosticKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("DiagnosticKind(%d)", int(k))
}

// MarshalText renders the kind as its snake_case name.
func (k DiagnosticKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a snake_case name.
func (k *DiagnosticKind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind

			return nil
		}
	}

	return fmt.Errorf("unknown diagnostic kind %q", text)
}

// ConflictReport describes the distance between the device position and the
// geocoded address. It is never persisted.
type ConflictReport struct {
	DistanceKm  float64 `json:"distance_km"`
	ThresholdKm float64 `json:"threshold_km"`
	Exceeded    bool    `json:"exceeded"`
}

// Diagnostic is the message shown next to a resolved position.
type Diagnostic struct {
	Kind     DiagnosticKind  `json:"kind"`
	Conflict *ConflictReport `json:"conflict,omitempty"`
	Message  string          `json:"message"`
}

// Warning reports whether the position needs a human check.
func (d Diagnostic) Warning() bool {
	switch d.Kind {
	case GpsConflict, GeocodedApproximate, Fallback, Invalid:
		return true
	default:
		return false
	}
}

func newDiagnostic(kind DiagnosticKind, conflict *ConflictReport) Diagnostic {
	d := Diagnostic{Kind: kind, Conflict: conflict}

	switch kind {
	case Stored:
		d.Message = "Stored location."
	case DecodedCode:
		d.Message = "Location taken from the location code."
	case GpsConfirmed:
		d.Message = "Location taken from the device GPS."
	case GpsConflict:
		d.Message = fmt.Sprintf(
			"The device GPS is %.1f km away from the address. Using the GPS position, please verify.",
			conflict.DistanceKm)
	case GeocodedApproximate:
		d.Message = "Approximate location from the address, please verify."
	case Fallback:
		d.Message = "Could not resolve the location, please place the pin manually."
	case Invalid:
		d.Message = "The stored location is invalid, please place the pin manually."
	}

	return d
}
