// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the location of each property: latitude,
// longitude and location code, plus derived columns used for lookups.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/jcodagnone/pinpoint/utils/textutils"
	"github.com/uber/h3-go/v4"
)

// H3 resolutions stored for every pinned property.
const (
	MinH3Res = 5
	MaxH3Res = 9

	numH3Res = MaxH3Res - MinH3Res + 1
)

// ErrInvalidLocation is returned when a record is not savable as is.
var ErrInvalidLocation = errors.New("invalid property location")

// PropertyLocation is the persisted location of a property. A nil Latitude,
// Longitude and LocationCode means no location was set, which is distinct
// from (0,0).
type PropertyLocation struct {
	PropertyID   string    `json:"property_id"`
	Address      string    `json:"address"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	LocationCode *string   `json:"location_code"`
	Source       string    `json:"source,omitempty"` // resolve diagnostic or editor event
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	AddressKey string          `json:"-"`
	Cells      [numH3Res]int64 `json:"-"`
}

// HasLocation reports whether any of the three location fields is set.
func (l *PropertyLocation) HasLocation() bool {
	return l.Latitude != nil || l.Longitude != nil || l.LocationCode != nil
}

// Point returns the stored coordinates, if both are set.
func (l *PropertyLocation) Point() (spatial.Point, bool) {
	if l.Latitude == nil || l.Longitude == nil {
		return spatial.Point{}, false
	}

	return spatial.Point{Lat: *l.Latitude, Lng: *l.Longitude}, true
}

// Code returns the stored location code or "".
func (l *PropertyLocation) Code() string {
	if l.LocationCode == nil {
		return ""
	}

	return *l.LocationCode
}

// SetLocation stores the triple emitted by the editor.
func (l *PropertyLocation) SetLocation(lat, lng float64, code string) {
	l.Latitude, l.Longitude, l.LocationCode = &lat, &lng, &code
}

// ClearLocation unsets the three location fields.
func (l *PropertyLocation) ClearLocation() {
	l.Latitude, l.Longitude, l.LocationCode = nil, nil, nil
}

// Cell returns the H3 cell at res, or 0 when not pinned.
func (l *PropertyLocation) Cell(res int) int64 {
	if res < MinH3Res || res > MaxH3Res {
		return 0
	}

	return l.Cells[res-MinH3Res]
}

// normalize validates the record and fills the derived columns. Legacy
// codes are rewritten in the current format.
func (l *PropertyLocation) normalize() error {
	if l.PropertyID == "" {
		return fmt.Errorf("%w: empty property id", ErrInvalidLocation)
	}

	if (l.Latitude == nil) != (l.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrInvalidLocation)
	}

	l.AddressKey = textutils.AddressKey(l.Address, l.City, l.State)
	l.Cells = [numH3Res]int64{}

	p, ok := l.Point()
	if !ok {
		if l.LocationCode != nil {
			if _, ok := spatial.Decode(*l.LocationCode); !ok {
				return fmt.Errorf("%w: undecodable code %q", ErrInvalidLocation, *l.LocationCode)
			}
		}

		return nil
	}

	if !p.Valid() {
		return fmt.Errorf("%w: coordinates %v out of range", ErrInvalidLocation, p)
	}

	if l.LocationCode == nil || spatial.IsLegacy(*l.LocationCode) {
		code := spatial.Encode(p)
		l.LocationCode = &code
	} else if decoded, ok := spatial.Decode(*l.LocationCode); !ok ||
		spatial.DistanceKm(decoded, p) >= spatial.PrecisionKm {
		return fmt.Errorf("%w: code %q does not match %v", ErrInvalidLocation, *l.LocationCode, p)
	}

	return l.computeH3(p)
}

func (l *PropertyLocation) computeH3(p spatial.Point) error {
	latLng := h3.NewLatLng(p.Lat, p.Lng)

	for res := MinH3Res; res <= MaxH3Res; res++ {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		l.Cells[res-MinH3Res] = int64(cell)
	}

	return nil
}
