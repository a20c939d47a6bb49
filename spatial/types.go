// Copyright 2025 The ChapaUY Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds the geographic value types shared by the resolver, the
// editor and the store: positions, great-circle distances and location codes.
package spatial

import (
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// Point represents a geographical point with latitude and longitude in decimal
// degrees. Points are values: every transformation returns a new Point.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

// Valid reports whether p is finite and inside [-90,90] x [-180,180].
func (p Point) Valid() bool {
	if !finite(p.Lat) || !finite(p.Lng) {
		return false
	}

	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Normalize applies the clamping policy used everywhere a coordinate enters
// the system from an untrusted source: latitude is clamped to [-90,90] and
// longitude is wrapped into (-180,180]. Non-finite components become 0.
func (p Point) Normalize() Point {
	return Point{Lat: ClampLat(p.Lat), Lng: WrapLng(p.Lng)}
}

// ClampLat clamps a latitude into [-90,90].
func ClampLat(lat float64) float64 {
	if !finite(lat) {
		return 0
	}

	return math.Max(-90, math.Min(90, lat))
}

// WrapLng wraps a longitude into (-180,180].
func WrapLng(lng float64) float64 {
	if !finite(lng) {
		return 0
	}

	if lng > -180 && lng <= 180 {
		return lng
	}

	r := math.Mod(lng+180, 360)
	if r <= 0 {
		r += 360
	}

	return r - 180
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	return DistanceKm(*p, *other) * 1000
}

// DistanceKm returns the great-circle distance between a and b in kilometers,
// using the haversine formula on a sphere of radius 6371 km.
func DistanceKm(a, b Point) float64 {
	if a == b {
		return 0
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
