// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jcodagnone/pinpoint/spatial"
)

// Region is a deployment region: where the pin lands when nothing else
// resolves, and how geocoding queries are biased.
type Region struct {
	Code     string // ccTLD, also used as the geocoding region bias
	Country  string // appended to geocoding queries
	City     string
	Fallback spatial.Point // centre of City
}

// Regions known to the deployment, keyed by code.
var Regions = map[string]Region{
	"cr": {Code: "cr", Country: "Costa Rica", City: "San José", Fallback: spatial.Point{Lat: 9.9281, Lng: -84.0907}},
	"uy": {Code: "uy", Country: "Uruguay", City: "Montevideo", Fallback: spatial.Point{Lat: -34.9011, Lng: -56.1645}},
	"pa": {Code: "pa", Country: "Panamá", City: "Ciudad de Panamá", Fallback: spatial.Point{Lat: 8.9824, Lng: -79.5199}},
	"co": {Code: "co", Country: "Colombia", City: "Bogotá", Fallback: spatial.Point{Lat: 4.7110, Lng: -74.0721}},
	"mx": {Code: "mx", Country: "México", City: "Ciudad de México", Fallback: spatial.Point{Lat: 19.4326, Lng: -99.1332}},
	"us": {Code: "us", Country: "United States", City: "Fort Worth", Fallback: spatial.Point{Lat: 32.7555, Lng: -97.3308}},
}

// DefaultRegion is used when none is configured.
const DefaultRegion = "cr"

// LookupRegion returns the region with the given code (case insensitive).
func LookupRegion(code string) (Region, error) {
	r, ok := Regions[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return Region{}, fmt.Errorf("unknown region %q (known: %s)", code, strings.Join(RegionCodes(), ", "))
	}

	return r, nil
}

// RegionCodes returns the known region codes, sorted.
func RegionCodes() []string {
	codes := make([]string, 0, len(Regions))
	for code := range Regions {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	return codes
}
