// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/jcodagnone/pinpoint/utils/textutils"
)

// Landmark is a named reference point (church, park, school, bridge) that
// local addresses are given relative to.
type Landmark struct {
	Name    string        `json:"name"`
	Aliases []string      `json:"aliases,omitempty"`
	City    string        `json:"city,omitempty"`
	State   string        `json:"state,omitempty"`
	Point   spatial.Point `json:"point"`
}

// Gazetteer geocodes addresses written as directions from a known landmark,
// e.g. "200 m norte y 50 m oeste de la Iglesia de San Rafael", without any
// network access.
type Gazetteer struct {
	landmarks map[string][]*Landmark // key: folded name
	names     []string               // folded names, longest first
}

// NewGazetteer indexes landmarks by their folded names and aliases.
func NewGazetteer(landmarks []*Landmark) *Gazetteer {
	g := &Gazetteer{landmarks: make(map[string][]*Landmark)}

	for _, l := range landmarks {
		for _, name := range append([]string{l.Name}, l.Aliases...) {
			key := landmarkKey(name)
			if key == "" {
				continue
			}

			if _, ok := g.landmarks[key]; !ok {
				g.names = append(g.names, key)
			}

			g.landmarks[key] = append(g.landmarks[key], l)
		}
	}

	sort.Slice(g.names, func(i, j int) bool {
		if len(g.names[i]) != len(g.names[j]) {
			return len(g.names[i]) > len(g.names[j])
		}

		return g.names[i] < g.names[j]
	})

	return g
}

// LoadGazetteer loads landmarks from a GeoJSON FeatureCollection of points
// whose properties carry name, aliases, city and state.
func LoadGazetteer(filepath string) (*Gazetteer, error) {
	data, err := os.ReadFile(filepath) // #nosec G304 - filepath is provided by admin
	if err != nil {
		return nil, fmt.Errorf("reading gazetteer file: %w", err)
	}

	return ParseGazetteer(data)
}

// ParseGazetteer parses a GeoJSON FeatureCollection of landmarks.
func ParseGazetteer(data []byte) (*Gazetteer, error) {
	var geoJSON struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties struct {
				Name    string   `json:"name"`
				Aliases []string `json:"aliases"`
				City    string   `json:"city"`
				State   string   `json:"state"`
			} `json:"properties"`
		} `json:"features"`
	}

	if err := json.Unmarshal(data, &geoJSON); err != nil {
		return nil, fmt.Errorf("parsing gazetteer JSON: %w", err)
	}

	landmarks := make([]*Landmark, 0, len(geoJSON.Features))

	for i, feature := range geoJSON.Features {
		if len(feature.Geometry.Coordinates) < 2 {
			return nil, fmt.Errorf("feature %d (%s): expected point coordinates", i, feature.Properties.Name)
		}

		p := spatial.Point{
			Lng: feature.Geometry.Coordinates[0],
			Lat: feature.Geometry.Coordinates[1],
		}
		if !p.Valid() {
			return nil, fmt.Errorf("feature %d (%s): invalid coordinates %v", i, feature.Properties.Name, p)
		}

		landmarks = append(landmarks, &Landmark{
			Name:    feature.Properties.Name,
			Aliases: feature.Properties.Aliases,
			City:    feature.Properties.City,
			State:   feature.Properties.State,
			Point:   p,
		})
	}

	return NewGazetteer(landmarks), nil
}

// Len returns the number of indexed names.
func (g *Gazetteer) Len() int {
	return len(g.names)
}

var leadingArticle = regexp.MustCompile(`^(?:del?|la|el|los|las)\s+`)

func landmarkKey(name string) string {
	key := textutils.AddressKey(name)
	for {
		trimmed := leadingArticle.ReplaceAllString(key, "")
		if trimmed == key {
			return key
		}

		key = trimmed
	}
}

// Offset is one leg of a relative address, in meters.
type Offset struct {
	Meters    float64
	Direction string // norte, sur, este, oeste
}

// RelativeAddress represents a parsed "N m <direction> de <landmark>" address.
type RelativeAddress struct {
	OriginalAddress string
	Offsets         []Offset
	Landmark        string
}

const varaMeters = 0.8359

var (
	legPattern = regexp.MustCompile(
		`(\d+(?:[.,]\d+)?)\s*(metros|metro|mts|mt|m|varas|vara|kms|km)?\.?\s*(?:al\s+|hacia\s+el\s+)?(norte|sur|este|oeste)\b`)
	landmarkPattern = regexp.MustCompile(`(?:^|\s)(?:de|del)\s+(.+)$`)
)

// ParseRelativeAddress extracts the offsets and landmark of an address.
// Returns nil if the address isn't written relative to a landmark.
func ParseRelativeAddress(address string) *RelativeAddress {
	folded := textutils.LowerASCIIFolding(address)

	legs := legPattern.FindAllStringSubmatchIndex(folded, -1)
	if len(legs) == 0 {
		return nil
	}

	last := legs[len(legs)-1]

	m := landmarkPattern.FindStringSubmatch(folded[last[1]:])
	if m == nil {
		return nil
	}

	rel := &RelativeAddress{
		OriginalAddress: address,
		Landmark:        landmarkKey(m[1]),
	}

	for _, leg := range legs {
		amount, err := strconv.ParseFloat(strings.Replace(folded[leg[2]:leg[3]], ",", ".", 1), 64)
		if err != nil {
			continue
		}

		unit := ""
		if leg[4] >= 0 {
			unit = folded[leg[4]:leg[5]]
		}

		switch {
		case strings.HasPrefix(unit, "vara"):
			amount *= varaMeters
		case strings.HasPrefix(unit, "km"):
			amount *= 1000
		}

		rel.Offsets = append(rel.Offsets, Offset{Meters: amount, Direction: folded[leg[6]:leg[7]]})
	}

	if rel.Landmark == "" || len(rel.Offsets) == 0 {
		return nil
	}

	return rel
}

// Apply moves p by the offsets of the address.
func (r *RelativeAddress) Apply(p spatial.Point) spatial.Point {
	const metersPerDegree = 2 * math.Pi * 6371000 / 360

	for _, o := range r.Offsets {
		switch o.Direction {
		case "norte":
			p.Lat += o.Meters / metersPerDegree
		case "sur":
			p.Lat -= o.Meters / metersPerDegree
		case "este":
			p.Lng += o.Meters / (metersPerDegree * math.Cos(p.Lat*math.Pi/180))
		case "oeste":
			p.Lng -= o.Meters / (metersPerDegree * math.Cos(p.Lat*math.Pi/180))
		}
	}

	return p.Normalize()
}

// FindLandmark looks a landmark up by name, preferring the ones located in
// city/state when the name is ambiguous. The exact name is tried first, then
// the longest indexed name contained in it.
func (g *Gazetteer) FindLandmark(name, city, state string) *Landmark {
	key := landmarkKey(name)

	if candidates, ok := g.landmarks[key]; ok {
		return pickLandmark(candidates, city, state)
	}

	for _, indexed := range g.names {
		if containsWords(key, indexed) {
			return pickLandmark(g.landmarks[indexed], city, state)
		}
	}

	return nil
}

func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

func pickLandmark(candidates []*Landmark, city, state string) *Landmark {
	cityKey, stateKey := textutils.AddressKey(city), textutils.AddressKey(state)

	best, bestScore := candidates[0], -1

	for _, c := range candidates {
		score := 0
		if cityKey != "" && textutils.AddressKey(c.City) == cityKey {
			score += 2
		}

		if stateKey != "" && textutils.AddressKey(c.State) == stateKey {
			score++
		}

		if score > bestScore {
			best, bestScore = c, score
		}
	}

	return best
}

func (g *Gazetteer) Geocode(_ context.Context, address, city, state string) (*Result, error) {
	rel := ParseRelativeAddress(address)
	if rel == nil {
		landmark := g.FindLandmark(address, city, state)
		if landmark == nil {
			return nil, notFound(address)
		}

		return &Result{
			Point:       landmark.Point,
			Confidence:  "medium",
			Provider:    "gazetteer",
			DisplayName: landmark.Name,
		}, nil
	}

	landmark := g.FindLandmark(rel.Landmark, city, state)
	if landmark == nil {
		return nil, notFound(address)
	}

	return &Result{
		Point:       rel.Apply(landmark.Point),
		Confidence:  "medium",
		Provider:    "gazetteer",
		DisplayName: fmt.Sprintf("%s (%s)", landmark.Name, address),
	}, nil
}
