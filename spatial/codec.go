// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package spatial

import (
	"math"
	"strconv"
	"strings"
)

// Location codes are base-20 grid references. Twelve digits alternate between
// latitude and longitude (six each, most significant first) and a separator is
// placed after the eighth digit, e.g. "66XRP6XW+6R22".
//
// Each axis is divided into cells of 1/160000 degree. Decoding returns the cell
// centre, so a decoded point is at most 3.125e-6 degrees away from the encoded
// one on each axis (about 0.35 m on the equator).
//
// The format is part of the storage contract. Codes written before grid codes
// existed were plain "lat,lng" decimal strings; Decode still accepts them.
const (
	CodeAlphabet  = "23456789CFGHJMPQRVWX"
	CodeSeparator = '+'
	CodeLength    = 13
	CodeVersion   = 1

	codeDigits      = 12
	separatorOffset = 8
	cellsPerDegree  = 160000 // 20^6 / 400
	latCells        = 180 * cellsPerDegree
	lngCells        = 360 * cellsPerDegree
	codeBase        = 20
	digitsPerAxis   = codeDigits / 2
)

// PrecisionDegrees is the maximum per-axis error of a round trip.
const PrecisionDegrees = 0.5 / cellsPerDegree

// PrecisionKm is the declared round-trip tolerance of location codes.
const PrecisionKm = 0.001

var codeIndex = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}

	for i := range len(CodeAlphabet) {
		idx[CodeAlphabet[i]] = int8(i)
		idx[strings.ToLower(CodeAlphabet[i : i+1])[0]] = int8(i)
	}

	return idx
}()

// Encode returns the location code of p. Out of range inputs are normalized
// first (see Point.Normalize), so Encode is total.
func Encode(p Point) string {
	p = p.Normalize()

	lat := int64(math.Floor((p.Lat + 90) * cellsPerDegree))
	lat = min(max(lat, 0), latCells-1)

	// The grid is laid out over [-180,180); 180 shares the cell of -180.
	lng := int64(math.Floor((p.Lng + 180) * cellsPerDegree))
	if lng >= lngCells {
		lng -= lngCells
	}

	lng = min(max(lng, 0), lngCells-1)

	var digits [codeDigits]byte

	for i := digitsPerAxis - 1; i >= 0; i-- {
		digits[2*i] = CodeAlphabet[lat%codeBase]
		digits[2*i+1] = CodeAlphabet[lng%codeBase]
		lat /= codeBase
		lng /= codeBase
	}

	var sb strings.Builder

	sb.Grow(CodeLength)
	sb.Write(digits[:separatorOffset])
	sb.WriteByte(CodeSeparator)
	sb.Write(digits[separatorOffset:])

	return sb.String()
}

// Decode parses a location code. It reports false for anything that is not a
// syntactically valid code; it never panics on malformed input. Case and
// surrounding whitespace are ignored.
func Decode(code string) (Point, bool) {
	code = strings.TrimSpace(code)

	if p, ok := decodeGrid(code); ok {
		return p, true
	}

	return decodeLegacy(code)
}

// IsLegacy reports whether code uses the decimal "lat,lng" format that
// predates grid codes. Such codes should be re-encoded when next saved.
func IsLegacy(code string) bool {
	code = strings.TrimSpace(code)
	if _, ok := decodeGrid(code); ok {
		return false
	}

	_, ok := decodeLegacy(code)

	return ok
}

// Canonical re-encodes any decodable code into the current format.
func Canonical(code string) (string, bool) {
	p, ok := Decode(code)
	if !ok {
		return "", false
	}

	return Encode(p), true
}

func decodeGrid(code string) (Point, bool) {
	if len(code) != CodeLength || code[separatorOffset] != CodeSeparator {
		return Point{}, false
	}

	var lat, lng int64

	pos := 0

	for i := range len(code) {
		if i == separatorOffset {
			continue
		}

		d := codeIndex[code[i]]
		if d < 0 {
			return Point{}, false
		}

		if pos%2 == 0 {
			lat = lat*codeBase + int64(d)
		} else {
			lng = lng*codeBase + int64(d)
		}

		pos++
	}

	if lat >= latCells || lng >= lngCells {
		return Point{}, false
	}

	return Point{
		Lat: (float64(lat)+0.5)/cellsPerDegree - 90,
		Lng: (float64(lng)+0.5)/cellsPerDegree - 180,
	}, true
}

func decodeLegacy(code string) (Point, bool) {
	latStr, lngStr, found := strings.Cut(code, ",")
	if !found {
		return Point{}, false
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, false
	}

	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil {
		return Point{}, false
	}

	p := Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return Point{}, false
	}

	return p.Normalize(), true
}
