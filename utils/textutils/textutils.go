// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils normalizes the free text users type into address and
// coordinate fields.
package textutils

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LowerASCIIFolding normalizes a string by removing accents, lowercasing, and trimming spaces.
func LowerASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// AddressKey builds a comparable key out of the address parts: folded,
// punctuation stripped and whitespace collapsed.
func AddressKey(parts ...string) string {
	keys := make([]string, 0, len(parts))

	for _, part := range parts {
		folded := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}

			return ' '
		}, LowerASCIIFolding(part))

		keys = append(keys, strings.Join(strings.Fields(folded), " "))
	}

	return strings.Join(keys, "|")
}

var minusSigns = strings.NewReplacer(
	"\u2212", "-", // minus sign
	"\u2012", "-", // figure dash
	"\u2013", "-", // en dash
	" ", "",
)

// NormalizeDecimal rewrites a typed number into the form strconv.ParseFloat
// accepts: compatibility forms (full-width digits) are folded, typographic
// minus signs become '-', spaces are dropped and a lone decimal comma becomes
// a point.
func NormalizeDecimal(s string) string {
	s = minusSigns.Replace(norm.NFKC.String(strings.TrimSpace(s)))

	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	return s
}

// FormatInt formats an integer with commas for human readability.
func FormatInt(n int64) string {
	in := strconv.FormatInt(n, 10)

	numOfDigits := len(in)
	if n < 0 {
		numOfDigits-- // First character is the - sign (not a digit)
	}

	numOfCommas := (numOfDigits - 1) / 3

	out := make([]byte, len(in)+numOfCommas)
	if n < 0 {
		in, out[0] = in[1:], '-'
	}

	for i, j, k := len(in)-1, len(out)-1, 0; ; i, j = i-1, j-1 {
		out[j] = in[i]
		if i == 0 {
			return string(out)
		}

		if k++; k == 3 {
			j, k = j-1, 0
			out[j] = ','
		}
	}
}
