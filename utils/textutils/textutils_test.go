// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package textutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowerAsciiFolding(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello world"},
		{"  Spaces  ", "spaces"},
		{"Áéíóú", "aeiou"},
		{"Ñandú", "nandu"},
		{"San José", "san jose"},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, LowerASCIIFolding(tc.input))
		})
	}
}

func TestAddressKey(t *testing.T) {
	a := AddressKey("  200 m Norte de la Iglesia,  ", "Heredia", "Heredia")
	b := AddressKey("200 m norte de la iglesia", "HEREDIA", "heredia")

	assert.Equal(t, "200 m norte de la iglesia|heredia|heredia", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "||", AddressKey("", "", ""))
	assert.Equal(t, "san jose|escazu", AddressKey("San José", "Escazú"))
}

func TestNormalizeDecimal(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"9.9", "9.9"},
		{" -84.0 ", "-84.0"},
		{"−84.0", "-84.0"},
		{"–84.0", "-84.0"},
		{"９.９", "9.9"},
		{"9,9", "9.9"},
		{"1,234.5", "1,234.5"},
		{"- 84", "-84"},
		{"abc", "abc"},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeDecimal(tc.input))
		})
	}
}

func TestFormatInt(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{1, "1"},
		{123, "123"},
		{1234, "1,234"},
		{1234567, "1,234,567"},
		{-1, "-1"},
		{-1234, "-1,234"},
		{-1234567, "-1,234,567"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatInt(tc.input))
		})
	}
}
