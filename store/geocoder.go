// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"

	"github.com/jcodagnone/pinpoint/geocode"
)

// AddressGeocoder answers geocoding queries with the pins of other
// properties at the same address. It goes first in a geocode.Chain.
type AddressGeocoder struct {
	Repo Repository
}

func (g AddressGeocoder) Geocode(ctx context.Context, address, city, state string) (*geocode.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches, err := g.Repo.FindByAddress(address, city, state)
	if err != nil {
		return nil, err
	}

	for _, m := range matches {
		if p, ok := m.Point(); ok {
			return &geocode.Result{
				Point:       p,
				Confidence:  "high",
				Provider:    "property_store",
				DisplayName: m.PropertyID,
			}, nil
		}
	}

	return nil, &geocode.GeocodingError{Type: geocode.ErrorTypeNotFound, Message: "no pinned property at " + address}
}
