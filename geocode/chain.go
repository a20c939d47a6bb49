// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"log"
)

// Chain tries each geocoder in order and returns the first result. Cheap
// offline sources go first, paid providers last.
type Chain []Geocoder

func (c Chain) Geocode(ctx context.Context, address, city, state string) (*Result, error) {
	if IsBlank(address, city, state) {
		return nil, &GeocodingError{Type: ErrorTypeInvalidRequest, Message: "empty address"}
	}

	var errs []error

	for _, g := range c {
		if g == nil {
			continue
		}

		if err := ctx.Err(); err != nil {
			errs = append(errs, classifyTransportError(err))

			break
		}

		result, err := g.Geocode(ctx, address, city, state)
		if err == nil && result != nil {
			return result, nil
		}

		if err == nil {
			err = notFound(joinQuery(address, city, state))
		}

		if !IsNotFoundError(err) {
			log.Printf("geocoder %T failed: %v", g, err)
		}

		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, notFound(joinQuery(address, city, state))
	}

	// Not found only when every provider said so.
	for _, err := range errs {
		if !IsNotFoundError(err) {
			return nil, errors.Join(errs...)
		}
	}

	return nil, errs[len(errs)-1]
}
