// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package geolocate models the device location capability: a one-shot request
// for the current GPS fix that may be denied, time out or be unsupported.
package geolocate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jcodagnone/pinpoint/spatial"
)

// ErrUnavailable is wrapped by every error a Client returns.
var ErrUnavailable = errors.New("device location unavailable")

// Reasons for an unavailable location.
var (
	ErrDenied      = fmt.Errorf("%w: permission denied", ErrUnavailable)
	ErrTimeout     = fmt.Errorf("%w: timed out", ErrUnavailable)
	ErrUnsupported = fmt.Errorf("%w: not supported", ErrUnavailable)
)

// Client resolves the device position. Implementations must honour the
// context and must not cache fixes between calls.
type Client interface {
	CurrentPosition(ctx context.Context, timeout time.Duration) (spatial.Point, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, timeout time.Duration) (spatial.Point, error)

// CurrentPosition calls f.
func (f ClientFunc) CurrentPosition(ctx context.Context, timeout time.Duration) (spatial.Point, error) {
	return f(ctx, timeout)
}

// Fixed returns a Client reporting a fix the device already produced, e.g.
// the coordinates a browser posted along with the request.
func Fixed(p spatial.Point) Client {
	return ClientFunc(func(ctx context.Context, _ time.Duration) (spatial.Point, error) {
		if err := ctx.Err(); err != nil {
			return spatial.Point{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		if !p.Valid() {
			return spatial.Point{}, fmt.Errorf("%w: invalid fix %v", ErrUnavailable, p)
		}

		return p, nil
	})
}

// Failing returns a Client that always fails with err, which should wrap
// ErrUnavailable (ErrDenied, ErrTimeout, ErrUnsupported).
func Failing(err error) Client {
	if !errors.Is(err, ErrUnavailable) {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return ClientFunc(func(_ context.Context, _ time.Duration) (spatial.Point, error) {
		return spatial.Point{}, err
	})
}

// FromReport maps what a browser reported into a Client: a position when it
// got one, otherwise the error code of the Geolocation API
// (1 permission denied, 2 position unavailable, 3 timeout).
func FromReport(p *spatial.Point, code int) Client {
	if p != nil {
		return Fixed(*p)
	}

	switch code {
	case 1:
		return Failing(ErrDenied)
	case 3:
		return Failing(ErrTimeout)
	default:
		return Failing(ErrUnsupported)
	}
}

// Locate runs c with a deadline of timeout. A call that does not finish in
// time yields ErrTimeout even when the implementation ignores the context.
func Locate(ctx context.Context, c Client, timeout time.Duration) (spatial.Point, error) {
	if c == nil {
		return spatial.Point{}, ErrUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type fix struct {
		p   spatial.Point
		err error
	}

	done := make(chan fix, 1)

	go func() {
		p, err := c.CurrentPosition(ctx, timeout)
		done <- fix{p, err}
	}()

	select {
	case f := <-done:
		if f.err != nil {
			if errors.Is(f.err, context.DeadlineExceeded) {
				return spatial.Point{}, ErrTimeout
			}

			if !errors.Is(f.err, ErrUnavailable) {
				return spatial.Point{}, fmt.Errorf("%w: %w", ErrUnavailable, f.err)
			}

			return spatial.Point{}, f.err
		}

		if !f.p.Valid() {
			return spatial.Point{}, fmt.Errorf("%w: invalid fix %v", ErrUnavailable, f.p)
		}

		return f.p, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return spatial.Point{}, ErrTimeout
		}

		return spatial.Point{}, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
	}
}
