// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolve picks the initial position of a property out of the
// evidence at hand: stored coordinates, a location code, the device GPS and
// the geocoded address, in that order of trust.
package resolve

import (
	"context"
	"log"
	"time"

	"github.com/jcodagnone/pinpoint/geocode"
	"github.com/jcodagnone/pinpoint/geolocate"
	"github.com/jcodagnone/pinpoint/spatial"
	"golang.org/x/sync/errgroup"
)

// Config tunes a Resolver.
type Config struct {
	ConflictThresholdKm float64
	GPSTimeout          time.Duration
	GeocodeTimeout      time.Duration
	Fallback            spatial.Point
}

// DefaultConfig returns the settings for the default region.
func DefaultConfig() Config {
	return Config{
		ConflictThresholdKm: 1,
		GPSTimeout:          5 * time.Second,
		GeocodeTimeout:      5 * time.Second,
		Fallback:            Regions[DefaultRegion].Fallback,
	}
}

// Request is the evidence available for a property.
type Request struct {
	Prior     *spatial.Point // stored coordinates, nil when none
	PriorCode string         // stored location code, blank when none
	Address   string
	City      string
	State     string
	Editable  bool // only editable sessions may ask for the device position
}

// Outcome is the resolved canonical position, its code and how it was
// obtained.
type Outcome struct {
	Position   spatial.Point `json:"position"`
	Code       string        `json:"code"`
	Diagnostic Diagnostic    `json:"diagnostic"`
}

// Resolver produces Outcomes. Geocoder and Locator may be nil, in which case
// the corresponding source is treated as unavailable.
type Resolver struct {
	Geocoder geocode.Geocoder
	Locator  geolocate.Client
	Config   Config
}

// New creates a Resolver.
func New(g geocode.Geocoder, l geolocate.Client, cfg Config) *Resolver {
	return &Resolver{Geocoder: g, Locator: l, Config: cfg}
}

// Resolve never fails: every unavailable source is logged and skipped, and
// the configured fallback is returned when nothing else resolves. Each
// external call is bounded by its own timeout.
func (r *Resolver) Resolve(ctx context.Context, req Request) Outcome {
	invalidPrior := false

	if req.Prior != nil {
		if req.Prior.Valid() {
			return outcome(*req.Prior, newDiagnostic(Stored, nil))
		}

		log.Printf("resolve: ignoring invalid stored position %v", *req.Prior)

		invalidPrior = true
	}

	if req.PriorCode != "" {
		if p, ok := spatial.Decode(req.PriorCode); ok {
			return outcome(p, newDiagnostic(DecodedCode, nil))
		}

		log.Printf("resolve: ignoring undecodable location code %q", req.PriorCode)
	}

	var (
		geocoded    *geocode.Result
		geocodeDone bool
	)

	if req.Editable {
		var (
			gps    spatial.Point
			gpsErr error
			g      errgroup.Group
		)

		// Both lookups settle (or time out) before deciding.
		g.Go(func() error {
			gps, gpsErr = geolocate.Locate(ctx, r.Locator, r.gpsTimeout())

			return nil
		})
		g.Go(func() error {
			geocoded = r.geocode(ctx, req)

			return nil
		})

		_ = g.Wait()

		geocodeDone = true

		if gpsErr == nil {
			return r.fromGPS(gps, geocoded)
		}

		log.Printf("resolve: device position unavailable: %v", gpsErr)
	}

	if !geocodeDone {
		geocoded = r.geocode(ctx, req)
	}

	if geocoded != nil {
		return outcome(geocoded.Point, newDiagnostic(GeocodedApproximate, nil))
	}

	if invalidPrior {
		return outcome(r.Config.Fallback, newDiagnostic(Invalid, nil))
	}

	return outcome(r.Config.Fallback, newDiagnostic(Fallback, nil))
}

func (r *Resolver) fromGPS(gps spatial.Point, geocoded *geocode.Result) Outcome {
	if geocoded == nil {
		return outcome(gps, newDiagnostic(GpsConfirmed, nil))
	}

	report := Compare(gps, geocoded.Point, r.threshold())
	if report.Exceeded {
		return outcome(gps, newDiagnostic(GpsConflict, &report))
	}

	return outcome(gps, newDiagnostic(GpsConfirmed, &report))
}

// Compare reports how far apart two independently derived positions are.
func Compare(a, b spatial.Point, thresholdKm float64) ConflictReport {
	d := spatial.DistanceKm(a, b)

	return ConflictReport{
		DistanceKm:  d,
		ThresholdKm: thresholdKm,
		Exceeded:    d > thresholdKm,
	}
}

// geocode returns nil when the address is blank or the lookup fails. A
// geocoder ignoring its context is abandoned after the timeout.
func (r *Resolver) geocode(ctx context.Context, req Request) *geocode.Result {
	if r.Geocoder == nil || geocode.IsBlank(req.Address, req.City, req.State) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.geocodeTimeout())
	defer cancel()

	type answer struct {
		result *geocode.Result
		err    error
	}

	done := make(chan answer, 1)

	go func() {
		result, err := r.Geocoder.Geocode(ctx, req.Address, req.City, req.State)
		done <- answer{result, err}
	}()

	select {
	case a := <-done:
		switch {
		case a.err != nil:
			if !geocode.IsNotFoundError(a.err) {
				log.Printf("resolve: geocoding %q failed: %v", req.Address, a.err)
			}

			return nil
		case a.result == nil || !a.result.Point.Valid():
			return nil
		}

		return a.result
	case <-ctx.Done():
		log.Printf("resolve: geocoding %q abandoned: %v", req.Address, ctx.Err())

		return nil
	}
}

func (r *Resolver) threshold() float64 {
	if r.Config.ConflictThresholdKm > 0 {
		return r.Config.ConflictThresholdKm
	}

	return DefaultConfig().ConflictThresholdKm
}

func (r *Resolver) gpsTimeout() time.Duration {
	if r.Config.GPSTimeout > 0 {
		return r.Config.GPSTimeout
	}

	return DefaultConfig().GPSTimeout
}

func (r *Resolver) geocodeTimeout() time.Duration {
	if r.Config.GeocodeTimeout > 0 {
		return r.Config.GeocodeTimeout
	}

	return DefaultConfig().GeocodeTimeout
}

func outcome(p spatial.Point, d Diagnostic) Outcome {
	return Outcome{Position: p, Code: spatial.Encode(p), Diagnostic: d}
}
