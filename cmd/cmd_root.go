// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/pinpoint/editor"
	"github.com/jcodagnone/pinpoint/geocode"
	"github.com/jcodagnone/pinpoint/resolve"
	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/jcodagnone/pinpoint/store"
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "pinpoint",
	Short: "resolves and edits the map position of real estate listings",
	Long: `
pinpoint decides where a property pin goes: a stored position, a stored
location code, the device GPS or the geocoded address, in that order, and
falls back to the region centre when nothing else is available.
`,
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

type options struct {
	DbPath              string
	Region              string
	Fallback            string
	ConflictThresholdKm float64
	GPSTimeout          time.Duration
	GeocodeTimeout      time.Duration
	Geocoder            string
	Gazetteer           string
	EnableHTTPTrace     bool
}

var rootOptions options

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOptions.DbPath, "db-path", "db", "Base directory for the property database")
	flags.StringVar(
		&rootOptions.Region,
		"region",
		resolve.DefaultRegion,
		"Deployment region ("+strings.Join(resolve.RegionCodes(), ", ")+")",
	)
	flags.StringVar(&rootOptions.Fallback, "fallback", "", "Fallback position as lat,lng. Defaults to the region centre")
	flags.Float64Var(
		&rootOptions.ConflictThresholdKm,
		"conflict-threshold-km",
		resolve.DefaultConfig().ConflictThresholdKm,
		"GPS vs address distance above which a conflict is reported",
	)
	flags.DurationVar(&rootOptions.GPSTimeout, "gps-timeout", resolve.DefaultConfig().GPSTimeout, "Device location timeout")
	flags.DurationVar(
		&rootOptions.GeocodeTimeout,
		"geocode-timeout",
		resolve.DefaultConfig().GeocodeTimeout,
		"Address geocoding timeout",
	)
	flags.StringVar(&rootOptions.Geocoder, "geocoder", "google", "Remote geocoder: google, nominatim or none")
	flags.StringVar(&rootOptions.Gazetteer, "gazetteer", "", "GeoJSON file with landmarks for relative addresses")
	flags.BoolVar(&rootOptions.EnableHTTPTrace, "trace-http", false, "Display HTTP requests-responses")
}

func (o *options) region() (resolve.Region, error) {
	return resolve.LookupRegion(o.Region)
}

func (o *options) resolverConfig() (resolve.Config, error) {
	region, err := o.region()
	if err != nil {
		return resolve.Config{}, err
	}

	cfg := resolve.Config{
		ConflictThresholdKm: o.ConflictThresholdKm,
		GPSTimeout:          o.GPSTimeout,
		GeocodeTimeout:      o.GeocodeTimeout,
		Fallback:            region.Fallback,
	}

	if o.Fallback != "" {
		p, err := parsePoint(o.Fallback)
		if err != nil {
			return resolve.Config{}, fmt.Errorf("--fallback: %w", err)
		}

		cfg.Fallback = p
	}

	return cfg, nil
}

// openRepository opens (creating it when missing) the property database and
// ensures its schema.
func (o *options) openRepository() (*sql.DB, store.Repository, error) {
	if err := os.MkdirAll(o.DbPath, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(o.DbPath, "pinpoint.duckdb"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := store.NewRepository(db)
	if err := repo.CreateSchema(); err != nil {
		_ = db.Close()

		return nil, nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, repo, nil
}

// newGeocoder chains the configured address sources: properties already
// pinned at the same address, the landmark gazetteer, then the remote
// provider. repo may be nil.
func (o *options) newGeocoder(ctx context.Context, repo store.Repository) (geocode.Geocoder, error) {
	region, err := o.region()
	if err != nil {
		return nil, err
	}

	var chain geocode.Chain

	if repo != nil {
		chain = append(chain, store.AddressGeocoder{Repo: repo})
	}

	if o.Gazetteer != "" {
		g, err := geocode.LoadGazetteer(o.Gazetteer)
		if err != nil {
			return nil, fmt.Errorf("loading gazetteer: %w", err)
		}

		log.Printf("Loaded %d landmarks from %s", g.Len(), o.Gazetteer)
		chain = append(chain, g)
	}

	opts := geocode.ClientOptions{
		Region:  region.Code,
		Country: region.Country,
		Timeout: o.GeocodeTimeout,
	}
	if o.EnableHTTPTrace {
		opts.Trace = os.Stderr
	}

	switch o.Geocoder {
	case "google":
		apiKey, err := geocode.GoogleMapsAPIKey(ctx)
		if err != nil {
			log.Printf("Google Maps geocoding disabled: %v", err)

			break
		}

		chain = append(chain, geocode.NewGoogleMapsGeocoder(apiKey, opts))
	case "nominatim":
		userAgent := os.Getenv("NOMINATIM_USER_AGENT")
		if userAgent == "" {
			userAgent = fmt.Sprintf("pinpoint/%s (+https://github.com/jcodagnone/pinpoint)", Version)
		}

		chain = append(chain, geocode.NewNominatimGeocoder(userAgent, opts))
	case "none", "":
	default:
		return nil, fmt.Errorf("unknown geocoder %q", o.Geocoder)
	}

	if len(chain) == 0 {
		return nil, nil
	}

	return chain, nil
}

// parsePoint parses "lat,lng", accepting the same number forms as the
// manual coordinate fields of the editor.
func parsePoint(s string) (spatial.Point, error) {
	latText, lngText, found := strings.Cut(s, ",")
	if !found {
		return spatial.Point{}, fmt.Errorf("%q: expected lat,lng", s)
	}

	lat, err := editor.ParseCoordinate(latText)
	if err != nil {
		return spatial.Point{}, err
	}

	lng, err := editor.ParseCoordinate(lngText)
	if err != nil {
		return spatial.Point{}, err
	}

	p := spatial.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return spatial.Point{}, fmt.Errorf("%q: out of range", s)
	}

	return p, nil
}
