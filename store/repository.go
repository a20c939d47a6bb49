// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/jcodagnone/pinpoint/utils/textutils"
	"github.com/uber/h3-go/v4"
)

// ErrNotFound is returned when a property has no record.
var ErrNotFound = errors.New("property location not found")

// NearbyLocation is a property found by Nearby.
type NearbyLocation struct {
	*PropertyLocation
	DistanceKm float64 `json:"distance_km"`
}

// Repository handles persistence of property locations.
type Repository interface {
	// CreateSchema creates the property_locations table
	CreateSchema() error

	// Save inserts or updates a record, validating the location triple
	Save(loc *PropertyLocation) error

	// Get returns the record of a property, or ErrNotFound
	Get(propertyID string) (*PropertyLocation, error)

	// Clear unsets the location of a property, keeping its address
	Clear(propertyID string) error

	// List returns records, most recently updated first
	List(limit, offset int) ([]*PropertyLocation, error)

	// Count returns the number of records and how many of them are pinned
	Count() (total, pinned int, err error)

	// Nearby returns the pinned properties within radiusKm of p, closest first
	Nearby(p spatial.Point, radiusKm float64, limit int) ([]*NearbyLocation, error)

	// FindByAddress returns pinned properties sharing the folded address
	FindByAddress(address, city, state string) ([]*PropertyLocation, error)

	// MigrateLegacyCodes rewrites decimal "lat,lng" codes in the grid format
	MigrateLegacyCodes() (int, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlRepository struct {
	db *sql.DB
}

// NewRepository creates a repository on a DuckDB connection.
func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

func (r *sqlRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS property_locations (
			property_id VARCHAR PRIMARY KEY,
			address VARCHAR NOT NULL DEFAULT '',
			city VARCHAR NOT NULL DEFAULT '',
			state VARCHAR NOT NULL DEFAULT '',
			address_key VARCHAR NOT NULL DEFAULT '',
			latitude DOUBLE,
			longitude DOUBLE,
			location_code VARCHAR,
			source VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			h3_res5 UBIGINT,
			h3_res6 UBIGINT,
			h3_res7 UBIGINT,
			h3_res8 UBIGINT,
			h3_res9 UBIGINT
		);
	`)

	return err
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}

	return *v
}

// cellArgs returns the H3 columns, NULL when the record is not pinned.
func cellArgs(loc *PropertyLocation) []any {
	args := make([]any, 0, numH3Res)

	for _, cell := range loc.Cells {
		if cell == 0 {
			args = append(args, nil)
		} else {
			args = append(args, cell)
		}
	}

	return args
}

func (r *sqlRepository) Save(loc *PropertyLocation) error {
	if err := loc.normalize(); err != nil {
		return err
	}

	existing, err := r.Get(loc.PropertyID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	loc.UpdatedAt = time.Now()

	if existing != nil {
		loc.CreatedAt = existing.CreatedAt

		args := []any{
			loc.Address, loc.City, loc.State, loc.AddressKey,
			nullable(loc.Latitude), nullable(loc.Longitude), nullable(loc.LocationCode),
			loc.Source, loc.UpdatedAt,
		}
		args = append(args, cellArgs(loc)...)
		args = append(args, loc.PropertyID)

		_, err = r.db.Exec(`
			UPDATE property_locations
			SET address = ?, city = ?, state = ?, address_key = ?,
			    latitude = ?, longitude = ?, location_code = ?, source = ?, updated_at = ?,
			    h3_res5 = ?, h3_res6 = ?, h3_res7 = ?, h3_res8 = ?, h3_res9 = ?
			WHERE property_id = ?
		`, args...)

		return err
	}

	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = loc.UpdatedAt
	}

	args := []any{
		loc.PropertyID, loc.Address, loc.City, loc.State, loc.AddressKey,
		nullable(loc.Latitude), nullable(loc.Longitude), nullable(loc.LocationCode),
		loc.Source, loc.CreatedAt, loc.UpdatedAt,
	}
	args = append(args, cellArgs(loc)...)

	_, err = r.db.Exec(`
		INSERT INTO property_locations(
			property_id, address, city, state, address_key,
			latitude, longitude, location_code, source, created_at, updated_at,
			h3_res5, h3_res6, h3_res7, h3_res8, h3_res9
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)

	return err
}

func (r *sqlRepository) Clear(propertyID string) error {
	_, err := r.db.Exec(`
		UPDATE property_locations
		SET latitude = NULL, longitude = NULL, location_code = NULL, source = '',
		    h3_res5 = NULL, h3_res6 = NULL, h3_res7 = NULL, h3_res8 = NULL, h3_res9 = NULL,
		    updated_at = ?
		WHERE property_id = ?
	`, time.Now(), propertyID)

	return err
}

const baseSelect = `
	SELECT property_id, address, city, state, address_key,
	       latitude, longitude, location_code, source, created_at, updated_at,
	       h3_res5, h3_res6, h3_res7, h3_res8, h3_res9
	FROM property_locations
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLocation(row rowScanner) (*PropertyLocation, error) {
	loc := &PropertyLocation{}

	var (
		lat, lng sql.NullFloat64
		code     sql.NullString
		cells    [numH3Res]sql.NullInt64
	)

	dest := []any{
		&loc.PropertyID, &loc.Address, &loc.City, &loc.State, &loc.AddressKey,
		&lat, &lng, &code, &loc.Source, &loc.CreatedAt, &loc.UpdatedAt,
	}
	for i := range cells {
		dest = append(dest, &cells[i])
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if lat.Valid {
		loc.Latitude = &lat.Float64
	}

	if lng.Valid {
		loc.Longitude = &lng.Float64
	}

	if code.Valid {
		loc.LocationCode = &code.String
	}

	for i, cell := range cells {
		if cell.Valid {
			loc.Cells[i] = cell.Int64
		}
	}

	return loc, nil
}

func (r *sqlRepository) Get(propertyID string) (*PropertyLocation, error) {
	loc, err := scanLocation(r.db.QueryRow(baseSelect+" WHERE property_id = ?", propertyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, propertyID)
	}

	return loc, err
}

func (r *sqlRepository) list(query string, args []any) ([]*PropertyLocation, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []*PropertyLocation

	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}

		locations = append(locations, loc)
	}

	return locations, rows.Err()
}

func (r *sqlRepository) List(limit, offset int) ([]*PropertyLocation, error) {
	query := baseSelect + " ORDER BY updated_at DESC, property_id"

	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"

		args = append(args, limit, offset)
	}

	return r.list(query, args)
}

func (r *sqlRepository) Count() (int, int, error) {
	var total, pinned int

	err := r.db.QueryRow(`
		SELECT COUNT(*), COUNT(latitude) FROM property_locations
	`).Scan(&total, &pinned)

	return total, pinned, err
}

func (r *sqlRepository) FindByAddress(address, city, state string) ([]*PropertyLocation, error) {
	key := textutils.AddressKey(address, city, state)
	if key == "" {
		return nil, nil
	}

	return r.list(baseSelect+`
		WHERE address_key = ? AND latitude IS NOT NULL
		ORDER BY updated_at DESC
	`, []any{key})
}

func (r *sqlRepository) MigrateLegacyCodes() (int, error) {
	locations, err := r.list(baseSelect+" WHERE location_code IS NOT NULL", nil)
	if err != nil {
		return 0, fmt.Errorf("listing coded locations: %w", err)
	}

	migrated := 0

	for _, loc := range locations {
		if !spatial.IsLegacy(loc.Code()) {
			continue
		}

		if _, ok := loc.Point(); !ok {
			canonical, _ := spatial.Canonical(loc.Code())
			loc.LocationCode = &canonical
		}

		if err := r.Save(loc); err != nil {
			return migrated, fmt.Errorf("migrating %s: %w", loc.PropertyID, err)
		}

		migrated++
	}

	return migrated, nil
}

// Average hexagon edge length in km, by resolution. Cells far from the
// icosahedron face centres are smaller; minEdgeRatio bounds how much.
var h3EdgeKm = map[int]float64{5: 8.544, 6: 3.229, 7: 1.220, 8: 0.461, 9: 0.174}

const (
	minEdgeRatio = 0.6
	maxGridDiskK = 12
)

// gridDiskK is the number of rings around the cell of a point needed to
// reach every point within radiusKm, sized for the smallest cells of res.
// Ring k is at least 1.5 edges per ring away from the origin centre
// (centre spacing edge·√3 times cos 30°).
func gridDiskK(res int, radiusKm float64) int {
	edge := h3EdgeKm[res]
	spacing := minEdgeRatio * edge * 1.5

	return int(math.Ceil((radiusKm+edge)/spacing)) + 1
}

// searchCells picks the finest stored resolution whose grid disk around p
// covers radiusKm with at most maxGridDiskK rings. It returns res 0 when the
// radius is too large for a cell prefilter.
func searchCells(p spatial.Point, radiusKm float64) (int, []h3.Cell, error) {
	for res := MaxH3Res; res >= MinH3Res; res-- {
		k := gridDiskK(res, radiusKm)
		if k > maxGridDiskK {
			continue
		}

		origin, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), res)
		if err != nil {
			return 0, nil, fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		cells, err := h3.GridDisk(origin, k)
		if err != nil {
			return 0, nil, fmt.Errorf("computing grid disk: %w", err)
		}

		return res, cells, nil
	}

	return 0, nil, nil
}

func (r *sqlRepository) Nearby(p spatial.Point, radiusKm float64, limit int) ([]*NearbyLocation, error) {
	if !p.Valid() || radiusKm <= 0 {
		return nil, fmt.Errorf("%w: bad search around %v within %.3f km", ErrInvalidLocation, p, radiusKm)
	}

	res, cells, err := searchCells(p, radiusKm)
	if err != nil {
		return nil, err
	}

	var candidates []*PropertyLocation

	if res == 0 {
		candidates, err = r.list(baseSelect+" WHERE latitude IS NOT NULL", nil)
	} else {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cells)), ", ")

		args := make([]any, 0, len(cells))
		for _, c := range cells {
			args = append(args, int64(c))
		}

		candidates, err = r.list(
			baseSelect+fmt.Sprintf(" WHERE h3_res%d IN (%s)", res, placeholders), args)
	}

	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	var found []*NearbyLocation

	for _, c := range candidates {
		cp, ok := c.Point()
		if !ok {
			continue
		}

		if d := spatial.DistanceKm(p, cp); d <= radiusKm {
			found = append(found, &NearbyLocation{PropertyLocation: c, DistanceKm: d})
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].DistanceKm != found[j].DistanceKm {
			return found[i].DistanceKm < found[j].DistanceKm
		}

		return found[i].PropertyID < found[j].PropertyID
	})

	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	return found, nil
}
