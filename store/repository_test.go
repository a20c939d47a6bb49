// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/jcodagnone/pinpoint/geocode"
	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/h3-go/v4"
)

func setupTestDB(t *testing.T) Repository {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.CreateSchema())

	return repo
}

func pinned(id string, lat, lng float64) *PropertyLocation {
	loc := &PropertyLocation{PropertyID: id, Address: "Calle 5", City: "Heredia", State: "Heredia"}
	loc.SetLocation(lat, lng, spatial.Encode(spatial.Point{Lat: lat, Lng: lng}))

	return loc
}

func TestCreateSchema(t *testing.T) {
	repo := setupTestDB(t)

	var tableName string

	err := repo.DB().QueryRow(
		"SELECT table_name FROM information_schema.tables WHERE table_name = 'property_locations'",
	).Scan(&tableName)
	require.NoError(t, err)
	assert.Equal(t, "property_locations", tableName)

	// Idempotent.
	require.NoError(t, repo.CreateSchema())
}

func TestSaveAndGet(t *testing.T) {
	repo := setupTestDB(t)

	loc := pinned("p-1", -34.8822366, -56.1529602)
	loc.Source = "gps_confirmed"
	require.NoError(t, repo.Save(loc))

	got, err := repo.Get("p-1")
	require.NoError(t, err)

	p, ok := got.Point()
	require.True(t, ok)
	assert.Equal(t, spatial.Point{Lat: -34.8822366, Lng: -56.1529602}, p)
	assert.Equal(t, "48Q54R9W+4R48", got.Code())
	assert.Equal(t, "gps_confirmed", got.Source)
	assert.Equal(t, "calle 5|heredia|heredia", got.AddressKey)
	assert.False(t, got.CreatedAt.IsZero())

	for res := MinH3Res; res <= MaxH3Res; res++ {
		assert.NotZero(t, got.Cell(res), "res %d", res)
	}

	assert.Zero(t, got.Cell(4))
}

func TestSaveUpdatesKeepingCreatedAt(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.Save(pinned("p-1", 9.9, -84.0)))

	first, err := repo.Get("p-1")
	require.NoError(t, err)

	update := pinned("p-1", 9.95, -84.05)
	require.NoError(t, repo.Save(update))

	got, err := repo.Get("p-1")
	require.NoError(t, err)

	p, _ := got.Point()
	assert.Equal(t, 9.95, p.Lat)
	assert.Equal(t, first.CreatedAt.Unix(), got.CreatedAt.Unix())
	assert.NotEqual(t, first.Cell(MaxH3Res), got.Cell(MaxH3Res))

	total, pinnedCount, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, pinnedCount)
}

func TestNoLocationIsNotZero(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.Save(&PropertyLocation{PropertyID: "empty", Address: "Calle 1"}))
	require.NoError(t, repo.Save(pinned("zero", 0, 0)))

	empty, err := repo.Get("empty")
	require.NoError(t, err)
	assert.False(t, empty.HasLocation())
	assert.Nil(t, empty.Latitude)
	assert.Nil(t, empty.LocationCode)

	zero, err := repo.Get("zero")
	require.NoError(t, err)
	assert.True(t, zero.HasLocation())
	require.NotNil(t, zero.Latitude)
	assert.Equal(t, 0.0, *zero.Latitude)

	total, pinnedCount, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, pinnedCount)
}

func TestSaveValidation(t *testing.T) {
	repo := setupTestDB(t)

	lat := 9.9
	badCode := "not-a-code"
	farCode := spatial.Encode(spatial.Point{Lat: 1, Lng: 1})

	tests := []struct {
		name string
		loc  *PropertyLocation
	}{
		{"no id", &PropertyLocation{}},
		{"half coordinates", &PropertyLocation{PropertyID: "x", Latitude: &lat}},
		{"out of range", pinned("x", 91, 0)},
		{"bad code only", &PropertyLocation{PropertyID: "x", LocationCode: &badCode}},
		{"code elsewhere", func() *PropertyLocation {
			l := pinned("x", 9.9, -84.0)
			l.LocationCode = &farCode

			return l
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, repo.Save(tt.loc), ErrInvalidLocation)
		})
	}
}

func TestSaveFillsAndMigratesCode(t *testing.T) {
	repo := setupTestDB(t)

	lat, lng := 9.748, -83.753
	legacy := "9.748,-83.753"

	require.NoError(t, repo.Save(&PropertyLocation{PropertyID: "a", Latitude: &lat, Longitude: &lng}))
	require.NoError(t, repo.Save(&PropertyLocation{PropertyID: "b", Latitude: &lat, Longitude: &lng, LocationCode: &legacy}))

	for _, id := range []string{"a", "b"} {
		got, err := repo.Get(id)
		require.NoError(t, err)
		assert.Equal(t, "66XRP6XW+6R22", got.Code())
	}
}

func TestMigrateLegacyCodes(t *testing.T) {
	repo := setupTestDB(t)

	// Rows written before grid codes existed.
	_, err := repo.DB().Exec(`
		INSERT INTO property_locations(property_id, latitude, longitude, location_code)
		VALUES ('old-1', 9.748, -83.753, '9.748,-83.753'), ('old-2', NULL, NULL, '9.9,-84')
	`)
	require.NoError(t, err)
	require.NoError(t, repo.Save(pinned("new", 9.9, -84.0)))

	migrated, err := repo.MigrateLegacyCodes()
	require.NoError(t, err)
	assert.Equal(t, 2, migrated)

	old1, err := repo.Get("old-1")
	require.NoError(t, err)
	assert.Equal(t, "66XRP6XW+6R22", old1.Code())
	assert.NotZero(t, old1.Cell(7))

	old2, err := repo.Get("old-2")
	require.NoError(t, err)
	assert.Equal(t, "66XRW222+2222", old2.Code())
	assert.Nil(t, old2.Latitude)

	migrated, err = repo.MigrateLegacyCodes()
	require.NoError(t, err)
	assert.Zero(t, migrated)
}

func TestGetNotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClear(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.Save(pinned("p-1", 9.9, -84.0)))
	require.NoError(t, repo.Clear("p-1"))
	require.NoError(t, repo.Clear("missing"))

	got, err := repo.Get("p-1")
	require.NoError(t, err)
	assert.False(t, got.HasLocation())
	assert.Equal(t, "Calle 5", got.Address)
	assert.Zero(t, got.Cell(7))
}

func TestList(t *testing.T) {
	repo := setupTestDB(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(pinned(id, 9.9, -84.0)))
	}

	all, err := repo.List(0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].UpdatedAt.After(all[i-1].UpdatedAt))
	}

	page, err := repo.List(2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, all[2].PropertyID, page[0].PropertyID)
}

func TestNearby(t *testing.T) {
	repo := setupTestDB(t)

	origin := spatial.Point{Lat: 9.9, Lng: -84.0}

	require.NoError(t, repo.Save(pinned("same", 9.9, -84.0)))
	require.NoError(t, repo.Save(pinned("300m", 9.9027, -84.0)))
	require.NoError(t, repo.Save(pinned("7km", 9.95, -84.05)))
	require.NoError(t, repo.Save(pinned("limon", 9.9907, -83.0360)))
	require.NoError(t, repo.Save(&PropertyLocation{PropertyID: "unpinned"}))

	tests := []struct {
		radiusKm float64
		want     []string
	}{
		{0.1, []string{"same"}},
		{0.5, []string{"same", "300m"}},
		{10, []string{"same", "300m", "7km"}},
		{500, []string{"same", "300m", "7km", "limon"}},
	}

	for _, tt := range tests {
		found, err := repo.Nearby(origin, tt.radiusKm, 0)
		require.NoError(t, err)

		ids := make([]string, 0, len(found))
		for _, f := range found {
			ids = append(ids, f.PropertyID)
		}

		assert.Equal(t, tt.want, ids, "radius %.1f km", tt.radiusKm)
	}

	found, err := repo.Nearby(origin, 10, 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 0.0, found[0].DistanceKm)

	_, err = repo.Nearby(origin, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidLocation)
}

func TestSearchCellsResolution(t *testing.T) {
	p := spatial.Point{Lat: 9.9, Lng: -84.0}

	res, cells, err := searchCells(p, 0.2)
	require.NoError(t, err)
	assert.Equal(t, 9, res)
	assert.NotEmpty(t, cells)

	res, _, err = searchCells(p, 20)
	require.NoError(t, err)
	assert.Equal(t, 6, res)

	res, cells, err = searchCells(p, 1000)
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Nil(t, cells)
}

// destination returns the point distanceKm away from p along bearing
// (degrees clockwise from north) on the 6371 km sphere.
func destination(p spatial.Point, bearing, distanceKm float64) spatial.Point {
	const rad = math.Pi / 180

	delta := distanceKm / 6371
	lat1, lng1, theta := p.Lat*rad, p.Lng*rad, bearing*rad

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lng2 := lng1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(lat1),
		math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2),
	)

	return spatial.Point{Lat: lat2 / rad, Lng: lng2 / rad}.Normalize()
}

func TestSearchCellsReachRadius(t *testing.T) {
	covered := func(p, q spatial.Point, radiusKm float64) bool {
		res, cells, err := searchCells(p, radiusKm)
		require.NoError(t, err)

		if res == 0 {
			return true
		}

		cell, err := h3.LatLngToCell(h3.NewLatLng(q.Lat, q.Lng), res)
		require.NoError(t, err)

		return slices.Contains(cells, cell)
	}

	// Small cells at high latitude, far from the face centre.
	p := spatial.Point{Lat: 61.855001, Lng: 23.788885}
	q := spatial.Point{Lat: 61.837527, Lng: 23.701179}
	assert.True(t, covered(p, q, 5), "d=%.4f", spatial.DistanceKm(p, q))

	rng := rand.New(rand.NewSource(11))

	for range 5000 {
		p := spatial.Point{Lat: rng.Float64()*170 - 85, Lng: rng.Float64()*360 - 180}
		radius := []float64{0.1, 0.5, 1, 2, 5, 10, 20}[rng.Intn(7)]
		q := destination(p, rng.Float64()*360, 0.999*radius)

		require.True(t, covered(p, q, radius), "p=%v q=%v radius=%.1f", p, q, radius)
	}
}

func TestNearbyJustInsideRadius(t *testing.T) {
	repo := setupTestDB(t)

	const radiusKm = 5

	var centres []spatial.Point

	for i, lat := range []float64{0, 9.9, -34.9, 45, 61.855001, 70} {
		centre := spatial.Point{Lat: lat, Lng: 23.788885 - float64(i)*40}
		centres = append(centres, centre)

		for b := 0; b < 360; b += 45 {
			q := destination(centre, float64(b), 0.999*radiusKm)
			require.NoError(t, repo.Save(pinned(fmt.Sprintf("c%d-b%03d", i, b), q.Lat, q.Lng)))
		}
	}

	for i, centre := range centres {
		found, err := repo.Nearby(centre, radiusKm, 0)
		require.NoError(t, err)
		assert.Len(t, found, 8, "centre %d %v", i, centre)

		for _, f := range found {
			assert.LessOrEqual(t, f.DistanceKm, float64(radiusKm))
		}
	}
}

func TestFindByAddressAndGeocoder(t *testing.T) {
	repo := setupTestDB(t)

	loc := pinned("p-1", 9.9986, -84.1165)
	loc.Address = "Barrio Los Ángeles, casa 12"
	require.NoError(t, repo.Save(loc))

	found, err := repo.FindByAddress("barrio los angeles  casa 12", "HEREDIA", "Heredia")
	require.NoError(t, err)
	require.Len(t, found, 1)

	g := AddressGeocoder{Repo: repo}

	result, err := g.Geocode(context.Background(), "Barrio Los Angeles, Casa 12", "Heredia", "Heredia")
	require.NoError(t, err)
	assert.Equal(t, spatial.Point{Lat: 9.9986, Lng: -84.1165}, result.Point)
	assert.Equal(t, "property_store", result.Provider)

	_, err = g.Geocode(context.Background(), "Otra calle", "Heredia", "")
	assert.True(t, geocode.IsNotFoundError(err))
}

func TestSharedPins(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.Save(pinned("a", 9.9, -84.0)))
	require.NoError(t, repo.Save(pinned("b", 9.90003, -84.0))) // ~3 m
	require.NoError(t, repo.Save(pinned("c", 9.90006, -84.0))) // ~3 m from b
	require.NoError(t, repo.Save(pinned("d", 9.95, -84.05)))
	require.NoError(t, repo.Save(pinned("e", -34.88, -56.15)))
	require.NoError(t, repo.Save(pinned("f", -34.88001, -56.15)))

	shared, err := SharedPins(repo, 5)
	require.NoError(t, err)
	require.Len(t, shared, 2)

	assert.Len(t, shared[0].Properties, 3)
	assert.Equal(t, "a", shared[0].Properties[0].PropertyID)
	assert.Equal(t, spatial.Encode(spatial.Point{Lat: 9.9, Lng: -84.0}), shared[0].Code)
	assert.Len(t, shared[1].Properties, 2)
}

func TestExportImport(t *testing.T) {
	src := setupTestDB(t)

	require.NoError(t, src.Save(pinned("a", 9.9, -84.0)))
	require.NoError(t, src.Save(&PropertyLocation{PropertyID: "b", Address: "Calle 2"}))

	var buf bytes.Buffer

	n, err := ExportJSON(src, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), `"code_version": 1`)

	dst := setupTestDB(t)

	var calls []int

	imported, err := ImportJSON(dst, &buf, func(done, total int) {
		assert.Equal(t, 2, total)

		calls = append(calls, done)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, []int{1, 2}, calls)

	a, err := dst.Get("a")
	require.NoError(t, err)
	assert.Equal(t, spatial.Encode(spatial.Point{Lat: 9.9, Lng: -84.0}), a.Code())

	b, err := dst.Get("b")
	require.NoError(t, err)
	assert.False(t, b.HasLocation())
}

func TestSeedIfEmpty(t *testing.T) {
	src := setupTestDB(t)
	require.NoError(t, src.Save(pinned("a", 9.9, -84.0)))

	path := filepath.Join(t.TempDir(), "seed.json")
	_, err := ExportToJSON(src, path)
	require.NoError(t, err)

	dst := setupTestDB(t)

	seeded, n, err := SeedIfEmpty(dst, filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Zero(t, n)

	seeded, n, err = SeedIfEmpty(dst, path)
	require.NoError(t, err)
	assert.True(t, seeded)
	assert.Equal(t, 1, n)

	seeded, n, err = SeedIfEmpty(dst, path)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Equal(t, 1, n)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))

	_, err = ImportFromJSON(setupTestDB(t), path, nil)
	assert.Error(t, err)
}
