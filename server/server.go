// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes location resolution, editing and lookups over HTTP
// for the property form.
package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jcodagnone/pinpoint/editor"
	"github.com/jcodagnone/pinpoint/geolocate"
	"github.com/jcodagnone/pinpoint/resolve"
	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/jcodagnone/pinpoint/store"
)

type Server struct {
	repo     store.Repository
	resolver *resolve.Resolver
	metrics  *Metrics
}

// NewServer creates a server. The resolver's Locator is replaced on every
// request by the position the browser reported.
func NewServer(repo store.Repository, resolver *resolve.Resolver, metrics *Metrics) *Server {
	return &Server{repo: repo, resolver: resolver, metrics: metrics}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.GET("/api/properties/nearby", s.nearby)
	r.GET("/api/properties/shared-pins", s.sharedPins)
	r.GET("/api/properties/:id/location", s.getLocation)
	r.PUT("/api/properties/:id/location", s.editLocation)
	r.DELETE("/api/properties/:id/location", s.clearLocation)
	r.POST("/api/properties/:id/location/resolve", s.resolveLocation)
	r.GET("/api/codes/encode", s.encode)
	r.GET("/api/codes/decode/:code", s.decode)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	return r
}

func (s *Server) Run(addr string) error {
	log.Printf("Serving location API on http://%s", addr)

	return s.Router().Run(addr)
}

func (s *Server) getLocation(ctx *gin.Context) {
	loc, err := s.repo.Get(ctx.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		return
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, loc)
}

type gpsReport struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type resolveRequest struct {
	Address  string     `json:"address"`
	City     string     `json:"city"`
	State    string     `json:"state"`
	Editable bool       `json:"editable"`
	GPS      *gpsReport `json:"gps"`
	GPSError int        `json:"gps_error"` // Geolocation API error code when GPS is null
}

type resolveResponse struct {
	SessionID string          `json:"session_id"`
	Outcome   resolve.Outcome `json:"outcome"`
	Warning   bool            `json:"warning"`
	Editor    editor.State    `json:"editor"`
}

// resolveLocation picks the initial position of the property pin. The
// stored record, if any, is the prior evidence.
func (s *Server) resolveLocation(ctx *gin.Context) {
	var body resolveRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	req := resolve.Request{
		Address:  body.Address,
		City:     body.City,
		State:    body.State,
		Editable: body.Editable,
	}

	stored, err := s.repo.Get(ctx.Param("id"))

	switch {
	case err == nil:
		if p, ok := stored.Point(); ok {
			req.Prior = &p
		}

		req.PriorCode = stored.Code()
	case !errors.Is(err, store.ErrNotFound):
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	var fix *spatial.Point
	if body.GPS != nil {
		fix = &spatial.Point{Lat: body.GPS.Lat, Lng: body.GPS.Lng}
	}

	resolver := *s.resolver
	resolver.Locator = geolocate.FromReport(fix, body.GPSError)

	start := time.Now()
	outcome := resolver.Resolve(ctx.Request.Context(), req)
	s.metrics.ObserveResolution(outcome, time.Since(start))

	ed := editor.New(body.Editable, nil, nil)
	if err := ed.Initialize(outcome); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, resolveResponse{
		SessionID: uuid.NewString(),
		Outcome:   outcome,
		Warning:   outcome.Diagnostic.Warning(),
		Editor:    ed.State(),
	})
}

// Edit events accepted by editLocation.
const (
	EventPointer     = "pointer"
	EventDrag        = "drag"
	EventCoordinates = "coordinates"
	EventCode        = "code"
)

type editRequest struct {
	Event   string   `json:"event" binding:"required,oneof=pointer drag coordinates code"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	LatText string   `json:"lat_text"`
	LngText string   `json:"lng_text"`
	Code    string   `json:"code"`
	Address *string  `json:"address"`
	City    *string  `json:"city"`
	State   *string  `json:"state"`
}

// editLocation replays one edit through an editor initialised from the
// stored record and persists the triple it emits.
func (s *Server) editLocation(ctx *gin.Context) {
	var body editRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	id := ctx.Param("id")

	loc, err := s.repo.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		loc, err = &store.PropertyLocation{PropertyID: id}, nil
	}

	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if body.Address != nil {
		loc.Address = *body.Address
	}

	if body.City != nil {
		loc.City = *body.City
	}

	if body.State != nil {
		loc.State = *body.State
	}

	changed := false
	ed := editor.New(true, func(lat, lng float64, code string) {
		loc.SetLocation(lat, lng, code)
		changed = true
	}, nil)

	if p, ok := startPosition(loc); ok {
		if err := ed.Initialize(resolve.Outcome{Position: p, Code: loc.Code()}); err != nil {
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

			return
		}
	}

	switch body.Event {
	case EventPointer, EventDrag:
		if body.Lat == nil || body.Lng == nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng are required"})

			return
		}

		if body.Event == EventPointer {
			err = ed.PointerSelect(*body.Lat, *body.Lng)
		} else {
			err = ed.MarkerDragEnd(*body.Lat, *body.Lng)
		}
	case EventCoordinates:
		err = ed.ManualCoordinateSubmit(body.LatText, body.LngText)
	case EventCode:
		err = ed.ManualCodeSubmit(body.Code)
	}

	s.metrics.ObserveEdit(body.Event, err == nil && changed)

	if err != nil {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      err.Error(),
			"last_error": ed.State().LastError,
			"editor":     ed.State(),
		})

		return
	}

	loc.Source = body.Event

	if err := s.repo.Save(loc); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{"location": loc, "editor": ed.State()})
}

// startPosition returns the position an editor starts from: the stored coordinates
// or, failing that, the stored code.
func startPosition(loc *store.PropertyLocation) (spatial.Point, bool) {
	if p, ok := loc.Point(); ok {
		return p, true
	}

	return spatial.Decode(loc.Code())
}

func (s *Server) clearLocation(ctx *gin.Context) {
	if err := s.repo.Clear(ctx.Param("id")); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	ctx.Status(http.StatusNoContent)
}

func (s *Server) nearby(ctx *gin.Context) {
	p, ok := queryPoint(ctx)
	if !ok {
		return
	}

	radius, err := strconv.ParseFloat(ctx.DefaultQuery("radius_km", "1"), 64)
	if err != nil || radius <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_km parameter"})

		return
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})

		return
	}

	found, err := s.repo.Nearby(p, radius, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if found == nil {
		found = []*store.NearbyLocation{}
	}

	ctx.JSON(http.StatusOK, found)
}

func (s *Server) sharedPins(ctx *gin.Context) {
	radius, err := strconv.ParseFloat(ctx.DefaultQuery("radius_m", "5"), 64)
	if err != nil || radius < 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_m parameter"})

		return
	}

	shared, err := store.SharedPins(s.repo, radius)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	if shared == nil {
		shared = []*store.SharedPin{}
	}

	ctx.JSON(http.StatusOK, shared)
}

func (s *Server) encode(ctx *gin.Context) {
	p, ok := queryPoint(ctx)
	if !ok {
		return
	}

	code := spatial.Encode(p)
	center, _ := spatial.Decode(code)

	ctx.JSON(http.StatusOK, gin.H{
		"code":         code,
		"position":     p.Normalize(),
		"cell_center":  center,
		"precision_km": spatial.PrecisionKm,
	})
}

func (s *Server) decode(ctx *gin.Context) {
	code := ctx.Param("code")

	p, ok := spatial.Decode(code)
	if !ok {
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": editor.MsgInvalidCode})

		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"position": p,
		"code":     spatial.Encode(p),
		"legacy":   spatial.IsLegacy(code),
	})
}

// queryPoint parses the lat and lng query parameters. Out of range values
// are rejected, not clamped.
func queryPoint(ctx *gin.Context) (spatial.Point, bool) {
	lat, errLat := strconv.ParseFloat(ctx.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(ctx.Query("lng"), 64)

	p := spatial.Point{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !p.Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid lat/lng parameters"})

		return spatial.Point{}, false
	}

	return p, true
}
