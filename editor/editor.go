// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package editor keeps the position, the location code and the manual input
// fields of a property pin in sync while the user edits it.
package editor

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jcodagnone/pinpoint/resolve"
	"github.com/jcodagnone/pinpoint/spatial"
	"github.com/jcodagnone/pinpoint/utils/textutils"
)

// Errors returned by the event methods. Rejected input always wraps
// ErrInvalidInput and is also recorded in State.LastError.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrReadOnly     = errors.New("editor is read-only")
	ErrClosed       = errors.New("editor is closed")
)

// plainDecimal is what manual input may look like after normalisation.
// strconv alone would also take exponents, hex floats and Inf.
var plainDecimal = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d*)?|\.\d+)$`)

// Messages stored in State.LastError.
const (
	MsgEmptyCode        = "empty code"
	MsgInvalidCode      = "invalid code"
	MsgInvalidLatitude  = "invalid latitude"
	MsgInvalidLongitude = "invalid longitude"
	MsgLatitudeRange    = "latitude out of range"
	MsgLongitudeRange   = "longitude out of range"
	MsgInvalidPosition  = "invalid position"
)

// MapView draws the pin. Implementations report pointer selections and
// marker drags back through Editor.PointerSelect and Editor.MarkerDragEnd.
type MapView interface {
	Render(p spatial.Point, code string)
}

// MapViewFunc adapts a function to the MapView interface.
type MapViewFunc func(p spatial.Point, code string)

// Render calls f.
func (f MapViewFunc) Render(p spatial.Point, code string) {
	f(p, code)
}

// ChangeFunc receives every accepted change.
type ChangeFunc func(lat, lng float64, code string)

// State is the editor state. Pending fields hold what the user typed and are
// only turned into a position on submit.
type State struct {
	Position    spatial.Point `json:"position"`
	Code        string        `json:"code"`
	PendingLat  string        `json:"pending_lat"`
	PendingLng  string        `json:"pending_lng"`
	PendingCode string        `json:"pending_code"`
	LastError   string        `json:"last_error,omitempty"`
}

// Consistent reports whether Code decodes back to Position.
func (s State) Consistent() bool {
	p, ok := spatial.Decode(s.Code)

	return ok && spatial.DistanceKm(p, s.Position) < spatial.PrecisionKm
}

// Editor is the position editing state machine. Events are processed one at
// a time; an Editor is not safe for concurrent use.
type Editor struct {
	editable bool
	onChange ChangeFunc
	view     MapView

	state  State
	closed bool
}

// New creates an editor. Read-only editors only accept Initialize. onChange
// and view may be nil.
func New(editable bool, onChange ChangeFunc, view MapView) *Editor {
	e := &Editor{editable: editable, onChange: onChange, view: view}

	origin := spatial.Point{}
	e.state = State{Position: origin, Code: spatial.Encode(origin)}
	e.state.PendingLat, e.state.PendingLng, e.state.PendingCode = formatFields(origin, e.state.Code)

	return e
}

// Editable reports whether edit events are accepted.
func (e *Editor) Editable() bool {
	return e.editable
}

// State returns a copy of the current state.
func (e *Editor) State() State {
	return e.state
}

// Close tears the editor down. Every later event, including a late
// Initialize from a resolution still in flight, is ignored.
func (e *Editor) Close() {
	e.closed = true
}

// Initialize loads a resolved position. Codes that are legacy or do not
// match the position are re-encoded. It never fires the change callback.
func (e *Editor) Initialize(o resolve.Outcome) error {
	if e.closed {
		return ErrClosed
	}

	p := o.Position.Normalize()

	code := o.Code
	if decoded, ok := spatial.Decode(code); !ok || spatial.IsLegacy(code) ||
		spatial.DistanceKm(decoded, p) >= spatial.PrecisionKm {
		code = spatial.Encode(p)
	}

	e.state = State{Position: p, Code: code}
	e.state.PendingLat, e.state.PendingLng, e.state.PendingCode = formatFields(p, code)

	if e.view != nil {
		e.view.Render(p, code)
	}

	return nil
}

// PointerSelect moves the pin where the user clicked. Coordinates are
// clamped and wrapped into range.
func (e *Editor) PointerSelect(lat, lng float64) error {
	if err := e.guard(); err != nil {
		return err
	}

	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return e.reject(MsgInvalidPosition)
	}

	e.accept(spatial.Point{Lat: lat, Lng: lng}.Normalize())

	return nil
}

// MarkerDragEnd moves the pin where the user dropped it.
func (e *Editor) MarkerDragEnd(lat, lng float64) error {
	return e.PointerSelect(lat, lng)
}

// ManualCoordinateSubmit parses typed coordinates. Unlike pointer events,
// out of range values are rejected instead of clamped.
func (e *Editor) ManualCoordinateSubmit(latText, lngText string) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.state.PendingLat, e.state.PendingLng = latText, lngText

	lat, err := ParseCoordinate(latText)
	if err != nil {
		return e.reject(MsgInvalidLatitude)
	}

	lng, err := ParseCoordinate(lngText)
	if err != nil {
		return e.reject(MsgInvalidLongitude)
	}

	if lat < -90 || lat > 90 {
		return e.reject(MsgLatitudeRange)
	}

	if lng < -180 || lng > 180 {
		return e.reject(MsgLongitudeRange)
	}

	e.accept(spatial.Point{Lat: lat, Lng: lng}.Normalize())

	return nil
}

// ManualCodeSubmit moves the pin to a typed location code. The position
// becomes the centre of the code cell.
func (e *Editor) ManualCodeSubmit(text string) error {
	if err := e.guard(); err != nil {
		return err
	}

	e.state.PendingCode = text

	code := strings.TrimSpace(text)
	if code == "" {
		return e.reject(MsgEmptyCode)
	}

	p, ok := spatial.Decode(code)
	if !ok {
		return e.reject(MsgInvalidCode)
	}

	e.accept(p)

	return nil
}

// SetPendingLat records a keystroke in the latitude field.
func (e *Editor) SetPendingLat(text string) {
	if e.guard() == nil {
		e.state.PendingLat = text
	}
}

// SetPendingLng records a keystroke in the longitude field.
func (e *Editor) SetPendingLng(text string) {
	if e.guard() == nil {
		e.state.PendingLng = text
	}
}

// SetPendingCode records a keystroke in the code field.
func (e *Editor) SetPendingCode(text string) {
	if e.guard() == nil {
		e.state.PendingCode = text
	}
}

// ParseCoordinate parses a typed decimal number. Unicode minus signs,
// full-width digits and a decimal comma are accepted.
func ParseCoordinate(text string) (float64, error) {
	s := textutils.NormalizeDecimal(text)
	if s == "" {
		return 0, fmt.Errorf("%w: empty number", ErrInvalidInput)
	}

	if !plainDecimal.MatchString(s) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, text)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, text)
	}

	return v, nil
}

func (e *Editor) guard() error {
	if e.closed {
		return ErrClosed
	}

	if !e.editable {
		return ErrReadOnly
	}

	return nil
}

func (e *Editor) reject(msg string) error {
	e.state.LastError = msg

	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// accept commits p, re-deriving the code and the text fields in the same
// step, and fires the callback once.
func (e *Editor) accept(p spatial.Point) {
	code := spatial.Encode(p)

	e.state.Position = p
	e.state.Code = code
	e.state.PendingLat, e.state.PendingLng, e.state.PendingCode = formatFields(p, code)
	e.state.LastError = ""

	if e.view != nil {
		e.view.Render(p, code)
	}

	if e.onChange != nil {
		e.onChange(p.Lat, p.Lng, code)
	}
}

func formatFields(p spatial.Point, code string) (string, string, string) {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64), strconv.FormatFloat(p.Lng, 'f', -1, 64), code
}
