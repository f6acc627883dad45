// Package snapshot builds the normalized, hashable projections of ledgered
// entities. Two inputs that mean the same thing must produce the same snapshot,
// and therefore the same snapshot hash, whatever order or spelling they arrived in.
package snapshot

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/canonicalize"
)

// MaxEvidenceRefs caps evidence reference lists.
const MaxEvidenceRefs = 10

// CoordinateDecimals is the fixed precision coordinates are rounded to.
const CoordinateDecimals = 6

// Hash returns the canonical digest of a normalized snapshot.
func Hash(snapshot any) (string, error) {
	return canonicalize.CanonicalHash(snapshot)
}

// Text NFC-normalizes s, trims it and collapses internal whitespace runs to one space.
// Empty results are rejected when required; results longer than maxRunes are rejected.
func Text(field, s string, maxRunes int, required bool) (string, error) {
	s = strings.Join(strings.Fields(norm.NFC.String(s)), " ")
	if s == "" && required {
		return "", invalid(field, "is required")
	}
	if maxRunes > 0 && utf8.RuneCountInString(s) > maxRunes {
		return "", invalid(field, "exceeds %d characters", maxRunes)
	}
	return s, nil
}

// Enum upper-cases s and turns spaces and dashes into underscores before checking
// membership. An empty value yields def, or an error when def is empty.
func Enum(field, s string, allowed []string, def string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if def == "" {
			return "", invalid(field, "is required")
		}
		return def, nil
	}
	s = strings.ToUpper(strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '\t' {
			return '_'
		}
		return r
	}, s))
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	if !slices.Contains(allowed, s) {
		return "", invalid(field, "%q is not one of %s", s, strings.Join(allowed, ", "))
	}
	return s, nil
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // no negative zero
	}
	return r
}

// Coordinate rejects non-finite and out-of-range values and rounds to CoordinateDecimals.
func Coordinate(field string, v, lo, hi float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid(field, "is not a finite number")
	}
	if v < lo || v > hi {
		return 0, invalid(field, "%v is outside [%v, %v]", v, lo, hi)
	}
	return Round(v, CoordinateDecimals), nil
}

// Latitude validates a latitude in degrees.
func Latitude(field string, v float64) (float64, error) { return Coordinate(field, v, -90, 90) }

// Longitude validates a longitude in degrees.
func Longitude(field string, v float64) (float64, error) { return Coordinate(field, v, -180, 180) }

// Point is a normalized coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint normalizes an optional coordinate pair. Both halves must be given or neither.
func NewPoint(field string, lat, lng *float64) (*Point, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, invalid(field, "latitude and longitude must be provided together")
	}
	var (
		p   Point
		err error
	)
	if p.Lat, err = Latitude(field+".lat", *lat); err != nil {
		return nil, err
	}
	if p.Lng, err = Longitude(field+".lng", *lng); err != nil {
		return nil, err
	}
	return &p, nil
}

// BoundsFields is raw bounding-box input.
type BoundsFields struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Bounds is a normalized bounding box.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// NewBounds normalizes an optional bounding box; south may not lie north of north.
// East may be less than west for boxes crossing the antimeridian.
func NewBounds(field string, in *BoundsFields) (*Bounds, error) {
	if in == nil {
		return nil, nil
	}
	var (
		b   Bounds
		err error
	)
	if b.North, err = Latitude(field+".north", in.North); err != nil {
		return nil, err
	}
	if b.South, err = Latitude(field+".south", in.South); err != nil {
		return nil, err
	}
	if b.East, err = Longitude(field+".east", in.East); err != nil {
		return nil, err
	}
	if b.West, err = Longitude(field+".west", in.West); err != nil {
		return nil, err
	}
	if b.South > b.North {
		return nil, invalid(field, "south %v is north of north %v", b.South, b.North)
	}
	return &b, nil
}

// RefList trims each reference, drops empties and duplicates (keeping first
// occurrence order) and keeps at most maxRefs entries. The result is never nil.
func RefList(field string, refs []string, maxRefs, maxRunes int) ([]string, error) {
	out := make([]string, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		r, err := Text(field, r, maxRunes, false)
		if err != nil {
			return nil, err
		}
		if r == "" {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
		if len(out) == maxRefs {
			break
		}
	}
	return out, nil
}
