// Package mapfile parses brush-based .map sources.
//
// Supported dialects are the standard Quake format, Valve 220 texture axes
// and the Quake 2 trailing "contents surface value" triple.
package mapfile

import (
	"errors"
	"fmt"
	gomath "math"
	"strconv"
	"strings"

	"github.com/Faultbox/brushforge/pkg/math"
)

// ErrSyntax is returned for malformed map text.
var ErrSyntax = errors.New("map syntax error")

// Format identifies the texture projection dialect of a map.
type Format int

const (
	FormatQuake Format = iota
	FormatValve220
)

func (f Format) String() string {
	switch f {
	case FormatValve220:
		return "valve220"
	default:
		return "quake"
	}
}

// Map is a parsed map source.
type Map struct {
	Format   Format
	Entities []*Entity
}

// BrushCount returns the number of brushes across all entities.
func (m *Map) BrushCount() int {
	n := 0
	for _, e := range m.Entities {
		n += len(e.Brushes)
	}
	return n
}

// Entity is one { ... } block of the map.
type Entity struct {
	Line       int
	Properties Properties
	Brushes    []*Brush
}

// ClassName returns the entity's classname property.
func (e *Entity) ClassName() string {
	v, _ := e.Properties.Get("classname")
	return v
}

// Brush is a convex volume given by its bounding planes.
type Brush struct {
	Line  int
	Faces []*Face
}

// Face is one plane of a brush with its texture projection.
type Face struct {
	Line    int
	Points  [3]math.Vec3
	Texture string

	// Valve220 faces carry explicit texture axes.
	Valve bool
	UAxis math.Vec3
	VAxis math.Vec3

	Offset   [2]float64
	Rotation float64
	Scale    [2]float64

	// Quake 2 extension.
	HasSurface bool
	Contents   uint32
	Surface    uint32
	Value      int32
}

// Properties is an ordered key/value list. Setting an existing key replaces
// its value and keeps its original position.
type Properties struct {
	keys   []string
	values map[string]string
}

// Set stores value under key.
func (p *Properties) Set(key, value string) {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key.
func (p *Properties) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in first-declaration order.
func (p *Properties) Keys() []string {
	return p.keys
}

// Len returns the number of distinct keys.
func (p *Properties) Len() int {
	return len(p.keys)
}

// ParseVec3 parses a "x y z" property value.
func ParseVec3(s string) (math.Vec3, error) {
	f, err := ParseFloats(s, 3)
	if err != nil {
		return math.Vec3{}, err
	}
	return math.Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
}

// ParseFloats parses exactly n whitespace-separated numbers.
func ParseFloats(s string, n int) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d numbers, got %d in %q", n, len(fields), s)
	}
	out := make([]float64, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", f)
		}
		out[i] = v
	}
	return out, nil
}

// ParseColor parses "r g b" as either 0-1 or 0-255 components. Extra
// fields, such as a trailing brightness, are ignored.
func ParseColor(s string) ([3]float32, error) {
	fields := strings.Fields(s)
	if len(fields) < 3 {
		return [3]float32{}, fmt.Errorf("expected 3 colour components in %q", s)
	}
	f, err := ParseFloats(strings.Join(fields[:3], " "), 3)
	if err != nil {
		return [3]float32{}, err
	}
	for _, v := range f {
		if gomath.IsNaN(v) || gomath.IsInf(v, 0) {
			return [3]float32{}, fmt.Errorf("invalid colour %q", s)
		}
	}
	return NormalizeColor(f), nil
}

// NormalizeColor maps a 0-255 or 0-1 colour to 0-1. Any component above 1
// marks the 0-255 form.
func NormalizeColor(c []float64) [3]float32 {
	scale := 1.0
	for _, v := range c {
		if v > 1 {
			scale = 1.0 / 255
		}
	}
	var out [3]float32
	for i := 0; i < 3 && i < len(c); i++ {
		out[i] = float32(gomath.Max(0, gomath.Min(1, c[i]*scale)))
	}
	return out
}
