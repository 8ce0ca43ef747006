package export

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/brushforge/pkg/geometry"
	"github.com/Faultbox/brushforge/pkg/math"
)

// Options configures the export.
type Options struct {
	// Scale multiplies every position. Zero means 1; negative values
	// mirror the level.
	Scale float64
	// UpAxis is the output up axis, "z" (map convention) or "y".
	UpAxis string
	// Epsilon welds collision vertices, in map units.
	Epsilon float64
}

// DefaultOptions returns map-space output.
func DefaultOptions() Options {
	return Options{Scale: 1, UpAxis: "z", Epsilon: geometry.DefaultEpsilon}
}

func (o *Options) normalize() error {
	if o.Scale == 0 {
		o.Scale = 1
	}
	if o.Epsilon <= 0 {
		o.Epsilon = geometry.DefaultEpsilon
	}
	switch o.UpAxis {
	case "", "z", "Z":
		o.UpAxis = "z"
	case "y", "Y":
		o.UpAxis = "y"
	default:
		return fmt.Errorf("%w: unknown up axis %q", ErrExport, o.UpAxis)
	}
	return nil
}

// Transform maps scene space to output space.
type Transform struct {
	m      math.Mat4
	mirror bool
}

// NewTransform builds the output transform for opts.
func NewTransform(opts Options) (Transform, error) {
	if err := opts.normalize(); err != nil {
		return Transform{}, err
	}
	axes := math.Identity()
	if opts.UpAxis == "y" {
		// (x, y, z) -> (x, z, -y)
		axes = math.RotateX(-gomath.Pi / 2)
	}
	m := axes.Mul(math.Scale(opts.Scale, opts.Scale, opts.Scale))
	return Transform{m: m, mirror: m.Determinant3() < 0}, nil
}

// Point transforms a position.
func (t Transform) Point(p math.Vec3) math.Vec3 {
	return t.m.TransformPoint(p)
}

// Normal transforms a unit normal.
func (t Transform) Normal(n math.Vec3) math.Vec3 {
	return t.m.TransformDirection(n).Normalize()
}

// Mirrors reports whether the transform reverses winding.
func (t Transform) Mirrors() bool {
	return t.mirror
}
