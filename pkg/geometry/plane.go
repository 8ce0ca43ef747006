// Package geometry builds closed convex solids from brush plane sets.
//
// Every tolerance test goes through a Kernel value so that a compile run
// uses one epsilon for all comparisons and stays reproducible.
package geometry

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/brushforge/pkg/math"
)

// Geometry errors.
var (
	ErrDegenerate   = errors.New("degenerate brush")
	ErrInvalidPlane = errors.New("invalid plane")
)

// DefaultEpsilon is the tolerance used when none is configured.
const DefaultEpsilon = 1e-5

// Kernel carries the tolerance shared by all geometry operations.
type Kernel struct {
	Epsilon float64
}

// NewKernel returns a kernel using eps, or DefaultEpsilon if eps is not positive.
func NewKernel(eps float64) Kernel {
	if eps <= 0 || gomath.IsNaN(eps) {
		eps = DefaultEpsilon
	}
	return Kernel{Epsilon: eps}
}

// Plane is a half-space boundary. Points with Normal·p - Dist <= 0 are inside.
type Plane struct {
	Normal math.Vec3
	Dist   float64
}

// Distance returns the signed distance from pt to the plane.
func (p Plane) Distance(pt math.Vec3) float64 {
	return p.Normal.Dot(pt) - p.Dist
}

// Flip returns the plane facing the opposite way.
func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Neg(), Dist: -p.Dist}
}

// String returns a compact representation for log output.
func (p Plane) String() string {
	return fmt.Sprintf("(%g %g %g) %g", p.Normal.X, p.Normal.Y, p.Normal.Z, p.Dist)
}

// NewPlane normalizes normal and dist into a plane.
func (k Kernel) NewPlane(normal math.Vec3, dist float64) (Plane, error) {
	l := normal.Length()
	if !normal.IsFinite() || gomath.IsNaN(dist) || gomath.IsInf(dist, 0) {
		return Plane{}, fmt.Errorf("%w: non-finite components", ErrInvalidPlane)
	}
	if l < k.Epsilon {
		return Plane{}, fmt.Errorf("%w: normal length %g", ErrInvalidPlane, l)
	}
	return Plane{Normal: normal.Scale(1 / l), Dist: dist / l}, nil
}

// PlaneFromPoints builds a plane from three points in map order.
// The normal is (a-b)×(c-b), which faces out of the brush for points listed
// clockwise when viewed from outside.
func (k Kernel) PlaneFromPoints(a, b, c math.Vec3) (Plane, error) {
	n := a.Sub(b).Cross(c.Sub(b))
	l := n.Length()
	if l < k.Epsilon {
		return Plane{}, fmt.Errorf("%w: collinear points", ErrInvalidPlane)
	}
	n = n.Scale(1 / l)
	return Plane{Normal: n, Dist: n.Dot(b)}, nil
}

// Coplanar reports whether a and b describe the same plane within tolerance.
func (k Kernel) Coplanar(a, b Plane) bool {
	return gomath.Abs(a.Normal.X-b.Normal.X) < k.Epsilon &&
		gomath.Abs(a.Normal.Y-b.Normal.Y) < k.Epsilon &&
		gomath.Abs(a.Normal.Z-b.Normal.Z) < k.Epsilon &&
		gomath.Abs(a.Dist-b.Dist) < k.Epsilon
}

// Intersect3 returns the single point shared by three planes.
// ok is false when two or more of the planes are (nearly) parallel.
func (k Kernel) Intersect3(a, b, c Plane) (math.Vec3, bool) {
	m := mgl64.Mat3FromRows(
		mgl64.Vec3{a.Normal.X, a.Normal.Y, a.Normal.Z},
		mgl64.Vec3{b.Normal.X, b.Normal.Y, b.Normal.Z},
		mgl64.Vec3{c.Normal.X, c.Normal.Y, c.Normal.Z},
	)
	if gomath.Abs(m.Det()) < k.Epsilon {
		return math.Vec3{}, false
	}
	p := m.Inv().Mul3x1(mgl64.Vec3{a.Dist, b.Dist, c.Dist})
	v := math.Vec3{X: p[0], Y: p[1], Z: p[2]}
	if !v.IsFinite() {
		return math.Vec3{}, false
	}
	return v, true
}
