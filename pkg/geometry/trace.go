package geometry

import (
	gomath "math"

	"github.com/Faultbox/brushforge/pkg/math"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min math.Vec3
	Max math.Vec3
}

// BoundsOf returns the box enclosing pts.
func BoundsOf(pts []math.Vec3) AABB {
	if len(pts) == 0 {
		return AABB{}
	}
	b := AABB{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		b.Min = b.Min.Min(p)
		b.Max = b.Max.Max(p)
	}
	return b
}

// Expand grows the box by d on every side.
func (b AABB) Expand(d float64) AABB {
	e := math.Vec3{X: d, Y: d, Z: d}
	return AABB{Min: b.Min.Sub(e), Max: b.Max.Add(e)}
}

// Union returns the box enclosing both b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Segment is the line segment from Start to End.
type Segment struct {
	Start math.Vec3
	End   math.Vec3
}

// IntersectAABB tests the segment against a box using the slab method.
func (s Segment) IntersectAABB(box AABB) bool {
	tmin, tmax := 0.0, 1.0
	d := s.End.Sub(s.Start)
	for axis := 0; axis < 3; axis++ {
		o, dir := s.Start.Idx(axis), d.Idx(axis)
		lo, hi := box.Min.Idx(axis), box.Max.Idx(axis)
		if dir == 0 {
			if o < lo || o > hi {
				return false
			}
			continue
		}
		t1 := (lo - o) / dir
		t2 := (hi - o) / dir
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = gomath.Max(tmin, t1)
		tmax = gomath.Min(tmax, t2)
		if tmin > tmax {
			return false
		}
	}
	return true
}

// SegmentHits reports whether seg passes through the interior of s.
// Touching the surface does not count as a hit. ok is false when the segment
// has no usable direction; callers treat that as blocked.
func (k Kernel) SegmentHits(s *Solid, seg Segment) (hit, ok bool) {
	d := seg.End.Sub(seg.Start)
	if !d.IsFinite() || !seg.Start.IsFinite() || d.Length() < k.Epsilon {
		return false, false
	}
	if !seg.IntersectAABB(s.Bounds.Expand(k.Epsilon)) {
		return false, true
	}

	enter, exit := 0.0, 1.0
	for _, pl := range s.Planes {
		// Shrink the solid by epsilon so grazing contact is not a hit.
		da := pl.Distance(seg.Start) + k.Epsilon
		db := pl.Distance(seg.End) + k.Epsilon
		if da >= 0 && db >= 0 {
			return false, true
		}
		if da < 0 && db < 0 {
			continue
		}
		t := da / (da - db)
		if da > 0 {
			enter = gomath.Max(enter, t)
		} else {
			exit = gomath.Min(exit, t)
		}
		if enter >= exit {
			return false, true
		}
	}
	return enter < exit, true
}
