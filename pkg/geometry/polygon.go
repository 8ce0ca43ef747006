package geometry

import (
	gomath "math"
	"sort"

	"github.com/Faultbox/brushforge/pkg/math"
)

// PlaneBasis returns orthonormal in-plane axes u, v with u×v = n.
func PlaneBasis(n math.Vec3) (u, v math.Vec3) {
	// Start from the world axis least aligned with the normal.
	var axis math.Vec3
	ax, ay, az := gomath.Abs(n.X), gomath.Abs(n.Y), gomath.Abs(n.Z)
	switch {
	case ax <= ay && ax <= az:
		axis = math.Vec3{X: 1}
	case ay <= az:
		axis = math.Vec3{Y: 1}
	default:
		axis = math.Vec3{Z: 1}
	}
	u = axis.Sub(n.Scale(axis.Dot(n))).Normalize()
	v = n.Cross(u)
	return u, v
}

// Project returns the coordinates of p relative to origin along the in-plane
// axes u and v.
func Project(p, origin, u, v math.Vec3) math.Vec2 {
	d := p.Sub(origin)
	return math.Vec2{X: d.Dot(u), Y: d.Dot(v)}
}

// PolygonArea returns the signed area of a planar loop around normal n.
// Counter-clockwise loops (viewed from the side n points to) are positive.
func PolygonArea(pts []math.Vec3, n math.Vec3) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum math.Vec3
	for i := 1; i+1 < len(pts); i++ {
		sum = sum.Add(pts[i].Sub(pts[0]).Cross(pts[i+1].Sub(pts[0])))
	}
	return sum.Dot(n) / 2
}

// PolygonCentroid returns the area-weighted centroid of a convex loop.
// Falls back to the vertex average for zero-area loops.
func PolygonCentroid(pts []math.Vec3) math.Vec3 {
	if len(pts) == 0 {
		return math.Vec3{}
	}
	var avg math.Vec3
	for _, p := range pts {
		avg = avg.Add(p)
	}
	avg = avg.Scale(1 / float64(len(pts)))

	var c math.Vec3
	var total float64
	for i := 1; i+1 < len(pts); i++ {
		a := pts[i].Sub(pts[0]).Cross(pts[i+1].Sub(pts[0])).Length() / 2
		tc := pts[0].Add(pts[i]).Add(pts[i+1]).Scale(1.0 / 3)
		c = c.Add(tc.Scale(a))
		total += a
	}
	if total == 0 {
		return avg
	}
	return c.Scale(1 / total)
}

// FanTriangles returns fan triangulation indices for a convex loop of count
// vertices. Reversed fans keep the same triangles with flipped winding.
func FanTriangles(count int, reversed bool) [][3]int {
	if count < 3 {
		return nil
	}
	tris := make([][3]int, 0, count-2)
	for i := 1; i+1 < count; i++ {
		if reversed {
			tris = append(tris, [3]int{0, i + 1, i})
		} else {
			tris = append(tris, [3]int{0, i, i + 1})
		}
	}
	return tris
}

// ClosestPointOnPolygon returns the point of the convex loop nearest to p,
// after projecting p onto the loop's plane.
func (k Kernel) ClosestPointOnPolygon(pts []math.Vec3, n math.Vec3, p math.Vec3) math.Vec3 {
	if len(pts) == 0 {
		return p
	}
	q := p.Sub(n.Scale(p.Sub(pts[0]).Dot(n)))
	if len(pts) < 3 {
		return pts[0]
	}

	inside := true
	for i := range pts {
		a, b := pts[i], pts[(i+1)%len(pts)]
		if b.Sub(a).Cross(q.Sub(a)).Dot(n) < -k.Epsilon {
			inside = false
			break
		}
	}
	if inside {
		return q
	}

	best := pts[0]
	bestDist := gomath.Inf(1)
	for i := range pts {
		c := closestOnSegment(pts[i], pts[(i+1)%len(pts)], q)
		if d := c.Sub(q).LengthSq(); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func closestOnSegment(a, b, p math.Vec3) math.Vec3 {
	ab := b.Sub(a)
	l := ab.LengthSq()
	if l == 0 {
		return a
	}
	t := p.Sub(a).Dot(ab) / l
	t = gomath.Max(0, gomath.Min(1, t))
	return a.Add(ab.Scale(t))
}

// orderLoop sorts points counter-clockwise around n and removes collinear
// points. Ties in angle are broken by distance from the centroid so that
// the order never depends on input order.
func (k Kernel) orderLoop(pts []math.Vec3, n math.Vec3) []math.Vec3 {
	var c math.Vec3
	for _, p := range pts {
		c = c.Add(p)
	}
	c = c.Scale(1 / float64(len(pts)))
	u, v := PlaneBasis(n)

	type polar struct {
		p     math.Vec3
		angle float64
		dist  float64
	}
	ps := make([]polar, len(pts))
	for i, p := range pts {
		q := Project(p, c, u, v)
		ps[i] = polar{p: p, angle: q.Angle(), dist: q.Length()}
	}
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].angle != ps[j].angle {
			return ps[i].angle < ps[j].angle
		}
		return ps[i].dist < ps[j].dist
	})

	loop := make([]math.Vec3, len(ps))
	for i := range ps {
		loop[i] = ps[i].p
	}
	return k.dropCollinear(loop)
}

// dropCollinear removes vertices lying on the segment between their
// neighbours.
func (k Kernel) dropCollinear(loop []math.Vec3) []math.Vec3 {
	for len(loop) >= 3 {
		removed := false
		for i := range loop {
			prev := loop[(i+len(loop)-1)%len(loop)]
			next := loop[(i+1)%len(loop)]
			base := next.Sub(prev)
			bl := base.Length()
			if bl < k.Epsilon {
				loop = append(loop[:i], loop[i+1:]...)
				removed = true
				break
			}
			if loop[i].Sub(prev).Cross(base).Length()/bl < k.Epsilon {
				loop = append(loop[:i], loop[i+1:]...)
				removed = true
				break
			}
		}
		if !removed {
			break
		}
	}
	return loop
}
