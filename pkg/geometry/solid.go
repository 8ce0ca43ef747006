package geometry

import (
	"fmt"

	"github.com/Faultbox/brushforge/pkg/math"
)

// Face is one polygon of a solid.
type Face struct {
	Plane   int   // index of the source plane
	Indices []int // counter-clockwise loop into Solid.Vertices
}

// Solid is a closed convex polyhedron built from a brush.
type Solid struct {
	Planes   []Plane
	Vertices []math.Vec3
	Faces    []Face
	Bounds   AABB
}

// Polygon returns the vertex loop of face i.
func (s *Solid) Polygon(i int) []math.Vec3 {
	f := s.Faces[i]
	pts := make([]math.Vec3, len(f.Indices))
	for j, idx := range f.Indices {
		pts[j] = s.Vertices[idx]
	}
	return pts
}

// FaceNormal returns the outward normal of face i.
func (s *Solid) FaceNormal(i int) math.Vec3 {
	return s.Planes[s.Faces[i].Plane].Normal
}

// FaceArea returns the area of face i.
func (s *Solid) FaceArea(i int) float64 {
	return PolygonArea(s.Polygon(i), s.FaceNormal(i))
}

// Volume returns the enclosed volume. Positive when faces wind outward.
func (s *Solid) Volume() float64 {
	if len(s.Vertices) == 0 {
		return 0
	}
	ref := s.Vertices[0]
	var vol float64
	for _, f := range s.Faces {
		for _, tri := range FanTriangles(len(f.Indices), false) {
			a := s.Vertices[f.Indices[tri[0]]].Sub(ref)
			b := s.Vertices[f.Indices[tri[1]]].Sub(ref)
			c := s.Vertices[f.Indices[tri[2]]].Sub(ref)
			vol += a.Dot(b.Cross(c))
		}
	}
	return vol / 6
}

// Centroid returns the average of the solid's vertices.
func (s *Solid) Centroid() math.Vec3 {
	var c math.Vec3
	if len(s.Vertices) == 0 {
		return c
	}
	for _, v := range s.Vertices {
		c = c.Add(v)
	}
	return c.Scale(1 / float64(len(s.Vertices)))
}

// IsClosed reports whether every edge is shared by exactly two faces that
// traverse it in opposite directions.
func (s *Solid) IsClosed() bool {
	edges := make(map[[2]int]int)
	for _, f := range s.Faces {
		for i, a := range f.Indices {
			b := f.Indices[(i+1)%len(f.Indices)]
			edges[[2]int{a, b}]++
		}
	}
	for e, n := range edges {
		if n != 1 || edges[[2]int{e[1], e[0]}] != 1 {
			return false
		}
	}
	return len(edges) > 0
}

// ClipBrush turns a brush's planes into a closed convex solid. Each plane
// yields the polygon formed by its intersections with every pair of other
// planes that lie inside all planes. Planes coplanar with an earlier plane
// contribute nothing, and planes with no area (redundant planes) are dropped
// without error.
func (k Kernel) ClipBrush(planes []Plane) (*Solid, error) {
	if len(planes) < 4 {
		return nil, fmt.Errorf("%w: %d planes, need at least 4", ErrDegenerate, len(planes))
	}
	for i, p := range planes {
		if !p.Normal.IsFinite() || p.Normal.Length() < k.Epsilon {
			return nil, fmt.Errorf("%w: plane %d: %w", ErrDegenerate, i, ErrInvalidPlane)
		}
	}

	w := NewWelder(k.Epsilon)
	var faces []Face
	for i := range planes {
		if k.duplicateOf(planes, i) {
			continue
		}
		poly := k.planePolygon(planes, i)
		if len(poly) < 3 || PolygonArea(poly, planes[i].Normal) < k.Epsilon {
			continue
		}
		idx := weldLoop(w, poly)
		if idx == nil {
			continue
		}
		faces = append(faces, Face{Plane: i, Indices: idx})
	}
	if len(faces) < 4 {
		return nil, fmt.Errorf("%w: %d faces", ErrDegenerate, len(faces))
	}

	s := &Solid{
		Planes:   append([]Plane(nil), planes...),
		Vertices: w.Points(),
		Faces:    faces,
	}
	s.Bounds = BoundsOf(s.Vertices)
	if v := s.Volume(); v < k.Epsilon {
		return nil, fmt.Errorf("%w: volume %g", ErrDegenerate, v)
	}
	if !s.IsClosed() {
		return nil, fmt.Errorf("%w: solid is not closed", ErrDegenerate)
	}
	return s, nil
}

// Contains reports whether p lies inside every plane of the solid.
func (k Kernel) Contains(s *Solid, p math.Vec3) bool {
	for _, pl := range s.Planes {
		if pl.Distance(p) > k.Epsilon {
			return false
		}
	}
	return true
}

func (k Kernel) duplicateOf(planes []Plane, i int) bool {
	for j := 0; j < i; j++ {
		if k.Coplanar(planes[j], planes[i]) {
			return true
		}
	}
	return false
}

// planePolygon collects the vertices of the face lying on planes[i].
func (k Kernel) planePolygon(planes []Plane, i int) []math.Vec3 {
	var pts []math.Vec3
	for j := range planes {
		if j == i {
			continue
		}
		for m := j + 1; m < len(planes); m++ {
			if m == i {
				continue
			}
			p, ok := k.Intersect3(planes[i], planes[j], planes[m])
			if !ok || !k.insideAll(planes, p) || k.containsNear(pts, p) {
				continue
			}
			pts = append(pts, p)
		}
	}
	if len(pts) < 3 {
		return nil
	}
	return k.orderLoop(pts, planes[i].Normal)
}

func (k Kernel) insideAll(planes []Plane, p math.Vec3) bool {
	for _, pl := range planes {
		if pl.Distance(p) > k.Epsilon {
			return false
		}
	}
	return true
}

func (k Kernel) containsNear(pts []math.Vec3, p math.Vec3) bool {
	for _, q := range pts {
		if q.Sub(p).LengthSq() < k.Epsilon*k.Epsilon {
			return true
		}
	}
	return false
}

// compactLoop drops consecutive repeated indices, including the wrap-around.
func compactLoop(idx []int) []int {
	out := idx[:0]
	for _, v := range idx {
		if len(out) > 0 && out[len(out)-1] == v {
			continue
		}
		out = append(out, v)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}
