package geometry

import (
	gomath "math"
	"slices"

	"github.com/Faultbox/brushforge/pkg/math"
)

// Welder merges points closer than epsilon into one representative.
// The first point added to a cluster is kept, so welding is idempotent.
type Welder struct {
	eps    float64
	cells  map[[3]int64][]int
	points []math.Vec3
}

// NewWelder returns a welder with the given tolerance.
func NewWelder(eps float64) *Welder {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	return &Welder{eps: eps, cells: make(map[[3]int64][]int)}
}

func (w *Welder) cell(p math.Vec3) [3]int64 {
	return [3]int64{
		int64(gomath.Floor(p.X / w.eps)),
		int64(gomath.Floor(p.Y / w.eps)),
		int64(gomath.Floor(p.Z / w.eps)),
	}
}

// Find returns the index of a stored point within epsilon of p, or -1.
// When several qualify, the earliest added wins.
func (w *Welder) Find(p math.Vec3) int {
	c := w.cell(p)
	best := -1
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				for _, idx := range w.cells[[3]int64{c[0] + dx, c[1] + dy, c[2] + dz}] {
					if best >= 0 && idx > best {
						continue
					}
					if w.points[idx].Sub(p).LengthSq() <= w.eps*w.eps {
						best = idx
					}
				}
			}
		}
	}
	return best
}

// Add returns the index of p's representative, storing p if it is new.
func (w *Welder) Add(p math.Vec3) int {
	if idx := w.Find(p); idx >= 0 {
		return idx
	}
	idx := len(w.points)
	w.points = append(w.points, p)
	c := w.cell(p)
	w.cells[c] = append(w.cells[c], idx)
	return idx
}

// Points returns the representatives in insertion order.
func (w *Welder) Points() []math.Vec3 {
	return w.points
}

// Len returns the number of representatives.
func (w *Welder) Len() int {
	return len(w.points)
}

// Weld rebuilds s with coincident vertices merged. Faces that collapse
// below three vertices are dropped.
func (k Kernel) Weld(s *Solid) *Solid {
	w := NewWelder(k.Epsilon)
	out := &Solid{Planes: s.Planes}
	for _, f := range s.Faces {
		pts := make([]math.Vec3, len(f.Indices))
		for j, i := range f.Indices {
			pts[j] = s.Vertices[i]
		}
		idx := weldLoop(w, pts)
		if idx == nil {
			continue
		}
		out.Faces = append(out.Faces, Face{Plane: f.Plane, Indices: idx})
	}
	out.Vertices = w.Points()
	out.Bounds = BoundsOf(out.Vertices)
	return out
}

// weldLoop maps a polygon loop onto w and returns its compacted indices, or
// nil when fewer than three distinct vertices remain. Points are added to w
// only once the loop survives, so a collapsed face leaves no unreferenced
// vertices.
func weldLoop(w *Welder, pts []math.Vec3) []int {
	idx := make([]int, len(pts))
	var fresh []math.Vec3
	for i, p := range pts {
		if j := w.Find(p); j >= 0 {
			idx[i] = j
			continue
		}
		j := slices.IndexFunc(fresh, func(q math.Vec3) bool {
			return q.Sub(p).LengthSq() <= w.eps*w.eps
		})
		if j < 0 {
			j = len(fresh)
			fresh = append(fresh, p)
		}
		// pending points get negative ids until the loop is known to survive
		idx[i] = -1 - j
	}
	idx = compactLoop(idx)
	if len(idx) < 3 {
		return nil
	}
	for i, v := range idx {
		if v < 0 {
			idx[i] = w.Add(fresh[-1-v])
		}
	}
	return idx
}
