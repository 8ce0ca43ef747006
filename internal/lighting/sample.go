package lighting

import (
	gomath "math"

	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/geometry"
	"github.com/Faultbox/brushforge/pkg/math"
)

// State tracks how far a sample has progressed through the bake.
type State uint8

const (
	Unlit State = iota
	DirectLit
	IndirectAccumulating
	Final
)

func (s State) String() string {
	switch s {
	case DirectLit:
		return "direct-lit"
	case IndirectAccumulating:
		return "indirect-accumulating"
	case Final:
		return "final"
	default:
		return "unlit"
	}
}

// Sample is a point where radiance is computed.
type Sample struct {
	Position math.Vec3 // on the surface
	Origin   math.Vec3 // Position lifted along Normal, used for tracing
	Normal   math.Vec3 // lighting normal
	Area     float64   // surface area the sample stands for
	Radiance [3]float32
	State    State

	// Inside is the Brush.Global whose solid contains Origin, or -1. Faces
	// with an inverted normal trace from inside their own brush.
	Inside int
}

// FaceLighting locates one visible face's samples and lightmap tile.
type FaceLighting struct {
	Brush       int // Brush.Global
	Face        int
	SampleStart int
	SampleCount int
	Albedo      [3]float32
	Emission    [3]float32 // light the surface gives off itself

	// Lightmap grid, unused in vertex mode.
	Width, Height  int
	U, V           math.Vec3
	MinU, MinV     float64
	LuxelU, LuxelV float64
	Page, X, Y     int
}

// vertexNudge is how far vertex samples move from a corner toward the
// face centroid, as a fraction of the distance.
const vertexNudge = 0.01

// tilePadding separates lightmap tiles in the atlas.
const tilePadding = 1

func (b *Baker) sampleFace(brush *scene.Brush, fi int) (FaceLighting, []Sample) {
	face := &brush.Faces[fi]
	poly := brush.Polygon(fi)
	n := face.Plane.Normal
	ln := n
	inside := -1
	if face.Has(scene.AttrInvertNormal) {
		ln = n.Neg()
		inside = brush.Global
	}
	area := geometry.PolygonArea(poly, n)
	lift := ln.Scale(b.opts.SampleOffset)

	fl := FaceLighting{Face: fi}
	var samples []Sample

	if b.opts.Mode == ModeVertex {
		centroid := geometry.PolygonCentroid(poly)
		for _, corner := range poly {
			p := corner.Lerp(centroid, vertexNudge)
			samples = append(samples, Sample{
				Position: p,
				Origin:   p.Add(lift),
				Normal:   ln,
				Area:     area / float64(len(poly)),
				Inside:   inside,
			})
		}
		return fl, samples
	}

	u, v := geometry.PlaneBasis(n)
	minU, maxU := gomath.Inf(1), gomath.Inf(-1)
	minV, maxV := gomath.Inf(1), gomath.Inf(-1)
	for _, p := range poly {
		pu, pv := p.Dot(u), p.Dot(v)
		minU, maxU = gomath.Min(minU, pu), gomath.Max(maxU, pu)
		minV, maxV = gomath.Min(minV, pv), gomath.Max(maxV, pv)
	}

	maxDim := b.opts.PageSize - 2*tilePadding
	w, luxelU := gridAxis(maxU-minU, b.opts.LuxelSize, maxDim)
	h, luxelV := gridAxis(maxV-minV, b.opts.LuxelSize, maxDim)
	fl.Width, fl.Height = w, h
	fl.U, fl.V = u, v
	fl.MinU, fl.MinV = minU, minV
	fl.LuxelU, fl.LuxelV = luxelU, luxelV

	planeOrigin := n.Scale(face.Plane.Dist)
	texelArea := area / float64(w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			cu := minU + (float64(i)+0.5)*luxelU
			cv := minV + (float64(j)+0.5)*luxelV
			p := planeOrigin.Add(u.Scale(cu)).Add(v.Scale(cv))
			p = b.kernel.ClosestPointOnPolygon(poly, n, p)
			samples = append(samples, Sample{
				Position: p,
				Origin:   p.Add(lift),
				Normal:   ln,
				Area:     texelArea,
				Inside:   inside,
			})
		}
	}
	return fl, samples
}

// gridAxis returns the texel count along an axis of the given span and the
// luxel size actually used, which grows when the span would not fit.
func gridAxis(span, luxel float64, maxDim int) (int, float64) {
	n := int(gomath.Ceil(span / luxel))
	if n < 1 {
		n = 1
	}
	if n > maxDim {
		n = maxDim
		luxel = span / float64(n)
	}
	return n, luxel
}

// texel returns the grid cell containing world point p.
func (f *FaceLighting) texel(p math.Vec3) (int, int) {
	i := int(gomath.Floor((p.Dot(f.U) - f.MinU) / f.LuxelU))
	j := int(gomath.Floor((p.Dot(f.V) - f.MinV) / f.LuxelV))
	return clampInt(i, 0, f.Width-1), clampInt(j, 0, f.Height-1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
