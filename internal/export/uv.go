package export

import (
	gomath "math"

	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/math"
)

// baseAxes are the axial projection planes: normal, u axis, v axis.
var baseAxes = [6][3]math.Vec3{
	{{Z: 1}, {X: 1}, {Y: -1}},
	{{Z: -1}, {X: 1}, {Y: -1}},
	{{X: 1}, {Y: 1}, {Z: -1}},
	{{X: -1}, {Y: 1}, {Z: -1}},
	{{Y: 1}, {X: 1}, {Z: -1}},
	{{Y: -1}, {X: 1}, {Z: -1}},
}

// textureAxes returns the scaled u and v axes of a face projection.
func textureAxes(p scene.Projection, n math.Vec3) (math.Vec3, math.Vec3) {
	su, sv := scaleOr1(p.Scale[0]), scaleOr1(p.Scale[1])
	if p.Valve {
		return p.UAxis.Scale(1 / su), p.VAxis.Scale(1 / sv)
	}

	best, bestDot := 0, 0.0
	for i, a := range baseAxes {
		if d := n.Dot(a[0]); d > bestDot {
			best, bestDot = i, d
		}
	}
	u, v := baseAxes[best][1], baseAxes[best][2]

	if p.Rotation != 0 {
		sinv, cosv := rotation(p.Rotation)
		su0, sv0 := axisIndex(u), axisIndex(v)
		u = rotateAxis(u, su0, sv0, sinv, cosv)
		v = rotateAxis(v, su0, sv0, sinv, cosv)
	}
	return u.Scale(1 / su), v.Scale(1 / sv)
}

// rotation returns exact values for right angles.
func rotation(deg float64) (float64, float64) {
	switch gomath.Mod(gomath.Mod(deg, 360)+360, 360) {
	case 0:
		return 0, 1
	case 90:
		return 1, 0
	case 180:
		return 0, -1
	case 270:
		return -1, 0
	}
	r := deg * gomath.Pi / 180
	return gomath.Sin(r), gomath.Cos(r)
}

func axisIndex(a math.Vec3) int {
	switch {
	case a.X != 0:
		return 0
	case a.Y != 0:
		return 1
	default:
		return 2
	}
}

func rotateAxis(a math.Vec3, s, t int, sinv, cosv float64) math.Vec3 {
	c := a.Array()
	ns := cosv*c[s] - sinv*c[t]
	nt := sinv*c[s] + cosv*c[t]
	c[s], c[t] = ns, nt
	return math.Vec3{X: c[0], Y: c[1], Z: c[2]}
}

func scaleOr1(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}

// textureUV projects p and normalizes by the material size.
func textureUV(p math.Vec3, u, v math.Vec3, proj scene.Projection, width, height int) [2]float32 {
	w, h := float64(width), float64(height)
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	s := p.Dot(u) + proj.Offset[0]
	t := p.Dot(v) + proj.Offset[1]
	return [2]float32{float32(s / w), float32(t / h)}
}
