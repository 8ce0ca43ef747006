package lighting

import (
	gomath "math"

	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/math"
)

// LitScene is a scene with its baked lighting.
type LitScene struct {
	Scene   *scene.Scene
	Lights  []Light
	Mode    Mode
	Ambient [3]float32 // floor added to every sample
	Faces   []FaceLighting
	Samples []Sample
	Pages   []Page

	faceIndex map[[2]int]int
}

// Face returns the lighting record of face fi on the brush with the given
// declaration index. Faces that are not rendered have none.
func (l *LitScene) Face(brush, fi int) (*FaceLighting, bool) {
	i, ok := l.faceIndex[[2]int{brush, fi}]
	if !ok {
		return nil, false
	}
	return &l.Faces[i], true
}

// FaceSamples returns the samples of a face record.
func (l *LitScene) FaceSamples(f *FaceLighting) []Sample {
	return l.Samples[f.SampleStart : f.SampleStart+f.SampleCount]
}

// RadianceAt returns the radiance for point p on a face. Lightmap faces
// answer with the texel containing p, vertex faces with the nearest corner
// sample.
func (l *LitScene) RadianceAt(brush, fi int, p math.Vec3) [3]float32 {
	f, ok := l.Face(brush, fi)
	if !ok {
		return [3]float32{}
	}
	samples := l.FaceSamples(f)
	if l.Mode == ModeLightmap {
		i, j := f.texel(p)
		return samples[j*f.Width+i].Radiance
	}
	best, bestD := 0, gomath.Inf(1)
	for i := range samples {
		if d := samples[i].Position.Sub(p).LengthSq(); d < bestD {
			best, bestD = i, d
		}
	}
	return samples[best].Radiance
}

// LightmapUV returns the atlas page and normalized coordinates for point p
// on a face. Coordinates stay half a texel inside the tile so filtering
// never reads a neighbour.
func (l *LitScene) LightmapUV(brush, fi int, p math.Vec3) (int, [2]float32, bool) {
	if l.Mode != ModeLightmap {
		return 0, [2]float32{}, false
	}
	f, ok := l.Face(brush, fi)
	if !ok {
		return 0, [2]float32{}, false
	}
	tu := (p.Dot(f.U) - f.MinU) / f.LuxelU
	tv := (p.Dot(f.V) - f.MinV) / f.LuxelV
	tu = gomath.Max(0.5, gomath.Min(float64(f.Width)-0.5, tu))
	tv = gomath.Max(0.5, gomath.Min(float64(f.Height)-0.5, tv))
	size := float64(l.Pages[f.Page].Size)
	return f.Page, [2]float32{
		float32((float64(f.X) + tu) / size),
		float32((float64(f.Y) + tv) / size),
	}, true
}

// FaceAverage returns the mean radiance over a face's samples.
func (l *LitScene) FaceAverage(brush, fi int) [3]float32 {
	f, ok := l.Face(brush, fi)
	if !ok || f.SampleCount == 0 {
		return [3]float32{}
	}
	var sum [3]float32
	for _, s := range l.FaceSamples(f) {
		sum[0] += s.Radiance[0]
		sum[1] += s.Radiance[1]
		sum[2] += s.Radiance[2]
	}
	n := float32(f.SampleCount)
	return [3]float32{sum[0] / n, sum[1] / n, sum[2] / n}
}
