package lighting

import (
	"github.com/chewxy/math32"
)

// bounce computes one indirect generation from the previous one. Every
// BounceStride-th sample of a face emits what it received, scaled by the
// retention factor and optionally the face albedo, over the area of the
// samples it stands for.
func (b *Baker) bounce(lit *LitScene, prev [][3]float32, occ *Occluders) ([][3]float32, error) {
	type emitter struct {
		face     int
		sample   int
		emission [3]float32
		area     float32
	}

	stride := b.opts.BounceStride
	var emitters []emitter
	for fi := range lit.Faces {
		f := &lit.Faces[fi]
		for k := 0; k < f.SampleCount; k += stride {
			i := f.SampleStart + k
			n := stride
			if k+n > f.SampleCount {
				n = f.SampleCount - k
			}
			e := emitter{face: fi, sample: i, area: float32(lit.Samples[i].Area) * float32(n)}
			for c := 0; c < 3; c++ {
				e.emission[c] = prev[i][c] * b.opts.BounceRetention * f.Albedo[c]
			}
			if e.emission == [3]float32{} {
				continue
			}
			emitters = append(emitters, e)
		}
	}

	next := make([][3]float32, len(lit.Samples))
	for i := range lit.Samples {
		lit.Samples[i].State = IndirectAccumulating
	}
	if len(emitters) == 0 {
		return next, nil
	}

	err := b.perFace(lit, func(f *FaceLighting) {
		self := lit.faceIndex[[2]int{f.Brush, f.Face}]
		for r := f.SampleStart; r < f.SampleStart+f.SampleCount; r++ {
			rs := &lit.Samples[r]
			var sum [3]float32
			for _, e := range emitters {
				if e.face == self {
					continue
				}
				es := &lit.Samples[e.sample]
				delta := rs.Origin.Sub(es.Origin)
				d := float32(delta.Length())
				if d == 0 {
					continue
				}
				cosE := float32(es.Normal.Dot(delta)) / d
				cosR := -float32(rs.Normal.Dot(delta)) / d
				if cosE <= 0 || cosR <= 0 {
					continue
				}
				if !occ.Visible(es.Origin, rs.Origin, es.Inside, rs.Inside) {
					continue
				}
				ff := cosE * cosR * e.area / (math32.Pi * math32.Max(d*d, 1))
				sum[0] += e.emission[0] * ff
				sum[1] += e.emission[1] * ff
				sum[2] += e.emission[2] * ff
			}
			next[r] = sum
		}
	})
	return next, err
}
