// Package lighting computes static radiance for a classified scene: direct
// light from point lights with hard shadows, a bounded number of diffuse
// bounces and, in lightmap mode, an atlas of per-face texel grids.
package lighting

import (
	"context"
	"fmt"
	"runtime"

	"github.com/chewxy/math32"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/geometry"
)

// Baker runs the lighting stages.
type Baker struct {
	kernel geometry.Kernel
	opts   Options
	log    *zap.Logger
}

// NewBaker validates opts and returns a baker.
func NewBaker(k geometry.Kernel, opts Options, log *zap.Logger) (*Baker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Baker{kernel: k, opts: opts, log: log}, nil
}

// Options returns the validated options.
func (b *Baker) Options() Options {
	return b.opts
}

// Bake lights s. The context is checked between stages only: a stage that
// has started always runs to completion.
func (b *Baker) Bake(ctx context.Context, s *scene.Scene, lights []Light) (*LitScene, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lit := &LitScene{Scene: s, Lights: lights, Mode: b.opts.Mode, Ambient: b.opts.Ambient, faceIndex: make(map[[2]int]int)}
	if a := s.Atmosphere.Ambient; a.Set {
		lit.Ambient = a.RGB
	}
	for _, brush := range s.Brushes() {
		for fi := range brush.Faces {
			if !brush.Faces[fi].Visible() {
				continue
			}
			fl, samples := b.sampleFace(brush, fi)
			fl.Brush = brush.Global
			fl.SampleStart = len(lit.Samples)
			fl.SampleCount = len(samples)
			fl.Albedo = [3]float32{1, 1, 1}
			if m := s.Material(brush.Faces[fi].MaterialID); m != nil && b.opts.BounceAlbedo {
				fl.Albedo = m.Albedo
				if d := s.Entities[brush.Entity].Surface.Diffuse; d.Set {
					fl.Albedo = mul3(fl.Albedo, d.RGB)
				}
			}
			if c, ok := s.Emission(brush, fi); ok {
				k := b.opts.EmissiveScale
				fl.Emission = [3]float32{c[0] * k, c[1] * k, c[2] * k}
			}
			lit.faceIndex[[2]int{brush.Global, fi}] = len(lit.Faces)
			lit.Faces = append(lit.Faces, fl)
			lit.Samples = append(lit.Samples, samples...)
		}
	}
	occ := NewOccluders(b.kernel, s)
	b.log.Info("lighting",
		zap.String("mode", string(b.opts.Mode)),
		zap.Int("lights", len(lights)),
		zap.Int("samples", len(lit.Samples)),
		zap.Int("occluders", occ.Len()),
		zap.Float32s("ambient", lit.Ambient[:]),
		zap.Int("bounces", b.opts.Bounces))

	// gen[k] holds the light each sample received in generation k.
	gen := make([][][3]float32, 0, b.opts.Bounces+1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	direct := make([][3]float32, len(lit.Samples))
	if err := b.perFace(lit, func(f *FaceLighting) {
		for i := f.SampleStart; i < f.SampleStart+f.SampleCount; i++ {
			direct[i] = add3(b.directAt(&lit.Samples[i], lights, occ), f.Emission)
			lit.Samples[i].State = DirectLit
		}
	}); err != nil {
		return nil, err
	}
	gen = append(gen, direct)

	for k := 1; k <= b.opts.Bounces; k++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := b.bounce(lit, gen[k-1], occ)
		if err != nil {
			return nil, err
		}
		gen = append(gen, next)
		b.log.Debug("bounce complete", zap.Int("bounce", k))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := range lit.Samples {
		r := lit.Ambient
		for _, g := range gen {
			r[0] += g[i][0]
			r[1] += g[i][1]
			r[2] += g[i][2]
		}
		lit.Samples[i].Radiance = r
		lit.Samples[i].State = Final
	}

	if b.opts.Mode == ModeLightmap {
		pages, err := packAtlas(lit.Faces, b.opts.PageSize)
		if err != nil {
			return nil, err
		}
		lit.Pages = pages
		lit.fillAtlas()
	}
	return lit, nil
}

// perFace runs fn for every face on the worker pool and waits for all of
// them. Each call must only write its own face's samples.
func (b *Baker) perFace(lit *LitScene, fn func(*FaceLighting)) error {
	var g errgroup.Group
	g.SetLimit(b.opts.Workers)
	for i := range lit.Faces {
		f := &lit.Faces[i]
		g.Go(func() error {
			fn(f)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("lighting stage: %w", err)
	}
	return nil
}

// directAt sums the unoccluded contributions of every light at s.
func (b *Baker) directAt(s *Sample, lights []Light, occ *Occluders) [3]float32 {
	var sum [3]float32
	for i := range lights {
		l := &lights[i]
		toLight := l.Position.Sub(s.Origin)
		d := float32(toLight.Length())
		if d >= l.Range {
			continue
		}
		cos := float32(s.Normal.Dot(toLight)) / d
		if d == 0 || cos <= 0 {
			continue
		}
		if !occ.Visible(s.Origin, l.Position, s.Inside) {
			continue
		}
		f := l.Intensity * b.opts.IntensityScale * cos * window(d, l.Range) / math32.Max(d*d, 1)
		sum[0] += l.Color[0] * f
		sum[1] += l.Color[1] * f
		sum[2] += l.Color[2] * f
	}
	return sum
}

func add3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func mul3(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

// window smoothly fades a light to zero at its range.
func window(d, r float32) float32 {
	x := d / r
	w := 1 - x*x*x*x
	w = math32.Max(0, math32.Min(1, w))
	return w * w
}
