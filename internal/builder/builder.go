// Package builder turns a parsed map into a Scene: brush solids, face
// records and the material table.
package builder

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/brushforge/internal/diag"
	"github.com/Faultbox/brushforge/internal/gameconfig"
	"github.com/Faultbox/brushforge/internal/material"
	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/geometry"
	"github.com/Faultbox/brushforge/pkg/mapfile"
)

// ErrTooManyDegenerateBrushes aborts a build whose map is mostly broken.
var ErrTooManyDegenerateBrushes = errors.New("too many degenerate brushes")

// DefaultMaxDegenerateBrushes is the limit the compiler config starts from.
const DefaultMaxDegenerateBrushes = 100

// BrushError reports a brush that could not be compiled.
type BrushError struct {
	Entity int
	Brush  int
	Line   int
	Err    error
}

func (e *BrushError) Error() string {
	return fmt.Sprintf("entity %d brush %d (line %d): %v", e.Entity, e.Brush, e.Line, e.Err)
}

func (e *BrushError) Unwrap() error {
	return e.Err
}

// Options tunes a build.
type Options struct {
	// Workers bounds brush compilation parallelism. Zero means one per CPU.
	Workers int
	// MaxDegenerateBrushes is the number of rejected brushes tolerated
	// before the build fails. Zero fails on the first one, negative
	// disables the check.
	MaxDegenerateBrushes int
}

// Builder compiles maps into scenes.
type Builder struct {
	kernel   geometry.Kernel
	game     *gameconfig.Game
	resolver material.Resolver
	opts     Options
	diag     *diag.Collector
	log      *zap.Logger
}

// New creates a builder. collector receives warnings and log may be nil.
func New(k geometry.Kernel, game *gameconfig.Game, resolver material.Resolver, opts Options, collector *diag.Collector, log *zap.Logger) *Builder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if collector == nil {
		collector = diag.NewCollector()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{kernel: k, game: game, resolver: resolver, opts: opts, diag: collector, log: log}
}

type job struct {
	entity int
	brush  int
	global int
	src    *mapfile.Brush
}

// Build compiles every brush of m. Degenerate brushes are reported as
// warnings and left out; the result is identical for any worker count.
func (b *Builder) Build(ctx context.Context, m *mapfile.Map) (*scene.Scene, error) {
	s := &scene.Scene{Format: m.Format}

	var jobs []job
	worldspawn := false
	for ei, me := range m.Entities {
		e := &scene.Entity{
			Index:      ei,
			Line:       me.Line,
			ClassName:  me.ClassName(),
			Properties: me.Properties,
		}
		if v, ok := me.Properties.Get("origin"); ok {
			if o, err := mapfile.ParseVec3(v); err == nil {
				e.Origin, e.HasOrigin = o, true
			}
		}
		e.Surface = b.surfaceProps(e)
		if e.ClassName == "worldspawn" && !worldspawn {
			s.Atmosphere, worldspawn = b.atmosphere(e), true
		}
		s.Entities = append(s.Entities, e)
		for bi, mb := range me.Brushes {
			jobs = append(jobs, job{entity: ei, brush: bi, global: len(jobs), src: mb})
		}
	}

	results := make([]*scene.Brush, len(jobs))
	failures := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			brush, err := b.buildBrush(jobs[i])
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = brush
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	degenerate := 0
	for i, j := range jobs {
		if failures[i] != nil {
			degenerate++
			b.diag.Add(diag.Warning{
				Kind:    diag.DegenerateBrush,
				Entity:  j.entity,
				Brush:   j.brush,
				Line:    j.src.Line,
				Message: failures[i].Error(),
			})
			continue
		}
		e := s.Entities[j.entity]
		e.Brushes = append(e.Brushes, results[i])
	}
	if limit := b.opts.MaxDegenerateBrushes; limit >= 0 && degenerate > limit {
		return nil, fmt.Errorf("%w: %d of %d rejected (limit %d)", ErrTooManyDegenerateBrushes, degenerate, len(jobs), limit)
	}

	b.assignMaterials(s)
	b.applySurfaceFlags(s)

	b.log.Info("built scene",
		zap.Int("entities", len(s.Entities)),
		zap.Int("brushes", len(jobs)-degenerate),
		zap.Int("degenerate", degenerate),
		zap.Int("faces", s.FaceCount()),
		zap.Int("materials", len(s.Materials)))
	return s, nil
}

func (b *Builder) buildBrush(j job) (*scene.Brush, error) {
	fail := func(err error) error {
		return &BrushError{Entity: j.entity, Brush: j.brush, Line: j.src.Line, Err: err}
	}

	planes := make([]geometry.Plane, len(j.src.Faces))
	for i, f := range j.src.Faces {
		p, err := b.kernel.PlaneFromPoints(f.Points[0], f.Points[1], f.Points[2])
		if err != nil {
			return nil, fail(fmt.Errorf("%w: face %d (line %d): %w", geometry.ErrDegenerate, i, f.Line, err))
		}
		planes[i] = p
	}

	solid, err := b.kernel.ClipBrush(planes)
	if err != nil {
		return nil, fail(err)
	}

	brush := &scene.Brush{
		Entity: j.entity,
		Index:  j.brush,
		Global: j.global,
		Line:   j.src.Line,
		Solid:  solid,
		Faces:  make([]scene.Face, len(solid.Faces)),
	}
	for i, sf := range solid.Faces {
		src := j.src.Faces[sf.Plane]
		brush.Faces[i] = scene.Face{
			Plane:      planes[sf.Plane],
			Material:   material.Normalize(src.Texture),
			MaterialID: -1,
			Projection: b.projection(src),
			Contents:   src.Contents,
			Surface:    src.Surface,
			Value:      src.Value,
			Line:       src.Line,
		}
	}
	return brush, nil
}

func (b *Builder) projection(f *mapfile.Face) scene.Projection {
	p := scene.Projection{
		Valve:    f.Valve,
		UAxis:    f.UAxis,
		VAxis:    f.VAxis,
		Offset:   f.Offset,
		Rotation: f.Rotation,
		Scale:    f.Scale,
	}
	for i := range p.Scale {
		if p.Scale[i] == 0 {
			p.Scale[i] = b.game.Materials.DefaultScale
		}
	}
	return p
}

// assignMaterials gives every distinct material name an id in order of
// first appearance and resolves it. Unresolved names borrow the fallback
// material's image and produce one warning each.
func (b *Builder) assignMaterials(s *scene.Scene) {
	ids := make(map[string]int)
	fallback, haveFallback := b.resolver.Resolve(material.Normalize(b.game.Materials.Missing))

	for _, e := range s.Entities {
		for _, brush := range e.Brushes {
			for fi := range brush.Faces {
				f := &brush.Faces[fi]
				if id, ok := ids[f.Material]; ok {
					f.MaterialID = id
					continue
				}
				id := len(s.Materials)
				ids[f.Material] = id
				f.MaterialID = id

				m := scene.Material{ID: id, Name: f.Material}
				if r, ok := b.resolver.Resolve(f.Material); ok {
					m.Path, m.Width, m.Height, m.Albedo = r.Path, r.Width, r.Height, r.Albedo
				} else {
					m.Missing = true
					m.Width, m.Height, m.Albedo = 64, 64, [3]float32{0.5, 0.5, 0.5}
					if haveFallback {
						m.Path, m.Width, m.Height, m.Albedo = fallback.Path, fallback.Width, fallback.Height, fallback.Albedo
					}
					b.diag.AddOnce(f.Material, diag.Warning{
						Kind:    diag.MissingMaterial,
						Entity:  e.Index,
						Brush:   brush.Index,
						Line:    f.Line,
						Subject: f.Material,
						Message: fmt.Sprintf("material %q not found, using fallback", f.Material),
					})
				}
				s.Materials = append(s.Materials, m)
			}
		}
	}
}

// applySurfaceFlags turns catalog surface bits into face attributes.
func (b *Builder) applySurfaceFlags(s *scene.Scene) {
	for _, e := range s.Entities {
		for _, brush := range e.Brushes {
			for fi := range brush.Faces {
				f := &brush.Faces[fi]
				if f.Surface == 0 {
					continue
				}
				names, unknown := b.game.SurfaceFlagNames(f.Surface)
				f.Attributes = f.Attributes.With(names...)
				if unknown != 0 {
					b.diag.AddOnce(fmt.Sprintf("0x%x", unknown), diag.Warning{
						Kind:    diag.UnknownAttribute,
						Entity:  e.Index,
						Brush:   brush.Index,
						Line:    f.Line,
						Subject: fmt.Sprintf("0x%x", unknown),
						Message: fmt.Sprintf("surface bits 0x%x have no catalog entry, skipped", unknown),
					})
				}
			}
		}
	}
}
