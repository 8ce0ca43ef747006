// Package compiler runs the full map compilation pipeline: parse, build,
// classify, light, export and package.
package compiler

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/brushforge/internal/builder"
	"github.com/Faultbox/brushforge/internal/classify"
	"github.com/Faultbox/brushforge/internal/config"
	"github.com/Faultbox/brushforge/internal/diag"
	"github.com/Faultbox/brushforge/internal/export"
	"github.com/Faultbox/brushforge/internal/gameconfig"
	"github.com/Faultbox/brushforge/internal/lighting"
	"github.com/Faultbox/brushforge/internal/logger"
	"github.com/Faultbox/brushforge/internal/material"
	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/geometry"
	"github.com/Faultbox/brushforge/pkg/mapfile"
	"github.com/Faultbox/brushforge/pkg/pak"
)

// LevelExt is the extension of level entries inside a package.
const LevelExt = ".bflv"

// Compiler holds everything a compilation needs besides the map itself.
type Compiler struct {
	cfg      *config.Config
	game     *gameconfig.Game
	resolver material.Resolver
	log      *zap.Logger
}

// New creates a compiler. log may be nil.
func New(cfg *config.Config, game *gameconfig.Game, resolver material.Resolver, log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{cfg: cfg, game: game, resolver: resolver, log: log}
}

// Report summarizes one compilation.
type Report struct {
	Map                string
	LevelID            uuid.UUID
	Entities           int
	Brushes            int
	Faces              int
	Materials          int
	Lights             int
	Surfaces           int
	Vertices           int
	Triangles          int
	CollisionTriangles int
	LightmapPages      int
	Warnings           []diag.Warning
	Counts             map[diag.Kind]int
}

// Result is a compiled level.
type Result struct {
	Level  *export.Level
	Data   []byte
	Report *Report
}

// Compile runs every stage on m. Cancellation is honoured between stages.
func (c *Compiler) Compile(ctx context.Context, name string, m *mapfile.Map) (*Result, error) {
	collector := diag.NewCollector()
	kernel := geometry.NewKernel(c.cfg.Geometry.Epsilon)

	b := builder.New(kernel, c.game, c.resolver, builder.Options{
		Workers:              c.cfg.Build.Workers,
		MaxDegenerateBrushes: c.cfg.Build.MaxDegenerateBrushes,
	}, collector, c.log.Named("builder"))
	done := logger.Stage(c.log, "build")
	s, err := b.Build(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", name, err)
	}
	done(zap.Int("brushes", len(s.Brushes())))

	done = logger.Stage(c.log, "classify")
	s, err = classify.Classify(ctx, s, c.game, c.cfg.Build.Workers)
	if err != nil {
		return nil, fmt.Errorf("classifying %s: %w", name, err)
	}
	done()

	done = logger.Stage(c.log, "lighting")
	lopts := LightingOptions(c.cfg)
	lights, err := lighting.ExtractLights(s, lopts, collector)
	if err != nil {
		return nil, err
	}
	baker, err := lighting.NewBaker(kernel, lopts, c.log.Named("lighting"))
	if err != nil {
		return nil, err
	}
	lit, err := baker.Bake(ctx, s, lights)
	if err != nil {
		return nil, fmt.Errorf("lighting %s: %w", name, err)
	}
	done(zap.Int("lights", len(lights)), zap.Int("faces", len(lit.Faces)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done = logger.Stage(c.log, "export")
	lvl, err := export.Build(lit, ExportOptions(c.cfg))
	if err != nil {
		return nil, err
	}
	data, err := export.Encode(lvl)
	if err != nil {
		return nil, err
	}
	done(zap.Int("bytes", len(data)))

	collector.Log(c.log)
	report := &Report{
		Map:                name,
		LevelID:            lvl.ID,
		Entities:           len(s.Entities),
		Brushes:            len(s.Brushes()),
		Faces:              s.FaceCount(),
		Materials:          len(s.Materials),
		Lights:             len(lights),
		Surfaces:           len(lvl.Surfaces),
		Vertices:           len(lvl.Vertices),
		Triangles:          lvl.TriangleCount(),
		CollisionTriangles: len(lvl.Collision.Triangles),
		LightmapPages:      len(lvl.Lightmaps.Pages),
		Warnings:           collector.Warnings(),
		Counts:             collector.Counts(),
	}
	c.log.Info("compiled level",
		zap.String("map", name),
		zap.Stringer("id", lvl.ID),
		zap.Int("surfaces", report.Surfaces),
		zap.Int("triangles", report.Triangles),
		zap.Int("warnings", len(report.Warnings)))
	return &Result{Level: lvl, Data: data, Report: report}, nil
}

// CompileFile compiles the map at mapPath into a package at outPath. The
// package is written atomically, so a failed compile leaves no output.
func (c *Compiler) CompileFile(ctx context.Context, mapPath, outPath string) (*Report, error) {
	m, err := mapfile.Open(mapPath)
	if err != nil {
		return nil, err
	}
	name := LevelName(mapPath)
	res, err := c.Compile(ctx, name, m)
	if err != nil {
		return nil, err
	}

	w := pak.NewWriter()
	w.Add(path.Join("maps", name+LevelExt), res.Data)
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: packaging: %v", export.ErrExport, err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", export.ErrExport, err)
	}
	if err := pak.WriteFileAtomic(outPath, data, 0644); err != nil {
		return nil, fmt.Errorf("%w: %v", export.ErrExport, err)
	}
	c.log.Info("wrote package", zap.String("path", outPath), zap.Int("bytes", len(data)))
	return res.Report, nil
}

// LevelName derives the level name from a map path.
func LevelName(mapPath string) string {
	base := filepath.Base(mapPath)
	return strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
}

// DefaultOutput returns the package path used when none is given.
func DefaultOutput(mapPath string) string {
	return strings.TrimSuffix(mapPath, filepath.Ext(mapPath)) + ".pak"
}

// LoadGame loads a game configuration and opens its material library.
// The caller closes the library.
func LoadGame(gamePath string, log *zap.Logger) (*gameconfig.Game, *material.Library, error) {
	g, err := gameconfig.Load(gamePath, scene.BuiltinAttributes)
	if err != nil {
		return nil, nil, err
	}
	lib, err := material.FromGame(g, log)
	if err != nil {
		return nil, nil, err
	}
	return g, lib, nil
}

// LightingOptions maps the lighting section onto bake options.
func LightingOptions(cfg *config.Config) lighting.Options {
	l := cfg.Lighting
	return lighting.Options{
		Mode:             lighting.Mode(l.Mode),
		LuxelSize:        l.LuxelSize,
		Ambient:          l.Ambient,
		Bounces:          l.Bounces,
		BounceRetention:  l.BounceRetention,
		BounceStride:     l.BounceStride,
		BounceAlbedo:     l.BounceAlbedo,
		SampleOffset:     l.SampleOffset,
		IntensityScale:   l.IntensityScale,
		EmissiveScale:    l.EmissiveScale,
		DefaultIntensity: l.DefaultIntensity,
		DefaultRange:     l.DefaultRange,
		LightClassNames:  l.LightClassNames,
		PageSize:         cfg.Export.LightmapPageSize,
		Workers:          cfg.Build.Workers,
	}
}

// ExportOptions maps the export section onto exporter options.
func ExportOptions(cfg *config.Config) export.Options {
	return export.Options{
		Scale:   cfg.Export.Scale,
		UpAxis:  cfg.Export.UpAxis,
		Epsilon: cfg.Geometry.Epsilon,
	}
}
