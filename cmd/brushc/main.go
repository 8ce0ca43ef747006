// brushc compiles brush-based .map sources into lit level packages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/brushforge/internal/compiler"
	"github.com/Faultbox/brushforge/internal/config"
	"github.com/Faultbox/brushforge/internal/diag"
	"github.com/Faultbox/brushforge/internal/export"
	"github.com/Faultbox/brushforge/internal/gameconfig"
	"github.com/Faultbox/brushforge/internal/logger"
	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/pak"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	command, args := args[0], args[1:]
	switch command {
	case "compile", "c":
		return cmdCompile(ctx, args, stdout, stderr)
	case "inspect", "i":
		return cmdInspect(args, stdout, stderr)
	case "check":
		return cmdCheck(args, stdout, stderr)
	case "extract", "x":
		return cmdExtract(args, stdout, stderr)
	case "config":
		return cmdConfig(args, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `brushc - brush map compiler

Usage:
  brushc <command> [options]

Commands:
  compile <file.map> -game <cfg> [-o out.pak]  Compile a map into a level package
  inspect <file.pak> [-entities]               Describe the levels in a package
  check <game cfg>                             Validate a game configuration
  extract <file.pak> <path> [output]           Extract file(s) from a package
  config [-o path]                             Print or save the effective config

Compile options:
  -config <file>     Compiler config (YAML)
  -workers N         Worker count (0 = one per CPU)
  -bounces N         Indirect light bounces
  -mode MODE         lightmap or vertex
  -debug             Enable debug logging
  -log-file <file>   Also write logs to this file

Examples:
  brushc compile maps/e1m1.map -game configs/quake.yaml
  brushc inspect maps/e1m1.pak
  brushc extract maps/e1m1.pak "*.bflv" ./out`)
}

// parseArgs parses flags that may appear before or after positional
// arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func cmdCompile(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	gamePath := fs.String("game", "", "Game configuration (YAML or TOML)")
	outPath := fs.String("o", "", "Output package (default: <map>.pak)")
	configPath := fs.String("config", "", "Compiler config file")
	overrides := config.RegisterFlags(fs)

	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 || *gamePath == "" {
		fmt.Fprintln(stderr, "Usage: brushc compile <file.map> -game <cfg> [-o out.pak]")
		return 1
	}
	mapPath := positional[0]

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	game, lib, err := compiler.LoadGame(*gamePath, logger.Component("material"))
	if err != nil {
		logger.Error("invalid game configuration", zap.Error(err))
		return 1
	}
	defer lib.Close()

	out := *outPath
	if out == "" {
		out = compiler.DefaultOutput(mapPath)
	}

	c := compiler.New(cfg, game, lib, logger.Component("compiler"))
	report, err := c.CompileFile(ctx, mapPath, out)
	if err != nil {
		logger.Error("compilation failed", zap.String("map", mapPath), zap.Error(err))
		return 1
	}

	hits, misses := lib.Stats()
	logger.Debug("material cache", zap.Int("hits", hits), zap.Int("misses", misses))
	printReport(stdout, report, out)
	return 0
}

func printReport(w io.Writer, r *compiler.Report, out string) {
	fmt.Fprintf(w, "Level:      %s (%s)\n", r.Map, r.LevelID)
	fmt.Fprintf(w, "Output:     %s\n", out)
	fmt.Fprintf(w, "Entities:   %d\n", r.Entities)
	fmt.Fprintf(w, "Brushes:    %d (%d faces)\n", r.Brushes, r.Faces)
	fmt.Fprintf(w, "Materials:  %d\n", r.Materials)
	fmt.Fprintf(w, "Lights:     %d\n", r.Lights)
	fmt.Fprintf(w, "Surfaces:   %d (%d vertices, %d triangles)\n", r.Surfaces, r.Vertices, r.Triangles)
	fmt.Fprintf(w, "Collision:  %d triangles\n", r.CollisionTriangles)
	fmt.Fprintf(w, "Lightmaps:  %d pages\n", r.LightmapPages)
	if len(r.Warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\nWarnings:   %d\n", len(r.Warnings))
	for _, k := range diag.Kinds {
		if n := r.Counts[k]; n > 0 {
			fmt.Fprintf(w, "  %-20s %d\n", k, n)
		}
	}
}

func cmdInspect(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showEntities := fs.Bool("entities", false, "Print entity properties")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return 1
	}
	if len(positional) != 1 {
		fmt.Fprintln(stderr, "Usage: brushc inspect <file.pak> [-entities]")
		return 1
	}

	archive, err := pak.Open(positional[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer archive.Close()

	fmt.Fprintf(stdout, "Package: %s (%d files)\n", positional[0], len(archive.List()))
	levels := 0
	for _, name := range archive.List() {
		if filepath.Ext(name) != compiler.LevelExt {
			continue
		}
		data, err := archive.Read(name)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading %s: %v\n", name, err)
			return 1
		}
		lvl, err := export.Decode(data)
		if err != nil {
			fmt.Fprintf(stderr, "Error decoding %s: %v\n", name, err)
			return 1
		}
		levels++
		printLevel(stdout, name, lvl, *showEntities)
	}
	if levels == 0 {
		fmt.Fprintln(stderr, "No levels found")
		return 1
	}
	return 0
}

func printLevel(w io.Writer, name string, lvl *export.Level, entities bool) {
	fmt.Fprintf(w, "\n%s\n", name)
	fmt.Fprintf(w, "  ID:         %s\n", lvl.ID)
	fmt.Fprintf(w, "  Version:    %d\n", lvl.Version)
	fmt.Fprintf(w, "  Materials:  %d\n", len(lvl.Materials))
	fmt.Fprintf(w, "  Surfaces:   %d (%d vertices, %d triangles)\n", len(lvl.Surfaces), len(lvl.Vertices), lvl.TriangleCount())
	fmt.Fprintf(w, "  Collision:  %d vertices, %d triangles\n", len(lvl.Collision.Vertices), len(lvl.Collision.Triangles))
	fmt.Fprintf(w, "  Lightmaps:  %d pages of %d\n", len(lvl.Lightmaps.Pages), lvl.Lightmaps.PageSize)
	fmt.Fprintf(w, "  Brushes:    %d\n", len(lvl.Brushes))
	fmt.Fprintf(w, "  Entities:   %d\n", len(lvl.Entities))

	missing := 0
	for _, m := range lvl.Materials {
		if m.Flags&export.MaterialMissing != 0 {
			missing++
		}
	}
	if missing > 0 {
		fmt.Fprintf(w, "  Missing:    %d materials\n", missing)
	}
	emissive := 0
	for _, s := range lvl.Surfaces {
		if s.Flags&export.SurfaceEmissive != 0 {
			emissive++
		}
	}
	if emissive > 0 {
		fmt.Fprintf(w, "  Emissive:   %d surfaces\n", emissive)
	}
	if a := lvl.Atmosphere; a.Flags&export.AtmosphereAmbient != 0 {
		fmt.Fprintf(w, "  Ambient:    %g %g %g\n", a.Ambient[0], a.Ambient[1], a.Ambient[2])
	}

	if !entities {
		return
	}
	for _, e := range lvl.Entities {
		fmt.Fprintf(w, "  [%d] %s", e.Index, e.ClassName)
		if e.HasOrigin {
			fmt.Fprintf(w, " @ %g %g %g", e.Origin[0], e.Origin[1], e.Origin[2])
		}
		fmt.Fprintln(w)
		for _, p := range e.Properties {
			fmt.Fprintf(w, "      %-16s %s\n", p.Key, p.Value)
		}
	}
}

func cmdCheck(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: brushc check <game cfg>")
		return 1
	}
	g, err := gameconfig.Load(args[0], scene.BuiltinAttributes)
	if err != nil {
		var ce *gameconfig.ConfigError
		if errors.As(err, &ce) {
			fmt.Fprintf(stderr, "Invalid: %v\n", ce)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}

	name := g.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(stdout, "Game:          %s\n", name)
	fmt.Fprintf(stdout, "Material root: %s\n", g.Materials.Root)
	fmt.Fprintf(stdout, "Extensions:    %s\n", strings.Join(g.Materials.Extensions, ", "))
	fmt.Fprintf(stdout, "Archives:      %d\n", len(g.Materials.Archives))
	fmt.Fprintf(stdout, "Surface flags: %d\n", len(g.SurfaceFlags))
	for i, f := range g.SurfaceFlags {
		fmt.Fprintf(stdout, "  0x%08x  %s\n", uint32(1)<<i, f.Name)
	}
	fmt.Fprintf(stdout, "Brush rules:   %d\n", len(g.BrushRules))
	fmt.Fprintf(stdout, "Face rules:    %d\n", len(g.FaceRules))
	fmt.Fprintln(stdout, "OK")
	return 0
}

func cmdExtract(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "Usage: brushc extract <file.pak> <path> [output_dir]")
		return 1
	}
	outputDir := "."
	if len(args) > 2 {
		outputDir = args[2]
	}

	archive, err := pak.Open(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer archive.Close()

	pattern := strings.ToLower(args[1])
	var names []string
	if strings.Contains(pattern, "*") {
		for _, f := range archive.List() {
			if matched, _ := filepath.Match(pattern, filepath.Base(f)); matched {
				names = append(names, f)
			}
		}
	} else if archive.Contains(pattern) {
		names = append(names, pattern)
	}
	if len(names) == 0 {
		fmt.Fprintf(stderr, "File not found: %s\n", args[1])
		return 1
	}
	sort.Strings(names)

	for _, f := range names {
		data, err := archive.Read(f)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading %s: %v\n", f, err)
			return 1
		}

		// Preserve directory structure
		outputPath := filepath.Join(outputDir, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			fmt.Fprintf(stderr, "Error creating directory: %v\n", err)
			return 1
		}
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(stderr, "Error writing %s: %v\n", outputPath, err)
			return 1
		}
		fmt.Fprintf(stdout, "Extracted: %s (%d bytes)\n", outputPath, len(data))
	}
	return 0
}

func cmdConfig(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Compiler config file")
	outPath := fs.String("o", "", "Write to this path instead of stdout")
	overrides := config.RegisterFlags(fs)
	if _, err := parseArgs(fs, args); err != nil {
		return 1
	}

	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *outPath != "" {
		if err := cfg.SaveTo(*outPath); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote %s\n", *outPath)
		return 0
	}
	data, err := cfg.Marshal()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	stdout.Write(data)
	return 0
}
