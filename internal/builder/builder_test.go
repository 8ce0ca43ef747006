package builder

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/Faultbox/brushforge/internal/diag"
	"github.com/Faultbox/brushforge/internal/gameconfig"
	"github.com/Faultbox/brushforge/internal/material"
	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/geometry"
	"github.com/Faultbox/brushforge/pkg/mapfile"
)

// boxBrush writes an axis-aligned box brush in Quake map syntax. Materials
// are given for the +z, -z, -x, +x, -y and +y faces.
func boxBrush(min, max [3]int, mats [6]string, extra string) string {
	x0, y0, z0 := min[0], min[1], min[2]
	x1, y1, z1 := max[0], max[1], max[2]
	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) %s 0 0 0 1 1%s\n", x0, y0, z1, x0, y1, z1, x1, y1, z1, mats[0], extra)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) %s 0 0 0 1 1%s\n", x0, y0, z0, x1, y0, z0, x1, y1, z0, mats[1], extra)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) %s 0 0 0 1 1%s\n", x0, y0, z0, x0, y1, z0, x0, y1, z1, mats[2], extra)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) %s 0 0 0 1 1%s\n", x1, y0, z0, x1, y0, z1, x1, y1, z1, mats[3], extra)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) %s 0 0 0 1 1%s\n", x0, y0, z0, x0, y0, z1, x1, y0, z1, mats[4], extra)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) %s 0 0 0 1 1%s\n", x0, y1, z0, x1, y1, z0, x1, y1, z1, mats[5], extra)
	b.WriteString("}\n")
	return b.String()
}

func all(m string) [6]string { return [6]string{m, m, m, m, m, m} }

// flatBrush has zero thickness and is always rejected.
const flatBrush = `{
( 0 0 0 ) ( 0 1 0 ) ( 1 1 0 ) base/wall 0 0 0 1 1
( 0 0 0 ) ( 1 0 0 ) ( 1 1 0 ) base/wall 0 0 0 1 1
( 0 0 0 ) ( 0 1 0 ) ( 0 1 1 ) base/wall 0 0 0 1 1
( 0 0 0 ) ( 0 0 1 ) ( 1 0 1 ) base/wall 0 0 0 1 1
}
`

func parse(t *testing.T, src string) *mapfile.Map {
	t.Helper()
	m, err := mapfile.ParseBytes([]byte(src))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	return m
}

func testGame(t *testing.T, src string) *gameconfig.Game {
	t.Helper()
	g, err := gameconfig.Parse([]byte(src), gameconfig.FormatYAML, scene.BuiltinAttributes)
	if err != nil {
		t.Fatalf("gameconfig.Parse: %v", err)
	}
	return g
}

var resolver = material.Static{
	"base/wall":  {Name: "base/wall", Width: 64, Height: 64, Albedo: [3]float32{1, 0, 0}},
	"base/floor": {Name: "base/floor", Width: 128, Height: 128},
	"__missing":  {Name: "__missing", Width: 16, Height: 16, Albedo: [3]float32{1, 0, 1}},
}

func TestBuildCube(t *testing.T) {
	src := "{\n\"classname\" \"worldspawn\"\n" +
		boxBrush([3]int{-16, -16, -16}, [3]int{16, 16, 16}, [6]string{"base/floor", "BASE\\WALL.tga", "base/wall", "base/wall", "base/wall", "base/wall"}, "") +
		"}\n{\n\"classname\" \"light\"\n\"origin\" \"0 0 64\"\n}\n"

	c := diag.NewCollector()
	b := New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{}, c, nil)
	s, err := b.Build(context.Background(), parse(t, src))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(s.Entities) != 2 {
		t.Fatalf("got %d entities", len(s.Entities))
	}
	if !s.Entities[1].HasOrigin || s.Entities[1].Origin.Z != 64 {
		t.Errorf("light origin = %v", s.Entities[1].Origin)
	}
	brushes := s.Brushes()
	if len(brushes) != 1 || len(brushes[0].Faces) != 6 {
		t.Fatalf("unexpected brushes: %d", len(brushes))
	}
	if len(s.Materials) != 2 || s.Materials[0].Name != "base/floor" || s.Materials[1].Name != "base/wall" {
		t.Errorf("Materials = %+v", s.Materials)
	}
	if s.Materials[1].Albedo != [3]float32{1, 0, 0} {
		t.Errorf("wall albedo = %v", s.Materials[1].Albedo)
	}
	for _, f := range brushes[0].Faces {
		if f.Projection.Scale != [2]float64{1, 1} {
			t.Errorf("scale = %v", f.Projection.Scale)
		}
	}
	if c.Len() != 0 {
		t.Errorf("unexpected warnings: %v", c.Warnings())
	}
}

func TestBuildDegenerateBrush(t *testing.T) {
	src := "{\n\"classname\" \"worldspawn\"\n" +
		boxBrush([3]int{0, 0, 0}, [3]int{32, 32, 32}, all("base/wall"), "") +
		flatBrush +
		boxBrush([3]int{64, 0, 0}, [3]int{96, 32, 32}, all("base/wall"), "") +
		"}\n"

	c := diag.NewCollector()
	b := New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{Workers: 2, MaxDegenerateBrushes: DefaultMaxDegenerateBrushes}, c, nil)
	s, err := b.Build(context.Background(), parse(t, src))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	brushes := s.Brushes()
	if len(brushes) != 2 {
		t.Fatalf("got %d brushes, want 2", len(brushes))
	}
	if brushes[0].Global != 0 || brushes[1].Global != 2 || brushes[1].Index != 2 {
		t.Errorf("brush indices = %d/%d, %d/%d", brushes[0].Global, brushes[0].Index, brushes[1].Global, brushes[1].Index)
	}

	ws := c.Warnings()
	if len(ws) != 1 || ws[0].Kind != diag.DegenerateBrush {
		t.Fatalf("warnings = %v", ws)
	}
	if ws[0].Brush != 1 || ws[0].Line != 11 {
		t.Errorf("warning = %+v", ws[0])
	}
	if !strings.Contains(ws[0].Message, geometry.ErrDegenerate.Error()) {
		t.Errorf("message = %q", ws[0].Message)
	}
}

func TestBuildTooManyDegenerate(t *testing.T) {
	src := "{\n" + flatBrush + flatBrush + "}\n"

	b := New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{MaxDegenerateBrushes: 1}, nil, nil)
	_, err := b.Build(context.Background(), parse(t, src))
	if !errors.Is(err, ErrTooManyDegenerateBrushes) {
		t.Fatalf("err = %v, want ErrTooManyDegenerateBrushes", err)
	}

	b = New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{MaxDegenerateBrushes: -1}, nil, nil)
	if _, err := b.Build(context.Background(), parse(t, src)); err != nil {
		t.Errorf("disabled limit: err = %v", err)
	}
}

func TestBuildZeroDegenerateLimit(t *testing.T) {
	src := "{\n" + boxBrush([3]int{0, 0, 0}, [3]int{32, 32, 32}, all("base/wall"), "") + flatBrush + "}\n"

	c := diag.NewCollector()
	b := New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{MaxDegenerateBrushes: 0}, c, nil)
	_, err := b.Build(context.Background(), parse(t, src))
	if !errors.Is(err, ErrTooManyDegenerateBrushes) {
		t.Fatalf("err = %v, want ErrTooManyDegenerateBrushes", err)
	}
	if !strings.Contains(err.Error(), "limit 0") {
		t.Errorf("err = %v, want limit 0", err)
	}

	clean := "{\n" + boxBrush([3]int{0, 0, 0}, [3]int{32, 32, 32}, all("base/wall"), "") + "}\n"
	if _, err := New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{}, nil, nil).Build(context.Background(), parse(t, clean)); err != nil {
		t.Errorf("clean map with zero limit: err = %v", err)
	}
}

func TestBuildEntityColorsAndAtmosphere(t *testing.T) {
	src := "{\n\"classname\" \"worldspawn\"\n\"Ambient_color\" \"0 0 51\"\n\"Sun_color\" \"255 255 255 128\"\n" +
		"\"Fog_color\" \"bad\"\n\"FogDensity\" \"2\"\n}\n" +
		"{\n\"classname\" \"func_group\"\n\"ambient_color\" \"0.1 0.2 0.3\"\n\"diffuse_color\" \"255 0 0\"\n" +
		"\"emissive_color\" \"0 1 0\"\n\"material_alpha\" \"0.5\"\n" +
		boxBrush([3]int{0, 0, 0}, [3]int{32, 32, 32}, all("base/wall"), "") + "}\n"

	c := diag.NewCollector()
	s, err := New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{}, c, nil).Build(context.Background(), parse(t, src))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	a := s.Atmosphere
	if !a.Ambient.Set || a.Ambient.RGB[2] < 0.199 || a.Ambient.RGB[2] > 0.201 {
		t.Errorf("atmosphere ambient = %+v", a.Ambient)
	}
	if a.Sun.RGB != [3]float32{1, 1, 1} {
		t.Errorf("sun = %+v", a.Sun)
	}
	if a.Fog.Set || a.FogDensity != 1 {
		t.Errorf("fog = %+v density %g", a.Fog, a.FogDensity)
	}
	if c.Count(diag.InvalidProperty) != 1 {
		t.Errorf("invalid property warnings = %d", c.Count(diag.InvalidProperty))
	}

	sp := s.Entities[1].Surface
	if sp.Ambient.RGB != [3]float32{0.1, 0.2, 0.3} || sp.Diffuse.RGB != [3]float32{1, 0, 0} || sp.Emissive.RGB != [3]float32{0, 1, 0} {
		t.Errorf("surface props = %+v", sp)
	}
	if !sp.HasAlpha || sp.Alpha != 0.5 {
		t.Errorf("alpha = %g, %v", sp.Alpha, sp.HasAlpha)
	}
	if s.Entities[0].Surface.Alpha != 1 || s.Entities[0].Surface.Emissive.Set {
		t.Errorf("worldspawn surface = %+v", s.Entities[0].Surface)
	}
}

func TestBuildMissingMaterials(t *testing.T) {
	src := "{\n" +
		boxBrush([3]int{0, 0, 0}, [3]int{32, 32, 32}, [6]string{"nope/a", "nope/a", "nope/b", "base/wall", "nope/a", "nope/b"}, "") +
		boxBrush([3]int{64, 0, 0}, [3]int{96, 32, 32}, all("nope/a"), "") +
		"}\n"

	c := diag.NewCollector()
	b := New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{}, c, nil)
	s, err := b.Build(context.Background(), parse(t, src))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if c.Count(diag.MissingMaterial) != 2 {
		t.Errorf("missing warnings = %d, want 2", c.Count(diag.MissingMaterial))
	}
	a := s.Materials[0]
	if a.Name != "nope/a" || !a.Missing || a.Width != 16 || a.Albedo != [3]float32{1, 0, 1} {
		t.Errorf("fallback material = %+v", a)
	}
}

func TestBuildSurfaceFlags(t *testing.T) {
	game := testGame(t, "surface_flags:\n  - name: nonsolid\n  - name: smooth-shading\n")
	src := "{\n" + boxBrush([3]int{0, 0, 0}, [3]int{32, 32, 32}, all("base/wall"), " 0 3 0") +
		boxBrush([3]int{64, 0, 0}, [3]int{96, 32, 32}, all("base/wall"), " 0 8 0") + "}\n"

	c := diag.NewCollector()
	s, err := New(geometry.NewKernel(0), game, resolver, Options{}, c, nil).Build(context.Background(), parse(t, src))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f := s.Brushes()[0].Faces[0]
	if !f.Has(scene.AttrNonSolid) || !f.Has(scene.AttrSmoothShading) {
		t.Errorf("attributes = %v", f.Attributes)
	}
	if c.Count(diag.UnknownAttribute) != 1 {
		t.Errorf("unknown attribute warnings = %d, want 1", c.Count(diag.UnknownAttribute))
	}
}

func TestBuildDeterministicAcrossWorkers(t *testing.T) {
	var b strings.Builder
	b.WriteString("{\n")
	for i := 0; i < 24; i++ {
		if i%5 == 3 {
			b.WriteString(flatBrush)
			continue
		}
		mat := "base/wall"
		if i%2 == 0 {
			mat = fmt.Sprintf("gen/m%d", i%7)
		}
		b.WriteString(boxBrush([3]int{i * 40, 0, 0}, [3]int{i*40 + 32, 32, 32}, all(mat), ""))
	}
	b.WriteString("}\n")
	m := parse(t, b.String())

	build := func(workers int) (*scene.Scene, []diag.Warning) {
		c := diag.NewCollector()
		s, err := New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{Workers: workers}, c, nil).Build(context.Background(), m)
		if err != nil {
			t.Fatalf("Build(%d): %v", workers, err)
		}
		return s, c.Warnings()
	}
	s1, w1 := build(1)
	s8, w8 := build(8)
	if !reflect.DeepEqual(s1, s8) {
		t.Error("scene differs between 1 and 8 workers")
	}
	if !reflect.DeepEqual(w1, w8) {
		t.Error("warnings differ between 1 and 8 workers")
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := "{\n" + boxBrush([3]int{0, 0, 0}, [3]int{32, 32, 32}, all("base/wall"), "") + "}\n"
	_, err := New(geometry.NewKernel(0), testGame(t, ""), resolver, Options{}, nil, nil).Build(ctx, parse(t, src))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
