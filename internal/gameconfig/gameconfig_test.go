package gameconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var builtins = []string{"detail", "clip", "skip", "nodraw", "nonsolid", "liquid", "smooth-shading", "invert-normal"}

const yamlGame = `
name: quake2
materials:
  root: textures
  extensions: [".TGA", png]
  default_scale: 1
surface_flags:
  - name: light
    description: emits light
  - name: slick
  - name: sky
brush_rules:
  - name: detail
    match: classname
    pattern: func_detail*
    attributes: [detail]
  - name: water
    pattern: func_water
    attributes: [liquid]
face_rules:
  - name: tools
    match: material
    pattern: "tools/skip"
    attributes: [skip]
  - name: slippery
    match: surface_flag
    pattern: slick
    attributes: [slick, nonsolid]
    additive: true
`

const tomlGame = `
name = "quake2"

[materials]
root = "textures"

[[surface_flags]]
name = "light"

[[surface_flags]]
name = "slick"

[[face_rules]]
name = "tools"
match = "material"
pattern = "TOOLS/*"
attributes = ["skip"]
`

func TestParseYAML(t *testing.T) {
	g, err := Parse([]byte(yamlGame), FormatYAML, builtins)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if g.Name != "quake2" {
		t.Errorf("Name = %q", g.Name)
	}
	if len(g.Materials.Extensions) != 2 || g.Materials.Extensions[0] != "tga" {
		t.Errorf("Extensions = %v", g.Materials.Extensions)
	}
	if g.Materials.Missing != "__missing" {
		t.Errorf("Missing = %q", g.Materials.Missing)
	}
	if bit, ok := g.FlagBit("SKY"); !ok || bit != 4 {
		t.Errorf("FlagBit(sky) = %d, %v", bit, ok)
	}
	if g.BrushRules[1].Match != MatchClassName {
		t.Errorf("default brush match = %q", g.BrushRules[1].Match)
	}
	if !g.BrushRules[0].Matches("FUNC_DETAIL_WALL") {
		t.Error("brush pattern should match case-insensitively")
	}
	if !g.Vocabulary("slick") || !g.Vocabulary("detail") || g.Vocabulary("glass") {
		t.Error("vocabulary mismatch")
	}
}

func TestParseTOML(t *testing.T) {
	g, err := Parse([]byte(tomlGame), FormatTOML, builtins)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !g.FaceRules[0].Matches("tools/clip") {
		t.Error("pattern should be lowercased")
	}
	if g.Materials.DefaultScale != 1 {
		t.Errorf("DefaultScale = %v", g.Materials.DefaultScale)
	}
}

func TestSurfaceFlagNames(t *testing.T) {
	g, err := Parse([]byte(yamlGame), FormatYAML, builtins)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	names, unknown := g.SurfaceFlagNames(1 | 4 | 64)
	if len(names) != 2 || names[0] != "light" || names[1] != "sky" {
		t.Errorf("names = %v", names)
	}
	if unknown != 64 {
		t.Errorf("unknown = %d, want 64", unknown)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"unknown attribute", "face_rules:\n  - pattern: '*'\n    attributes: [glass]\n", ErrUnknownAttribute},
		{"bad match", "brush_rules:\n  - match: material\n    pattern: '*'\n    attributes: [detail]\n", ErrInvalidRule},
		{"empty pattern", "face_rules:\n  - attributes: [skip]\n", ErrInvalidRule},
		{"no attributes", "face_rules:\n  - pattern: x\n", ErrInvalidRule},
		{"bad glob", "face_rules:\n  - pattern: '[abc'\n    attributes: [skip]\n", ErrInvalidPattern},
		{"duplicate flag", "surface_flags:\n  - name: a\n  - name: A\n", ErrInvalidFlag},
		{"unknown key", "nmae: typo\n", ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), FormatYAML, builtins)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("err is not a *ConfigError: %T", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.toml")
	if err := os.WriteFile(path, []byte(tomlGame), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := Load(path, builtins)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := g.ResolvePath(g.Materials.Root); got != filepath.Join(dir, "textures") {
		t.Errorf("ResolvePath = %q", got)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("face_rules:\n  - pattern: x\n    attributes: [glass]\n"), 0o644)
	_, err = Load(bad, builtins)
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Path != bad {
		t.Errorf("err = %v, want ConfigError for %s", err, bad)
	}
}
