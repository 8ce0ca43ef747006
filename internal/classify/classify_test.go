package classify

import (
	"context"
	"reflect"
	"testing"

	"github.com/Faultbox/brushforge/internal/gameconfig"
	"github.com/Faultbox/brushforge/internal/scene"
)

const rules = `
surface_flags:
  - name: slick
  - name: sky
brush_rules:
  - match: classname
    pattern: func_detail*
    attributes: [detail]
  - match: classname
    pattern: func_water
    attributes: [liquid]
face_rules:
  - name: glow overlay
    match: material
    pattern: "*glow*"
    attributes: [smooth-shading]
    additive: true
  - name: tools
    match: material
    pattern: "tools/*"
    attributes: [skip]
  - name: clip tool
    match: material
    pattern: "tools/clip"
    attributes: [clip]
  - name: sky
    match: surface_flag
    pattern: sky
    attributes: [nodraw]
`

func game(t *testing.T) *gameconfig.Game {
	t.Helper()
	g, err := gameconfig.Parse([]byte(rules), gameconfig.FormatYAML, scene.BuiltinAttributes)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return g
}

func faces(mats ...string) []scene.Face {
	out := make([]scene.Face, len(mats))
	for i, m := range mats {
		out[i] = scene.Face{Material: m}
	}
	return out
}

func TestFirstMatchWins(t *testing.T) {
	g := game(t)
	f := &scene.Face{Material: "tools/clip"}
	if got := FaceAttributes(g, f); !reflect.DeepEqual(got, []string{"skip"}) {
		t.Errorf("FaceAttributes(tools/clip) = %v, want [skip]", got)
	}
}

func TestAdditiveContinues(t *testing.T) {
	g := game(t)
	f := &scene.Face{Material: "tools/glow_skip"}
	if got := FaceAttributes(g, f); !reflect.DeepEqual(got, []string{"smooth-shading", "skip"}) {
		t.Errorf("FaceAttributes = %v", got)
	}
	f = &scene.Face{Material: "base/glow"}
	if got := FaceAttributes(g, f); !reflect.DeepEqual(got, []string{"smooth-shading"}) {
		t.Errorf("FaceAttributes = %v", got)
	}
}

func TestSurfaceFlagRule(t *testing.T) {
	g := game(t)
	bit, _ := g.FlagBit("sky")
	f := &scene.Face{Material: "base/sky1", Surface: bit}
	if got := FaceAttributes(g, f); !reflect.DeepEqual(got, []string{"nodraw"}) {
		t.Errorf("FaceAttributes = %v", got)
	}
}

func TestClassifyScene(t *testing.T) {
	s := &scene.Scene{Entities: []*scene.Entity{
		{ClassName: "worldspawn", Brushes: []*scene.Brush{{Faces: faces("base/wall", "TOOLS/Skip")}}},
		{ClassName: "func_detail_wall", Brushes: []*scene.Brush{{Faces: faces("base/wall")}}},
		{ClassName: "func_water", Brushes: []*scene.Brush{{Faces: faces("base/water")}}},
	}}

	out, err := Classify(context.Background(), s, game(t), 4)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	world := out.Entities[0].Brushes[0]
	if len(world.Faces[0].Attributes) != 0 || len(world.Faces[0].Inherited) != 0 {
		t.Errorf("plain face got %v / %v", world.Faces[0].Attributes, world.Faces[0].Inherited)
	}
	if !world.Faces[1].Has(scene.AttrSkip) || world.Faces[1].Visible() {
		t.Error("tools/skip should be skipped")
	}

	detail := out.Entities[1].Brushes[0].Faces[0]
	if !detail.Inherited.Has(scene.AttrDetail) || detail.Attributes.Has(scene.AttrDetail) {
		t.Errorf("detail brush attributes = %v / %v", detail.Attributes, detail.Inherited)
	}
	if out.Entities[2].Brushes[0].Faces[0].Collidable() {
		t.Error("water should not be collidable")
	}

	if s.Entities[0].Brushes[0].Faces[1].Attributes != nil {
		t.Error("Classify modified its input")
	}
}

func TestClassifyOrderIndependent(t *testing.T) {
	g := game(t)
	a := &scene.Scene{Entities: []*scene.Entity{{Brushes: []*scene.Brush{{Faces: faces("tools/clip", "x", "base/glow")}}}}}
	b := &scene.Scene{Entities: []*scene.Entity{{Brushes: []*scene.Brush{{Faces: faces("base/glow", "tools/clip", "x")}}}}}

	ra, _ := Classify(context.Background(), a, g, 1)
	rb, _ := Classify(context.Background(), b, g, 1)
	byMat := func(s *scene.Scene) map[string]scene.Attributes {
		m := map[string]scene.Attributes{}
		for _, f := range s.Entities[0].Brushes[0].Faces {
			m[f.Material] = f.Attributes
		}
		return m
	}
	if !reflect.DeepEqual(byMat(ra), byMat(rb)) {
		t.Errorf("classification depends on face order: %v vs %v", byMat(ra), byMat(rb))
	}
}
