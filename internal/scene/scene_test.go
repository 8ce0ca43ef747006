package scene

import "testing"

func TestAttributesWith(t *testing.T) {
	var a Attributes
	a = a.With(AttrSkip, AttrDetail, AttrSkip)
	if len(a) != 2 || a[0] != AttrDetail || a[1] != AttrSkip {
		t.Fatalf("With = %v", a)
	}
	b := a.With(AttrClip)
	if len(a) != 2 {
		t.Error("With modified its receiver")
	}
	if !b.Has(AttrClip) || !b.Has(AttrDetail) || b.Has(AttrLiquid) {
		t.Errorf("Has mismatch for %v", b)
	}
}

func TestFaceFlags(t *testing.T) {
	tests := []struct {
		name       string
		face       Face
		visible    bool
		collidable bool
	}{
		{"plain", Face{}, true, true},
		{"skip", Face{Attributes: Attributes{AttrSkip}}, false, true},
		{"clip inherited", Face{Inherited: Attributes{AttrClip}}, false, true},
		{"nodraw", Face{Attributes: Attributes{AttrNoDraw}}, false, true},
		{"liquid", Face{Inherited: Attributes{AttrLiquid}}, true, false},
		{"nonsolid", Face{Attributes: Attributes{AttrNonSolid}}, true, false},
	}
	for _, tt := range tests {
		if got := tt.face.Visible(); got != tt.visible {
			t.Errorf("%s: Visible = %v, want %v", tt.name, got, tt.visible)
		}
		if got := tt.face.Collidable(); got != tt.collidable {
			t.Errorf("%s: Collidable = %v, want %v", tt.name, got, tt.collidable)
		}
	}
}

func TestBrushOccludes(t *testing.T) {
	plain := &Brush{Faces: []Face{{}, {}}}
	if !plain.Occludes() {
		t.Error("plain brush should occlude")
	}
	detail := &Brush{Faces: []Face{{Inherited: Attributes{AttrDetail}}}}
	if detail.Occludes() {
		t.Error("detail brush should not occlude")
	}
	clip := &Brush{Faces: []Face{{Attributes: Attributes{AttrClip}}}}
	if clip.Occludes() {
		t.Error("brush without visible faces should not occlude")
	}
}

func TestCloneIsolatesFaces(t *testing.T) {
	s := &Scene{Entities: []*Entity{{Brushes: []*Brush{{Faces: []Face{{Material: "a"}}}}}}}
	c := s.Clone()
	c.Entities[0].Brushes[0].Faces[0].Attributes = Attributes{AttrSkip}
	if s.Entities[0].Brushes[0].Faces[0].Attributes != nil {
		t.Error("Clone shares face storage")
	}
	if c.FaceCount() != 1 || len(c.Brushes()) != 1 {
		t.Error("Clone lost brushes")
	}

	s.Atmosphere.Fog = Color{Set: true}
	if !s.Clone().Atmosphere.Fog.Set {
		t.Error("Clone lost the atmosphere")
	}
}

func TestEmission(t *testing.T) {
	s := &Scene{Entities: []*Entity{{}, {Surface: SurfaceProps{Emissive: Color{RGB: [3]float32{1, 0, 0}, Set: true}}}}}
	plain := &Brush{Entity: 0, Faces: []Face{{}, {Attributes: Attributes{AttrEmissive}}}}
	glowing := &Brush{Entity: 1, Faces: []Face{{}}}

	if _, ok := s.Emission(plain, 0); ok {
		t.Error("plain face emits")
	}
	if c, ok := s.Emission(plain, 1); !ok || c != [3]float32{1, 1, 1} {
		t.Errorf("emissive face without sun = %v, %v", c, ok)
	}
	s.Atmosphere.Sun = Color{RGB: [3]float32{0, 0, 1}, Set: true}
	if c, _ := s.Emission(plain, 1); c != [3]float32{0, 0, 1} {
		t.Errorf("emissive face with sun = %v", c)
	}
	if c, ok := s.Emission(glowing, 0); !ok || c != [3]float32{1, 0, 0} {
		t.Errorf("entity emissive_color = %v, %v", c, ok)
	}
}
