// Package scene holds the compiled map model shared by the pipeline stages.
//
// Geometry is immutable once built. Later stages annotate faces through
// Clone so that each stage's input stays untouched.
package scene

import (
	"github.com/Faultbox/brushforge/pkg/geometry"
	"github.com/Faultbox/brushforge/pkg/mapfile"
	"github.com/Faultbox/brushforge/pkg/math"
)

// Material is a resolved face material.
type Material struct {
	ID      int
	Name    string // normalized name
	Path    string // where the image was found, empty when missing
	Width   int
	Height  int
	Albedo  [3]float32
	Missing bool
}

// Projection describes how texture coordinates are derived for a face.
type Projection struct {
	Valve    bool
	UAxis    math.Vec3
	VAxis    math.Vec3
	Offset   [2]float64
	Rotation float64
	Scale    [2]float64
}

// Face is one polygon of a brush. Face i of a brush is face i of its Solid.
type Face struct {
	Plane      geometry.Plane
	Material   string
	MaterialID int
	Projection Projection
	Contents   uint32
	Surface    uint32
	Value      int32
	Line       int

	// Attributes come from face rules and surface flags, Inherited from
	// brush rules on the owning entity.
	Attributes Attributes
	Inherited  Attributes
}

// Has reports whether the face carries name at face or brush level.
func (f *Face) Has(name string) bool {
	return f.Attributes.Has(name) || f.Inherited.Has(name)
}

// Visible reports whether the face is rendered.
func (f *Face) Visible() bool {
	return !f.Has(AttrSkip) && !f.Has(AttrClip) && !f.Has(AttrNoDraw)
}

// Collidable reports whether the face belongs in the collision mesh.
func (f *Face) Collidable() bool {
	return !f.Has(AttrNonSolid) && !f.Has(AttrLiquid)
}

// Brush is a compiled convex brush.
type Brush struct {
	Entity int // index of the owning entity
	Index  int // index within the entity
	Global int // declaration index across the whole map
	Line   int
	Solid  *geometry.Solid
	Faces  []Face
}

// Polygon returns the vertex loop of face i.
func (b *Brush) Polygon(i int) []math.Vec3 {
	return b.Solid.Polygon(i)
}

// Occludes reports whether the brush blocks light. Detail and liquid
// brushes never do, nor do brushes without a rendered face.
func (b *Brush) Occludes() bool {
	visible := false
	for i := range b.Faces {
		f := &b.Faces[i]
		if f.Has(AttrDetail) || f.Has(AttrLiquid) {
			return false
		}
		if f.Visible() {
			visible = true
		}
	}
	return visible
}

// Color is an optional RGB colour in 0..1.
type Color struct {
	RGB [3]float32
	Set bool
}

// SurfaceProps are material overrides an entity applies to all of its
// faces.
type SurfaceProps struct {
	Ambient  Color
	Diffuse  Color
	Emissive Color
	Alpha    float32 // 1 unless material_alpha is given
	HasAlpha bool
}

// Atmosphere holds the worldspawn lighting environment.
type Atmosphere struct {
	Ambient    Color
	Sun        Color
	Fog        Color
	FogDensity float32 // 0..1
}

// Entity is a map entity with its compiled brushes.
type Entity struct {
	Index      int
	Line       int
	ClassName  string
	Properties mapfile.Properties
	HasOrigin  bool
	Origin     math.Vec3
	Surface    SurfaceProps
	Brushes    []*Brush
}

// Scene is the compiled map.
type Scene struct {
	Format     mapfile.Format
	Entities   []*Entity
	Materials  []Material
	Atmosphere Atmosphere
}

// Emission returns the colour face fi of b gives off. An entity
// emissive_color wins; otherwise emissive faces glow with the sun colour,
// or white when the map sets none.
func (s *Scene) Emission(b *Brush, fi int) ([3]float32, bool) {
	if b.Entity >= 0 && b.Entity < len(s.Entities) {
		if c := s.Entities[b.Entity].Surface.Emissive; c.Set {
			return c.RGB, true
		}
	}
	if !b.Faces[fi].Has(AttrEmissive) {
		return [3]float32{}, false
	}
	if s.Atmosphere.Sun.Set {
		return s.Atmosphere.Sun.RGB, true
	}
	return [3]float32{1, 1, 1}, true
}

// Brushes returns every brush in declaration order.
func (s *Scene) Brushes() []*Brush {
	var out []*Brush
	for _, e := range s.Entities {
		out = append(out, e.Brushes...)
	}
	return out
}

// FaceCount returns the number of faces across all brushes.
func (s *Scene) FaceCount() int {
	n := 0
	for _, e := range s.Entities {
		for _, b := range e.Brushes {
			n += len(b.Faces)
		}
	}
	return n
}

// Material returns the material with the given id.
func (s *Scene) Material(id int) *Material {
	if id < 0 || id >= len(s.Materials) {
		return nil
	}
	return &s.Materials[id]
}

// Clone copies the scene's entity, brush and face records. Solids are
// shared since they never change after building.
func (s *Scene) Clone() *Scene {
	out := &Scene{
		Format:     s.Format,
		Materials:  append([]Material(nil), s.Materials...),
		Entities:   make([]*Entity, len(s.Entities)),
		Atmosphere: s.Atmosphere,
	}
	for i, e := range s.Entities {
		ce := *e
		ce.Brushes = make([]*Brush, len(e.Brushes))
		for j, b := range e.Brushes {
			cb := *b
			cb.Faces = append([]Face(nil), b.Faces...)
			ce.Brushes[j] = &cb
		}
		out.Entities[i] = &ce
	}
	return out
}
