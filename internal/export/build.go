package export

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/brushforge/internal/lighting"
	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/geometry"
	"github.com/Faultbox/brushforge/pkg/math"
)

var surfaceFlags = []struct {
	attr string
	flag uint32
}{
	{scene.AttrLiquid, SurfaceLiquid},
	{scene.AttrSmoothShading, SurfaceSmooth},
	{scene.AttrInvertNormal, SurfaceInverted},
	{scene.AttrDetail, SurfaceDetail},
	{scene.AttrNonSolid, SurfaceNonSolid},
	{scene.AttrEmissive, SurfaceEmissive},
}

// faceMesh is a visible face before transformation.
type faceMesh struct {
	brush    *scene.Brush
	face     int
	points   []math.Vec3
	normals  []math.Vec3
	radiance [][3]float32
	smooth   bool
}

// Build lays out lit as a level. The result has no ID until encoded.
func Build(lit *lighting.LitScene, opts Options) (*Level, error) {
	if lit == nil || lit.Scene == nil {
		return nil, fmt.Errorf("%w: no scene", ErrExport)
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	xf, err := NewTransform(opts)
	if err != nil {
		return nil, err
	}
	s := lit.Scene
	lvl := &Level{Version: Version}

	for _, m := range s.Materials {
		mat := Material{Name: m.Name, Width: uint32(m.Width), Height: uint32(m.Height), Albedo: m.Albedo}
		if m.Missing {
			mat.Flags |= MaterialMissing
		}
		lvl.Materials = append(lvl.Materials, mat)
	}

	meshes := collectFaces(lit)
	smoothFaces(meshes, opts.Epsilon)

	brushSurfaces := make(map[int][2]int)
	for _, fm := range meshes {
		if err := emitSurface(lvl, lit, xf, fm); err != nil {
			return nil, err
		}
		r, ok := brushSurfaces[fm.brush.Global]
		if !ok {
			r = [2]int{len(lvl.Surfaces) - 1, 0}
		}
		r[1]++
		brushSurfaces[fm.brush.Global] = r
	}

	emitCollision(lvl, s, xf, opts.Epsilon*gomath.Abs(opts.Scale))

	if lit.Mode == lighting.ModeLightmap && len(lit.Pages) > 0 {
		lvl.Lightmaps.PageSize = uint32(lit.Pages[0].Size)
		for _, p := range lit.Pages {
			lvl.Lightmaps.Pages = append(lvl.Lightmaps.Pages, p.Data)
		}
	}

	for _, e := range s.Entities {
		rec := Entity{Index: uint32(e.Index), ClassName: e.ClassName, Brushes: uint32(len(e.Brushes))}
		for _, k := range e.Properties.Keys() {
			v, _ := e.Properties.Get(k)
			rec.Properties = append(rec.Properties, Property{Key: k, Value: v})
		}
		if e.HasOrigin {
			rec.HasOrigin = true
			rec.Origin = xf.Point(e.Origin).Float32()
		}
		lvl.Entities = append(lvl.Entities, rec)
	}

	lvl.Atmosphere = atmosphereRecord(s.Atmosphere)

	for _, b := range s.Brushes() {
		box := transformBounds(xf, b.Solid.Bounds)
		rec := Brush{
			Entity: uint32(b.Entity),
			Global: uint32(b.Global),
			Min:    box.Min.Float32(),
			Max:    box.Max.Float32(),
		}
		if r, ok := brushSurfaces[b.Global]; ok {
			rec.FirstSurface, rec.SurfaceCount = uint32(r[0]), uint32(r[1])
		}
		if b.Occludes() {
			rec.Flags |= BrushOccluder
		}
		for i := range b.Faces {
			if b.Faces[i].Has(scene.AttrDetail) {
				rec.Flags |= BrushDetail
				break
			}
		}
		lvl.Brushes = append(lvl.Brushes, rec)
	}
	return lvl, nil
}

// applySurfaceProps copies the owning entity's material overrides and the
// face's emission onto surf.
func applySurfaceProps(surf *Surface, s *scene.Scene, b *scene.Brush, fi int) {
	sp := s.Entities[b.Entity].Surface
	surf.Alpha = 1
	if sp.HasAlpha {
		surf.Alpha = sp.Alpha
		surf.Flags |= SurfaceAlpha
	}
	if sp.Ambient.Set {
		surf.Ambient = sp.Ambient.RGB
		surf.Flags |= SurfaceAmbient
	}
	if sp.Diffuse.Set {
		surf.Diffuse = sp.Diffuse.RGB
		surf.Flags |= SurfaceDiffuse
	}
	if c, ok := s.Emission(b, fi); ok {
		surf.Emissive = c
		surf.Flags |= SurfaceEmissive
	}
}

func atmosphereRecord(a scene.Atmosphere) Atmosphere {
	rec := Atmosphere{FogDensity: a.FogDensity}
	for _, c := range []struct {
		src  scene.Color
		dst  *[3]float32
		flag uint32
	}{
		{a.Ambient, &rec.Ambient, AtmosphereAmbient},
		{a.Sun, &rec.Sun, AtmosphereSun},
		{a.Fog, &rec.Fog, AtmosphereFog},
	} {
		if c.src.Set {
			*c.dst = c.src.RGB
			rec.Flags |= c.flag
		}
	}
	return rec
}

func collectFaces(lit *lighting.LitScene) []*faceMesh {
	var out []*faceMesh
	for _, b := range lit.Scene.Brushes() {
		for fi := range b.Faces {
			f := &b.Faces[fi]
			if !f.Visible() {
				continue
			}
			n := f.Plane.Normal
			if f.Has(scene.AttrInvertNormal) {
				n = n.Neg()
			}
			fm := &faceMesh{brush: b, face: fi, points: b.Polygon(fi), smooth: f.Has(scene.AttrSmoothShading)}
			for _, p := range fm.points {
				fm.normals = append(fm.normals, n)
				fm.radiance = append(fm.radiance, lit.RadianceAt(b.Global, fi, p))
			}
			out = append(out, fm)
		}
	}
	return out
}

// smoothFaces replaces the normals and radiance of smooth-shaded vertices
// by the average over all smooth faces of the same entity meeting there.
func smoothFaces(meshes []*faceMesh, eps float64) {
	type accum struct {
		normal   math.Vec3
		radiance [3]float32
		count    float32
	}
	welders := make(map[int]*geometry.Welder)
	sums := make(map[int][]accum)
	slots := make(map[*faceMesh][]int)

	for _, fm := range meshes {
		if !fm.smooth {
			continue
		}
		w, ok := welders[fm.brush.Entity]
		if !ok {
			w = geometry.NewWelder(eps)
			welders[fm.brush.Entity] = w
		}
		ids := make([]int, len(fm.points))
		for i, p := range fm.points {
			id := w.Add(p)
			acc := sums[fm.brush.Entity]
			for len(acc) <= id {
				acc = append(acc, accum{})
			}
			acc[id].normal = acc[id].normal.Add(fm.normals[i])
			for c := 0; c < 3; c++ {
				acc[id].radiance[c] += fm.radiance[i][c]
			}
			acc[id].count++
			sums[fm.brush.Entity] = acc
			ids[i] = id
		}
		slots[fm] = ids
	}

	for _, fm := range meshes {
		ids, ok := slots[fm]
		if !ok {
			continue
		}
		acc := sums[fm.brush.Entity]
		for i, id := range ids {
			a := acc[id]
			if n := a.normal.Normalize(); n.LengthSq() > 0 {
				fm.normals[i] = n
			}
			fm.radiance[i] = [3]float32{a.radiance[0] / a.count, a.radiance[1] / a.count, a.radiance[2] / a.count}
		}
	}
}

func emitSurface(lvl *Level, lit *lighting.LitScene, xf Transform, fm *faceMesh) error {
	f := &fm.brush.Faces[fm.face]
	mat := lit.Scene.Material(f.MaterialID)
	if mat == nil {
		return fmt.Errorf("%w: brush %d face %d has no material", ErrExport, fm.brush.Global, fm.face)
	}

	u, v := textureAxes(f.Projection, f.Plane.Normal)
	surf := Surface{
		Material:    uint32(f.MaterialID),
		Brush:       uint32(fm.brush.Global),
		Face:        uint32(fm.face),
		FirstVertex: uint32(len(lvl.Vertices)),
		VertexCount: uint32(len(fm.points)),
		FirstIndex:  uint32(len(lvl.Indices)),
		Lightmap:    -1,
	}
	for _, sf := range surfaceFlags {
		if f.Has(sf.attr) {
			surf.Flags |= sf.flag
		}
	}
	applySurfaceProps(&surf, lit.Scene, fm.brush, fm.face)

	for i, p := range fm.points {
		vert := Vertex{
			Position: xf.Point(p).Float32(),
			Normal:   xf.Normal(fm.normals[i]).Float32(),
			UV:       textureUV(p, u, v, f.Projection, mat.Width, mat.Height),
			Radiance: fm.radiance[i],
		}
		if page, uv, ok := lit.LightmapUV(fm.brush.Global, fm.face, p); ok {
			vert.LightmapUV = uv
			surf.Lightmap = int32(page)
		}
		lvl.Vertices = append(lvl.Vertices, vert)
	}

	reversed := f.Has(scene.AttrInvertNormal) != xf.Mirrors()
	tris := geometry.FanTriangles(len(fm.points), reversed)
	if f.Has(scene.AttrLiquid) {
		tris = append(tris, geometry.FanTriangles(len(fm.points), !reversed)...)
	}
	for _, t := range tris {
		for _, i := range t {
			lvl.Indices = append(lvl.Indices, surf.FirstVertex+uint32(i))
		}
	}
	surf.IndexCount = uint32(len(lvl.Indices)) - surf.FirstIndex
	lvl.Surfaces = append(lvl.Surfaces, surf)
	return nil
}

// emitCollision adds every collidable face, rendered or not, to the welded
// collision mesh. Winding follows the geometric outward normal.
func emitCollision(lvl *Level, s *scene.Scene, xf Transform, eps float64) {
	w := geometry.NewWelder(eps)
	for _, b := range s.Brushes() {
		for fi := range b.Faces {
			if !b.Faces[fi].Collidable() {
				continue
			}
			poly := b.Polygon(fi)
			ids := make([]uint32, len(poly))
			for i, p := range poly {
				ids[i] = uint32(w.Add(xf.Point(p)))
			}
			for _, t := range geometry.FanTriangles(len(poly), xf.Mirrors()) {
				a, b2, c := ids[t[0]], ids[t[1]], ids[t[2]]
				if a == b2 || b2 == c || a == c {
					continue
				}
				lvl.Collision.Triangles = append(lvl.Collision.Triangles, CollisionTriangle{
					Indices: [3]uint32{a, b2, c},
					Brush:   uint32(b.Global),
					Face:    uint32(fi),
				})
			}
		}
	}
	for _, p := range w.Points() {
		lvl.Collision.Vertices = append(lvl.Collision.Vertices, p.Float32())
	}
}

func transformBounds(xf Transform, box geometry.AABB) geometry.AABB {
	corners := make([]math.Vec3, 0, 8)
	for i := 0; i < 8; i++ {
		c := box.Min
		if i&1 != 0 {
			c.X = box.Max.X
		}
		if i&2 != 0 {
			c.Y = box.Max.Y
		}
		if i&4 != 0 {
			c.Z = box.Max.Z
		}
		corners = append(corners, xf.Point(c))
	}
	return geometry.BoundsOf(corners)
}
