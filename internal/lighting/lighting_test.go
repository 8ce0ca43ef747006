package lighting

import (
	"context"
	"errors"
	"fmt"
	gomath "math"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/brushforge/internal/builder"
	"github.com/Faultbox/brushforge/internal/diag"
	"github.com/Faultbox/brushforge/internal/gameconfig"
	"github.com/Faultbox/brushforge/internal/material"
	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/geometry"
	"github.com/Faultbox/brushforge/pkg/mapfile"
	"github.com/Faultbox/brushforge/pkg/math"
)

// box writes an axis-aligned brush. Faces come out as +z, -z, -x, +x, -y, +y.
func box(min, max [3]int) string {
	x0, y0, z0 := min[0], min[1], min[2]
	x1, y1, z1 := max[0], max[1], max[2]
	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) base/wall 0 0 0 1 1\n", x0, y0, z1, x0, y1, z1, x1, y1, z1)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) base/wall 0 0 0 1 1\n", x0, y0, z0, x1, y0, z0, x1, y1, z0)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) base/wall 0 0 0 1 1\n", x0, y0, z0, x0, y1, z0, x0, y1, z1)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) base/wall 0 0 0 1 1\n", x1, y0, z0, x1, y0, z1, x1, y1, z1)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) base/wall 0 0 0 1 1\n", x0, y0, z0, x0, y0, z1, x1, y0, z1)
	fmt.Fprintf(&b, "( %d %d %d ) ( %d %d %d ) ( %d %d %d ) base/wall 0 0 0 1 1\n", x0, y1, z0, x1, y1, z0, x1, y1, z1)
	b.WriteString("}\n")
	return b.String()
}

func world(brushes ...string) string {
	return "{\n\"classname\" \"worldspawn\"\n" + strings.Join(brushes, "") + "}\n"
}

func light(origin string, extra ...string) string {
	s := "{\n\"classname\" \"light\"\n\"origin\" \"" + origin + "\"\n"
	for i := 0; i+1 < len(extra); i += 2 {
		s += fmt.Sprintf("%q %q\n", extra[i], extra[i+1])
	}
	return s + "}\n"
}

func buildScene(t *testing.T, src string) *scene.Scene {
	t.Helper()
	m, err := mapfile.ParseBytes([]byte(src))
	require.NoError(t, err)
	game, err := gameconfig.Parse(nil, gameconfig.FormatYAML, scene.BuiltinAttributes)
	require.NoError(t, err)
	resolver := material.Static{
		"base/wall": {Name: "base/wall", Width: 64, Height: 64, Albedo: [3]float32{0.5, 0.5, 0.5}},
		"__missing": {Name: "__missing", Width: 16, Height: 16},
	}
	b := builder.New(geometry.NewKernel(0), game, resolver, builder.Options{}, diag.NewCollector(), nil)
	s, err := b.Build(context.Background(), m)
	require.NoError(t, err)
	return s
}

func bake(t *testing.T, s *scene.Scene, opts Options) *LitScene {
	t.Helper()
	require.NoError(t, opts.Validate())
	lights, err := ExtractLights(s, opts, nil)
	require.NoError(t, err)
	b, err := NewBaker(geometry.NewKernel(0), opts, nil)
	require.NoError(t, err)
	lit, err := b.Bake(context.Background(), s, lights)
	require.NoError(t, err)
	return lit
}

func TestBakeWithoutLightsIsAmbient(t *testing.T) {
	s := buildScene(t, world(box([3]int{-16, -16, -16}, [3]int{16, 16, 16})))
	opts := DefaultOptions()
	lit := bake(t, s, opts)

	require.Len(t, lit.Faces, 6)
	for _, smp := range lit.Samples {
		assert.Equal(t, opts.Ambient, smp.Radiance)
		assert.Equal(t, Final, smp.State)
	}
	require.Len(t, lit.Pages, 1)
}

func TestBakeTopFaceBrighterThanSides(t *testing.T) {
	s := buildScene(t, world(box([3]int{-64, -64, -16}, [3]int{64, 64, 0}))+light("0 0 64"))
	lit := bake(t, s, DefaultOptions())

	require.Len(t, lit.Lights, 1)
	top := lit.FaceAverage(0, 0)
	side := lit.FaceAverage(0, 2)
	assert.Greater(t, top[0], side[0])
	assert.Greater(t, top[0], float32(0.05))
}

func TestBakeShadow(t *testing.T) {
	src := world(
		box([3]int{-128, -32, -16}, [3]int{128, 32, 0}),
		box([3]int{-80, -32, 8}, [3]int{-48, 32, 24}),
	) + light("0 0 100")
	s := buildScene(t, src)
	opts := DefaultOptions()
	opts.Bounces = 0
	lit := bake(t, s, opts)

	shadowed := lit.RadianceAt(0, 0, math.Vec3{X: -64})
	open := lit.RadianceAt(0, 0, math.Vec3{X: 64})
	assert.Equal(t, opts.Ambient, shadowed)
	assert.Greater(t, open[0], shadowed[0])
}

func TestBakeInvertedFacesLitFromInside(t *testing.T) {
	s := buildScene(t, world(box([3]int{-64, -64, -64}, [3]int{64, 64, 64}))+light("0 0 0"))
	faces := s.Entities[0].Brushes[0].Faces
	for i := range faces {
		faces[i].Attributes = scene.Attributes{scene.AttrInvertNormal}
	}
	opts := DefaultOptions()
	opts.Bounces = 0
	lit := bake(t, s, opts)

	require.Len(t, lit.Faces, 6)
	for fi := range faces {
		avg := lit.FaceAverage(0, fi)
		assert.Greater(t, avg[0], opts.Ambient[0], "face %d", fi)
	}
}

func TestOccludersRejectNonFiniteSegments(t *testing.T) {
	occ := NewOccluders(geometry.NewKernel(0), &scene.Scene{})
	require.Equal(t, 0, occ.Len())

	nan := math.Vec3{X: gomath.NaN()}
	inf := math.Vec3{Z: gomath.Inf(1)}
	assert.True(t, occ.Visible(math.Vec3{}, math.Vec3{X: 1}))
	assert.False(t, occ.Visible(nan, math.Vec3{}))
	assert.False(t, occ.Visible(math.Vec3{}, inf))
}

func TestBakeNonFiniteLightStaysAmbient(t *testing.T) {
	s := buildScene(t, world(box([3]int{-16, -16, -16}, [3]int{16, 16, 16})))
	opts := DefaultOptions()
	b, err := NewBaker(geometry.NewKernel(0), opts, nil)
	require.NoError(t, err)
	lights := []Light{{Position: math.Vec3{X: gomath.NaN()}, Color: [3]float32{1, 1, 1}, Intensity: 300, Range: 300}}
	lit, err := b.Bake(context.Background(), s, lights)
	require.NoError(t, err)

	for _, smp := range lit.Samples {
		assert.Equal(t, opts.Ambient, smp.Radiance)
	}
}

func TestBakeEmissiveSurfaceFeedsBounce(t *testing.T) {
	src := world(box([3]int{-64, -64, -16}, [3]int{64, 64, 0})) +
		"{\n\"classname\" \"func_group\"\n\"emissive_color\" \"1 0 0\"\n" +
		box([3]int{-16, -16, 32}, [3]int{16, 16, 48}) + "}\n"
	s := buildScene(t, src)
	opts := DefaultOptions()
	opts.Bounces = 1
	lit := bake(t, s, opts)

	glow := lit.FaceAverage(1, 1)
	assert.InDelta(t, opts.Ambient[0]+1, glow[0], 1e-5)
	assert.InDelta(t, opts.Ambient[1], glow[1], 1e-6)

	floor := lit.FaceAverage(0, 0)
	assert.Greater(t, floor[0], opts.Ambient[0])
	assert.InDelta(t, opts.Ambient[1], floor[1], 1e-6)

	direct := bake(t, s, Options{Bounces: 0})
	assert.Zero(t, direct.FaceAverage(0, 0)[0])
	assert.InDelta(t, 1, direct.FaceAverage(1, 1)[0], 1e-5)
}

func TestBakeWorldspawnAtmosphere(t *testing.T) {
	src := "{\n\"classname\" \"worldspawn\"\n\"Ambient_color\" \"0 0 51\"\n\"Sun_color\" \"0 255 0\"\n" +
		box([3]int{-16, -16, -16}, [3]int{16, 16, 16}) + "}\n"
	s := buildScene(t, src)
	s.Entities[0].Brushes[0].Faces[0].Attributes = scene.Attributes{scene.AttrEmissive}
	opts := DefaultOptions()
	opts.Bounces = 0
	opts.EmissiveScale = 2
	lit := bake(t, s, opts)

	assert.InDelta(t, 0.2, lit.Ambient[2], 1e-6)
	assert.Zero(t, lit.Ambient[0])

	sky := lit.FaceAverage(0, 0)
	assert.InDelta(t, 2, sky[1], 1e-5)
	assert.InDelta(t, 0.2, sky[2], 1e-5)
	side := lit.FaceAverage(0, 2)
	assert.InDelta(t, 0, side[1], 1e-6)
	assert.InDelta(t, 0.2, side[2], 1e-5)
}

func TestBakeVertexMode(t *testing.T) {
	s := buildScene(t, world(box([3]int{-16, -16, -16}, [3]int{16, 16, 16}))+light("0 0 64"))
	opts := DefaultOptions()
	opts.Mode = ModeVertex
	lit := bake(t, s, opts)

	assert.Len(t, lit.Samples, 24)
	assert.Empty(t, lit.Pages)

	corner := math.Vec3{X: 16, Y: 16, Z: 16}
	top := lit.RadianceAt(0, 0, corner)
	bottom := lit.RadianceAt(0, 1, math.Vec3{X: 16, Y: 16, Z: -16})
	assert.Greater(t, top[0], bottom[0])

	_, _, ok := lit.LightmapUV(0, 0, corner)
	assert.False(t, ok)
}

func TestBakeDeterministicAcrossWorkers(t *testing.T) {
	src := world(
		box([3]int{-128, -128, -16}, [3]int{128, 128, 0}),
		box([3]int{-32, -32, 0}, [3]int{32, 32, 48}),
	) + light("64 64 96") + light("-64 -48 80", "_color", "255 128 0")
	s := buildScene(t, src)

	var prev *LitScene
	for _, workers := range []int{1, 3, 8} {
		opts := DefaultOptions()
		opts.Workers = workers
		opts.Bounces = 2
		lit := bake(t, s, opts)
		if prev != nil {
			assert.True(t, reflect.DeepEqual(prev.Samples, lit.Samples), "samples differ with %d workers", workers)
			assert.True(t, reflect.DeepEqual(prev.Pages, lit.Pages), "pages differ with %d workers", workers)
		}
		prev = lit
	}
}

func TestBakeCancelled(t *testing.T) {
	s := buildScene(t, world(box([3]int{-16, -16, -16}, [3]int{16, 16, 16})))
	b, err := NewBaker(geometry.NewKernel(0), DefaultOptions(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Bake(ctx, s, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLightmapUVInsideTile(t *testing.T) {
	s := buildScene(t, world(box([3]int{-64, -64, -16}, [3]int{64, 64, 0})))
	lit := bake(t, s, DefaultOptions())

	f, ok := lit.Face(0, 0)
	require.True(t, ok)
	size := float32(lit.Pages[f.Page].Size)
	for _, p := range s.Brushes()[0].Polygon(0) {
		page, uv, ok := lit.LightmapUV(0, 0, p)
		require.True(t, ok)
		assert.Equal(t, f.Page, page)
		assert.GreaterOrEqual(t, uv[0]*size, float32(f.X)+0.5-1e-3)
		assert.LessOrEqual(t, uv[0]*size, float32(f.X+f.Width)-0.5+1e-3)
		assert.GreaterOrEqual(t, uv[1]*size, float32(f.Y)+0.5-1e-3)
		assert.LessOrEqual(t, uv[1]*size, float32(f.Y+f.Height)-0.5+1e-3)
	}
}

func TestPackAtlas(t *testing.T) {
	faces := []FaceLighting{
		{Width: 4, Height: 4},
		{Width: 14, Height: 6},
		{Width: 6, Height: 6},
		{Width: 3, Height: 14},
		{Width: 5, Height: 2},
	}
	pages, err := packAtlas(faces, 16)
	require.NoError(t, err)
	require.Greater(t, len(pages), 1)

	type rect struct{ page, x0, y0, x1, y1 int }
	var placed []rect
	for i, f := range faces {
		r := rect{f.Page, f.X - tilePadding, f.Y - tilePadding, f.X + f.Width + tilePadding, f.Y + f.Height + tilePadding}
		assert.GreaterOrEqual(t, r.x0, 0, "face %d", i)
		assert.GreaterOrEqual(t, r.y0, 0, "face %d", i)
		assert.LessOrEqual(t, r.x1, 16, "face %d", i)
		assert.LessOrEqual(t, r.y1, 16, "face %d", i)
		for j, o := range placed {
			overlap := r.page == o.page && r.x0 < o.x1 && o.x0 < r.x1 && r.y0 < o.y1 && o.y0 < r.y1
			assert.False(t, overlap, "faces %d and %d overlap", i, j)
		}
		placed = append(placed, r)
	}

	_, err = packAtlas([]FaceLighting{{Width: 16, Height: 1}}, 16)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestExtractLights(t *testing.T) {
	src := world() +
		light("0 0 64", "light", "200", "_color", "255 128 0", "range", "500") +
		"{\n\"classname\" \"light_spot\"\n\"origin\" \"1 2 3\"\n\"_light\" \"0 255 0 150\"\n}\n" +
		"{\n\"classname\" \"light\"\n}\n" +
		light("0 0 0", "light", "0") +
		"{\n\"classname\" \"info_player_start\"\n\"origin\" \"0 0 0\"\n}\n"
	s := buildScene(t, src)

	c := diag.NewCollector()
	lights, err := ExtractLights(s, DefaultOptions(), c)
	require.NoError(t, err)
	require.Len(t, lights, 2)

	assert.Equal(t, float32(200), lights[0].Intensity)
	assert.Equal(t, float32(500), lights[0].Range)
	assert.InDelta(t, 128.0/255, lights[0].Color[1], 1e-6)
	assert.Equal(t, [3]float32{0, 1, 0}, lights[1].Color)
	assert.Equal(t, float32(150), lights[1].Intensity)
	assert.Equal(t, float32(300), lights[1].Range)

	assert.Equal(t, 2, c.Count(diag.IgnoredLight))
}

func TestExtractLightsNonFiniteOrigin(t *testing.T) {
	s := buildScene(t, world()+light("nan 0 0")+light("0 inf 0")+light("0 0 32"))

	c := diag.NewCollector()
	lights, err := ExtractLights(s, DefaultOptions(), c)
	require.NoError(t, err)
	require.Len(t, lights, 1)
	assert.Equal(t, math.Vec3{Z: 32}, lights[0].Position)
	assert.Equal(t, 2, c.Count(diag.IgnoredLight))
}

func TestOptionsValidate(t *testing.T) {
	o := Options{Bounces: 20}
	require.NoError(t, o.Validate())
	assert.Equal(t, MaxBounces, o.Bounces)
	assert.Equal(t, ModeLightmap, o.Mode)

	bad := []Options{
		{Mode: "spherical"},
		{Bounces: -1},
		{BounceRetention: 2},
		{PageSize: 4},
		{EmissiveScale: -1},
	}
	for _, o := range bad {
		assert.ErrorIs(t, o.Validate(), ErrInvalidOptions, "%+v", o)
	}
}

func TestWindow(t *testing.T) {
	assert.Equal(t, float32(1), window(0, 100))
	assert.Equal(t, float32(0), window(100, 100))
	assert.Less(t, window(80, 100), window(20, 100))
}
