// Package export writes a lit scene as a binary level.
//
// A level starts with a header and a lump directory followed by the lump
// payloads. All integers and floats are little endian:
//
//	magic      [4]byte "BFLV"
//	version    uint32
//	id         [16]byte  SHA-1 UUID over the lump payloads
//	lumpCount  uint32
//	directory  lumpCount x {tag [4]byte, offset uint32, length uint32}
//
// Lumps appear in the order materials, vertices, indices, surfaces,
// collision, lightmaps, entities, brushes, atmosphere.
package export

import (
	"errors"

	"github.com/google/uuid"
)

// Level format errors.
var (
	ErrExport          = errors.New("export failed")
	ErrInvalidMagic    = errors.New("invalid level magic: expected 'BFLV'")
	ErrUnsupported     = errors.New("unsupported level version")
	ErrTruncated       = errors.New("truncated level data")
	ErrMissingLump     = errors.New("missing level lump")
	ErrInvalidEntities = errors.New("invalid entity record")
)

const (
	Magic   = "BFLV"
	Version = 2

	headerSize = 4 + 4 + 16 + 4
	dirEntry   = 4 + 4 + 4
)

// Lump tags in file order.
const (
	LumpMaterials  = "MATL"
	LumpVertices   = "VERT"
	LumpIndices    = "INDX"
	LumpSurfaces   = "SURF"
	LumpCollision  = "COLL"
	LumpLightmaps  = "LMAP"
	LumpEntities   = "ENTS"
	LumpBrushes    = "BRSH"
	LumpAtmosphere = "ATMO"
)

var lumpOrder = []string{
	LumpMaterials,
	LumpVertices,
	LumpIndices,
	LumpSurfaces,
	LumpCollision,
	LumpLightmaps,
	LumpEntities,
	LumpBrushes,
	LumpAtmosphere,
}

// levelNamespace seeds level ids.
var levelNamespace = uuid.MustParse("5b0f3f8e-2c41-4f0e-9d7a-6c1b2f4e8a90")

// Material flags.
const (
	MaterialMissing uint32 = 1 << iota
)

// Surface flags mirror the face attributes that change how a surface is
// drawn.
const (
	SurfaceLiquid uint32 = 1 << iota
	SurfaceSmooth
	SurfaceInverted
	SurfaceDetail
	SurfaceNonSolid
	SurfaceEmissive
	SurfaceAmbient // Ambient holds an entity override
	SurfaceDiffuse // Diffuse holds an entity override
	SurfaceAlpha   // Alpha comes from material_alpha
)

// Atmosphere flags mark which colours the map sets.
const (
	AtmosphereAmbient uint32 = 1 << iota
	AtmosphereSun
	AtmosphereFog
)

// Brush flags.
const (
	BrushOccluder uint32 = 1 << iota
	BrushDetail
)

// Material is one entry of the materials lump.
type Material struct {
	Name   string
	Width  uint32
	Height uint32
	Flags  uint32
	Albedo [3]float32
}

// Vertex is one render vertex.
type Vertex struct {
	Position   [3]float32
	Normal     [3]float32
	UV         [2]float32
	LightmapUV [2]float32
	Radiance   [3]float32
}

// Surface is one rendered face. Its triangles index into the vertex range
// [FirstVertex, FirstVertex+VertexCount).
type Surface struct {
	Material    uint32
	Brush       uint32
	Face        uint32
	FirstVertex uint32
	VertexCount uint32
	FirstIndex  uint32
	IndexCount  uint32
	Lightmap    int32 // atlas page, -1 without one
	Flags       uint32
	Ambient     [3]float32
	Diffuse     [3]float32
	Emissive    [3]float32
	Alpha       float32
}

// CollisionTriangle is a triangle of the collision mesh with its source
// face.
type CollisionTriangle struct {
	Indices [3]uint32
	Brush   uint32
	Face    uint32
}

// Collision is the welded collision mesh.
type Collision struct {
	Vertices  [][3]float32
	Triangles []CollisionTriangle
}

// Lightmaps holds the RGB8 atlas pages.
type Lightmaps struct {
	PageSize uint32
	Pages    [][]byte
}

// Property is one entity key/value pair.
type Property struct {
	Key   string
	Value string
}

// Entity is an entity record.
type Entity struct {
	Index      uint32
	ClassName  string
	Properties []Property
	HasOrigin  bool
	Origin     [3]float32
	Brushes    uint32
}

// Brush is one compiled brush with the surfaces it contributes.
type Brush struct {
	Entity       uint32
	Global       uint32
	Min          [3]float32
	Max          [3]float32
	FirstSurface uint32
	SurfaceCount uint32
	Flags        uint32
}

// Atmosphere is the worldspawn lighting environment.
type Atmosphere struct {
	Flags      uint32
	Ambient    [3]float32
	Sun        [3]float32
	Fog        [3]float32
	FogDensity float32
}

// Level is the decoded content of a level file.
type Level struct {
	ID         uuid.UUID
	Version    uint32
	Materials  []Material
	Vertices   []Vertex
	Indices    []uint32
	Surfaces   []Surface
	Collision  Collision
	Lightmaps  Lightmaps
	Entities   []Entity
	Brushes    []Brush
	Atmosphere Atmosphere
}

// TriangleCount returns the number of render triangles.
func (l *Level) TriangleCount() int {
	return len(l.Indices) / 3
}
