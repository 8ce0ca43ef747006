package export

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/Faultbox/brushforge/internal/lighting"
)

// Export renders lit completely in memory and writes it to w in one call.
// On error the destination must be discarded.
func Export(lit *lighting.LitScene, opts Options, w io.Writer) error {
	lvl, err := Build(lit, opts)
	if err != nil {
		return err
	}
	data, err := Encode(lvl)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: writing level: %v", ErrExport, err)
	}
	return nil
}

// Encode serializes lvl and sets its ID from the lump payloads.
func Encode(lvl *Level) ([]byte, error) {
	lumps := make([][]byte, len(lumpOrder))
	var err error
	for i, tag := range lumpOrder {
		if lumps[i], err = encodeLump(lvl, tag); err != nil {
			return nil, fmt.Errorf("%w: lump %s: %v", ErrExport, tag, err)
		}
	}
	lvl.ID = uuid.NewSHA1(levelNamespace, bytes.Join(lumps, nil))
	lvl.Version = Version

	var buf bytes.Buffer
	buf.WriteString(Magic)
	le := binary.LittleEndian
	buf.Write(le.AppendUint32(nil, Version))
	buf.Write(lvl.ID[:])
	buf.Write(le.AppendUint32(nil, uint32(len(lumps))))

	offset := uint32(headerSize + dirEntry*len(lumps))
	for i, tag := range lumpOrder {
		buf.WriteString(tag)
		buf.Write(le.AppendUint32(nil, offset))
		buf.Write(le.AppendUint32(nil, uint32(len(lumps[i]))))
		offset += uint32(len(lumps[i]))
	}
	for _, l := range lumps {
		buf.Write(l)
	}
	return buf.Bytes(), nil
}

func encodeLump(lvl *Level, tag string) ([]byte, error) {
	var buf bytes.Buffer
	w := func(v any) error { return binary.Write(&buf, binary.LittleEndian, v) }
	count := func(n int) error { return w(uint32(n)) }

	switch tag {
	case LumpMaterials:
		if err := count(len(lvl.Materials)); err != nil {
			return nil, err
		}
		for _, m := range lvl.Materials {
			if err := writeString(&buf, m.Name); err != nil {
				return nil, err
			}
			if err := w(struct {
				Width, Height, Flags uint32
				Albedo               [3]float32
			}{m.Width, m.Height, m.Flags, m.Albedo}); err != nil {
				return nil, err
			}
		}
	case LumpVertices:
		if err := count(len(lvl.Vertices)); err != nil {
			return nil, err
		}
		if err := w(lvl.Vertices); err != nil {
			return nil, err
		}
	case LumpIndices:
		if err := count(len(lvl.Indices)); err != nil {
			return nil, err
		}
		if err := w(lvl.Indices); err != nil {
			return nil, err
		}
	case LumpSurfaces:
		if err := count(len(lvl.Surfaces)); err != nil {
			return nil, err
		}
		if err := w(lvl.Surfaces); err != nil {
			return nil, err
		}
	case LumpCollision:
		if err := count(len(lvl.Collision.Vertices)); err != nil {
			return nil, err
		}
		if err := w(lvl.Collision.Vertices); err != nil {
			return nil, err
		}
		if err := count(len(lvl.Collision.Triangles)); err != nil {
			return nil, err
		}
		if err := w(lvl.Collision.Triangles); err != nil {
			return nil, err
		}
	case LumpLightmaps:
		if err := w([2]uint32{uint32(len(lvl.Lightmaps.Pages)), lvl.Lightmaps.PageSize}); err != nil {
			return nil, err
		}
		for _, p := range lvl.Lightmaps.Pages {
			buf.Write(p)
		}
	case LumpEntities:
		if err := count(len(lvl.Entities)); err != nil {
			return nil, err
		}
		for _, e := range lvl.Entities {
			rec := marshalEntity(e)
			if err := count(len(rec)); err != nil {
				return nil, err
			}
			buf.Write(rec)
		}
	case LumpBrushes:
		if err := count(len(lvl.Brushes)); err != nil {
			return nil, err
		}
		if err := w(lvl.Brushes); err != nil {
			return nil, err
		}
	case LumpAtmosphere:
		if err := w(lvl.Atmosphere); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("string too long (%d bytes)", len(s))
	}
	buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(len(s))))
	buf.WriteString(s)
	return nil
}

// Open reads and decodes a level file.
func Open(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level: %w", err)
	}
	return Decode(data)
}

// Decode parses level bytes.
func Decode(data []byte) (*Level, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: header", ErrTruncated)
	}
	if string(data[:4]) != Magic {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, data[:4])
	}
	le := binary.LittleEndian
	lvl := &Level{Version: le.Uint32(data[4:8])}
	if lvl.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, lvl.Version)
	}
	copy(lvl.ID[:], data[8:24])
	n := int(le.Uint32(data[24:28]))
	if len(data) < headerSize+n*dirEntry {
		return nil, fmt.Errorf("%w: lump directory", ErrTruncated)
	}

	lumps := make(map[string][]byte, n)
	for i := 0; i < n; i++ {
		d := data[headerSize+i*dirEntry:]
		tag := string(d[:4])
		off, size := int(le.Uint32(d[4:8])), int(le.Uint32(d[8:12]))
		if off < 0 || size < 0 || off+size > len(data) {
			return nil, fmt.Errorf("%w: lump %s", ErrTruncated, tag)
		}
		lumps[tag] = data[off : off+size]
	}
	for _, tag := range lumpOrder {
		payload, ok := lumps[tag]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingLump, tag)
		}
		if err := decodeLump(lvl, tag, bytes.NewReader(payload)); err != nil {
			return nil, fmt.Errorf("lump %s: %w", tag, err)
		}
	}
	return lvl, nil
}

func decodeLump(lvl *Level, tag string, r *bytes.Reader) error {
	read := func(v any) error {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return nil
	}
	count := func() (int, error) {
		var n uint32
		if err := read(&n); err != nil {
			return 0, err
		}
		if int64(n) > int64(r.Len()) {
			return 0, fmt.Errorf("%w: count %d exceeds payload", ErrTruncated, n)
		}
		return int(n), nil
	}

	switch tag {
	case LumpMaterials:
		n, err := count()
		if err != nil {
			return err
		}
		lvl.Materials = make([]Material, n)
		for i := range lvl.Materials {
			var l uint16
			if err := read(&l); err != nil {
				return err
			}
			name := make([]byte, l)
			if _, err := io.ReadFull(r, name); err != nil {
				return fmt.Errorf("%w: material name", ErrTruncated)
			}
			m := &lvl.Materials[i]
			m.Name = string(name)
			for _, v := range []any{&m.Width, &m.Height, &m.Flags, &m.Albedo} {
				if err := read(v); err != nil {
					return err
				}
			}
		}
	case LumpVertices:
		n, err := count()
		if err != nil {
			return err
		}
		lvl.Vertices = make([]Vertex, n)
		return read(lvl.Vertices)
	case LumpIndices:
		n, err := count()
		if err != nil {
			return err
		}
		lvl.Indices = make([]uint32, n)
		return read(lvl.Indices)
	case LumpSurfaces:
		n, err := count()
		if err != nil {
			return err
		}
		lvl.Surfaces = make([]Surface, n)
		return read(lvl.Surfaces)
	case LumpCollision:
		n, err := count()
		if err != nil {
			return err
		}
		lvl.Collision.Vertices = make([][3]float32, n)
		if err := read(lvl.Collision.Vertices); err != nil {
			return err
		}
		if n, err = count(); err != nil {
			return err
		}
		lvl.Collision.Triangles = make([]CollisionTriangle, n)
		return read(lvl.Collision.Triangles)
	case LumpLightmaps:
		var hdr [2]uint32
		if err := read(&hdr); err != nil {
			return err
		}
		lvl.Lightmaps.PageSize = hdr[1]
		pageBytes := int64(hdr[1]) * int64(hdr[1]) * 3
		if int64(hdr[0])*pageBytes > int64(r.Len()) {
			return fmt.Errorf("%w: lightmap pages", ErrTruncated)
		}
		for i := uint32(0); i < hdr[0]; i++ {
			page := make([]byte, pageBytes)
			if _, err := io.ReadFull(r, page); err != nil {
				return fmt.Errorf("%w: lightmap page %d", ErrTruncated, i)
			}
			lvl.Lightmaps.Pages = append(lvl.Lightmaps.Pages, page)
		}
	case LumpEntities:
		n, err := count()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			size, err := count()
			if err != nil {
				return err
			}
			rec := make([]byte, size)
			if _, err := io.ReadFull(r, rec); err != nil {
				return fmt.Errorf("%w: entity %d", ErrTruncated, i)
			}
			e, err := unmarshalEntity(rec)
			if err != nil {
				return err
			}
			lvl.Entities = append(lvl.Entities, e)
		}
	case LumpBrushes:
		n, err := count()
		if err != nil {
			return err
		}
		lvl.Brushes = make([]Brush, n)
		return read(lvl.Brushes)
	case LumpAtmosphere:
		return read(&lvl.Atmosphere)
	}
	return nil
}
