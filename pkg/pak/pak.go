// Package pak reads and writes BrushForge level packages.
//
// A package is a 46-byte header followed by zlib-compressed file data and a
// compressed file table:
//
//	header   Magic[15] Reserved[15] TableOffset Seed FileCount Version
//	data     per-file zlib streams (stored raw when compression does not help)
//	table    compressedSize uncompressedSize zlib(name\0 entry[17] ...)
//
// Offsets in the header and entries are relative to the end of the header.
package pak

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Faultbox/brushforge/pkg/encoding"
)

const (
	// Magic identifies a package file.
	Magic = "BrushForge Pack"
	// Version is the current package layout version.
	Version    = 0x100
	headerSize = 46
	entrySize  = 17

	flagFile = 0x01
)

// Package errors.
var (
	ErrInvalidMagic       = errors.New("invalid package magic")
	ErrUnsupportedVersion = errors.New("unsupported package version")
	ErrNotFound           = errors.New("file not found")
	ErrCorrupt            = errors.New("corrupt package")
)

// Header contains package header information.
type Header struct {
	Magic       [15]byte
	Reserved    [15]byte
	TableOffset uint32
	Seed        uint32
	FileCount   uint32
	Version     uint32
}

// Entry represents a file entry in the package.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Archive is an opened package.
type Archive struct {
	r        io.ReaderAt
	closer   io.Closer
	header   Header
	fileList map[string]*Entry
}

// Open opens a package file for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	a, err := NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	a.closer = file
	return a, nil
}

// NewReader reads the header and file table from r.
func NewReader(r io.ReaderAt) (*Archive, error) {
	a := &Archive{r: r, fileList: make(map[string]*Entry)}
	if err := a.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := a.readFileTable(); err != nil {
		return nil, fmt.Errorf("reading file table: %w", err)
	}
	return a, nil
}

// Close closes the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Header returns the package header.
func (a *Archive) Header() Header {
	return a.header
}

func (a *Archive) readHeader() error {
	sr := io.NewSectionReader(a.r, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &a.header); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if string(a.header.Magic[:]) != Magic {
		return ErrInvalidMagic
	}
	if a.header.Version != Version {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	tableOffset := int64(a.header.TableOffset) + headerSize

	var sizes [8]byte
	if _, err := readAt(a.r, sizes[:], tableOffset); err != nil {
		return fmt.Errorf("%w: table sizes: %v", ErrCorrupt, err)
	}
	compressedSize := binary.LittleEndian.Uint32(sizes[0:])
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])

	compressedData := make([]byte, compressedSize)
	if _, err := readAt(a.r, compressedData, tableOffset+8); err != nil {
		return fmt.Errorf("%w: table data: %v", ErrCorrupt, err)
	}
	reader, err := zlib.NewReader(bytes.NewReader(compressedData))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer reader.Close()

	tableData := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(reader, tableData); err != nil {
		return fmt.Errorf("%w: table data: %v", ErrCorrupt, err)
	}

	offset := 0
	for i := uint32(0); i < a.header.FileCount; i++ {
		nameEnd := bytes.IndexByte(tableData[offset:], 0)
		if nameEnd < 0 {
			return fmt.Errorf("%w: entry %d has no name terminator", ErrCorrupt, i)
		}
		name := encoding.TrimNullString(tableData[offset : offset+nameEnd])
		offset += nameEnd + 1

		if offset+entrySize > len(tableData) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorrupt, i)
		}
		entry := &Entry{
			Name:             encoding.NormalizePath(name),
			CompressedSize:   binary.LittleEndian.Uint32(tableData[offset:]),
			AlignedSize:      binary.LittleEndian.Uint32(tableData[offset+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(tableData[offset+8:]),
			Flags:            tableData[offset+12],
			Offset:           binary.LittleEndian.Uint32(tableData[offset+13:]),
		}
		offset += entrySize

		if entry.Flags&flagFile != 0 {
			a.fileList[entry.Name] = entry
		}
	}
	return nil
}

// List returns all file paths in the package, sorted.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.fileList))
	for path := range a.fileList {
		result = append(result, path)
	}
	sort.Strings(result)
	return result
}

// Stat returns the entry for path.
func (a *Archive) Stat(path string) (*Entry, bool) {
	e, ok := a.fileList[encoding.NormalizePath(path)]
	return e, ok
}

// Contains checks if a file exists. Lookup is case-insensitive.
func (a *Archive) Contains(path string) bool {
	_, ok := a.fileList[encoding.NormalizePath(path)]
	return ok
}

// Read reads a file from the package.
func (a *Archive) Read(path string) ([]byte, error) {
	entry, ok := a.fileList[encoding.NormalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	compressedData := make([]byte, entry.AlignedSize)
	if _, err := readAt(a.r, compressedData, int64(entry.Offset)+headerSize); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrCorrupt, path, err)
	}
	if entry.CompressedSize > entry.AlignedSize {
		return nil, fmt.Errorf("%w: %s: compressed size exceeds stored size", ErrCorrupt, path)
	}

	if entry.CompressedSize == entry.UncompressedSize {
		return compressedData[:entry.UncompressedSize], nil
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressedData[:entry.CompressedSize]))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	defer reader.Close()

	result := make([]byte, entry.UncompressedSize)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return result, nil
}

// readAt fills buf from r at off, treating a full read at end of input as
// success.
func readAt(r io.ReaderAt, buf []byte, off int64) (int, error) {
	return io.ReadFull(io.NewSectionReader(r, off, int64(len(buf))), buf)
}
