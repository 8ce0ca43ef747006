package pak

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Faultbox/brushforge/pkg/encoding"
)

// Writer collects files in memory and renders a package.
// Output does not depend on the order files were added.
type Writer struct {
	files map[string][]byte
}

// NewWriter returns an empty package writer.
func NewWriter() *Writer {
	return &Writer{files: make(map[string][]byte)}
}

// Add stores data under name, replacing any previous content.
func (w *Writer) Add(name string, data []byte) {
	w.files[encoding.NormalizePath(name)] = data
}

// Bytes renders the package.
func (w *Writer) Bytes() ([]byte, error) {
	names := make([]string, 0, len(w.files))
	for name := range w.files {
		names = append(names, name)
	}
	sort.Strings(names)

	var data bytes.Buffer
	var table bytes.Buffer
	for _, name := range names {
		content := w.files[name]
		stored, err := compress(content)
		if err != nil {
			return nil, fmt.Errorf("compressing %s: %w", name, err)
		}
		if len(stored) >= len(content) {
			stored = content
		}

		alignedSize := uint32(len(stored))
		if alignedSize%8 != 0 {
			alignedSize += 8 - alignedSize%8
		}

		var entry [entrySize]byte
		binary.LittleEndian.PutUint32(entry[0:], uint32(len(stored)))
		binary.LittleEndian.PutUint32(entry[4:], alignedSize)
		binary.LittleEndian.PutUint32(entry[8:], uint32(len(content)))
		entry[12] = flagFile
		binary.LittleEndian.PutUint32(entry[13:], uint32(data.Len()))

		table.WriteString(name)
		table.WriteByte(0)
		table.Write(entry[:])

		data.Write(stored)
		data.Write(make([]byte, int(alignedSize)-len(stored)))
	}

	compressedTable, err := compress(table.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compressing file table: %w", err)
	}

	header := Header{
		TableOffset: uint32(data.Len()),
		FileCount:   uint32(len(names)),
		Version:     Version,
	}
	copy(header.Magic[:], Magic)

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	out.Write(data.Bytes())
	binary.Write(&out, binary.LittleEndian, uint32(len(compressedTable)))
	binary.Write(&out, binary.LittleEndian, uint32(table.Len()))
	out.Write(compressedTable)
	return out.Bytes(), nil
}

// WriteTo renders the package and writes it to dst in one call.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	b, err := w.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(b)
	return int64(n), err
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFileAtomic writes data to path through a temporary file in the same
// directory and renames it into place. On error the destination is left
// untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
