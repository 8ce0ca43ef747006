// Package encoding provides text decoding helpers for map sources and
// archive paths.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeSource converts map source bytes to a UTF-8 string.
// Valid UTF-8 is returned as-is (minus a byte order mark). Anything else is
// assumed to come from an older editor writing Windows-1252.
func DecodeSource(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data)
	}
	return Windows1252ToUTF8(data)
}

// Windows1252ToUTF8 converts Windows-1252 encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func Windows1252ToUTF8(data []byte) string {
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// NormalizePath normalizes an archive or material path for case-insensitive
// lookup: backslashes become slashes, everything is lowercased and leading
// slashes are removed.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.ToLower(path)
	return strings.TrimLeft(path, "/")
}

// TrimNullString removes trailing null bytes and converts to string.
func TrimNullString(data []byte) string {
	return string(bytes.TrimRight(data, "\x00"))
}
