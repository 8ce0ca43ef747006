package gameconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a game configuration file syntax.
type Format int

const (
	FormatYAML Format = iota
	FormatTOML
)

// FormatFor picks the syntax from a file extension. Anything that is not
// .toml is read as YAML.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads, parses and validates a game configuration file.
func Load(path string, builtins []string) (*Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading game config: %w", err)
	}
	g, err := Parse(data, FormatFor(path), builtins)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	g.Dir = filepath.Dir(path)
	return g, nil
}

// Parse decodes and validates a game configuration. Unknown keys are
// rejected so that misspelled settings are not silently ignored.
func Parse(data []byte, format Format, builtins []string) (*Game, error) {
	g := &Game{}
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(g); err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(g); err != nil && !errors.Is(err, io.EOF) {
			return nil, &ConfigError{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
	}
	if err := g.Validate(builtins); err != nil {
		return nil, err
	}
	return g, nil
}

// ResolvePath returns p relative to the configuration's directory.
func (g *Game) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || g.Dir == "" {
		return p
	}
	return filepath.Join(g.Dir, p)
}
