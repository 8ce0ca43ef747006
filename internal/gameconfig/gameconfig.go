// Package gameconfig loads per-game settings: material search paths, the
// surface flag catalog and the attribute classification rules.
package gameconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Configuration errors. They are always wrapped in a *ConfigError.
var (
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrInvalidRule      = errors.New("invalid rule")
	ErrInvalidPattern   = errors.New("invalid pattern")
	ErrInvalidFlag      = errors.New("invalid surface flag")
	ErrMalformed        = errors.New("malformed game config")
)

// MaxSurfaceFlags is the number of bits available in a face's surface word.
const MaxSurfaceFlags = 32

// Match selects what a rule's pattern is tested against.
type Match string

const (
	MatchClassName   Match = "classname"
	MatchMaterial    Match = "material"
	MatchSurfaceFlag Match = "surface_flag"
)

// Game is a game configuration.
type Game struct {
	Name         string        `yaml:"name" toml:"name"`
	Materials    Materials     `yaml:"materials" toml:"materials"`
	SurfaceFlags []SurfaceFlag `yaml:"surface_flags" toml:"surface_flags"`
	BrushRules   []Rule        `yaml:"brush_rules" toml:"brush_rules"`
	FaceRules    []Rule        `yaml:"face_rules" toml:"face_rules"`

	// Dir is the directory relative material paths are resolved against.
	Dir string `yaml:"-" toml:"-"`

	vocab map[string]struct{}
	flags map[string]uint32
}

// Materials configures material lookup.
type Materials struct {
	Root         string   `yaml:"root" toml:"root"`
	Extensions   []string `yaml:"extensions" toml:"extensions"`
	Archives     []string `yaml:"archives" toml:"archives"`
	DefaultScale float64  `yaml:"default_scale" toml:"default_scale"`
	Missing      string   `yaml:"missing" toml:"missing"`
}

// SurfaceFlag is one entry of the flag catalog. Its bit is 1 << position.
type SurfaceFlag struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description" toml:"description"`
}

// Rule maps a pattern to attributes.
type Rule struct {
	Name       string   `yaml:"name" toml:"name"`
	Match      Match    `yaml:"match" toml:"match"`
	Pattern    string   `yaml:"pattern" toml:"pattern"`
	Attributes []string `yaml:"attributes" toml:"attributes"`
	Additive   bool     `yaml:"additive" toml:"additive"`

	glob glob.Glob
}

// Matches reports whether s matches the rule's pattern, ignoring case.
// The rule must have been compiled by Validate.
func (r *Rule) Matches(s string) bool {
	return r.glob != nil && r.glob.Match(strings.ToLower(s))
}

// ConfigError describes an invalid game configuration.
type ConfigError struct {
	Path  string // config file, if known
	Where string // rule or flag that failed
	Err   error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("game config")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Where != "" {
		b.WriteString(": ")
		b.WriteString(e.Where)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Default extensions tried when resolving a material name.
var defaultExtensions = []string{"tga", "png", "jpg", "jpeg", "bmp", "gif"}

func (g *Game) applyDefaults() {
	if g.Name == "" {
		g.Name = "game"
	}
	if len(g.Materials.Extensions) == 0 {
		g.Materials.Extensions = append([]string(nil), defaultExtensions...)
	}
	for i, ext := range g.Materials.Extensions {
		g.Materials.Extensions[i] = strings.ToLower(strings.TrimPrefix(ext, "."))
	}
	if g.Materials.DefaultScale <= 0 {
		g.Materials.DefaultScale = 1
	}
	if g.Materials.Missing == "" {
		g.Materials.Missing = "__missing"
	}
}

// Validate applies defaults, compiles every rule pattern and checks that
// every attribute is known. Attributes may be built-ins or catalog flag
// names.
func (g *Game) Validate(builtins []string) error {
	g.applyDefaults()

	if len(g.SurfaceFlags) > MaxSurfaceFlags {
		return &ConfigError{Where: "surface_flags", Err: fmt.Errorf("%w: %d flags, at most %d", ErrInvalidFlag, len(g.SurfaceFlags), MaxSurfaceFlags)}
	}
	g.vocab = make(map[string]struct{}, len(builtins)+len(g.SurfaceFlags))
	for _, b := range builtins {
		g.vocab[b] = struct{}{}
	}
	g.flags = make(map[string]uint32, len(g.SurfaceFlags))
	for i, f := range g.SurfaceFlags {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		where := fmt.Sprintf("surface flag %d", i)
		if name == "" {
			return &ConfigError{Where: where, Err: fmt.Errorf("%w: empty name", ErrInvalidFlag)}
		}
		if _, dup := g.flags[name]; dup {
			return &ConfigError{Where: where, Err: fmt.Errorf("%w: duplicate name %q", ErrInvalidFlag, name)}
		}
		g.SurfaceFlags[i].Name = name
		g.flags[name] = 1 << uint(i)
		g.vocab[name] = struct{}{}
	}

	for i := range g.BrushRules {
		if err := g.compileRule(&g.BrushRules[i], "brush", i, MatchClassName); err != nil {
			return err
		}
	}
	for i := range g.FaceRules {
		if err := g.compileRule(&g.FaceRules[i], "face", i, MatchMaterial, MatchSurfaceFlag); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) compileRule(r *Rule, kind string, index int, allowed ...Match) error {
	where := fmt.Sprintf("%s rule %d", kind, index)
	if r.Name != "" {
		where = fmt.Sprintf("%s rule %q", kind, r.Name)
	}

	r.Match = Match(strings.ToLower(string(r.Match)))
	if r.Match == "" {
		r.Match = allowed[0]
	}
	ok := false
	for _, m := range allowed {
		if r.Match == m {
			ok = true
		}
	}
	if !ok {
		return &ConfigError{Where: where, Err: fmt.Errorf("%w: cannot match %q", ErrInvalidRule, r.Match)}
	}
	if strings.TrimSpace(r.Pattern) == "" {
		return &ConfigError{Where: where, Err: fmt.Errorf("%w: empty pattern", ErrInvalidRule)}
	}
	if len(r.Attributes) == 0 {
		return &ConfigError{Where: where, Err: fmt.Errorf("%w: no attributes", ErrInvalidRule)}
	}

	compiled, err := glob.Compile(strings.ToLower(r.Pattern))
	if err != nil {
		return &ConfigError{Where: where, Err: fmt.Errorf("%w: %q: %v", ErrInvalidPattern, r.Pattern, err)}
	}
	r.glob = compiled

	for i, a := range r.Attributes {
		a = strings.ToLower(strings.TrimSpace(a))
		if _, known := g.vocab[a]; !known {
			return &ConfigError{Where: where, Err: fmt.Errorf("%w: %q", ErrUnknownAttribute, a)}
		}
		r.Attributes[i] = a
	}
	return nil
}

// Vocabulary reports whether name is a known attribute.
func (g *Game) Vocabulary(name string) bool {
	_, ok := g.vocab[name]
	return ok
}

// FlagBit returns the bit assigned to a catalog flag.
func (g *Game) FlagBit(name string) (uint32, bool) {
	b, ok := g.flags[strings.ToLower(name)]
	return b, ok
}

// SurfaceFlagNames splits a surface word into catalog flag names (in
// catalog order) and the bits that have no catalog entry.
func (g *Game) SurfaceFlagNames(surface uint32) (names []string, unknown uint32) {
	for i, f := range g.SurfaceFlags {
		bit := uint32(1) << uint(i)
		if surface&bit != 0 {
			names = append(names, f.Name)
			surface &^= bit
		}
	}
	return names, surface
}
