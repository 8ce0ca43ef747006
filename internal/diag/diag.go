// Package diag collects non-fatal compile warnings.
package diag

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Kind classifies a warning.
type Kind int

const (
	DegenerateBrush Kind = iota
	MissingMaterial
	UnknownAttribute
	IgnoredLight
	InvalidProperty
)

var kindNames = map[Kind]string{
	DegenerateBrush:  "degenerate-brush",
	MissingMaterial:  "missing-material",
	UnknownAttribute: "unknown-attribute",
	IgnoredLight:     "ignored-light",
	InvalidProperty:  "invalid-property",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kinds lists every warning kind in report order.
var Kinds = []Kind{DegenerateBrush, MissingMaterial, UnknownAttribute, IgnoredLight, InvalidProperty}

// Warning is a single diagnostic. Entity and Brush are -1 when not
// applicable.
type Warning struct {
	Kind    Kind
	Entity  int
	Brush   int
	Line    int
	Subject string
	Message string
}

func (w Warning) String() string {
	loc := ""
	if w.Line > 0 {
		loc = fmt.Sprintf("line %d: ", w.Line)
	}
	return fmt.Sprintf("%s%s: %s", loc, w.Kind, w.Message)
}

// Collector gathers warnings from concurrent stages.
type Collector struct {
	mu       sync.Mutex
	warnings []Warning
	once     map[string]struct{}
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{once: make(map[string]struct{})}
}

// Add records w.
func (c *Collector) Add(w Warning) {
	c.mu.Lock()
	c.warnings = append(c.warnings, w)
	c.mu.Unlock()
}

// AddOnce records w unless a warning with the same kind and key was
// already recorded. It reports whether w was added.
func (c *Collector) AddOnce(key string, w Warning) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := w.Kind.String() + "\x00" + key
	if _, ok := c.once[k]; ok {
		return false
	}
	c.once[k] = struct{}{}
	c.warnings = append(c.warnings, w)
	return true
}

// Warnings returns the recorded warnings in a deterministic order.
func (c *Collector) Warnings() []Warning {
	c.mu.Lock()
	out := append([]Warning(nil), c.warnings...)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Brush != b.Brush {
			return a.Brush < b.Brush
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Message < b.Message
	})
	return out
}

// Len returns the number of warnings.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warnings)
}

// Count returns the number of warnings of kind k.
func (c *Collector) Count(k Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.warnings {
		if w.Kind == k {
			n++
		}
	}
	return n
}

// Counts returns the number of warnings per kind. Every kind is present.
func (c *Collector) Counts() map[Kind]int {
	counts := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		counts[k] = 0
	}
	c.mu.Lock()
	for _, w := range c.warnings {
		counts[w.Kind]++
	}
	c.mu.Unlock()
	return counts
}

// Log writes every warning to log at warn level.
func (c *Collector) Log(log *zap.Logger) {
	for _, w := range c.Warnings() {
		fields := []zap.Field{zap.Stringer("kind", w.Kind)}
		if w.Line > 0 {
			fields = append(fields, zap.Int("line", w.Line))
		}
		if w.Entity >= 0 {
			fields = append(fields, zap.Int("entity", w.Entity))
		}
		if w.Brush >= 0 {
			fields = append(fields, zap.Int("brush", w.Brush))
		}
		if w.Subject != "" {
			fields = append(fields, zap.String("subject", w.Subject))
		}
		log.Warn(w.Message, fields...)
	}
}
