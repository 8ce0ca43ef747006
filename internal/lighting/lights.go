package lighting

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Faultbox/brushforge/internal/diag"
	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/mapfile"
	"github.com/Faultbox/brushforge/pkg/math"
)

// Light is a static point light.
type Light struct {
	Entity    int
	Position  math.Vec3
	Color     [3]float32 // RGB, 0-1
	Intensity float32
	Range     float32
}

var (
	colorKeys     = []string{"_color", "color", "light_color"}
	intensityKeys = []string{"light", "_light", "intensity"}
	rangeKeys     = []string{"range", "_range", "radius"}
)

// ExtractLights collects the point lights of s. Entities whose classname
// matches one of opts.LightClassNames are lights; those without a usable
// origin or with no intensity are reported and skipped.
func ExtractLights(s *scene.Scene, opts Options, collector *diag.Collector) ([]Light, error) {
	matchers := make([]glob.Glob, 0, len(opts.LightClassNames))
	for _, p := range opts.LightClassNames {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, fmt.Errorf("%w: light classname %q: %v", ErrInvalidOptions, p, err)
		}
		matchers = append(matchers, g)
	}
	isLight := func(classname string) bool {
		classname = strings.ToLower(classname)
		for _, m := range matchers {
			if m.Match(classname) {
				return true
			}
		}
		return false
	}

	ignore := func(e *scene.Entity, msg string) {
		if collector != nil {
			collector.Add(diag.Warning{
				Kind:    diag.IgnoredLight,
				Entity:  e.Index,
				Brush:   -1,
				Line:    e.Line,
				Subject: e.ClassName,
				Message: msg,
			})
		}
	}

	var lights []Light
	for _, e := range s.Entities {
		if !isLight(e.ClassName) {
			continue
		}
		if !e.HasOrigin {
			ignore(e, "light has no usable origin")
			continue
		}
		if !e.Origin.IsFinite() {
			ignore(e, "light origin is not finite")
			continue
		}

		light := Light{
			Entity:    e.Index,
			Position:  e.Origin,
			Color:     [3]float32{1, 1, 1},
			Intensity: opts.DefaultIntensity,
			Range:     opts.DefaultRange,
		}

		if v, ok := firstKey(e, intensityKeys); ok {
			fields := strings.Fields(v)
			switch len(fields) {
			case 1:
				if f, err := strconv.ParseFloat(fields[0], 32); err == nil {
					light.Intensity = float32(f)
				}
			case 4:
				// "r g b intensity" with a 0-255 colour.
				if f, err := mapfile.ParseFloats(v, 4); err == nil {
					light.Color = mapfile.NormalizeColor(f[:3])
					light.Intensity = float32(f[3])
				}
			}
		}
		if v, ok := firstKey(e, colorKeys); ok {
			if f, err := mapfile.ParseFloats(v, 3); err == nil {
				light.Color = mapfile.NormalizeColor(f)
			}
		}
		if v, ok := firstKey(e, rangeKeys); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil {
				light.Range = float32(f)
			}
		}

		// Ensure range is positive
		if light.Range <= 0 {
			light.Range = opts.DefaultRange
		}
		if light.Intensity <= 0 || light.Color == [3]float32{} {
			ignore(e, "light has no intensity")
			continue
		}
		lights = append(lights, light)
	}
	return lights, nil
}

func firstKey(e *scene.Entity, keys []string) (string, bool) {
	for _, k := range keys {
		if v, ok := e.Properties.Get(k); ok {
			return v, true
		}
	}
	return "", false
}
