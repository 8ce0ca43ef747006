package builder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Faultbox/brushforge/internal/diag"
	"github.com/Faultbox/brushforge/internal/scene"
	"github.com/Faultbox/brushforge/pkg/mapfile"
)

// Entity keys carrying material overrides and the worldspawn atmosphere.
const (
	keyAmbientColor  = "ambient_color"
	keyDiffuseColor  = "diffuse_color"
	keyEmissiveColor = "emissive_color"
	keyMaterialAlpha = "material_alpha"

	keyAtmoAmbient = "Ambient_color"
	keyAtmoSun     = "Sun_color"
	keyAtmoFog     = "Fog_color"
	keyFogDensity  = "FogDensity"
)

func (b *Builder) surfaceProps(e *scene.Entity) scene.SurfaceProps {
	sp := scene.SurfaceProps{
		Ambient:  b.color(e, keyAmbientColor),
		Diffuse:  b.color(e, keyDiffuseColor),
		Emissive: b.color(e, keyEmissiveColor),
		Alpha:    1,
	}
	if v, ok := e.Properties.Get(keyMaterialAlpha); ok {
		if a, err := b.unitFloat(v); err != nil {
			b.invalid(e, keyMaterialAlpha, err)
		} else {
			sp.Alpha, sp.HasAlpha = a, true
		}
	}
	return sp
}

func (b *Builder) atmosphere(e *scene.Entity) scene.Atmosphere {
	a := scene.Atmosphere{
		Ambient: b.color(e, keyAtmoAmbient),
		Sun:     b.color(e, keyAtmoSun),
		Fog:     b.color(e, keyAtmoFog),
	}
	if v, ok := e.Properties.Get(keyFogDensity); ok {
		if d, err := b.unitFloat(v); err != nil {
			b.invalid(e, keyFogDensity, err)
		} else {
			a.FogDensity = d
		}
	}
	return a
}

func (b *Builder) color(e *scene.Entity, key string) scene.Color {
	v, ok := e.Properties.Get(key)
	if !ok {
		return scene.Color{}
	}
	rgb, err := mapfile.ParseColor(v)
	if err != nil {
		b.invalid(e, key, err)
		return scene.Color{}
	}
	return scene.Color{RGB: rgb, Set: true}
}

// unitFloat parses a number and clamps it to 0..1.
func (b *Builder) unitFloat(v string) (float32, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
	if err != nil || f != f {
		return 0, fmt.Errorf("invalid number %q", v)
	}
	return float32(min(max(f, 0), 1)), nil
}

func (b *Builder) invalid(e *scene.Entity, key string, err error) {
	b.diag.Add(diag.Warning{
		Kind:    diag.InvalidProperty,
		Entity:  e.Index,
		Brush:   -1,
		Line:    e.Line,
		Subject: key,
		Message: err.Error(),
	})
}
