package lighting

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is returned for lighting options that cannot be used.
var ErrInvalidOptions = errors.New("invalid lighting options")

// MaxBounces caps the number of indirect passes.
const MaxBounces = 8

// Mode selects where radiance is sampled.
type Mode string

const (
	// ModeLightmap samples a texel grid on every face.
	ModeLightmap Mode = "lightmap"
	// ModeVertex samples each face corner.
	ModeVertex Mode = "vertex"
)

// Options configures a bake.
type Options struct {
	Mode             Mode
	LuxelSize        float64 // world units per lightmap texel
	Ambient          [3]float32
	Bounces          int
	BounceRetention  float32 // fraction of received light re-emitted per bounce
	BounceStride     int     // every Nth sample of a face emits
	BounceAlbedo     bool    // tint re-emitted light by the material's average colour
	SampleOffset     float64 // distance samples are lifted off their surface
	IntensityScale   float32
	EmissiveScale    float32 // multiplies the colour of emissive surfaces
	DefaultIntensity float32
	DefaultRange     float32
	LightClassNames  []string
	PageSize         int // lightmap atlas page size in texels
	Workers          int
}

// DefaultOptions returns the stock bake settings.
func DefaultOptions() Options {
	return Options{
		Mode:             ModeLightmap,
		LuxelSize:        16,
		Ambient:          [3]float32{0.05, 0.05, 0.05},
		Bounces:          1,
		BounceRetention:  0.5,
		BounceStride:     1,
		SampleOffset:     0.5,
		IntensityScale:   16,
		EmissiveScale:    1,
		DefaultIntensity: 300,
		DefaultRange:     300,
		LightClassNames:  []string{"light", "light_*"},
		PageSize:         1024,
	}
}

// Validate checks the options and fills unset values from the defaults.
func (o *Options) Validate() error {
	d := DefaultOptions()
	if o.Mode == "" {
		o.Mode = d.Mode
	}
	if o.Mode != ModeLightmap && o.Mode != ModeVertex {
		return fmt.Errorf("%w: mode %q", ErrInvalidOptions, o.Mode)
	}
	if o.LuxelSize <= 0 {
		o.LuxelSize = d.LuxelSize
	}
	if o.Bounces < 0 {
		return fmt.Errorf("%w: bounces %d", ErrInvalidOptions, o.Bounces)
	}
	if o.Bounces > MaxBounces {
		o.Bounces = MaxBounces
	}
	if o.BounceRetention < 0 || o.BounceRetention > 1 {
		return fmt.Errorf("%w: bounce retention %g outside 0..1", ErrInvalidOptions, o.BounceRetention)
	}
	if o.BounceStride <= 0 {
		o.BounceStride = 1
	}
	if o.SampleOffset < 0 {
		return fmt.Errorf("%w: sample offset %g", ErrInvalidOptions, o.SampleOffset)
	}
	if o.IntensityScale <= 0 {
		o.IntensityScale = d.IntensityScale
	}
	if o.EmissiveScale < 0 {
		return fmt.Errorf("%w: emissive scale %g", ErrInvalidOptions, o.EmissiveScale)
	}
	if o.EmissiveScale == 0 {
		o.EmissiveScale = d.EmissiveScale
	}
	if o.DefaultIntensity <= 0 {
		o.DefaultIntensity = d.DefaultIntensity
	}
	if o.DefaultRange <= 0 {
		o.DefaultRange = d.DefaultRange
	}
	if len(o.LightClassNames) == 0 {
		o.LightClassNames = d.LightClassNames
	}
	if o.PageSize <= 0 {
		o.PageSize = d.PageSize
	}
	if o.PageSize < 8 {
		return fmt.Errorf("%w: page size %d", ErrInvalidOptions, o.PageSize)
	}
	return nil
}
