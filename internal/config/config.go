// Package config handles compiler configuration loading and management.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all compiler settings.
type Config struct {
	Geometry GeometryConfig `yaml:"geometry"`
	Build    BuildConfig    `yaml:"build"`
	Lighting LightingConfig `yaml:"lighting"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GeometryConfig holds geometry kernel settings.
type GeometryConfig struct {
	Epsilon float64 `yaml:"epsilon"`
}

// BuildConfig holds brush compilation settings.
type BuildConfig struct {
	Workers              int `yaml:"workers"` // 0 = one per CPU
	MaxDegenerateBrushes int `yaml:"max_degenerate_brushes"`
}

// LightingConfig holds bake settings.
type LightingConfig struct {
	Mode             string     `yaml:"mode"`
	LuxelSize        float64    `yaml:"luxel_size"`
	Ambient          [3]float32 `yaml:"ambient,flow"`
	Bounces          int        `yaml:"bounces"`
	BounceRetention  float32    `yaml:"bounce_retention"`
	BounceStride     int        `yaml:"bounce_stride"`
	BounceAlbedo     bool       `yaml:"bounce_albedo"`
	SampleOffset     float64    `yaml:"sample_offset"`
	IntensityScale   float32    `yaml:"intensity_scale"`
	EmissiveScale    float32    `yaml:"emissive_scale"`
	DefaultIntensity float32    `yaml:"default_intensity"`
	DefaultRange     float32    `yaml:"default_range"`
	LightClassNames  []string   `yaml:"light_classnames"`
}

// ExportConfig holds level output settings.
type ExportConfig struct {
	Scale            float64 `yaml:"scale"`
	UpAxis           string  `yaml:"up_axis"`
	LightmapPageSize int     `yaml:"lightmap_page_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the stock compiler settings.
func Default() *Config {
	return &Config{
		Geometry: GeometryConfig{
			Epsilon: 1e-5,
		},
		Build: BuildConfig{
			Workers:              0,
			MaxDegenerateBrushes: 100,
		},
		Lighting: LightingConfig{
			Mode:             "lightmap",
			LuxelSize:        16,
			Ambient:          [3]float32{0.05, 0.05, 0.05},
			Bounces:          1,
			BounceRetention:  0.5,
			BounceStride:     1,
			BounceAlbedo:     false,
			SampleOffset:     0.5,
			IntensityScale:   16,
			EmissiveScale:    1,
			DefaultIntensity: 300,
			DefaultRange:     300,
			LightClassNames:  []string{"light", "light_*"},
		},
		Export: ExportConfig{
			Scale:            1,
			UpAxis:           "z",
			LightmapPageSize: 1024,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.Geometry.Epsilon > 0 && c.Geometry.Epsilon < 1, "geometry.epsilon %g must be in (0, 1)", c.Geometry.Epsilon)
	check(c.Build.Workers >= 0, "build.workers %d is negative", c.Build.Workers)
	check(c.Lighting.Mode == "lightmap" || c.Lighting.Mode == "vertex", "lighting.mode %q must be lightmap or vertex", c.Lighting.Mode)
	check(c.Lighting.LuxelSize > 0, "lighting.luxel_size %g must be positive", c.Lighting.LuxelSize)
	check(c.Lighting.Bounces >= 0, "lighting.bounces %d is negative", c.Lighting.Bounces)
	check(c.Lighting.BounceRetention >= 0 && c.Lighting.BounceRetention <= 1, "lighting.bounce_retention %g must be in [0, 1]", c.Lighting.BounceRetention)
	check(c.Lighting.BounceStride >= 1, "lighting.bounce_stride %d must be at least 1", c.Lighting.BounceStride)
	check(c.Lighting.SampleOffset >= 0, "lighting.sample_offset %g is negative", c.Lighting.SampleOffset)
	check(c.Lighting.IntensityScale > 0, "lighting.intensity_scale %g must be positive", c.Lighting.IntensityScale)
	check(c.Lighting.EmissiveScale >= 0, "lighting.emissive_scale %g is negative", c.Lighting.EmissiveScale)
	for i, a := range c.Lighting.Ambient {
		check(a >= 0, "lighting.ambient[%d] %g is negative", i, a)
	}
	check(c.Export.Scale != 0, "export.scale must not be zero")
	check(c.Export.UpAxis == "z" || c.Export.UpAxis == "y", "export.up_axis %q must be z or y", c.Export.UpAxis)
	check(c.Export.LightmapPageSize >= 8, "export.lightmap_page_size %d must be at least 8", c.Export.LightmapPageSize)
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		check(false, "logging.level %q", c.Logging.Level)
	}
	return errors.Join(errs...)
}
