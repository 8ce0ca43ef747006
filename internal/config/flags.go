package config

import "flag"

// Overrides holds command-line values that take priority over the file.
type Overrides struct {
	Debug   bool
	Workers int
	Bounces int
	Mode    string
	LogFile string
}

// RegisterFlags adds the override flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Overrides {
	o := &Overrides{}
	fs.BoolVar(&o.Debug, "debug", false, "Enable debug logging")
	fs.IntVar(&o.Workers, "workers", -1, "Worker count (0 = one per CPU)")
	fs.IntVar(&o.Bounces, "bounces", -1, "Indirect light bounces")
	fs.StringVar(&o.Mode, "mode", "", "Lighting mode: lightmap or vertex")
	fs.StringVar(&o.LogFile, "log-file", "", "Also write logs to this file")
	return o
}

// apply applies CLI flag overrides to the config.
func (o *Overrides) apply(cfg *Config) {
	if o == nil {
		return
	}
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if o.Workers >= 0 {
		cfg.Build.Workers = o.Workers
	}
	if o.Bounces >= 0 {
		cfg.Lighting.Bounces = o.Bounces
	}
	if o.Mode != "" {
		cfg.Lighting.Mode = o.Mode
	}
	if o.LogFile != "" {
		cfg.Logging.LogFile = o.LogFile
	}
}
