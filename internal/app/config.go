package app

import "errors"

// Config holds everything an App instance needs to run.
type Config struct {
	// TargetPath is a module file, or a directory in which every
	// *.preval.star file is evaluated.
	TargetPath string

	// OutPath optionally redirects the fragment in single-file mode.
	OutPath string

	// Extensions overrides the recognized source suffixes; empty means the
	// project configuration's setting, then the standard defaults.
	Extensions []string

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TargetPath == "" {
		return nil, errors.New("TargetPath is a required configuration field and cannot be empty")
	}

	return &cfg, nil
}
