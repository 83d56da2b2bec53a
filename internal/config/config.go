// Package config handles h3dtool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/modelpack/internal/convert"
	"github.com/Faultbox/modelpack/internal/logger"
)

// Config holds all tool settings.
type Config struct {
	Convert ConvertConfig `yaml:"convert"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// ConvertConfig holds scene conversion settings.
type ConvertConfig struct {
	TexturePrefix         string  `yaml:"texture_prefix"`
	InfluencePolicy       string  `yaml:"influence_policy"` // truncate or reject
	AnimationIndex        int     `yaml:"animation_index"`
	DefaultTicksPerSecond float64 `yaml:"default_ticks_per_second"`
	WeightTolerance       float32 `yaml:"weight_tolerance"`
	ScaleTolerance        float32 `yaml:"scale_tolerance"`
	Looping               bool    `yaml:"looping"`
}

// OutputConfig holds where converted containers go.
type OutputConfig struct {
	Dir string `yaml:"dir"` // empty means next to the source file
}

// LoggingConfig holds logging settings. The rotation fields only apply
// when LogFile is set.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// File returns the rotating file settings for logger.Init.
func (l LoggingConfig) File() logger.FileConfig {
	return logger.FileConfig{
		Path:       l.LogFile,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// Default returns a Config with sensible default values.
func Default() *Config {
	opts := convert.DefaultOptions()
	rotation := logger.DefaultFileConfig("")
	return &Config{
		Convert: ConvertConfig{
			TexturePrefix:         opts.TexturePrefix,
			InfluencePolicy:       string(opts.InfluencePolicy),
			AnimationIndex:        opts.AnimationIndex,
			DefaultTicksPerSecond: opts.DefaultTicksPerSecond,
			WeightTolerance:       opts.WeightTolerance,
			ScaleTolerance:        opts.ScaleTolerance,
			Looping:               opts.Looping,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAgeDays: rotation.MaxAgeDays,
			Compress:   rotation.Compress,
		},
	}
}

// Options converts the convert section into pipeline options.
func (c *Config) Options() (convert.Options, error) {
	policy, err := convert.ParseInfluencePolicy(c.Convert.InfluencePolicy)
	if err != nil {
		return convert.Options{}, err
	}
	if c.Convert.AnimationIndex < 0 {
		return convert.Options{}, fmt.Errorf("animation_index must not be negative, got %d", c.Convert.AnimationIndex)
	}
	return convert.Options{
		TexturePrefix:         c.Convert.TexturePrefix,
		InfluencePolicy:       policy,
		AnimationIndex:        c.Convert.AnimationIndex,
		DefaultTicksPerSecond: c.Convert.DefaultTicksPerSecond,
		WeightTolerance:       c.Convert.WeightTolerance,
		ScaleTolerance:        c.Convert.ScaleTolerance,
		Looping:               c.Convert.Looping,
	}, nil
}
