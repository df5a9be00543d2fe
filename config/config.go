// Package config loads the runtime settings of the animation pipeline from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned by Validate for out-of-range settings.
var ErrInvalidConfig = errors.New("config: invalid")

// Config is the full set of runtime settings.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Skinning SkinningConfig `toml:"skinning"`
	Physics  PhysicsConfig  `toml:"physics"`
	Profiler ProfilerConfig `toml:"profiler"`
	Log      LogConfig      `toml:"log"`
	Ragdoll  RagdollConfig  `toml:"ragdoll"`
}

// EngineConfig drives the fixed-tick loop and scene worker pool.
type EngineConfig struct {
	TickRate float64 `toml:"tick_rate"`
	Workers  int     `toml:"workers"`
}

// SkinningConfig controls mesh import.
type SkinningConfig struct {
	InfluencesPerVertex int `toml:"influences_per_vertex"`
}

// PhysicsConfig configures the ragdoll world.
type PhysicsConfig struct {
	FixedStep        float32    `toml:"fixed_step"`
	MaxSubsteps      int        `toml:"max_substeps"`
	SolverIterations int        `toml:"solver_iterations"`
	Gravity          [3]float32 `toml:"gravity"`
	Floor            *float32   `toml:"floor"`
}

// ProfilerConfig enables interval statistics.
type ProfilerConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// RagdollConfig points at the YAML chain definitions.
type RagdollConfig struct {
	ChainFile string `toml:"chain_file"`
}

// Duration is a time.Duration written as a Go duration string such as "1s" or "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the settings used when no file is given.
//
// Returns:
//   - Config: the default configuration
func Default() Config {
	return Config{
		Engine:   EngineConfig{TickRate: 60, Workers: 0},
		Skinning: SkinningConfig{InfluencesPerVertex: 4},
		Physics: PhysicsConfig{
			FixedStep:        1.0 / 120,
			MaxSubsteps:      8,
			SolverIterations: 8,
			Gravity:          [3]float32{0, -9.81, 0},
		},
		Profiler: ProfilerConfig{Interval: Duration{time.Second}},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads and validates a TOML file. Keys missing from the file keep their defaults.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Config: the loaded configuration
//   - error: read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w (in %s)", err, path)
	}
	return cfg, nil
}

// Parse decodes and validates TOML. Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the decoded configuration
//   - error: decode or validation error
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("config: decode: %s", strict.String())
		}
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting's range.
//
// Returns:
//   - error: ErrInvalidConfig (wrapped) naming the first bad setting, or nil
func (c Config) Validate() error {
	switch {
	case c.Engine.TickRate <= 0:
		return fmt.Errorf("%w: engine.tick_rate must be positive, got %v", ErrInvalidConfig, c.Engine.TickRate)
	case c.Engine.Workers < 0:
		return fmt.Errorf("%w: engine.workers must not be negative, got %d", ErrInvalidConfig, c.Engine.Workers)
	case c.Skinning.InfluencesPerVertex < 1:
		return fmt.Errorf("%w: skinning.influences_per_vertex must be at least 1, got %d", ErrInvalidConfig, c.Skinning.InfluencesPerVertex)
	case c.Physics.FixedStep <= 0:
		return fmt.Errorf("%w: physics.fixed_step must be positive, got %v", ErrInvalidConfig, c.Physics.FixedStep)
	case c.Physics.MaxSubsteps < 1:
		return fmt.Errorf("%w: physics.max_substeps must be at least 1, got %d", ErrInvalidConfig, c.Physics.MaxSubsteps)
	case c.Physics.SolverIterations < 1:
		return fmt.Errorf("%w: physics.solver_iterations must be at least 1, got %d", ErrInvalidConfig, c.Physics.SolverIterations)
	case c.Profiler.Enabled && c.Profiler.Interval.Duration <= 0:
		return fmt.Errorf("%w: profiler.interval must be positive", ErrInvalidConfig)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
//
// Returns:
//   - slog.Level: the level
//   - error: ErrInvalidConfig (wrapped) for an unknown name
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, l.Level)
	}
	return level, nil
}
