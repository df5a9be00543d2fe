package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
[engine]
tick_rate = 30.0
workers = 4

[skinning]
influences_per_vertex = 2

[physics]
solver_iterations = 12
gravity = [0.0, -3.0, 0.0]
floor = 0.0

[profiler]
enabled = true
interval = "250ms"

[log]
level = "debug"
json = true

[ragdoll]
chain_file = "chains.yaml"
`

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.Engine.TickRate)
	assert.Equal(t, 4, cfg.Engine.Workers)
	assert.Equal(t, 2, cfg.Skinning.InfluencesPerVertex)
	assert.Equal(t, 12, cfg.Physics.SolverIterations)
	assert.Equal(t, 8, cfg.Physics.MaxSubsteps, "missing keys keep their defaults")
	assert.Equal(t, [3]float32{0, -3, 0}, cfg.Physics.Gravity)
	require.NotNil(t, cfg.Physics.Floor)
	assert.Zero(t, *cfg.Physics.Floor)
	assert.True(t, cfg.Profiler.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Profiler.Interval.Duration)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "chains.yaml", cfg.Ragdoll.ChainFile)

	level, err := cfg.Log.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Nil(t, cfg.Physics.Floor)

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, empty)
}

func TestParseRejects(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		invalid bool
	}{
		{"unknown key", "[engine]\nspeed = 2\n", false},
		{"bad syntax", "[engine\n", false},
		{"bad duration", "[profiler]\ninterval = \"soon\"\n", false},
		{"zero tick rate", "[engine]\ntick_rate = 0.0\n", true},
		{"negative workers", "[engine]\nworkers = -1\n", true},
		{"no influences", "[skinning]\ninfluences_per_vertex = 0\n", true},
		{"zero substeps", "[physics]\nmax_substeps = 0\n", true},
		{"unknown level", "[log]\nlevel = \"loud\"\n", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			require.Error(t, err)
			if tc.invalid {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NotErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "animesh.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.Engine.TickRate)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorContains(t, err, "config: read")
}
