package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickReportsPerInterval(t *testing.T) {
	var logs bytes.Buffer
	p := NewProfiler(
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithInterval(time.Second),
	)
	clock := p.lastTime
	p.now = func() time.Time { return clock }

	for range 9 {
		clock = clock.Add(100 * time.Millisecond)
		assert.False(t, p.Tick(10))
	}
	assert.Zero(t, p.Last().Frames)

	clock = clock.Add(100 * time.Millisecond)
	assert.True(t, p.Tick(10))

	r := p.Last()
	assert.Equal(t, 10, r.Frames)
	assert.Equal(t, 100, r.SkinnedVertices)
	assert.InDelta(t, 10, r.FPS, 1e-6)
	assert.Positive(t, r.HeapMB)
	assert.Contains(t, logs.String(), "skinned_vertices=100")

	clock = clock.Add(100 * time.Millisecond)
	assert.False(t, p.Tick(1), "counters restart after a report")
}
