package profiler

import (
	"log/slog"
	"runtime"
	"time"
)

// Report is one interval's worth of statistics.
type Report struct {
	FPS             float64
	Frames          int
	SkinnedVertices int
	HeapMB          float64
	AllocRateMB     float64
	GCCount         uint32
	LastPauseUs     uint64
	MaxPauseUs      uint64
	SysMB           float64
}

// Profiler tracks frame rate, skinning load and memory statistics for performance monitoring.
// Outputs stats to its logger at a configurable interval.
type Profiler struct {
	logger          *slog.Logger
	frameCount      int
	skinnedVertices int
	lastTime        time.Time
	updateInterval  time.Duration
	memStats        runtime.MemStats
	lastGCCount     uint32
	lastTotalAlloc  uint64
	last            Report
	now             func() time.Time
}

// ProfilerOption is a functional option for configuring a Profiler.
type ProfilerOption func(*Profiler)

// WithLogger sets the logger reports go to. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) ProfilerOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithInterval sets the reporting interval. Non-positive values are ignored.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options for the logger and interval
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		logger:         slog.Default(),
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with the number of vertices skinned that frame.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, skinned vertices per second, heap usage, allocation rate, GC
// count/pause times, total memory.
//
// Parameters:
//   - skinnedVertices: the vertices skinned this frame
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(skinnedVertices int) bool {
	p.frameCount++
	p.skinnedVertices += skinnedVertices
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	// Alloc is the live heap, Sys the memory obtained from the OS.
	runtime.ReadMemStats(&p.memStats)
	r := Report{
		FPS:             float64(p.frameCount) / elapsed.Seconds(),
		Frames:          p.frameCount,
		SkinnedVertices: p.skinnedVertices,
		HeapMB:          float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:           float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB:     float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:         p.memStats.NumGC,
	}

	if gcCount := r.GCCount; gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.logger.Info("profiler",
		"fps", r.FPS,
		"skinned_vertices", r.SkinnedVertices,
		"heap_mb", r.HeapMB,
		"alloc_rate_mb", r.AllocRateMB,
		"gc", r.GCCount,
		"gc_last_us", r.LastPauseUs,
		"gc_max_us", r.MaxPauseUs,
		"sys_mb", r.SysMB,
	)

	p.last = r
	p.frameCount = 0
	p.skinnedVertices = 0
	p.lastTime = currentTime
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the most recent report, or the zero Report before the first interval elapses.
func (p *Profiler) Last() Report {
	return p.last
}
