package scene

import (
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-animesh/engine/game_object"
	"github.com/Carmen-Shannon/oxy-animesh/engine/renderer/bind_group_provider"
)

// FrameStats summarizes the last Scene.Update.
type FrameStats struct {
	// Objects is the number of enabled objects updated.
	Objects int
	// SkinnedVertices sums the vertex counts of the updated instances.
	SkinnedVertices int
	// Failures counts objects whose update panicked or whose upload failed.
	Failures int
	// Duration is the wall time of the update.
	Duration time.Duration
}

// Scene owns a registry of GameObjects and advances them one frame at a time.
// Thread-safe for concurrent access.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether Update advances this scene.
	Active() bool

	// SetActive sets whether Update advances this scene.
	SetActive(active bool)

	// Count returns the number of registered objects.
	//
	// Returns:
	//   - int: the object count
	Count() int

	// Add registers an object, assigning an ID when it has none.
	//
	// Parameters:
	//   - obj: the object to add
	//
	// Returns:
	//   - uint64: the object's ID
	Add(obj game_object.GameObject) uint64

	// Get returns a registered object, or nil.
	//
	// Parameters:
	//   - id: the object ID
	//
	// Returns:
	//   - game_object.GameObject: the object or nil
	Get(id uint64) game_object.GameObject

	// Objects returns the registered objects ordered by ID.
	//
	// Returns:
	//   - []game_object.GameObject: the objects
	Objects() []game_object.GameObject

	// Remove unregisters an object and releases its uploaded buffers.
	//
	// Parameters:
	//   - id: the object ID
	Remove(id uint64)

	// Clear unregisters every object and releases every uploaded buffer.
	Clear()

	// Uploader returns the mesh uploader render emission goes to, or nil.
	//
	// Returns:
	//   - bind_group_provider.MeshUploader: the uploader or nil
	Uploader() bind_group_provider.MeshUploader

	// Update advances every enabled object by dt. Objects run in parallel on the scene's worker
	// pool; within one object the order is ragdoll step, animation, forward kinematics, morph,
	// skin, sockets and then upload when an uploader is set. Update returns once every object has
	// finished. A panic in one object is logged and counted; the others still complete.
	//
	// Parameters:
	//   - dt: the frame time in seconds
	Update(dt float32)

	// LastFrame returns the statistics of the last Update.
	//
	// Returns:
	//   - FrameStats: the statistics
	LastFrame() FrameStats

	// Close stops the worker pool. The scene must not be updated afterwards.
	Close()
}

type scene struct {
	mu *sync.RWMutex

	name   string
	active bool

	registry map[uint64]game_object.GameObject
	nextID   uint64

	uploader bind_group_provider.MeshUploader
	logger   *slog.Logger

	lastFrame FrameStats

	// computePool runs per-object updates. Workers persist across frames.
	computePool    worker.DynamicWorkerPool
	computeWorkers int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates an active, empty scene.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:             &sync.RWMutex{},
		name:           name,
		active:         true,
		registry:       make(map[uint64]game_object.GameObject),
		nextID:         1,
		logger:         slog.Default(),
		computeWorkers: max(runtime.NumCPU()-1, 1),
	}

	for _, option := range options {
		option(s)
	}

	// Initialize the compute pool after options so WithComputeWorkers can override the default.
	s.computePool = worker.NewDynamicWorkerPool(s.computeWorkers, 256, 1*time.Second)
	return s
}

func (s *scene) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.registry)
}

func (s *scene) Add(obj game_object.GameObject) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(obj)
}

// add registers obj. Caller must hold s.mu write lock.
func (s *scene) add(obj game_object.GameObject) uint64 {
	if obj.ID() == 0 {
		obj.SetID(atomic.AddUint64(&s.nextID, 1) - 1)
	}
	s.registry[obj.ID()] = obj
	return obj.ID()
}

func (s *scene) Get(id uint64) game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry[id]
}

func (s *scene) Objects() []game_object.GameObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(s.registry))
	out := make([]game_object.GameObject, len(ids))
	for i, id := range ids {
		out[i] = s.registry[id]
	}
	return out
}

func (s *scene) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, exists := s.registry[id]
	if !exists {
		return
	}
	delete(s.registry, id)
	if s.uploader != nil {
		s.uploader.Release(ownerKey(obj))
	}
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry = make(map[uint64]game_object.GameObject)
	if s.uploader != nil {
		s.uploader.ReleaseAll()
	}
}

func (s *scene) Uploader() bind_group_provider.MeshUploader {
	return s.uploader
}

func (s *scene) LastFrame() FrameStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFrame
}

func (s *scene) Close() {
	s.computePool.Stop()
}

func (s *scene) Update(dt float32) {
	start := time.Now()

	s.mu.RLock()
	if !s.active {
		s.mu.RUnlock()
		return
	}
	objects := make([]game_object.GameObject, 0, len(s.registry))
	for _, obj := range s.registry {
		if obj.Enabled() {
			objects = append(objects, obj)
		}
	}
	uploader := s.uploader
	s.mu.RUnlock()

	// A WaitGroup provides the per-frame barrier since pool.Wait() blocks until workers idle-exit.
	var (
		wg       sync.WaitGroup
		failures atomic.Int64
		vertices atomic.Int64
	)
	for i, obj := range objects {
		wg.Add(1)
		s.computePool.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				if err := s.updateObject(obj, dt, uploader); err != nil {
					failures.Add(1)
					return nil, err
				}
				vertices.Add(int64(obj.Instance().VertexCount()))
				return nil, nil
			},
		})
	}
	wg.Wait()

	stats := FrameStats{
		Objects:         len(objects),
		SkinnedVertices: int(vertices.Load()),
		Failures:        int(failures.Load()),
		Duration:        time.Since(start),
	}
	s.mu.Lock()
	s.lastFrame = stats
	s.mu.Unlock()
}

// updateObject runs one object's frame on a pool worker. Panics are converted to errors so a
// faulty object cannot take down the worker or the frame.
func (s *scene) updateObject(obj game_object.GameObject, dt float32, uploader bind_group_provider.MeshUploader) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scene: object %q panicked: %v", obj.Name(), r)
			s.logger.Error("object update panicked", "object", obj.Name(), "id", obj.ID(), "panic", r)
		}
	}()

	obj.Update(dt)
	if err := obj.Instance().LastError(); err != nil {
		s.logger.Debug("instance kept last good buffers", "object", obj.Name(), "err", err)
	}
	if uploader == nil {
		return nil
	}
	meshes := obj.Emit()
	if meshes == nil {
		return nil
	}
	if _, err := uploader.Upload(ownerKey(obj), meshes); err != nil {
		s.logger.Warn("mesh upload failed", "object", obj.Name(), "err", err)
		return err
	}
	return nil
}

// ownerKey is the uploader key for an object's buffers.
func ownerKey(obj game_object.GameObject) string {
	return fmt.Sprintf("%s#%d", obj.Name(), obj.ID())
}
