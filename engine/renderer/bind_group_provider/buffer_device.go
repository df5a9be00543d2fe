package bind_group_provider

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// GPUBuffer is a device buffer the uploader owns. *wgpu.Buffer satisfies it.
type GPUBuffer interface {
	Release()
}

// BufferDevice creates and fills GPU buffers.
type BufferDevice interface {
	// CreateBuffer allocates a buffer.
	//
	// Parameters:
	//   - label: a debug label
	//   - size: the size in bytes
	//   - usage: the wgpu usage flags
	//
	// Returns:
	//   - GPUBuffer: the new buffer
	//   - error: error if allocation fails
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (GPUBuffer, error)

	// WriteBuffers submits staged writes in order.
	//
	// Parameters:
	//   - writes: the writes to perform
	//
	// Returns:
	//   - error: error if a write targets a buffer this device did not create
	WriteBuffers(writes []BufferWrite) error
}

// wgpuBufferDevice is the BufferDevice backed by a webgpu device and queue.
type wgpuBufferDevice struct {
	device *wgpu.Device
	queue  *wgpu.Queue
}

var _ BufferDevice = &wgpuBufferDevice{}

// NewWGPUBufferDevice wraps a webgpu device and its queue.
//
// Parameters:
//   - device: the webgpu device
//   - queue: the device queue
//
// Returns:
//   - BufferDevice: the device adapter
func NewWGPUBufferDevice(device *wgpu.Device, queue *wgpu.Queue) BufferDevice {
	return &wgpuBufferDevice{device: device, queue: queue}
}

// OpenWGPUBufferDevice requests a webgpu adapter and device without a surface, for uploading
// meshes when nothing is presented.
//
// Parameters:
//   - forceFallbackAdapter: request the software fallback adapter
//
// Returns:
//   - BufferDevice: the device adapter
//   - func(): releases the queue, device, adapter and instance
//   - error: error if no adapter or device is available
func OpenWGPUBufferDevice(forceFallbackAdapter bool) (BufferDevice, func(), error) {
	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
	})
	if err != nil {
		instance.Release()
		return nil, nil, fmt.Errorf("bind_group_provider: request adapter: %w", err)
	}
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "Upload Device"})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("bind_group_provider: request device: %w", err)
	}
	queue := device.GetQueue()
	release := func() {
		queue.Release()
		device.Release()
		adapter.Release()
		instance.Release()
	}
	return NewWGPUBufferDevice(device, queue), release, nil
}

func (d *wgpuBufferDevice) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (GPUBuffer, error) {
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", label, err)
	}
	return buf, nil
}

func (d *wgpuBufferDevice) WriteBuffers(writes []BufferWrite) error {
	for _, w := range writes {
		buf, ok := w.Buffer.(*wgpu.Buffer)
		if !ok {
			return fmt.Errorf("bind_group_provider: %T is not a wgpu buffer", w.Buffer)
		}
		if err := d.queue.WriteBuffer(buf, w.Offset, w.Data); err != nil {
			return fmt.Errorf("bind_group_provider: %w", err)
		}
	}
	return nil
}

// MemoryBuffer is a host-memory GPUBuffer.
type MemoryBuffer struct {
	Label    string
	Usage    wgpu.BufferUsage
	Data     []byte
	Released bool
}

func (b *MemoryBuffer) Release() {
	b.Released = true
	b.Data = nil
}

// MemoryBufferDevice is a BufferDevice that keeps buffers in host memory, for headless runs and
// tests. It is safe for concurrent use.
type MemoryBufferDevice struct {
	mu      sync.Mutex
	buffers []*MemoryBuffer
	writes  int
}

var _ BufferDevice = &MemoryBufferDevice{}

// NewMemoryBufferDevice creates an empty host-memory device.
func NewMemoryBufferDevice() *MemoryBufferDevice {
	return &MemoryBufferDevice{}
}

func (d *MemoryBufferDevice) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (GPUBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := &MemoryBuffer{Label: label, Usage: usage, Data: make([]byte, size)}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *MemoryBufferDevice) WriteBuffers(writes []BufferWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, w := range writes {
		b, ok := w.Buffer.(*MemoryBuffer)
		if !ok {
			return fmt.Errorf("bind_group_provider: %T is not a memory buffer", w.Buffer)
		}
		if b.Released {
			return fmt.Errorf("bind_group_provider: write to released buffer %q", b.Label)
		}
		if w.Offset+uint64(len(w.Data)) > uint64(len(b.Data)) {
			return fmt.Errorf("bind_group_provider: write of %d bytes at %d overflows %q (%d bytes)", len(w.Data), w.Offset, b.Label, len(b.Data))
		}
		copy(b.Data[w.Offset:], w.Data)
		d.writes++
	}
	return nil
}

// Buffers returns every buffer created so far, released ones included.
func (d *MemoryBufferDevice) Buffers() []*MemoryBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MemoryBuffer(nil), d.buffers...)
}

// Writes returns the number of buffer writes performed.
func (d *MemoryBufferDevice) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}
