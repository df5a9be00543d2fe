package bind_group_provider

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-animesh/common"
	"github.com/Carmen-Shannon/oxy-animesh/engine/model"
	"github.com/Carmen-Shannon/oxy-animesh/engine/renderer/material"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNoDevice is returned by Upload when the uploader has no BufferDevice.
var ErrNoDevice = errors.New("bind_group_provider: no buffer device")

// MeshBinding is the GPU side of one RenderMesh: its vertex and index buffers and what a draw call
// needs to issue drawIndexed against them. Params is the material uniform buffer, shared by every
// binding using the same material, and is nil when the uploader has no material Library.
type MeshBinding struct {
	Name       string
	Material   string
	Vertex     GPUBuffer
	Index      GPUBuffer
	Params     GPUBuffer
	IndexCount int
	Bounds     common.AABB

	// revision is the RenderMesh revision the buffers currently hold.
	revision     uint64
	vertexCap    uint64
	indexCap     uint64
	vertexLength uint64
}

// UploadStats counts the GPU traffic an uploader has generated.
type UploadStats struct {
	BuffersCreated  int
	BuffersReleased int
	BytesWritten    uint64
	Skipped         int
}

// meshUploader is the implementation of the MeshUploader interface.
type meshUploader struct {
	mu          sync.Mutex
	device      BufferDevice
	logger      *slog.Logger
	labelPrefix string

	owners    map[string][]*MeshBinding
	materials material.Library
	params    map[string]GPUBuffer
	stats     UploadStats
}

// MeshUploader keeps per-owner GPU vertex and index buffers in sync with emitted RenderMeshes.
// Buffers are created on first upload, grown when a mesh outgrows them and rewritten only when a
// mesh's Revision changes. Each owner's buffers live until Release or ReleaseAll. With a material
// Library, every distinct material also gets one uniform buffer, written once and kept until
// ReleaseAll.
//
// A MeshUploader is safe for concurrent use.
type MeshUploader interface {
	// Upload brings an owner's buffers up to date with meshes. Bindings are matched to meshes by
	// position; extra bindings from a previous, longer upload are released.
	//
	// Parameters:
	//   - owner: the key the buffers are kept under, usually a game object name
	//   - meshes: the meshes to upload
	//
	// Returns:
	//   - []MeshBinding: one binding per mesh, in mesh order
	//   - error: error if a buffer could not be created or written
	Upload(owner string, meshes []model.RenderMesh) ([]MeshBinding, error)

	// Bindings returns a copy of an owner's current bindings.
	//
	// Parameters:
	//   - owner: the owner key
	//
	// Returns:
	//   - []MeshBinding: the bindings, nil when the owner is unknown
	Bindings(owner string) []MeshBinding

	// Release frees every buffer held for an owner. Unknown owners are ignored.
	//
	// Parameters:
	//   - owner: the owner key
	Release(owner string)

	// ReleaseAll frees every buffer the uploader holds.
	ReleaseAll()

	// Owners lists the owners that currently hold buffers, sorted.
	//
	// Returns:
	//   - []string: the owner keys
	Owners() []string

	// Stats returns the uploader's traffic counters.
	//
	// Returns:
	//   - UploadStats: a snapshot of the counters
	Stats() UploadStats
}

var _ MeshUploader = &meshUploader{}

// NewMeshUploader creates a MeshUploader over a BufferDevice. Use NewWGPUBufferDevice for a real
// GPU and NewMemoryBufferDevice for headless runs.
//
// Parameters:
//   - device: the device buffers are created on
//   - options: a variadic list of MeshUploaderOption functions to configure the uploader
//
// Returns:
//   - MeshUploader: the new uploader
func NewMeshUploader(device BufferDevice, options ...MeshUploaderOption) MeshUploader {
	u := &meshUploader{
		device:      device,
		logger:      slog.Default(),
		labelPrefix: "animesh",
		owners:      make(map[string][]*MeshBinding),
		params:      make(map[string]GPUBuffer),
	}
	for _, option := range options {
		option(u)
	}
	return u
}

func (u *meshUploader) Upload(owner string, meshes []model.RenderMesh) ([]MeshBinding, error) {
	if u.device == nil {
		return nil, ErrNoDevice
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	bindings := u.owners[owner]
	for _, stale := range bindings[min(len(meshes), len(bindings)):] {
		u.releaseBinding(stale)
	}
	if len(bindings) > len(meshes) {
		bindings = bindings[:len(meshes)]
	}

	var writes []BufferWrite
	for i := range meshes {
		mesh := &meshes[i]
		if i == len(bindings) {
			bindings = append(bindings, &MeshBinding{})
		}
		b := bindings[i]
		b.Name = mesh.Name
		b.Material = mesh.Material
		b.Bounds = mesh.Bounds
		if u.materials != nil {
			params, write, err := u.materialParams(mesh.Material)
			if err != nil {
				u.owners[owner] = bindings
				return nil, err
			}
			b.Params = params
			if write != nil {
				writes = append(writes, *write)
			}
		}

		if b.Vertex != nil && b.revision == mesh.Revision && b.IndexCount == len(mesh.Indices) &&
			b.vertexLength == uint64(len(mesh.Vertices)) {
			u.stats.Skipped++
			continue
		}

		vb, ib := mesh.VertexBytes(), mesh.IndexBytes()
		label := fmt.Sprintf("%s %s/%s", u.labelPrefix, owner, mesh.Name)
		if err := u.ensure(&b.Vertex, &b.vertexCap, uint64(len(vb)), label+" Vertex Buffer", wgpu.BufferUsageVertex); err != nil {
			u.owners[owner] = bindings
			return nil, err
		}
		if err := u.ensure(&b.Index, &b.indexCap, uint64(len(ib)), label+" Index Buffer", wgpu.BufferUsageIndex); err != nil {
			u.owners[owner] = bindings
			return nil, err
		}
		writes = append(writes, BufferWrite{Buffer: b.Vertex, Data: vb}, BufferWrite{Buffer: b.Index, Data: ib})
		b.IndexCount = len(mesh.Indices)
		b.vertexLength = uint64(len(mesh.Vertices))
		b.revision = mesh.Revision
		u.stats.BytesWritten += uint64(len(vb) + len(ib))
	}
	u.owners[owner] = bindings

	if err := u.device.WriteBuffers(writes); err != nil {
		// force a rewrite next time
		for _, b := range bindings {
			b.Vertex, b.Index = u.releaseBuffer(b.Vertex), u.releaseBuffer(b.Index)
			b.vertexCap, b.indexCap = 0, 0
		}
		u.releaseParams()
		return nil, fmt.Errorf("bind_group_provider: upload %q: %w", owner, err)
	}
	if len(writes) > 0 {
		u.logger.Debug("meshes uploaded", "owner", owner, "meshes", len(meshes), "writes", len(writes))
	}

	out := make([]MeshBinding, len(bindings))
	for i, b := range bindings {
		out[i] = *b
	}
	return out, nil
}

// ensure makes *buf hold at least size bytes, recreating it when it is too small. Empty data still
// gets a 4 byte buffer so every binding has both buffers.
func (u *meshUploader) ensure(buf *GPUBuffer, capacity *uint64, size uint64, label string, usage wgpu.BufferUsage) error {
	size = max(alignCopy(size), 4)
	if *buf != nil && *capacity >= size {
		return nil
	}
	*buf = u.releaseBuffer(*buf)
	nb, err := u.device.CreateBuffer(label, size, usage)
	if err != nil {
		*capacity = 0
		return fmt.Errorf("bind_group_provider: %w", err)
	}
	u.stats.BuffersCreated++
	*buf, *capacity = nb, size
	return nil
}

// materialParams returns the uniform buffer of the material name resolves to, creating it on first
// use. The returned write is non-nil only for a new buffer.
func (u *meshUploader) materialParams(name string) (GPUBuffer, *BufferWrite, error) {
	m := u.materials.Resolve(name)
	if buf, ok := u.params[m.Name()]; ok {
		return buf, nil, nil
	}
	p := m.Params()
	data := p.Marshal()
	label := fmt.Sprintf("%s material/%s Uniform Buffer", u.labelPrefix, m.Name())
	buf, err := u.device.CreateBuffer(label, uint64(len(data)), wgpu.BufferUsageUniform)
	if err != nil {
		return nil, nil, fmt.Errorf("bind_group_provider: %w", err)
	}
	u.stats.BuffersCreated++
	u.stats.BytesWritten += uint64(len(data))
	u.params[m.Name()] = buf
	return buf, &BufferWrite{Buffer: buf, Data: data}, nil
}

// releaseParams drops every material uniform buffer and detaches it from the bindings.
func (u *meshUploader) releaseParams() {
	for name, buf := range u.params {
		u.releaseBuffer(buf)
		delete(u.params, name)
	}
	for _, bindings := range u.owners {
		for _, b := range bindings {
			b.Params = nil
		}
	}
}

// alignCopy rounds up to the 4 byte multiple WriteBuffer requires.
func alignCopy(n uint64) uint64 {
	return (n + 3) &^ 3
}

func (u *meshUploader) releaseBuffer(buf GPUBuffer) GPUBuffer {
	if buf != nil {
		buf.Release()
		u.stats.BuffersReleased++
	}
	return nil
}

func (u *meshUploader) releaseBinding(b *MeshBinding) {
	b.Vertex = u.releaseBuffer(b.Vertex)
	b.Index = u.releaseBuffer(b.Index)
	b.vertexCap, b.indexCap = 0, 0
}

func (u *meshUploader) Bindings(owner string) []MeshBinding {
	u.mu.Lock()
	defer u.mu.Unlock()
	bindings, ok := u.owners[owner]
	if !ok {
		return nil
	}
	out := make([]MeshBinding, len(bindings))
	for i, b := range bindings {
		out[i] = *b
	}
	return out
}

func (u *meshUploader) Release(owner string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, b := range u.owners[owner] {
		u.releaseBinding(b)
	}
	delete(u.owners, owner)
}

func (u *meshUploader) ReleaseAll() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.releaseParams()
	for owner, bindings := range u.owners {
		for _, b := range bindings {
			u.releaseBinding(b)
		}
		delete(u.owners, owner)
	}
}

func (u *meshUploader) Owners() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Sorted(maps.Keys(u.owners))
}

func (u *meshUploader) Stats() UploadStats {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.stats
}
