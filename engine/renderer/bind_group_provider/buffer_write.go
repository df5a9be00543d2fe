package bind_group_provider

// BufferWrite describes a single staged GPU buffer write at a byte offset.
type BufferWrite struct {
	Buffer GPUBuffer
	Offset uint64
	Data   []byte
}
