// Package upload makes incoming frame buffers usable by the blit engine.
package upload

import (
	"fmt"
	"sync"

	"github.com/smazurov/videomixer/internal/blit"
)

// Mode records how a buffer was made engine-ready.
type Mode int

const (
	// ModeNone marks buffers that did not come out of an uploader.
	ModeNone Mode = iota
	// ModePassThrough reuses the input memory as-is.
	ModePassThrough
	// ModeFdDup wraps duplicated file descriptors of the input memory.
	ModeFdDup
	// ModeCopy copied the frame into engine memory.
	ModeCopy
)

func (m Mode) String() string {
	switch m {
	case ModePassThrough:
		return "passthrough"
	case ModeFdDup:
		return "fd_dup"
	case ModeCopy:
		return "copy"
	default:
		return "none"
	}
}

// Buffer is one video frame plus its metadata.
type Buffer struct {
	blit.Surface

	// Crop is the visible rectangle reported by the producer, if any.
	Crop *blit.Region
	// Orientation is an image-orientation tag such as "rotate-90".
	Orientation string
	// Mode is set by the uploader on the buffers it returns.
	Mode Mode

	releaseOnce sync.Once
	release     func()
}

// NewBuffer wraps memory laid out according to desc.
func NewBuffer(desc blit.SurfaceDesc, mem blit.Memory) *Buffer {
	return &Buffer{Surface: blit.Surface{Desc: desc, Memory: [3]blit.Memory{mem}}}
}

// Alloc allocates a buffer for desc from alloc.
func Alloc(alloc Allocator, desc blit.SurfaceDesc) (*Buffer, error) {
	mem, err := alloc.Alloc(desc.Size())
	if err != nil {
		return nil, fmt.Errorf("allocate %s: %w", desc, err)
	}
	b := NewBuffer(desc, mem)
	b.OnRelease(func() { alloc.Free(mem) })
	return b, nil
}

// OnRelease sets the function run by Release.
func (b *Buffer) OnRelease(fn func()) {
	b.release = fn
}

// Release returns the buffer's resources. It is safe to call more than once.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.releaseOnce.Do(func() {
		if b.release != nil {
			b.release()
		}
	})
}

// DeviceAccessible reports whether every memory block can be read by the engine.
func (b *Buffer) DeviceAccessible() bool {
	mems := b.Memories()
	if len(mems) == 0 {
		return false
	}
	for _, m := range mems {
		if !m.DeviceAccessible() {
			return false
		}
	}
	return true
}

// fdBacked reports whether every memory block carries a file descriptor.
func (b *Buffer) fdBacked() bool {
	mems := b.Memories()
	if len(mems) == 0 {
		return false
	}
	for _, m := range mems {
		if m.Fd() < 0 {
			return false
		}
	}
	return true
}

// CopyPlanes copies the visible rows of every plane from src into dst.
// Both must have the same geometry; strides and offsets may differ.
func CopyPlanes(dst, src *blit.Surface) error {
	if !dst.Desc.SameGeometry(src.Desc) {
		return fmt.Errorf("copy %s into %s: geometry differs", src.Desc, dst.Desc)
	}
	info := src.Desc.Format.Info()
	for plane := 0; plane < info.Planes; plane++ {
		rowBytes := info.RowBytes(plane, src.Desc.Width)
		rows := info.Rows(plane, src.Desc.Height)
		srcStride := src.Desc.PlaneStrides[plane]
		dstStride := dst.Desc.PlaneStrides[plane]

		in := src.Plane(plane)
		out := dst.Plane(plane)
		if rows > 0 && (len(in) < (rows-1)*srcStride+rowBytes || len(out) < (rows-1)*dstStride+rowBytes) {
			return fmt.Errorf("plane %d: %d/%d bytes available, rows need %d x %d", plane, len(in), len(out), rows, rowBytes)
		}
		for y := 0; y < rows; y++ {
			copy(out[y*dstStride:y*dstStride+rowBytes], in[y*srcStride:y*srcStride+rowBytes])
		}
	}
	return nil
}
