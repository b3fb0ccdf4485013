package upload

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/logging"
	"golang.org/x/sys/unix"
)

var (
	// ErrGeometryMismatch is returned when a buffer does not match the
	// geometry negotiated for its channel.
	ErrGeometryMismatch = errors.New("buffer geometry does not match negotiated geometry")
	// ErrNoMemory is returned for buffers without any memory attached.
	ErrNoMemory = errors.New("buffer has no memory")
)

// Uploader turns arbitrary input buffers into engine-ready buffers.
type Uploader interface {
	SetInputGeometry(desc blit.SurfaceDesc)
	Upload(in *Buffer) (*Buffer, error)
}

// Stats counts uploads by mode.
type Stats struct {
	PassThrough uint64 `json:"passthrough"`
	FdDup       uint64 `json:"fd_dup"`
	Copied      uint64 `json:"copied"`
}

// DMAUploader is the uploader of one channel. It avoids copies where it can:
// device-accessible buffers pass through, fd-backed buffers get their
// descriptors duplicated and imported, everything else is copied once into
// memory from the allocator.
type DMAUploader struct {
	alloc  Allocator
	caps   blit.HardwareCapabilities
	logger logging.Logger

	mu          sync.Mutex
	geometry    blit.SurfaceDesc
	hasGeometry bool

	passThrough atomic.Uint64
	fdDup       atomic.Uint64
	copied      atomic.Uint64
}

// NewDMAUploader creates an uploader copying into memory from alloc with
// strides and rows aligned as caps requires.
func NewDMAUploader(alloc Allocator, caps blit.HardwareCapabilities, logger logging.Logger) *DMAUploader {
	return &DMAUploader{alloc: alloc, caps: caps, logger: logger}
}

// SetInputGeometry records the negotiated geometry of the channel's stream.
func (u *DMAUploader) SetInputGeometry(desc blit.SurfaceDesc) {
	u.mu.Lock()
	u.geometry = desc
	u.hasGeometry = true
	u.mu.Unlock()
}

// Stats returns upload counters.
func (u *DMAUploader) Stats() Stats {
	return Stats{
		PassThrough: u.passThrough.Load(),
		FdDup:       u.fdDup.Load(),
		Copied:      u.copied.Load(),
	}
}

// Upload returns a buffer the engine can read. The caller must Release it.
// The input buffer stays owned by the caller.
func (u *DMAUploader) Upload(in *Buffer) (*Buffer, error) {
	if in == nil || len(in.Memories()) == 0 {
		return nil, ErrNoMemory
	}

	u.mu.Lock()
	geometry, hasGeometry := u.geometry, u.hasGeometry
	u.mu.Unlock()
	if hasGeometry && !in.Desc.SameGeometry(geometry) {
		return nil, fmt.Errorf("%w: got %s, negotiated %s", ErrGeometryMismatch, in.Desc, geometry)
	}

	switch {
	case in.DeviceAccessible():
		u.passThrough.Add(1)
		return u.wrap(in, in.Surface, ModePassThrough), nil

	case in.fdBacked():
		out, err := u.duplicate(in)
		if err == nil {
			u.fdDup.Add(1)
			return out, nil
		}
		u.logger.Debug("fd duplication failed, falling back to copy", "error", err)
	}

	out, err := u.copyFrame(in)
	if err != nil {
		return nil, err
	}
	u.copied.Add(1)
	return out, nil
}

func (u *DMAUploader) wrap(in *Buffer, surface blit.Surface, mode Mode) *Buffer {
	return &Buffer{
		Surface:     surface,
		Crop:        in.Crop,
		Orientation: in.Orientation,
		Mode:        mode,
	}
}

// duplicate imports the input descriptors into new device-accessible mappings.
func (u *DMAUploader) duplicate(in *Buffer) (*Buffer, error) {
	surface := blit.Surface{Desc: in.Desc}
	var mapped []*FdMemory
	closeAll := func() {
		for _, m := range mapped {
			m.Close()
		}
	}

	for i, mem := range in.Memory {
		if mem == nil {
			continue
		}
		fd, err := unix.Dup(mem.Fd())
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("dup fd %d: %w", mem.Fd(), err)
		}
		m, err := MapFd(fd, len(mem.Bytes()), true)
		if err != nil {
			unix.Close(fd)
			closeAll()
			return nil, err
		}
		mapped = append(mapped, m)
		surface.Memory[i] = m
	}

	out := u.wrap(in, surface, ModeFdDup)
	out.OnRelease(closeAll)
	return out, nil
}

// copyFrame performs the single bounded copy into allocator memory.
func (u *DMAUploader) copyFrame(in *Buffer) (*Buffer, error) {
	desc := blit.AlignDesc(in.Desc, u.caps)
	out, err := Alloc(u.alloc, desc)
	if err != nil {
		return nil, err
	}
	if err := CopyPlanes(&out.Surface, &in.Surface); err != nil {
		out.Release()
		return nil, fmt.Errorf("copy frame: %w", err)
	}
	out.Crop = in.Crop
	out.Orientation = in.Orientation
	out.Mode = ModeCopy
	return out, nil
}
