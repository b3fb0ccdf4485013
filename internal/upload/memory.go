package upload

import (
	"errors"
	"fmt"

	"github.com/smazurov/videomixer/internal/blit"
	"golang.org/x/sys/unix"
)

// Allocator hands out frame memory the blit engine can access.
type Allocator interface {
	Alloc(size int) (blit.Memory, error)
	Free(mem blit.Memory)
}

// HeapMemory is plain Go memory.
type HeapMemory struct {
	data   []byte
	device bool
}

// NewHeapMemory wraps data. device marks it as readable by the engine,
// which holds for the software backend.
func NewHeapMemory(data []byte, device bool) *HeapMemory {
	return &HeapMemory{data: data, device: device}
}

func (m *HeapMemory) Bytes() []byte          { return m.data }
func (m *HeapMemory) Fd() int                { return -1 }
func (m *HeapMemory) DeviceAccessible() bool { return m.device }

// HeapAllocator allocates HeapMemory that is reported as device accessible.
type HeapAllocator struct{}

// Alloc returns size zeroed bytes.
func (HeapAllocator) Alloc(size int) (blit.Memory, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid allocation size %d", size)
	}
	return NewHeapMemory(make([]byte, size), true), nil
}

// Free is a no-op; the garbage collector reclaims heap memory.
func (HeapAllocator) Free(blit.Memory) {}

// FdMemory is memory mapped from a file descriptor, such as a DMA-BUF.
type FdMemory struct {
	fd     int
	data   []byte
	device bool
}

// MapFd maps size bytes of fd. The returned memory owns fd and closes it
// in Close.
func MapFd(fd, size int, device bool) (*FdMemory, error) {
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap fd %d: %w", fd, err)
	}
	return &FdMemory{fd: fd, data: data, device: device}, nil
}

func (m *FdMemory) Bytes() []byte          { return m.data }
func (m *FdMemory) Fd() int                { return m.fd }
func (m *FdMemory) DeviceAccessible() bool { return m.device }

// Close unmaps the memory and closes the descriptor.
func (m *FdMemory) Close() error {
	var errs []error
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			errs = append(errs, fmt.Errorf("munmap: %w", err))
		}
		m.data = nil
	}
	if m.fd >= 0 {
		if err := unix.Close(m.fd); err != nil {
			errs = append(errs, fmt.Errorf("close fd %d: %w", m.fd, err))
		}
		m.fd = -1
	}
	return errors.Join(errs...)
}
