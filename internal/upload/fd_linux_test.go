package upload

import (
	"testing"

	"github.com/smazurov/videomixer/internal/blit"
	"golang.org/x/sys/unix"
)

func memfdBuffer(t *testing.T, desc blit.SurfaceDesc) (*Buffer, *FdMemory) {
	t.Helper()
	fd, err := unix.MemfdCreate("videomixer-test", 0)
	if err != nil {
		t.Skipf("memfd unavailable: %v", err)
	}
	if err := unix.Ftruncate(fd, int64(desc.Size())); err != nil {
		unix.Close(fd)
		t.Fatal(err)
	}
	mem, err := MapFd(fd, desc.Size(), false)
	if err != nil {
		unix.Close(fd)
		t.Fatal(err)
	}
	t.Cleanup(func() { mem.Close() })
	return NewBuffer(desc, mem), mem
}

func TestUploadDuplicatesFd(t *testing.T) {
	desc := blit.TightDesc(4, 2, blit.FormatBGRA8888)
	in, src := memfdBuffer(t, desc)
	src.Bytes()[0] = 0xAB

	u := NewDMAUploader(HeapAllocator{}, blit.HardwareCapabilities{}, testLogger())
	out, err := u.Upload(in)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if out.Mode != ModeFdDup {
		t.Fatalf("Mode = %v, want fd_dup", out.Mode)
	}
	dup := out.Memory[0]
	if dup.Fd() == src.Fd() || dup.Fd() < 0 {
		t.Errorf("dup fd = %d, source fd = %d", dup.Fd(), src.Fd())
	}
	if !dup.DeviceAccessible() {
		t.Error("imported memory should be device accessible")
	}
	if got := dup.Bytes()[0]; got != 0xAB {
		t.Errorf("imported byte = %#x, want 0xab (shared mapping)", got)
	}

	out.Release()
	if dup.Fd() != -1 {
		t.Error("Release should close the duplicated descriptor")
	}
	if src.Fd() < 0 {
		t.Error("Release must not close the source descriptor")
	}
	if got := u.Stats().FdDup; got != 1 {
		t.Errorf("Stats.FdDup = %d, want 1", got)
	}
}
