package pool

import (
	"log/slog"
	"testing"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/upload"
)

func newTestPool() *Pool {
	return New(upload.HeapAllocator{}, slog.New(slog.DiscardHandler))
}

func TestConfigureSharedPools(t *testing.T) {
	output := blit.SurfaceDesc{Width: 64, Height: 32, Format: blit.FormatBGRX8888}

	tests := []struct {
		name       string
		caps       blit.HardwareCapabilities
		videoMeta  bool
		wantShared bool
	}{
		{"aligned equals tight", blit.HardwareCapabilities{StrideAlignment: 16, RowCountAlignment: 2}, false, true},
		{"padding needed", blit.HardwareCapabilities{StrideAlignment: 1024}, false, false},
		{"padding with video meta", blit.HardwareCapabilities{StrideAlignment: 1024}, true, true},
		{"row padding", blit.HardwareCapabilities{RowCountAlignment: 64}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPool()
			p.Configure(output, tt.caps, tt.videoMeta)
			if got := p.Shared(); got != tt.wantShared {
				t.Errorf("Shared() = %v, want %v", got, tt.wantShared)
			}
			if tt.wantShared && p.OutputDesc() != p.IntermediateDesc() {
				t.Errorf("shared pools must use one layout: %s vs %s", p.OutputDesc(), p.IntermediateDesc())
			}
		})
	}
}

func TestSharedPoolRendersIntoOutput(t *testing.T) {
	p := newTestPool()
	p.Configure(blit.SurfaceDesc{Width: 16, Height: 16, Format: blit.FormatBGRA8888}, blit.HardwareCapabilities{}, false)

	out, err := p.NewOutputBuffer()
	if err != nil {
		t.Fatal(err)
	}
	inter, err := p.AcquireIntermediate(out)
	if err != nil {
		t.Fatal(err)
	}
	if inter != out {
		t.Error("shared pool should hand back the output frame")
	}
	if err := p.Transfer(inter, out); err != nil {
		t.Errorf("Transfer = %v, want nil", err)
	}
}

func TestSeparatePoolTransfersAndRecycles(t *testing.T) {
	p := newTestPool()
	caps := blit.HardwareCapabilities{StrideAlignment: 64, RowCountAlignment: 4}
	p.Configure(blit.SurfaceDesc{Width: 6, Height: 3, Format: blit.FormatBGRX8888}, caps, false)

	out, err := p.NewOutputBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Desc.PlaneStrides[0]; got != 24 {
		t.Fatalf("output stride = %d, want tight 24", got)
	}

	inter, err := p.AcquireIntermediate(out)
	if err != nil {
		t.Fatal(err)
	}
	if inter == out {
		t.Fatal("separate pools must not render into the output frame")
	}
	if got := inter.Desc.PlaneStrides[0]; got != 64 {
		t.Errorf("intermediate stride = %d, want 64", got)
	}

	data := inter.Plane(0)
	for y := 0; y < 3; y++ {
		for x := 0; x < 24; x++ {
			data[y*64+x] = byte(y + 1)
		}
	}

	if err := p.Transfer(inter, out); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	got := out.Plane(0)
	for y := 0; y < 3; y++ {
		for x := 0; x < 24; x++ {
			if got[y*24+x] != byte(y+1) {
				t.Fatalf("output[%d,%d] = %d, want %d", x, y, got[y*24+x], y+1)
			}
		}
	}

	again, err := p.AcquireIntermediate(out)
	if err != nil {
		t.Fatal(err)
	}
	if again != inter {
		t.Error("transferred intermediate frame should be recycled")
	}
}

func TestSharedPoolRejectsHostMemory(t *testing.T) {
	p := newTestPool()
	desc := blit.TightDesc(4, 4, blit.FormatBGRX8888)
	p.Configure(desc, blit.HardwareCapabilities{}, false)

	host := upload.NewBuffer(desc, upload.NewHeapMemory(make([]byte, desc.Size()), false))
	if _, err := p.AcquireIntermediate(host); err == nil {
		t.Error("expected error for output frame in host memory")
	}
}

func TestUnconfiguredPool(t *testing.T) {
	p := newTestPool()
	if _, err := p.NewOutputBuffer(); err == nil {
		t.Error("NewOutputBuffer on unconfigured pool should fail")
	}
	if _, err := p.AcquireIntermediate(nil); err == nil {
		t.Error("AcquireIntermediate on unconfigured pool should fail")
	}
}
