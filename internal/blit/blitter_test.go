package blit

import (
	"errors"
	"testing"
)

type fillCall struct {
	region Region
	color  uint32
}

// recordingBackend remembers every call made by the Blitter.
type recordingBackend struct {
	starts   int
	finishes int
	blits    []Operation
	fills    []fillCall
	blitErr  error
}

func (r *recordingBackend) Name() string                       { return "recording" }
func (r *recordingBackend) Capabilities() HardwareCapabilities { return HardwareCapabilities{} }
func (r *recordingBackend) Start(_ *Surface) error             { r.starts++; return nil }
func (r *recordingBackend) Finish() error                      { r.finishes++; return nil }
func (r *recordingBackend) Close() error                       { return nil }

func (r *recordingBackend) Blit(op Operation) error {
	if r.blitErr != nil {
		return r.blitErr
	}
	r.blits = append(r.blits, op)
	return nil
}

func (r *recordingBackend) Fill(region Region, color uint32) error {
	r.fills = append(r.fills, fillCall{region, color})
	return nil
}

func surfaceOf(w, h int) *Surface {
	return &Surface{Desc: TightDesc(w, h, FormatRGBA8888)}
}

func startedBlitter(t *testing.T, w, h int) (*Blitter, *recordingBackend) {
	t.Helper()
	backend := &recordingBackend{}
	b := NewBlitter(backend, nil)
	if err := b.Start(surfaceOf(w, h)); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return b, backend
}

func TestBlitterRequiresStart(t *testing.T) {
	b := NewBlitter(&recordingBackend{}, nil)
	b.SetSource(surfaceOf(10, 10))

	if err := b.DoBlit(Params{Alpha: 255}); !errors.Is(err, ErrNotStarted) {
		t.Errorf("DoBlit before Start error = %v, want ErrNotStarted", err)
	}
	if err := b.FillRegion(nil, 0xFF000000); !errors.Is(err, ErrNotStarted) {
		t.Errorf("FillRegion before Start error = %v, want ErrNotStarted", err)
	}
	if err := b.Finish(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Finish before Start error = %v, want ErrNotStarted", err)
	}
}

func TestBlitterAlpha(t *testing.T) {
	b, backend := startedBlitter(t, 100, 100)
	b.SetSource(surfaceOf(10, 10))

	if err := b.DoBlit(Params{Alpha: 0}); err != nil {
		t.Errorf("alpha 0 error = %v, want nil", err)
	}
	if len(backend.blits) != 0 {
		t.Errorf("alpha 0 issued %d blits, want 0", len(backend.blits))
	}
	if err := b.DoBlit(Params{Alpha: 256}); !errors.Is(err, ErrInvalidAlpha) {
		t.Errorf("alpha 256 error = %v, want ErrInvalidAlpha", err)
	}
	if err := b.DoBlit(Params{Alpha: 128}); err != nil {
		t.Fatalf("alpha 128 error = %v", err)
	}
	if len(backend.blits) != 1 || backend.blits[0].Alpha != 128 {
		t.Errorf("blits = %+v, want one with alpha 128", backend.blits)
	}
}

func TestBlitterWholeSurfaceDefaults(t *testing.T) {
	b, backend := startedBlitter(t, 100, 50)
	b.SetSource(surfaceOf(10, 20))

	if err := b.DoBlit(Params{Alpha: 255}); err != nil {
		t.Fatal(err)
	}
	op := backend.blits[0]
	if op.DestRegion != (Region{0, 0, 100, 50}) {
		t.Errorf("DestRegion = %s, want whole surface", op.DestRegion)
	}
	if op.SourceRegion != (Region{0, 0, 10, 20}) {
		t.Errorf("SourceRegion = %s, want whole source", op.SourceRegion)
	}
}

func TestBlitterClipsSourceByRotation(t *testing.T) {
	// A 100x100 source drawn 1:1 at x=-50 loses half of its width.
	dest := Region{-50, 0, 50, 100}

	tests := []struct {
		rotation Rotation
		want     Region
	}{
		{RotationNone, Region{50, 0, 100, 100}},
		{RotationFlipHorizontal, Region{0, 0, 50, 100}},
		{Rotation180, Region{0, 0, 50, 100}},
		{Rotation90, Region{0, 0, 100, 50}},
		{Rotation270, Region{0, 50, 100, 100}},
		{RotationUpperLeftLowerRight, Region{0, 50, 100, 100}},
		{RotationUpperRightLowerLeft, Region{0, 0, 100, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.rotation.String(), func(t *testing.T) {
			b, backend := startedBlitter(t, 200, 200)
			b.SetSource(surfaceOf(100, 100))

			if err := b.DoBlit(Params{DestRegion: &dest, Rotation: tt.rotation, Alpha: 255}); err != nil {
				t.Fatal(err)
			}
			op := backend.blits[0]
			if op.DestRegion != (Region{0, 0, 50, 100}) {
				t.Errorf("DestRegion = %s, want [0,0 - 50,100]", op.DestRegion)
			}
			if op.SourceRegion != tt.want {
				t.Errorf("SourceRegion = %s, want %s", op.SourceRegion, tt.want)
			}
		})
	}
}

func TestBlitterMargin(t *testing.T) {
	t.Run("alpha scaled by global alpha", func(t *testing.T) {
		b, backend := startedBlitter(t, 100, 100)
		b.SetSource(surfaceOf(10, 10))
		dest := Region{10, 10, 90, 90}
		margin := Margin{Left: 10, Color: 0xFF112233}

		if err := b.DoBlit(Params{DestRegion: &dest, Margin: &margin, Alpha: 51}); err != nil {
			t.Fatal(err)
		}
		if len(backend.fills) != 1 {
			t.Fatalf("fills = %d, want 1", len(backend.fills))
		}
		if got, want := backend.fills[0].color, uint32(0x33112233); got != want {
			t.Errorf("margin color = %#x, want %#x", got, want)
		}
	})

	t.Run("dropped when scaled alpha is zero", func(t *testing.T) {
		b, backend := startedBlitter(t, 100, 100)
		b.SetSource(surfaceOf(10, 10))
		margin := Margin{Top: 4, Color: 0x01FFFFFF}

		if err := b.DoBlit(Params{Margin: &margin, Alpha: 100}); err != nil {
			t.Fatal(err)
		}
		if len(backend.fills) != 0 {
			t.Errorf("fills = %d, want 0", len(backend.fills))
		}
	})

	t.Run("only margin visible", func(t *testing.T) {
		b, backend := startedBlitter(t, 100, 100)
		b.SetSource(surfaceOf(10, 10))
		dest := Region{100, 10, 150, 60}
		margin := Margin{Left: 20, Color: 0xFF000000}

		if err := b.DoBlit(Params{DestRegion: &dest, Margin: &margin, Alpha: 255}); err != nil {
			t.Fatal(err)
		}
		if len(backend.blits) != 0 {
			t.Errorf("blits = %d, want 0", len(backend.blits))
		}
		if len(backend.fills) != 1 || backend.fills[0].region != (Region{80, 10, 100, 60}) {
			t.Errorf("fills = %+v, want clipped left band", backend.fills)
		}
	})

	t.Run("fully outside", func(t *testing.T) {
		b, backend := startedBlitter(t, 100, 100)
		b.SetSource(surfaceOf(10, 10))
		dest := Region{200, 200, 300, 300}
		margin := Margin{Left: 20, Color: 0xFF000000}

		if err := b.DoBlit(Params{DestRegion: &dest, Margin: &margin, Alpha: 255}); err != nil {
			t.Fatal(err)
		}
		if len(backend.blits)+len(backend.fills) != 0 {
			t.Errorf("issued %d blits and %d fills, want none", len(backend.blits), len(backend.fills))
		}
	})
}

func TestBlitterFillRegion(t *testing.T) {
	b, backend := startedBlitter(t, 64, 32)

	if err := b.FillRegion(nil, 0xFF000000); err != nil {
		t.Fatal(err)
	}
	if err := b.FillRegion(&Region{-10, -10, 10, 10}, 0xFFFFFFFF); err != nil {
		t.Fatal(err)
	}
	if len(backend.fills) != 2 {
		t.Fatalf("fills = %d, want 2", len(backend.fills))
	}
	if backend.fills[0].region != (Region{0, 0, 64, 32}) {
		t.Errorf("nil region fill = %s, want whole surface", backend.fills[0].region)
	}
	if backend.fills[1].region != (Region{0, 0, 10, 10}) {
		t.Errorf("clipped fill = %s, want [0,0 - 10,10]", backend.fills[1].region)
	}
}

func TestBlitterFinishAlwaysStops(t *testing.T) {
	b, backend := startedBlitter(t, 10, 10)
	backend.blitErr = errors.New("engine rejected")
	b.SetSource(surfaceOf(10, 10))

	if err := b.DoBlit(Params{Alpha: 255}); err == nil {
		t.Fatal("expected blit error")
	}
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish error = %v", err)
	}
	if b.Started() {
		t.Error("blitter still started after Finish")
	}
	if err := b.Start(surfaceOf(10, 10)); err != nil {
		t.Errorf("restart failed: %v", err)
	}
}

func TestNewBackend(t *testing.T) {
	if _, err := New("does-not-exist", nil); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New(unknown) error = %v, want ErrUnknownBackend", err)
	}
	backend, err := New("noop", nil)
	if err != nil {
		t.Fatal(err)
	}
	if backend.Name() != "noop" {
		t.Errorf("Name() = %q, want noop", backend.Name())
	}
}
