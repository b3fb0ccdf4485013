package compositor

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/events"
	"github.com/smazurov/videomixer/internal/layout"
	"github.com/smazurov/videomixer/internal/upload"
)

const (
	outWidth  = 64
	outHeight = 48
)

type fillCall struct {
	region blit.Region
	color  uint32
}

// countingBackend records the protocol calls made during a frame.
type countingBackend struct {
	calls    []string
	starts   int
	finishes int
	attempts int
	blits    []blit.Operation
	fills    []fillCall

	failBlitAt int // 1-based blit attempt that fails, 0 for none
	startErr   error
	finishErr  error
}

func (b *countingBackend) Name() string { return "counting" }

func (b *countingBackend) Capabilities() blit.HardwareCapabilities {
	return blit.HardwareCapabilities{
		SourceFormats: []blit.PixelFormat{blit.FormatRGBX8888, blit.FormatRGBA8888, blit.FormatNV12},
		DestFormats:   []blit.PixelFormat{blit.FormatRGBX8888},
	}
}

func (b *countingBackend) Start(_ *blit.Surface) error {
	b.calls = append(b.calls, "start")
	if b.startErr != nil {
		return b.startErr
	}
	b.starts++
	return nil
}

func (b *countingBackend) Blit(op blit.Operation) error {
	b.calls = append(b.calls, "blit")
	b.attempts++
	if b.failBlitAt > 0 && b.attempts == b.failBlitAt {
		return errors.New("engine rejected job")
	}
	b.blits = append(b.blits, op)
	return nil
}

func (b *countingBackend) Fill(region blit.Region, color uint32) error {
	b.calls = append(b.calls, "fill")
	b.fills = append(b.fills, fillCall{region, color})
	return nil
}

func (b *countingBackend) Finish() error {
	b.calls = append(b.calls, "finish")
	b.finishes++
	return b.finishErr
}

func (b *countingBackend) Close() error { return nil }

// clears counts full-frame fills, as opposed to margin bands.
func (b *countingBackend) clears() int {
	n := 0
	full := blit.Region{X2: outWidth, Y2: outHeight}
	for _, f := range b.fills {
		if f.region == full {
			n++
		}
	}
	return n
}

func newTestCompositor(t *testing.T, backend blit.Backend, bus *events.Bus) *Compositor {
	t.Helper()
	c, err := New(Options{Backend: backend, Bus: bus, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := c.SetOutput(blit.TightDesc(outWidth, outHeight, blit.FormatRGBX8888), false); err != nil {
		t.Fatalf("SetOutput failed: %v", err)
	}
	return c
}

func frame(t *testing.T, w, h int, format blit.PixelFormat) *upload.Buffer {
	t.Helper()
	buf, err := upload.Alloc(upload.HeapAllocator{}, blit.TightDesc(w, h, format))
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	return buf
}

func sourceOf(w, h int, format blit.PixelFormat) layout.Source {
	return layout.Source{Width: w, Height: h, Format: format}
}

func attach(t *testing.T, c *Compositor, id string, zorder int) *ChannelHandle {
	t.Helper()
	h, err := c.AttachChannel(id, zorder)
	if err != nil {
		t.Fatalf("AttachChannel(%s) failed: %v", id, err)
	}
	return h
}

func aggregate(t *testing.T, c *Compositor) (Result, error) {
	t.Helper()
	out, err := c.NewOutputBuffer()
	if err != nil {
		t.Fatalf("NewOutputBuffer failed: %v", err)
	}
	defer out.Release()
	return c.Aggregate(out)
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New(Options{Logger: slog.New(slog.DiscardHandler)})
	if !IsAllocationFailure(err) {
		t.Errorf("New without backend = %v, want allocation failure", err)
	}
}

func TestClearSkippedByOpaqueFullChannel(t *testing.T) {
	backend := &countingBackend{}
	c := newTestCompositor(t, backend, nil)

	full := attach(t, c, "full", 0)
	full.PushBuffer(frame(t, outWidth, outHeight, blit.FormatRGBX8888))

	// Other channels do not matter once one hides the background.
	small := attach(t, c, "small", 1)
	small.SetPosition(10, 10)
	small.SetOpacity(0.3)
	small.PushBuffer(frame(t, 16, 12, blit.FormatRGBA8888))

	res, err := aggregate(t, c)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if res.Cleared {
		t.Error("Cleared = true, want false")
	}
	if n := backend.clears(); n != 0 {
		t.Errorf("background clears = %d, want 0", n)
	}
	if res.Blits != 2 || len(backend.blits) != 2 {
		t.Errorf("blits = %d (backend %d), want 2", res.Blits, len(backend.blits))
	}
}

func TestClearOnceBeforeBlits(t *testing.T) {
	backend := &countingBackend{}
	c := newTestCompositor(t, backend, nil)
	c.SetBackgroundColor(0x123456)

	for i, id := range []string{"a", "b"} {
		h := attach(t, c, id, i)
		h.SetPosition(i*20, 0)
		h.PushBuffer(frame(t, 16, 12, blit.FormatRGBX8888))
	}

	res, err := aggregate(t, c)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if !res.Cleared {
		t.Error("Cleared = false, want true")
	}

	want := []string{"start", "fill", "blit", "blit", "finish"}
	if len(backend.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", backend.calls, want)
	}
	for i := range want {
		if backend.calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, backend.calls[i], want[i])
		}
	}
	if backend.fills[0].color != 0xFF123456 {
		t.Errorf("clear color = %#x, want 0xff123456", backend.fills[0].color)
	}
}

func TestClearDecision(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, h *ChannelHandle)
		wantClear bool
	}{
		{
			name: "opaque full frame",
			setup: func(t *testing.T, h *ChannelHandle) {
				h.PushBuffer(frame(t, outWidth, outHeight, blit.FormatRGBX8888))
			},
			wantClear: false,
		},
		{
			name: "no buffer",
			setup: func(t *testing.T, h *ChannelHandle) {
				h.SetSource(sourceOf(outWidth, outHeight, blit.FormatRGBX8888))
			},
			wantClear: true,
		},
		{
			name: "translucent",
			setup: func(t *testing.T, h *ChannelHandle) {
				h.SetOpacity(0.99)
				h.PushBuffer(frame(t, outWidth, outHeight, blit.FormatRGBX8888))
			},
			wantClear: true,
		},
		{
			name: "alpha format",
			setup: func(t *testing.T, h *ChannelHandle) {
				h.PushBuffer(frame(t, outWidth, outHeight, blit.FormatRGBA8888))
			},
			wantClear: true,
		},
		{
			name: "letterboxed with opaque margin",
			setup: func(t *testing.T, h *ChannelHandle) {
				h.SetSize(outWidth, outHeight)
				h.PushBuffer(frame(t, 32, 32, blit.FormatRGBX8888))
			},
			wantClear: false,
		},
		{
			name: "letterboxed with translucent margin",
			setup: func(t *testing.T, h *ChannelHandle) {
				h.SetSize(outWidth, outHeight)
				h.SetMargin(blit.Margin{Color: 0x80000000})
				h.PushBuffer(frame(t, 32, 32, blit.FormatRGBX8888))
			},
			wantClear: true,
		},
		{
			name: "extra margin with opaque color",
			setup: func(t *testing.T, h *ChannelHandle) {
				h.SetSize(outWidth, outHeight)
				h.SetMargin(blit.Margin{Left: 4, Top: 4, Right: 4, Bottom: 4, Color: 0xFF203040})
				h.PushBuffer(frame(t, outWidth, outHeight, blit.FormatRGBX8888))
			},
			wantClear: false,
		},
		{
			name: "shifted off the left edge",
			setup: func(t *testing.T, h *ChannelHandle) {
				h.SetPosition(1, 0)
				h.PushBuffer(frame(t, outWidth, outHeight, blit.FormatRGBX8888))
			},
			wantClear: true,
		},
		{
			name: "larger than output",
			setup: func(t *testing.T, h *ChannelHandle) {
				h.SetPosition(-8, -8)
				h.SetSize(outWidth+16, outHeight+16)
				h.SetKeepAspect(false)
				h.PushBuffer(frame(t, outWidth, outHeight, blit.FormatRGBX8888))
			},
			wantClear: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &countingBackend{}
			c := newTestCompositor(t, backend, nil)
			tt.setup(t, attach(t, c, "cam", 0))

			res, err := aggregate(t, c)
			if err != nil {
				t.Fatalf("Aggregate failed: %v", err)
			}
			if res.Cleared != tt.wantClear {
				t.Errorf("Cleared = %v, want %v", res.Cleared, tt.wantClear)
			}
			wantClears := 0
			if tt.wantClear {
				wantClears = 1
			}
			if n := backend.clears(); n != wantClears {
				t.Errorf("background clears = %d, want %d", n, wantClears)
			}
		})
	}
}

func TestTranslucentChannelStillBlends(t *testing.T) {
	backend := &countingBackend{}
	c := newTestCompositor(t, backend, nil)

	h := attach(t, c, "cam", 0)
	h.SetOpacity(0.5)
	h.PushBuffer(frame(t, outWidth, outHeight, blit.FormatRGBX8888))

	res, err := aggregate(t, c)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if !res.Cleared {
		t.Error("translucent channel must not skip the clear")
	}
	if len(backend.blits) != 1 {
		t.Fatalf("blits = %d, want 1", len(backend.blits))
	}
	if got := backend.blits[0].Alpha; got != 127 {
		t.Errorf("blit alpha = %d, want 127", got)
	}
}

func TestBlitFailureStopsRemainingChannels(t *testing.T) {
	backend := &countingBackend{failBlitAt: 2}
	bus := events.New()
	failed := make(chan events.FrameFailedEvent, 1)
	unsub := bus.Subscribe(func(e events.FrameFailedEvent) {
		select {
		case failed <- e:
		default:
		}
	})
	defer unsub()

	c := newTestCompositor(t, backend, bus)
	for i, id := range []string{"one", "two", "three"} {
		h := attach(t, c, id, i)
		h.PushBuffer(frame(t, 8, 8, blit.FormatRGBX8888))
	}

	res, err := aggregate(t, c)
	if !IsBlitFailure(err) {
		t.Fatalf("Aggregate = %v, want blit failure", err)
	}
	var ce *Error
	if !errors.As(err, &ce) || ce.Channel != "two" {
		t.Errorf("failing channel = %v, want two", ce)
	}
	if backend.attempts != 2 {
		t.Errorf("blit attempts = %d, want 2", backend.attempts)
	}
	if backend.finishes != 1 {
		t.Errorf("finish calls = %d, want 1", backend.finishes)
	}
	if res.Blits != 1 {
		t.Errorf("Result.Blits = %d, want 1", res.Blits)
	}

	select {
	case e := <-failed:
		if e.Code != CodeBlitFailure || e.ChannelID != "two" {
			t.Errorf("FrameFailedEvent = %+v, want BLIT_FAILURE on two", e)
		}
	case <-time.After(time.Second):
		t.Error("no FrameFailedEvent published")
	}
}

func TestStartFailureSkipsFinish(t *testing.T) {
	backend := &countingBackend{startErr: errors.New("no engine")}
	c := newTestCompositor(t, backend, nil)
	h := attach(t, c, "cam", 0)
	h.PushBuffer(frame(t, 8, 8, blit.FormatRGBX8888))

	_, err := aggregate(t, c)
	if !IsBlitFailure(err) {
		t.Fatalf("Aggregate = %v, want blit failure", err)
	}
	if backend.finishes != 0 {
		t.Errorf("finish calls = %d, want 0", backend.finishes)
	}
	if backend.attempts != 0 {
		t.Errorf("blit attempts = %d, want 0", backend.attempts)
	}
}

func TestFinishFailureDoesNotMaskEarlierError(t *testing.T) {
	finishErr := errors.New("flush failed")

	t.Run("after blit failure", func(t *testing.T) {
		backend := &countingBackend{failBlitAt: 1, finishErr: finishErr}
		c := newTestCompositor(t, backend, nil)
		h := attach(t, c, "cam", 0)
		h.PushBuffer(frame(t, 8, 8, blit.FormatRGBX8888))

		_, err := aggregate(t, c)
		var ce *Error
		if !errors.As(err, &ce) || ce.Channel != "cam" {
			t.Errorf("first error = %v, want the blit failure of cam", err)
		}
		if !errors.Is(err, finishErr) {
			t.Errorf("Aggregate = %v, want finish error joined", err)
		}
	})

	t.Run("alone", func(t *testing.T) {
		backend := &countingBackend{finishErr: finishErr}
		c := newTestCompositor(t, backend, nil)

		_, err := aggregate(t, c)
		if !errors.Is(err, finishErr) {
			t.Errorf("Aggregate = %v, want finish error", err)
		}
		if code := ErrorCode(err); code != CodeBlitFailure {
			t.Errorf("ErrorCode = %s, want %s", code, CodeBlitFailure)
		}
	})
}

func TestUploadGeometryMismatch(t *testing.T) {
	backend := &countingBackend{}
	c := newTestCompositor(t, backend, nil)

	h := attach(t, c, "cam", 0)
	h.SetCaps(blit.TightDesc(32, 32, blit.FormatRGBX8888), 1, 1)
	h.PushBuffer(frame(t, 16, 16, blit.FormatRGBX8888))

	_, err := aggregate(t, c)
	if !IsUploadFailure(err) {
		t.Fatalf("Aggregate = %v, want upload failure", err)
	}
	if !errors.Is(err, upload.ErrGeometryMismatch) {
		t.Errorf("Aggregate = %v, want ErrGeometryMismatch in chain", err)
	}
	if backend.finishes != 1 {
		t.Errorf("finish calls = %d, want 1", backend.finishes)
	}
}

func TestInputCrop(t *testing.T) {
	crop := blit.Region{X1: 2, Y1: 2, X2: 10, Y2: 6}

	tests := []struct {
		name      string
		inputCrop bool
		want      blit.Region
	}{
		{"crop enabled", true, crop},
		{"crop disabled", false, blit.Region{X2: 16, Y2: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &countingBackend{}
			c := newTestCompositor(t, backend, nil)
			h := attach(t, c, "cam", 0)
			h.SetInputCrop(tt.inputCrop)
			buf := frame(t, 16, 8, blit.FormatRGBX8888)
			buf.Crop = &crop
			h.PushBuffer(buf)

			if _, err := aggregate(t, c); err != nil {
				t.Fatalf("Aggregate failed: %v", err)
			}
			if len(backend.blits) != 1 {
				t.Fatalf("blits = %d, want 1", len(backend.blits))
			}
			if got := backend.blits[0].SourceRegion; got != tt.want {
				t.Errorf("SourceRegion = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBlitOrderFollowsZOrder(t *testing.T) {
	backend := &countingBackend{}
	c := newTestCompositor(t, backend, nil)

	// Distinct widths identify the channel of each blit.
	widths := map[string]int{"a": 10, "b": 20, "c": 30}
	attach(t, c, "a", 2).PushBuffer(frame(t, widths["a"], 4, blit.FormatRGBX8888))
	attach(t, c, "b", 1).PushBuffer(frame(t, widths["b"], 4, blit.FormatRGBX8888))
	attach(t, c, "c", 1).PushBuffer(frame(t, widths["c"], 4, blit.FormatRGBX8888))

	var ids []string
	for _, h := range c.Channels() {
		ids = append(ids, h.ID())
	}
	if len(ids) != 3 || ids[0] != "b" || ids[1] != "c" || ids[2] != "a" {
		t.Errorf("channel order = %v, want [b c a]", ids)
	}

	if _, err := aggregate(t, c); err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	wantWidths := []int{20, 30, 10}
	for i, op := range backend.blits {
		if op.Source.Desc.Width != wantWidths[i] {
			t.Errorf("blit %d source width = %d, want %d", i, op.Source.Desc.Width, wantWidths[i])
		}
	}

	if err := c.SetZOrder("a", 0); err != nil {
		t.Fatalf("SetZOrder failed: %v", err)
	}
	if first := c.Channels()[0].ID(); first != "a" {
		t.Errorf("first channel after SetZOrder = %s, want a", first)
	}
}

func TestAutoRotationFromTag(t *testing.T) {
	backend := &countingBackend{}
	c := newTestCompositor(t, backend, nil)

	h := attach(t, c, "cam", 0)
	h.SetAutoRotation()
	buf := frame(t, 16, 8, blit.FormatRGBX8888)
	buf.Orientation = "rotate-90"
	h.PushBuffer(buf)

	if _, err := aggregate(t, c); err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if got := backend.blits[0].Rotation; got != blit.Rotation90 {
		t.Errorf("Rotation = %s, want %s", got, blit.Rotation90)
	}
}

func TestAttachDetach(t *testing.T) {
	bus := events.New()
	attached := make(chan events.ChannelAttachedEvent, 4)
	detached := make(chan events.ChannelDetachedEvent, 4)
	defer bus.Subscribe(func(e events.ChannelAttachedEvent) { attached <- e })()
	defer bus.Subscribe(func(e events.ChannelDetachedEvent) { detached <- e })()

	c := newTestCompositor(t, &countingBackend{}, bus)
	h := attach(t, c, "cam", 3)

	if _, err := c.AttachChannel("cam", 1); ErrorCode(err) != CodeChannelExists {
		t.Errorf("duplicate attach = %v, want %s", err, CodeChannelExists)
	}
	if _, err := c.AttachChannel("", 1); ErrorCode(err) != CodeInvalidParams {
		t.Errorf("empty id = %v, want %s", err, CodeInvalidParams)
	}

	var released atomic.Bool
	buf := frame(t, 8, 8, blit.FormatRGBX8888)
	buf.OnRelease(func() { released.Store(true) })
	h.PushBuffer(buf)

	if err := c.DetachChannel("cam"); err != nil {
		t.Fatalf("DetachChannel failed: %v", err)
	}
	if !released.Load() {
		t.Error("queued frame not released on detach")
	}
	if err := c.DetachChannel("cam"); !IsNotFound(err) {
		t.Errorf("second detach = %v, want not found", err)
	}
	if _, ok := c.Channel("cam"); ok {
		t.Error("channel still listed after detach")
	}

	select {
	case e := <-attached:
		if e.ChannelID != "cam" || e.ZOrder != 3 {
			t.Errorf("ChannelAttachedEvent = %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("no ChannelAttachedEvent")
	}
	select {
	case e := <-detached:
		if e.ChannelID != "cam" {
			t.Errorf("ChannelDetachedEvent = %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("no ChannelDetachedEvent")
	}
}

func TestPushBufferReleasesReplacedFrame(t *testing.T) {
	c := newTestCompositor(t, &countingBackend{}, nil)
	h := attach(t, c, "cam", 0)

	var releases atomic.Int32
	first := frame(t, 8, 8, blit.FormatRGBX8888)
	first.OnRelease(func() { releases.Add(1) })
	h.PushBuffer(first)
	h.PushBuffer(first)
	if n := releases.Load(); n != 0 {
		t.Errorf("re-pushing the same frame released it %d times", n)
	}

	h.PushBuffer(frame(t, 8, 8, blit.FormatRGBX8888))
	if n := releases.Load(); n != 1 {
		t.Errorf("releases = %d, want 1", n)
	}

	h.ClearBuffer()
	if h.HasBuffer() {
		t.Error("HasBuffer = true after ClearBuffer")
	}
}

func TestSetOutputMarksChannelsDirty(t *testing.T) {
	c := newTestCompositor(t, &countingBackend{}, nil)
	h := attach(t, c, "cam", 0)
	h.PushBuffer(frame(t, 8, 8, blit.FormatRGBX8888))

	if _, err := aggregate(t, c); err != nil {
		t.Fatal(err)
	}
	if _, err := aggregate(t, c); err != nil {
		t.Fatal(err)
	}
	if n := h.Recomputations(); n != 1 {
		t.Errorf("recomputations after two frames = %d, want 1", n)
	}

	if err := c.SetOutput(blit.TightDesc(outWidth, outHeight, blit.FormatRGBX8888), true); err != nil {
		t.Fatal(err)
	}
	if _, err := aggregate(t, c); err != nil {
		t.Fatal(err)
	}
	if n := h.Recomputations(); n != 2 {
		t.Errorf("recomputations after SetOutput = %d, want 2", n)
	}
}

func TestSetOutputRejectsUnsupportedFormat(t *testing.T) {
	c, err := New(Options{Backend: &countingBackend{}, Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	err = c.SetOutput(blit.TightDesc(32, 32, blit.FormatNV12), false)
	if ErrorCode(err) != CodeInvalidOutput {
		t.Errorf("SetOutput(NV12) = %v, want %s", err, CodeInvalidOutput)
	}
	if !errors.Is(err, blit.ErrUnsupportedFormat) {
		t.Errorf("SetOutput(NV12) = %v, want ErrUnsupportedFormat in chain", err)
	}
}

func TestUpdateChannel(t *testing.T) {
	bus := events.New()
	updated := make(chan events.ChannelUpdatedEvent, 1)
	defer bus.Subscribe(func(e events.ChannelUpdatedEvent) { updated <- e })()

	c := newTestCompositor(t, &countingBackend{}, bus)
	h := attach(t, c, "cam", 0)

	cfg := h.Config()
	cfg.X = 12
	cfg.Opacity = 0.25
	changed, err := c.UpdateChannel("cam", cfg)
	if err != nil {
		t.Fatalf("UpdateChannel failed: %v", err)
	}
	if len(changed) != 2 || changed[0] != "x" || changed[1] != "opacity" {
		t.Errorf("changed = %v, want [x opacity]", changed)
	}

	select {
	case e := <-updated:
		if e.ChannelID != "cam" || len(e.Fields) != 2 {
			t.Errorf("ChannelUpdatedEvent = %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("no ChannelUpdatedEvent")
	}

	if _, err := c.UpdateChannel("missing", cfg); !IsNotFound(err) {
		t.Errorf("UpdateChannel(missing) = %v, want not found", err)
	}
}

func TestSoftwareBackendSeparatePools(t *testing.T) {
	c, err := New(Options{Backend: blit.NewSoftware(), Logger: slog.New(slog.DiscardHandler)})
	if err != nil {
		t.Fatal(err)
	}
	// 10 pixels of RGBx need 40 bytes; the engine wants 16 byte strides.
	if err := c.SetOutput(blit.TightDesc(10, 6, blit.FormatRGBX8888), false); err != nil {
		t.Fatal(err)
	}
	if c.pool.Shared() {
		t.Fatal("expected separate intermediate frames")
	}
	c.SetBackgroundColor(0x112233)

	out, err := c.NewOutputBuffer()
	if err != nil {
		t.Fatal(err)
	}
	defer out.Release()

	res, err := c.Aggregate(out)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if !res.Cleared {
		t.Error("empty compositor must clear")
	}

	pix := out.Plane(0)
	stride := out.Desc.PlaneStrides[0]
	last := 5*stride + 9*4
	for _, i := range []int{0, last} {
		if pix[i] != 0x11 || pix[i+1] != 0x22 || pix[i+2] != 0x33 {
			t.Errorf("pixel at byte %d = %x, want 112233", i, pix[i:i+3])
		}
	}
}

func TestConcurrentConfigDuringAggregate(t *testing.T) {
	c := newTestCompositor(t, &countingBackend{}, nil)
	h := attach(t, c, "cam", 0)
	h.PushBuffer(frame(t, 16, 16, blit.FormatRGBX8888))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			h.SetPosition(i%32, i%16)
			h.SetOpacity(float64(i%10) / 10)
			h.SetMargin(blit.Margin{Left: i % 4, Color: 0xFF000000})
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			buf, err := upload.Alloc(upload.HeapAllocator{}, blit.TightDesc(16, 16, blit.FormatRGBX8888))
			if err != nil {
				t.Error(err)
				return
			}
			h.PushBuffer(buf)
		}
	}()

	for range 50 {
		if _, err := aggregate(t, c); err != nil {
			t.Errorf("Aggregate failed: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
