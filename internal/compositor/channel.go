package compositor

import (
	"sync"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/layout"
	"github.com/smazurov/videomixer/internal/logging"
	"github.com/smazurov/videomixer/internal/upload"
)

// ChannelHandle is an attached input: its layout, its uploader and the most
// recent frame pushed by the producer. The producer side (PushBuffer,
// SetCaps) and the control side (layout setters) may run concurrently with
// Aggregate.
type ChannelHandle struct {
	*layout.Channel

	seq      uint64
	uploader *upload.DMAUploader
	logger   logging.Logger

	mu           sync.Mutex
	zorder       int
	hasCaps      bool
	current      *upload.Buffer
	inUse        *upload.Buffer
	releaseInUse bool
}

func newChannelHandle(id string, zorder int, seq uint64, uploader *upload.DMAUploader, logger logging.Logger) *ChannelHandle {
	return &ChannelHandle{
		Channel:  layout.NewChannel(id, logger),
		seq:      seq,
		zorder:   zorder,
		uploader: uploader,
		logger:   logger,
	}
}

// ZOrder returns the position of the channel in the drawing order.
func (h *ChannelHandle) ZOrder() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.zorder
}

// SetCaps records the negotiated stream geometry. Later buffers must match
// desc or their upload fails. parN/parD is the pixel aspect ratio.
func (h *ChannelHandle) SetCaps(desc blit.SurfaceDesc, parN, parD int) {
	h.uploader.SetInputGeometry(desc)
	h.SetSource(layout.Source{
		Width:  desc.Width,
		Height: desc.Height,
		Format: desc.Format,
		ParN:   parN,
		ParD:   parD,
	})
	h.mu.Lock()
	h.hasCaps = true
	h.mu.Unlock()
}

// PushBuffer makes buf the frame drawn by the following aggregation passes.
// The handle takes ownership of buf and releases the frame it replaces.
func (h *ChannelHandle) PushBuffer(buf *upload.Buffer) {
	if buf == nil {
		h.replace(nil)
		return
	}

	if buf.Orientation != "" {
		r, err := layout.ParseOrientationTag(buf.Orientation)
		if err != nil {
			h.logger.Debug("Ignoring orientation tag", "channel", h.ID(), "tag", buf.Orientation, "error", err)
		} else {
			h.SetTagOrientation(r)
		}
	}

	h.mu.Lock()
	hasCaps := h.hasCaps
	h.mu.Unlock()
	if !hasCaps {
		// Without negotiated caps the buffer itself describes the stream.
		h.SetSource(layout.Source{Width: buf.Desc.Width, Height: buf.Desc.Height, Format: buf.Desc.Format})
	}

	h.replace(buf)
}

// ClearBuffer drops the current frame. The channel is skipped until the
// next PushBuffer.
func (h *ChannelHandle) ClearBuffer() {
	h.replace(nil)
}

// HasBuffer reports whether a frame is queued.
func (h *ChannelHandle) HasBuffer() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current != nil
}

// UploadStats returns how this channel's frames were made engine-ready.
func (h *ChannelHandle) UploadStats() upload.Stats {
	return h.uploader.Stats()
}

func (h *ChannelHandle) setZOrder(z int) {
	h.mu.Lock()
	h.zorder = z
	h.mu.Unlock()
}

func (h *ChannelHandle) replace(buf *upload.Buffer) {
	h.mu.Lock()
	old := h.current
	h.current = buf
	if old == buf {
		h.mu.Unlock()
		return
	}
	if old != nil && old == h.inUse {
		// Aggregate still reads it; release when the blit is done.
		h.releaseInUse = true
		old = nil
	}
	h.mu.Unlock()
	old.Release()
}

// acquire pins the current frame for one blit. It returns nil when the
// channel has nothing to draw.
func (h *ChannelHandle) acquire() *upload.Buffer {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inUse = h.current
	h.releaseInUse = false
	return h.inUse
}

func (h *ChannelHandle) done() {
	h.mu.Lock()
	buf, release := h.inUse, h.releaseInUse
	h.inUse = nil
	h.releaseInUse = false
	h.mu.Unlock()
	if release {
		buf.Release()
	}
}
