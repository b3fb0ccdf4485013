// Package compositor draws the attached input channels into output frames
// with a blit engine.
//
// Each call to Aggregate produces one frame: it refreshes the layout of every
// channel, decides whether the background has to be painted at all, then
// blits the channels in z-order between one Start and one Finish of the
// engine.
package compositor

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/events"
	"github.com/smazurov/videomixer/internal/layout"
	"github.com/smazurov/videomixer/internal/logging"
	"github.com/smazurov/videomixer/internal/metrics"
	"github.com/smazurov/videomixer/internal/pool"
	"github.com/smazurov/videomixer/internal/upload"
)

// Options configures a new Compositor.
type Options struct {
	// Backend is the blit engine (required). The compositor owns it.
	Backend blit.Backend

	// Allocator provides intermediate and copied frames. If nil, uses heap memory.
	Allocator upload.Allocator

	// Bus receives channel lifecycle and frame failure events (optional).
	Bus *events.Bus

	// Logger for compositor operations. If nil, uses the module loggers.
	Logger logging.Logger
}

// Compositor is safe for concurrent use. Aggregate calls are serialized.
type Compositor struct {
	blitter *blit.Blitter
	caps    blit.HardwareCapabilities
	alloc   upload.Allocator
	pool    *pool.Pool
	bus     *events.Bus

	logger       logging.Logger
	layoutLogger logging.Logger
	uploadLogger logging.Logger

	// background is 0xRRGGBB.
	background atomic.Uint32

	mu        sync.RWMutex
	channels  []*ChannelHandle
	nextSeq   uint64
	output    blit.SurfaceDesc
	hasOutput bool

	// frameMu makes Aggregate non-reentrant and keeps SetOutput out of a frame.
	frameMu sync.Mutex
}

// New creates a compositor driving opts.Backend.
func New(opts Options) (*Compositor, error) {
	if opts.Backend == nil {
		return nil, NewError(CodeAllocationFailure, "", "no blit backend", nil)
	}

	c := &Compositor{
		alloc:        opts.Allocator,
		bus:          opts.Bus,
		logger:       opts.Logger,
		layoutLogger: opts.Logger,
		uploadLogger: opts.Logger,
	}
	if c.alloc == nil {
		c.alloc = upload.HeapAllocator{}
	}
	if opts.Logger == nil {
		c.logger = logging.GetLogger("compositor")
		c.layoutLogger = logging.GetLogger("layout")
		c.uploadLogger = logging.GetLogger("upload")
	}

	c.blitter = blit.NewBlitter(opts.Backend, c.logger)
	c.caps = c.blitter.Capabilities()
	c.pool = pool.New(c.alloc, c.logger)

	c.logger.Info("Compositor created", "backend", opts.Backend.Name())
	return c, nil
}

// BackendName returns the name of the blit engine.
func (c *Compositor) BackendName() string { return c.blitter.Backend().Name() }

// Capabilities returns what the blit engine supports.
func (c *Compositor) Capabilities() blit.HardwareCapabilities { return c.caps }

// SetOutput sets the output frame geometry. Strides and padding rows are
// aligned to the engine requirements. With videoMeta set downstream accepts
// those aligned frames directly. Every channel is recomputed on the next frame.
func (c *Compositor) SetOutput(desc blit.SurfaceDesc, videoMeta bool) error {
	if !c.caps.SupportsDest(desc.Format) {
		return NewError(CodeInvalidOutput, "", fmt.Sprintf("format %s not supported as output", desc.Format), blit.ErrUnsupportedFormat)
	}
	if err := c.caps.CheckDimensions(desc.Width, desc.Height); err != nil {
		return NewError(CodeInvalidOutput, "", "output size", err)
	}

	c.frameMu.Lock()
	defer c.frameMu.Unlock()

	c.pool.Configure(desc, c.caps, videoMeta)

	c.mu.Lock()
	c.output = c.pool.OutputDesc()
	c.hasOutput = true
	for _, ch := range c.channels {
		ch.MarkDirty()
	}
	c.mu.Unlock()

	c.logger.Info("Output geometry set",
		"output", c.pool.OutputDesc().String(),
		"shared_pool", c.pool.Shared())
	return nil
}

// Output returns the output frame layout and whether SetOutput was called.
func (c *Compositor) Output() (blit.SurfaceDesc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.output, c.hasOutput
}

// NewOutputBuffer allocates a frame to pass to Aggregate.
func (c *Compositor) NewOutputBuffer() (*upload.Buffer, error) {
	b, err := c.pool.NewOutputBuffer()
	if err != nil {
		return nil, NewError(CodeAllocationFailure, "", "allocate output frame", err)
	}
	return b, nil
}

// SetBackgroundColor sets the 0xRRGGBB color painted behind the channels.
func (c *Compositor) SetBackgroundColor(rgb uint32) {
	c.background.Store(rgb & 0x00FFFFFF)
}

// BackgroundColor returns the 0xRRGGBB background color.
func (c *Compositor) BackgroundColor() uint32 {
	return c.background.Load()
}

// AttachChannel adds an input drawn at the given z-order. Channels with the
// same z-order are drawn in attach order.
func (c *Compositor) AttachChannel(id string, zorder int) (*ChannelHandle, error) {
	if id == "" {
		return nil, NewError(CodeInvalidParams, "", "channel id is empty", nil)
	}

	c.mu.Lock()
	if slices.ContainsFunc(c.channels, func(ch *ChannelHandle) bool { return ch.ID() == id }) {
		c.mu.Unlock()
		return nil, NewError(CodeChannelExists, id, "channel already attached", nil)
	}
	c.nextSeq++
	uploader := upload.NewDMAUploader(c.alloc, c.caps, c.uploadLogger)
	h := newChannelHandle(id, zorder, c.nextSeq, uploader, c.layoutLogger)
	c.channels = append(c.channels, h)
	c.sortLocked()
	count := len(c.channels)
	c.mu.Unlock()

	metrics.SetChannels(count)
	c.logger.Info("Channel attached", "channel", id, "zorder", zorder)
	c.publish(events.ChannelAttachedEvent{
		ChannelID: id,
		ZOrder:    zorder,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return h, nil
}

// DetachChannel removes an input and releases its queued frame.
func (c *Compositor) DetachChannel(id string) error {
	c.mu.Lock()
	idx := slices.IndexFunc(c.channels, func(ch *ChannelHandle) bool { return ch.ID() == id })
	if idx < 0 {
		c.mu.Unlock()
		return NewError(CodeChannelNotFound, id, "channel not attached", nil)
	}
	h := c.channels[idx]
	c.channels = slices.Delete(c.channels, idx, idx+1)
	count := len(c.channels)
	c.mu.Unlock()

	h.ClearBuffer()
	metrics.DeleteChannelMetrics(id)
	metrics.SetChannels(count)
	c.logger.Info("Channel detached", "channel", id)
	c.publish(events.ChannelDetachedEvent{
		ChannelID: id,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	return nil
}

// Channel returns the attached channel with the given id.
func (c *Compositor) Channel(id string) (*ChannelHandle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.channels {
		if ch.ID() == id {
			return ch, true
		}
	}
	return nil, false
}

// Channels returns the attached channels in drawing order.
func (c *Compositor) Channels() []*ChannelHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.channels)
}

// SetZOrder moves a channel in the drawing order.
func (c *Compositor) SetZOrder(id string, zorder int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.channels {
		if ch.ID() == id {
			ch.setZOrder(zorder)
			c.sortLocked()
			return nil
		}
	}
	return NewError(CodeChannelNotFound, id, "channel not attached", nil)
}

// UpdateChannel replaces the properties of a channel and publishes the
// names of those that changed.
func (c *Compositor) UpdateChannel(id string, cfg layout.Config) ([]string, error) {
	h, ok := c.Channel(id)
	if !ok {
		return nil, NewError(CodeChannelNotFound, id, "channel not attached", nil)
	}
	changed := h.Apply(cfg)
	if len(changed) > 0 {
		c.logger.Debug("Channel updated", "channel", id, "fields", changed)
		c.publish(events.ChannelUpdatedEvent{
			ChannelID: id,
			Fields:    changed,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return changed, nil
}

// Close drops queued frames and releases the engine. Aggregate must not be
// called afterwards.
func (c *Compositor) Close() error {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()

	for _, ch := range c.Channels() {
		ch.ClearBuffer()
	}
	c.pool.Close()
	if err := c.blitter.Close(); err != nil {
		return fmt.Errorf("close blit backend: %w", err)
	}
	return nil
}

func (c *Compositor) sortLocked() {
	slices.SortStableFunc(c.channels, func(a, b *ChannelHandle) int {
		return cmp.Or(cmp.Compare(a.ZOrder(), b.ZOrder()), cmp.Compare(a.seq, b.seq))
	})
}

func (c *Compositor) publish(ev events.Event) {
	if c.bus != nil {
		c.bus.Publish(ev)
	}
}
