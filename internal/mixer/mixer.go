// Package mixer runs the frame loop: it feeds channels from their sources
// and asks the compositor for one output frame per tick.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/compositor"
	"github.com/smazurov/videomixer/internal/events"
	"github.com/smazurov/videomixer/internal/logging"
	"github.com/smazurov/videomixer/internal/source"
	"github.com/smazurov/videomixer/internal/upload"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// DefaultDegradeAfter is how many consecutive failed frames mark the
// session degraded.
const DefaultDegradeAfter = 3

// Options configures a new Mixer.
type Options struct {
	// Compositor produces the frames (required).
	Compositor *compositor.Compositor

	// FPS is the output frame rate (required).
	FPS int

	// DegradeAfter consecutive failures switch the session to degraded.
	// Zero uses DefaultDegradeAfter.
	DegradeAfter int

	// Allocator backs generated source frames. If nil, uses heap memory.
	Allocator upload.Allocator

	// Bus receives SessionStateChangedEvent (optional).
	Bus *events.Bus

	// Logger for frame loop operations. If nil, uses the "mixer" module logger.
	Logger logging.Logger
}

// SessionStats describes the running session.
type SessionStats struct {
	SessionID    string            `json:"session_id"`
	State        string            `json:"state"`
	Frames       uint64            `json:"frames"`
	FailedFrames uint64            `json:"failed_frames"`
	LastResult   compositor.Result `json:"last_result"`
	LastError    string            `json:"last_error,omitempty"`
	Sources      map[string]string `json:"sources"`
}

type feed struct {
	spec   string
	src    source.Source
	cancel context.CancelFunc
}

// Mixer is safe for concurrent use. Run must be called at most once.
type Mixer struct {
	comp         *compositor.Compositor
	fps          int
	degradeAfter int
	alloc        upload.Allocator
	bus          *events.Bus
	logger       logging.Logger
	sessionID    string

	mu          sync.Mutex
	state       string
	frames      uint64
	failed      uint64
	consecutive int
	lastResult  compositor.Result
	lastErr     error
	last        *upload.Buffer
	feeds       map[string]*feed
	start       func(string, *feed)
}

// New creates a mixer. The session id is fixed for the lifetime of the mixer.
func New(opts Options) (*Mixer, error) {
	if opts.Compositor == nil {
		return nil, fmt.Errorf("mixer needs a compositor")
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame rate %d", opts.FPS)
	}
	m := &Mixer{
		comp:         opts.Compositor,
		fps:          opts.FPS,
		degradeAfter: opts.DegradeAfter,
		alloc:        opts.Allocator,
		bus:          opts.Bus,
		logger:       opts.Logger,
		sessionID:    uuid.NewString(),
		state:        events.SessionStopped,
		feeds:        make(map[string]*feed),
	}
	if m.degradeAfter <= 0 {
		m.degradeAfter = DefaultDegradeAfter
	}
	if m.logger == nil {
		m.logger = logging.GetLogger("mixer")
	}
	return m, nil
}

// SessionID returns the identifier published with state changes.
func (m *Mixer) SessionID() string { return m.sessionID }

// SetSource feeds channel from the source described by spec, replacing any
// previous source of that channel. It takes effect immediately when Run is
// active, otherwise when Run starts.
func (m *Mixer) SetSource(channel, spec string) error {
	src, err := source.Parse(spec, m.alloc)
	if err != nil {
		return err
	}
	h, ok := m.comp.Channel(channel)
	if !ok {
		return compositor.NewError(compositor.CodeChannelNotFound, channel, "channel not attached", nil)
	}
	h.SetCaps(src.Desc(), 1, 1)

	f := &feed{spec: spec, src: src}
	m.mu.Lock()
	old := m.feeds[channel]
	m.feeds[channel] = f
	start := m.start
	m.mu.Unlock()

	if old != nil && old.cancel != nil {
		old.cancel()
	}
	if start != nil {
		start(channel, f)
	}
	m.logger.Info("Channel source set", "channel", channel, "source", spec)
	return nil
}

// RemoveSource stops feeding channel. Its last frame stays queued.
func (m *Mixer) RemoveSource(channel string) {
	m.mu.Lock()
	f := m.feeds[channel]
	delete(m.feeds, channel)
	m.mu.Unlock()
	if f != nil && f.cancel != nil {
		f.cancel()
	}
}

// SyncSources makes the running feeds match sources, a map of channel id to
// source spec. Channels with an empty or missing spec lose their source;
// unchanged specs keep running.
func (m *Mixer) SyncSources(sources map[string]string) error {
	m.mu.Lock()
	current := make(map[string]string, len(m.feeds))
	for channel, f := range m.feeds {
		current[channel] = f.spec
	}
	m.mu.Unlock()

	for channel := range current {
		if sources[channel] == "" {
			m.RemoveSource(channel)
		}
	}

	var errs []error
	for channel, spec := range sources {
		if spec == "" || current[channel] == spec {
			continue
		}
		if err := m.SetSource(channel, spec); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}

// Run produces frames until ctx is done or a source fails.
func (m *Mixer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	m.mu.Lock()
	if m.start != nil {
		m.mu.Unlock()
		return fmt.Errorf("mixer already running")
	}
	m.start = func(channel string, f *feed) {
		fctx, cancel := context.WithCancel(gctx)
		m.mu.Lock()
		f.cancel = cancel
		m.mu.Unlock()
		g.Go(func() error {
			defer cancel()
			return m.runFeed(fctx, channel, f)
		})
	}
	pending := make(map[string]*feed, len(m.feeds))
	for id, f := range m.feeds {
		pending[id] = f
	}
	m.mu.Unlock()

	m.setState(events.SessionStarting, "frame loop starting")

	g.Go(func() error {
		return m.frameLoop(gctx)
	})
	for id, f := range pending {
		m.start(id, f)
	}

	err := g.Wait()

	m.mu.Lock()
	m.start = nil
	m.mu.Unlock()

	reason := "frame loop stopped"
	if err != nil {
		reason = err.Error()
	}
	m.setState(events.SessionStopped, reason)
	return err
}

func (m *Mixer) runFeed(ctx context.Context, channel string, f *feed) error {
	push := func(buf *upload.Buffer) {
		h, ok := m.comp.Channel(channel)
		if !ok {
			buf.Release()
			return
		}
		h.PushBuffer(buf)
	}
	if err := source.Run(ctx, f.src, m.fps, push); err != nil {
		return fmt.Errorf("source %s of channel %s: %w", f.spec, channel, err)
	}
	return nil
}

func (m *Mixer) frameLoop(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(m.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Step()
		}
	}
}

// Step produces one frame. It is called by Run on every tick and may be
// called directly when no Run loop is active.
func (m *Mixer) Step() (compositor.Result, error) {
	out, err := m.comp.NewOutputBuffer()
	if err != nil {
		m.recordFailure(err)
		return compositor.Result{}, err
	}

	res, err := m.comp.Aggregate(out)
	if err != nil {
		out.Release()
		m.recordFailure(err)
		return res, err
	}

	m.mu.Lock()
	prev := m.last
	m.last = out
	m.frames++
	m.consecutive = 0
	m.lastResult = res
	m.lastErr = nil
	recovered := m.state != events.SessionRunning
	m.mu.Unlock()

	prev.Release()
	if recovered {
		m.setState(events.SessionRunning, "producing frames")
	}
	return res, nil
}

func (m *Mixer) recordFailure(err error) {
	m.mu.Lock()
	m.failed++
	m.consecutive++
	m.lastErr = err
	degrade := m.consecutive == m.degradeAfter
	m.mu.Unlock()

	if degrade {
		m.setState(events.SessionDegraded, err.Error())
	}
}

func (m *Mixer) setState(state, reason string) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()

	m.logger.Info("Session state changed", "session_id", m.sessionID, "state", state, "reason", reason)
	if m.bus != nil {
		m.bus.Publish(events.SessionStateChangedEvent{
			SessionID: m.sessionID,
			State:     state,
			Reason:    reason,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

// Stats returns session counters.
func (m *Mixer) Stats() SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := SessionStats{
		SessionID:    m.sessionID,
		State:        m.state,
		Frames:       m.frames,
		FailedFrames: m.failed,
		LastResult:   m.lastResult,
		Sources:      make(map[string]string, len(m.feeds)),
	}
	if m.lastErr != nil {
		s.LastError = m.lastErr.Error()
	}
	for id, f := range m.feeds {
		s.Sources[id] = f.spec
	}
	return s
}

// ErrNoFrame is returned by WriteSnapshot before the first good frame.
var ErrNoFrame = fmt.Errorf("no frame produced yet")

// WriteSnapshot encodes the last good output frame as PNG.
func (m *Mixer) WriteSnapshot(w io.Writer) error {
	m.mu.Lock()
	if m.last == nil {
		m.mu.Unlock()
		return ErrNoFrame
	}
	img, err := blit.Image(&m.last.Surface)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	// Copy out so encoding runs without the lock.
	snapshot := image.NewNRGBA(img.Bounds())
	draw.Draw(snapshot, snapshot.Bounds(), img, img.Bounds().Min, draw.Src)
	m.mu.Unlock()

	return png.Encode(w, snapshot)
}

// Close stops all sources and releases the last frame.
func (m *Mixer) Close() {
	m.mu.Lock()
	feeds := m.feeds
	m.feeds = make(map[string]*feed)
	last := m.last
	m.last = nil
	m.mu.Unlock()

	for _, f := range feeds {
		if f.cancel != nil {
			f.cancel()
		}
	}
	last.Release()
}
