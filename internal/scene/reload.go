package scene

import (
	"time"

	"github.com/smazurov/videomixer/internal/config"
	"github.com/smazurov/videomixer/internal/events"
	"github.com/smazurov/videomixer/internal/logging"
)

// Reloader re-applies the layout file whenever it changes on disk.
type Reloader struct {
	path    string
	target  Target
	bus     *events.Bus
	logger  logging.Logger
	watcher *config.Watcher[*Layout]
}

// ReloaderOptions configures a new Reloader.
type ReloaderOptions struct {
	// Debounce is how long the file must be quiet. Zero uses the watcher default.
	Debounce time.Duration

	// Bus receives LayoutReloadedEvent after each apply (optional).
	Bus *events.Bus

	// OnApplied runs after each successful apply, e.g. to restart sources (optional).
	OnApplied func(*Layout, ApplyResult)

	// Logger for reload operations. If nil, uses the "scene" module logger.
	Logger logging.Logger
}

// NewReloader creates a reloader for the layout file at path.
func NewReloader(path string, target Target, opts ReloaderOptions) *Reloader {
	r := &Reloader{
		path:   path,
		target: target,
		bus:    opts.Bus,
		logger: opts.Logger,
	}
	if r.logger == nil {
		r.logger = logging.GetLogger("scene")
	}

	var watchOpts []config.WatcherOption[*Layout]
	if opts.Debounce > 0 {
		watchOpts = append(watchOpts, config.WithDebounce[*Layout](opts.Debounce))
	}
	r.watcher = config.NewConfigWatcher(path, Load, r.logger, watchOpts...)
	r.watcher.OnReload(func(l *Layout) {
		res, err := Apply(r.target, l)
		if err != nil {
			r.logger.Error("Failed to apply reloaded layout", "path", r.path, "error", err)
			return
		}
		r.logger.Info("Layout reloaded",
			"path", r.path,
			"attached", res.Attached,
			"detached", res.Detached,
			"updated", res.Updated)
		if opts.OnApplied != nil {
			opts.OnApplied(l, res)
		}
		if r.bus != nil {
			r.bus.Publish(events.LayoutReloadedEvent{
				Path:      r.path,
				Channels:  len(l.Channels),
				Timestamp: time.Now().Format(time.RFC3339),
			})
		}
	})
	return r
}

// Start begins watching the layout file.
func (r *Reloader) Start() error {
	return r.watcher.Start()
}

// Stop ends watching.
func (r *Reloader) Stop() error {
	return r.watcher.Stop()
}

// Reload applies the file now.
func (r *Reloader) Reload() error {
	return r.watcher.Reload()
}
