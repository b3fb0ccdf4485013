package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/videomixer/cmd"
	"github.com/smazurov/videomixer/internal/api"
	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/compositor"
	"github.com/smazurov/videomixer/internal/config"
	"github.com/smazurov/videomixer/internal/events"
	"github.com/smazurov/videomixer/internal/led"
	"github.com/smazurov/videomixer/internal/logging"
	"github.com/smazurov/videomixer/internal/metrics/collectors"
	"github.com/smazurov/videomixer/internal/metrics/exporters"
	"github.com/smazurov/videomixer/internal/mixer"
	"github.com/smazurov/videomixer/internal/scene"
	"github.com/smazurov/videomixer/internal/upload"
	"github.com/smazurov/videomixer/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Layout settings
	LayoutFile   string `help:"Layout file with output and channel definitions" default:"layout.toml" toml:"layout.file" env:"LAYOUT_FILE"`
	LayoutWatch  bool   `help:"Re-apply the layout file when it changes" default:"true" toml:"layout.watch" env:"LAYOUT_WATCH"`
	LayoutReload string `help:"Quiet time before a changed layout is applied" default:"500ms" toml:"layout.debounce" env:"LAYOUT_DEBOUNCE"`

	// Compositor settings
	Backend        string `help:"Blit backend (auto, software, noop)" default:"auto" toml:"compositor.backend" env:"COMPOSITOR_BACKEND"`
	DegradeAfter   int    `help:"Consecutive failed frames before the session is degraded" default:"3" toml:"compositor.degrade_after" env:"COMPOSITOR_DEGRADE_AFTER"`
	EngineLoadPath string `help:"2D engine load file" default:"/sys/kernel/debug/rkrga/load" toml:"compositor.engine_load_path" env:"COMPOSITOR_ENGINE_LOAD_PATH"`

	// Metrics settings
	MetricsPrometheusEnabled bool `help:"Enable Prometheus" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSEEnabled        bool `help:"Enable SSE" default:"true" toml:"metrics.sse_enabled" env:"METRICS_SSE_ENABLED"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Features settings
	FeaturesLEDControl bool `help:"Enable LED control" default:"false" toml:"features.led_control_enabled" env:"FEATURES_LED_CONTROL"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCompositor string `help:"Compositor logging level" default:"info" toml:"logging.compositor" env:"LOGGING_COMPOSITOR"`
	LoggingLayout     string `help:"Layout engine logging level" default:"info" toml:"logging.layout" env:"LOGGING_LAYOUT"`
	LoggingBlit       string `help:"Blit backend logging level" default:"info" toml:"logging.blit" env:"LOGGING_BLIT"`
	LoggingUpload     string `help:"Uploader logging level" default:"info" toml:"logging.upload" env:"LOGGING_UPLOAD"`
	LoggingMixer      string `help:"Frame loop logging level" default:"info" toml:"logging.mixer" env:"LOGGING_MIXER"`
	LoggingScene      string `help:"Layout file logging level" default:"info" toml:"logging.scene" env:"LOGGING_SCENE"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingHTTP       string `help:"HTTP access logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	var cli humacli.CLI

	// Create Huma CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"compositor": opts.LoggingCompositor,
				"layout":     opts.LoggingLayout,
				"blit":       opts.LoggingBlit,
				"upload":     opts.LoggingUpload,
				"mixer":      opts.LoggingMixer,
				"scene":      opts.LoggingScene,
				"api":        opts.LoggingAPI,
				"http":       opts.LoggingHTTP,
			},
		})

		logger := logging.GetLogger("main")
		logger.Info(version.Get().String())

		l, err := scene.Load(opts.LayoutFile)
		if err != nil {
			logger.Error("Failed to load layout", "path", opts.LayoutFile, "error", err)
			os.Exit(1)
		}
		outDesc, err := l.Output.Desc()
		if err != nil {
			logger.Error("Invalid output format", "format", l.Output.Format, "error", err)
			os.Exit(1)
		}

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(api.LogPublisher(eventBus))

		backend, err := blit.New(opts.Backend, logging.GetLogger("blit"))
		if err != nil {
			logger.Error("Failed to create blit backend", "backend", opts.Backend, "error", err)
			os.Exit(1)
		}

		comp, err := compositor.New(compositor.Options{
			Backend:   backend,
			Allocator: upload.HeapAllocator{},
			Bus:       eventBus,
		})
		if err != nil {
			logger.Error("Failed to create compositor", "error", err)
			os.Exit(1)
		}
		if err := comp.SetOutput(outDesc, l.Output.VideoMeta); err != nil {
			logger.Error("Failed to configure output", "output", outDesc.String(), "error", err)
			os.Exit(1)
		}

		mix, err := mixer.New(mixer.Options{
			Compositor:   comp,
			FPS:          l.Output.FPS,
			DegradeAfter: opts.DegradeAfter,
			Allocator:    upload.HeapAllocator{},
			Bus:          eventBus,
		})
		if err != nil {
			logger.Error("Failed to create mixer", "error", err)
			os.Exit(1)
		}

		// Channels first, then the sources that feed them
		if _, applyErr := scene.Apply(comp, l); applyErr != nil {
			logger.Warn("Layout partially applied", "error", applyErr)
		}
		if syncErr := mix.SyncSources(sourcesOf(l)); syncErr != nil {
			logger.Warn("Failed to start some sources", "error", syncErr)
		}

		var reloader *scene.Reloader
		if opts.LayoutWatch {
			debounce, parseErr := time.ParseDuration(opts.LayoutReload)
			if parseErr != nil {
				debounce = 0
			}
			reloader = scene.NewReloader(opts.LayoutFile, comp, scene.ReloaderOptions{
				Debounce: debounce,
				Bus:      eventBus,
				OnApplied: func(l *scene.Layout, _ scene.ApplyResult) {
					if syncErr := mix.SyncSources(sourcesOf(l)); syncErr != nil {
						logger.Warn("Failed to update sources after reload", "error", syncErr)
					}
				},
			})
		}

		// Initialize LED control if enabled
		var ledManager *led.Manager
		var ledController led.Controller
		if opts.FeaturesLEDControl {
			logger.Info("LED control enabled, initializing")
			ledController = led.New(logging.GetLogger("led"))

			// Create LED manager that subscribes to session state changes
			ledManager = led.NewManager(ledController, eventBus, logging.GetLogger("led"))
		}

		var sseExporter *exporters.SSEExporter
		if opts.MetricsSSEEnabled {
			sseExporter = exporters.NewSSEExporter(eventBus)
		}
		engineCollector := collectors.NewEngineCollector(opts.EngineLoadPath)

		apiOpts := &api.Options{
			AuthUsername:  opts.AuthUsername,
			AuthPassword:  opts.AuthPassword,
			Compositor:    comp,
			Mixer:         mix,
			EventBus:      eventBus,
			Output:        l.Output,
			LayoutPath:    opts.LayoutFile,
			LEDController: ledController,
		}
		if opts.MetricsPrometheusEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}

		server := api.NewServer(apiOpts)

		ctx, cancel := context.WithCancel(context.Background())
		mixerDone := make(chan struct{})

		hooks.OnStart(func() {
			if reloader != nil {
				if startErr := reloader.Start(); startErr != nil {
					logger.Warn("Failed to watch layout file", "path", opts.LayoutFile, "error", startErr)
				}
			}

			if sseExporter != nil {
				sseExporter.Start(ctx)
			}
			if engineCollector.Available() {
				if startErr := engineCollector.Start(ctx); startErr != nil {
					logger.Warn("Failed to start engine load collector", "error", startErr)
				}
			}

			// Start LED manager if enabled
			if ledManager != nil {
				ledManager.Start()
			}

			go func() {
				defer close(mixerDone)
				if runErr := mix.Run(ctx); runErr != nil {
					logger.Error("Frame loop stopped", "error", runErr)
				}
			}()

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("Failed to notify systemd", "error", notifyErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if reloader != nil {
				if stopErr := reloader.Stop(); stopErr != nil {
					logger.Warn("Error stopping layout watcher", "error", stopErr)
				}
			}

			// Frame loop and sources stop before the compositor releases its frames
			cancel()
			<-mixerDone
			mix.Close()

			if sseExporter != nil {
				sseExporter.Stop()
			}
			_ = engineCollector.Stop()
			if ledManager != nil {
				ledManager.Stop()
			}
			if closeErr := comp.Close(); closeErr != nil {
				logger.Warn("Error closing compositor", "error", closeErr)
			}
		})
	})

	cli.Root().Use = version.Name
	cli.Root().Version = version.String()

	cli.Root().AddCommand(cmd.CreateRenderCmd())
	cli.Root().AddCommand(cmd.CreateLayoutCmd())

	// Run the CLI
	cli.Run()
}

// sourcesOf maps channel ids to their source specs.
func sourcesOf(l *scene.Layout) map[string]string {
	sources := make(map[string]string, len(l.Channels))
	for id, spec := range l.Channels {
		sources[id] = spec.Source
	}
	return sources
}
