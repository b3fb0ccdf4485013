package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/compositor"
	"github.com/smazurov/videomixer/internal/config"
	"github.com/smazurov/videomixer/internal/logging"
	"github.com/smazurov/videomixer/internal/mixer"
	"github.com/smazurov/videomixer/internal/scene"
	"github.com/smazurov/videomixer/internal/source"
	"github.com/smazurov/videomixer/internal/upload"
	"github.com/spf13/cobra"
)

// offline is a compositor set up from a layout file with one frame queued
// on every channel that has a source.
type offline struct {
	layout *scene.Layout
	comp   *compositor.Compositor
	mixer  *mixer.Mixer
}

func newOffline(layoutPath, backendName string, frame uint64) (*offline, error) {
	l, err := scene.Load(layoutPath)
	if err != nil {
		return nil, err
	}
	desc, err := l.Output.Desc()
	if err != nil {
		return nil, err
	}

	backend, err := blit.New(backendName, logging.GetLogger("blit"))
	if err != nil {
		return nil, err
	}
	comp, err := compositor.New(compositor.Options{Backend: backend, Allocator: upload.HeapAllocator{}})
	if err != nil {
		return nil, err
	}
	if err := comp.SetOutput(desc, l.Output.VideoMeta); err != nil {
		comp.Close()
		return nil, err
	}
	if _, err := scene.Apply(comp, l); err != nil {
		comp.Close()
		return nil, err
	}

	ids := make([]string, 0, len(l.Channels))
	for id := range l.Channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		spec := l.Channels[id].Source
		if spec == "" {
			continue
		}
		h, _ := comp.Channel(id)
		src, err := source.Parse(spec, upload.HeapAllocator{})
		if err != nil {
			comp.Close()
			return nil, fmt.Errorf("channel %s: %w", id, err)
		}
		buf, err := src.Frame(frame)
		if err != nil {
			comp.Close()
			return nil, fmt.Errorf("channel %s: %w", id, err)
		}
		h.SetCaps(src.Desc(), 1, 1)
		h.PushBuffer(buf)
	}

	fps := l.Output.FPS
	if fps <= 0 {
		fps = 30
	}
	m, err := mixer.New(mixer.Options{Compositor: comp, FPS: fps})
	if err != nil {
		comp.Close()
		return nil, err
	}
	return &offline{layout: l, comp: comp, mixer: m}, nil
}

func (o *offline) Close() {
	o.mixer.Close()
	o.comp.Close()
}

func initCommandLogging(configFile string, verbose bool) {
	cfg := config.LoadLoggingConfig(configFile)
	if verbose {
		cfg.Level = "debug"
	} else {
		// Keep stdout and stderr for the command's own output
		cfg.Level = "warn"
	}
	logging.Initialize(cfg)
}

// CreateRenderCmd creates the render command.
func CreateRenderCmd() *cobra.Command {
	var configFile string
	var layoutFile string
	var backendName string
	var outputFile string
	var frame uint64
	var verbose bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Composite one frame from a layout file into a PNG",
		Long: `Loads the layout file, feeds every channel one frame from its source and ` +
			`composites a single output frame. Channels without a source are left empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCommandLogging(configFile, verbose)

			o, err := newOffline(layoutFile, backendName, frame)
			if err != nil {
				return err
			}
			defer o.Close()

			res, err := o.mixer.Step()
			if err != nil {
				return fmt.Errorf("composite frame: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if outputFile != "-" {
				f, err := os.Create(outputFile)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := o.mixer.WriteSnapshot(w); err != nil {
				return err
			}

			if outputFile != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %dx%d, %d channels, %d blits, cleared=%t, %s\n",
					outputFile, o.layout.Output.Width, o.layout.Output.Height,
					res.Channels, res.Blits, res.Cleared, res.Duration)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "config.toml", "Configuration file for logging settings")
	cmd.Flags().StringVarP(&layoutFile, "layout", "l", "layout.toml", "Layout file")
	cmd.Flags().StringVarP(&backendName, "backend", "b", "software", "Blit backend")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "frame.png", "Output PNG file, - for stdout")
	cmd.Flags().Uint64Var(&frame, "frame", 0, "Source frame number, moves the pattern box")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	return cmd
}
