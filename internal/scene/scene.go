// Package scene reads and writes layout files and applies them to a
// compositor.
//
// A layout file looks like:
//
//	version = 1
//
//	[output]
//	width = 1920
//	height = 1080
//	format = "BGRx"
//	fps = 30
//	background = 0x202020
//
//	[channels.cam0]
//	zorder = 0
//	source = "pattern:bars"
//	width = 1280
//	height = 720
//	rotation = "auto"
package scene

import (
	"fmt"
	"math"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/layout"
)

// Layout is the complete layout file.
type Layout struct {
	Version  int                    `toml:"version" json:"version"`
	Output   Output                 `toml:"output" json:"output"`
	Channels map[string]ChannelSpec `toml:"channels" json:"channels"`
}

// Output describes the produced frames.
type Output struct {
	Width  int    `toml:"width" json:"width"`
	Height int    `toml:"height" json:"height"`
	Format string `toml:"format" json:"format"`
	FPS    int    `toml:"fps" json:"fps"`
	// Background is 0xRRGGBB.
	Background uint32 `toml:"background" json:"background"`
	// VideoMeta means consumers accept padded strides.
	VideoMeta bool `toml:"video_meta" json:"video_meta"`
}

// ChannelSpec is one [channels.<id>] table. Pointer fields default when
// absent.
type ChannelSpec struct {
	ZOrder int    `toml:"zorder" json:"zorder"`
	Source string `toml:"source,omitempty" json:"source,omitempty"`

	X      int `toml:"x" json:"x"`
	Y      int `toml:"y" json:"y"`
	Width  int `toml:"width" json:"width"`
	Height int `toml:"height" json:"height"`

	MarginLeft   int     `toml:"margin_left,omitempty" json:"margin_left,omitempty"`
	MarginTop    int     `toml:"margin_top,omitempty" json:"margin_top,omitempty"`
	MarginRight  int     `toml:"margin_right,omitempty" json:"margin_right,omitempty"`
	MarginBottom int     `toml:"margin_bottom,omitempty" json:"margin_bottom,omitempty"`
	MarginColor  *uint32 `toml:"margin_color,omitempty" json:"margin_color,omitempty"`

	// Rotation is a rotation name such as "90r" or "horiz", or "auto" to
	// follow the stream orientation tag.
	Rotation   string   `toml:"rotation,omitempty" json:"rotation,omitempty"`
	KeepAspect *bool    `toml:"keep_aspect,omitempty" json:"keep_aspect,omitempty"`
	InputCrop  *bool    `toml:"input_crop,omitempty" json:"input_crop,omitempty"`
	Opacity    *float64 `toml:"opacity,omitempty" json:"opacity,omitempty"`
}

const (
	defaultWidth  = 1280
	defaultHeight = 720
	defaultFormat = "BGRx"
	defaultFPS    = 30
)

// DefaultLayout returns an empty 720p layout.
func DefaultLayout() *Layout {
	return &Layout{
		Version: 1,
		Output: Output{
			Width:  defaultWidth,
			Height: defaultHeight,
			Format: defaultFormat,
			FPS:    defaultFPS,
		},
		Channels: make(map[string]ChannelSpec),
	}
}

// applyDefaults fills zero output fields.
func (l *Layout) applyDefaults() {
	if l.Version == 0 {
		l.Version = 1
	}
	if l.Output.Width == 0 {
		l.Output.Width = defaultWidth
	}
	if l.Output.Height == 0 {
		l.Output.Height = defaultHeight
	}
	if l.Output.Format == "" {
		l.Output.Format = defaultFormat
	}
	if l.Output.FPS == 0 {
		l.Output.FPS = defaultFPS
	}
	if l.Channels == nil {
		l.Channels = make(map[string]ChannelSpec)
	}
}

// Validate checks the layout without touching a compositor.
func (l *Layout) Validate() error {
	if l.Output.Width <= 0 || l.Output.Height <= 0 {
		return NewError(ErrCodeInvalidParams, fmt.Sprintf("output size %dx%d", l.Output.Width, l.Output.Height), nil)
	}
	if l.Output.FPS <= 0 || l.Output.FPS > 240 {
		return NewError(ErrCodeInvalidParams, fmt.Sprintf("output fps %d outside 1..240", l.Output.FPS), nil)
	}
	if _, err := blit.ParsePixelFormat(l.Output.Format); err != nil {
		return NewError(ErrCodeInvalidParams, "output format", err)
	}
	if l.Output.Background > 0xFFFFFF {
		return NewError(ErrCodeInvalidParams, fmt.Sprintf("background %#x is not 0xRRGGBB", l.Output.Background), nil)
	}
	for id, spec := range l.Channels {
		if _, err := spec.Config(); err != nil {
			return NewError(ErrCodeInvalidParams, "channel "+id, err)
		}
	}
	return nil
}

// Desc returns the output frame geometry.
func (o Output) Desc() (blit.SurfaceDesc, error) {
	format, err := blit.ParsePixelFormat(o.Format)
	if err != nil {
		return blit.SurfaceDesc{}, err
	}
	return blit.TightDesc(o.Width, o.Height, format), nil
}

// Config converts the spec into channel properties.
func (s ChannelSpec) Config() (layout.Config, error) {
	cfg := layout.DefaultConfig()
	cfg.X, cfg.Y = s.X, s.Y
	cfg.Width, cfg.Height = s.Width, s.Height

	if s.Width < 0 || s.Height < 0 {
		return cfg, fmt.Errorf("negative size %dx%d", s.Width, s.Height)
	}
	if s.MarginLeft < 0 || s.MarginTop < 0 || s.MarginRight < 0 || s.MarginBottom < 0 {
		return cfg, fmt.Errorf("negative margin")
	}
	cfg.Margin.Left = s.MarginLeft
	cfg.Margin.Top = s.MarginTop
	cfg.Margin.Right = s.MarginRight
	cfg.Margin.Bottom = s.MarginBottom
	if s.MarginColor != nil {
		cfg.Margin.Color = *s.MarginColor
	}

	switch s.Rotation {
	case "":
	case "auto":
		cfg.AutoRotation = true
	default:
		r, err := blit.ParseRotation(s.Rotation)
		if err != nil {
			return cfg, err
		}
		cfg.Rotation = r
	}

	if s.KeepAspect != nil {
		cfg.KeepAspect = *s.KeepAspect
	}
	if s.InputCrop != nil {
		cfg.InputCrop = *s.InputCrop
	}
	if s.Opacity != nil {
		o := *s.Opacity
		if math.IsNaN(o) || o < 0 || o > 1 {
			return cfg, fmt.Errorf("opacity %v outside 0..1", o)
		}
		cfg.Opacity = o
	}
	return cfg, nil
}

// SpecFromConfig converts channel properties back into a spec for saving.
func SpecFromConfig(zorder int, source string, cfg layout.Config) ChannelSpec {
	color := cfg.Margin.Color
	keep := cfg.KeepAspect
	crop := cfg.InputCrop
	opacity := cfg.Opacity

	rotation := cfg.Rotation.String()
	if cfg.AutoRotation {
		rotation = "auto"
	}

	return ChannelSpec{
		ZOrder:       zorder,
		Source:       source,
		X:            cfg.X,
		Y:            cfg.Y,
		Width:        cfg.Width,
		Height:       cfg.Height,
		MarginLeft:   cfg.Margin.Left,
		MarginTop:    cfg.Margin.Top,
		MarginRight:  cfg.Margin.Right,
		MarginBottom: cfg.Margin.Bottom,
		MarginColor:  &color,
		Rotation:     rotation,
		KeepAspect:   &keep,
		InputCrop:    &crop,
		Opacity:      &opacity,
	}
}
