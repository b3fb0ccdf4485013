// Package layout computes where each input channel lands in the output frame.
//
// A channel is described by a position, a requested size, an extra margin
// and an aspect ratio policy. From that and the geometry of the incoming
// stream it derives three nested regions:
//
//	total  = position and size as configured
//	outer  = total shrunk by the extra margin
//	inner  = outer shrunk by the letterbox margin (where video is drawn)
//
// Regions are recomputed lazily. Setters that affect geometry mark the
// channel dirty and the next Recompute does the work.
package layout

import (
	"math"
	"sync"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/logging"
)

// Size is an output frame size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Config holds the user-facing channel properties.
type Config struct {
	X      int `json:"x" toml:"x"`
	Y      int `json:"y" toml:"y"`
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`

	Margin blit.Margin `json:"margin" toml:"margin"`

	Rotation     blit.Rotation `json:"rotation" toml:"rotation"`
	AutoRotation bool          `json:"auto_rotation" toml:"auto_rotation"`

	KeepAspect bool    `json:"keep_aspect" toml:"keep_aspect"`
	InputCrop  bool    `json:"input_crop" toml:"input_crop"`
	Opacity    float64 `json:"opacity" toml:"opacity"`
}

// DefaultConfig returns the properties of a freshly attached channel.
func DefaultConfig() Config {
	return Config{
		Margin:     blit.Margin{Color: blit.DefaultMarginColor},
		KeepAspect: true,
		InputCrop:  true,
		Opacity:    1.0,
	}
}

// Source is the negotiated geometry of the incoming stream.
type Source struct {
	Width  int
	Height int
	Format blit.PixelFormat
	// ParN/ParD is the pixel aspect ratio. Zero values mean square pixels.
	ParN int
	ParD int
}

// Regions is the result of a recompute.
type Regions struct {
	Inner            blit.Region `json:"inner"`
	Outer            blit.Region `json:"outer"`
	Total            blit.Region `json:"total"`
	Letterbox        blit.Margin `json:"letterbox_margin"`
	Combined         blit.Margin `json:"combined_margin"`
	InnerFillsOutput bool        `json:"inner_fills_output"`
	TotalFillsOutput bool        `json:"total_fills_output"`
	// Inverted is set when the extra margin exceeded the total region.
	Inverted bool `json:"inverted"`
}

// Snapshot is a consistent copy of everything a blit needs from a channel.
type Snapshot struct {
	InputCrop bool
	Rotation  blit.Rotation
	Opacity   float64
	// Alpha is Opacity scaled to 0..255.
	Alpha   int
	Format  blit.PixelFormat
	Regions Regions
}

// Channel is one composited input. All methods are safe for concurrent use.
type Channel struct {
	id     string
	logger logging.Logger

	mu             sync.Mutex
	cfg            Config
	tagRotation    blit.Rotation
	source         Source
	regions        Regions
	dirty          bool
	recomputations uint64
}

// NewChannel creates a channel with DefaultConfig.
func NewChannel(id string, logger logging.Logger) *Channel {
	return &Channel{
		id:     id,
		logger: logger,
		cfg:    DefaultConfig(),
		dirty:  true,
	}
}

// ID returns the channel identifier.
func (c *Channel) ID() string { return c.id }

// Config returns a copy of the channel properties.
func (c *Channel) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Apply replaces all properties and returns the names of those that changed.
func (c *Channel) Apply(cfg Config) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg.Opacity = clampOpacity(cfg.Opacity)
	old := c.cfg
	var changed []string
	mark := func(name string, differs, geometry bool) {
		if !differs {
			return
		}
		changed = append(changed, name)
		if geometry {
			c.dirty = true
		}
	}

	mark("x", old.X != cfg.X, true)
	mark("y", old.Y != cfg.Y, true)
	mark("width", old.Width != cfg.Width, true)
	mark("height", old.Height != cfg.Height, true)
	mark("margin", !sameSides(old.Margin, cfg.Margin), true)
	mark("margin_color", old.Margin.Color != cfg.Margin.Color, false)
	mark("rotation", old.Rotation != cfg.Rotation || old.AutoRotation != cfg.AutoRotation, true)
	mark("keep_aspect", old.KeepAspect != cfg.KeepAspect, true)
	mark("input_crop", old.InputCrop != cfg.InputCrop, false)
	mark("opacity", old.Opacity != cfg.Opacity, false)

	c.cfg = cfg
	// Combined margin color follows the margin color without a recompute.
	c.regions.Combined.Color = cfg.Margin.Color
	c.regions.Letterbox.Color = cfg.Margin.Color
	return changed
}

// SetPosition moves the total region.
func (c *Channel) SetPosition(x, y int) {
	c.update(func(cfg *Config) bool {
		changed := cfg.X != x || cfg.Y != y
		cfg.X, cfg.Y = x, y
		return changed
	})
}

// SetSize sets the requested size. Zero means use the source size.
func (c *Channel) SetSize(width, height int) {
	c.update(func(cfg *Config) bool {
		changed := cfg.Width != width || cfg.Height != height
		cfg.Width, cfg.Height = width, height
		return changed
	})
}

// SetMargin sets the extra margin sides and color.
func (c *Channel) SetMargin(m blit.Margin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !sameSides(c.cfg.Margin, m) {
		c.dirty = true
	}
	c.cfg.Margin = m
	c.regions.Combined.Color = m.Color
	c.regions.Letterbox.Color = m.Color
}

// SetRotation sets an explicit rotation and disables automatic rotation.
func (c *Channel) SetRotation(r blit.Rotation) {
	c.update(func(cfg *Config) bool {
		changed := cfg.Rotation != r || cfg.AutoRotation
		cfg.Rotation, cfg.AutoRotation = r, false
		return changed
	})
}

// SetAutoRotation makes the channel follow the stream orientation tag.
func (c *Channel) SetAutoRotation() {
	c.update(func(cfg *Config) bool {
		changed := !cfg.AutoRotation
		cfg.AutoRotation = true
		return changed
	})
}

// SetKeepAspect toggles letterboxing.
func (c *Channel) SetKeepAspect(keep bool) {
	c.update(func(cfg *Config) bool {
		changed := cfg.KeepAspect != keep
		cfg.KeepAspect = keep
		return changed
	})
}

// SetInputCrop toggles use of crop metadata.
func (c *Channel) SetInputCrop(crop bool) {
	c.mu.Lock()
	c.cfg.InputCrop = crop
	c.mu.Unlock()
}

// SetOpacity sets the opacity, clamped to 0..1.
func (c *Channel) SetOpacity(opacity float64) {
	c.mu.Lock()
	c.cfg.Opacity = clampOpacity(opacity)
	c.mu.Unlock()
}

// SetTagOrientation records the orientation reported by the stream.
func (c *Channel) SetTagOrientation(r blit.Rotation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tagRotation == r {
		return
	}
	c.tagRotation = r
	if c.cfg.AutoRotation {
		c.dirty = true
	}
}

// SetSource records the negotiated stream geometry.
func (c *Channel) SetSource(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != src {
		c.source = src
		c.dirty = true
	}
}

// Source returns the negotiated stream geometry.
func (c *Channel) Source() Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// MarkDirty forces the next Recompute to do work, e.g. after the output
// geometry changed.
func (c *Channel) MarkDirty() {
	c.mu.Lock()
	c.dirty = true
	c.mu.Unlock()
}

// Dirty reports whether the regions are stale.
func (c *Channel) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// Recomputations returns how many times regions were actually recomputed.
func (c *Channel) Recomputations() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recomputations
}

// ResolvedRotation returns the explicit rotation, or the tag orientation
// when automatic rotation is enabled.
func (c *Channel) ResolvedRotation() blit.Rotation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolvedRotation()
}

func (c *Channel) resolvedRotation() blit.Rotation {
	if c.cfg.AutoRotation {
		return c.tagRotation
	}
	return c.cfg.Rotation
}

// Regions returns the last computed regions.
func (c *Channel) Regions() Regions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.regions
}

// Snapshot returns the blit-relevant state in one atomic read.
func (c *Channel) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	alpha := int(c.cfg.Opacity * 255)
	alpha = min(max(alpha, 0), 255)

	return Snapshot{
		InputCrop: c.cfg.InputCrop,
		Rotation:  c.resolvedRotation(),
		Opacity:   c.cfg.Opacity,
		Alpha:     alpha,
		Format:    c.source.Format,
		Regions:   c.regions,
	}
}

// Recompute derives the regions for an output of the given size.
// It returns false without doing anything when the channel is not dirty.
func (c *Channel) Recompute(output Size) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return false
	}

	cfg := c.cfg
	width := cfg.Width
	if width == 0 {
		width = c.source.Width
	}
	height := cfg.Height
	if height == 0 {
		height = c.source.Height
	}

	var r Regions
	r.Total = blit.Region{X1: cfg.X, Y1: cfg.Y, X2: cfg.X + width, Y2: cfg.Y + height}
	r.Outer = r.Total.Shrink(cfg.Margin)
	r.Inverted = !r.Outer.Valid()
	if r.Inverted {
		c.logger.Error("Computed outer region is inverted, using it as-is",
			"code", "GEOMETRY_WARNING",
			"channel", c.id,
			"outer", r.Outer.String(),
			"total", r.Total.String())
	}

	r.Letterbox = blit.Margin{Color: cfg.Margin.Color}
	if cfg.KeepAspect && !r.Outer.Empty() && c.source.Width > 0 && c.source.Height > 0 {
		r.Letterbox = LetterboxMargin(r.Outer, c.resolvedRotation().Transposes(),
			c.source.Width, c.source.Height, c.source.ParN, c.source.ParD)
		r.Letterbox.Color = cfg.Margin.Color
	}
	r.Inner = r.Outer.Shrink(r.Letterbox)
	r.Combined = cfg.Margin.Add(r.Letterbox)

	r.InnerFillsOutput = r.Inner.Covers(output.Width, output.Height)
	r.TotalFillsOutput = r.Total.Covers(output.Width, output.Height)

	c.regions = r
	c.dirty = false
	c.recomputations++

	c.logger.Debug("Recomputed channel regions",
		"channel", c.id,
		"total", r.Total.String(),
		"outer", r.Outer.String(),
		"inner", r.Inner.String(),
		"inner_fills", r.InnerFillsOutput,
		"total_fills", r.TotalFillsOutput)
	return true
}

// update applies fn under the lock and marks the channel dirty if fn
// reports a change.
func (c *Channel) update(fn func(*Config) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn(&c.cfg) {
		c.dirty = true
	}
}

func sameSides(a, b blit.Margin) bool {
	return a.Left == b.Left && a.Top == b.Top && a.Right == b.Right && a.Bottom == b.Bottom
}

func clampOpacity(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return min(v, 1)
}
