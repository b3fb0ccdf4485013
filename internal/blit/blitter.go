package blit

import (
	"fmt"

	"github.com/smazurov/videomixer/internal/logging"
)

// Params describes one compositor-level blit.
type Params struct {
	// SourceRegion selects part of the source. Nil means the whole surface.
	SourceRegion *Region
	// DestRegion is where the source lands. Nil means the whole destination.
	DestRegion *Region
	Rotation   Rotation
	// Margin is drawn around DestRegion with its own color.
	Margin *Margin
	// Alpha is the global opacity, 0..255.
	Alpha int
}

// Blitter drives a Backend through the start/blit/finish protocol and
// clips compositor-level parameters against the destination surface.
// A Blitter is not safe for concurrent use.
type Blitter struct {
	backend Backend
	logger  logging.Logger
	dest    *Surface
	source  *Surface
	started bool
}

// NewBlitter wraps backend.
func NewBlitter(backend Backend, logger logging.Logger) *Blitter {
	return &Blitter{backend: backend, logger: logger}
}

// Backend returns the wrapped engine.
func (b *Blitter) Backend() Backend { return b.backend }

// Capabilities forwards to the backend.
func (b *Blitter) Capabilities() HardwareCapabilities { return b.backend.Capabilities() }

// Start binds dest as the output of subsequent operations.
func (b *Blitter) Start(dest *Surface) error {
	if b.started {
		return ErrAlreadyStarted
	}
	if dest == nil {
		return fmt.Errorf("start: nil destination surface")
	}
	if err := b.backend.Start(dest); err != nil {
		return fmt.Errorf("start %s: %w", b.backend.Name(), err)
	}
	b.dest = dest
	b.started = true
	return nil
}

// Finish flushes and unbinds the destination. The blitter is stopped even
// when the backend reports an error.
func (b *Blitter) Finish() error {
	if !b.started {
		return ErrNotStarted
	}
	b.started = false
	b.dest = nil
	b.source = nil
	if err := b.backend.Finish(); err != nil {
		return fmt.Errorf("finish %s: %w", b.backend.Name(), err)
	}
	return nil
}

// Started reports whether Start succeeded without a matching Finish.
func (b *Blitter) Started() bool { return b.started }

// SetSource selects the surface read by the next DoBlit calls.
func (b *Blitter) SetSource(src *Surface) {
	b.source = src
}

// FillRegion paints region, or the whole destination when region is nil.
func (b *Blitter) FillRegion(region *Region, color uint32) error {
	if !b.started {
		return ErrNotStarted
	}
	full := b.dest.Desc.Region()
	target := full
	if region != nil {
		target = region.Intersect(full)
	}
	if target.Empty() {
		return nil
	}
	return b.backend.Fill(target, color)
}

// DoBlit draws the current source into the destination.
//
// Alpha 0 is a successful no-op. The margin alpha is scaled by the global
// alpha and the margin is skipped entirely when the result is 0. When the
// destination region is partially outside the surface the source region is
// cut by the same proportion on the matching edges, following the rotation.
func (b *Blitter) DoBlit(p Params) error {
	if !b.started {
		return ErrNotStarted
	}
	if b.source == nil {
		return ErrNoSource
	}
	if p.Alpha < 0 || p.Alpha > 255 {
		return fmt.Errorf("%w: %d", ErrInvalidAlpha, p.Alpha)
	}
	if p.Alpha == 0 {
		return nil
	}
	if _, ok := sourceEdges[p.Rotation]; !ok {
		return fmt.Errorf("invalid rotation %d", int(p.Rotation))
	}

	surface := b.dest.Desc.Region()
	dest := surface
	if p.DestRegion != nil {
		dest = *p.DestRegion
	}
	src := b.source.Desc.Region()
	if p.SourceRegion != nil {
		src = p.SourceRegion.Intersect(src)
	}

	if margin := scaledMargin(p.Margin, p.Alpha); margin != nil {
		if dest.Expand(*margin).Inclusion(surface) == InclusionNone {
			return nil
		}
		for _, band := range margin.Regions(dest) {
			clipped := band.Intersect(surface)
			if clipped.Empty() {
				continue
			}
			if err := b.backend.Fill(clipped, margin.Color); err != nil {
				return fmt.Errorf("fill margin %s: %w", clipped, err)
			}
		}
	}

	switch dest.Inclusion(surface) {
	case InclusionNone:
		return nil
	case InclusionPartial:
		clipped := dest.Intersect(surface)
		src = clipSource(src, dest, clipped, p.Rotation)
		dest = clipped
	}
	if src.Empty() || dest.Empty() {
		return nil
	}

	op := Operation{
		Source:       b.source,
		SourceRegion: src,
		DestRegion:   dest,
		Rotation:     p.Rotation,
		Alpha:        uint8(p.Alpha),
	}
	if err := b.backend.Blit(op); err != nil {
		return fmt.Errorf("blit %s -> %s: %w", src, dest, err)
	}
	return nil
}

// Close releases the backend.
func (b *Blitter) Close() error {
	return b.backend.Close()
}

func scaledMargin(m *Margin, alpha int) *Margin {
	if m == nil || m.IsZero() {
		return nil
	}
	a := int(m.Alpha()) * alpha / 255
	if a == 0 {
		return nil
	}
	out := *m
	out.Color = m.Color&0x00FFFFFF | uint32(a)<<24
	return &out
}

// clipSource removes from src the part that maps onto the area of dest
// falling outside clipped.
func clipSource(src, dest, clipped Region, rotation Rotation) Region {
	destCuts := [4]int{
		edgeLeft:   clipped.X1 - dest.X1,
		edgeTop:    clipped.Y1 - dest.Y1,
		edgeRight:  dest.X2 - clipped.X2,
		edgeBottom: dest.Y2 - clipped.Y2,
	}

	var srcCuts [4]int
	for destEdge, srcEdge := range sourceEdges[rotation] {
		cut := destCuts[destEdge]
		if cut == 0 {
			continue
		}
		destLen := dest.Height()
		if edge(destEdge) == edgeLeft || edge(destEdge) == edgeRight {
			destLen = dest.Width()
		}
		srcLen := src.Height()
		if srcEdge == edgeLeft || srcEdge == edgeRight {
			srcLen = src.Width()
		}
		if destLen > 0 {
			srcCuts[srcEdge] = cut * srcLen / destLen
		}
	}

	return Region{
		X1: src.X1 + srcCuts[edgeLeft],
		Y1: src.Y1 + srcCuts[edgeTop],
		X2: src.X2 - srcCuts[edgeRight],
		Y2: src.Y2 - srcCuts[edgeBottom],
	}
}
