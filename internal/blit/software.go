package blit

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Software is the CPU reference backend.
type Software struct {
	scaler  draw.Scaler
	dest    draw.Image
	started bool
}

// NewSoftware creates a CPU backend that scales with bilinear filtering.
func NewSoftware() *Software {
	return &Software{scaler: draw.ApproxBiLinear}
}

// Name implements Backend.
func (s *Software) Name() string { return "software" }

// Capabilities implements Backend.
func (s *Software) Capabilities() HardwareCapabilities {
	dest := make([]PixelFormat, 0, len(packed32Layouts))
	for f := range packed32Layouts {
		dest = append(dest, f)
	}
	source := append([]PixelFormat{FormatGray8, FormatI420, FormatYV12, FormatY444}, dest...)
	return HardwareCapabilities{
		SourceFormats:     source,
		DestFormats:       dest,
		MinWidth:          1,
		MaxWidth:          8192,
		WidthStep:         1,
		MinHeight:         1,
		MaxHeight:         8192,
		HeightStep:        1,
		StrideAlignment:   16,
		RowCountAlignment: 2,
	}
}

// Start implements Backend.
func (s *Software) Start(dest *Surface) error {
	if s.started {
		return ErrAlreadyStarted
	}
	img, err := destImage(dest)
	if err != nil {
		return err
	}
	s.dest = img
	s.started = true
	return nil
}

// Blit implements Backend.
func (s *Software) Blit(op Operation) error {
	if !s.started {
		return ErrNotStarted
	}
	if op.Source == nil {
		return ErrNoSource
	}
	src, err := surfaceImage(op.Source)
	if err != nil {
		return err
	}

	sr := regionRect(op.SourceRegion)
	dr := regionRect(op.DestRegion)
	if !sr.In(src.Bounds()) {
		return fmt.Errorf("source region %s outside %s", op.SourceRegion, op.Source.Desc.Region())
	}
	if !dr.In(s.dest.Bounds()) {
		return fmt.Errorf("dest region %s outside destination", op.DestRegion)
	}

	if op.Rotation != RotationNone {
		src = rotateRegion(src, sr, op.Rotation)
		sr = src.Bounds()
	}

	drawOp := draw.Over
	var opts *draw.Options
	if op.Alpha < 0xFF {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: op.Alpha})}
	} else if !op.Source.Desc.Format.HasAlpha() {
		drawOp = draw.Src
	}

	s.scaler.Scale(s.dest, dr, src, sr, drawOp, opts)
	return nil
}

// Fill implements Backend.
func (s *Software) Fill(region Region, c uint32) error {
	if !s.started {
		return ErrNotStarted
	}
	rect := regionRect(region).Intersect(s.dest.Bounds())
	if rect.Empty() {
		return nil
	}
	fill := argbColor(c)
	op := draw.Over
	if fill.A == 0xFF {
		op = draw.Src
	}
	draw.Draw(s.dest, rect, image.NewUniform(fill), image.Point{}, op)
	return nil
}

// Finish implements Backend.
func (s *Software) Finish() error {
	if !s.started {
		return ErrNotStarted
	}
	s.started = false
	s.dest = nil
	return nil
}

// Close implements Backend.
func (s *Software) Close() error { return nil }
