package blit

import (
	"fmt"
	"slices"
)

// Memory is a block of frame memory backing one or more planes.
type Memory interface {
	// Bytes returns the CPU mapping of the memory.
	Bytes() []byte
	// Fd returns the file descriptor backing the memory, or -1.
	Fd() int
	// DeviceAccessible reports whether the blit engine can read the memory directly.
	DeviceAccessible() bool
}

// SurfaceDesc describes the geometry and layout of a frame.
type SurfaceDesc struct {
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	Format       PixelFormat `json:"format"`
	PlaneStrides [3]int      `json:"plane_strides"`
	PlaneOffsets [3]int      `json:"plane_offsets"`
	PaddingRows  int         `json:"padding_rows"`
}

// TightDesc returns a descriptor with unpadded strides and contiguous planes.
func TightDesc(width, height int, format PixelFormat) SurfaceDesc {
	return AlignDesc(SurfaceDesc{Width: width, Height: height, Format: format}, HardwareCapabilities{})
}

// AlignDesc computes plane strides, offsets and padding rows that satisfy
// the stride and row-count alignment of caps.
func AlignDesc(desc SurfaceDesc, caps HardwareCapabilities) SurfaceDesc {
	info := desc.Format.Info()
	out := SurfaceDesc{Width: desc.Width, Height: desc.Height, Format: desc.Format}

	alignedHeight := AlignUp(desc.Height, caps.RowCountAlignment)
	out.PaddingRows = alignedHeight - desc.Height

	offset := 0
	for plane := 0; plane < info.Planes; plane++ {
		stride := AlignUp(info.RowBytes(plane, desc.Width), caps.StrideAlignment)
		out.PlaneStrides[plane] = stride
		out.PlaneOffsets[plane] = offset
		offset += stride * info.Rows(plane, alignedHeight)
	}
	return out
}

// Size returns the number of bytes needed to hold all planes of the descriptor.
func (d SurfaceDesc) Size() int {
	info := d.Format.Info()
	size := 0
	for plane := 0; plane < info.Planes; plane++ {
		end := d.PlaneOffsets[plane] + d.PlaneStrides[plane]*info.Rows(plane, d.Height+d.PaddingRows)
		size = max(size, end)
	}
	return size
}

// SameGeometry reports whether d and o have equal dimensions and format.
func (d SurfaceDesc) SameGeometry(o SurfaceDesc) bool {
	return d.Width == o.Width && d.Height == o.Height && d.Format == o.Format
}

// Region returns the full-frame region of the descriptor.
func (d SurfaceDesc) Region() Region {
	return Region{X1: 0, Y1: 0, X2: d.Width, Y2: d.Height}
}

func (d SurfaceDesc) String() string {
	return fmt.Sprintf("%dx%d %s strides=%v padding_rows=%d", d.Width, d.Height, d.Format, d.PlaneStrides[:max(d.Format.Info().Planes, 1)], d.PaddingRows)
}

// Surface binds a descriptor to the memory holding its planes.
// Planes with a nil Memory entry share the memory of plane 0.
type Surface struct {
	Desc   SurfaceDesc
	Memory [3]Memory
}

// Plane returns the bytes of one plane starting at its offset.
func (s *Surface) Plane(plane int) []byte {
	mem := s.Memory[plane]
	offset := 0
	if mem == nil {
		mem = s.Memory[0]
		offset = s.Desc.PlaneOffsets[plane]
	}
	if mem == nil {
		return nil
	}
	data := mem.Bytes()
	if offset > len(data) {
		return nil
	}
	return data[offset:]
}

// Memories returns the distinct memory blocks of the surface.
func (s *Surface) Memories() []Memory {
	var out []Memory
	for _, m := range s.Memory {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// HardwareCapabilities is what a blit backend reports about itself.
type HardwareCapabilities struct {
	SourceFormats       []PixelFormat `json:"source_formats"`
	DestFormats         []PixelFormat `json:"dest_formats"`
	MinWidth            int           `json:"min_width"`
	MaxWidth            int           `json:"max_width"`
	WidthStep           int           `json:"width_step"`
	MinHeight           int           `json:"min_height"`
	MaxHeight           int           `json:"max_height"`
	HeightStep          int           `json:"height_step"`
	StrideAlignment     int           `json:"stride_alignment"`
	RowCountAlignment   int           `json:"row_count_alignment"`
	MultiBufferSurfaces bool          `json:"multi_buffer_surfaces"`
}

// SupportsSource reports whether f is accepted as a blit source.
func (c HardwareCapabilities) SupportsSource(f PixelFormat) bool {
	return slices.Contains(c.SourceFormats, f)
}

// SupportsDest reports whether f is accepted as a blit destination.
func (c HardwareCapabilities) SupportsDest(f PixelFormat) bool {
	return slices.Contains(c.DestFormats, f)
}

// CheckDimensions validates w x h against the size limits.
func (c HardwareCapabilities) CheckDimensions(w, h int) error {
	if c.MaxWidth > 0 && (w < c.MinWidth || w > c.MaxWidth) {
		return fmt.Errorf("width %d outside [%d, %d]", w, c.MinWidth, c.MaxWidth)
	}
	if c.MaxHeight > 0 && (h < c.MinHeight || h > c.MaxHeight) {
		return fmt.Errorf("height %d outside [%d, %d]", h, c.MinHeight, c.MaxHeight)
	}
	if c.WidthStep > 1 && w%c.WidthStep != 0 {
		return fmt.Errorf("width %d is not a multiple of %d", w, c.WidthStep)
	}
	if c.HeightStep > 1 && h%c.HeightStep != 0 {
		return fmt.Errorf("height %d is not a multiple of %d", h, c.HeightStep)
	}
	return nil
}
