package blit

import (
	"fmt"
	"strings"
)

// PixelFormat identifies a frame memory layout.
type PixelFormat int

// Supported pixel formats.
const (
	FormatUnknown PixelFormat = iota
	FormatRGB565
	FormatBGR565
	FormatRGB888
	FormatBGR888
	FormatRGBX8888
	FormatRGBA8888
	FormatBGRX8888
	FormatBGRA8888
	FormatXRGB8888
	FormatARGB8888
	FormatXBGR8888
	FormatABGR8888
	FormatGray8
	FormatYUYV
	FormatUYVY
	FormatI420
	FormatYV12
	FormatNV12
	FormatNV21
	FormatNV16
	FormatNV61
	FormatY444
	FormatNV12Tiled
	FormatNV21Tiled
)

// FormatInfo describes the plane layout of a PixelFormat.
type FormatInfo struct {
	Name       string
	Planes     int
	PixelBytes [3]int // bytes per pixel group in each plane
	XSub       [3]int // horizontal subsampling divisor per plane
	YSub       [3]int // vertical subsampling divisor per plane
	SemiPlanar bool
	Tiled      bool
	Alpha      bool
}

var formatTable = map[PixelFormat]FormatInfo{
	FormatRGB565:    packed("RGB565", 2, false),
	FormatBGR565:    packed("BGR565", 2, false),
	FormatRGB888:    packed("RGB", 3, false),
	FormatBGR888:    packed("BGR", 3, false),
	FormatRGBX8888:  packed("RGBx", 4, false),
	FormatRGBA8888:  packed("RGBA", 4, true),
	FormatBGRX8888:  packed("BGRx", 4, false),
	FormatBGRA8888:  packed("BGRA", 4, true),
	FormatXRGB8888:  packed("xRGB", 4, false),
	FormatARGB8888:  packed("ARGB", 4, true),
	FormatXBGR8888:  packed("xBGR", 4, false),
	FormatABGR8888:  packed("ABGR", 4, true),
	FormatGray8:     packed("GRAY8", 1, false),
	FormatYUYV:      {Name: "YUY2", Planes: 1, PixelBytes: [3]int{4}, XSub: [3]int{2}, YSub: [3]int{1}},
	FormatUYVY:      {Name: "UYVY", Planes: 1, PixelBytes: [3]int{4}, XSub: [3]int{2}, YSub: [3]int{1}},
	FormatI420:      {Name: "I420", Planes: 3, PixelBytes: [3]int{1, 1, 1}, XSub: [3]int{1, 2, 2}, YSub: [3]int{1, 2, 2}},
	FormatYV12:      {Name: "YV12", Planes: 3, PixelBytes: [3]int{1, 1, 1}, XSub: [3]int{1, 2, 2}, YSub: [3]int{1, 2, 2}},
	FormatNV12:      {Name: "NV12", Planes: 2, PixelBytes: [3]int{1, 2}, XSub: [3]int{1, 2}, YSub: [3]int{1, 2}, SemiPlanar: true},
	FormatNV21:      {Name: "NV21", Planes: 2, PixelBytes: [3]int{1, 2}, XSub: [3]int{1, 2}, YSub: [3]int{1, 2}, SemiPlanar: true},
	FormatNV16:      {Name: "NV16", Planes: 2, PixelBytes: [3]int{1, 2}, XSub: [3]int{1, 2}, YSub: [3]int{1, 1}, SemiPlanar: true},
	FormatNV61:      {Name: "NV61", Planes: 2, PixelBytes: [3]int{1, 2}, XSub: [3]int{1, 2}, YSub: [3]int{1, 1}, SemiPlanar: true},
	FormatY444:      {Name: "Y444", Planes: 3, PixelBytes: [3]int{1, 1, 1}, XSub: [3]int{1, 1, 1}, YSub: [3]int{1, 1, 1}},
	FormatNV12Tiled: {Name: "NV12_TILED", Planes: 2, PixelBytes: [3]int{1, 2}, XSub: [3]int{1, 2}, YSub: [3]int{1, 2}, SemiPlanar: true, Tiled: true},
	FormatNV21Tiled: {Name: "NV21_TILED", Planes: 2, PixelBytes: [3]int{1, 2}, XSub: [3]int{1, 2}, YSub: [3]int{1, 2}, SemiPlanar: true, Tiled: true},
}

func packed(name string, bpp int, alpha bool) FormatInfo {
	return FormatInfo{Name: name, Planes: 1, PixelBytes: [3]int{bpp}, XSub: [3]int{1}, YSub: [3]int{1}, Alpha: alpha}
}

// Info returns the layout description of f. Unknown formats return a zero FormatInfo.
func (f PixelFormat) Info() FormatInfo {
	return formatTable[f]
}

// HasAlpha reports whether the format carries a per-pixel alpha channel.
func (f PixelFormat) HasAlpha() bool {
	return formatTable[f].Alpha
}

// Known reports whether f is in the format table.
func (f PixelFormat) Known() bool {
	_, ok := formatTable[f]
	return ok
}

func (f PixelFormat) String() string {
	if info, ok := formatTable[f]; ok {
		return info.Name
	}
	return "UNKNOWN"
}

// MarshalText implements encoding.TextMarshaler.
func (f PixelFormat) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *PixelFormat) UnmarshalText(text []byte) error {
	parsed, err := ParsePixelFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParsePixelFormat looks up a format by its name, case-insensitively.
func ParsePixelFormat(name string) (PixelFormat, error) {
	for f, info := range formatTable {
		if strings.EqualFold(info.Name, name) {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown pixel format %q", name)
}

// RowBytes returns the number of payload bytes in one row of the given plane.
func (info FormatInfo) RowBytes(plane, width int) int {
	if plane >= info.Planes {
		return 0
	}
	return ceilDiv(width, info.XSub[plane]) * info.PixelBytes[plane]
}

// Rows returns the number of rows of the given plane for a frame height.
func (info FormatInfo) Rows(plane, height int) int {
	if plane >= info.Planes {
		return 0
	}
	return ceilDiv(height, info.YSub[plane])
}

func ceilDiv(a, b int) int {
	if b <= 1 {
		return a
	}
	return (a + b - 1) / b
}

// AlignUp rounds v up to a multiple of align. Alignments below 2 leave v unchanged.
func AlignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}
