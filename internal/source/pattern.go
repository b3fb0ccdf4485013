package source

import (
	"fmt"
	"image"
	"image/color"
	"slices"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/upload"
	"golang.org/x/image/draw"
)

// Patterns lists the names accepted by NewPattern.
var Patterns = []string{"bars", "checker", "gradient"}

// 75% color bars, left to right.
var barColors = []color.NRGBA{
	{0xC0, 0xC0, 0xC0, 0xFF},
	{0xC0, 0xC0, 0x00, 0xFF},
	{0x00, 0xC0, 0xC0, 0xFF},
	{0x00, 0xC0, 0x00, 0xFF},
	{0xC0, 0x00, 0xC0, 0xFF},
	{0xC0, 0x00, 0x00, 0xFF},
	{0x00, 0x00, 0xC0, 0xFF},
}

const boxDivisor = 8

// Pattern renders a generated test pattern with a box moving across it, so
// frame updates are visible.
type Pattern struct {
	name  string
	desc  blit.SurfaceDesc
	alloc upload.Allocator
}

// NewPattern creates a width x height pattern. format must be a writable
// packed RGB format.
func NewPattern(name string, width, height int, format blit.PixelFormat, alloc upload.Allocator) (*Pattern, error) {
	if !slices.Contains(Patterns, name) {
		return nil, fmt.Errorf("unknown pattern %q, want one of %v", name, Patterns)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("pattern size %dx%d must be positive", width, height)
	}
	if format.Info().Planes != 1 || format.Info().PixelBytes[0] != 4 {
		return nil, fmt.Errorf("%w: pattern needs a 32-bit packed format, got %s", blit.ErrUnsupportedFormat, format)
	}
	if alloc == nil {
		alloc = upload.HeapAllocator{}
	}
	return &Pattern{
		name:  name,
		desc:  blit.TightDesc(width, height, format),
		alloc: alloc,
	}, nil
}

// Desc implements Source.
func (p *Pattern) Desc() blit.SurfaceDesc { return p.desc }

// Frame implements Source.
func (p *Pattern) Frame(n uint64) (*upload.Buffer, error) {
	buf, err := upload.Alloc(p.alloc, p.desc)
	if err != nil {
		return nil, err
	}
	img, err := blit.WritableImage(&buf.Surface)
	if err != nil {
		buf.Release()
		return nil, err
	}

	switch p.name {
	case "bars":
		drawBars(img)
	case "checker":
		drawChecker(img)
	case "gradient":
		drawGradient(img)
	}
	drawBox(img, n)
	return buf, nil
}

func drawBars(img draw.Image) {
	b := img.Bounds()
	for i, c := range barColors {
		x1 := b.Min.X + b.Dx()*i/len(barColors)
		x2 := b.Min.X + b.Dx()*(i+1)/len(barColors)
		draw.Draw(img, image.Rect(x1, b.Min.Y, x2, b.Max.Y), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func drawChecker(img draw.Image) {
	b := img.Bounds()
	cell := max(min(b.Dx(), b.Dy())/boxDivisor, 1)
	light := image.NewUniform(color.NRGBA{0xB0, 0xB0, 0xB0, 0xFF})
	dark := image.NewUniform(color.NRGBA{0x40, 0x40, 0x40, 0xFF})
	for y := b.Min.Y; y < b.Max.Y; y += cell {
		for x := b.Min.X; x < b.Max.X; x += cell {
			src := dark
			if ((x-b.Min.X)/cell+(y-b.Min.Y)/cell)%2 == 0 {
				src = light
			}
			draw.Draw(img, image.Rect(x, y, x+cell, y+cell).Intersect(b), src, image.Point{}, draw.Src)
		}
	}
}

func drawGradient(img draw.Image) {
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		v := uint8(255 * (x - b.Min.X) / max(b.Dx()-1, 1))
		c := image.NewUniform(color.NRGBA{v, v, v, 0xFF})
		draw.Draw(img, image.Rect(x, b.Min.Y, x+1, b.Max.Y), c, image.Point{}, draw.Src)
	}
}

// drawBox draws a white square that bounces horizontally with n.
func drawBox(img draw.Image, n uint64) {
	b := img.Bounds()
	size := max(min(b.Dx(), b.Dy())/boxDivisor, 1)
	travel := b.Dx() - size
	if travel <= 0 {
		return
	}
	pos := int(n % uint64(2*travel))
	if pos > travel {
		pos = 2*travel - pos
	}
	y := b.Min.Y + (b.Dy()-size)/2
	box := image.Rect(b.Min.X+pos, y, b.Min.X+pos+size, y+size)
	draw.Draw(img, box, image.White, image.Point{}, draw.Src)
}
