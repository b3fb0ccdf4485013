package blit

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// packed32 exposes a 32-bit packed RGB surface as a draw.Image.
// Channel values are byte offsets within a pixel; alpha < 0 marks a padding byte.
type packed32 struct {
	pix    []byte
	stride int
	rect   image.Rectangle
	r      int
	g      int
	b      int
	a      int
	pad    int
}

var packed32Layouts = map[PixelFormat][5]int{
	// r, g, b, a, pad
	FormatRGBA8888: {0, 1, 2, 3, -1},
	FormatRGBX8888: {0, 1, 2, -1, 3},
	FormatBGRA8888: {2, 1, 0, 3, -1},
	FormatBGRX8888: {2, 1, 0, -1, 3},
	FormatARGB8888: {1, 2, 3, 0, -1},
	FormatXRGB8888: {1, 2, 3, -1, 0},
	FormatABGR8888: {3, 2, 1, 0, -1},
	FormatXBGR8888: {3, 2, 1, -1, 0},
}

func (p *packed32) ColorModel() color.Model { return color.NRGBAModel }

func (p *packed32) Bounds() image.Rectangle { return p.rect }

func (p *packed32) At(x, y int) color.Color {
	if !image.Pt(x, y).In(p.rect) {
		return color.NRGBA{}
	}
	i := y*p.stride + x*4
	px := p.pix[i : i+4 : i+4]
	c := color.NRGBA{R: px[p.r], G: px[p.g], B: px[p.b], A: 0xFF}
	if p.a >= 0 {
		c.A = px[p.a]
	}
	return c
}

func (p *packed32) Set(x, y int, c color.Color) {
	if !image.Pt(x, y).In(p.rect) {
		return
	}
	n, _ := color.NRGBAModel.Convert(c).(color.NRGBA)
	i := y*p.stride + x*4
	px := p.pix[i : i+4 : i+4]
	px[p.r] = n.R
	px[p.g] = n.G
	px[p.b] = n.B
	if p.a >= 0 {
		px[p.a] = n.A
	} else {
		px[p.pad] = 0xFF
	}
}

// surfaceImage wraps the memory of s without copying.
func surfaceImage(s *Surface) (image.Image, error) {
	d := s.Desc
	rect := image.Rect(0, 0, d.Width, d.Height)
	info := d.Format.Info()

	for plane := 0; plane < info.Planes; plane++ {
		need := d.PlaneStrides[plane]*(info.Rows(plane, d.Height)-1) + info.RowBytes(plane, d.Width)
		if len(s.Plane(plane)) < need {
			return nil, fmt.Errorf("plane %d holds %d bytes, %s needs %d", plane, len(s.Plane(plane)), d, need)
		}
	}

	if layout, ok := packed32Layouts[d.Format]; ok {
		return &packed32{
			pix:    s.Plane(0),
			stride: d.PlaneStrides[0],
			rect:   rect,
			r:      layout[0],
			g:      layout[1],
			b:      layout[2],
			a:      layout[3],
			pad:    layout[4],
		}, nil
	}

	switch d.Format {
	case FormatGray8:
		return &image.Gray{Pix: s.Plane(0), Stride: d.PlaneStrides[0], Rect: rect}, nil
	case FormatI420, FormatYV12, FormatY444:
		ratio := image.YCbCrSubsampleRatio420
		if d.Format == FormatY444 {
			ratio = image.YCbCrSubsampleRatio444
		}
		cb, cr := s.Plane(1), s.Plane(2)
		if d.Format == FormatYV12 {
			cb, cr = cr, cb
		}
		return &image.YCbCr{
			Y:              s.Plane(0),
			Cb:             cb,
			Cr:             cr,
			YStride:        d.PlaneStrides[0],
			CStride:        d.PlaneStrides[1],
			SubsampleRatio: ratio,
			Rect:           rect,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, d.Format)
	}
}

// destImage wraps s as a writable image.
func destImage(s *Surface) (draw.Image, error) {
	img, err := surfaceImage(s)
	if err != nil {
		return nil, err
	}
	dst, ok := img.(draw.Image)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not writable", ErrUnsupportedFormat, s.Desc.Format)
	}
	return dst, nil
}

// rotateRegion copies sr of src into a new image transformed by rotation.
func rotateRegion(src image.Image, sr image.Rectangle, rotation Rotation) *image.NRGBA {
	w, h := sr.Dx(), sr.Dy()
	ow, oh := w, h
	if rotation.Transposes() {
		ow, oh = h, w
	}
	out := image.NewNRGBA(image.Rect(0, 0, ow, oh))

	for sy := 0; sy < h; sy++ {
		for sx := 0; sx < w; sx++ {
			var dx, dy int
			switch rotation {
			case Rotation90:
				dx, dy = h-1-sy, sx
			case Rotation180:
				dx, dy = w-1-sx, h-1-sy
			case Rotation270:
				dx, dy = sy, w-1-sx
			case RotationFlipHorizontal:
				dx, dy = w-1-sx, sy
			case RotationFlipVertical:
				dx, dy = sx, h-1-sy
			case RotationUpperLeftLowerRight:
				dx, dy = sy, sx
			case RotationUpperRightLowerLeft:
				dx, dy = h-1-sy, w-1-sx
			default:
				dx, dy = sx, sy
			}
			c, _ := color.NRGBAModel.Convert(src.At(sr.Min.X+sx, sr.Min.Y+sy)).(color.NRGBA)
			out.SetNRGBA(dx, dy, c)
		}
	}
	return out
}

// argbColor converts an 0xAARRGGBB value.
func argbColor(v uint32) color.NRGBA {
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: uint8(v >> 24)}
}

func regionRect(r Region) image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Image returns a view of s that reads its memory without copying.
func Image(s *Surface) (image.Image, error) {
	return surfaceImage(s)
}

// WritableImage returns a view of s that draws straight into its memory.
// Only packed RGB and GRAY8 surfaces are writable.
func WritableImage(s *Surface) (draw.Image, error) {
	return destImage(s)
}
