package source

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/upload"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Still repeats one decoded image. Its memory is ordinary host memory, so
// the uploader copies it into engine memory for every frame.
type Still struct {
	path   string
	desc   blit.SurfaceDesc
	memory *upload.HeapMemory
}

// LoadImage decodes the image file at path into a BGRx frame.
func LoadImage(path string) (*Still, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return newStill(path, img, format)
}

func newStill(path string, img image.Image, format string) (*Still, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("image %s (%s) is empty", path, format)
	}

	desc := blit.TightDesc(b.Dx(), b.Dy(), blit.FormatBGRX8888)
	mem := upload.NewHeapMemory(make([]byte, desc.Size()), false)
	surface := blit.Surface{Desc: desc, Memory: [3]blit.Memory{mem}}
	dst, err := blit.WritableImage(&surface)
	if err != nil {
		return nil, err
	}
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	return &Still{path: path, desc: desc, memory: mem}, nil
}

// Desc implements Source.
func (s *Still) Desc() blit.SurfaceDesc { return s.desc }

// Frame implements Source. All frames share the decoded pixels.
func (s *Still) Frame(uint64) (*upload.Buffer, error) {
	return upload.NewBuffer(s.desc, s.memory), nil
}
