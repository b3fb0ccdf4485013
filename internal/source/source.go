// Package source produces frames for channels that have no live input:
// generated test patterns and still images.
package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/upload"
)

// Source renders frames of a fixed geometry.
type Source interface {
	// Desc returns the geometry of every frame.
	Desc() blit.SurfaceDesc
	// Frame renders frame n. The caller owns the returned buffer.
	Frame(n uint64) (*upload.Buffer, error)
}

const (
	defaultWidth  = 640
	defaultHeight = 360
)

// Parse creates the source described by spec:
//
//	pattern:<name>[@<width>x<height>]   generated pattern, see Patterns
//	image:<path>                        PNG, JPEG, GIF, BMP, TIFF or WebP file
func Parse(spec string, alloc upload.Allocator) (Source, error) {
	kind, arg, ok := strings.Cut(spec, ":")
	if !ok {
		return nil, fmt.Errorf("source %q: missing kind prefix", spec)
	}

	switch kind {
	case "pattern":
		name, size, _ := strings.Cut(arg, "@")
		width, height := defaultWidth, defaultHeight
		if size != "" {
			var err error
			width, height, err = parseSize(size)
			if err != nil {
				return nil, fmt.Errorf("source %q: %w", spec, err)
			}
		}
		return NewPattern(name, width, height, blit.FormatBGRX8888, alloc)
	case "image":
		if arg == "" {
			return nil, fmt.Errorf("source %q: missing path", spec)
		}
		return LoadImage(arg)
	default:
		return nil, fmt.Errorf("source %q: unknown kind %q", spec, kind)
	}
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("width: %w", err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("height: %w", err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("size %dx%d must be positive", w, h)
	}
	return w, h, nil
}

// Run renders frames at fps and hands each to push until ctx is done.
// push takes ownership of the frame.
func Run(ctx context.Context, src Source, fps int, push func(*upload.Buffer)) error {
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %d", fps)
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for n := uint64(0); ; n++ {
		buf, err := src.Frame(n)
		if err != nil {
			return fmt.Errorf("render frame %d: %w", n, err)
		}
		push(buf)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
