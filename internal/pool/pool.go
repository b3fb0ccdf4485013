// Package pool hands out output frames and the intermediate frames the
// blit engine renders into.
//
// When downstream accepts arbitrary strides, or when the engine's aligned
// layout happens to equal the tightly packed one, output and intermediate
// frames come from the same pool and the engine renders straight into the
// output frame. Otherwise the engine renders into a separate intermediate
// frame that is copied into the output frame afterwards.
package pool

import (
	"fmt"
	"sync"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/logging"
	"github.com/smazurov/videomixer/internal/upload"
)

const maxIdle = 4

// Pool is safe for concurrent use.
type Pool struct {
	alloc  upload.Allocator
	logger logging.Logger

	mu           sync.Mutex
	output       blit.SurfaceDesc
	intermediate blit.SurfaceDesc
	shared       bool
	configured   bool
	idle         []*upload.Buffer
}

// New creates an unconfigured pool.
func New(alloc upload.Allocator, logger logging.Logger) *Pool {
	return &Pool{alloc: alloc, logger: logger}
}

// Configure sets the output geometry. Frames handed out before the call
// stay valid but are not recycled.
func (p *Pool) Configure(output blit.SurfaceDesc, caps blit.HardwareCapabilities, videoMetaSupported bool) {
	tight := blit.TightDesc(output.Width, output.Height, output.Format)
	aligned := blit.AlignDesc(output, caps)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.intermediate = aligned
	p.shared = videoMetaSupported || aligned == tight
	if p.shared {
		p.output = aligned
	} else {
		p.output = tight
	}
	p.configured = true
	for _, b := range p.idle {
		b.Release()
	}
	p.idle = nil

	p.logger.Debug("Configured output pool",
		"output", p.output.String(),
		"intermediate", p.intermediate.String(),
		"shared", p.shared,
		"video_meta", videoMetaSupported)
}

// Shared reports whether output frames double as intermediate frames.
func (p *Pool) Shared() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shared
}

// OutputDesc returns the layout of output frames.
func (p *Pool) OutputDesc() blit.SurfaceDesc {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.output
}

// IntermediateDesc returns the layout the engine renders into.
func (p *Pool) IntermediateDesc() blit.SurfaceDesc {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.intermediate
}

// NewOutputBuffer allocates an output frame.
func (p *Pool) NewOutputBuffer() (*upload.Buffer, error) {
	p.mu.Lock()
	desc, configured := p.output, p.configured
	p.mu.Unlock()
	if !configured {
		return nil, fmt.Errorf("output pool not configured")
	}
	return upload.Alloc(p.alloc, desc)
}

// AcquireIntermediate returns the frame to render into for output. With
// shared pools that is output itself.
func (p *Pool) AcquireIntermediate(output *upload.Buffer) (*upload.Buffer, error) {
	p.mu.Lock()
	if !p.configured {
		p.mu.Unlock()
		return nil, fmt.Errorf("output pool not configured")
	}
	if p.shared {
		p.mu.Unlock()
		if output == nil || !output.DeviceAccessible() {
			return nil, fmt.Errorf("output frame is not device accessible")
		}
		return output, nil
	}
	if n := len(p.idle); n > 0 {
		b := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return b, nil
	}
	desc := p.intermediate
	p.mu.Unlock()

	b, err := upload.Alloc(p.alloc, desc)
	if err != nil {
		return nil, fmt.Errorf("acquire intermediate frame: %w", err)
	}
	return b, nil
}

// Transfer moves the rendered intermediate frame into output and recycles
// the intermediate frame.
func (p *Pool) Transfer(intermediate, output *upload.Buffer) error {
	if intermediate == output {
		return nil
	}
	err := upload.CopyPlanes(&output.Surface, &intermediate.Surface)
	p.Recycle(intermediate, output)
	if err != nil {
		return fmt.Errorf("transfer to output frame: %w", err)
	}
	return nil
}

// Recycle returns an intermediate frame that will not be transferred, for
// example after a failed frame. It is a no-op for shared pools.
func (p *Pool) Recycle(intermediate, output *upload.Buffer) {
	if intermediate == nil || intermediate == output {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if intermediate.Desc != p.intermediate || len(p.idle) >= maxIdle {
		intermediate.Release()
		return
	}
	p.idle = append(p.idle, intermediate)
}

// Close releases idle intermediate frames.
func (p *Pool) Close() {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()
	for _, b := range idle {
		b.Release()
	}
}
