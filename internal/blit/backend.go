// Package blit abstracts the 2D blit engine used to composite frames.
//
// A Backend performs already-clipped operations on one destination surface
// between Start and Finish. The Blitter wraps a Backend and turns
// compositor-level parameters (destination region, margin, rotation, global
// alpha) into those clipped operations.
package blit

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/smazurov/videomixer/internal/logging"
)

// Errors returned by backends and the Blitter.
var (
	ErrNotStarted        = errors.New("blitter not started")
	ErrAlreadyStarted    = errors.New("blitter already started")
	ErrInvalidAlpha      = errors.New("alpha outside 0..255")
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	ErrNoSource          = errors.New("no source surface set")
	ErrUnknownBackend    = errors.New("unknown blit backend")
)

// Operation is a single clipped blit handed to a Backend.
// Both regions lie within their surfaces.
type Operation struct {
	Source       *Surface
	SourceRegion Region
	DestRegion   Region
	Rotation     Rotation
	Alpha        uint8
}

// Backend is one implementation of the blit engine.
type Backend interface {
	// Name identifies the backend in logs and the API.
	Name() string
	// Capabilities reports formats, size limits and alignment requirements.
	Capabilities() HardwareCapabilities
	// Start binds the destination surface for a batch of operations.
	Start(dest *Surface) error
	// Blit performs one operation into the bound destination.
	Blit(op Operation) error
	// Fill paints region with an 0xAARRGGBB color, blending when alpha < 0xFF.
	Fill(region Region, color uint32) error
	// Finish flushes pending operations and unbinds the destination.
	Finish() error
	// Close releases the engine context.
	Close() error
}

// Factory creates a backend.
type Factory func(logger logging.Logger) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available to New under name.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Backends lists the registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry)+1)
	for name := range registry {
		names = append(names, name)
	}
	names = append(names, "auto")
	sort.Strings(names)
	return names
}

func init() {
	Register("software", func(logger logging.Logger) (Backend, error) {
		return NewSoftware(), nil
	})
	Register("noop", func(logger logging.Logger) (Backend, error) {
		return newNoop(logger), nil
	})
}

const deviceTreeModelPath = "/proc/device-tree/model"

// New creates the backend registered under name. "auto" picks one based on
// the detected board.
func New(name string, logger logging.Logger) (Backend, error) {
	if name == "" || name == "auto" {
		name = detectBackend(logger)
	}

	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}

	backend, err := factory(logger)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", name, err)
	}
	if logger != nil {
		logger.Info("Blit backend created", "backend", backend.Name())
	}
	return backend, nil
}

// detectBackend reads the device tree model. Boards whose 2D engine has a
// registered backend would be matched here; everything else uses the CPU.
func detectBackend(logger logging.Logger) string {
	model := "unknown"
	if data, err := os.ReadFile(deviceTreeModelPath); err == nil {
		model = strings.TrimRight(string(data), "\x00")
	}

	name := "software"
	registryMu.RLock()
	for candidate := range registry {
		if candidate != "software" && candidate != "noop" && strings.Contains(strings.ToLower(model), candidate) {
			name = candidate
		}
	}
	registryMu.RUnlock()

	if logger != nil {
		logger.Info("Detected board for blit backend", "board_model", model, "backend", name)
	}
	return name
}
