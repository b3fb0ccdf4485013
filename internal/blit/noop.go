package blit

import "github.com/smazurov/videomixer/internal/logging"

// noop accepts every operation and touches no memory. Used for dry runs and
// on boards where output is discarded.
type noop struct {
	logger  logging.Logger
	started bool
}

func newNoop(logger logging.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Name() string { return "noop" }

func (n *noop) Capabilities() HardwareCapabilities {
	formats := make([]PixelFormat, 0, len(formatTable))
	for f := range formatTable {
		formats = append(formats, f)
	}
	return HardwareCapabilities{
		SourceFormats:       formats,
		DestFormats:         formats,
		MinWidth:            1,
		MaxWidth:            16384,
		WidthStep:           1,
		MinHeight:           1,
		MaxHeight:           16384,
		HeightStep:          1,
		StrideAlignment:     1,
		RowCountAlignment:   1,
		MultiBufferSurfaces: true,
	}
}

func (n *noop) Start(_ *Surface) error {
	if n.started {
		return ErrAlreadyStarted
	}
	n.started = true
	return nil
}

func (n *noop) Blit(op Operation) error {
	if !n.started {
		return ErrNotStarted
	}
	if n.logger != nil {
		n.logger.Debug("Blit discarded (no-op)", "dest", op.DestRegion.String(), "rotation", op.Rotation.String())
	}
	return nil
}

func (n *noop) Fill(region Region, _ uint32) error {
	if !n.started {
		return ErrNotStarted
	}
	return nil
}

func (n *noop) Finish() error {
	if !n.started {
		return ErrNotStarted
	}
	n.started = false
	return nil
}

func (n *noop) Close() error { return nil }
