package compositor

import (
	"errors"
	"slices"
	"time"

	"github.com/smazurov/videomixer/internal/blit"
	"github.com/smazurov/videomixer/internal/events"
	"github.com/smazurov/videomixer/internal/layout"
	"github.com/smazurov/videomixer/internal/metrics"
	"github.com/smazurov/videomixer/internal/upload"
)

// Result summarizes one aggregation pass.
type Result struct {
	Cleared  bool          `json:"cleared"`
	Blits    int           `json:"blits"`
	Channels int           `json:"channels"`
	Duration time.Duration `json:"duration"`
}

// Aggregate composites the queued frame of every channel into output.
//
// On error the frame is discarded: output is left untouched when the engine
// renders into an intermediate frame, and must not be delivered otherwise.
// Aggregate is not reentrant; concurrent calls are serialized.
func (c *Compositor) Aggregate(output *upload.Buffer) (Result, error) {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()

	start := time.Now()
	res, err := c.aggregate(output)
	res.Duration = time.Since(start)

	metrics.RecordFrame(err == nil, res.Duration)
	if err != nil {
		c.reportFailure(err)
	}
	return res, err
}

func (c *Compositor) aggregate(output *upload.Buffer) (Result, error) {
	var res Result
	if output == nil {
		return res, NewError(CodeAllocationFailure, "", "no output frame", nil)
	}

	intermediate, err := c.pool.AcquireIntermediate(output)
	if err != nil {
		return res, NewError(CodeAllocationFailure, "", "acquire intermediate frame", err)
	}

	if err := c.blitter.Start(&intermediate.Surface); err != nil {
		c.pool.Recycle(intermediate, output)
		return res, NewError(CodeBlitFailure, "", "start blit engine", err)
	}

	c.mu.RLock()
	channels := slices.Clone(c.channels)
	size := layout.Size{Width: c.output.Width, Height: c.output.Height}
	c.mu.RUnlock()
	res.Channels = len(channels)

	err = c.render(channels, size, &res)

	// Finish runs whenever Start succeeded. An earlier error stays first in
	// the chain so ErrorCode reports it.
	if finishErr := c.blitter.Finish(); finishErr != nil {
		finishErr = NewError(CodeBlitFailure, "", "finish blit engine", finishErr)
		if err != nil {
			err = errors.Join(err, finishErr)
		} else {
			err = finishErr
		}
	}

	if err != nil {
		c.pool.Recycle(intermediate, output)
		return res, err
	}
	if err := c.pool.Transfer(intermediate, output); err != nil {
		return res, NewError(CodeAllocationFailure, "", "transfer frame", err)
	}
	return res, nil
}

func (c *Compositor) render(channels []*ChannelHandle, size layout.Size, res *Result) error {
	needsClear := c.clearNeeded(channels, size)
	metrics.RecordClearDecision(needsClear)
	if needsClear {
		color := c.background.Load() | 0xFF000000
		if err := c.blitter.FillRegion(nil, color); err != nil {
			return NewError(CodeBlitFailure, "", "clear background", err)
		}
		res.Cleared = true
	}

	for _, ch := range channels {
		blitted, err := c.blitChannel(ch)
		if err != nil {
			return err
		}
		if blitted {
			res.Blits++
		}
	}
	return nil
}

// clearNeeded refreshes the regions of every channel and reports whether
// the background has to be painted. A channel can only hide the background
// when it is fully opaque, has no alpha channel and either its video or its
// video plus an opaque margin covers the whole output.
func (c *Compositor) clearNeeded(channels []*ChannelHandle, size layout.Size) bool {
	needsClear := true
	for _, ch := range channels {
		// Every channel is recomputed even once the decision is made.
		if ch.Recompute(size) {
			metrics.RecordRecompute(ch.ID())
		}
		if !needsClear || !ch.HasBuffer() {
			continue
		}

		snap := ch.Snapshot()
		if snap.Opacity < 1.0 || snap.Format.HasAlpha() {
			continue
		}
		r := snap.Regions
		if r.InnerFillsOutput {
			needsClear = false
		}
		if r.TotalFillsOutput && r.Combined.Alpha() == 0xFF {
			needsClear = false
		}
	}
	return needsClear
}

// blitChannel draws the queued frame of ch. It reports false without error
// when the channel has no frame.
func (c *Compositor) blitChannel(ch *ChannelHandle) (bool, error) {
	in := ch.acquire()
	if in == nil {
		return false, nil
	}
	defer ch.done()

	snap := ch.Snapshot()

	uploaded, err := ch.uploader.Upload(in)
	if err != nil {
		return false, NewError(CodeUploadFailure, ch.ID(), "upload frame", err)
	}
	defer uploaded.Release()
	metrics.RecordUpload(ch.ID(), uploaded.Mode.String())

	dest := snap.Regions.Inner
	margin := snap.Regions.Combined
	params := blit.Params{
		DestRegion: &dest,
		Margin:     &margin,
		Rotation:   snap.Rotation,
		Alpha:      snap.Alpha,
	}
	if snap.InputCrop && uploaded.Crop != nil {
		crop := *uploaded.Crop
		params.SourceRegion = &crop
	}

	c.blitter.SetSource(&uploaded.Surface)
	if err := c.blitter.DoBlit(params); err != nil {
		return false, NewError(CodeBlitFailure, ch.ID(), "blit frame", err)
	}
	metrics.RecordBlit(ch.ID())
	return true, nil
}

func (c *Compositor) reportFailure(err error) {
	var e *Error
	channel := ""
	code := CodeBlitFailure
	if errors.As(err, &e) {
		channel, code = e.Channel, e.Code
	}

	c.logger.Warn("Frame failed", "code", code, "channel", channel, "error", err)
	c.publish(events.FrameFailedEvent{
		Code:      code,
		ChannelID: channel,
		Error:     err.Error(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
