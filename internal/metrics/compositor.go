// Package metrics provides Prometheus metrics for the compositor and the blit engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame results used as label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	framesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videomixer",
		Subsystem: "compositor",
		Name:      "frames_total",
		Help:      "Aggregated output frames by result",
	}, []string{"result"})

	backgroundClears = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "videomixer",
		Subsystem: "compositor",
		Name:      "background_clears_total",
		Help:      "Frames that needed a background clear",
	})

	clearSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "videomixer",
		Subsystem: "compositor",
		Name:      "clear_skips_total",
		Help:      "Frames where an opaque channel made the background clear unnecessary",
	})

	blitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videomixer",
		Subsystem: "compositor",
		Name:      "blits_total",
		Help:      "Blits submitted per channel",
	}, []string{"channel"})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videomixer",
		Subsystem: "compositor",
		Name:      "uploads_total",
		Help:      "Input buffer uploads per channel and mode",
	}, []string{"channel", "mode"})

	recomputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "videomixer",
		Subsystem: "compositor",
		Name:      "region_recomputations_total",
		Help:      "Region recomputations per channel",
	}, []string{"channel"})

	aggregateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "videomixer",
		Subsystem: "compositor",
		Name:      "aggregate_duration_seconds",
		Help:      "Time spent compositing one output frame",
		Buckets:   []float64{.0005, .001, .002, .004, .008, .016, .033, .066, .1, .25},
	})

	channelsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "videomixer",
		Subsystem: "compositor",
		Name:      "channels",
		Help:      "Attached input channels",
	})

	// Local cache for SSE exporter and stats endpoint access.
	statsMu sync.RWMutex
	stats   = FrameStats{Channels: make(map[string]*ChannelStats)}
)

// ChannelStats holds current counter values for a channel.
type ChannelStats struct {
	Blits          uint64 `json:"blits"`
	Uploads        uint64 `json:"uploads"`
	Recomputations uint64 `json:"recomputations"`
}

// FrameStats holds current compositor counter values.
type FrameStats struct {
	Frames       uint64                   `json:"frames"`
	FailedFrames uint64                   `json:"failed_frames"`
	Clears       uint64                   `json:"clears"`
	ClearSkips   uint64                   `json:"clear_skips"`
	LastDuration time.Duration            `json:"last_duration_ns"`
	Channels     map[string]*ChannelStats `json:"channels"`
}

// RecordFrame records the outcome and duration of one aggregation pass.
func RecordFrame(ok bool, duration time.Duration) {
	result := ResultOK
	if !ok {
		result = ResultError
	}
	framesTotal.WithLabelValues(result).Inc()
	aggregateDuration.Observe(duration.Seconds())

	statsMu.Lock()
	defer statsMu.Unlock()
	stats.Frames++
	if !ok {
		stats.FailedFrames++
	}
	stats.LastDuration = duration
}

// RecordClearDecision records whether a frame cleared its background.
func RecordClearDecision(cleared bool) {
	statsMu.Lock()
	defer statsMu.Unlock()
	if cleared {
		backgroundClears.Inc()
		stats.Clears++
	} else {
		clearSkips.Inc()
		stats.ClearSkips++
	}
}

// RecordBlit counts a blit submitted for channel.
func RecordBlit(channel string) {
	blitsTotal.WithLabelValues(channel).Inc()
	updateChannel(channel, func(c *ChannelStats) { c.Blits++ })
}

// RecordUpload counts an upload for channel in the given mode.
func RecordUpload(channel, mode string) {
	uploadsTotal.WithLabelValues(channel, mode).Inc()
	updateChannel(channel, func(c *ChannelStats) { c.Uploads++ })
}

// RecordRecompute counts a region recomputation for channel.
func RecordRecompute(channel string) {
	recomputations.WithLabelValues(channel).Inc()
	updateChannel(channel, func(c *ChannelStats) { c.Recomputations++ })
}

// SetChannels sets the number of attached channels.
func SetChannels(n int) {
	channelsGauge.Set(float64(n))
}

// DeleteChannelMetrics removes all metrics for a channel.
func DeleteChannelMetrics(channel string) {
	blitsTotal.DeleteLabelValues(channel)
	recomputations.DeleteLabelValues(channel)
	uploadsTotal.DeletePartialMatch(prometheus.Labels{"channel": channel})

	statsMu.Lock()
	delete(stats.Channels, channel)
	statsMu.Unlock()
}

// GetFrameStats returns a copy of the current counters.
func GetFrameStats() FrameStats {
	statsMu.RLock()
	defer statsMu.RUnlock()
	out := stats
	out.Channels = make(map[string]*ChannelStats, len(stats.Channels))
	for id, c := range stats.Channels {
		dup := *c
		out.Channels[id] = &dup
	}
	return out
}

func updateChannel(channel string, update func(*ChannelStats)) {
	statsMu.Lock()
	defer statsMu.Unlock()
	c, ok := stats.Channels[channel]
	if !ok {
		c = &ChannelStats{}
		stats.Channels[channel] = c
	}
	update(c)
}
