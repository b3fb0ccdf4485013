package exporters

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/videomixer/internal/events"
	"github.com/smazurov/videomixer/internal/metrics"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// SSEExporter periodically publishes compositor counters on the event bus.
type SSEExporter struct {
	eventBus EventPublisher
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		interval: 1 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishMetrics()
		}
	}
}

func (s *SSEExporter) publishMetrics() {
	stats := metrics.GetFrameStats()
	if stats.Frames == 0 {
		return
	}
	s.eventBus.Publish(events.CompositorMetricsEvent{
		EventType:    "compositor_metrics",
		Frames:       strconv.FormatUint(stats.Frames, 10),
		FailedFrames: strconv.FormatUint(stats.FailedFrames, 10),
		Clears:       strconv.FormatUint(stats.Clears, 10),
		ClearSkips:   strconv.FormatUint(stats.ClearSkips, 10),
		FrameTimeMs:  strconv.FormatFloat(float64(stats.LastDuration)/float64(time.Millisecond), 'f', 2, 64),
	})
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"compositor-metrics": events.CompositorMetricsEvent{},
	}
}

// GetEventTypesForEndpoint returns event types for a specific SSE endpoint.
func GetEventTypesForEndpoint(endpoint string) map[string]any {
	if endpoint == "events" {
		return GetEventTypes()
	}
	return map[string]any{}
}

// GetEventRoutes returns the routing configuration for events.
func GetEventRoutes() map[string]string {
	return map[string]string{
		"compositor-metrics": "events",
	}
}
