package api

import (
	"context"
	"maps"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/videomixer/internal/events"
	"github.com/smazurov/videomixer/internal/metrics/exporters"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for channel changes, frame failures, session state and layout reloads",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func() map[string]any {
		eventTypes := map[string]any{
			"channel-attached":      events.ChannelAttachedEvent{},
			"channel-detached":      events.ChannelDetachedEvent{},
			"channel-updated":       events.ChannelUpdatedEvent{},
			"frame-failed":          events.FrameFailedEvent{},
			"session-state-changed": events.SessionStateChangedEvent{},
			"layout-reloaded":       events.LayoutReloadedEvent{},
		}

		// Metrics events for this endpoint
		maps.Copy(eventTypes, exporters.GetEventTypesForEndpoint("events"))

		return eventTypes
	}(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 10)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ChannelAttachedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ChannelDetachedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ChannelUpdatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SessionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.LayoutReloadedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CompositorMetricsEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current session state doubles as the connection confirmation
		stats := s.mixer.Stats()
		if err := send.Data(events.SessionStateChangedEvent{
			SessionID: stats.SessionID,
			State:     stats.State,
			Reason:    "SSE connection established",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
