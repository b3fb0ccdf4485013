package events

// Event type constants for kelindar/event.
const (
	TypeChannelAttached uint32 = iota + 1
	TypeChannelDetached
	TypeChannelUpdated
	TypeFrameFailed
	TypeSessionStateChanged
	TypeLogEntry
	TypeLayoutReloaded
	TypeCompositorMetrics
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ChannelAttachedEvent is published when an input channel joins the compositor.
type ChannelAttachedEvent struct {
	ChannelID string `json:"channel_id" example:"cam0" doc:"Channel identifier"`
	ZOrder    int    `json:"zorder" example:"1" doc:"Assigned z-order"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ChannelAttachedEvent.
func (e ChannelAttachedEvent) Type() uint32 { return TypeChannelAttached }

// ChannelDetachedEvent is published when an input channel leaves the compositor.
type ChannelDetachedEvent struct {
	ChannelID string `json:"channel_id" example:"cam0" doc:"Channel identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ChannelDetachedEvent.
func (e ChannelDetachedEvent) Type() uint32 { return TypeChannelDetached }

// ChannelUpdatedEvent is published after a channel property change.
type ChannelUpdatedEvent struct {
	ChannelID string   `json:"channel_id" example:"cam0" doc:"Channel identifier"`
	Fields    []string `json:"fields" example:"[\"x\",\"opacity\"]" doc:"Properties that changed"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ChannelUpdatedEvent.
func (e ChannelUpdatedEvent) Type() uint32 { return TypeChannelUpdated }

// FrameFailedEvent is published when an aggregation pass ends in a frame error.
type FrameFailedEvent struct {
	Code      string `json:"code" example:"BLIT_FAILURE" doc:"Error category"`
	ChannelID string `json:"channel_id,omitempty" example:"cam1" doc:"Channel that caused the failure, if any"`
	Error     string `json:"error" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FrameFailedEvent.
func (e FrameFailedEvent) Type() uint32 { return TypeFrameFailed }

// Session states carried by SessionStateChangedEvent.
const (
	SessionStarting = "starting"
	SessionRunning  = "running"
	SessionDegraded = "degraded"
	SessionStopped  = "stopped"
)

// SessionStateChangedEvent reports frame loop health.
// Used for LED control and other reactive subsystems.
type SessionStateChangedEvent struct {
	SessionID string `json:"session_id" example:"5f0c6c1e-8a53-4c57-9a51-3c3c9a8f1a11" doc:"Compositing session identifier"`
	State     string `json:"state" example:"running" doc:"starting, running, degraded or stopped"`
	Reason    string `json:"reason,omitempty" doc:"Why the state changed"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionStateChangedEvent.
func (e SessionStateChangedEvent) Type() uint32 { return TypeSessionStateChanged }

// IsHealthy reports whether the session is producing frames normally.
func (e SessionStateChangedEvent) IsHealthy() bool {
	return e.State == SessionRunning
}

// LayoutReloadedEvent is published after the layout file was applied.
type LayoutReloadedEvent struct {
	Path      string `json:"path" example:"/etc/videomixer/layout.toml" doc:"Layout file"`
	Channels  int    `json:"channels" example:"2" doc:"Channels after reload"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for LayoutReloadedEvent.
func (e LayoutReloadedEvent) Type() uint32 { return TypeLayoutReloaded }

// CompositorMetricsEvent carries periodic compositor counters.
type CompositorMetricsEvent struct {
	EventType    string `json:"type"`
	Frames       string `json:"frames"`
	FailedFrames string `json:"failed_frames"`
	Clears       string `json:"clears"`
	ClearSkips   string `json:"clear_skips"`
	FrameTimeMs  string `json:"frame_time_ms"`
}

// Type returns the event type identifier for CompositorMetricsEvent.
func (e CompositorMetricsEvent) Type() uint32 { return TypeCompositorMetrics }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"compositor" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
