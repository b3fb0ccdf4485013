package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(ChannelAttachedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the static type, so resolve it here
	switch e := ev.(type) {
	case ChannelAttachedEvent:
		event.Publish(b.dispatcher, e)
	case ChannelDetachedEvent:
		event.Publish(b.dispatcher, e)
	case ChannelUpdatedEvent:
		event.Publish(b.dispatcher, e)
	case FrameFailedEvent:
		event.Publish(b.dispatcher, e)
	case SessionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case LayoutReloadedEvent:
		event.Publish(b.dispatcher, e)
	case CompositorMetricsEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e FrameFailedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ChannelAttachedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ChannelDetachedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ChannelUpdatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LayoutReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CompositorMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
