package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan ChannelAttachedEvent, 1)

	unsub := bus.Subscribe(func(e ChannelAttachedEvent) {
		received <- e
	})
	defer unsub()

	event := ChannelAttachedEvent{
		ChannelID: "cam0",
		ZOrder:    2,
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.ChannelID != event.ChannelID || got.ZOrder != event.ZOrder {
		t.Errorf("got %+v, want %+v", got, event)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan FrameFailedEvent, 1)
	received2 := make(chan FrameFailedEvent, 1)

	unsub1 := bus.Subscribe(func(e FrameFailedEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e FrameFailedEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(FrameFailedEvent{Code: "BLIT_FAILURE", ChannelID: "cam1"})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ChannelDetachedEvent, 1)

	unsub := bus.Subscribe(func(e ChannelDetachedEvent) {
		received <- e
	})

	bus.Publish(ChannelDetachedEvent{ChannelID: "cam0"})
	<-received

	unsub()

	bus.Publish(ChannelDetachedEvent{ChannelID: "cam1"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	attached := make(chan bool, 1)
	failed := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ ChannelAttachedEvent) { attached <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ FrameFailedEvent) { failed <- true })
	defer unsub2()

	bus.Publish(ChannelAttachedEvent{ChannelID: "cam0"})
	<-attached

	select {
	case <-failed:
		t.Fatal("FrameFailed subscriber should NOT have received ChannelAttachedEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(FrameFailedEvent{Code: "UPLOAD_FAILURE"})
	<-failed

	select {
	case <-attached:
		t.Fatal("ChannelAttached subscriber should NOT have received FrameFailedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ ChannelUpdatedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(ChannelUpdatedEvent{
					ChannelID: "cam0",
					Fields:    []string{"x"},
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"ChannelAttached", ChannelAttachedEvent{ChannelID: "cam0"}},
		{"ChannelDetached", ChannelDetachedEvent{ChannelID: "cam0"}},
		{"ChannelUpdated", ChannelUpdatedEvent{ChannelID: "cam0"}},
		{"FrameFailed", FrameFailedEvent{Code: "BLIT_FAILURE"}},
		{"SessionStateChanged", SessionStateChangedEvent{State: SessionRunning}},
		{"LayoutReloaded", LayoutReloadedEvent{Path: "layout.toml"}},
		{"CompositorMetrics", CompositorMetricsEvent{EventType: "compositor_metrics"}},
		{"LogEntry", LogEntryEvent{Seq: 1, Message: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case ChannelAttachedEvent:
				unsub = bus.Subscribe(func(e ChannelAttachedEvent) { received <- e })
			case ChannelDetachedEvent:
				unsub = bus.Subscribe(func(e ChannelDetachedEvent) { received <- e })
			case ChannelUpdatedEvent:
				unsub = bus.Subscribe(func(e ChannelUpdatedEvent) { received <- e })
			case FrameFailedEvent:
				unsub = bus.Subscribe(func(e FrameFailedEvent) { received <- e })
			case SessionStateChangedEvent:
				unsub = bus.Subscribe(func(e SessionStateChangedEvent) { received <- e })
			case LayoutReloadedEvent:
				unsub = bus.Subscribe(func(e LayoutReloadedEvent) { received <- e })
			case CompositorMetricsEvent:
				unsub = bus.Subscribe(func(e CompositorMetricsEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestBus_UnknownHandler(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestEventJSONSerialization(t *testing.T) {
	data, err := json.Marshal(FrameFailedEvent{
		Code:      "UPLOAD_FAILURE",
		ChannelID: "cam1",
		Error:     "geometry mismatch",
		Timestamp: "2025-01-27T10:30:00Z",
	})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	for _, key := range []string{"code", "channel_id", "error", "timestamp"} {
		if _, ok := result[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
}

func TestSessionStateChangedEvent_IsHealthy(t *testing.T) {
	tests := []struct {
		state string
		want  bool
	}{
		{SessionStarting, false},
		{SessionRunning, true},
		{SessionDegraded, false},
		{SessionStopped, false},
	}
	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			if got := (SessionStateChangedEvent{State: tt.state}).IsHealthy(); got != tt.want {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[SessionStateChangedEvent](bus, ch)
	defer unsub()

	bus.Publish(SessionStateChangedEvent{SessionID: "s1", State: SessionDegraded})

	received := <-ch
	ev, ok := received.(SessionStateChangedEvent)
	if !ok {
		t.Fatalf("Expected SessionStateChangedEvent, got %T", received)
	}
	if ev.State != SessionDegraded {
		t.Errorf("State = %s, want %s", ev.State, SessionDegraded)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any)

	unsub := SubscribeToChannel[ChannelAttachedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(ChannelAttachedEvent{ChannelID: "cam0"})
		done <- true
	}()

	<-done
}
