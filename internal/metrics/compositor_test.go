package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestChannelStatsCache(t *testing.T) {
	channel := "cache-test"
	DeleteChannelMetrics(channel)

	RecordBlit(channel)
	RecordBlit(channel)
	RecordUpload(channel, "copy")
	RecordRecompute(channel)

	got := GetFrameStats().Channels[channel]
	if got == nil {
		t.Fatal("expected channel stats")
	}
	if got.Blits != 2 || got.Uploads != 1 || got.Recomputations != 1 {
		t.Errorf("stats = %+v, want blits=2 uploads=1 recomputations=1", got)
	}

	// Returned copy is independent.
	got.Blits = 999
	if again := GetFrameStats().Channels[channel]; again.Blits != 2 {
		t.Errorf("cache was modified, Blits = %d", again.Blits)
	}

	if v := testutil.ToFloat64(blitsTotal.WithLabelValues(channel)); v != 2 {
		t.Errorf("blits_total = %v, want 2", v)
	}
	if v := testutil.ToFloat64(uploadsTotal.WithLabelValues(channel, "copy")); v != 1 {
		t.Errorf("uploads_total = %v, want 1", v)
	}

	DeleteChannelMetrics(channel)
	if _, ok := GetFrameStats().Channels[channel]; ok {
		t.Error("expected channel stats removed")
	}
	DeleteChannelMetrics("never-seen")
}

func TestRecordFrameAndClearDecision(t *testing.T) {
	before := GetFrameStats()
	okBefore := testutil.ToFloat64(framesTotal.WithLabelValues(ResultOK))
	errBefore := testutil.ToFloat64(framesTotal.WithLabelValues(ResultError))
	clearsBefore := testutil.ToFloat64(backgroundClears)
	skipsBefore := testutil.ToFloat64(clearSkips)

	RecordFrame(true, 2*time.Millisecond)
	RecordFrame(false, 3*time.Millisecond)
	RecordClearDecision(true)
	RecordClearDecision(false)
	RecordClearDecision(false)

	after := GetFrameStats()
	if after.Frames-before.Frames != 2 || after.FailedFrames-before.FailedFrames != 1 {
		t.Errorf("frames delta = %d failed delta = %d, want 2/1",
			after.Frames-before.Frames, after.FailedFrames-before.FailedFrames)
	}
	if after.LastDuration != 3*time.Millisecond {
		t.Errorf("LastDuration = %v, want 3ms", after.LastDuration)
	}
	if d := testutil.ToFloat64(framesTotal.WithLabelValues(ResultOK)) - okBefore; d != 1 {
		t.Errorf("ok frames delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(framesTotal.WithLabelValues(ResultError)) - errBefore; d != 1 {
		t.Errorf("error frames delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(backgroundClears) - clearsBefore; d != 1 {
		t.Errorf("clears delta = %v, want 1", d)
	}
	if d := testutil.ToFloat64(clearSkips) - skipsBefore; d != 2 {
		t.Errorf("clear skips delta = %v, want 2", d)
	}
}

func TestSetChannels(t *testing.T) {
	SetChannels(3)
	if v := testutil.ToFloat64(channelsGauge); v != 3 {
		t.Errorf("channels = %v, want 3", v)
	}
	SetChannels(0)
}

func TestEngineMetrics(t *testing.T) {
	SetEngineLoad("rga3_core0-test", 42)
	if v := testutil.ToFloat64(engineLoad.WithLabelValues("rga3_core0-test")); v != 42 {
		t.Errorf("engine load = %v, want 42", v)
	}
	DeleteEngineMetrics("rga3_core0-test")
	DeleteEngineMetrics("non-existent-core")
}

func TestConcurrentRecording(_ *testing.T) {
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			channel := []string{"conc-a", "conc-b"}[i%2]
			for range 100 {
				RecordBlit(channel)
				RecordFrame(true, time.Millisecond)
				_ = GetFrameStats()
			}
		}()
	}
	wg.Wait()
	DeleteChannelMetrics("conc-a")
	DeleteChannelMetrics("conc-b")
}
