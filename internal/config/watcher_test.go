package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(data))
	if s == "bad" {
		return "", errors.New("bad content")
	}
	return s, nil
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewConfigWatcher(path, readString, testLogger(), WithDebounce[string](50*time.Millisecond))
	got := make(chan string, 4)
	w.OnReload(func(s string) { got <- s })

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case s := <-got:
		if s != "two" {
			t.Errorf("reloaded value = %q, want two", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.toml")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewConfigWatcher(path, readString, testLogger(), WithDebounce[string](20*time.Millisecond))
	var calls atomic.Int32
	w.OnReload(func(string) { calls.Add(1) })

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if n := calls.Load(); n != 0 {
		t.Errorf("handler called %d times for unrelated file, want 0", n)
	}
}

func TestWatcherReloadOrderAndUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte("v"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewConfigWatcher(path, readString, testLogger())
	var order []string
	w.OnReload(func(string) { order = append(order, "first") })
	remove := w.OnReload(func(string) { order = append(order, "second") })
	w.OnReload(func(string) { order = append(order, "third") })

	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(order, ","); got != "first,second,third" {
		t.Errorf("handler order = %s, want first,second,third", got)
	}

	order = nil
	remove()
	if err := w.Reload(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(order, ","); got != "first,third" {
		t.Errorf("after unsubscribe = %s, want first,third", got)
	}
}

func TestWatcherLoaderError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	if err := os.WriteFile(path, []byte("bad"), 0o644); err != nil {
		t.Fatal(err)
	}

	var reported error
	w := NewConfigWatcher(path, readString, testLogger(), WithErrorHandler[string](func(err error) { reported = err }))
	called := false
	w.OnReload(func(string) { called = true })

	if err := w.Reload(); err == nil {
		t.Fatal("expected loader error")
	}
	if reported == nil {
		t.Error("error handler was not called")
	}
	if called {
		t.Error("reload handler must not run when loading fails")
	}
}

func TestWatcherStopWithoutStart(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "x.toml"), readString, testLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Stop before Start = %v, want nil", err)
	}
}

func TestWatcherStartMissingDirectory(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "missing", "x.toml"), readString, testLogger())
	if err := w.Start(); err == nil {
		w.Stop()
		t.Error("expected error watching a missing directory")
	}
}
