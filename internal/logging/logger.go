package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

const (
	defaultBufferSize = 2000
	journalIdentifier = "videomixer"
)

// Logger is satisfied by *slog.Logger. Packages that only log accept this
// instead of the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type registry struct {
	mu       sync.RWMutex
	config   Config
	ready    bool
	loggers  map[string]*slog.Logger
	levels   map[string]*slog.LevelVar
	global   slog.LevelVar
	buffer   *RingBuffer
	callback LogCallback
}

var state = newRegistry()

func newRegistry() *registry {
	return &registry{
		loggers: make(map[string]*slog.Logger),
		levels:  make(map[string]*slog.LevelVar),
		buffer:  NewRingBuffer(defaultBufferSize),
	}
}

// Initialize applies config to all existing and future module loggers.
func Initialize(config Config) {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.config = config
	state.ready = true
	state.global.Set(parseLevelOr(config.Level, slog.LevelInfo))

	// Handlers built before Initialize used the default text format.
	for module, levelVar := range state.levels {
		levelVar.Set(state.moduleLevel(module))
		state.loggers[module] = slog.New(state.handler(levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(state.handler(&state.global)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	state.mu.RLock()
	logger, ok := state.loggers[module]
	state.mu.RUnlock()
	if ok {
		return logger
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if logger, ok := state.loggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	levelVar.Set(state.moduleLevel(module))
	logger = slog.New(state.handler(levelVar)).With("module", module)
	state.loggers[module] = logger
	state.levels[module] = levelVar
	return logger
}

// SetLevel changes the level of one module at runtime. An empty module
// changes the global level and every module without an explicit override.
func SetLevel(module, level string) error {
	parsed := parseLevel(level)
	if parsed == nil {
		return fmt.Errorf("invalid log level %q", level)
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if module == "" {
		state.config.Level = level
		state.global.Set(*parsed)
		for name, levelVar := range state.levels {
			if _, override := state.config.Modules[name]; !override {
				levelVar.Set(*parsed)
			}
		}
		return nil
	}

	if state.config.Modules == nil {
		state.config.Modules = make(map[string]string)
	}
	state.config.Modules[module] = level
	if levelVar, ok := state.levels[module]; ok {
		levelVar.Set(*parsed)
	}
	return nil
}

// Levels returns the effective level of every known module.
func Levels() map[string]string {
	state.mu.RLock()
	defer state.mu.RUnlock()

	out := make(map[string]string, len(state.levels))
	for module, levelVar := range state.levels {
		out[module] = levelName(levelVar.Level())
	}
	return out
}

// Modules returns the names of all modules that have requested a logger.
func Modules() []string {
	state.mu.RLock()
	defer state.mu.RUnlock()

	names := make([]string, 0, len(state.loggers))
	for name := range state.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetBuffer returns the ring buffer holding recent log entries.
func GetBuffer() *RingBuffer {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.buffer
}

// SetLogCallback registers a function called for every buffered entry.
func SetLogCallback(callback LogCallback) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.callback = callback
}

func (r *registry) currentCallback() LogCallback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callback
}

// moduleLevel must be called with r.mu held.
func (r *registry) moduleLevel(module string) slog.Level {
	if !r.ready {
		return slog.LevelInfo
	}
	level := parseLevelOr(r.config.Level, slog.LevelInfo)
	if override, ok := r.config.Modules[module]; ok {
		level = parseLevelOr(override, level)
	}
	return level
}

// handler builds the output chain for one level source. Must be called with r.mu held.
func (r *registry) handler(level slog.Leveler) slog.Handler {
	format := "text"
	if r.ready && r.config.Format != "" {
		format = r.config.Format
	}

	opts := &slog.HandlerOptions{Level: level}
	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := make([]slog.Handler, 0, 3)
	if stdoutAttached() {
		handlers = append(handlers, stdout)
	}
	if JournalAvailable() {
		handlers = append(handlers, NewJournalHandler(journalIdentifier, level))
	}
	handlers = append(handlers, NewBufferHandler(r.buffer, level, r.notify))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// notify forwards a buffered entry to the registered callback.
func (r *registry) notify(entry LogEntry) {
	if cb := r.currentCallback(); cb != nil {
		cb(entry)
	}
}

// stdoutAttached reports whether stdout is a terminal, pipe, socket or file.
func stdoutAttached() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func parseLevelOr(level string, fallback slog.Level) slog.Level {
	if parsed := parseLevel(level); parsed != nil {
		return *parsed
	}
	return fallback
}

// parseLevel converts a level name. Unknown names return nil.
func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
