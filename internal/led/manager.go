package led

import (
	"sync"

	"github.com/smazurov/videomixer/internal/events"
	"github.com/smazurov/videomixer/internal/logging"
)

// SystemLED is the LED type driven by the manager.
const SystemLED = "system"

// Manager mirrors compositing session health on the system LED:
// solid while frames are produced, blinking while starting or degraded,
// off once every session stopped.
type Manager struct {
	controller  Controller
	eventBus    *events.Bus
	unsubscribe func()
	logger      logging.Logger

	mu       sync.Mutex
	sessions map[string]string // session ID -> state
	applied  string
}

// NewManager creates a new LED manager that reacts to session state changes.
func NewManager(controller Controller, eventBus *events.Bus, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetLogger("led")
	}
	return &Manager{
		controller: controller,
		eventBus:   eventBus,
		logger:     logger,
		sessions:   make(map[string]string),
	}
}

// Start begins listening for session state change events.
func (m *Manager) Start() {
	m.unsubscribe = m.eventBus.Subscribe(func(e events.SessionStateChangedEvent) {
		m.handleEvent(e)
	})
	m.logger.Info("LED manager started")
}

// Stop unsubscribes from events.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.logger.Info("LED manager stopped")
}

func (m *Manager) handleEvent(event events.SessionStateChangedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.State == events.SessionStopped {
		delete(m.sessions, event.SessionID)
	} else {
		m.sessions[event.SessionID] = event.State
	}

	m.logger.Debug("Session state changed",
		"session_id", event.SessionID,
		"state", event.State)

	m.updateSystemLED()
}

// updateSystemLED must be called with mu held. The worst session wins.
func (m *Manager) updateSystemLED() {
	pattern := ""
	if len(m.sessions) > 0 {
		pattern = "solid"
	}
	for _, state := range m.sessions {
		if state != events.SessionRunning {
			pattern = "blink"
			break
		}
	}

	if pattern == m.applied {
		return
	}

	var err error
	if pattern == "" {
		err = m.controller.Set(SystemLED, false, "")
	} else {
		err = m.controller.Set(SystemLED, true, pattern)
	}
	if err != nil {
		m.logger.Warn("Failed to set system LED", "pattern", pattern, "error", err)
		return
	}
	m.applied = pattern
	m.logger.Debug("System LED updated", "pattern", pattern, "sessions", len(m.sessions))
}

// GetController returns the underlying LED controller for direct API access.
func (m *Manager) GetController() Controller {
	return m.controller
}
