// Package logging provides structured logging with per-module levels.
//
// Records go to stdout (text or json) when it is attached to something,
// to the systemd journal when journald is running, and always to an
// in-memory ring buffer served by the API.
//
// Initialize once at startup, then ask for module loggers:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"compositor": "debug",
//		},
//	})
//
//	logger := logging.GetLogger("compositor")
//	logger.Info("Output negotiated", "width", 1920, "height", 1080)
//
// Loggers obtained before Initialize are kept and pick up the configured
// level afterwards. Levels can also be changed at runtime with SetLevel.
//
// Journal records carry the module as MODULE:
//
//	journalctl -t videomixer MODULE=compositor -f
package logging
