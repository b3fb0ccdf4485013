package scene

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Load reads and validates a layout file. A missing file yields
// DefaultLayout.
func Load(path string) (*Layout, error) {
	l := DefaultLayout()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, NewError(ErrCodeConfigError, "failed to read layout", err)
	}

	// Decode into a fresh struct so absent tables stay absent.
	var parsed Layout
	if err := toml.Unmarshal(data, &parsed); err != nil {
		return nil, NewError(ErrCodeConfigError, "failed to parse layout", err)
	}
	parsed.applyDefaults()

	if err := parsed.Validate(); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Save writes the layout to path, creating the directory if needed.
func Save(path string, l *Layout) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create layout directory: %w", err)
	}

	data, err := toml.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to marshal layout: %w", err)
	}

	// Write then rename so a watcher never reads a half-written file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write layout: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace layout: %w", err)
	}
	return nil
}
