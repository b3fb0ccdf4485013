// Package collectors polls hardware load files and feeds the metrics package.
package collectors

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/videomixer/internal/logging"
	"github.com/smazurov/videomixer/internal/metrics"
)

// DefaultEngineLoadPath is where the Rockchip RGA driver reports scheduler load.
const DefaultEngineLoadPath = "/sys/kernel/debug/rkrga/load"

// EngineCollector collects 2D engine core load from the driver's debugfs file.
//
// The file lists one block per scheduler core:
//
//	scheduler[0]: rga3_core0
//		 load = 12%
type EngineCollector struct {
	logger   logging.Logger
	path     string
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewEngineCollector creates a collector for path.
func NewEngineCollector(path string) *EngineCollector {
	if path == "" {
		path = DefaultEngineLoadPath
	}
	return &EngineCollector{
		logger:   logging.GetLogger("blit"),
		path:     path,
		interval: 5 * time.Second,
	}
}

// Available reports whether the load file exists.
func (e *EngineCollector) Available() bool {
	_, err := os.Stat(e.path)
	return err == nil
}

// Start begins collecting engine metrics.
func (e *EngineCollector) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)
	go e.run()
	return nil
}

// Stop stops the collector.
func (e *EngineCollector) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

func (e *EngineCollector) run() {
	e.logger.Info("Starting engine load collection", "path", e.path, "interval", e.interval)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.collectMetrics()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.collectMetrics()
		}
	}
}

func (e *EngineCollector) collectMetrics() {
	file, err := os.Open(e.path)
	if err != nil {
		e.logger.Warn("Failed to open engine load file", "error", err)
		return
	}
	defer file.Close()

	cores, err := parseEngineLoad(file)
	if err != nil {
		e.logger.Warn("Failed to parse engine load", "error", err)
		return
	}
	for _, core := range cores {
		metrics.SetEngineLoad(core.Name, core.Load)
	}
}

type engineCore struct {
	Name string
	Load float64
}

func parseEngineLoad(r io.Reader) ([]engineCore, error) {
	var cores []engineCore
	current := ""
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "scheduler[") {
			_, name, ok := strings.Cut(line, ":")
			if !ok {
				current = ""
				continue
			}
			current = strings.TrimSpace(name)
			continue
		}

		if current == "" || !strings.HasPrefix(line, "load") {
			continue
		}
		load, err := parseLoadValue(line)
		if err != nil {
			continue
		}
		cores = append(cores, engineCore{Name: current, Load: load})
		current = ""
	}

	return cores, scanner.Err()
}

// parseLoadValue parses "load = 12%".
func parseLoadValue(line string) (float64, error) {
	_, value, ok := strings.Cut(line, "=")
	if !ok {
		return 0, fmt.Errorf("missing '=' in %q", line)
	}
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(value), "%"), 64)
}
