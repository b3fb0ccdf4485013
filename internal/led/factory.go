package led

import (
	"os"
	"strings"

	"github.com/smazurov/videomixer/internal/logging"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// New creates the LED controller for the detected board. Every known board
// maps SystemLED, which reports compositing health. Unknown boards get a
// no-op controller.
func New(logger logging.Logger) Controller {
	if logger == nil {
		logger = logging.GetLogger("led")
	}
	boardModel := detectBoard()
	logger.Info("Detecting board for LED control", "board_model", boardModel)

	// Detect board type and return appropriate controller
	switch {
	case strings.Contains(boardModel, "NanoPC-T6"):
		logger.Info("Detected NanoPC-T6, using sysfs LED controller")
		return newSysfs(map[string]string{
			"user":    "usr_led",
			SystemLED: "sys_led",
		})

	case strings.Contains(boardModel, "Orange Pi"):
		logger.Info("Detected Orange Pi, using sysfs LED controller")
		return newSysfs(map[string]string{
			"blue":    "blue_led",
			SystemLED: "green_led",
		})

	case strings.Contains(boardModel, "Raspberry Pi"):
		logger.Info("Detected Raspberry Pi, using sysfs LED controller")
		return newSysfs(map[string]string{
			SystemLED: "ACT",
		})

	default:
		logger.Info("No LED support detected, using no-op controller", "board_model", boardModel)
		return newNoop(logger)
	}
}

// detectBoard reads the device tree model to identify the board.
func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}

	return strings.TrimRight(string(data), "\x00")
}
