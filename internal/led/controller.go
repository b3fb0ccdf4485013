package led

// Controller abstracts status LED control across single board computers.
type Controller interface {
	// Set switches an LED and optionally its pattern ("solid", "blink",
	// "heartbeat" or a raw kernel trigger). An empty pattern leaves the
	// trigger unchanged.
	Set(ledType string, enabled bool, pattern string) error

	// Available returns the LED types supported by this controller.
	Available() []string

	// Patterns returns the patterns supported by this controller.
	Patterns() []string
}
