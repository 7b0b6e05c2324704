package sandbox

import (
	"time"

	"github.com/GriffinCanCode/PageSense/backend/internal/shared/types"
)

// Config defines sandbox configuration
type Config struct {
	MaxCallStackSize int           // Maximum JS call depth
	Timeout          time.Duration // Execution timeout
	EnableConsole    bool          // Allow console.log/warn/error
}

// Result holds execution result
type Result struct {
	Value    interface{}   // Return value
	Console  []LogEntry    // Console output
	Duration time.Duration // Execution time
}

// LogEntry represents console output
type LogEntry struct {
	Level   string    // log, warn, error
	Message string    // Log message
	Time    time.Time // Timestamp
}

// Element is the read-only view of a node exposed to scripts
type Element struct {
	TagName     string
	ID          string
	ClassName   string
	TextContent string
	Attributes  map[string]string
	Bounds      types.Bounds
}

// Document answers selector queries for scripts
type Document interface {
	QuerySelectorAll(selector string) []Element
}

// DefaultConfig returns the configuration used for page scripts
func DefaultConfig() Config {
	return Config{
		MaxCallStackSize: 1024,
		Timeout:          5 * time.Second,
		EnableConsole:    true,
	}
}
