package sim

import (
	"flag"
	"time"
)

// Config defines configuration items for the simulated bench.
type Config struct {
	// Address is the modem address of the node, 0 to 255.
	Address int
	// Battery is the voltage the modem reports.
	Battery float64
	// PropagationDelay is the one-way acoustic travel time.
	PropagationDelay time.Duration
	// FrameTrail is the gap between a frame's synch edge and its
	// payload reaching the serial port.
	FrameTrail time.Duration
	// FlagDir holds boot flags across reboots. Empty means a temporary
	// directory.
	FlagDir string
	// JournalFile, when set, appends the node journal there as JSONL.
	JournalFile string
}

// DefaultConfig returns bench defaults.
func DefaultConfig() Config {
	return Config{
		Address:          1,
		Battery:          6.4,
		PropagationDelay: 20 * time.Millisecond,
		FrameTrail:       20 * time.Millisecond,
	}
}

// SetupFlags registers command line flags for config items.
func (c *Config) SetupFlags() {
	flag.IntVar(&c.Address, "address", c.Address, "modem address of the node")
	flag.Float64Var(&c.Battery, "battery-volts", c.Battery, "battery voltage the modem reports")
	flag.DurationVar(&c.PropagationDelay, "propagation-delay", c.PropagationDelay, "one-way acoustic travel time")
	flag.DurationVar(&c.FrameTrail, "frame-trail", c.FrameTrail, "gap between synch edge and payload")
	flag.StringVar(&c.FlagDir, "flag-dir", c.FlagDir, "directory holding boot flags")
	flag.StringVar(&c.JournalFile, "journal-file", c.JournalFile, "JSONL journal file path")
}
