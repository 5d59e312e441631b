package node

import (
	"flag"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

var defaultFirmwareRev = "REV:2026-06-30T09:15:00"

func init() {
	if rev := os.Getenv("UANODE_FIRMWARE_REV"); rev != "" {
		defaultFirmwareRev = rev
	}
}

// InstalledModule names one deployed software module and its version.
// An empty version is reported as "None" on the wire.
type InstalledModule struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Config defines timing and identity items for the supervisor.
type Config struct {
	// WatchdogTimeout arms the hardware watchdog. It must outlast the
	// modem power-on settles or the node reboots before finishing boot.
	WatchdogTimeout time.Duration
	// ActivityWindow is how long after a wake edge the loop keeps
	// polling the modem before going back to sleep.
	ActivityWindow time.Duration
	// ModemSettle is the hold-off before switching the modem supply on.
	ModemSettle time.Duration
	// BootSettle waits out the modem boot loader after power-on.
	BootSettle time.Duration
	// QueryGap spaces consecutive serial queries to the modem.
	QueryGap time.Duration
	// BroadcastSettle covers the acoustic transmission of a broadcast.
	BroadcastSettle time.Duration
	// NetworkSettle follows network stack initialisation.
	NetworkSettle time.Duration
	// ModuleSendGap spaces the per-module inventory broadcasts.
	ModuleSendGap time.Duration
	// SleepSettle lets the rails discharge before light sleep.
	SleepSettle time.Duration
	// FirmwareRev is appended to alive beacons so an update can be
	// verified from the surface.
	FirmwareRev string
	// Modules is the inventory reported on request, in order.
	Modules []InstalledModule
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		WatchdogTimeout: 30 * time.Second,
		ActivityWindow:  30 * time.Second,
		ModemSettle:     10 * time.Second,
		BootSettle:      10 * time.Second,
		QueryGap:        20 * time.Millisecond,
		BroadcastSettle: 500 * time.Millisecond,
		NetworkSettle:   100 * time.Millisecond,
		ModuleSendGap:   time.Second,
		SleepSettle:     10 * time.Millisecond,
		FirmwareRev:     defaultFirmwareRev,
	}
}

// SetupFlags registers command line flags for config items.
func (c *Config) SetupFlags() {
	flag.DurationVar(&c.WatchdogTimeout, "watchdog-timeout", c.WatchdogTimeout, "hardware watchdog timeout")
	flag.DurationVar(&c.ActivityWindow, "activity-window", c.ActivityWindow, "polling window after a wake edge")
	flag.DurationVar(&c.ModemSettle, "modem-settle", c.ModemSettle, "hold-off before modem power-on")
	flag.DurationVar(&c.BootSettle, "boot-settle", c.BootSettle, "wait for the modem boot loader")
	flag.DurationVar(&c.QueryGap, "query-gap", c.QueryGap, "gap between serial modem queries")
	flag.DurationVar(&c.BroadcastSettle, "broadcast-settle", c.BroadcastSettle, "wait after an acoustic broadcast")
	flag.DurationVar(&c.NetworkSettle, "network-settle", c.NetworkSettle, "wait after network init")
	flag.DurationVar(&c.ModuleSendGap, "module-send-gap", c.ModuleSendGap, "gap between module inventory broadcasts")
	flag.DurationVar(&c.SleepSettle, "sleep-settle", c.SleepSettle, "rail discharge time before light sleep")
	flag.StringVar(&c.FirmwareRev, "firmware-rev", c.FirmwareRev, "firmware revision tag in alive beacons")
}

// Validate reports configurations the node cannot survive.
func (c *Config) Validate() error {
	if c.WatchdogTimeout <= 0 {
		return fmt.Errorf("node: watchdog timeout %v must be positive", c.WatchdogTimeout)
	}
	if c.ActivityWindow <= 0 {
		return fmt.Errorf("node: activity window %v must be positive", c.ActivityWindow)
	}
	if c.ModemSettle+c.BootSettle >= c.WatchdogTimeout {
		return fmt.Errorf("node: modem settles %v starve the %v watchdog",
			c.ModemSettle+c.BootSettle, c.WatchdogTimeout)
	}
	if c.ModuleSendGap >= c.WatchdogTimeout {
		return fmt.Errorf("node: module send gap %v starves the %v watchdog",
			c.ModuleSendGap, c.WatchdogTimeout)
	}
	return nil
}

// LoadFile overlays values from a YAML file onto c. Only keys present
// in the file are touched.
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("node: parse config %s: %w", path, err)
	}
	return nil
}

// UnmarshalYAML accepts durations in the "30s"/"500ms" forms.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		WatchdogTimeout string            `yaml:"watchdog-timeout"`
		ActivityWindow  string            `yaml:"activity-window"`
		ModemSettle     string            `yaml:"modem-settle"`
		BootSettle      string            `yaml:"boot-settle"`
		QueryGap        string            `yaml:"query-gap"`
		BroadcastSettle string            `yaml:"broadcast-settle"`
		NetworkSettle   string            `yaml:"network-settle"`
		ModuleSendGap   string            `yaml:"module-send-gap"`
		SleepSettle     string            `yaml:"sleep-settle"`
		FirmwareRev     string            `yaml:"firmware-rev"`
		Modules         []InstalledModule `yaml:"modules"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	for _, f := range []struct {
		dst *time.Duration
		src string
	}{
		{&c.WatchdogTimeout, raw.WatchdogTimeout},
		{&c.ActivityWindow, raw.ActivityWindow},
		{&c.ModemSettle, raw.ModemSettle},
		{&c.BootSettle, raw.BootSettle},
		{&c.QueryGap, raw.QueryGap},
		{&c.BroadcastSettle, raw.BroadcastSettle},
		{&c.NetworkSettle, raw.NetworkSettle},
		{&c.ModuleSendGap, raw.ModuleSendGap},
		{&c.SleepSettle, raw.SleepSettle},
	} {
		if f.src == "" {
			continue
		}
		d, err := time.ParseDuration(f.src)
		if err != nil {
			return err
		}
		*f.dst = d
	}
	if raw.FirmwareRev != "" {
		c.FirmwareRev = raw.FirmwareRev
	}
	if raw.Modules != nil {
		c.Modules = raw.Modules
	}
	return nil
}
