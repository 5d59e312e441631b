package node

import (
	"context"
	"errors"
	"time"

	"github.com/uasnet/uanode.go/pkg/uac"
)

// ErrResetRequested reports that an acoustic command asked the node to
// reboot. The supervisor stops iterating once it surfaces; on real
// hardware Board.Reset never returns at all.
var ErrResetRequested = errors.New("node: reset requested")

// ResetCause reports what ended the previous run of the node.
type ResetCause int

const (
	ResetPowerOn ResetCause = iota
	ResetHard
	ResetWatchdog
	ResetDeepSleep
	ResetSoft
	ResetUndefined
)

func (c ResetCause) String() string {
	switch c {
	case ResetPowerOn:
		return "PWRON_RESET"
	case ResetHard:
		return "HARD_RESET"
	case ResetWatchdog:
		return "WDT_RESET"
	case ResetDeepSleep:
		return "DEEPSLEEP_RESET"
	case ResetSoft:
		return "SOFT_RESET"
	}
	return "UNDEFINED_RESET"
}

// Timestamp carries the arrival time of a wake edge as latched by the
// interrupt handler. Millis and Micros are free-running counters that
// wrap at 2^30 and pause during sleep modes.
type Timestamp struct {
	Unix   int64
	Millis uint32
	Micros uint32
}

// Board abstracts the microcontroller surface the supervisor drives.
type Board interface {
	// SetWakeHandler installs fn on the rising edge of the modem synch
	// line, replacing any previous handler. fn runs in interrupt
	// context and must not allocate.
	SetWakeHandler(fn func(Timestamp))
	// Millis and Micros sample the counters wake handlers latch from.
	// Both wrap at 2^30.
	Millis() uint32
	Micros() uint32
	// LightSleep parks the CPU until the next interrupt or until ctx is
	// done. Spurious returns are allowed; callers re-check their wake
	// condition.
	LightSleep(ctx context.Context) error
	// Reset reboots the node. On hardware it does not return.
	Reset()
	// ResetCause reports what ended the previous run.
	ResetCause() ResetCause
}

// Watchdog is the hardware watchdog. Once started it cannot be stopped
// and must be fed within its timeout.
type Watchdog interface {
	Start(timeout time.Duration) error
	Feed()
}

// Feeder keeps the watchdog fed during long operations owned by other
// layers.
type Feeder interface {
	Feed()
}

// PowerControl drives the switchable supplies and the status lamp.
type PowerControl interface {
	EnableModem() error
	DisableModem() error
	// SetRail switches the 3V3 supply feeding the line driver, sensors
	// and storage.
	SetRail(on bool) error
	// SetLineDriver forces the serial transceiver on or off.
	SetLineDriver(on bool) error
	// SetPullups switches the I2C bus pull-up resistors.
	SetPullups(on bool) error
	SetLED(on bool) error
}

// Network is the protocol stack that consumes routed frames.
type Network interface {
	// Init hands the network its modem and a watchdog feeder before any
	// frame is delivered.
	Init(modem uac.Modem, feeder Feeder) error
	// HandlePacket processes one routed frame.
	HandlePacket(msg *uac.Message) error
}

// FlagStore persists boot flags that survive a reset.
type FlagStore interface {
	// SetUpdateFlag leaves the marker the boot loader checks to run an
	// over-the-air update on the next start.
	SetUpdateFlag() error
}

// Clock supplies time to the supervisor so tests can compress it.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock returns a Clock backed by the runtime.
func SystemClock() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
