package sim

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/uasnet/uanode.go/pkg/node"
)

// counterMask wraps the board counters at 2^30, like the hardware ones.
const counterMask = 1<<30 - 1

// defaultSleepTick spaces the spurious wake-ups of LightSleep. Hardware
// light sleep ends on any interrupt, system tick included, which is
// what lets the sleep loop keep feeding the watchdog.
const defaultSleepTick = 50 * time.Millisecond

// Board simulates the microcontroller: switchable pins, free-running
// counters, a wake line and reset plumbing. It implements both
// node.Board and node.PowerControl, because on the real thing they are
// the same silicon.
//
// A Board survives reboots of the node software; only pin state and the
// latched reset cause change.
type Board struct {
	mu      sync.Mutex
	started time.Time

	handler   func(node.Timestamp)
	wake      chan struct{}
	sleepTick time.Duration

	modemSupply bool
	rail        bool
	lineDriver  bool
	pullups     bool
	led         bool

	cause        node.ResetCause
	pendingCause node.ResetCause
	hasPending   bool
	interrupt    context.CancelFunc
}

// NewBoard returns a board fresh from the factory: everything off and
// the reset cause reading power-on.
func NewBoard() *Board {
	return &Board{
		started:   time.Now(),
		wake:      make(chan struct{}, 1),
		sleepTick: defaultSleepTick,
		cause:     node.ResetPowerOn,
		pullups:   true,
	}
}

func (b *Board) SetWakeHandler(fn func(node.Timestamp)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = fn
}

func (b *Board) Millis() uint32 {
	return uint32(time.Since(b.started).Milliseconds()) & counterMask
}

func (b *Board) Micros() uint32 {
	return uint32(time.Since(b.started).Microseconds()) & counterMask
}

// PulseWake behaves like a rising edge on the synch line: the handler
// runs immediately, then any parked LightSleep is released. A pulse
// with nobody sleeping stays latched for the next LightSleep.
func (b *Board) PulseWake() {
	ts := node.Timestamp{
		Unix:   time.Now().Unix(),
		Millis: b.Millis(),
		Micros: b.Micros(),
	}
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler != nil {
		handler(ts)
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Board) LightSleep(ctx context.Context) error {
	timer := time.NewTimer(b.sleepTick)
	defer timer.Stop()
	select {
	case <-b.wake:
		return nil
	case <-timer.C:
		// Spurious wake, as any interrupt would cause. The caller
		// re-checks its wake condition and feeds the watchdog.
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset latches a commanded reboot, like machine.reset from software.
func (b *Board) Reset() {
	b.requestReset(node.ResetHard)
}

// watchdogReset latches a starvation reboot.
func (b *Board) watchdogReset() {
	b.requestReset(node.ResetWatchdog)
}

func (b *Board) requestReset(cause node.ResetCause) {
	b.mu.Lock()
	if !b.hasPending {
		b.pendingCause = cause
		b.hasPending = true
	}
	interrupt := b.interrupt
	b.mu.Unlock()
	glog.V(1).Infof("board reset requested: %v", cause)
	if interrupt != nil {
		interrupt()
	}
}

// arm installs the cancel function that tears down the current run of
// the node software when a reset is requested.
func (b *Board) arm(interrupt context.CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.interrupt = interrupt
}

// completeReboot applies what an MCU reset does: pins revert to their
// defaults, the wake handler is gone, and the latched cause becomes the
// one the next boot will read. The modem supply is behind an external
// latch and keeps its state.
func (b *Board) completeReboot() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hasPending {
		b.cause = b.pendingCause
		b.hasPending = false
	}
	b.handler = nil
	b.interrupt = nil
	b.rail = false
	b.lineDriver = false
	b.pullups = true
	b.led = false
	select {
	case <-b.wake:
	default:
	}
}

func (b *Board) ResetCause() node.ResetCause {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cause
}

// resetPending reports whether a reboot was requested and not yet
// completed.
func (b *Board) resetPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hasPending
}

func (b *Board) EnableModem() error {
	b.setPin(&b.modemSupply, true)
	return nil
}

func (b *Board) DisableModem() error {
	b.setPin(&b.modemSupply, false)
	return nil
}

func (b *Board) SetRail(on bool) error {
	b.setPin(&b.rail, on)
	return nil
}

func (b *Board) SetLineDriver(on bool) error {
	b.setPin(&b.lineDriver, on)
	return nil
}

func (b *Board) SetPullups(on bool) error {
	b.setPin(&b.pullups, on)
	return nil
}

func (b *Board) SetLED(on bool) error {
	b.setPin(&b.led, on)
	return nil
}

func (b *Board) setPin(pin *bool, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	*pin = on
}

// Pin state accessors for tests and monitors.

func (b *Board) ModemPowered() bool { return b.pin(&b.modemSupply) }
func (b *Board) RailOn() bool       { return b.pin(&b.rail) }
func (b *Board) LineDriverOn() bool { return b.pin(&b.lineDriver) }
func (b *Board) PullupsOn() bool    { return b.pin(&b.pullups) }
func (b *Board) LEDOn() bool        { return b.pin(&b.led) }

func (b *Board) pin(pin *bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *pin
}
