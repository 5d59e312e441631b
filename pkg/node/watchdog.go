package node

import (
	"errors"
	"sync/atomic"
	"time"
)

// WatchdogSupervisor wraps the hardware watchdog with start-once
// discipline and feed accounting. It implements Feeder.
type WatchdogSupervisor struct {
	hw      Watchdog
	started atomic.Bool
	feeds   atomic.Uint64
	lastFed atomic.Int64
}

// NewWatchdogSupervisor returns a supervisor over hw. The watchdog is
// not armed until Start.
func NewWatchdogSupervisor(hw Watchdog) *WatchdogSupervisor {
	return &WatchdogSupervisor{hw: hw}
}

// Start arms the watchdog. It succeeds at most once; the hardware
// cannot be stopped afterwards.
func (w *WatchdogSupervisor) Start(timeout time.Duration) error {
	if w.started.Swap(true) {
		return errors.New("node: watchdog already started")
	}
	return w.hw.Start(timeout)
}

// Feed strokes the watchdog. Feeding before Start is a no-op.
func (w *WatchdogSupervisor) Feed() {
	if !w.started.Load() {
		return
	}
	w.hw.Feed()
	w.feeds.Add(1)
	w.lastFed.Store(time.Now().UnixNano())
}

// FeedCount returns the number of feeds since Start.
func (w *WatchdogSupervisor) FeedCount() uint64 {
	return w.feeds.Load()
}

// LastFed returns the wall time of the most recent feed, or the zero
// time if none happened yet.
func (w *WatchdogSupervisor) LastFed() time.Time {
	ns := w.lastFed.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
