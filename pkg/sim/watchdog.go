package sim

import (
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Watchdog simulates the hardware watchdog: once started it must be fed
// within its timeout or it fires, exactly once per arming.
type Watchdog struct {
	mu      sync.Mutex
	armed   bool
	expired bool
	timeout time.Duration
	lastFed time.Time
	stop    chan struct{}

	onExpire func()
}

// NewWatchdog returns an unarmed watchdog. onExpire runs once when the
// node starves it; the bench wires it to a watchdog reset.
func NewWatchdog(onExpire func()) *Watchdog {
	return &Watchdog{onExpire: onExpire}
}

func (w *Watchdog) Start(timeout time.Duration) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.armed {
		return errors.New("sim: watchdog already armed")
	}
	if timeout <= 0 {
		return errors.New("sim: watchdog timeout must be positive")
	}
	w.armed = true
	w.expired = false
	w.timeout = timeout
	w.lastFed = time.Now()
	w.stop = make(chan struct{})
	go w.watch(w.stop, timeout)
	return nil
}

func (w *Watchdog) Feed() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastFed = time.Now()
}

func (w *Watchdog) watch(stop chan struct{}, timeout time.Duration) {
	interval := timeout / 8
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			starved := w.armed && !w.expired && time.Since(w.lastFed) > timeout
			if starved {
				w.expired = true
			}
			w.mu.Unlock()
			if starved {
				glog.V(1).Info("watchdog starved")
				if w.onExpire != nil {
					w.onExpire()
				}
				return
			}
		}
	}
}

// Expired reports whether the current arming starved.
func (w *Watchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired
}

// disarm models the MCU reset clearing the watchdog so the next boot
// can arm it again.
func (w *Watchdog) disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.armed {
		return
	}
	w.armed = false
	close(w.stop)
}
