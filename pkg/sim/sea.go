package sim

import (
	"sync"
	"time"

	"github.com/golang/glog"
)

// Transmission is one acoustic broadcast crossing the sea.
type Transmission struct {
	From    int
	Payload []byte
	At      time.Time
}

// Sea carries broadcasts between attached modems with a propagation
// delay. Taps observe every transmission, including ones no modem was
// powered up to hear.
type Sea struct {
	mu     sync.Mutex
	delay  time.Duration
	modems []*Modem
	taps   []func(Transmission)
}

// NewSea returns a sea with the given one-way propagation delay.
func NewSea(delay time.Duration) *Sea {
	return &Sea{delay: delay}
}

// Tap registers fn for every transmission. fn must not block; it runs
// on the sender's goroutine.
func (s *Sea) Tap(fn func(Transmission)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taps = append(s.taps, fn)
}

func (s *Sea) attach(m *Modem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modems = append(s.modems, m)
}

// Addresses lists the addresses of the modems attached to this sea.
func (s *Sea) Addresses() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]int, len(s.modems))
	for i, m := range s.modems {
		addrs[i] = m.addr
	}
	return addrs
}

// Inject transmits a payload from outside the bench, as a surface
// gateway would.
func (s *Sea) Inject(from int, payload []byte) {
	s.broadcast(nil, from, payload)
}

func (s *Sea) broadcast(src *Modem, from int, payload []byte) {
	tx := Transmission{
		From:    from,
		Payload: append([]byte(nil), payload...),
		At:      time.Now(),
	}
	s.mu.Lock()
	modems := append([]*Modem(nil), s.modems...)
	taps := append([]func(Transmission)(nil), s.taps...)
	delay := s.delay
	s.mu.Unlock()

	glog.V(2).Infof("sea: %03d broadcasts %q", from, payload)
	for _, tap := range taps {
		tap(tx)
	}
	for _, m := range modems {
		if m == src {
			continue
		}
		rx := m
		if delay <= 0 {
			rx.deliver(tx.Payload)
			continue
		}
		time.AfterFunc(delay, func() {
			rx.deliver(tx.Payload)
		})
	}
}
