package node

import "sync/atomic"

// WakeLatch is the single-slot handoff between the wake interrupt and
// the main loop. The writer never blocks and never allocates; a racing
// reader always gets a coherent timestamp, though the newest edge wins
// over older ones.
//
// The sequence counter is odd while a write is in flight, in the style
// of a seqlock. The pending flag is raised only after the timestamp
// fields are stable, matching the order an interrupt handler must use.
type WakeLatch struct {
	seq     atomic.Uint32
	pending atomic.Bool
	unix    atomic.Int64
	millis  atomic.Uint32
	micros  atomic.Uint32
}

// Edge records one rising edge of the modem synch line. Safe to call
// from interrupt context.
func (l *WakeLatch) Edge(ts Timestamp) {
	l.seq.Add(1)
	l.unix.Store(ts.Unix)
	l.millis.Store(ts.Millis)
	l.micros.Store(ts.Micros)
	l.seq.Add(1)
	l.pending.Store(true)
}

// Take clears the pending flag, reporting whether an edge arrived since
// the previous Take.
func (l *WakeLatch) Take() bool {
	return l.pending.Swap(false)
}

// Pending reports whether an edge arrived since the last Take, without
// clearing it.
func (l *WakeLatch) Pending() bool {
	return l.pending.Load()
}

// Last returns the timestamp of the most recent edge, or the zero
// Timestamp if none arrived yet.
func (l *WakeLatch) Last() Timestamp {
	for {
		s := l.seq.Load()
		if s&1 != 0 {
			continue
		}
		ts := Timestamp{
			Unix:   l.unix.Load(),
			Millis: l.millis.Load(),
			Micros: l.micros.Load(),
		}
		if l.seq.Load() == s {
			return ts
		}
	}
}
