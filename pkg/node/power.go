package node

import "time"

// PowerSequencer applies the board's power transitions in their
// required order.
type PowerSequencer struct {
	pins        PowerControl
	clock       Clock
	modemSettle time.Duration
	bootSettle  time.Duration
	sleepSettle time.Duration
}

// NewPowerSequencer returns a sequencer over pins using the settle
// times from cfg.
func NewPowerSequencer(pins PowerControl, clock Clock, cfg Config) *PowerSequencer {
	return &PowerSequencer{
		pins:        pins,
		clock:       clock,
		modemSettle: cfg.ModemSettle,
		bootSettle:  cfg.BootSettle,
		sleepSettle: cfg.SleepSettle,
	}
}

// PowerOffModem holds the modem supply off so boot starts from a known
// state.
func (s *PowerSequencer) PowerOffModem() error {
	return s.pins.DisableModem()
}

// EnableRails powers the rail and the serial line driver used to reach
// the modem.
func (s *PowerSequencer) EnableRails() error {
	if err := s.pins.SetRail(true); err != nil {
		return err
	}
	return s.pins.SetLineDriver(true)
}

// EnableRail re-asserts the rail alone. Called on every loop pass;
// harmless when already on.
func (s *PowerSequencer) EnableRail() error {
	return s.pins.SetRail(true)
}

// PowerOnModem switches the modem supply on and waits out its boot
// loader. The caller is expected to have fed the watchdog just before.
func (s *PowerSequencer) PowerOnModem() error {
	s.clock.Sleep(s.modemSettle)
	if err := s.pins.EnableModem(); err != nil {
		return err
	}
	s.clock.Sleep(s.bootSettle)
	return nil
}

// EnterSleep powers down everything the sleeping node does not need.
// Order matters: bus pullups, then the line driver, then the rail,
// then the lamp.
func (s *PowerSequencer) EnterSleep() error {
	if err := s.pins.SetPullups(false); err != nil {
		return err
	}
	if err := s.pins.SetLineDriver(false); err != nil {
		return err
	}
	if err := s.pins.SetRail(false); err != nil {
		return err
	}
	if err := s.pins.SetLED(false); err != nil {
		return err
	}
	s.clock.Sleep(s.sleepSettle)
	return nil
}

// LeaveSleep restores the supplies after a wake edge. The lamp stays
// dark until the next boot.
func (s *PowerSequencer) LeaveSleep() error {
	if err := s.pins.SetRail(true); err != nil {
		return err
	}
	if err := s.pins.SetLineDriver(true); err != nil {
		return err
	}
	return s.pins.SetPullups(true)
}
