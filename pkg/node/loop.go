package node

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/uasnet/uanode.go/pkg/journal"
	"github.com/uasnet/uanode.go/pkg/uac"
)

// logSource tags journal entries written by the supervisor.
const logSource = "mainloop"

// Deps collects the supervisor's collaborators. Board, Watchdog, Power
// and Modem are required; Network, Flags, Journal and Clock receive
// inert defaults when nil.
type Deps struct {
	Board    Board
	Watchdog Watchdog
	Power    PowerControl
	Modem    uac.Modem
	Network  Network
	Flags    FlagStore
	Journal  journal.Recorder
	Clock    Clock
}

// Supervisor owns a node from power-up: it arms the watchdog, brings
// the rails and the modem up in order, then services the duty loop
// until the context ends or a reset is commanded.
type Supervisor struct {
	cfg    Config
	deps   Deps
	latch  *WakeLatch
	wdt    *WatchdogSupervisor
	power  *PowerSequencer
	policy ActivityPolicy
	disp   *Dispatcher

	startedAt atomic.Int64
}

// NewSupervisor validates cfg and deps and builds a supervisor.
func NewSupervisor(cfg Config, deps Deps) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Board == nil || deps.Watchdog == nil || deps.Power == nil || deps.Modem == nil {
		return nil, errors.New("node: board, watchdog, power and modem are required")
	}
	if deps.Network == nil {
		deps.Network = NopNetwork()
	}
	if deps.Flags == nil {
		deps.Flags = NopFlagStore()
	}
	if deps.Journal == nil {
		deps.Journal = journal.Glog()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	s := &Supervisor{
		cfg:    cfg,
		deps:   deps,
		latch:  &WakeLatch{},
		policy: NewActivityPolicy(cfg.ActivityWindow),
	}
	s.wdt = NewWatchdogSupervisor(deps.Watchdog)
	s.power = NewPowerSequencer(deps.Power, deps.Clock, cfg)
	s.disp = &Dispatcher{
		Config:  cfg,
		Modem:   deps.Modem,
		Network: deps.Network,
		Flags:   deps.Flags,
		Board:   deps.Board,
		Feeder:  s.wdt,
		Clock:   deps.Clock,
		Journal: deps.Journal,
	}
	return s, nil
}

// Name implements framework.Named.
func (s *Supervisor) Name() string {
	return "node-supervisor"
}

// Uptime reports how long ago boot completed, or zero if it has not.
func (s *Supervisor) Uptime() time.Duration {
	ns := s.startedAt.Load()
	if ns == 0 {
		return 0
	}
	return s.deps.Clock.Now().Sub(time.Unix(0, ns))
}

// Watchdog exposes feed accounting for monitoring.
func (s *Supervisor) Watchdog() *WatchdogSupervisor {
	return s.wdt
}

// Run boots the node and services the loop. It returns ctx.Err after
// cancellation, ErrResetRequested after a commanded reboot, or the
// boot failure. Faults inside a loop pass are journaled and the loop
// carries on; on hardware the watchdog catches a pass that wedges.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.boot(ctx); err != nil {
		return err
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.iterate(ctx); err != nil {
			if errors.Is(err, ErrResetRequested) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.deps.Journal.RecordFault(err, logSource)
		}
	}
}

// boot runs the power-up sequence. The order is deliberate: the
// watchdog is armed before anything that can hang, the reset cause is
// journaled before the rails move, and the serial side of the modem is
// opened before its supply comes up so the TX line is in a legal state.
func (s *Supervisor) boot(ctx context.Context) error {
	if err := s.wdt.Start(s.cfg.WatchdogTimeout); err != nil {
		return err
	}

	cause := s.deps.Board.ResetCause()
	s.deps.Journal.Record("Reset cause: "+cause.String(), logSource)
	glog.Infof("last reset cause %v", cause)

	s.wdt.Feed()
	if err := s.deps.Power.SetLED(true); err != nil {
		return err
	}

	s.deps.Journal.Record("Powering off modem", logSource)
	if err := s.power.PowerOffModem(); err != nil {
		return err
	}
	if err := s.power.EnableRails(); err != nil {
		return err
	}

	s.deps.Board.SetWakeHandler(s.latch.Edge)

	if err := s.deps.Modem.Open(); err != nil {
		return err
	}
	s.deps.Clock.Sleep(s.cfg.QueryGap)

	s.wdt.Feed()
	s.deps.Journal.Record("Powering on modem", logSource)
	if err := s.power.PowerOnModem(); err != nil {
		return err
	}
	s.wdt.Feed()
	s.deps.Journal.Record("Modem running", logSource)

	addr, err := s.deps.Modem.Address()
	if err != nil {
		return fmt.Errorf("node: modem address query: %w", err)
	}
	s.deps.Clock.Sleep(s.cfg.QueryGap)
	volts, err := s.deps.Modem.BatteryVoltage()
	if err != nil {
		return fmt.Errorf("node: modem voltage query: %w", err)
	}
	s.deps.Clock.Sleep(s.cfg.QueryGap)
	s.deps.Journal.Record(fmt.Sprintf("Modem address %s voltage %0.2fV.", uac.FormatAddress(addr), volts), logSource)

	if err := s.disp.SendAlive(); err != nil {
		return fmt.Errorf("node: alive beacon: %w", err)
	}
	s.wdt.Feed()
	s.deps.Clock.Sleep(s.cfg.BroadcastSettle)

	if err := s.deps.Network.Init(s.deps.Modem, s.wdt); err != nil {
		return fmt.Errorf("node: network init: %w", err)
	}
	s.deps.Clock.Sleep(s.cfg.NetworkSettle)
	s.wdt.Feed()

	s.startedAt.Store(s.deps.Clock.Now().UnixNano())
	return ctx.Err()
}

// iterate runs one pass of the duty loop. A panic inside the pass is
// converted to an error so the loop can journal it and continue.
func (s *Supervisor) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node: loop panic: %v", r)
		}
	}()

	s.wdt.Feed()
	if err := s.power.EnableRail(); err != nil {
		return err
	}

	now := s.deps.Clock.Now().Unix()
	edge := s.latch.Last().Unix
	if s.policy.ShouldPoll(s.latch.Pending(), now, edge) {
		if err := s.poll(); err != nil {
			return err
		}
	}

	// Re-read the latch: an edge may have landed while draining.
	now = s.deps.Clock.Now().Unix()
	edge = s.latch.Last().Unix
	if s.policy.ShouldSleep(s.latch.Pending(), now, edge) {
		return s.sleep(ctx)
	}
	return nil
}

// poll drains the modem receive path and dispatches every message.
func (s *Supervisor) poll() error {
	if s.latch.Take() {
		glog.V(2).Info("wake edge latched")
	}

	// A frame can take up to half a second to trail its synch edge.
	if err := s.deps.Modem.PollReceiver(); err != nil {
		return err
	}
	if err := s.deps.Modem.ProcessIncoming(); err != nil {
		return err
	}
	for s.deps.Modem.HasReceivedMessage() {
		msg, ok := s.deps.Modem.ReceivedMessage()
		if !ok {
			break
		}
		s.deps.Journal.Record("Received acoustic message.", logSource)

		stamp := s.latch.Last()
		msg.Timestamp = time.Unix(stamp.Unix, 0)
		msg.TimestampMillis = stamp.Millis
		msg.TimestampMicros = stamp.Micros

		if err := s.disp.Dispatch(msg); err != nil {
			return err
		}
	}
	return nil
}

// sleep powers down the rails and parks the CPU until the next wake
// edge. The pending flag is checked once more before anything switches
// off; if an edge sneaked in, the power-down is skipped and the wake
// path re-asserts rails that never dropped.
func (s *Supervisor) sleep(ctx context.Context) error {
	if !s.latch.Pending() {
		s.deps.Journal.Record("Going to sleep.", logSource)
		if err := s.power.EnterSleep(); err != nil {
			return err
		}
	}
	for !s.latch.Pending() {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.wdt.Feed()
		if err := s.deps.Board.LightSleep(ctx); err != nil {
			return err
		}
	}
	// Awake again. The lamp stays dark until the next boot.
	s.wdt.Feed()
	return s.power.LeaveSleep()
}

// NopNetwork returns a Network that accepts frames and drops them.
func NopNetwork() Network {
	return nopNetwork{}
}

type nopNetwork struct{}

func (nopNetwork) Init(uac.Modem, Feeder) error    { return nil }
func (nopNetwork) HandlePacket(*uac.Message) error { return nil }

// NopFlagStore returns a FlagStore that forgets everything.
func NopFlagStore() FlagStore {
	return nopFlags{}
}

type nopFlags struct{}

func (nopFlags) SetUpdateFlag() error { return nil }
