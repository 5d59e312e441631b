package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/uasnet/uanode.go/pkg/uac"
)

// opLog records the order of hardware operations across the fakes.
type opLog struct {
	mu  sync.Mutex
	ops []string
}

func (l *opLog) add(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, op)
}

func (l *opLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.ops...)
}

func (l *opLog) indexOf(op string) int {
	for i, o := range l.snapshot() {
		if o == op {
			return i
		}
	}
	return -1
}

func (l *opLog) count(op string) int {
	n := 0
	for _, o := range l.snapshot() {
		if o == op {
			n++
		}
	}
	return n
}

// manualClock advances only when Sleep is called or a test moves it.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
	log *opLog
}

func newManualClock(start int64, log *opLog) *manualClock {
	return &manualClock{now: time.Unix(start, 0), log: log}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	if c.log != nil {
		c.log.add("sleep:" + d.String())
	}
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakePins struct {
	log  *opLog
	fail map[string]error
}

func (p *fakePins) do(op string) error {
	p.log.add(op)
	if p.fail != nil {
		return p.fail[op]
	}
	return nil
}

func (p *fakePins) EnableModem() error  { return p.do("modem-supply:on") }
func (p *fakePins) DisableModem() error { return p.do("modem-supply:off") }

func (p *fakePins) SetRail(on bool) error       { return p.do(onOff("rail", on)) }
func (p *fakePins) SetLineDriver(on bool) error { return p.do(onOff("txdrv", on)) }
func (p *fakePins) SetPullups(on bool) error    { return p.do(onOff("pullups", on)) }
func (p *fakePins) SetLED(on bool) error        { return p.do(onOff("led", on)) }

func onOff(name string, on bool) string {
	if on {
		return name + ":on"
	}
	return name + ":off"
}

type fakeWatchdog struct {
	log      *opLog
	timeout  time.Duration
	startErr error
}

func (w *fakeWatchdog) Start(timeout time.Duration) error {
	w.log.add("wdt:start")
	w.timeout = timeout
	return w.startErr
}

func (w *fakeWatchdog) Feed() {
	w.log.add("wdt:feed")
}

type fakeBoard struct {
	log          *opLog
	cause        ResetCause
	handler      func(Timestamp)
	onLightSleep func(ctx context.Context) error
	resets       int
	millis       uint32
	micros       uint32
}

func (b *fakeBoard) SetWakeHandler(fn func(Timestamp)) {
	b.log.add("wake-handler:set")
	b.handler = fn
}

func (b *fakeBoard) Millis() uint32 { return b.millis }
func (b *fakeBoard) Micros() uint32 { return b.micros }

func (b *fakeBoard) LightSleep(ctx context.Context) error {
	b.log.add("lightsleep")
	if b.onLightSleep != nil {
		return b.onLightSleep(ctx)
	}
	return nil
}

func (b *fakeBoard) Reset() {
	b.log.add("board:reset")
	b.resets++
}

func (b *fakeBoard) ResetCause() ResetCause { return b.cause }

// edge fires the installed wake handler the way the interrupt would.
func (b *fakeBoard) edge(ts Timestamp) {
	if b.handler != nil {
		b.handler(ts)
	}
}

type fakeModem struct {
	log        *opLog
	addr       int
	addrErr    error
	volts      float64
	voltsErr   error
	queue      []*uac.Message
	sent       []string
	pollErr    error
	processErr error
	openErr    error
}

func (m *fakeModem) Open() error {
	m.log.add("modem:open")
	return m.openErr
}

func (m *fakeModem) Address() (int, error) {
	m.log.add("modem:address")
	return m.addr, m.addrErr
}

func (m *fakeModem) BatteryVoltage() (float64, error) {
	m.log.add("modem:voltage")
	return m.volts, m.voltsErr
}

func (m *fakeModem) SendBroadcast(payload []byte) error {
	m.log.add("modem:broadcast")
	m.sent = append(m.sent, string(payload))
	return nil
}

func (m *fakeModem) PollReceiver() error {
	m.log.add("modem:poll")
	return m.pollErr
}

func (m *fakeModem) ProcessIncoming() error {
	m.log.add("modem:process")
	return m.processErr
}

func (m *fakeModem) HasReceivedMessage() bool {
	return len(m.queue) > 0
}

func (m *fakeModem) ReceivedMessage() (*uac.Message, bool) {
	if len(m.queue) == 0 {
		return nil, false
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, true
}

func (m *fakeModem) push(payload string) {
	m.queue = append(m.queue, &uac.Message{Payload: []byte(payload)})
}

type fakeNetwork struct {
	initModem   uac.Modem
	initFeeder  Feeder
	handled     []*uac.Message
	initErr     error
	handleErr   error
	handlePanic func()
}

func (n *fakeNetwork) Init(modem uac.Modem, feeder Feeder) error {
	n.initModem = modem
	n.initFeeder = feeder
	return n.initErr
}

func (n *fakeNetwork) HandlePacket(msg *uac.Message) error {
	if n.handlePanic != nil {
		n.handlePanic()
	}
	n.handled = append(n.handled, msg)
	return n.handleErr
}

type fakeFlags struct {
	log *opLog
	err error
}

func (f *fakeFlags) SetUpdateFlag() error {
	f.log.add("flag:update")
	return f.err
}

type captureJournal struct {
	mu      sync.Mutex
	log     *opLog
	entries []string
	faults  []string
}

func (j *captureJournal) Record(text, source string) {
	if j.log != nil {
		j.log.add("journal:" + text)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, text)
}

func (j *captureJournal) RecordFault(err error, source string) {
	if j.log != nil {
		j.log.add("fault:" + fmt.Sprintf("%v", err))
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.faults = append(j.faults, fmt.Sprintf("%v", err))
}

func (j *captureJournal) has(text string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.entries {
		if e == text {
			return true
		}
	}
	return false
}

// rig bundles a supervisor with all of its fakes, using timings short
// enough for tests.
type rig struct {
	log     *opLog
	clock   *manualClock
	pins    *fakePins
	wdt     *fakeWatchdog
	board   *fakeBoard
	modem   *fakeModem
	network *fakeNetwork
	flags   *fakeFlags
	journal *captureJournal
	cfg     Config
	sup     *Supervisor
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WatchdogTimeout = 300 * time.Millisecond
	cfg.ActivityWindow = 30 * time.Second
	cfg.ModemSettle = 10 * time.Millisecond
	cfg.BootSettle = 10 * time.Millisecond
	cfg.QueryGap = time.Millisecond
	cfg.BroadcastSettle = 2 * time.Millisecond
	cfg.NetworkSettle = time.Millisecond
	cfg.ModuleSendGap = 5 * time.Millisecond
	cfg.SleepSettle = time.Millisecond
	cfg.FirmwareRev = "REV:test"
	return cfg
}

func newRig(cfg Config) *rig {
	log := &opLog{}
	r := &rig{
		log:     log,
		clock:   newManualClock(100000, log),
		pins:    &fakePins{log: log},
		wdt:     &fakeWatchdog{log: log},
		board:   &fakeBoard{log: log},
		modem:   &fakeModem{log: log, addr: 7, volts: 6.4},
		network: &fakeNetwork{},
		flags:   &fakeFlags{log: log},
		journal: &captureJournal{log: log},
		cfg:     cfg,
	}
	sup, err := NewSupervisor(cfg, Deps{
		Board:    r.board,
		Watchdog: r.wdt,
		Power:    r.pins,
		Modem:    r.modem,
		Network:  r.network,
		Flags:    r.flags,
		Journal:  r.journal,
		Clock:    r.clock,
	})
	if err != nil {
		panic(err)
	}
	r.sup = sup
	return r
}
