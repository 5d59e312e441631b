package sim

import (
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/uasnet/uanode.go/pkg/uac"
)

// Modem simulates the acoustic modem wired to a Board. Receiving a
// frame pulses the board's wake line on synchronisation, then the
// payload trails onto the serial buffer a little later, the way the
// real frame follows its synch burst.
//
// All queries fail while the modem supply is down; frames arriving at
// an unpowered modem are lost.
// defaultPollWait mirrors the blocking read timeout of the serial port:
// polling an idle receiver takes a moment instead of returning hot.
const defaultPollWait = 5 * time.Millisecond

type Modem struct {
	addr     int
	board    *Board
	sea      *Sea
	trail    time.Duration
	pollWait time.Duration

	mu       sync.Mutex
	opened   bool
	battery  float64
	uartBuf  [][]byte
	staging  [][]byte
	incoming []*uac.Message
}

// NewModem attaches a modem with the given address to board and sea.
// trail is the gap between the synch edge and the payload reaching the
// serial port.
func NewModem(addr int, battery float64, board *Board, sea *Sea, trail time.Duration) *Modem {
	m := &Modem{
		addr:     addr,
		board:    board,
		sea:      sea,
		trail:    trail,
		pollWait: defaultPollWait,
		battery:  battery,
	}
	sea.attach(m)
	return m
}

// Open readies the serial side. Open is idempotent: the node software
// reopens the port on every boot while the modem keeps running.
func (m *Modem) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return nil
}

func (m *Modem) Address() (int, error) {
	if err := m.reachable(); err != nil {
		return 0, err
	}
	return m.addr, nil
}

func (m *Modem) BatteryVoltage() (float64, error) {
	if err := m.reachable(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.battery, nil
}

// SetBatteryVoltage adjusts the reported supply voltage.
func (m *Modem) SetBatteryVoltage(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battery = v
}

func (m *Modem) SendBroadcast(payload []byte) error {
	if err := m.reachable(); err != nil {
		return err
	}
	m.sea.broadcast(m, m.addr, payload)
	return nil
}

func (m *Modem) PollReceiver() error {
	m.mu.Lock()
	if !m.opened {
		m.mu.Unlock()
		return errors.New("sim: modem serial port not open")
	}
	idle := len(m.uartBuf) == 0
	m.mu.Unlock()

	if idle && m.pollWait > 0 {
		time.Sleep(m.pollWait)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.staging = append(m.staging, m.uartBuf...)
	m.uartBuf = nil
	return nil
}

func (m *Modem) ProcessIncoming() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.staging {
		m.incoming = append(m.incoming, &uac.Message{Payload: p})
	}
	m.staging = nil
	return nil
}

func (m *Modem) HasReceivedMessage() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.incoming) > 0
}

func (m *Modem) ReceivedMessage() (*uac.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.incoming) == 0 {
		return nil, false
	}
	msg := m.incoming[0]
	m.incoming = m.incoming[1:]
	return msg, true
}

// deliver is called by the sea when a frame reaches this modem.
func (m *Modem) deliver(payload []byte) {
	if !m.board.ModemPowered() {
		glog.V(2).Infof("modem %03d unpowered, frame %q lost", m.addr, payload)
		return
	}
	m.board.PulseWake()
	if m.trail <= 0 {
		m.queue(payload)
		return
	}
	time.AfterFunc(m.trail, func() {
		m.queue(payload)
	})
}

func (m *Modem) queue(payload []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uartBuf = append(m.uartBuf, payload)
}

func (m *Modem) reachable() error {
	m.mu.Lock()
	opened := m.opened
	m.mu.Unlock()
	if !opened {
		return errors.New("sim: modem serial port not open")
	}
	if !m.board.ModemPowered() {
		return errors.New("sim: modem is not powered")
	}
	return nil
}
