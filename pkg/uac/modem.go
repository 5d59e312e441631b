package uac

import "time"

// Message is one fully received acoustic broadcast.
//
// The timestamp fields are stamped by the consumer from the wake event
// captured on the frame-synchronisation edge, not by the modem itself:
// Timestamp is wall-clock; Millis and Micros are the board's wrapping
// monotonic counters at the same edge and are best-effort relative values
// only.
type Message struct {
	Payload []byte

	Timestamp       time.Time
	TimestampMillis uint32
	TimestampMicros uint32
}

// Modem is the contract the supervisor requires from the acoustic modem
// channel. Implementations are owned by a single goroutine; no call may
// block longer than the channel's bounded read timeout.
type Modem interface {
	// Open prepares the serial side of the channel. It must be called
	// before the modem supply is switched on so the transmit line is in a
	// legal state when power arrives.
	Open() error

	// Address queries the modem's node address.
	Address() (int, error)

	// BatteryVoltage queries the supply voltage measured by the modem.
	BatteryVoltage() (float64, error)

	// SendBroadcast transmits payload as an unaddressed broadcast.
	// Fire-and-forget: no delivery acknowledgement exists at this layer.
	SendBroadcast(payload []byte) error

	// PollReceiver pulls any bytes waiting on the channel into the
	// receive buffer.
	PollReceiver() error

	// ProcessIncoming parses buffered bytes into complete messages.
	ProcessIncoming() error

	// HasReceivedMessage reports whether a complete message is queued.
	HasReceivedMessage() bool

	// ReceivedMessage dequeues the oldest complete message.
	ReceivedMessage() (*Message, bool)
}
