package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uasnet/uanode.go/pkg/node"
)

// twoModems builds a sea with two powered, open modems and instant
// propagation.
func twoModems(t *testing.T) (*Sea, *Modem, *Modem, *Board, *Board) {
	sea := NewSea(0)
	ba := NewBoard()
	bb := NewBoard()
	ma := NewModem(7, 6.4, ba, sea, 0)
	mb := NewModem(42, 7.1, bb, sea, 0)
	for _, b := range []*Board{ba, bb} {
		require.NoError(t, b.EnableModem())
	}
	require.NoError(t, ma.Open())
	require.NoError(t, mb.Open())
	return sea, ma, mb, ba, bb
}

func TestModemQueriesNeedOpenAndPower(t *testing.T) {
	sea := NewSea(0)
	b := NewBoard()
	m := NewModem(7, 6.4, b, sea, 0)

	_, err := m.Address()
	require.Error(t, err)

	require.NoError(t, m.Open())
	_, err = m.Address()
	require.Error(t, err) // still unpowered

	require.NoError(t, b.EnableModem())
	addr, err := m.Address()
	require.NoError(t, err)
	require.Equal(t, 7, addr)

	volts, err := m.BatteryVoltage()
	require.NoError(t, err)
	require.InDelta(t, 6.4, volts, 0.001)

	m.SetBatteryVoltage(5.9)
	volts, err = m.BatteryVoltage()
	require.NoError(t, err)
	require.InDelta(t, 5.9, volts, 0.001)
}

func TestBroadcastReachesOtherModem(t *testing.T) {
	_, ma, mb, _, bb := twoModems(t)

	pulses := 0
	bb.SetWakeHandler(func(node.Timestamp) { pulses++ })

	require.NoError(t, ma.SendBroadcast([]byte("UA007B6.40Vr")))

	// Synch edge fires before the payload is readable.
	require.Equal(t, 1, pulses)

	// Nothing to read until the receive path is serviced.
	require.False(t, ma.HasReceivedMessage())
	require.False(t, mb.HasReceivedMessage())

	require.NoError(t, mb.PollReceiver())
	require.NoError(t, mb.ProcessIncoming())
	require.True(t, mb.HasReceivedMessage())
	msg, ok := mb.ReceivedMessage()
	require.True(t, ok)
	require.Equal(t, "UA007B6.40Vr", string(msg.Payload))

	// No self-delivery.
	require.NoError(t, ma.PollReceiver())
	require.NoError(t, ma.ProcessIncoming())
	require.False(t, ma.HasReceivedMessage())
}

func TestUnpoweredModemLosesFrames(t *testing.T) {
	_, ma, mb, _, bb := twoModems(t)
	require.NoError(t, bb.DisableModem())

	pulses := 0
	bb.SetWakeHandler(func(node.Timestamp) { pulses++ })

	require.NoError(t, ma.SendBroadcast([]byte("USPNG")))
	require.Equal(t, 0, pulses)

	require.NoError(t, bb.EnableModem())
	require.NoError(t, mb.PollReceiver())
	require.NoError(t, mb.ProcessIncoming())
	require.False(t, mb.HasReceivedMessage())
}

func TestSeaTapAndInject(t *testing.T) {
	sea, ma, mb, _, _ := twoModems(t)

	var seen []Transmission
	sea.Tap(func(tx Transmission) { seen = append(seen, tx) })

	require.NoError(t, ma.SendBroadcast([]byte("hello")))
	sea.Inject(200, []byte("USPNG"))

	require.Len(t, seen, 2)
	require.Equal(t, 7, seen[0].From)
	require.Equal(t, "hello", string(seen[0].Payload))
	require.Equal(t, 200, seen[1].From)
	require.Equal(t, "USPNG", string(seen[1].Payload))

	// Injection reaches every modem.
	for _, m := range []*Modem{ma, mb} {
		require.NoError(t, m.PollReceiver())
		require.NoError(t, m.ProcessIncoming())
	}
	msg, ok := ma.ReceivedMessage()
	require.True(t, ok)
	require.Equal(t, "USPNG", string(msg.Payload))
	msg, ok = mb.ReceivedMessage()
	require.True(t, ok)
	// mb also heard ma's first broadcast.
	require.Equal(t, "hello", string(msg.Payload))
}

func TestPropagationDelay(t *testing.T) {
	sea := NewSea(30 * time.Millisecond)
	ba := NewBoard()
	bb := NewBoard()
	ma := NewModem(1, 6.4, ba, sea, 0)
	mb := NewModem(2, 6.4, bb, sea, 0)
	require.NoError(t, ba.EnableModem())
	require.NoError(t, bb.EnableModem())
	require.NoError(t, ma.Open())
	require.NoError(t, mb.Open())

	require.NoError(t, ma.SendBroadcast([]byte("late")))

	require.NoError(t, mb.PollReceiver())
	require.NoError(t, mb.ProcessIncoming())
	require.False(t, mb.HasReceivedMessage())

	require.Eventually(t, func() bool {
		if err := mb.PollReceiver(); err != nil {
			return false
		}
		if err := mb.ProcessIncoming(); err != nil {
			return false
		}
		return mb.HasReceivedMessage()
	}, time.Second, 5*time.Millisecond)
}
