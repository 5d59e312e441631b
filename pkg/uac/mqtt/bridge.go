package mqtt

import (
	"context"
	"strconv"
	"strings"

	"github.com/golang/glog"

	"github.com/uasnet/uanode.go/pkg/sim"
	"github.com/uasnet/uanode.go/pkg/uac"
)

// CastFilter subscribes to every transmission crossing the bridged sea.
const CastFilter = "cast/+"

// SurfaceAddress is the source address for frames sent from the broker
// side without a modem of their own, such as a console.
const SurfaceAddress = 0

// CastTopic is the topic carrying broadcasts from the given address.
func CastTopic(addr int) string {
	return "cast/" + uac.FormatAddress(addr)
}

// CastAddress extracts the source address from a cast topic.
func CastAddress(topic string) (int, bool) {
	if !strings.HasPrefix(topic, "cast/") {
		return 0, false
	}
	addr, err := strconv.Atoi(topic[len("cast/"):])
	if err != nil {
		return 0, false
	}
	return addr, true
}

// Bridge relays a local sea to an MQTT broker. Every transmission from
// a locally attached modem is published to cast/<addr>; frames arriving
// on cast/<addr> from elsewhere are driven into the local water with
// that source address. Local addresses are never re-injected, so a
// frame cannot loop through the broker.
type Bridge struct {
	Queue *Queue
	Sea   *sim.Sea
}

// NewBridge creates a Bridge over a broker URL.
func NewBridge(brokerURL string, sea *sim.Sea) (*Bridge, error) {
	q, err := NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	return &Bridge{Queue: q, Sea: sea}, nil
}

// Name implements Named.
func (b *Bridge) Name() string {
	return "sea-bridge"
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	b.Sea.Tap(func(tx sim.Transmission) {
		if b.localAddress(tx.From) {
			b.Queue.Pub(CastTopic(tx.From), tx.Payload)
		}
	})
	b.Queue.Sub(CastFilter, b.handleCast)
	token := b.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	<-ctx.Done()
	b.Queue.Close()
	return nil
}

func (b *Bridge) handleCast(topic string, payload []byte) {
	addr, ok := CastAddress(topic)
	if !ok {
		glog.Warningf("unroutable topic %q", topic)
		return
	}
	if b.localAddress(addr) {
		return
	}
	b.Sea.Inject(addr, payload)
}

func (b *Bridge) localAddress(addr int) bool {
	for _, a := range b.Sea.Addresses() {
		if a == addr {
			return true
		}
	}
	return false
}
