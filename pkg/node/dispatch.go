package node

import (
	"bytes"
	"runtime"

	"github.com/golang/glog"

	"github.com/uasnet/uanode.go/pkg/journal"
	"github.com/uasnet/uanode.go/pkg/uac"
)

// CommandKind classifies an incoming acoustic payload.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandReset
	CommandOTA
	CommandPing
	CommandModules
	CommandNetwork
)

func (k CommandKind) String() string {
	switch k {
	case CommandReset:
		return "reset"
	case CommandOTA:
		return "ota"
	case CommandPing:
		return "ping"
	case CommandModules:
		return "modules"
	case CommandNetwork:
		return "network"
	}
	return "none"
}

// Classify maps a payload to the command it carries. Command tags match
// exactly; anything marker-prefixed and at least three bytes long
// belongs to the network stack. Everything else is ignored.
func Classify(payload []byte) CommandKind {
	switch {
	case bytes.Equal(payload, []byte(uac.PayloadReset)):
		return CommandReset
	case bytes.Equal(payload, []byte(uac.PayloadOTA)):
		return CommandOTA
	case bytes.Equal(payload, []byte(uac.PayloadPing)):
		return CommandPing
	case bytes.Equal(payload, []byte(uac.PayloadModules)):
		return CommandModules
	case uac.IsNetworkPayload(payload):
		return CommandNetwork
	}
	return CommandNone
}

// Dispatcher routes received messages to their handlers.
type Dispatcher struct {
	Config  Config
	Modem   uac.Modem
	Network Network
	Flags   FlagStore
	Board   Board
	Feeder  Feeder
	Clock   Clock
	Journal journal.Recorder
}

// SendAlive broadcasts the identity beacon: address, battery voltage
// and firmware revision. Queries are spaced by the configured gap to
// give the modem time to turn around.
func (d *Dispatcher) SendAlive() error {
	addr, err := d.Modem.Address()
	if err != nil {
		return err
	}
	d.Clock.Sleep(d.Config.QueryGap)
	volts, err := d.Modem.BatteryVoltage()
	if err != nil {
		return err
	}
	d.Clock.Sleep(d.Config.QueryGap)
	return d.Modem.SendBroadcast(uac.AliveMessage(addr, volts, d.Config.FirmwareRev))
}

// Dispatch handles one received message. It returns ErrResetRequested
// when the message commands a reboot; other errors abort the rest of
// the loop pass.
func (d *Dispatcher) Dispatch(msg *uac.Message) error {
	kind := Classify(msg.Payload)
	glog.V(2).Infof("command %v payload %q", kind, msg.Payload)
	switch kind {
	case CommandReset:
		d.Journal.Record("Reset command received.", logSource)
		d.Board.Reset()
		return ErrResetRequested
	case CommandOTA:
		d.Journal.Record("OTA command received.", logSource)
		if err := d.Flags.SetUpdateFlag(); err != nil {
			// The update will not run, but the reset still must.
			d.Journal.RecordFault(err, logSource)
		}
		d.Board.Reset()
		return ErrResetRequested
	case CommandPing:
		d.Journal.Record("Ping command received.", logSource)
		return d.SendAlive()
	case CommandModules:
		d.Journal.Record("Modules command received.", logSource)
		return d.sendModules()
	case CommandNetwork:
		// Network handlers churn allocations on a small heap; collect
		// on both sides.
		runtime.GC()
		err := d.Network.HandlePacket(msg)
		runtime.GC()
		return err
	}
	return nil
}

// sendModules broadcasts the installed module inventory, one message
// per module, feeding the watchdog between sends.
func (d *Dispatcher) sendModules() error {
	addr, err := d.Modem.Address()
	if err != nil {
		return err
	}
	for _, m := range d.Config.Modules {
		if err := d.Modem.SendBroadcast(uac.ModuleMessage(addr, m.Name, m.Version)); err != nil {
			return err
		}
		d.Clock.Sleep(d.Config.ModuleSendGap)
		d.Feeder.Feed()
	}
	return nil
}
