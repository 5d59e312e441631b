package sim

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/uasnet/uanode.go/pkg/journal"
	"github.com/uasnet/uanode.go/pkg/node"
)

// Node bundles a board, watchdog, modem and flag store into one
// simulated sensor node, and reboots the supervisor the way the
// hardware would: a commanded reset comes back as HARD_RESET, a starved
// watchdog as WDT_RESET.
type Node struct {
	Board    *Board
	Watchdog *Watchdog
	Modem    *Modem
	Flags    *FlagStore
	Journal  journal.Recorder
	Network  node.Network
	Config   node.Config

	mu      sync.Mutex
	causes  []node.ResetCause
	updates int
}

// NewNode assembles a simulated node attached to sea. When cfg.FlagDir
// is empty a temporary directory holds the boot flags.
func NewNode(cfg Config, nodeCfg node.Config, sea *Sea, rec journal.Recorder) (*Node, error) {
	dir := cfg.FlagDir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "uanode")
		if err != nil {
			return nil, err
		}
	}
	if rec == nil {
		rec = journal.Glog()
	}
	board := NewBoard()
	n := &Node{
		Board:   board,
		Modem:   NewModem(cfg.Address, cfg.Battery, board, sea, cfg.FrameTrail),
		Flags:   NewFlagStore(dir),
		Journal: rec,
		Network: node.NopNetwork(),
		Config:  nodeCfg,
	}
	n.Watchdog = NewWatchdog(board.watchdogReset)
	return n, nil
}

// Name implements framework.Named.
func (n *Node) Name() string {
	return "uanode"
}

// Run keeps the node alive across reboots until ctx ends. Each pass of
// the loop is one power cycle of the node software.
func (n *Node) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n.Flags.UpdatePending() {
			// The boot loader consumes the flag before the
			// application starts.
			n.Journal.Record("Applying over-the-air update", "bootloader")
			if err := n.Flags.ClearUpdateFlag(); err != nil {
				return err
			}
			n.mu.Lock()
			n.updates++
			n.mu.Unlock()
		}

		cause := n.Board.ResetCause()
		n.mu.Lock()
		n.causes = append(n.causes, cause)
		boots := len(n.causes)
		n.mu.Unlock()
		glog.V(1).Infof("node boot %d, cause %v", boots, cause)

		bootCtx, cancel := context.WithCancel(ctx)
		n.Board.arm(cancel)
		sup, err := node.NewSupervisor(n.Config, node.Deps{
			Board:    n.Board,
			Watchdog: n.Watchdog,
			Power:    n.Board,
			Modem:    n.Modem,
			Network:  n.Network,
			Flags:    n.Flags,
			Journal:  n.Journal,
		})
		if err != nil {
			cancel()
			return err
		}
		runErr := sup.Run(bootCtx)
		cancel()
		n.Watchdog.disarm()

		if n.Board.resetPending() {
			n.Board.completeReboot()
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// The supervisor died without a reboot request: a boot
		// failure. The real node sits dead until the watchdog bites.
		n.Journal.RecordFault(runErr, "bench")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.Config.WatchdogTimeout):
		}
		n.Board.watchdogReset()
		n.Board.completeReboot()
	}
}

// Boots lists the reset cause seen by each boot so far, oldest first.
func (n *Node) Boots() []node.ResetCause {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]node.ResetCause(nil), n.causes...)
}

// Updates counts over-the-air updates applied by the boot loader.
func (n *Node) Updates() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.updates
}
