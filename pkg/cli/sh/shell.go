// Package sh provides the ishell backed bench console. Commands publish
// acoustic payloads through the broker bridge, so anything a surface
// gateway could transmit can be sent from a keyboard.
package sh

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/uasnet/uanode.go/pkg/uac"
	"github.com/uasnet/uanode.go/pkg/uac/mqtt"
)

// Shell wraps ishell with a broker connection.
type Shell struct {
	Interactive bool
	From        int

	Shell *ishell.Shell
	Queue *mqtt.Queue

	watching atomic.Bool
}

const shellKey = "$shell"

var (
	// flags

	mqttURL  = "mqtt://localhost:1883/uas/"
	evalOnly bool
	fromAddr = mqtt.SurfaceAddress

	// commands

	commands = []*ishell.Cmd{
		&PingCmd,
		&ResetCmd,
		&OTACmd,
		&ModulesCmd,
		&NetCmd,
		&RawCmd,
		&FromCmd,
		&WatchCmd,
	}
)

func init() {
	if val := os.Getenv("UANODE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.IntVar(&fromAddr, "from", fromAddr, "Source address of transmitted frames.")
}

// AddCmds is used by other command providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell talking to the given broker.
func New(brokerURL string) (*Shell, error) {
	q, err := mqtt.NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	s := &Shell{
		Interactive: !evalOnly,
		From:        fromAddr,

		Shell: ishell.New(),
		Queue: q,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(prompt(s.From))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s, nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

func prompt(from int) string {
	return uac.FormatAddress(from) + " > "
}

// Cast publishes payload from the shell's source address.
func Cast(c *ishell.Context, payload []byte) {
	s := ShellFrom(c)
	token := s.Queue.Pub(mqtt.CastTopic(s.From), payload)
	if !token.WaitTimeout(2 * time.Second) {
		c.Err(fmt.Errorf("publish timeout"))
		return
	}
	if err := token.Error(); err != nil {
		c.Err(err)
		return
	}
	c.Printf("CAST %q\n", payload)
}

// Run connects the broker, then processes args or serves interactively.
func (s *Shell) Run(args ...string) {
	token := s.Queue.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		log.Fatalln(err)
	}
	defer s.Queue.Close()

	s.Queue.Sub(mqtt.CastFilter, func(topic string, payload []byte) {
		if s.watching.Load() {
			fmt.Printf("%s: %q\n", topic, payload)
		}
	})

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// PingCmd asks every node in earshot for an alive announcement.
	PingCmd = ishell.Cmd{
		Name:    "ping",
		Aliases: []string{"USPNG"},
		Help:    "",
		Func: func(c *ishell.Context) {
			Cast(c, []byte(uac.PayloadPing))
		},
	}

	// ResetCmd reboots every node in earshot.
	ResetCmd = ishell.Cmd{
		Name:    "reset",
		Aliases: []string{"USMRT"},
		Help:    "",
		Func: func(c *ishell.Context) {
			Cast(c, []byte(uac.PayloadReset))
		},
	}

	// OTACmd flags an update fetch and reboots every node in earshot.
	OTACmd = ishell.Cmd{
		Name:    "ota",
		Aliases: []string{"USOTA"},
		Help:    "",
		Func: func(c *ishell.Context) {
			Cast(c, []byte(uac.PayloadOTA))
		},
	}

	// ModulesCmd asks for the installed module inventory.
	ModulesCmd = ishell.Cmd{
		Name:    "modules",
		Aliases: []string{"mod", "USMOD"},
		Help:    "",
		Func: func(c *ishell.Context) {
			Cast(c, []byte(uac.PayloadModules))
		},
	}

	// NetCmd sends a network stack payload.
	NetCmd = ishell.Cmd{
		Name: "net",
		Help: "PAYLOAD (the # marker is prefixed)",
		Func: func(c *ishell.Context) {
			body := strings.Join(c.Args, " ")
			if len(body) < 2 {
				c.Err(fmt.Errorf("network payload needs at least 2 bytes after %c", uac.NetworkMarker))
				return
			}
			Cast(c, append([]byte{uac.NetworkMarker}, body...))
		},
	}

	// RawCmd sends a payload verbatim.
	RawCmd = ishell.Cmd{
		Name: "raw",
		Help: "PAYLOAD",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("PAYLOAD required"))
				return
			}
			Cast(c, []byte(strings.Join(c.Args, " ")))
		},
	}

	// FromCmd shows or changes the source address of sent frames.
	FromCmd = ishell.Cmd{
		Name: "from",
		Help: "[ADDR]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) < 1 {
				c.Printf("from %s\n", uac.FormatAddress(s.From))
				return
			}
			addr, err := strconv.Atoi(c.Args[0])
			if err != nil || addr < 0 || addr > 255 {
				c.Err(fmt.Errorf("invalid ADDR %q", c.Args[0]))
				return
			}
			s.From = addr
			s.Shell.SetPrompt(prompt(addr))
		},
	}

	// WatchCmd prints sea traffic until Enter is pressed.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.watching.Store(true)
			defer s.watching.Store(false)
			c.Println("watching, press Enter to stop ...")
			c.ReadLine()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	s, err := New(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	s.Run(flag.Args()...)
}
