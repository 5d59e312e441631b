package uac

import (
	"fmt"
	"strconv"
	"strings"
)

// Command payloads recognised by the node supervisor. Each is an exact
// match against the whole payload.
const (
	// PayloadReset requests an immediate unconditional device reset.
	PayloadReset = "USMRT"
	// PayloadOTA requests an update fetch on the next boot.
	PayloadOTA = "USOTA"
	// PayloadPing requests a re-send of the alive announcement.
	PayloadPing = "USPNG"
	// PayloadModules requests a broadcast of the installed module list.
	PayloadModules = "USMOD"
)

// NetworkMarker prefixes payloads owned by the sensor network stack.
// Such payloads are forwarded whole, never interpreted here.
const NetworkMarker = '#'

// IsNetworkPayload reports whether p is a network-stack payload:
// at least three bytes, starting with NetworkMarker.
func IsNetworkPayload(p []byte) bool {
	return len(p) >= 3 && p[0] == NetworkMarker
}

// FormatAddress renders a node address in the fixed 3-digit wire form.
func FormatAddress(addr int) string {
	return fmt.Sprintf("%03d", addr)
}

// AliveMessage builds the broadcast alive announcement:
// "UA<addr>B<volts>V<rev>" with a 3-digit address and 2-decimal voltage.
func AliveMessage(addr int, volts float64, rev string) []byte {
	return []byte(fmt.Sprintf("UA%03dB%0.2fV%s", addr, volts, rev))
}

// ModuleMessage builds one installed-module broadcast:
// "UM<addr>:<name>:<version>". An empty version is sent as "None".
func ModuleMessage(addr int, name, version string) []byte {
	if version == "" {
		version = "None"
	}
	return []byte(fmt.Sprintf("UM%03d:%s:%s", addr, name, version))
}

// Alive is a decoded alive announcement.
type Alive struct {
	Addr  int
	Volts float64
	Rev   string
}

// ParseAlive decodes an alive announcement. ok is false when the
// payload is not one.
func ParseAlive(p []byte) (a Alive, ok bool) {
	s := string(p)
	if len(s) < 7 || !strings.HasPrefix(s, "UA") || s[5] != 'B' {
		return Alive{}, false
	}
	addr, err := strconv.Atoi(s[2:5])
	if err != nil {
		return Alive{}, false
	}
	rest := s[6:]
	v := strings.IndexByte(rest, 'V')
	if v < 0 {
		return Alive{}, false
	}
	volts, err := strconv.ParseFloat(rest[:v], 64)
	if err != nil {
		return Alive{}, false
	}
	return Alive{Addr: addr, Volts: volts, Rev: rest[v+1:]}, true
}

// Module is a decoded installed-module broadcast.
type Module struct {
	Addr    int
	Name    string
	Version string
}

// ParseModule decodes an installed-module broadcast. ok is false when
// the payload is not one.
func ParseModule(p []byte) (m Module, ok bool) {
	s := string(p)
	if len(s) < 7 || !strings.HasPrefix(s, "UM") || s[5] != ':' {
		return Module{}, false
	}
	addr, err := strconv.Atoi(s[2:5])
	if err != nil {
		return Module{}, false
	}
	name, version, found := strings.Cut(s[6:], ":")
	if !found {
		return Module{}, false
	}
	return Module{Addr: addr, Name: name, Version: version}, true
}
