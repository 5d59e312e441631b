// Package node implements the supervisory loop of a battery powered
// underwater acoustic sensor node.
//
// The node spends most of its life in light sleep with the modem left
// powered. A rising edge on the modem synch line wakes the CPU; the loop
// then polls the modem for commands until the activity window closes,
// drops the rails and sleeps again. A hardware watchdog is armed before
// anything else and fed on every pass, so a wedged loop reboots the node
// instead of stranding it on the sea bed.
package node
