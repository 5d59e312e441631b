// Package sim provides a software bench for the sensor node: a board
// with pins, counters and light sleep, a hardware watchdog that really
// bites, an acoustic modem and the sea connecting modems together.
//
// The bench runs the production supervisor unmodified. Reset commands
// and watchdog starvation reboot the simulated node the way they would
// reboot the real one, including the reset cause seen by the next boot.
package sim
