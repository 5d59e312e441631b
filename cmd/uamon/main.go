package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/uasnet/uanode.go/pkg/node"
	"github.com/uasnet/uanode.go/pkg/uac"
	"github.com/uasnet/uanode.go/pkg/uac/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/uas/"
)

func init() {
	if val := os.Getenv("UANODE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func describe(payload []byte) string {
	if a, ok := uac.ParseAlive(payload); ok {
		return fmt.Sprintf("[alive] addr %03d battery %.2fV firmware %q", a.Addr, a.Volts, a.Rev)
	}
	if m, ok := uac.ParseModule(payload); ok {
		return fmt.Sprintf("[module] addr %03d %s %s", m.Addr, m.Name, m.Version)
	}
	switch kind := node.Classify(payload); kind {
	case node.CommandNone:
		return fmt.Sprintf("%q", payload)
	case node.CommandNetwork:
		return fmt.Sprintf("[network] %q", payload)
	default:
		return fmt.Sprintf("[command] %s", kind)
	}
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}

	q.Sub(mqtt.CastFilter, mqtt.Handler(func(topic string, payload []byte) {
		log.Printf("%s: %s", topic, describe(payload))
	}))
	token := q.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		log.Fatalln(err)
	}
	<-(chan struct{})(nil)
}
