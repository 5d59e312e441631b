package main

import (
	"flag"
	"hash/fnv"
	"os"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/joho/godotenv"

	fx "github.com/uasnet/uanode.go/pkg/framework"
	"github.com/uasnet/uanode.go/pkg/journal"
	"github.com/uasnet/uanode.go/pkg/node"
	"github.com/uasnet/uanode.go/pkg/sim"
	"github.com/uasnet/uanode.go/pkg/uac/mqtt"
)

var (
	benchConf = sim.DefaultConfig()
	nodeConf  = node.DefaultConfig()

	mqttURL    string
	configFile string
)

func init() {
	_ = godotenv.Load()
	benchConf.Address = defaultAddress()
	if val := os.Getenv("UANODE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	if val := os.Getenv("UANODE_CONFIG"); val != "" {
		configFile = val
	}
	if rev := os.Getenv("UANODE_FIRMWARE_REV"); rev != "" {
		nodeConf.FirmwareRev = rev
	}
	benchConf.SetupFlags()
	nodeConf.SetupFlags()
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL bridging the sea, empty for standalone.")
	flag.StringVar(&configFile, "config", configFile, "YAML node manifest.")
}

// defaultAddress derives a stable modem address from the machine
// identity, so a fleet of benches comes up without address flags.
func defaultAddress() int {
	id, err := machineid.ID()
	if err != nil {
		return 1
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32()%255) + 1
}

func main() {
	flag.Parse()

	if configFile != "" {
		if err := nodeConf.LoadFile(configFile); err != nil {
			glog.Exitf("load %s: %v", configFile, err)
		}
	}

	rec := journal.Glog()
	if benchConf.JournalFile != "" {
		file := journal.NewFileRecorder(benchConf.JournalFile)
		defer file.Close()
		rec = journal.Multi(rec, file)
	}

	sea := sim.NewSea(benchConf.PropagationDelay)
	n, err := sim.NewNode(benchConf, nodeConf, sea, rec)
	if err != nil {
		glog.Exit(err)
	}

	runner := fx.NewRunner().HandleSignals()
	runner.Go(n)
	if mqttURL != "" {
		bridge, err := mqtt.NewBridge(mqttURL, sea)
		if err != nil {
			glog.Exit(err)
		}
		runner.Go(bridge)
	}
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
