// Command discover broadcasts a DoIP vehicle identification request and
// prints every announcement it collects within the discovery window.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/anodyne74/doip-client/doipclient"
)

func main() {
	configPath := flag.String("config", "client.json", "path to the client JSON configuration")
	vin := flag.String("vin", "", "preselect by VIN (17 chars)")
	eid := flag.String("eid", "", "preselect by EID (colon-separated hex, e.g. 00:02:36:31:00:1C)")
	flag.Parse()

	logger := log.New(os.Stderr, "discover: ", log.LstdFlags)

	client, err := doipclient.NewClientFromConfig(*configPath, doipclient.WithLogger(logger))
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := client.Initialize(); err != nil {
		logger.Fatalf("initialize: %v", err)
	}
	defer client.DeInitialize()

	preselection := doipclient.PreselectionNone
	switch {
	case *vin != "":
		preselection = doipclient.PreselectionVIN
	case *eid != "":
		preselection = doipclient.PreselectionEID
	}

	announcements, err := client.SendVehicleIdentificationRequest(preselection, *vin, *eid)
	if err != nil {
		logger.Fatalf("discovery: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(announcements); err != nil {
		logger.Fatalf("encode: %v", err)
	}
}
