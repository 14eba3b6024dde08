// Command doipmonitor runs a client against a configuration file and serves
// its live activity over HTTP: Prometheus metrics at /metrics, an ECU health
// snapshot at /ecus, and a websocket event feed at /ws.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anodyne74/doip-client/doipclient"
	"github.com/anodyne74/doip-client/internal/metrics"
	"github.com/anodyne74/doip-client/internal/monitor"
	"github.com/anodyne74/doip-client/internal/registry"
)

func main() {
	configPath := flag.String("config", "client.json", "path to the client JSON configuration")
	addr := flag.String("addr", ":8080", "address to serve the monitor HTTP endpoint on")
	timeoutAlertThreshold := flag.Int("timeout-alert-threshold", 3, "consecutive timeouts before an ECU alert fires")
	flag.Parse()

	logger := log.New(os.Stderr, "doipmonitor: ", log.LstdFlags)

	reg := registry.NewManager(*timeoutAlertThreshold)
	collectors := metrics.New(prometheus.DefaultRegisterer)
	mon := monitor.NewServer(reg, logger)

	client, err := doipclient.NewClientFromConfig(*configPath,
		doipclient.WithLogger(logger),
		doipclient.WithRegistry(reg),
		doipclient.WithMetrics(collectors),
		doipclient.WithMonitor(mon),
	)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := client.Initialize(); err != nil {
		logger.Fatalf("initialize: %v", err)
	}
	defer client.DeInitialize()

	logger.Printf("serving monitor on %s", *addr)
	if err := http.ListenAndServe(*addr, mon); err != nil {
		logger.Fatalf("serve: %v", err)
	}
}
