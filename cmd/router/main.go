// Command router runs the stack's single router participant: a
// network layer that only ever forwards, decrementing TTL and
// counting drops, with an optional Prometheus /metrics endpoint.
// Grounded in original_source's application/router.py and the
// teacher's core/main.go signal-handling entry point.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vexholt/netstack-go/link"
	"github.com/vexholt/netstack-go/netlog"
	"github.com/vexholt/netstack-go/netmetrics"
	"github.com/vexholt/netstack-go/network"
	"github.com/vexholt/netstack-go/noisychannel"
	"github.com/vexholt/netstack-go/physical"
	"github.com/vexholt/netstack-go/topology"
)

const version = "1.0.0"

func main() {
	loopback := flag.String("loopback", "127.0.0.1", "physical-layer loopback address")
	basePort := flag.Int("base-port", 30000, "first of four consecutive UDP ports for alice, bob, server, router")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics at this address (e.g. :9090)")
	flag.Parse()

	netlog.SetLevel(*logLevel)
	netlog.Banner("Four-Layer Network Stack - Router", version)

	top, err := topology.Registry(*loopback, *basePort)
	if err != nil {
		netlog.Fatal("building topology: %v", err)
	}
	self := top.Hosts[topology.Router]

	phys, err := physical.New(self.Phys, top.MACTable, noisychannel.Passthrough{})
	if err != nil {
		netlog.Fatal("binding physical layer: %v", err)
	}
	defer phys.Close()

	lnk := link.New(phys, self.MAC, self.ARPTable, link.Config{})
	router := network.NewRouter(lnk, self.VAddr.VIP, self.RoutingTable)

	if *metricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(netmetrics.NewRouterCollector(string(self.VAddr.VIP), router))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			netlog.Info("serving metrics on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				netlog.Warn("metrics server stopped: %v", err)
			}
		}()
	}

	netlog.Success("router ready (vip=%s)", self.VAddr.VIP)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		for {
			router.Receive()
		}
	}()

	sig := <-sigChan
	netlog.Warn("received signal: %v", sig)
	stats := router.Stats()
	netlog.Info("shutting down. forwarded=%d dropped_ttl=%d dropped_unknown=%d total=%d",
		stats.Forwarded, stats.DroppedTTL, stats.DroppedUnknown, stats.Total())
}
