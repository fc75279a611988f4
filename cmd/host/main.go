// Command host runs one end-host participant (alice, bob, or server)
// of the four-layer stack, wiring the static topology to a running
// physical/link/network/transport instance and the line-oriented chat
// demo, grounded in the teacher's core/main.go banner-and-signal
// entry point style.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/vexholt/netstack-go/internal/chatapp"
	"github.com/vexholt/netstack-go/link"
	"github.com/vexholt/netstack-go/netlog"
	"github.com/vexholt/netstack-go/network"
	"github.com/vexholt/netstack-go/noisychannel"
	"github.com/vexholt/netstack-go/physical"
	"github.com/vexholt/netstack-go/topology"
	"github.com/vexholt/netstack-go/transport"
)

const version = "1.0.0"

func main() {
	role := flag.String("role", "", "participant role: alice, bob, or server")
	loopback := flag.String("loopback", "127.0.0.1", "physical-layer loopback address")
	basePort := flag.Int("base-port", 30000, "first of four consecutive UDP ports for alice, bob, server, router")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	netlog.SetLevel(*logLevel)
	netlog.Banner("Four-Layer Network Stack - Host", version)

	name := topology.HostName(*role)
	if name != topology.Alice && name != topology.Bob && name != topology.Server {
		netlog.Fatal("invalid --role %q: must be alice, bob, or server", *role)
	}

	top, err := topology.Registry(*loopback, *basePort)
	if err != nil {
		netlog.Fatal("building topology: %v", err)
	}
	self := top.Hosts[name]
	serverEntry := top.Hosts[topology.Server]

	phys, err := physical.New(self.Phys, top.MACTable, noisychannel.Passthrough{})
	if err != nil {
		netlog.Fatal("binding physical layer: %v", err)
	}
	defer phys.Close()

	lnk := link.New(phys, self.MAC, self.ARPTable, link.Config{})
	net := network.NewHost(lnk, self.VAddr.VIP, self.RoutingTable)
	tport := transport.New(net, self.VAddr, transport.DefaultConfig(), nil)

	netlog.Success("%s ready (vip=%s)", name, self.VAddr.VIP)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if name == topology.Server {
			chatapp.NewServer(tport).Run()
			return
		}
		client := chatapp.NewClient(string(name), tport, serverEntry.VAddr)
		if err := client.Run(os.Stdin, os.Stdout); err != nil {
			netlog.Warn("client exited: %v", err)
		}
	}()

	select {
	case <-done:
	case sig := <-sigChan:
		netlog.Warn("received signal: %v", sig)
		netlog.Info("shutting down")
	}
}
