// Package topology holds the process-wide, immutable-after-construction
// tables every layer of the stack consults: the global MAC table, each
// host's static ARP table, each host's static routing table, and the
// protocol constants shared across layers. Grounded in the original
// project's factory.py, which builds the same tables from a literal
// in-process configuration rather than a config file — three end-hosts
// and a router is small enough to hardcode.
package topology

import "github.com/vexholt/netstack-go/addr"

// Defaults holds the stack's fixed protocol constants (spec.md §6).
var Defaults = struct {
	TTL            int
	MSS            int
	MaxFinRetries  int
	UDPBufferSize  int
}{
	TTL:           64,
	MSS:           1024,
	MaxFinRetries: 8,
	UDPBufferSize: 65507,
}

// HostName identifies a participant by role, independent of its VIP.
type HostName string

const (
	Alice  HostName = "alice"
	Bob    HostName = "bob"
	Server HostName = "server"
	Router HostName = "router"
)

// HostEntry is one row of the host registry: everything needed to
// construct that host's physical/link/network stack.
type HostEntry struct {
	MAC          addr.MAC
	Phys         addr.PhysAddr
	VAddr        addr.VAddr
	ARPTable     map[addr.VIP]addr.MAC
	RoutingTable map[addr.VIP]addr.VIP
}

// Topology is the full static registry: one HostEntry per participant
// plus the global MAC table every physical layer resolves against.
type Topology struct {
	Hosts    map[HostName]HostEntry
	MACTable map[addr.MAC]addr.PhysAddr
}

// Registry builds the canonical four-participant topology described in
// spec.md §6: two end-hosts and a server, all reachable only through
// one router. loopback is the physical host/IP every process binds to
// (normally 127.0.0.1); basePort is the first of four consecutive UDP
// ports assigned to alice, bob, server, router in that order.
func Registry(loopback string, basePort int) (Topology, error) {
	loopbackIP, err := addr.NewIP(loopback)
	if err != nil {
		return Topology{}, err
	}

	macs := map[HostName]string{
		Alice:  "02:00:00:00:00:01",
		Bob:    "02:00:00:00:00:02",
		Server: "02:00:00:00:00:03",
		Router: "02:00:00:00:00:0A",
	}
	vips := map[HostName]string{
		Alice:  "alice",
		Bob:    "bob",
		Server: "server",
		Router: "router",
	}
	ports := map[HostName]int{
		Alice:  basePort,
		Bob:    basePort + 1,
		Server: basePort + 2,
		Router: basePort + 3,
	}
	// Transport-level ports are independent of the UDP ports above —
	// they key a connection at L4, not a socket bind at L1. A fixed
	// well-known port per role is enough for this topology's single
	// chat application per host.
	transportPorts := map[HostName]int{
		Alice:  7001,
		Bob:    7002,
		Server: 7000,
		Router: 7003,
	}

	mac := map[HostName]addr.MAC{}
	vip := map[HostName]addr.VIP{}
	phys := map[HostName]addr.PhysAddr{}
	tport := map[HostName]addr.Port{}

	for _, name := range []HostName{Alice, Bob, Server, Router} {
		m, err := addr.NewMAC(macs[name])
		if err != nil {
			return Topology{}, err
		}
		v, err := addr.NewVIP(vips[name])
		if err != nil {
			return Topology{}, err
		}
		p, err := addr.NewPort(ports[name])
		if err != nil {
			return Topology{}, err
		}
		tp, err := addr.NewPort(transportPorts[name])
		if err != nil {
			return Topology{}, err
		}
		mac[name] = m
		vip[name] = v
		phys[name] = addr.PhysAddr{IP: loopbackIP, Port: p}
		tport[name] = tp
	}

	macTable := map[addr.MAC]addr.PhysAddr{}
	for _, name := range []HostName{Alice, Bob, Server, Router} {
		macTable[mac[name]] = phys[name]
	}

	endHosts := []HostName{Alice, Bob, Server}

	hosts := map[HostName]HostEntry{}
	for _, name := range endHosts {
		// An end-host's ARP and routing tables both point every
		// destination at the router; it never resolves another
		// end-host directly.
		arp := map[addr.VIP]addr.MAC{vip[Router]: mac[Router]}
		routing := map[addr.VIP]addr.VIP{}
		for _, other := range endHosts {
			if other == name {
				continue
			}
			routing[vip[other]] = vip[Router]
		}

		hosts[name] = HostEntry{
			MAC:          mac[name],
			Phys:         phys[name],
			VAddr:        addr.VAddr{VIP: vip[name], Port: tport[name]},
			ARPTable:     arp,
			RoutingTable: routing,
		}
	}

	routerARP := map[addr.VIP]addr.MAC{}
	routerRouting := map[addr.VIP]addr.VIP{}
	for _, name := range endHosts {
		routerARP[vip[name]] = mac[name]
		routerRouting[vip[name]] = vip[name]
	}

	hosts[Router] = HostEntry{
		MAC:          mac[Router],
		Phys:         phys[Router],
		VAddr:        addr.VAddr{VIP: vip[Router], Port: tport[Router]},
		ARPTable:     routerARP,
		RoutingTable: routerRouting,
	}

	return Topology{Hosts: hosts, MACTable: macTable}, nil
}
