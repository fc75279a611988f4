// Package network implements L3: host-variant direct delivery and
// router-variant TTL-decrementing forwarding, grounded in
// original_source's stack/network/impl/host.py and router.py — the
// host drops on address mismatch without touching TTL, the router
// never delivers locally and checks TTL before decrementing it.
package network

import (
	"fmt"
	"sync/atomic"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/link"
	"github.com/vexholt/netstack-go/netlog"
	"github.com/vexholt/netstack-go/topology"
	"github.com/vexholt/netstack-go/wire"
)

// Network is the L3 capability set.
type Network interface {
	Send(segment []byte, destination addr.VIP, source addr.VIP) error
	Receive() ([]byte, addr.VIP, bool)
}

// RouteFailure is raised when the local routing table has no entry
// for a destination VIP. Like link.ArpFailure this signals a static
// topology misconfiguration and is never silently absorbed.
type RouteFailure struct {
	Destination addr.VIP
}

func (e *RouteFailure) Error() string {
	return fmt.Sprintf("network: no route to VIP %q", e.Destination)
}

// HostNetwork is the L3 implementation for end hosts: it attaches a
// fresh TTL to outgoing packets, resolves the next hop via the static
// routing table, and on receive keeps only packets addressed to its
// own VIP.
type HostNetwork struct {
	link        link.Link
	localVIP    addr.VIP
	routingTable map[addr.VIP]addr.VIP
}

// NewHost builds a host-variant network layer.
func NewHost(l link.Link, localVIP addr.VIP, routingTable map[addr.VIP]addr.VIP) *HostNetwork {
	return &HostNetwork{link: l, localVIP: localVIP, routingTable: routingTable}
}

// Send wraps segment in a packet addressed to destination, with TTL
// set to topology.Defaults.TTL, and hands it to the link layer
// addressed to the routing table's next hop for destination.
func (h *HostNetwork) Send(segment []byte, destination addr.VIP, source addr.VIP) error {
	nextHop, ok := h.routingTable[destination]
	if !ok {
		netlog.Layer("network").WithFields(netlog.Fields{"local": h.localVIP, "dst_vip": destination}).
			Error("no route to destination")
		return &RouteFailure{Destination: destination}
	}

	pkt := wire.Packet{SrcVIP: source, DstVIP: destination, TTL: topology.Defaults.TTL, Segment: segment}
	netlog.Layer("network").WithFields(netlog.Fields{"local": h.localVIP, "dst_vip": destination, "next_hop": nextHop}).
		Debug("sending packet")
	return h.link.Send(pkt, nextHop)
}

// Receive pulls a packet from the link layer and keeps it only if
// dst_vip matches this host's own VIP — no TTL recheck, matching
// HostNetwork.receive in the original implementation.
func (h *HostNetwork) Receive() ([]byte, addr.VIP, bool) {
	pkt, ok := h.link.Receive()
	if !ok {
		return nil, "", false
	}
	if pkt.DstVIP != h.localVIP {
		netlog.Layer("network").WithFields(netlog.Fields{"local": h.localVIP, "dst_vip": pkt.DstVIP}).
			Debug("dropping packet: not addressed to this host")
		return nil, "", false
	}
	return pkt.Segment, pkt.SrcVIP, true
}

// RouterStats is an immutable snapshot of a router's packet counters.
type RouterStats struct {
	Forwarded      uint64
	DroppedTTL     uint64
	DroppedUnknown uint64
}

// Total is the sum of every outcome the router has recorded.
func (s RouterStats) Total() uint64 { return s.Forwarded + s.DroppedTTL + s.DroppedUnknown }

// RouterNetwork is the L3 implementation for the router: it never
// delivers locally, decrementing TTL and forwarding to the next hop
// for every packet it sees, dropping on TTL expiry or an unknown
// destination. Counters are atomic so they can be scraped by
// netmetrics.RouterCollector concurrently with the forwarding loop.
type RouterNetwork struct {
	link         link.Link
	localVIP     addr.VIP
	routingTable map[addr.VIP]addr.VIP

	forwarded      uint64
	droppedTTL     uint64
	droppedUnknown uint64
}

// NewRouter builds a router-variant network layer.
func NewRouter(l link.Link, localVIP addr.VIP, routingTable map[addr.VIP]addr.VIP) *RouterNetwork {
	return &RouterNetwork{link: l, localVIP: localVIP, routingTable: routingTable}
}

// Send is not meaningful for a router in this topology — a router
// never originates traffic of its own, only forwards. It exists to
// satisfy the Network interface for symmetry with HostNetwork.
func (r *RouterNetwork) Send(segment []byte, destination addr.VIP, source addr.VIP) error {
	nextHop, ok := r.routingTable[destination]
	if !ok {
		return &RouteFailure{Destination: destination}
	}
	pkt := wire.Packet{SrcVIP: source, DstVIP: destination, TTL: topology.Defaults.TTL, Segment: segment}
	return r.link.Send(pkt, nextHop)
}

// Receive implements the router's forward loop: it drops on TTL
// expiry, otherwise decrements TTL, looks up the next hop, drops on an
// unknown destination, and otherwise forwards — always returning
// (nil, "", false) to the caller, since a router never delivers to an
// upper layer of its own.
func (r *RouterNetwork) Receive() ([]byte, addr.VIP, bool) {
	pkt, ok := r.link.Receive()
	if !ok {
		return nil, "", false
	}

	if pkt.TTL <= 0 {
		atomic.AddUint64(&r.droppedTTL, 1)
		netlog.Layer("network").WithFields(netlog.Fields{"router": r.localVIP, "src_vip": pkt.SrcVIP, "dst_vip": pkt.DstVIP}).
			Warn("dropping packet: TTL expired")
		return nil, "", false
	}
	pkt.TTL--

	nextHop, ok := r.routingTable[pkt.DstVIP]
	if !ok {
		atomic.AddUint64(&r.droppedUnknown, 1)
		netlog.Layer("network").WithFields(netlog.Fields{"router": r.localVIP, "dst_vip": pkt.DstVIP}).
			Warn("dropping packet: unknown destination")
		return nil, "", false
	}

	if err := r.link.Send(pkt, nextHop); err != nil {
		netlog.Layer("network").WithFields(netlog.Fields{"router": r.localVIP, "dst_vip": pkt.DstVIP}).
			Warnf("forward failed: %v", err)
		return nil, "", false
	}
	atomic.AddUint64(&r.forwarded, 1)
	return nil, "", false
}

// Forwarded implements netmetrics.RouterStatsSource.
func (r *RouterNetwork) Forwarded() uint64 { return atomic.LoadUint64(&r.forwarded) }

// DroppedTTL implements netmetrics.RouterStatsSource.
func (r *RouterNetwork) DroppedTTL() uint64 { return atomic.LoadUint64(&r.droppedTTL) }

// DroppedUnknown implements netmetrics.RouterStatsSource.
func (r *RouterNetwork) DroppedUnknown() uint64 { return atomic.LoadUint64(&r.droppedUnknown) }

// Stats returns a consistent snapshot of all three counters.
func (r *RouterNetwork) Stats() RouterStats {
	return RouterStats{
		Forwarded:      r.Forwarded(),
		DroppedTTL:     r.DroppedTTL(),
		DroppedUnknown: r.DroppedUnknown(),
	}
}
