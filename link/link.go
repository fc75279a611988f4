// Package link implements L2: frame construction/validation and
// static-ARP next-hop resolution, grounded in the teacher's handling
// of sessions and sequence numbers one layer up (source/protocol/raknet.go)
// adapted down to a single send/receive pair rather than a
// full session object, since ARP here is a flat lookup table, not a
// protocol exchange.
package link

import (
	"fmt"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/netlog"
	"github.com/vexholt/netstack-go/physical"
	"github.com/vexholt/netstack-go/wire"
)

// ArpFailure is raised when a destination VIP has no entry in the
// local ARP table. Unlike a dropped/corrupt frame, this is a
// configuration bug in a statically-routed topology and is never
// absorbed — it propagates to the caller (spec.md §7).
type ArpFailure struct {
	Destination addr.VIP
}

func (e *ArpFailure) Error() string {
	return fmt.Sprintf("link: ARP failed for VIP %q", e.Destination)
}

// Link is the L2 capability set.
type Link interface {
	Send(packet wire.Packet, destination addr.VIP) error
	Receive() (wire.Packet, bool)
}

// Config controls the link layer's destination filtering behavior.
// spec.md §9 notes the link layer does not filter on dst_mac because
// the physical carrier already delivers only to the local endpoint;
// FilterDstMAC lets a future multi-NIC topology opt into filtering
// without changing the default behavior.
type Config struct {
	FilterDstMAC bool
}

// SimpleLink is the stack's only Link implementation.
type SimpleLink struct {
	physical  physical.Physical
	localMAC  addr.MAC
	arpTable  map[addr.VIP]addr.MAC
	cfg       Config
}

// New builds a link layer over phys using localMAC as this host's
// source address and arpTable to resolve next-hop MACs.
func New(phys physical.Physical, localMAC addr.MAC, arpTable map[addr.VIP]addr.MAC, cfg Config) *SimpleLink {
	return &SimpleLink{physical: phys, localMAC: localMAC, arpTable: arpTable, cfg: cfg}
}

// Send resolves destination via static ARP, wraps packet in a frame
// with a fresh integrity tag, and hands it to the physical layer.
func (l *SimpleLink) Send(packet wire.Packet, destination addr.VIP) error {
	nextHop, ok := l.arpTable[destination]
	if !ok {
		netlog.Layer("link").WithFields(netlog.Fields{"local": l.localMAC, "dst_vip": destination}).
			Error("ARP failed")
		return &ArpFailure{Destination: destination}
	}

	frame := wire.Frame{SrcMAC: l.localMAC, DstMAC: nextHop, Packet: packet.Encode()}
	encoded, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("link: encode frame: %w", err)
	}

	netlog.Layer("link").WithFields(netlog.Fields{"local": l.localMAC, "next_hop": nextHop, "dst_vip": destination}).
		Debug("sending packet")
	return l.physical.Send(encoded)
}

// Receive pulls bytes from the physical layer and decodes a packet
// from them. It returns (zero, false) if the physical layer dropped
// the frame, the bytes don't parse, or the integrity tag fails — never
// an error, because all three are the same "discard and keep going"
// outcome at this layer (spec.md §4.2).
func (l *SimpleLink) Receive() (wire.Packet, bool) {
	data, err := l.physical.Receive()
	if err != nil || len(data) == 0 {
		return wire.Packet{}, false
	}

	frame, ok := wire.DecodeFrame(data)
	if !ok {
		netlog.Layer("link").WithField("local", l.localMAC).
			Warn("dropping frame: integrity check failed or malformed")
		return wire.Packet{}, false
	}

	if l.cfg.FilterDstMAC && frame.DstMAC != l.localMAC {
		netlog.Layer("link").WithFields(netlog.Fields{"local": l.localMAC, "dst_mac": frame.DstMAC}).
			Debug("dropping frame: not addressed to this MAC")
		return wire.Packet{}, false
	}

	packet, err := wire.DecodePacket(frame.Packet)
	if err != nil {
		netlog.Layer("link").WithField("local", l.localMAC).
			Warn("dropping frame: malformed embedded packet")
		return wire.Packet{}, false
	}

	netlog.Layer("link").WithFields(netlog.Fields{"local": l.localMAC, "src_vip": packet.SrcVIP, "dst_vip": packet.DstVIP}).
		Debug("packet received")
	return packet, true
}
