// Package physical implements L1: send/receive opaque byte frames over
// a simulated lossy datagram channel, resolving a frame's destination
// MAC to a physical endpoint via the static MAC table. Grounded in the
// teacher's source/server/server.go, which binds a *net.UDPConn with
// net.ListenUDP and drives it with ReadFromUDP/WriteToUDP.
package physical

import (
	"fmt"
	"net"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/netlog"
	"github.com/vexholt/netstack-go/noisychannel"
	"github.com/vexholt/netstack-go/topology"
	"github.com/vexholt/netstack-go/wire"
)

// Physical is the L1 capability set: opaque send/receive over the
// datagram carrier.
type Physical interface {
	Send(data []byte) error
	Receive() ([]byte, error)
}

// UDPSimulated is the stack's only Physical implementation: a UDP
// socket standing in for the real carrier, with an injectable
// noisychannel.Channel standing in for the noisy channel simulator.
type UDPSimulated struct {
	conn     *net.UDPConn
	macTable map[addr.MAC]addr.PhysAddr
	channel  noisychannel.Channel
	local    addr.PhysAddr
}

// New binds a UDP socket at local and returns a physical layer backed
// by it. macTable is the global, process-wide MAC-to-endpoint table;
// channel may be nil, in which case noisychannel.Passthrough is used.
func New(local addr.PhysAddr, macTable map[addr.MAC]addr.PhysAddr, channel noisychannel.Channel) (*UDPSimulated, error) {
	udpAddr := &net.UDPAddr{IP: net.ParseIP(string(local.IP)), Port: int(local.Port)}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("physical: bind %s: %w", local, err)
	}
	if channel == nil {
		channel = noisychannel.Passthrough{}
	}
	return &UDPSimulated{conn: conn, macTable: macTable, channel: channel, local: local}, nil
}

// Close releases the underlying socket.
func (p *UDPSimulated) Close() error { return p.conn.Close() }

// Send inspects only the frame header to resolve dst_mac, then hands
// the raw bytes to the noisy channel for possible drop/duplication/
// corruption before writing to the socket. Oversized frames and
// unknown destination MACs are dropped with a logged error, never
// raised — spec.md §4.1.
func (p *UDPSimulated) Send(data []byte) error {
	if len(data) > topology.Defaults.UDPBufferSize {
		netlog.Layer("physical").WithField("local", p.local.String()).
			Warnf("dropping oversized frame (%d bytes)", len(data))
		return nil
	}

	dstMAC, ok := wire.PeekDstMAC(data)
	if !ok {
		netlog.Layer("physical").WithField("local", p.local.String()).
			Warn("dropping frame: cannot read destination MAC")
		return nil
	}

	dstAddr, ok := p.macTable[dstMAC]
	if !ok {
		netlog.Layer("physical").WithFields(netlog.Fields{"local": p.local.String(), "dst_mac": dstMAC}).
			Error("dropping frame: unknown MAC in MAC table")
		return nil
	}

	udpAddr := &net.UDPAddr{IP: net.ParseIP(string(dstAddr.IP)), Port: int(dstAddr.Port)}
	for _, datagram := range p.channel.Apply(data) {
		if _, err := p.conn.WriteToUDP(datagram, udpAddr); err != nil {
			netlog.Layer("physical").WithField("local", p.local.String()).
				Warnf("write failed: %v", err)
		}
	}
	return nil
}

// Receive blocks until a datagram arrives and returns its raw bytes.
// On I/O error it returns (nil, nil): the caller treats empty bytes as
// a dropped frame, per spec.md §4.1.
func (p *UDPSimulated) Receive() ([]byte, error) {
	buf := make([]byte, topology.Defaults.UDPBufferSize)
	n, _, err := p.conn.ReadFromUDP(buf)
	if err != nil {
		netlog.Layer("physical").WithField("local", p.local.String()).
			Warnf("receive error, treating as dropped frame: %v", err)
		return nil, nil
	}
	return buf[:n], nil
}
