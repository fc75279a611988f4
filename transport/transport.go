// Package transport implements L4: a Stop-and-Wait reliable connection
// multiplexer over the network layer, grounded in original_source's
// stack/transport/impl/reliable_transport.py. A single background
// goroutine reads segments off the network and routes them to the
// matching connection by (remote_vip, remote_port, local_port), the
// same four-case dispatch (`known connection` / `stray ACK` /
// `stray FIN, re-ACK` / `new connection, queue for accept`) as the
// original's _route.
package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/netlog"
	"github.com/vexholt/netstack-go/netmetrics"
	"github.com/vexholt/netstack-go/network"
	"github.com/vexholt/netstack-go/topology"
	"github.com/vexholt/netstack-go/wire"
)

// Config holds the knobs the original implementation hard-coded as
// module constants (MSS, TIMEOUT, MAX_FIN_RETRIES). Keeping them on a
// struct instead lets tests shrink the timeout instead of waiting out
// a two-second retransmission window.
type Config struct {
	MSS           int
	Timeout       time.Duration
	MaxFinRetries int
}

// DefaultConfig mirrors the original implementation's module-level
// constants: MSS=1024, TIMEOUT=2s, MAX_FIN_RETRIES=8.
func DefaultConfig() Config {
	return Config{
		MSS:           topology.Defaults.MSS,
		Timeout:       2 * time.Second,
		MaxFinRetries: topology.Defaults.MaxFinRetries,
	}
}

// connKey identifies a connection by the remote endpoint and the
// local port it's bound to, exactly as original_source's
// ConnectionKey tuple.
type connKey struct {
	RemoteVIP  addr.VIP
	RemotePort addr.Port
	LocalPort  addr.Port
}

// Transport is the L4 capability set.
type Transport interface {
	Connect(destination addr.VAddr) *ReliableConnection
	Accept() *ReliableConnection
}

// ReliableTransport is the stack's only Transport implementation.
type ReliableTransport struct {
	network network.Network
	local   addr.VAddr
	cfg     Config
	gauges  *netmetrics.TransportGauges

	mu          sync.Mutex
	connections map[connKey]*ReliableConnection

	acceptQueue chan *ReliableConnection
}

// New builds a transport over net bound to local, and starts its
// background dispatch loop — one goroutine per transport instance,
// mirroring the original's daemon dispatch thread.
func New(net network.Network, local addr.VAddr, cfg Config, gauges *netmetrics.TransportGauges) *ReliableTransport {
	t := &ReliableTransport{
		network:     net,
		local:       local,
		cfg:         cfg,
		gauges:      gauges,
		connections: make(map[connKey]*ReliableConnection),
		acceptQueue: make(chan *ReliableConnection, 16),
	}
	go t.dispatchLoop()
	netlog.Layer("transport").WithField("local", local).Debug("dispatch loop started")
	return t
}

// Connect establishes an outgoing connection to destination. Unlike a
// real transport handshake, this is immediate: the connection object
// is created and registered, and the first byte exchange happens on
// the first Send/Receive call.
func (t *ReliableTransport) Connect(destination addr.VAddr) *ReliableConnection {
	key := connKey{RemoteVIP: destination.VIP, RemotePort: destination.Port, LocalPort: t.local.Port}
	conn := newConnection(t.network, t.local, destination, t.cfg, t.gauges, func() { t.remove(key) })

	t.mu.Lock()
	t.connections[key] = conn
	t.mu.Unlock()

	if t.gauges != nil {
		t.gauges.ConnectionOpened()
	}
	netlog.Layer("transport").WithFields(netlog.Fields{"local": t.local, "remote": destination}).
		Debug("connection established")
	return conn
}

// Accept blocks until an incoming connection arrives and returns it.
func (t *ReliableTransport) Accept() *ReliableConnection {
	conn := <-t.acceptQueue
	netlog.Layer("transport").WithFields(netlog.Fields{"local": t.local, "remote": conn.remote}).
		Debug("connection accepted")
	return conn
}

func (t *ReliableTransport) remove(key connKey) {
	t.mu.Lock()
	delete(t.connections, key)
	t.mu.Unlock()
	if t.gauges != nil {
		t.gauges.ConnectionClosed()
	}
	netlog.Layer("transport").WithField("local", t.local).Debug("connection removed")
}

func (t *ReliableTransport) dispatchLoop() {
	for {
		data, _, ok := t.network.Receive()
		if !ok {
			continue
		}
		segment, err := wire.DecodeSegment(data)
		if err != nil {
			netlog.Layer("transport").WithField("local", t.local).
				Warnf("dropping malformed segment: %v", err)
			continue
		}
		t.route(segment)
	}
}

// route implements the same three unknown-key sub-cases as the
// original's _route: a stray ACK is silently dropped, a stray FIN
// gets its ACK re-sent (the original ACK may have been lost), and
// anything else starts a brand-new connection that is handed to
// Accept's caller.
func (t *ReliableTransport) route(segment wire.Segment) {
	key := connKey{RemoteVIP: segment.Payload.SrcVIP, RemotePort: segment.Payload.SrcPort, LocalPort: segment.Payload.DstPort}

	t.mu.Lock()
	conn := t.connections[key]
	t.mu.Unlock()

	if conn != nil {
		conn.dispatch(segment)
		return
	}

	if segment.IsAck {
		netlog.Layer("transport").WithFields(netlog.Fields{"local": t.local, "src_vip": key.RemoteVIP, "src_port": key.RemotePort}).
			Debug("dropping stray ACK: no connection")
		return
	}

	if segment.Payload.Fin {
		ack := wire.Segment{
			SeqNum: segment.SeqNum,
			IsAck:  true,
			Payload: wire.SegmentPayload{
				SrcVIP:  t.local.VIP,
				SrcPort: t.local.Port,
				DstPort: key.RemotePort,
			},
		}
		if err := t.network.Send(ack.Encode(), key.RemoteVIP, t.local.VIP); err != nil {
			netlog.Layer("transport").WithField("local", t.local).Warnf("re-ACK of stray FIN failed: %v", err)
		}
		return
	}

	remote := addr.VAddr{VIP: key.RemoteVIP, Port: key.RemotePort}
	newConn := newConnection(t.network, t.local, remote, t.cfg, t.gauges, func() { t.remove(key) })

	t.mu.Lock()
	t.connections[key] = newConn
	t.mu.Unlock()

	newConn.dispatch(segment)
	t.acceptQueue <- newConn
	if t.gauges != nil {
		t.gauges.ConnectionOpened()
	}
	netlog.Layer("transport").WithFields(netlog.Fields{"local": t.local, "remote": remote}).
		Debug("new inbound connection")
}

// State is a ReliableConnection's coarse lifecycle stage, tracked for
// observability — the original implementation has no equivalent
// field, inferring the same information from queue/thread state.
type State int32

const (
	// StateActive is a connection that can still send and receive.
	StateActive State = iota
	// StateHalfClosedByPeer is a connection whose remote side sent a
	// FIN; data already queued can still be read, but no more will
	// arrive.
	StateHalfClosedByPeer
	// StateClosing is a connection in the middle of its own Close call.
	StateClosing
	// StateClosed is a connection that has completed teardown.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateHalfClosedByPeer:
		return "half_closed_by_peer"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// newSessionID returns an opaque, sortable connection identifier,
// distinct from the raw (vip,port,port) key. It is stored on each
// connection; log lines and metrics do not carry it.
func newSessionID() string { return xid.New().String() }
