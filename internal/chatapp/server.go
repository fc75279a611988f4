package chatapp

import (
	"fmt"
	"sync"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/netlog"
	"github.com/vexholt/netstack-go/transport"
)

// Server accepts connections and relays every line it receives from
// one client to every other currently-connected client, grounded in
// original_source's application/server.py broadcast relay — trimmed
// to plain text lines, without the online-user-list or file-transfer
// protocol messages.
type Server struct {
	transport *transport.ReliableTransport

	mu      sync.Mutex
	clients map[addr.VIP]*transport.ReliableConnection
}

// NewServer builds a chat relay server over t.
func NewServer(t *transport.ReliableTransport) *Server {
	return &Server{transport: t, clients: make(map[addr.VIP]*transport.ReliableConnection)}
}

// Run accepts connections forever, dispatching each to its own
// handler goroutine. It never returns: Accept has no cancellation
// path, so the server stops only when its process exits.
func (s *Server) Run() {
	netlog.Layer("chatapp").Info("server ready, waiting for connections")
	for {
		conn := s.transport.Accept()
		remote := conn.RemoteAddress()

		s.mu.Lock()
		s.clients[remote.VIP] = conn
		s.mu.Unlock()
		netlog.Layer("chatapp").WithField("remote", remote).Info("client connected")

		go s.handle(conn)
	}
}

func (s *Server) handle(conn *transport.ReliableConnection) {
	remote := conn.RemoteAddress()
	defer func() {
		s.mu.Lock()
		delete(s.clients, remote.VIP)
		s.mu.Unlock()
		netlog.Layer("chatapp").WithField("remote", remote).Info("client disconnected")
	}()

	for {
		data, err := conn.Receive()
		if err != nil {
			return
		}
		s.broadcast(remote, data)
	}
}

func (s *Server) broadcast(from addr.VAddr, data []byte) {
	line := fmt.Sprintf("%s: %s", from.VIP, string(data))

	s.mu.Lock()
	targets := make([]*transport.ReliableConnection, 0, len(s.clients))
	for vip, conn := range s.clients {
		if vip == from.VIP {
			continue
		}
		targets = append(targets, conn)
	}
	s.mu.Unlock()

	for _, conn := range targets {
		if err := conn.Send([]byte(line)); err != nil {
			netlog.Layer("chatapp").Warnf("relay send failed: %v", err)
		}
	}
}
