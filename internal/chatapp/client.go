// Package chatapp is the minimal line-oriented chat demo that rides
// on top of the transport layer's Connection, grounded in
// original_source's application/client.py and application/server.py —
// trimmed to stdin/stdout text lines, since the GUI and file-transfer
// variants are presentation concerns outside this stack's scope.
package chatapp

import (
	"bufio"
	"fmt"
	"io"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/netlog"
	"github.com/vexholt/netstack-go/transport"
)

// Client connects to the chat server and exchanges lines of text.
type Client struct {
	name       string
	transport  *transport.ReliableTransport
	serverAddr addr.VAddr
}

// NewClient builds a chat client identified by name that will talk to
// the server at serverAddr over t.
func NewClient(name string, t *transport.ReliableTransport, serverAddr addr.VAddr) *Client {
	return &Client{name: name, transport: t, serverAddr: serverAddr}
}

// Run connects to the server, prints every line it receives, and
// sends every line read from in until in is closed or the connection
// is torn down by the peer.
func (c *Client) Run(in io.Reader, out io.Writer) error {
	netlog.Layer("chatapp").WithField("name", c.name).Info("connecting to server")
	conn := c.transport.Connect(c.serverAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			data, err := conn.Receive()
			if err != nil {
				fmt.Fprintf(out, "[%s] server disconnected\n", c.name)
				return
			}
			fmt.Fprintf(out, "%s\n", string(data))
		}
	}()

	scanner := bufio.NewScanner(in)
scan:
	for scanner.Scan() {
		select {
		case <-done:
			break scan
		default:
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := conn.Send([]byte(line)); err != nil {
			netlog.Layer("chatapp").WithField("name", c.name).Warnf("send failed: %v", err)
		}
	}

	if err := conn.Close(); err != nil {
		netlog.Layer("chatapp").WithField("name", c.name).Warnf("close failed: %v", err)
	}
	<-done
	return nil
}
