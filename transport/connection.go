package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/netlog"
	"github.com/vexholt/netstack-go/netmetrics"
	"github.com/vexholt/netstack-go/network"
	"github.com/vexholt/netstack-go/wire"
)

// ErrClosed is returned by Receive once the remote side's FIN has
// been consumed and no more data will ever arrive.
var ErrClosed = fmt.Errorf("transport: connection closed")

// ReliableConnection is a byte-stream connection built out of
// Stop-and-Wait segments: one outstanding chunk at a time, a single
// alternating sequence bit, and bounded-retry FIN teardown. Grounded
// in original_source's ReliableConnection.
type ReliableConnection struct {
	network network.Network
	local   addr.VAddr
	remote  addr.VAddr
	cfg     Config
	gauges  *netmetrics.TransportGauges
	onClose func()
	id      string

	sendSeq uint8
	recvSeq uint8

	ackQueue  chan wire.Segment
	dataQueue chan *wire.Segment

	state     int32
	closeOnce sync.Once
}

func newConnection(net network.Network, local, remote addr.VAddr, cfg Config, gauges *netmetrics.TransportGauges, onClose func()) *ReliableConnection {
	return &ReliableConnection{
		network:   net,
		local:     local,
		remote:    remote,
		cfg:       cfg,
		gauges:    gauges,
		onClose:   onClose,
		id:        newSessionID(),
		ackQueue:  make(chan wire.Segment, 8),
		dataQueue: make(chan *wire.Segment, 8),
		state:     int32(StateActive),
	}
}

// RemoteAddress returns the connection's peer endpoint.
func (c *ReliableConnection) RemoteAddress() addr.VAddr { return c.remote }

// State returns the connection's current lifecycle stage.
func (c *ReliableConnection) State() State { return State(atomic.LoadInt32(&c.state)) }

func (c *ReliableConnection) setState(s State) { atomic.StoreInt32(&c.state, int32(s)) }

// Send fragments data into MSS-sized chunks and reliably delivers
// each in order, waiting for an ACK before moving to the next.
func (c *ReliableConnection) Send(data []byte) error {
	netlog.Layer("transport").WithFields(netlog.Fields{"local": c.local, "remote": c.remote}).
		Debugf("sending %d byte(s)", len(data))

	if len(data) == 0 {
		return c.sendChunk(nil, false)
	}
	for i := 0; i < len(data); i += c.cfg.MSS {
		end := i + c.cfg.MSS
		if end > len(data) {
			end = len(data)
		}
		more := end < len(data)
		if err := c.sendChunk(data[i:end], more); err != nil {
			return err
		}
	}
	return nil
}

// Receive reassembles a byte stream out of successive chunks until
// one arrives with More=false, returning ErrClosed once the remote
// side's FIN has been consumed.
func (c *ReliableConnection) Receive() ([]byte, error) {
	var buffer []byte
	for {
		segment, ok := c.receiveChunk()
		if !ok {
			return nil, ErrClosed
		}
		buffer = append(buffer, segment.Payload.Data...)
		if !segment.Payload.More {
			break
		}
	}
	netlog.Layer("transport").WithField("local", c.local).Debugf("%d byte(s) received", len(buffer))
	return buffer, nil
}

// Close sends a FIN and waits for its ACK, sending it at most
// cfg.MaxFinRetries times in total before giving up and tearing the
// connection down anyway — unlike data chunks, a FIN is never retried
// forever.
func (c *ReliableConnection) Close() error {
	c.setState(StateClosing)
	fin := wire.Segment{
		SeqNum: c.sendSeq,
		IsAck:  false,
		Payload: wire.SegmentPayload{
			SrcVIP:  c.local.VIP,
			SrcPort: c.local.Port,
			DstPort: c.remote.Port,
			Fin:     true,
		},
	}

	for attempt := 1; attempt <= c.cfg.MaxFinRetries; attempt++ {
		if err := c.network.Send(fin.Encode(), c.remote.VIP, c.local.VIP); err != nil {
			netlog.Layer("transport").WithField("local", c.local).Warnf("FIN send failed: %v", err)
		}

		if c.waitForAck(c.sendSeq) {
			c.finish()
			return nil
		}
		netlog.Layer("transport").WithFields(netlog.Fields{"local": c.local, "remote": c.remote}).
			Warnf("timeout waiting for FIN ack (%d/%d)", attempt, c.cfg.MaxFinRetries)
		if attempt < c.cfg.MaxFinRetries && c.gauges != nil {
			c.gauges.Retransmitted()
		}
	}

	netlog.Layer("transport").WithFields(netlog.Fields{"local": c.local, "remote": c.remote}).
		Warn("FIN unacknowledged after max retries, closing anyway")
	c.finish()
	return nil
}

func (c *ReliableConnection) finish() {
	c.setState(StateClosed)
	c.closeOnce.Do(func() {
		if c.onClose != nil {
			c.onClose()
		}
	})
}

// waitForAck blocks up to cfg.Timeout for an ACK matching seq,
// discarding anything else that arrives in the meantime.
func (c *ReliableConnection) waitForAck(seq uint8) bool {
	deadline := time.Now().Add(c.cfg.Timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		select {
		case ack := <-c.ackQueue:
			if ack.SeqNum == seq {
				return true
			}
			netlog.Layer("transport").WithField("local", c.local).
				Debugf("discarding mismatched ack (got=%d want=%d)", ack.SeqNum, seq)
		case <-time.After(remaining):
			return false
		}
	}
}

func (c *ReliableConnection) sendAck(ackSeq uint8) {
	ack := wire.Segment{
		SeqNum: ackSeq,
		IsAck:  true,
		Payload: wire.SegmentPayload{
			SrcVIP:  c.local.VIP,
			SrcPort: c.local.Port,
			DstPort: c.remote.Port,
		},
	}
	if err := c.network.Send(ack.Encode(), c.remote.VIP, c.local.VIP); err != nil {
		netlog.Layer("transport").WithField("local", c.local).Warnf("ack send failed: %v", err)
	}
}

func (c *ReliableConnection) sendChunk(chunk []byte, more bool) error {
	segment := wire.Segment{
		SeqNum: c.sendSeq,
		IsAck:  false,
		Payload: wire.SegmentPayload{
			SrcVIP:  c.local.VIP,
			SrcPort: c.local.Port,
			DstPort: c.remote.Port,
			Data:    chunk,
			More:    more,
		},
	}

	for {
		if err := c.network.Send(segment.Encode(), c.remote.VIP, c.local.VIP); err != nil {
			return fmt.Errorf("transport: send chunk: %w", err)
		}

		if c.waitForAck(c.sendSeq) {
			netlog.Layer("transport").WithField("local", c.local).Debugf("chunk acked (seq=%d)", c.sendSeq)
			c.sendSeq ^= 1
			return nil
		}

		netlog.Layer("transport").WithFields(netlog.Fields{"local": c.local, "remote": c.remote}).
			Warnf("timeout, retransmitting (seq=%d)", c.sendSeq)
		if c.gauges != nil {
			c.gauges.Retransmitted()
		}
	}
}

func (c *ReliableConnection) receiveChunk() (wire.Segment, bool) {
	for {
		item := <-c.dataQueue
		if item == nil {
			c.setState(StateClosed)
			return wire.Segment{}, false
		}
		segment := *item

		if segment.SeqNum != c.recvSeq {
			netlog.Layer("transport").WithField("local", c.local).
				Debugf("discarding duplicate (seq=%d want=%d)", segment.SeqNum, c.recvSeq)
			c.sendAck(c.recvSeq ^ 1)
			continue
		}

		c.sendAck(segment.SeqNum)
		c.recvSeq ^= 1
		netlog.Layer("transport").WithField("local", c.local).Debugf("chunk accepted (seq=%d)", segment.SeqNum)
		return segment, true
	}
}

// dispatch is called by ReliableTransport for every segment routed to
// this connection. A remote FIN is ACKed, queues a close sentinel for
// any blocked Receive, and runs the close callback; an ACK goes to
// the ack queue; anything else is data.
func (c *ReliableConnection) dispatch(segment wire.Segment) {
	if segment.Payload.Fin {
		c.sendAck(segment.SeqNum)
		c.setState(StateHalfClosedByPeer)
		c.dataQueue <- nil
		netlog.Layer("transport").WithField("local", c.local).Debug("FIN received, closing")
		// The state stays half-closed until Receive consumes the
		// sentinel; only the close callback runs now.
		c.closeOnce.Do(func() {
			if c.onClose != nil {
				c.onClose()
			}
		})
		return
	}

	if segment.IsAck {
		c.ackQueue <- segment
		return
	}

	c.dataQueue <- &segment
}
