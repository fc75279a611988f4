package transport

import (
	"testing"
	"time"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/wire"
)

// recordingNetwork captures every segment sent through it without
// delivering it anywhere, so a single ReliableConnection's internal
// retransmission behavior can be tested without a peer.
type recordingNetwork struct {
	sent []wire.Segment
}

func (r *recordingNetwork) Send(segment []byte, destination addr.VIP, source addr.VIP) error {
	seg, err := wire.DecodeSegment(segment)
	if err != nil {
		return err
	}
	r.sent = append(r.sent, seg)
	return nil
}

func (r *recordingNetwork) Receive() ([]byte, addr.VIP, bool) {
	select {} // never called in these tests
}

func TestSendChunkRetransmitsOnTimeout(t *testing.T) {
	net := &recordingNetwork{}
	local := vaddr(t, "alice", 9100)
	remote := vaddr(t, "bob", 9101)
	cfg := Config{MSS: 1024, Timeout: 20 * time.Millisecond, MaxFinRetries: 3}
	conn := newConnection(net, local, remote, cfg, nil, nil)

	done := make(chan error, 1)
	go func() { done <- conn.sendChunk([]byte("x"), false) }()

	// Let a couple of timeouts elapse with no ACK delivered, then ack.
	time.Sleep(60 * time.Millisecond)
	conn.dispatch(wire.Segment{SeqNum: 0, IsAck: true, Payload: wire.SegmentPayload{SrcVIP: remote.VIP, SrcPort: remote.Port, DstPort: local.Port}})

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sendChunk: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sendChunk never returned")
	}

	if len(net.sent) < 2 {
		t.Fatalf("expected at least 2 transmissions (original plus a retransmission), got %d", len(net.sent))
	}
	for _, s := range net.sent {
		if s.SeqNum != 0 || string(s.Payload.Data) != "x" {
			t.Fatalf("unexpected retransmitted segment: %+v", s)
		}
	}
}

func TestReceiveChunkAcksDuplicateWithOppositeSeq(t *testing.T) {
	net := &recordingNetwork{}
	local := vaddr(t, "alice", 9110)
	remote := vaddr(t, "bob", 9111)
	cfg := Config{MSS: 1024, Timeout: time.Second, MaxFinRetries: 3}
	conn := newConnection(net, local, remote, cfg, nil, nil)

	// recvSeq starts at 0, so a segment with seq=1 does not match the
	// expected sequence and is treated as a duplicate of the previously
	// accepted chunk.
	conn.dataQueue <- &wire.Segment{SeqNum: 1, Payload: wire.SegmentPayload{Data: []byte("dup")}}

	go conn.receiveChunk()
	time.Sleep(20 * time.Millisecond)

	if len(net.sent) != 1 {
		t.Fatalf("expected exactly one ack for the mismatched seq, got %d", len(net.sent))
	}
	if !net.sent[0].IsAck || net.sent[0].SeqNum != 1 {
		t.Fatalf("expected ack for seq 1 (recvSeq^1, the previously accepted seq), got %+v", net.sent[0])
	}
}
