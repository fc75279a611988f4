// Package nettest holds the test doubles the stack's own test suites
// share: a fake network.Network that wires two endpoints directly
// together (skipping physical/link/network entirely so tests run in
// microseconds), and a scripted noisychannel.Channel that drops,
// duplicates, or corrupts datagrams on command instead of by random
// roll, so end-to-end tests can pin down exactly which datagram is
// lost. Grounded the same way the teacher's raknet tests stand up a
// session directly against an in-memory buffer rather than a real
// socket.
package nettest

import (
	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/noisychannel"
)

// FakeNetwork is a network.Network double connecting exactly two
// endpoints. Each direction of the pipe runs its outbound bytes
// through its own noisychannel.Channel before the peer ever sees
// them, so tests can simulate a lossy network layer without a real
// physical/link stack underneath.
type FakeNetwork struct {
	peer    *FakeNetwork
	channel noisychannel.Channel
	inbox   chan envelope
}

type envelope struct {
	data []byte
	src  addr.VIP
}

// NewFakeNetworkPair builds two connected FakeNetwork endpoints.
// aToB is applied to datagrams sent from a to b; bToA is applied to
// datagrams sent from b to a. A nil channel behaves as
// noisychannel.Passthrough.
func NewFakeNetworkPair(aToB, bToA noisychannel.Channel) (a, b *FakeNetwork) {
	if aToB == nil {
		aToB = noisychannel.Passthrough{}
	}
	if bToA == nil {
		bToA = noisychannel.Passthrough{}
	}
	a = &FakeNetwork{channel: aToB, inbox: make(chan envelope, 64)}
	b = &FakeNetwork{channel: bToA, inbox: make(chan envelope, 64)}
	a.peer, b.peer = b, a
	return a, b
}

// Send implements network.Network.
func (f *FakeNetwork) Send(segment []byte, destination addr.VIP, source addr.VIP) error {
	for _, datagram := range f.channel.Apply(segment) {
		f.peer.inbox <- envelope{data: datagram, src: source}
	}
	return nil
}

// Receive implements network.Network.
func (f *FakeNetwork) Receive() ([]byte, addr.VIP, bool) {
	env := <-f.inbox
	return env.data, env.src, true
}

// Action is one scripted outcome for a single datagram passing
// through a ScriptedChannel.
type Action int

const (
	// ActionPass delivers the datagram unchanged.
	ActionPass Action = iota
	// ActionDrop delivers nothing.
	ActionDrop
	// ActionDuplicate delivers the datagram twice.
	ActionDuplicate
	// ActionCorrupt flips the datagram's last byte before delivering it,
	// which breaks the frame-level integrity tag where one is present.
	ActionCorrupt
)

// ScriptedChannel applies a fixed, ordered sequence of Actions — one
// per call to Apply — instead of a random roll, so a test can say
// exactly "the first chunk is dropped, everything after passes" the
// way spec.md §8's scenarios are worded. Calls past the end of the
// script pass through unchanged.
type ScriptedChannel struct {
	script []Action
	calls  int
}

// NewScriptedChannel builds a channel that applies script in order.
func NewScriptedChannel(script ...Action) *ScriptedChannel {
	return &ScriptedChannel{script: script}
}

// Apply implements noisychannel.Channel.
func (s *ScriptedChannel) Apply(data []byte) [][]byte {
	action := ActionPass
	if s.calls < len(s.script) {
		action = s.script[s.calls]
	}
	s.calls++

	switch action {
	case ActionDrop:
		return nil
	case ActionDuplicate:
		return [][]byte{data, append([]byte(nil), data...)}
	case ActionCorrupt:
		out := append([]byte(nil), data...)
		if len(out) > 0 {
			out[len(out)-1] ^= 0xFF
		}
		return [][]byte{out}
	default:
		return [][]byte{data}
	}
}
