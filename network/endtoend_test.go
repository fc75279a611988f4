package network

import (
	"testing"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/wire"
)

// TestScenarioTTLTwoHop covers spec.md §8's scenario 6: a packet two
// hops from its destination starts with TTL=1. The first router
// decrements 1->0 and forwards; the second router sees TTL=0 and
// drops it before ever touching it again.
func TestScenarioTTLTwoHop(t *testing.T) {
	alice, dest := vip(t, "alice"), vip(t, "dest")
	router1VIP, router2VIP := vip(t, "router1"), vip(t, "router2")

	link1 := &fakeLink{inbox: []wire.Packet{{SrcVIP: alice, DstVIP: dest, TTL: 1, Segment: []byte("x")}}}
	router1 := NewRouter(link1, router1VIP, map[addr.VIP]addr.VIP{dest: router2VIP})

	router1.Receive()
	if len(link1.sent) != 1 || link1.sent[0].TTL != 0 {
		t.Fatalf("expected first hop to forward with TTL=0, got %+v", link1.sent)
	}
	if router1.Forwarded() != 1 {
		t.Fatalf("expected first router Forwarded()=1, got %d", router1.Forwarded())
	}

	link2 := &fakeLink{inbox: []wire.Packet{link1.sent[0]}}
	router2 := NewRouter(link2, router2VIP, map[addr.VIP]addr.VIP{dest: dest})

	router2.Receive()
	if len(link2.sent) != 0 {
		t.Fatalf("expected second hop to drop on TTL expiry, got %+v", link2.sent)
	}
	if router2.DroppedTTL() != 1 {
		t.Fatalf("expected second router DroppedTTL()=1, got %d", router2.DroppedTTL())
	}
}
