package network

import (
	"testing"

	"github.com/vexholt/netstack-go/addr"
	"github.com/vexholt/netstack-go/wire"
)

// fakeLink is an in-memory link.Link double so network tests don't
// need real sockets.
type fakeLink struct {
	sent []wire.Packet
	inbox []wire.Packet
}

func (f *fakeLink) Send(packet wire.Packet, destination addr.VIP) error {
	f.sent = append(f.sent, packet)
	return nil
}

func (f *fakeLink) Receive() (wire.Packet, bool) {
	if len(f.inbox) == 0 {
		return wire.Packet{}, false
	}
	pkt := f.inbox[0]
	f.inbox = f.inbox[1:]
	return pkt, true
}

func vip(t *testing.T, s string) addr.VIP {
	t.Helper()
	v, err := addr.NewVIP(s)
	if err != nil {
		t.Fatalf("NewVIP(%q): %v", s, err)
	}
	return v
}

func TestHostSendAttachesTTLAndRoutes(t *testing.T) {
	alice, bob, router := vip(t, "alice"), vip(t, "bob"), vip(t, "router")
	fl := &fakeLink{}
	host := NewHost(fl, alice, map[addr.VIP]addr.VIP{bob: router})

	if err := host.Send([]byte("hi"), bob, alice); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(fl.sent) != 1 {
		t.Fatalf("expected 1 sent packet, got %d", len(fl.sent))
	}
	if fl.sent[0].TTL != 64 {
		t.Fatalf("expected TTL 64, got %d", fl.sent[0].TTL)
	}
}

func TestHostSendRouteFailure(t *testing.T) {
	alice, ghost := vip(t, "alice"), vip(t, "ghost")
	host := NewHost(&fakeLink{}, alice, map[addr.VIP]addr.VIP{})

	err := host.Send([]byte("hi"), ghost, alice)
	if err == nil {
		t.Fatalf("expected RouteFailure, got nil")
	}
	if _, ok := err.(*RouteFailure); !ok {
		t.Fatalf("expected *RouteFailure, got %T", err)
	}
}

func TestHostReceiveDropsWrongDestination(t *testing.T) {
	alice, bob := vip(t, "alice"), vip(t, "bob")
	fl := &fakeLink{inbox: []wire.Packet{{SrcVIP: bob, DstVIP: vip(t, "someoneelse"), TTL: 5, Segment: []byte("x")}}}
	host := NewHost(fl, alice, nil)

	_, _, ok := host.Receive()
	if ok {
		t.Fatalf("expected packet addressed to someone else to be dropped")
	}
}

func TestHostReceiveAcceptsOwnAddress(t *testing.T) {
	alice, bob := vip(t, "alice"), vip(t, "bob")
	fl := &fakeLink{inbox: []wire.Packet{{SrcVIP: bob, DstVIP: alice, TTL: 1, Segment: []byte("payload")}}}
	host := NewHost(fl, alice, nil)

	segment, src, ok := host.Receive()
	if !ok || string(segment) != "payload" || src != bob {
		t.Fatalf("Receive: got segment=%q src=%v ok=%v", segment, src, ok)
	}
}

func TestRouterForwardsAndDecrementsTTL(t *testing.T) {
	alice, bob, router := vip(t, "alice"), vip(t, "bob"), vip(t, "router")
	fl := &fakeLink{inbox: []wire.Packet{{SrcVIP: alice, DstVIP: bob, TTL: 5, Segment: []byte("x")}}}
	r := NewRouter(fl, router, map[addr.VIP]addr.VIP{bob: bob})

	_, _, ok := r.Receive()
	if ok {
		t.Fatalf("router must never deliver locally")
	}
	if len(fl.sent) != 1 || fl.sent[0].TTL != 4 {
		t.Fatalf("expected forwarded packet with TTL 4, got %+v", fl.sent)
	}
	if r.Forwarded() != 1 {
		t.Fatalf("expected Forwarded()=1, got %d", r.Forwarded())
	}
}

func TestRouterForwardsTTLOneAsZero(t *testing.T) {
	alice, bob, router := vip(t, "alice"), vip(t, "bob"), vip(t, "router")
	fl := &fakeLink{inbox: []wire.Packet{{SrcVIP: alice, DstVIP: bob, TTL: 1, Segment: []byte("x")}}}
	r := NewRouter(fl, router, map[addr.VIP]addr.VIP{bob: bob})

	r.Receive()
	if len(fl.sent) != 1 || fl.sent[0].TTL != 0 {
		t.Fatalf("expected TTL=1 to be forwarded with TTL=0, got %+v", fl.sent)
	}
	if r.Forwarded() != 1 {
		t.Fatalf("expected Forwarded()=1, got %d", r.Forwarded())
	}
}

func TestRouterDropsOnTTLExpiry(t *testing.T) {
	alice, bob, router := vip(t, "alice"), vip(t, "bob"), vip(t, "router")
	fl := &fakeLink{inbox: []wire.Packet{{SrcVIP: alice, DstVIP: bob, TTL: 0, Segment: []byte("x")}}}
	r := NewRouter(fl, router, map[addr.VIP]addr.VIP{bob: bob})

	r.Receive()
	if len(fl.sent) != 0 {
		t.Fatalf("expected no forward on TTL expiry, got %+v", fl.sent)
	}
	if r.DroppedTTL() != 1 {
		t.Fatalf("expected DroppedTTL()=1, got %d", r.DroppedTTL())
	}
}

func TestRouterDropsOnUnknownDestination(t *testing.T) {
	alice, ghost, router := vip(t, "alice"), vip(t, "ghost"), vip(t, "router")
	fl := &fakeLink{inbox: []wire.Packet{{SrcVIP: alice, DstVIP: ghost, TTL: 5, Segment: []byte("x")}}}
	r := NewRouter(fl, router, map[addr.VIP]addr.VIP{})

	r.Receive()
	if r.DroppedUnknown() != 1 {
		t.Fatalf("expected DroppedUnknown()=1, got %d", r.DroppedUnknown())
	}
	if r.Stats().Total() != 1 {
		t.Fatalf("expected Stats().Total()=1, got %d", r.Stats().Total())
	}
}
