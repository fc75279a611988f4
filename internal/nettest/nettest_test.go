package nettest

import "testing"

func TestScriptedChannelFollowsScript(t *testing.T) {
	ch := NewScriptedChannel(ActionDrop, ActionPass, ActionDuplicate)

	if out := ch.Apply([]byte("a")); out != nil {
		t.Fatalf("expected first call to drop, got %v", out)
	}
	if out := ch.Apply([]byte("b")); len(out) != 1 || string(out[0]) != "b" {
		t.Fatalf("expected second call to pass through once, got %v", out)
	}
	if out := ch.Apply([]byte("c")); len(out) != 2 {
		t.Fatalf("expected third call to duplicate, got %v", out)
	}
	if out := ch.Apply([]byte("d")); len(out) != 1 || string(out[0]) != "d" {
		t.Fatalf("expected calls past the script to pass through, got %v", out)
	}
}

func TestScriptedChannelCorrupt(t *testing.T) {
	ch := NewScriptedChannel(ActionCorrupt)
	out := ch.Apply([]byte{0x01, 0x02})
	if len(out) != 1 || out[0][1] == 0x02 {
		t.Fatalf("expected last byte flipped, got %v", out)
	}
}

func TestFakeNetworkPairDeliversAcrossDirections(t *testing.T) {
	a, b := NewFakeNetworkPair(nil, nil)

	if err := a.Send([]byte("ping"), "", "alice"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	data, src, ok := b.Receive()
	if !ok || string(data) != "ping" || src != "alice" {
		t.Fatalf("Receive: got data=%q src=%v ok=%v", data, src, ok)
	}

	if err := b.Send([]byte("pong"), "", "bob"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	data, src, ok = a.Receive()
	if !ok || string(data) != "pong" || src != "bob" {
		t.Fatalf("Receive: got data=%q src=%v ok=%v", data, src, ok)
	}
}

func TestFakeNetworkPairAppliesPerDirectionChannel(t *testing.T) {
	aToB := NewScriptedChannel(ActionDrop)
	a, b := NewFakeNetworkPair(aToB, nil)

	if err := a.Send([]byte("lost"), "", "alice"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	select {
	case <-b.inbox:
		t.Fatal("expected the aToB channel to drop this datagram")
	default:
	}
}
