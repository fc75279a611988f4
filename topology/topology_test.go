package topology

import "testing"

func TestRegistryEndHostRoutesThroughRouter(t *testing.T) {
	top, err := Registry("127.0.0.1", 30000)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}

	alice := top.Hosts[Alice]
	router := top.Hosts[Router]

	if alice.ARPTable[router.VAddr.VIP] != router.MAC {
		t.Error("alice's ARP table should resolve the router's VIP to the router's MAC")
	}
	if alice.RoutingTable[top.Hosts[Bob].VAddr.VIP] != router.VAddr.VIP {
		t.Error("alice's default route to bob should be the router")
	}
}

func TestRegistryRouterKnowsAllEndHosts(t *testing.T) {
	top, err := Registry("127.0.0.1", 30000)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	router := top.Hosts[Router]

	for _, name := range []HostName{Alice, Bob, Server} {
		host := top.Hosts[name]
		if router.ARPTable[host.VAddr.VIP] != host.MAC {
			t.Errorf("router ARP table missing direct entry for %s", name)
		}
		if router.RoutingTable[host.VAddr.VIP] != host.VAddr.VIP {
			t.Errorf("router routing table should map %s directly to itself", name)
		}
	}
}

func TestRegistryMACTableCoversEveryHost(t *testing.T) {
	top, err := Registry("127.0.0.1", 30000)
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	if len(top.MACTable) != 4 {
		t.Errorf("MAC table should have 4 entries, got %d", len(top.MACTable))
	}
	for name, host := range top.Hosts {
		if _, ok := top.MACTable[host.MAC]; !ok {
			t.Errorf("MAC table missing entry for host %s", name)
		}
	}
}
