// Package discovery advertises climanode nodes over mDNS and finds them.
//
// A running node registers a "_climanode._tcp" service on its UI port with
// TXT records describing it. The operator utility browses for that service
// type to list nodes on the local network.
//
// # Usage Example
//
//	// On the node
//	adv, err := discovery.Advertise("greenhouse-1", 8080, discovery.NodeText("v1.2.0", 48, 45))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer adv.Shutdown()
//
//	// On the operator machine
//	nodes, err := discovery.NewScanner().Scan(ctx)
//	for _, n := range nodes {
//	    fmt.Println(n.Instance, n.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Nodes must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
