package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Node represents a discovered climanode instance on the network
type Node struct {
	// Instance is the advertised instance name (e.g., "greenhouse-1")
	Instance string

	// Hostname is the mDNS hostname (e.g., "raspberrypi.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when no IPv4 was advertised
	IP string

	// Port is the UI server port
	Port int

	// Metadata contains the TXT record data ("version", "path", "led", "neo")
	Metadata map[string]string

	// DiscoveredAt is when the node was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the node
func (n *Node) String() string {
	return fmt.Sprintf("climanode %s (%s) at %s", n.Instance, n.Hostname, net.JoinHostPort(n.IP, strconv.Itoa(n.Port)))
}

// BaseURL returns the HTTP base URL for the node
func (n *Node) BaseURL() string {
	return "http://" + net.JoinHostPort(n.IP, strconv.Itoa(n.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (n *Node) GetMetadata(key string) string {
	if n.Metadata == nil {
		return ""
	}
	return n.Metadata[key]
}

// Version returns the advertised software version.
func (n *Node) Version() string {
	return n.GetMetadata("version")
}
