package discovery

import (
	"net"
	"testing"

	"github.com/grandcat/zeroconf"
)

func entry(instance, host string, port int, v4, v6 []net.IP, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, ServiceType, ServiceDomain)
	e.HostName = host
	e.Port = port
	e.AddrIPv4 = v4
	e.AddrIPv6 = v6
	e.Text = txt
	return e
}

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name:     "ipv4 node",
			entry:    entry("greenhouse-1", "pi.local.", 8080, []net.IP{net.ParseIP("192.168.1.20")}, nil, "version=v1.0.0", "path=/"),
			wantIP:   "192.168.1.20",
			wantPort: 8080,
		},
		{
			name:     "prefers ipv4",
			entry:    entry("lab", "lab.local.", 80, []net.IP{net.ParseIP("10.0.0.2")}, []net.IP{net.ParseIP("fe80::2")}),
			wantIP:   "10.0.0.2",
			wantPort: 80,
		},
		{
			name:     "ipv6 only",
			entry:    entry("lab6", "lab6.local.", 80, nil, []net.IP{net.ParseIP("fe80::1")}),
			wantIP:   "fe80::1",
			wantPort: 80,
		},
		{
			name:    "no address",
			entry:   entry("ghost", "ghost.local.", 80, nil, nil),
			wantNil: true,
		},
		{
			name:    "no port",
			entry:   entry("noport", "np.local.", 0, []net.IP{net.ParseIP("10.0.0.3")}, nil),
			wantNil: true,
		},
		{
			name:    "no instance",
			entry:   entry("", "x.local.", 80, []net.IP{net.ParseIP("10.0.0.4")}, nil),
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseServiceEntry(tt.entry)
			if tt.wantNil {
				if got != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("parseServiceEntry() = nil")
			}
			if got.IP != tt.wantIP || got.Port != tt.wantPort {
				t.Errorf("got %s:%d, want %s:%d", got.IP, got.Port, tt.wantIP, tt.wantPort)
			}
		})
	}
}

func TestParseServiceEntryMetadata(t *testing.T) {
	e := entry("greenhouse-1", "pi.local.", 8080, []net.IP{net.ParseIP("192.168.1.20")}, nil, NodeText("v1.2.0", 48, 45)...)
	e.Text = append(e.Text, "flag")

	node := parseServiceEntry(e)
	if node == nil {
		t.Fatal("node is nil")
	}
	if node.Version() != "v1.2.0" || node.GetMetadata("led") != "48" || node.GetMetadata("neo") != "45" {
		t.Errorf("metadata = %v", node.Metadata)
	}
	if _, ok := node.Metadata["flag"]; !ok {
		t.Error("key without value not recorded")
	}
}

func TestNodeFormatting(t *testing.T) {
	n := &Node{Instance: "greenhouse-1", Hostname: "pi.local.", IP: "192.168.1.20", Port: 8080}
	if got := n.BaseURL(); got != "http://192.168.1.20:8080" {
		t.Errorf("BaseURL() = %s", got)
	}
	if got := n.String(); got != "climanode greenhouse-1 (pi.local.) at 192.168.1.20:8080" {
		t.Errorf("String() = %s", got)
	}

	v6 := &Node{IP: "fe80::1", Port: 80}
	if got := v6.BaseURL(); got != "http://[fe80::1]:80" {
		t.Errorf("BaseURL() = %s", got)
	}
	if (&Node{}).GetMetadata("x") != "" {
		t.Error("GetMetadata on nil map")
	}
}

func TestNewScanner(t *testing.T) {
	if NewScanner().Timeout != DefaultScanTimeout {
		t.Error("unexpected default timeout")
	}
}
