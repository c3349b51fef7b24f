package realip

import (
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestTrustedProxies_IsTrusted(t *testing.T) {
	tp, invalid := NewTrustedProxies([]string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "192.0.2.7", "not-an-ip"})
	if len(invalid) != 1 || invalid[0] != "not-an-ip" {
		t.Errorf("expected not-an-ip to be reported invalid, got %v", invalid)
	}

	tests := []struct {
		ip      string
		trusted bool
	}{
		{"127.0.0.1", true},
		{"10.255.255.255", true},
		{"192.0.2.7", true},
		{"192.0.2.8", false},
		{"8.8.8.8", false},
		{"::1", true},
		{"::2", false},
		{"::ffff:127.0.0.1", true},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := tp.IsTrusted(netip.MustParseAddr(tt.ip)); got != tt.trusted {
				t.Errorf("IsTrusted(%s) = %v, want %v", tt.ip, got, tt.trusted)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tp, _ := NewTrustedProxies([]string{"127.0.0.0/8"})

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct untrusted ignores header", "192.168.1.100:12345", "8.8.8.8", "", "192.168.1.100"},
		{"trusted takes first hop", "127.0.0.1:12345", "8.8.8.8, 10.0.0.1", "", "8.8.8.8"},
		{"trusted skips garbage hop", "127.0.0.1:12345", "garbage, 9.9.9.9", "", "9.9.9.9"},
		{"trusted falls back to x-real-ip", "127.0.0.1:12345", "", "1.2.3.4", "1.2.3.4"},
		{"trusted without headers", "127.0.0.1:12345", "", "", "127.0.0.1"},
		{"ipv6 remote", "[2001:db8::1]:443", "", "", "2001:db8::1"},
		{"unparseable remote", "pipe", "", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/download/x", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := tp.ClientIP(req); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIP_NoTrustedProxies(t *testing.T) {
	tp, _ := NewTrustedProxies(nil)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "127.0.0.1:1"
	req.Header.Set("X-Forwarded-For", "8.8.8.8")

	if got := tp.ClientIP(req); got != "127.0.0.1" {
		t.Errorf("got %s, want 127.0.0.1", got)
	}
}
