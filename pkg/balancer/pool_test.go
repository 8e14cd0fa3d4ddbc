package balancer

import (
	"net"
	"testing"
	"time"
)

func baseOptions() Options {
	return Options{
		Timeout:         time.Minute,
		ConnectTimeout:  10 * time.Second,
		TCPKeepalive:    75 * time.Second,
		PoolIdleTimeout: 90 * time.Second,
	}
}

func TestNew_DirectOnly(t *testing.T) {
	p, err := New(baseOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.Size() != 1 {
		t.Errorf("expected 1 direct client, got %d", p.Size())
	}
	if p.Next() == nil {
		t.Error("Next returned nil client")
	}
}

func TestNew_ProxiesPlusDirect(t *testing.T) {
	opts := baseOptions()
	opts.Proxies = []string{
		"http://proxy-a.example.com:8080",
		"socks5://proxy-b.example.com:1080",
	}

	p, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.Size() != 3 {
		t.Errorf("expected 2 proxy clients + 1 direct, got %d", p.Size())
	}
}

func TestNew_DisableDirect(t *testing.T) {
	opts := baseOptions()
	opts.Proxies = []string{"http://proxy.example.com:8080"}
	opts.DisableDirect = true

	p, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.Size() != 1 {
		t.Errorf("expected proxy client only, got %d", p.Size())
	}
}

func TestNew_DisableDirectWithoutProxiesKeepsDirect(t *testing.T) {
	opts := baseOptions()
	opts.DisableDirect = true

	// An empty pool would make the gateway non-functional; the direct
	// client is retained as the only option.
	p, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if p.Size() != 1 {
		t.Errorf("expected fallback direct client, got %d", p.Size())
	}
}

func TestNext_RoundRobin(t *testing.T) {
	opts := baseOptions()
	opts.Proxies = []string{
		"http://proxy-a.example.com:8080",
		"http://proxy-b.example.com:8080",
	}

	p, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// 3 clients in the pool: proxy a, proxy b, direct.
	first := p.Next()
	second := p.Next()
	third := p.Next()

	if first == second || second == third || first == third {
		t.Error("a full cycle should visit every client once")
	}
	if p.Next() != first || p.Next() != second || p.Next() != third {
		t.Error("round-robin order should repeat after a full cycle")
	}
}

func TestNew_InvalidIPv6Subnet(t *testing.T) {
	opts := baseOptions()
	opts.IPv6Subnet = "not-a-cidr"

	if _, err := New(opts); err == nil {
		t.Error("expected error for invalid IPv6 subnet")
	}
}

func TestNew_InvalidInterface(t *testing.T) {
	opts := baseOptions()
	opts.Interface = "nonsense"

	if _, err := New(opts); err == nil {
		t.Error("expected error for invalid interface address")
	}
}

func TestRandomAddrInSubnet(t *testing.T) {
	_, prefix, err := net.ParseCIDR("2001:db8:1234::/48")
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		ip, err := randomAddrInSubnet(prefix)
		if err != nil {
			t.Fatalf("randomAddrInSubnet failed: %v", err)
		}
		if !prefix.Contains(ip) {
			t.Fatalf("generated address %s outside subnet %s", ip, prefix)
		}
		seen[ip.String()] = true
	}
	if len(seen) < 2 {
		t.Error("expected randomized host bits across draws")
	}
}
