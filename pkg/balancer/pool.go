package balancer

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Options configures pool construction.
type Options struct {
	// Proxies lists upstream proxy URLs; one client is built per proxy.
	Proxies []string

	// DisableDirect omits the direct (non-proxied) client. Ignored when
	// no proxies are configured, since the pool must not be empty.
	DisableDirect bool

	// CookieStore attaches an in-memory cookie jar to every client.
	CookieStore bool

	// Interface is the local IP address to bind outgoing connections to.
	Interface string

	// IPv6Subnet is a CIDR prefix; when set, the direct client binds a
	// random address inside it.
	IPv6Subnet string

	// Timeout is the whole-request client timeout.
	Timeout time.Duration

	// ConnectTimeout bounds dial time.
	ConnectTimeout time.Duration

	// TCPKeepalive is the dialer keepalive interval.
	TCPKeepalive time.Duration

	// PoolIdleTimeout is how long idle connections are kept.
	PoolIdleTimeout time.Duration

	Logger *slog.Logger
}

// Pool is a fixed set of pre-built HTTP clients handed out round-robin.
// It is safe for concurrent use.
type Pool struct {
	clients []*http.Client
	ids     []string
	counter atomic.Int64
}

// New builds the client pool. It returns an error if the result would be
// empty or any proxy URL is invalid; the caller treats that as fatal,
// since a gateway with no outbound client cannot function.
func New(opts Options) (*Pool, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "balancer")

	p := &Pool{}

	for _, raw := range opts.Proxies {
		proxyURL, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", raw, err)
		}
		client, err := buildClient(opts, http.ProxyURL(proxyURL), nil)
		if err != nil {
			return nil, err
		}
		p.add(client, logger, "proxy", proxyURL.Redacted())
	}

	if !opts.DisableDirect || len(p.clients) == 0 {
		localAddr, err := resolveLocalAddr(opts)
		if err != nil {
			return nil, err
		}
		client, err := buildClient(opts, nil, localAddr)
		if err != nil {
			return nil, err
		}
		p.add(client, logger, "proxy", "direct")
	}

	if len(p.clients) == 0 {
		return nil, fmt.Errorf("client pool is empty: no proxies configured and direct connections disabled")
	}

	return p, nil
}

// Next returns the next client in round-robin order. Clients are shared
// handles; callers must not mutate them.
func (p *Pool) Next() *http.Client {
	if len(p.clients) == 1 {
		return p.clients[0]
	}

	count := p.counter.Add(1) - 1
	if count >= 1_000_000_000 {
		p.counter.CompareAndSwap(count+1, 0)
		count = 0
	}
	return p.clients[int(count%int64(len(p.clients)))]
}

// Size returns the number of clients in the pool.
func (p *Pool) Size() int {
	return len(p.clients)
}

func (p *Pool) add(client *http.Client, logger *slog.Logger, args ...any) {
	id := uuid.NewString()[:8]
	p.clients = append(p.clients, client)
	p.ids = append(p.ids, id)
	logger.Debug("outbound client built", append([]any{"client_id", id}, args...)...)
}

func buildClient(opts Options, proxy func(*http.Request) (*url.URL, error), localAddr net.Addr) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   opts.ConnectTimeout,
		KeepAlive: opts.TCPKeepalive,
		LocalAddr: localAddr,
	}

	transport := &http.Transport{
		Proxy:             proxy,
		DialContext:       dialer.DialContext,
		IdleConnTimeout:   opts.PoolIdleTimeout,
		ForceAttemptHTTP2: true,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   opts.Timeout,
	}

	if opts.CookieStore {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	return client, nil
}

// resolveLocalAddr picks the bind address for the direct client: a random
// address inside the configured IPv6 subnet if one is set, otherwise the
// configured interface address, otherwise none.
func resolveLocalAddr(opts Options) (net.Addr, error) {
	if opts.IPv6Subnet != "" {
		_, prefix, err := net.ParseCIDR(opts.IPv6Subnet)
		if err != nil {
			return nil, fmt.Errorf("invalid IPv6 subnet %q: %w", opts.IPv6Subnet, err)
		}
		ip, err := randomAddrInSubnet(prefix)
		if err != nil {
			return nil, err
		}
		return &net.TCPAddr{IP: ip}, nil
	}

	if opts.Interface != "" {
		ip := net.ParseIP(opts.Interface)
		if ip == nil {
			return nil, fmt.Errorf("invalid interface address %q", opts.Interface)
		}
		return &net.TCPAddr{IP: ip}, nil
	}

	return nil, nil
}

// randomAddrInSubnet returns a uniformly random address inside prefix,
// keeping the network bits and randomizing the host bits.
func randomAddrInSubnet(prefix *net.IPNet) (net.IP, error) {
	ip := prefix.IP.To16()
	if ip == nil {
		return nil, fmt.Errorf("subnet %q is not an IPv6 prefix", prefix.String())
	}

	buf := make([]byte, net.IPv6len)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate random host bits: %w", err)
	}

	mask := prefix.Mask
	out := make(net.IP, net.IPv6len)
	for i := 0; i < net.IPv6len; i++ {
		out[i] = ip[i]&mask[i] | buf[i]&^mask[i]
	}
	return out, nil
}
