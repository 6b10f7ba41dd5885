package resolver

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtnet/rrdns/dnsmsg"
)

// newFakeUpstream starts a UDP listener on the loopback device that answers
// every decodable query through handle. It returns the listen address.
func newFakeUpstream(t *testing.T, handle func(query *dnsmsg.Message) *dnsmsg.Message) string {
	t.Helper()

	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, dnsmsg.MaxDatagramSize)
		for {
			n, client, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			query, err := dnsmsg.Unpack(buf[:n])
			if err != nil {
				continue
			}
			resp := handle(query)
			if resp == nil {
				continue
			}
			packed, err := resp.Pack()
			if err != nil {
				continue
			}
			_, _ = conn.WriteToUDP(packed, client)
		}
	}()
	return conn.LocalAddr().String()
}

// overrideDefaultPort points bare-address hints, eg. from glue records, at
// the fake upstream. Tests using this must not run in parallel.
func overrideDefaultPort(t *testing.T, addr string) {
	t.Helper()

	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	orig := defaultDNSPort
	defaultDNSPort = port
	t.Cleanup(func() { defaultDNSPort = orig })
}

func responseTo(query *dnsmsg.Message) *dnsmsg.Message {
	return &dnsmsg.Message{
		Header: dnsmsg.Header{
			Ident:    query.Header.Ident,
			Response: true,
		},
		Questions: query.Questions,
	}
}

func nsRecord(owner, server string) *dnsmsg.ResourceRecord {
	return dnsmsg.NewRecord(
		dnsmsg.ParseName(owner),
		dnsmsg.TypeNS, dnsmsg.ClassIN, 3600,
		dnsmsg.NSData{Server: dnsmsg.ParseName(server)},
	)
}

func cnameRecord(owner, target string) *dnsmsg.ResourceRecord {
	return dnsmsg.NewRecord(
		dnsmsg.ParseName(owner),
		dnsmsg.TypeCNAME, dnsmsg.ClassIN, 300,
		dnsmsg.CNAMEData{Target: dnsmsg.ParseName(target)},
	)
}

func TestResolveWithReferrals(t *testing.T) {
	var step atomic.Int32
	addr := newFakeUpstream(t, func(query *dnsmsg.Message) *dnsmsg.Message {
		resp := responseTo(query)
		switch step.Add(1) {
		case 1: // root: refer to the com. servers
			resp.Authorities = []*dnsmsg.ResourceRecord{nsRecord("com.", "ns.tld.")}
			resp.Additionals = []*dnsmsg.ResourceRecord{aRecord("ns.tld.", "127.0.0.1", 3600)}
		case 2: // com.: refer to the example.com. servers
			resp.Authorities = []*dnsmsg.ResourceRecord{nsRecord("example.com.", "ns.example.com.")}
			resp.Additionals = []*dnsmsg.ResourceRecord{aRecord("ns.example.com.", "127.0.0.1", 3600)}
		default: // authoritative answer
			resp.Header.Authoritative = true
			resp.Answers = []*dnsmsg.ResourceRecord{aRecord("host.example.com.", "192.0.2.7", 300)}
		}
		return resp
	})
	overrideDefaultPort(t, addr)

	r := New(Config{Roots: []string{addr}, Timeout: time.Second})
	name, aliases, addrs, err := r.Resolve(context.Background(), "host.example.com", 400)
	require.NoError(t, err)
	assert.Equal(t, "host.example.com.", name)
	assert.Empty(t, aliases)
	assert.Equal(t, []string{"192.0.2.7"}, addrs)
	assert.Equal(t, int32(3), step.Load())
}

func TestResolveChasesAliases(t *testing.T) {
	var mu sync.Mutex
	queried := make(map[string]int)
	addr := newFakeUpstream(t, func(query *dnsmsg.Message) *dnsmsg.Message {
		resp := responseTo(query)
		hostname := query.Questions[0].Name.String()
		mu.Lock()
		queried[hostname]++
		mu.Unlock()
		switch hostname {
		case "www.example.com.":
			// Alias only: the resolver has to restart for the target, using
			// the servers named alongside the answer.
			resp.Answers = []*dnsmsg.ResourceRecord{cnameRecord("www.example.com.", "host.example.com.")}
			resp.Authorities = []*dnsmsg.ResourceRecord{nsRecord("example.com.", "ns.example.com.")}
			resp.Additionals = []*dnsmsg.ResourceRecord{aRecord("ns.example.com.", "127.0.0.1", 3600)}
		case "host.example.com.":
			resp.Answers = []*dnsmsg.ResourceRecord{aRecord("host.example.com.", "192.0.2.7", 300)}
		}
		return resp
	})
	overrideDefaultPort(t, addr)

	r := New(Config{Roots: []string{addr}, Timeout: time.Second})
	name, aliases, addrs, err := r.Resolve(context.Background(), "www.example.com.", 401)
	require.NoError(t, err)
	assert.Equal(t, "host.example.com.", name)
	assert.Equal(t, []string{"www.example.com."}, aliases)
	assert.Equal(t, []string{"192.0.2.7"}, addrs)
	mu.Lock()
	assert.Equal(t, 1, queried["www.example.com."])
	assert.Equal(t, 1, queried["host.example.com."])
	mu.Unlock()
}

func TestResolveSkipsBadResponses(t *testing.T) {
	var step atomic.Int32
	addr := newFakeUpstream(t, func(query *dnsmsg.Message) *dnsmsg.Message {
		resp := responseTo(query)
		switch step.Add(1) {
		case 1:
			// Identifier mismatch: the resolver must reject this response and
			// move on to the next hint.
			resp.Header.Ident++
		case 2:
			resp.Header.RCode = dnsmsg.RCodeServerFailure
		default:
			resp.Answers = []*dnsmsg.ResourceRecord{aRecord("host.example.com.", "192.0.2.7", 300)}
		}
		return resp
	})

	r := New(Config{Roots: []string{addr, addr, addr}, Timeout: time.Second})
	_, _, addrs, err := r.Resolve(context.Background(), "host.example.com.", 402)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.7"}, addrs)
	assert.Equal(t, int32(3), step.Load())
}

func TestResolveExhaustedHints(t *testing.T) {
	addr := newFakeUpstream(t, func(query *dnsmsg.Message) *dnsmsg.Message {
		// Valid but empty: no answers, no referral.
		return responseTo(query)
	})

	r := New(Config{Roots: []string{addr}, Timeout: time.Second})
	name, aliases, addrs, err := r.Resolve(context.Background(), "nowhere.example.com.", 403)
	require.NoError(t, err)
	assert.Equal(t, "nowhere.example.com.", name)
	assert.Empty(t, aliases)
	assert.Empty(t, addrs)
}

func TestResolveUsesIdent(t *testing.T) {
	addr := newFakeUpstream(t, func(query *dnsmsg.Message) *dnsmsg.Message {
		assert.Equal(t, uint16(0xBEEF), query.Header.Ident)
		assert.False(t, query.Header.RecursionDesired)
		resp := responseTo(query)
		resp.Answers = []*dnsmsg.ResourceRecord{aRecord("host.example.com.", "192.0.2.7", 300)}
		return resp
	})

	r := New(Config{Roots: []string{addr}, Timeout: time.Second})
	_, _, addrs, err := r.Resolve(context.Background(), "host.example.com.", 0xBEEF)
	require.NoError(t, err)
	assert.Len(t, addrs, 1)
}

func TestResolvePopulatesCache(t *testing.T) {
	var queries atomic.Int32
	addr := newFakeUpstream(t, func(query *dnsmsg.Message) *dnsmsg.Message {
		queries.Add(1)
		resp := responseTo(query)
		resp.Answers = []*dnsmsg.ResourceRecord{aRecord("host.example.com.", "192.0.2.7", 300)}
		return resp
	})

	cache := NewRecordCache(0)
	r := New(Config{Roots: []string{addr}, Cache: cache, Timeout: time.Second})

	_, _, addrs, err := r.Resolve(context.Background(), "host.example.com.", 404)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.7"}, addrs)
	assert.Equal(t, int32(1), queries.Load())

	// The second resolution is served from the cache without any traffic.
	_, _, addrs, err = r.Resolve(context.Background(), "host.example.com.", 405)
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.7"}, addrs)
	assert.Equal(t, int32(1), queries.Load())
}

func TestResolveCachedAliasChain(t *testing.T) {
	t.Parallel()

	cache := NewRecordCache(0)
	cache.Add(cnameRecord("a.example.com.", "b.example.com."))
	cache.Add(cnameRecord("b.example.com.", "c.example.com."))
	cache.Add(aRecord("c.example.com.", "192.0.2.3", 300))

	// No roots: everything has to come out of the cache.
	r := New(Config{Cache: cache, Timeout: time.Second})
	name, aliases, addrs, err := r.Resolve(context.Background(), "a.example.com.", 406)
	require.NoError(t, err)
	assert.Equal(t, "c.example.com.", name)
	assert.Equal(t, []string{"a.example.com.", "b.example.com."}, aliases)
	assert.Equal(t, []string{"192.0.2.3"}, addrs)
}

func TestResolveExpiredCacheEntry(t *testing.T) {
	t.Parallel()

	cache := NewRecordCache(0)
	stale := aRecord("host.example.com.", "192.0.2.1", 30)
	stale.Timestamp = time.Now().Add(-time.Minute)
	cache.Add(stale)

	r := New(Config{Cache: cache, Timeout: time.Second})
	_, _, addrs, err := r.Resolve(context.Background(), "host.example.com.", 407)
	require.NoError(t, err)
	assert.Empty(t, addrs)
}

func TestCachedHints(t *testing.T) {
	t.Parallel()

	cache := NewRecordCache(0)
	cache.Add(nsRecord("example.com.", "ns1.example.com."))
	cache.Add(nsRecord("example.com.", "ns2.example.com."))
	cache.Add(aRecord("ns1.example.com.", "192.0.2.1", 3600))

	r := New(Config{Cache: cache, Timeout: time.Second})

	// The known address comes first, the server without one keeps its name.
	hints := r.cachedHints("deep.sub.example.com.")
	require.Len(t, hints, 2)
	assert.Equal(t, "192.0.2.1", hints[0])
	assert.Equal(t, "ns2.example.com.", hints[1])

	assert.Empty(t, r.cachedHints("other.org."))
}

func TestResolveCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(Config{Roots: []string{"192.0.2.1:53"}, Timeout: time.Second})
	_, _, addrs, err := r.Resolve(ctx, "host.example.com.", 408)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, addrs)
}

func TestResolveInternet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test")
	}

	r := New(Config{
		// a.root-servers.net and b.root-servers.net
		Roots:   []string{"198.41.0.4", "170.247.170.2"},
		Cache:   NewRecordCache(0),
		Timeout: 5 * time.Second,
	})
	name, _, addrs, err := r.Resolve(context.Background(), "gaia.cs.umass.edu.", 409)
	require.NoError(t, err)
	assert.Equal(t, "gaia.cs.umass.edu.", name)
	assert.Contains(t, addrs, "128.119.245.12")
}
