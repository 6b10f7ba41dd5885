// Package resolver implements iterative name resolution per RFC 1034 §5.3.3
// together with the shared, TTL-bounded record cache feeding it.
//
// A resolution walks from the root hints (or closer cached NS hints) towards
// an authoritative answer, following referrals and chasing CNAME chains.
// Failed upstream exchanges are recovered by advancing to the next hint;
// running out of hints is a normal "not found" outcome, not an error.
package resolver

import (
	"context"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/veldtnet/rrdns/dnsmsg"
)

const (
	defaultTimeout = 5 * time.Second

	// Upper bound on CNAME hops per resolution. The wire protocol cannot
	// prevent alias loops, so the chase has to.
	maxAliasChain = 16
)

// Config assembles a Resolver.
type Config struct {
	// Roots is the bootstrap hint list: root name-server addresses, usually
	// from zone.RootHints.
	Roots []string

	// Cache enables caching when set. The cache may be shared with other
	// resolvers and with the nameserver.
	Cache *RecordCache

	// Timeout bounds each single upstream exchange. Zero means 5s.
	Timeout time.Duration
}

// Resolver resolves hostnames to IPv4 addresses iteratively. Resolvers are
// stateless besides the shared cache and are safe for concurrent use; every
// resolution owns its upstream sockets.
type Resolver struct {
	roots   []string
	cache   *RecordCache
	timeout time.Duration
}

// New returns a resolver for the given configuration.
func New(c Config) *Resolver {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Resolver{
		roots:   slices.Clone(c.Roots),
		cache:   c.Cache,
		timeout: timeout,
	}
}

// Resolve translates a hostname to IPv4 addresses. It returns the final
// (CNAME-chased) name, the chain of aliases leading to it, and the found
// addresses. Empty alias and address lists mean the name was not found;
// errors only ever come from the passed context.
//
// The ident is used as the identifier of all upstream queries of this
// resolution, so responses cannot be confused across concurrent resolutions
// on behalf of different clients.
func (r *Resolver) Resolve(ctx context.Context, hostname string, ident uint16) (finalName string, aliases, addrs []string, err error) {
	hostname = dnsmsg.ParseName(hostname).String()
	finalName, aliases, addrs = r.resolve(ctx, hostname, slices.Clone(r.roots), nil, ident)
	return finalName, aliases, addrs, ctx.Err()
}

func (r *Resolver) resolve(ctx context.Context, hostname string, hints, aliases []string, ident uint16) (string, []string, []string) {
	if r.cache != nil {
		var addrs []string
		hostname, aliases, addrs = r.cachedAnswer(hostname, aliases)
		if len(addrs) > 0 {
			cacheHits.Inc()
			return hostname, aliases, addrs
		}
		cacheMisses.Inc()

		if cached := r.cachedHints(hostname); len(cached) > 0 {
			hints = cached
		}
	}

	for len(hints) > 0 && ctx.Err() == nil {
		server := hints[0]
		hints = hints[1:]

		query, resp := r.exchange(ctx, hostname, server, ident)
		if !validResponse(query, resp) {
			continue
		}

		if len(resp.Answers) > 0 {
			var addrs []string
			hostname, aliases, addrs = r.extractAnswers(resp, hostname, aliases)
			if len(addrs) > 0 {
				return hostname, aliases, addrs
			}
			if len(aliases) > maxAliasChain {
				slog.Debug("resolver: giving up on alias chain", "hostname", hostname, "hops", len(aliases))
				return hostname, nil, nil
			}
			// Only an alias, no address yet: restart for the canonical name
			// with the referred-to servers, falling back to the roots.
			return r.resolve(ctx, hostname, append(r.referralHints(resp), r.roots...), aliases, ident)
		}

		// Referral without an answer: try the referred-to servers first.
		hints = append(r.referralHints(resp), hints...)
	}

	return hostname, nil, nil
}

// exchange sends a single type-A query to the given server and waits for
// one datagram. It returns the query and, if one arrived and decoded, the
// response. All failures are local to this one hint.
func (r *Resolver) exchange(ctx context.Context, hostname, server string, ident uint16) (query, resp *dnsmsg.Message) {
	query = dnsmsg.NewQuery(ident, dnsmsg.Question{
		Name:  dnsmsg.ParseName(hostname),
		Type:  dnsmsg.TypeA,
		Class: dnsmsg.ClassIN,
	})
	packed, err := query.Pack()
	if err != nil {
		slog.Warn("resolver: failed to pack query", "hostname", hostname, "err", err)
		return query, nil
	}
	queriesTotal.Inc()

	// Hints may be bare server names; net.Dial then resolves them via the
	// OS, mirroring a sendto with a hostname.
	dialer := net.Dialer{Timeout: r.timeout}
	conn, err := dialer.DialContext(ctx, "udp", serverAddress(server))
	if err != nil {
		slog.Debug("resolver: cannot reach name server", "server", server, "err", err)
		return query, nil
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(r.timeout))
	if _, err := conn.Write(packed); err != nil {
		slog.Debug("resolver: query send failed", "server", server, "err", err)
		return query, nil
	}

	buf := make([]byte, dnsmsg.MaxDatagramSize)
	n, err := conn.Read(buf)
	if err != nil {
		slog.Debug("resolver: no response", "server", server, "err", err)
		return query, nil
	}
	resp, err = dnsmsg.Unpack(buf[:n])
	if err != nil {
		slog.Debug("resolver: discarding malformed response", "server", server, "err", err)
		return query, nil
	}
	return query, resp
}

// validResponse reports whether resp answers query: response flag set, no
// error code, and identifier and question section echoing the query's.
func validResponse(query, resp *dnsmsg.Message) bool {
	if resp == nil ||
		!resp.Header.Response ||
		resp.Header.RCode != dnsmsg.RCodeNoError ||
		resp.Header.Ident != query.Header.Ident ||
		len(resp.Questions) != len(query.Questions) {
		return false
	}
	for i, q := range query.Questions {
		if !resp.Questions[i].Equal(q) {
			return false
		}
	}
	return true
}

// extractAnswers walks the answer section for records owned by the current
// hostname: CNAMEs extend the alias chain and move the hostname along, A
// records accumulate addresses. Every extracted record is cached.
func (r *Resolver) extractAnswers(resp *dnsmsg.Message, hostname string, aliases []string) (string, []string, []string) {
	var addrs []string
	for _, rr := range resp.Answers {
		if rr.Name.String() != hostname {
			continue
		}
		switch rr.Type {
		case dnsmsg.TypeCNAME:
			aliases = append(aliases, hostname)
			hostname = rr.Data.String()
		case dnsmsg.TypeA:
			addrs = append(addrs, rr.Data.String())
		}
		r.cacheAdd(rr)
	}
	return hostname, aliases, addrs
}

// referralHints extracts the name servers of a referral from the authority
// section. Glue A records from the additional section replace the bare
// server name and move it to the front of the list: known addresses are
// preferred over names that would need their own lookup first.
func (r *Resolver) referralHints(resp *dnsmsg.Message) []string {
	var servers []string
	for _, rr := range resp.Authorities {
		if rr.Type == dnsmsg.TypeNS {
			servers = append(servers, rr.Data.String())
			r.cacheAdd(rr)
		}
	}

	for i := len(resp.Additionals) - 1; i >= 0; i-- {
		rr := resp.Additionals[i]
		if rr.Type != dnsmsg.TypeA {
			continue
		}
		if idx := slices.Index(servers, rr.Name.String()); idx >= 0 {
			addr := rr.Data.String()
			servers = slices.Delete(servers, idx, idx+1)
			servers = slices.Insert(servers, 0, addr)
		}
		r.cacheAdd(rr)
	}
	return servers
}

// cachedAnswer chases the cached CNAME chain rooted at hostname and returns
// any cached addresses of the final name. Finding addresses here is an
// authoritative short-circuit, no network I/O happens.
func (r *Resolver) cachedAnswer(hostname string, aliases []string) (string, []string, []string) {
	for hops := 0; hops < maxAliasChain; hops++ {
		set := r.cache.Lookup(hostname, dnsmsg.TypeCNAME, dnsmsg.ClassIN)
		if len(set) == 0 {
			break
		}
		aliases = append(aliases, hostname)
		hostname = set[0].Data.String()
	}

	var addrs []string
	for _, rr := range r.cache.Lookup(hostname, dnsmsg.TypeA, dnsmsg.ClassIN) {
		addrs = append(addrs, rr.Data.String())
	}
	return hostname, aliases, addrs
}

// cachedHints searches the cache for NS records starting at the full name
// and walking up the hierarchy one label at a time. For every server found,
// a cached address is preferred over the bare name.
func (r *Resolver) cachedHints(hostname string) []string {
	name := dnsmsg.ParseName(hostname)
	for depth := name.LabelCount(); depth >= 1; depth-- {
		domain := name.Suffix(depth).String()

		var hints []string
		set := r.cache.Lookup(domain, dnsmsg.TypeNS, dnsmsg.ClassIN)
		for i := len(set) - 1; i >= 0; i-- {
			server := set[i].Data.String()
			aSet := r.cache.Lookup(server, dnsmsg.TypeA, dnsmsg.ClassIN)
			if len(aSet) == 0 {
				hints = append(hints, server)
				continue
			}
			var ips []string
			for _, rr := range aSet {
				ips = append(ips, rr.Data.String())
			}
			hints = append(ips, hints...)
		}

		if len(hints) > 0 {
			slog.Debug("resolver: using cached hints", "domain", domain, "hints", len(hints))
			return hints
		}
	}
	return nil
}

func (r *Resolver) cacheAdd(rr *dnsmsg.ResourceRecord) {
	if r.cache != nil {
		r.cache.Add(rr)
	}
}

// defaultDNSPort is used for hints that do not carry an explicit port.
var defaultDNSPort = "53"

func serverAddress(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.TrimSuffix(server, "."), defaultDNSPort)
}
