package nameserver

import (
	"net"
	"time"

	"github.com/veldtnet/rrdns/dnsmsg"
	"github.com/veldtnet/rrdns/mgr"
)

// Synthesized records built from resolver results carry this TTL.
const resolvedTTL = 60

// Upper bound on CNAME hops chased through zone data.
const maxZoneAliasChain = 16

// handler answers a single query. Every accepted query gets its own
// handler worker, running concurrently with and independent of all others.
type handler struct {
	ns     *NameServer
	query  *dnsmsg.Message
	client *net.UDPAddr
}

// run walks the decision states:
// ReceiveQuery -> {RejectType | ZoneAnswer | ZoneReferral | Refuse | Recurse} -> SendResponse.
func (h *handler) run(w *mgr.WorkerCtx) error {
	startTime := time.Now()
	defer requestsDuration.UpdateDuration(startTime)
	requestsTotal.Inc()

	question := h.query.Questions[0]
	w.Debug("handling query",
		"ident", h.query.Header.Ident,
		"name", question.Name,
		"type", question.Type,
		"client", h.client,
	)

	// Only type A queries are served.
	if question.Type != dnsmsg.TypeA {
		return h.reply(w, response{rcode: dnsmsg.RCodeNotImplemented})
	}

	// Resolve the CNAME chain and the final address set from the zone.
	hostname := question.Name.String()
	hostname, cnames, answers := h.zoneAnswer(hostname)
	authorities, additionals := h.zoneHints(hostname)

	switch {
	case len(answers) > 0:
		// The zone answers: authoritative response with the chased chain.
		return h.reply(w, response{
			answers:       append(cnames, answers...),
			authorities:   authorities,
			additionals:   additionals,
			authoritative: true,
		})

	case !h.query.Header.RecursionDesired:
		if len(cnames) > 0 || len(authorities) > 0 || len(additionals) > 0 {
			// No address, but the zone knows something: non-authoritative
			// partial response pointing the client onwards.
			return h.reply(w, response{
				answers:     cnames,
				authorities: authorities,
				additionals: additionals,
			})
		}
		return h.reply(w, response{rcode: dnsmsg.RCodeRefused})

	default:
		return h.recurse(w, hostname)
	}
}

// zoneAnswer chases the CNAME chain for hostname through the zone and looks
// up the final name's addresses, mirroring the resolver's cache walk but
// against authoritative data. The CNAME records themselves are collected
// for the answer section.
func (h *handler) zoneAnswer(hostname string) (string, []*dnsmsg.ResourceRecord, []*dnsmsg.ResourceRecord) {
	var cnames []*dnsmsg.ResourceRecord
	for hops := 0; hops < maxZoneAliasChain; hops++ {
		set := h.ns.zone.Lookup(hostname, dnsmsg.TypeCNAME)
		if len(set) == 0 {
			break
		}
		cnames = append(cnames, set...)
		hostname = set[0].Data.String()
	}
	return hostname, cnames, h.ns.zone.Lookup(hostname, dnsmsg.TypeA)
}

// zoneHints finds the closest enclosing NS set for hostname in the zone,
// plus the zone's addresses for those servers as glue.
func (h *handler) zoneHints(hostname string) (authorities, additionals []*dnsmsg.ResourceRecord) {
	name := dnsmsg.ParseName(hostname)
	for depth := name.LabelCount(); depth >= 1; depth-- {
		domain := name.Suffix(depth).String()
		authorities = h.ns.zone.Lookup(domain, dnsmsg.TypeNS)
		if len(authorities) == 0 {
			continue
		}
		for _, ns := range authorities {
			additionals = append(additionals, h.ns.zone.Lookup(ns.Data.String(), dnsmsg.TypeA)...)
		}
		return authorities, additionals
	}
	return nil, nil
}

// recurse serves the query through the iterative resolver, reusing the
// client's query ident for the upstream queries so concurrent handlers
// cannot mix up responses.
func (h *handler) recurse(w *mgr.WorkerCtx, hostname string) error {
	finalName, aliases, addrs, err := h.ns.resolver.Resolve(w.Ctx(), hostname, h.query.Header.Ident)
	if err != nil {
		w.Debug("recursion canceled", "hostname", hostname, "err", err)
		return nil
	}
	if len(addrs) == 0 {
		return h.reply(w, response{rcode: dnsmsg.RCodeNameError})
	}

	// Rebuild the alias chain and addresses as records.
	chain := append(aliases, finalName)
	var answers []*dnsmsg.ResourceRecord
	for i := 0; i+1 < len(chain); i++ {
		answers = append(answers, dnsmsg.NewRecord(
			dnsmsg.ParseName(chain[i]),
			dnsmsg.TypeCNAME, dnsmsg.ClassIN, resolvedTTL,
			dnsmsg.CNAMEData{Target: dnsmsg.ParseName(chain[i+1])},
		))
	}
	target := dnsmsg.ParseName(finalName)
	for _, addr := range addrs {
		data, err := dnsmsg.ParseRData(dnsmsg.TypeA, addr)
		if err != nil {
			w.Warn("skipping unparsable resolved address", "addr", addr, "err", err)
			continue
		}
		answers = append(answers, dnsmsg.NewRecord(target, dnsmsg.TypeA, dnsmsg.ClassIN, resolvedTTL, data))
	}
	return h.reply(w, response{answers: answers})
}
