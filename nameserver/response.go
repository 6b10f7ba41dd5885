package nameserver

import (
	"strings"

	"github.com/veldtnet/rrdns/dnsmsg"
	"github.com/veldtnet/rrdns/mgr"
)

// response describes the reply of one handler branch before encoding.
type response struct {
	answers       []*dnsmsg.ResourceRecord
	authorities   []*dnsmsg.ResourceRecord
	additionals   []*dnsmsg.ResourceRecord
	authoritative bool
	rcode         dnsmsg.RCode
}

// reply encodes and sends the response to the client. The header always
// echoes the query ident and rd flag, announces recursion availability and
// carries section counts matching the actual sections.
func (h *handler) reply(w *mgr.WorkerCtx, r response) error {
	repliesByRCode(r.rcode).Inc()

	msg := &dnsmsg.Message{
		Header: dnsmsg.Header{
			Ident:              h.query.Header.Ident,
			Response:           true,
			Authoritative:      r.authoritative,
			RecursionDesired:   h.query.Header.RecursionDesired,
			RecursionAvailable: true,
			RCode:              r.rcode,
		},
		Questions:   h.query.Questions[:1],
		Answers:     r.answers,
		Authorities: r.authorities,
		Additionals: r.additionals,
	}

	packed, err := msg.Pack()
	if err != nil {
		w.Warn("failed to pack response", "ident", h.query.Header.Ident, "err", err)
		return nil
	}
	if _, err := h.ns.conn.WriteToUDP(packed, h.client); err != nil {
		w.Warn("failed to send response", "client", h.client, "err", err)
		return nil
	}

	w.Debug("response sent",
		"ident", h.query.Header.Ident,
		"client", h.client,
		"rcode", r.rcode,
		"answers", len(r.answers),
	)
	return nil
}

func rcodeLabel(rc dnsmsg.RCode) string {
	return strings.ToLower(rc.String())
}
