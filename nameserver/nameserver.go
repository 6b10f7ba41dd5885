// Package nameserver answers DNS queries over UDP: authoritatively from
// local zone data where possible, through the iterative resolver when
// recursion is requested, and with the matching response code otherwise.
//
// A single accept loop reads datagrams and spawns one independent worker
// per query; workers share only the zone (read-only) and the record cache.
package nameserver

import (
	"errors"
	"fmt"
	"net"

	"github.com/tevino/abool"

	"github.com/veldtnet/rrdns/dnsmsg"
	"github.com/veldtnet/rrdns/mgr"
	"github.com/veldtnet/rrdns/resolver"
	"github.com/veldtnet/rrdns/zone"
)

// Config assembles a NameServer.
type Config struct {
	// ListenAddress is the UDP address to bind, e.g. "127.0.0.1:5353".
	ListenAddress string

	// Zone holds the server's own authoritative data.
	Zone *zone.Zone

	// Resolver serves queries with the recursion-desired flag set.
	Resolver *resolver.Resolver
}

// NameServer is the UDP DNS server.
type NameServer struct {
	mgr      *mgr.Manager
	zone     *zone.Zone
	resolver *resolver.Resolver

	listenAddress string
	conn          *net.UDPConn
	started       *abool.AtomicBool
}

// New returns a new nameserver using the given manager for its workers.
func New(m *mgr.Manager, c Config) *NameServer {
	return &NameServer{
		mgr:           m,
		zone:          c.Zone,
		resolver:      c.Resolver,
		listenAddress: c.ListenAddress,
		started:       abool.New(),
	}
}

// Start binds the listen address and starts the accept loop.
func (ns *NameServer) Start() error {
	if !ns.started.SetToIf(false, true) {
		return errors.New("nameserver already started")
	}

	addr, err := net.ResolveUDPAddr("udp", ns.listenAddress)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", ns.listenAddress, err)
	}
	ns.conn, err = net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ns.mgr.Info("nameserver: listening", "addr", ns.conn.LocalAddr())
	ns.mgr.Go("dns query listener", ns.listen)
	return nil
}

// LocalAddr returns the bound address, nil before Start.
func (ns *NameServer) LocalAddr() net.Addr {
	if ns.conn == nil {
		return nil
	}
	return ns.conn.LocalAddr()
}

// Stop closes the listener and waits briefly for in-flight handlers.
// Handlers that do not finish in time are abandoned, they cannot prevent
// shutdown.
func (ns *NameServer) Stop() error {
	if !ns.started.SetToIf(true, false) {
		return nil
	}
	err := ns.conn.Close()
	ns.mgr.Cancel()
	ns.mgr.WaitForWorkers(0)
	return err
}

// listen is the accept loop: read one datagram, validate it, hand it to a
// worker, resume reading. It never blocks on a handler.
func (ns *NameServer) listen(w *mgr.WorkerCtx) error {
	for {
		buf := make([]byte, dnsmsg.MaxDatagramSize)
		n, client, err := ns.conn.ReadFromUDP(buf)
		if err != nil {
			if w.IsDone() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("reading query: %w", err)
		}

		query, ok := ns.receiveQuery(w, buf[:n])
		if !ok {
			continue
		}

		h := &handler{
			ns:     ns,
			query:  query,
			client: client,
		}
		ns.mgr.Go("dns query handler", h.run)
	}
}

// receiveQuery decodes and validates an inbound datagram. Anything that is
// not a standard query with at least one question is dropped silently, as
// there is no meaningful reply ident or question to echo.
func (ns *NameServer) receiveQuery(w *mgr.WorkerCtx, buf []byte) (*dnsmsg.Message, bool) {
	query, err := dnsmsg.Unpack(buf)
	if err != nil {
		w.Debug("dropping malformed datagram", "err", err)
		return nil, false
	}
	if query.Header.Response || query.Header.Opcode != 0 || len(query.Questions) == 0 {
		w.Debug("dropping non-query message", "ident", query.Header.Ident)
		return nil, false
	}
	return query, true
}
