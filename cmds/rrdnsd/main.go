// Command rrdnsd runs the DNS server: it answers from its zone, resolves
// iteratively when recursion is desired, and keeps the record cache across
// restarts through a snapshot file.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veldtnet/rrdns/logging"
	"github.com/veldtnet/rrdns/mgr"
	"github.com/veldtnet/rrdns/nameserver"
	"github.com/veldtnet/rrdns/resolver"
	"github.com/veldtnet/rrdns/zone"
)

var (
	rootCmd = &cobra.Command{
		Use:          "rrdnsd",
		Short:        "a recursive DNS server for type A queries",
		RunE:         run,
		SilenceUsage: true,
	}

	listenAddress string
	zoneFile      string
	hintsFile     string

	caching       bool
	cacheFile     string
	cacheTTL      uint32
	cacheInterval time.Duration

	upstreamTimeout time.Duration
	logLevel        string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&listenAddress, "listen", "l", "127.0.0.1:5353", "UDP address to listen on")
	flags.StringVar(&zoneFile, "zone", "zone", "path to the authoritative zone master file")
	flags.StringVar(&hintsFile, "hints", "root", "path to the root hints zone file")
	flags.BoolVarP(&caching, "caching", "c", false, "enable the shared record cache")
	flags.StringVar(&cacheFile, "cache-file", "cache", "path to the cache snapshot file")
	flags.Uint32VarP(&cacheTTL, "ttl", "t", 0, "TTL override for cached records (0 keeps record TTLs)")
	flags.DurationVar(&cacheInterval, "cache-interval", 5*time.Minute, "interval between cache snapshot writes")
	flags.DurationVar(&upstreamTimeout, "timeout", 2*time.Second, "timeout per upstream query")
	flags.StringVar(&logLevel, "log", "info", "log level [debug|info|warning|error]")
}

func run(cmd *cobra.Command, _ []string) error {
	if err := logging.Setup(logLevel); err != nil {
		return err
	}

	z, err := zone.LoadFile(zoneFile)
	if err != nil {
		return fmt.Errorf("loading zone: %w", err)
	}
	hintsZone, err := zone.LoadFile(hintsFile)
	if err != nil {
		return fmt.Errorf("loading root hints: %w", err)
	}
	roots := zone.RootHints(hintsZone)
	if len(roots) == 0 {
		return fmt.Errorf("no root server addresses in %s", hintsFile)
	}

	var cache *resolver.RecordCache
	if caching {
		cache = resolver.NewRecordCache(cacheTTL)
		cache.LoadFile(cacheFile)
		cache.Prune()
	}

	m := mgr.New("rrdnsd")
	ns := nameserver.New(m, nameserver.Config{
		ListenAddress: listenAddress,
		Zone:          z,
		Resolver: resolver.New(resolver.Config{
			Roots:   roots,
			Cache:   cache,
			Timeout: upstreamTimeout,
		}),
	})
	if err := ns.Start(); err != nil {
		return err
	}

	if cache != nil {
		m.Repeat("cache snapshot", cacheInterval, func(w *mgr.WorkerCtx) error {
			return saveCache(cache)
		})
	}

	// Run until interrupted.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	m.Info("shutting down")
	if err := ns.Stop(); err != nil {
		m.Warn("failed to stop nameserver", "err", err)
	}
	if cache != nil {
		if err := saveCache(cache); err != nil {
			m.Warn("failed to save cache snapshot", "err", err)
		}
	}
	return nil
}

func saveCache(cache *resolver.RecordCache) error {
	if !cache.Dirty() {
		return nil
	}
	return cache.SaveFile(cacheFile)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
