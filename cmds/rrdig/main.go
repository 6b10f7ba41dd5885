// Command rrdig resolves a hostname iteratively from the root hints and
// prints the final name, its alias chain and the found addresses.
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/veldtnet/rrdns/logging"
	"github.com/veldtnet/rrdns/resolver"
	"github.com/veldtnet/rrdns/zone"
)

var (
	rootCmd = &cobra.Command{
		Use:          "rrdig <hostname>",
		Short:        "iteratively resolve a hostname to IPv4 addresses",
		Args:         cobra.ExactArgs(1),
		RunE:         run,
		SilenceUsage: true,
	}

	hintsFile       string
	upstreamTimeout time.Duration
	logLevel        string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&hintsFile, "hints", "root", "path to the root hints zone file")
	flags.DurationVar(&upstreamTimeout, "timeout", 2*time.Second, "timeout per upstream query")
	flags.StringVar(&logLevel, "log", "warning", "log level [debug|info|warning|error]")
}

func run(cmd *cobra.Command, args []string) error {
	if err := logging.Setup(logLevel); err != nil {
		return err
	}

	hintsZone, err := zone.LoadFile(hintsFile)
	if err != nil {
		return fmt.Errorf("loading root hints: %w", err)
	}
	roots := zone.RootHints(hintsZone)
	if len(roots) == 0 {
		return fmt.Errorf("no root server addresses in %s", hintsFile)
	}

	r := resolver.New(resolver.Config{
		Roots:   roots,
		Timeout: upstreamTimeout,
	})
	name, aliases, addrs, err := r.Resolve(cmd.Context(), args[0], uint16(rand.Uint32()))
	if err != nil {
		return err
	}

	fmt.Printf("name:      %s\n", name)
	for _, alias := range aliases {
		fmt.Printf("alias:     %s\n", alias)
	}
	if len(addrs) == 0 {
		fmt.Println("no addresses found")
		return nil
	}
	for _, addr := range addrs {
		fmt.Printf("address:   %s\n", addr)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
