package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rescache-bench",
		Short: "Load generator for rescache",
		Long: `rescache-bench drives a single in-process cache with a synthetic
workload and reports fetch coalescing and delivery latency.

Each worker issues a mix of one-shot gets, persistent observations,
reloads, and expirations against the same cache, exactly the shape of
traffic a busy resource endpoint sees. The report shows how many
fetches the cache actually performed versus how many gets it served.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
