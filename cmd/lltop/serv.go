package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhammond-tacc/lltop/internal/sampler"
	"github.com/jhammond-tacc/lltop/internal/target"
)

// newServCmd builds the one-shot sampler subcommand, run on a Lustre
// server (directly or via the front-end's remote fan-out): it subtracts
// every client's counters, sleeps interval, adds them back, and prints
// one "client wr rd reqs" line per client with a non-negative, non-zero
// delta.
func newServCmd() *cobra.Command {
	var intervalSec int

	cmd := &cobra.Command{
		Use:   "serv",
		Short: "Run the one-shot delta sampler (meant for remote invocation)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sampler.OneShotConfig{
				Interval: time.Duration(intervalSec) * time.Second,
				Roots:    target.Roots,
			}
			return sampler.RunOneShot(cmd.Context(), cfg, os.Stdout)
		},
	}

	cmd.Flags().IntVar(&intervalSec, "interval", 10, "sampling interval in seconds")

	cmd.SilenceUsage = true
	cmd.RunE = wrapLogged(cmd.RunE)
	return cmd
}

// wrapLogged logs a subcommand's error via slog before returning it, so
// both the "serv" and "serv-cts" remote-invoked subcommands leave a trace
// in the remote host's own logs even though their stdout is reserved for
// the wire-format data the front-end consumes.
func wrapLogged(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := run(cmd, args); err != nil {
			slog.Error("lltop: subcommand failed", "cmd", cmd.Name(), "err", err)
			return err
		}
		return nil
	}
}
