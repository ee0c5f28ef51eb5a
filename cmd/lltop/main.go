// Command lltop attributes Lustre filesystem load to batch-scheduler
// jobs. Run with no subcommand for the front-end (fan out to a
// filesystem's servers, aggregate, print); "serv" and "serv-cts" run the
// one-shot and generational delta samplers meant to be invoked on a
// Lustre server, typically by the front-end itself over ssh.
package main

import (
	"log/slog"
	"os"
)

func main() {
	root := newFrontCmd()
	root.Use = "lltop [FILESYSTEM | SERVER..]"
	root.Short = "Attribute Lustre filesystem load to batch-scheduler jobs"
	root.Long = `lltop samples per-client Lustre I/O counters across a filesystem's
servers, resolves each client address to a hostname and batch-scheduler
job, and prints load ranked by job.

Examples:
  lltop scratch
  lltop --server-list oss23 oss24 mds3`

	root.AddCommand(newServCmd())
	root.AddCommand(newServCtsCmd())

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}
