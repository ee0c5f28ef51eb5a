package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jhammond-tacc/lltop/internal/metrics"
	"github.com/jhammond-tacc/lltop/internal/sampler"
	"github.com/jhammond-tacc/lltop/internal/target"
)

// defaultSamplerPort is the generational sampler's UDP destination port.
// The event front-end listens on 9909.
const defaultSamplerPort = "9907"

// newServCtsCmd builds the generational ("continuous tick sampler")
// subcommand: a long-lived tick loop pushing per-client deltas as UDP
// datagrams to the front-end host.
func newServCtsCmd() *cobra.Command {
	var (
		intervalSec int
		frontEnd    string
		port        string
		sendAll     bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "serv-cts",
		Short: "Run the generational delta sampler, pushing deltas over UDP",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := sampler.DialUDP(cmd.Context(), frontEnd, port)
			if err != nil {
				return err
			}
			defer conn.Close()

			m := metrics.New()
			if metricsAddr != "" {
				go func() { _ = m.Serve(cmd.Context(), metricsAddr) }()
			}

			sink := sampler.NewSender(conn, sampler.DefaultDatagramSize)
			g := sampler.NewGenerational(sampler.GenerationalConfig{
				Interval:   time.Duration(intervalSec) * time.Second,
				Roots:      target.Roots,
				SendAll:    sendAll,
				OnTick:     m.SamplerTicks.Inc,
				OnEviction: m.ClientsEvicted.Inc,
			}, sink)
			return g.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&intervalSec, "interval", 10, "sampling interval in seconds")
	cmd.Flags().StringVar(&frontEnd, "front-end", "", "front-end host to push UDP datagrams to (required)")
	cmd.Flags().StringVar(&port, "port", defaultSamplerPort, "front-end UDP port")
	cmd.Flags().BoolVar(&sendAll, "send-all", false, "send a record every tick even when its delta is zero")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, expose Prometheus metrics on this address")
	_ = cmd.MarkFlagRequired("front-end")

	cmd.SilenceUsage = true
	cmd.RunE = wrapLogged(cmd.RunE)
	return cmd
}
