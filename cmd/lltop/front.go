package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhammond-tacc/lltop/internal/aggregator"
	"github.com/jhammond-tacc/lltop/internal/config"
	"github.com/jhammond-tacc/lltop/internal/fanout"
	"github.com/jhammond-tacc/lltop/internal/metrics"
	"github.com/jhammond-tacc/lltop/internal/resolve"
)

// newFrontCmd builds the default front-end run: resolve a server list
// (either a hardcoded/site-configured filesystem label, or explicit
// server names via --server-list), fan out the one-shot sampler to each,
// aggregate and print.
func newFrontCmd() *cobra.Command {
	var settingsPath string

	cmd := &cobra.Command{
		Use:   "run [FILESYSTEM | SERVER..]",
		Short: "Fan out to a filesystem's servers, aggregate, and print load by job",
		Args:  cobra.MinimumNArgs(1),
	}
	cfg := config.BindFlags(cmd)
	cmd.Flags().StringVar(&settingsPath, "settings", "", "path to a site servers.yaml (default: search . and /etc/lltop)")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runFront(cmd.Context(), cfg, settingsPath, args)
	}
	cmd.SilenceUsage = true
	return cmd
}

func runFront(ctx context.Context, cfg *config.FrontConfig, settingsPath string, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	servers, err := resolveServers(cfg, settingsPath, args)
	if err != nil {
		return err
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				fmt.Fprintf(os.Stderr, "lltop: metrics server: %v\n", err)
			}
		}()
	}

	lines := make(chan string, 256)
	fanoutErrCh := make(chan error, 1)
	go func() {
		fanoutErrCh <- fanout.Run(ctx, fanout.Config{
			Shell:      cfg.SSHPath,
			SamplerBin: cfg.LltopServPath,
			Interval:   cfg.Interval,
			OnExecFail: func(string) { m.FanOutExecFail.Inc() },
		}, servers, lines)
	}()

	hosts, jobs := buildResolvers(cfg, m)
	agg := aggregator.New(hosts, jobs)

	for line := range lines {
		addr, wr, rd, reqs, ok := parseRecord(line)
		if !ok {
			continue
		}
		agg.Account(ctx, addr, wr, rd, reqs)
	}

	if err := <-fanoutErrCh; err != nil {
		return err
	}

	return aggregator.Print(os.Stdout, agg.Rows(), aggregator.PrintOptions{
		Legacy:   cfg.LegacyForm,
		NoHeader: cfg.NoHeader,
	})
}

// resolveServers turns the command's positional args into a server list:
// either the args themselves (--server-list), or a single filesystem
// label looked up in the site settings / default table.
func resolveServers(cfg *config.FrontConfig, settingsPath string, args []string) ([]string, error) {
	if cfg.ServerList {
		return args, nil
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("lltop: expected a single filesystem label, or --server-list with server names")
	}

	v, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}
	return config.NewServerListResolver(v).Servers(args[0])
}

func buildResolvers(cfg *config.FrontConfig, m *metrics.Metrics) (resolve.HostResolver, resolve.JobResolver) {
	var hosts resolve.HostResolver
	if cfg.GetHostCmd != "" {
		hosts = &resolve.ExternalResolver{Helper: cfg.GetHostCmd}
	} else {
		hosts = &resolve.DefaultHostResolver{FQDN: cfg.FQDN}
	}

	var jobs resolve.JobResolver
	if cfg.GetJobCmd != "" {
		jobs = &resolve.ExternalResolver{Helper: cfg.GetJobCmd}
	} else {
		jobs = resolve.NewDefaultJobResolver(cfg.ExecdSpool)
	}

	cachedHosts := resolve.NewCachingHostResolver(hosts, time.Minute)
	cachedHosts.OnResult = func(hit bool) { m.ResolverCacheHit.WithLabelValues("host", outcome(hit)).Inc() }

	cachedJobs := resolve.NewCachingJobResolver(jobs, time.Minute)
	cachedJobs.OnResult = func(hit bool) { m.ResolverCacheHit.WithLabelValues("job", outcome(hit)).Inc() }

	return cachedHosts, cachedJobs
}

func outcome(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// parseRecord parses one sampler wire-format line, "CLIENT_NID
// WRITE_BYTES READ_BYTES REQS". Malformed lines (fewer than four
// tokens) are dropped.
func parseRecord(line string) (addr string, wr, rd, reqs int64, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return "", 0, 0, 0, false
	}
	var err error
	wr, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", 0, 0, 0, false
	}
	rd, err = strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", 0, 0, 0, false
	}
	reqs, err = strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return "", 0, 0, 0, false
	}
	return fields[0], wr, rd, reqs, true
}
