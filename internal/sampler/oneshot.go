// Package sampler implements the two Lustre server-side delta samplers:
// a two-pass one-shot sampler (run once per ssh invocation) and a
// long-lived generational sampler that pushes deltas over UDP.
package sampler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/jhammond-tacc/lltop/internal/counter"
	"github.com/jhammond-tacc/lltop/internal/target"
)

// OneShotConfig configures a two-pass sampler run.
type OneShotConfig struct {
	Interval time.Duration
	Roots    []string // nil uses target.Roots
}

// accum is a signed running total: legitimately negative between the two
// passes, which is exactly the eviction-artifact signal emit() filters on.
type accum struct {
	wr, rd, reqs int64
}

func (a accum) add(s counter.Snapshot, sign int64) accum {
	return accum{
		wr:   a.wr + sign*int64(s.WriteBytes),
		rd:   a.rd + sign*int64(s.ReadBytes),
		reqs: a.reqs + sign*int64(s.Requests),
	}
}

func (a accum) negative() bool { return a.wr < 0 || a.rd < 0 || a.reqs < 0 }
func (a accum) zero() bool     { return a.wr == 0 && a.rd == 0 && a.reqs == 0 }

// RunOneShot performs one two-pass sample: snapshot all clients, sleep an
// absolute interval, snapshot again, and write one "NAME WR RD REQS" line
// per non-idle, non-evicted client to w. w is flushed line-by-line so
// concurrent writers multiplexed into one pipe don't interleave mid-line.
func RunOneShot(ctx context.Context, cfg OneShotConfig, w io.Writer) error {
	start := time.Now()

	acc := make(map[string]accum)

	if err := accumulate(cfg.Roots, acc, -1); err != nil {
		return err
	}

	if err := sleepUntil(ctx, start.Add(cfg.Interval)); err != nil {
		return err
	}

	if err := accumulate(cfg.Roots, acc, 1); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	return emit(acc, bw)
}

// accumulate walks all targets once, adding sign*(client's current
// counters) into the running per-client accumulator, creating entries on
// demand. Pass 0 uses sign=-1 (subtract), pass 1 uses sign=+1 (add), so
// the result after both passes is the delta across the interval.
func accumulate(roots []string, acc map[string]accum, sign int64) error {
	descs, err := target.Walk(roots)
	if err != nil {
		return err
	}

	for _, d := range descs {
		clients, err := target.Clients(d.ExportsDir)
		if err != nil {
			slog.Warn("sampler: cannot list exports", "target", d.Name, "err", err)
			continue
		}
		for _, cli := range clients {
			snap, err := counter.ReadStats(counter.Path(target.ClientDir(d.ExportsDir, cli)))
			if err != nil {
				slog.Warn("sampler: cannot read client stats", "client", cli, "err", err)
				continue
			}
			acc[cli] = acc[cli].add(snap, sign)
		}
	}
	return nil
}

// emit filters the accumulator down to non-evicted, non-idle clients and
// writes one line per survivor (in name order, mirroring the rb-tree's
// in-order traversal), flushing after each line.
func emit(acc map[string]accum, bw *bufio.Writer) error {
	names := make([]string, 0, len(acc))
	for name := range acc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		d := acc[name]
		if d.negative() {
			slog.Debug("sampler: skipping evicted client", "client", name)
			continue
		}
		if d.zero() {
			continue
		}
		if _, err := fmt.Fprintf(bw, "%s %d %d %d\n", name, d.wr, d.rd, d.reqs); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// sleepUntil blocks until the monotonic deadline or ctx cancellation,
// whichever comes first. Using an absolute deadline (rather than
// time.Sleep(interval)) keeps drift from target-scanning cost out of the
// measured interval.
func sleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
