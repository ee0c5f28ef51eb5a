package sampler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jhammond-tacc/lltop/internal/counter"
	"github.com/jhammond-tacc/lltop/internal/target"
)

// Sender is the generational sampler's transport: one Send per surviving
// client per tick, with Flush called once at the end of the tick. The UDP
// implementation (msgBuf, built by NewSender) batches Sends into size-bounded datagrams;
// tests can substitute a simple in-memory Sender.
type Sender interface {
	Send(name string, wr, rd, reqs int64) error
	Flush() error
}

// slot is the two-slot rolling snapshot for one client (PerClientSlot).
type slot struct {
	stats [2]counter.Snapshot
	gen   uint64
}

// GenerationalConfig configures the long-lived tick-loop sampler.
type GenerationalConfig struct {
	Interval time.Duration
	Roots    []string // nil uses target.Roots
	SendAll  bool     // disable eviction/idle filtering

	// OnTick and OnEviction, if set, are called once per completed tick
	// and once per client skipped for a negative delta, respectively, for
	// a caller that wants to export them as counters.
	OnTick     func()
	OnEviction func()
}

// Generational is the long-lived server-side sampler: each tick it walks
// all targets, accumulates per-client counters into a two-slot rolling
// buffer keyed by generation, computes deltas, and dispatches one message
// per surviving client through Sender.
type Generational struct {
	cfg   GenerationalConfig
	sink  Sender
	slots map[string]*slot
	gen   uint64
}

// NewGenerational constructs a sampler that will push through sink.
func NewGenerational(cfg GenerationalConfig, sink Sender) *Generational {
	return &Generational{
		cfg:   cfg,
		sink:  sink,
		slots: make(map[string]*slot),
	}
}

// Run executes tick 0, 1, 2, ... until ctx is cancelled. Each tick's target
// walk completes before any delta for that tick is emitted, and ticks are
// paced on an absolute monotonic clock so target-scan cost doesn't leak
// into the interval.
func (g *Generational) Run(ctx context.Context) error {
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if err := g.tick(g.gen); err != nil {
			return err
		}

		if g.gen > 0 {
			if err := g.sink.Flush(); err != nil {
				return err
			}
		}

		g.gen++

		deadline := start.Add(time.Duration(g.gen) * g.cfg.Interval)
		if err := sleepUntil(ctx, deadline); err != nil {
			return nil
		}
	}
}

// tick performs one generation's target walk, delta computation, dispatch,
// and stale-slot eviction.
func (g *Generational) tick(gen uint64) error {
	if g.cfg.OnTick != nil {
		defer g.cfg.OnTick()
	}

	descs, err := target.Walk(g.cfg.Roots)
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
			g.observe(cli, gen, snap)
		}
	}

	if gen == 0 {
		return nil
	}

	for name, s := range g.slots {
		if s.gen != gen {
			continue // not seen this tick; swept below
		}

		d := s.stats[gen%2].Sub(s.stats[(gen-1)%2])

		if !g.cfg.SendAll {
			if d.Negative() {
				slog.Debug("sampler: skipping evicted client", "client", name)
				if g.cfg.OnEviction != nil {
					g.cfg.OnEviction()
				}
				continue
			}
			if d.Zero() {
				continue
			}
		}

		if err := g.sink.Send(name, d.WriteBytes, d.ReadBytes, d.Requests); err != nil {
			if errors.Is(err, ErrNameTooLong) {
				slog.Warn("sampler: dropping client, name too long", "client", name)
				continue
			}
			return err
		}
	}

	g.sweep(gen)
	return nil
}

// observe folds one target's reading for a client into its generation slot,
// creating the slot on first sight, and zeroing whichever half is stale
// per the generation-tracking invariants:
//   - slot.gen < gen-1: both halves are stale, zero both.
//   - slot.gen == gen-1: only the incoming half (gen%2) is stale.
//   - slot.gen == gen: already folded at least once this tick, just add.
func (g *Generational) observe(name string, gen uint64, snap counter.Snapshot) {
	s, ok := g.slots[name]
	if !ok {
		s = &slot{gen: gen}
		g.slots[name] = s
	}

	switch {
	case ok && gen == s.gen:
		// Already folded at least once this generation; just accumulate.
	case ok && gen == s.gen+1:
		s.stats[gen%2] = counter.Snapshot{}
		s.gen = gen
	default:
		// Either brand new, or stale by more than one generation.
		s.stats[0] = counter.Snapshot{}
		s.stats[1] = counter.Snapshot{}
		s.gen = gen
	}

	s.stats[gen%2] = s.stats[gen%2].Add(snap)
}

// sweep removes slots that were not refreshed this generation: a client
// that vanished from every target's export list.
func (g *Generational) sweep(gen uint64) {
	for name, s := range g.slots {
		if s.gen < gen {
			delete(g.slots, name)
		}
	}
}
