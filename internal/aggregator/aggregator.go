// Package aggregator implements the cache-chained attribution algorithm
// that turns a stream of (address, wr, rd, reqs) tuples into a ranked
// table of load grouped by job (or host, or raw address, when resolution
// fails at some stage).
package aggregator

import (
	"context"
	"sort"

	"github.com/jhammond-tacc/lltop/internal/resolve"
)

// NameStats is the accumulation owned by one final name -- a job id, a
// hostname, or a raw address, depending on how far resolution got.
type NameStats struct {
	Name string
	WR   int64
	RD   int64
	Reqs int64
}

func (s *NameStats) add(wr, rd, reqs int64) {
	s.WR += wr
	s.RD += rd
	s.Reqs += reqs
}

// Aggregator accumulates tuples into NameStats rows via the cache-chained
// lookup algorithm: an address that has already resolved to a NameStats
// row skips straight to accumulation; otherwise it walks
// address -> host -> job, binding the address (and, if newly discovered,
// the host) to whatever row it lands on along the way so later tuples for
// the same address or host are one map lookup, not a fresh resolution.
type Aggregator struct {
	hosts resolve.HostResolver
	jobs  resolve.JobResolver

	addrCache map[string]*NameStats
	hostCache map[string]*NameStats
	byName    map[string]*NameStats
}

func New(hosts resolve.HostResolver, jobs resolve.JobResolver) *Aggregator {
	return &Aggregator{
		hosts:     hosts,
		jobs:      jobs,
		addrCache: make(map[string]*NameStats),
		hostCache: make(map[string]*NameStats),
		byName:    make(map[string]*NameStats),
	}
}

// upsert returns the existing row for name, creating and registering one
// if absent. Insertion is idempotent on name, matching §4.7's
// idempotent-on-final_name contract.
func (a *Aggregator) upsert(name string) *NameStats {
	if s, ok := a.byName[name]; ok {
		return s
	}
	s := &NameStats{Name: name}
	a.byName[name] = s
	return s
}

// Account attributes one (addr, wr, rd, reqs) tuple, resolving addr to a
// host and the host to a job as needed, walking no further than the first
// resolution failure (the raw address or the hostname becomes the final
// name in that case).
func (a *Aggregator) Account(ctx context.Context, addr string, wr, rd, reqs int64) {
	strippedAddr := resolve.StripNID(addr)

	var stats *NameStats

	if s, ok := a.addrCache[strippedAddr]; ok {
		stats = s
	} else {
		host, err := a.hosts.ResolveHost(ctx, strippedAddr)
		if err != nil {
			stats = a.upsert(strippedAddr)
		} else if hs, ok := a.hostCache[host]; ok {
			stats = hs
		} else {
			job, err := a.jobs.ResolveJob(ctx, host)
			if err != nil {
				stats = a.upsert(host)
			} else {
				stats = a.upsert(job)
			}
			a.hostCache[host] = stats
		}
		a.addrCache[strippedAddr] = stats
	}

	stats.add(wr, rd, reqs)
}

// Rows returns every NameStats row sorted descending by (WR, RD, Reqs)
// lexicographically, the order the front-end prints in.
func (a *Aggregator) Rows() []*NameStats {
	rows := make([]*NameStats, 0, len(a.byName))
	for _, s := range a.byName {
		rows = append(rows, s)
	}
	sort.Slice(rows, func(i, j int) bool {
		ri, rj := rows[i], rows[j]
		if ri.WR != rj.WR {
			return ri.WR > rj.WR
		}
		if ri.RD != rj.RD {
			return ri.RD > rj.RD
		}
		if ri.Reqs != rj.Reqs {
			return ri.Reqs > rj.Reqs
		}
		return ri.Name < rj.Name
	})
	return rows
}
