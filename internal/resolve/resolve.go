// Package resolve turns raw client addresses into hostnames and hostnames
// into batch-scheduler job ids, each via a pluggable strategy: a fast
// built-in default, or an external helper command for sites whose naming
// or scheduler doesn't fit the defaults.
package resolve

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound is returned by both resolver kinds when no answer exists for
// the given input. It is not logged by the resolvers themselves -- callers
// decide whether an unresolved address/host is noteworthy.
var ErrNotFound = errors.New("resolve: not found")

// HostResolver maps a client address (already stripped of its Lustre NID
// suffix) to a short or fully-qualified hostname.
type HostResolver interface {
	ResolveHost(ctx context.Context, addr string) (string, error)
}

// JobResolver maps a hostname to the batch-scheduler job id currently
// running there.
type JobResolver interface {
	ResolveJob(ctx context.Context, host string) (string, error)
}

// DefaultHostResolver resolves via reverse DNS, truncating to the short
// name unless FQDN is set.
type DefaultHostResolver struct {
	FQDN bool

	// LookupAddr defaults to net.DefaultResolver.LookupAddr; overridable
	// for tests.
	LookupAddr func(ctx context.Context, addr string) ([]string, error)
}

func (r *DefaultHostResolver) lookup() func(ctx context.Context, addr string) ([]string, error) {
	if r.LookupAddr != nil {
		return r.LookupAddr
	}
	return net.DefaultResolver.LookupAddr
}

func (r *DefaultHostResolver) ResolveHost(ctx context.Context, addr string) (string, error) {
	names, err := r.lookup()(ctx, addr)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return "", ErrNotFound
		}
		slog.Warn("resolve: reverse DNS lookup failed", "addr", addr, "err", err)
		return "", ErrNotFound
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}

	name := strings.TrimSuffix(names[0], ".")
	if r.FQDN {
		return name, nil
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name, nil
}

// DefaultJobResolver resolves a host's running job by scanning
// <Spool>/<host>/active_jobs for the first non-dot-prefixed directory
// entry, matching a typical batch-scheduler "execd spool" layout.
type DefaultJobResolver struct {
	Spool string

	// readDir defaults to os.ReadDir; overridable for tests.
	readDir func(name string) ([]os.DirEntry, error)

	warnedMissingSpool bool
}

func NewDefaultJobResolver(spool string) *DefaultJobResolver {
	return &DefaultJobResolver{Spool: spool}
}

func (r *DefaultJobResolver) dirReader() func(string) ([]os.DirEntry, error) {
	if r.readDir != nil {
		return r.readDir
	}
	return os.ReadDir
}

func (r *DefaultJobResolver) ResolveJob(ctx context.Context, host string) (string, error) {
	dir := filepath.Join(r.Spool, host, "active_jobs")
	entries, err := r.dirReader()(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if !r.warnedMissingSpool {
				if _, statErr := os.Stat(r.Spool); os.IsNotExist(statErr) {
					slog.Warn("resolve: execd spool root does not exist", "spool", r.Spool)
					r.warnedMissingSpool = true
				}
			}
			return "", ErrNotFound
		}
		if !r.warnedMissingSpool {
			slog.Warn("resolve: cannot read active_jobs spool", "dir", dir, "err", err)
			r.warnedMissingSpool = true
		}
		return "", ErrNotFound
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if i := strings.IndexByte(name, '.'); i >= 0 {
			name = name[:i]
		}
		return name, nil
	}
	return "", ErrNotFound
}

// ExternalResolver shells out to a helper command with one argument
// (address or host) and takes its first whitespace-delimited output token
// as the answer. It satisfies both HostResolver and JobResolver.
type ExternalResolver struct {
	Helper string

	// MaxOutput bounds how much of the helper's stdout is scanned before
	// giving up, guarding against a runaway or misbehaving helper.
	MaxOutput int
}

const defaultMaxOutput = 4096

func (r *ExternalResolver) run(ctx context.Context, arg string) (string, error) {
	maxOutput := r.MaxOutput
	if maxOutput <= 0 {
		maxOutput = defaultMaxOutput
	}

	cmd := exec.CommandContext(ctx, r.Helper, arg)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		slog.Warn("resolve: helper failed", "helper", r.Helper, "arg", arg, "err", err)
		return "", ErrNotFound
	}

	sc := bufio.NewScanner(bytes.NewReader(out.Bytes()[:min(out.Len(), maxOutput)]))
	sc.Split(bufio.ScanWords)
	if !sc.Scan() {
		return "", ErrNotFound
	}
	token := sc.Text()
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

func (r *ExternalResolver) ResolveHost(ctx context.Context, addr string) (string, error) {
	return r.run(ctx, addr)
}

func (r *ExternalResolver) ResolveJob(ctx context.Context, host string) (string, error) {
	return r.run(ctx, host)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// StripNID truncates a Lustre client address of the form "<ipv4>@<net>" at
// the first '@', discarding the network-transport suffix before the
// address is handed to a HostResolver.
func StripNID(addr string) string {
	if i := strings.IndexByte(addr, '@'); i >= 0 {
		return addr[:i]
	}
	return addr
}

// cacheEntry is shared by both caching wrappers below.
type cacheEntry struct {
	value string
	err   error
	at    time.Time
}

// CachingHostResolver memoizes ResolveHost results (including not-found)
// for TTL, avoiding repeated DNS/helper round-trips for the same address
// across sampling intervals.
type CachingHostResolver struct {
	Inner HostResolver
	TTL   time.Duration

	// OnResult, if set, is called after every ResolveHost with hit=true
	// when the cache satisfied the lookup, for a caller that wants to
	// export cache hit/miss counters.
	OnResult func(hit bool)

	cache map[string]cacheEntry

	now func() time.Time
}

func NewCachingHostResolver(inner HostResolver, ttl time.Duration) *CachingHostResolver {
	return &CachingHostResolver{Inner: inner, TTL: ttl, cache: make(map[string]cacheEntry)}
}

func (c *CachingHostResolver) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *CachingHostResolver) ResolveHost(ctx context.Context, addr string) (string, error) {
	if e, ok := c.cache[addr]; ok && c.clock().Sub(e.at) < c.TTL {
		c.report(true)
		return e.value, e.err
	}
	v, err := c.Inner.ResolveHost(ctx, addr)
	c.cache[addr] = cacheEntry{value: v, err: err, at: c.clock()}
	c.report(false)
	return v, err
}

func (c *CachingHostResolver) report(hit bool) {
	if c.OnResult != nil {
		c.OnResult(hit)
	}
}

// CachingJobResolver is CachingHostResolver's counterpart for job lookups.
type CachingJobResolver struct {
	Inner JobResolver
	TTL   time.Duration

	// OnResult, if set, is called after every ResolveJob with hit=true
	// when the cache satisfied the lookup, for a caller that wants to
	// export cache hit/miss counters.
	OnResult func(hit bool)

	cache map[string]cacheEntry

	now func() time.Time
}

func NewCachingJobResolver(inner JobResolver, ttl time.Duration) *CachingJobResolver {
	return &CachingJobResolver{Inner: inner, TTL: ttl, cache: make(map[string]cacheEntry)}
}

func (c *CachingJobResolver) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *CachingJobResolver) ResolveJob(ctx context.Context, host string) (string, error) {
	if e, ok := c.cache[host]; ok && c.clock().Sub(e.at) < c.TTL {
		c.report(true)
		return e.value, e.err
	}
	v, err := c.Inner.ResolveJob(ctx, host)
	c.cache[host] = cacheEntry{value: v, err: err, at: c.clock()}
	c.report(false)
	return v, err
}

func (c *CachingJobResolver) report(hit bool) {
	if c.OnResult != nil {
		c.OnResult(hit)
	}
}
