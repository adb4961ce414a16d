// Package dnsresolve implements MX lookup with A/AAAA fallback, backed by a
// TTL-LRU cache and singleflight deduplication for concurrent lookups of the
// same domain.
//
// The cache and dedup mechanics are generalized from internal/dnscache; the
// temporary-vs-permanent DNS failure classification and the null-MX /
// localhost rejection are adapted from the mail-domain validation in
// Loweel-sinksmtp's mxresolve.go. Resolved addresses are not checked for
// private or reserved ranges.
package dnsresolve

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/optimode/mailverify/internal/lrucache"
)

// Record is one resolved mail-exchange target.
type Record struct {
	Priority uint16
	Host     string
}

// Resolution is what gets cached per domain: the sorted record list plus the
// original error message, so callers can still report why a lookup failed
// even on a cache hit.
type Resolution struct {
	Records  []Record
	ErrorMsg string
}

// resolver is the subset of *net.Resolver dnsresolve depends on, so tests
// can substitute a fake.
type resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupIPAddr(ctx context.Context, name string) ([]net.IPAddr, error)
}

// Cache is the storage interface the MX cache is read and written through.
// internal/lrucache.Cache[Resolution] and internal/rediscache.Cache[Resolution]
// both satisfy it unmodified, mirroring the root package's verdictCache
// swap — so the MX cache, not just the verdict cache, can be backed by
// Redis when multiple Pipeline instances should share lookups.
type Cache interface {
	Get(key string) (Resolution, bool)
	Set(key string, value Resolution, ttl time.Duration)
	Flush()
	Size() int
	Stats() lrucache.Stats
}

// Resolver performs cached MX lookups with A/AAAA fallback.
type Resolver struct {
	cache         Cache
	resolver      resolver
	lookupTimeout time.Duration
	positiveTTL   time.Duration
	negativeTTL   time.Duration

	mu      sync.Mutex
	pending map[string]chan struct{}
}

// Config controls cache sizing and timeouts.
type Config struct {
	// Cache, when non-nil, replaces the default in-process LRU (e.g. an
	// internal/rediscache.Cache[Resolution] for cross-process sharing).
	Cache         Cache
	CacheSize     int
	LookupTimeout time.Duration
	PositiveTTL   time.Duration // mx_cache_default_ttl_ms, positive lookups only
	NegativeTTL   time.Duration
}

// DefaultConfig matches spec §4.4: 300s positive TTL, 60s negative TTL.
func DefaultConfig() Config {
	return Config{
		CacheSize:     2000,
		LookupTimeout: 5 * time.Second,
		PositiveTTL:   300 * time.Second,
		NegativeTTL:   60 * time.Second,
	}
}

// New builds a Resolver using net.DefaultResolver.
func New(cfg Config) *Resolver {
	return newWithResolver(cfg, net.DefaultResolver)
}

// NewForTesting builds a Resolver against a caller-supplied resolver (any
// value with LookupMX/LookupIPAddr methods matching *net.Resolver's),
// for use by other packages' tests that need a real *dnsresolve.Resolver
// wired to a fake network layer.
func NewForTesting(cfg Config, r interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupIPAddr(ctx context.Context, name string) ([]net.IPAddr, error)
}) *Resolver {
	return newWithResolver(cfg, r)
}

func newWithResolver(cfg Config, r resolver) *Resolver {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 2000
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 5 * time.Second
	}
	if cfg.PositiveTTL <= 0 {
		cfg.PositiveTTL = 300 * time.Second
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 60 * time.Second
	}
	cache := cfg.Cache
	if cache == nil {
		cache = lrucache.New[Resolution](cfg.CacheSize)
	}
	return &Resolver{
		cache:         cache,
		resolver:      r,
		lookupTimeout: cfg.LookupTimeout,
		positiveTTL:   cfg.PositiveTTL,
		negativeTTL:   cfg.NegativeTTL,
		pending:       make(map[string]chan struct{}),
	}
}

// LookupMX returns the mail-exchange records for domain, ascending by
// priority, consulting the cache first and deduplicating concurrent
// lookups for the same domain.
func (r *Resolver) LookupMX(ctx context.Context, domain string) (Resolution, error) {
	domain = strings.ToLower(domain)

	if res, ok := r.cache.Get(domain); ok {
		return res, resolutionErr(res)
	}

	r.mu.Lock()
	if wait, inFlight := r.pending[domain]; inFlight {
		r.mu.Unlock()
		<-wait
		if res, ok := r.cache.Get(domain); ok {
			return res, resolutionErr(res)
		}
		// Extremely unlikely race: entry expired between signal and Get.
		return r.resolveAndCache(ctx, domain)
	}
	done := make(chan struct{})
	r.pending[domain] = done
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, domain)
		r.mu.Unlock()
		close(done)
	}()

	return r.resolveAndCache(ctx, domain)
}

func resolutionErr(res Resolution) error {
	if res.ErrorMsg == "" {
		return nil
	}
	return fmt.Errorf("%s", res.ErrorMsg)
}

func (r *Resolver) resolveAndCache(ctx context.Context, domain string) (Resolution, error) {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	mxs, err := r.resolver.LookupMX(ctx, domain)
	if err == nil && len(mxs) > 0 {
		records := make([]Record, 0, len(mxs))
		for _, m := range mxs {
			host := strings.ToLower(strings.TrimSuffix(m.Host, "."))
			if host == "" || host == "localhost" {
				continue // RFC 7505-style null-MX / localhost refusal
			}
			records = append(records, Record{Priority: m.Pref, Host: host})
		}
		if len(records) > 0 {
			sort.SliceStable(records, func(i, j int) bool { return records[i].Priority < records[j].Priority })
			res := Resolution{Records: records}
			r.cache.Set(domain, res, r.positiveTTL)
			return res, nil
		}
		// every MX entry was a null-MX refusal
		res := Resolution{ErrorMsg: fmt.Sprintf("%s: all MX entries refuse mail (RFC 7505 null MX)", domain)}
		r.cache.Set(domain, res, r.positiveTTL)
		return res, resolutionErr(res)
	}

	if err != nil && isTemporary(err) {
		// Temporary failures are not cached at all; let the caller retry.
		return Resolution{ErrorMsg: err.Error()}, err
	}

	// No MX (or permanent MX failure): fall back to A/AAAA against the
	// domain itself.
	addrs, aErr := r.resolver.LookupIPAddr(ctx, domain)
	if aErr == nil && len(addrs) > 0 {
		res := Resolution{Records: []Record{{Priority: 0, Host: domain}}}
		r.cache.Set(domain, res, r.positiveTTL)
		return res, nil
	}

	msg := domain + ": no MX or address records"
	if err != nil {
		msg = err.Error()
	} else if aErr != nil {
		msg = aErr.Error()
	}
	res := Resolution{ErrorMsg: msg}
	r.cache.Set(domain, res, r.negativeTTL)
	return res, resolutionErr(res)
}

// isTemporary mirrors sinksmtp's dnsResult classification: DNSError.Temporary()
// is only set for local-resolver timeouts, never for a SERVFAIL reply, so the
// exact error string has to be inspected too.
func isTemporary(err error) bool {
	dnsErr, ok := err.(*net.DNSError)
	if !ok {
		return false
	}
	return dnsErr.Temporary() || dnsErr.Err == "server misbehaving"
}

// CacheStats exposes the underlying cache's counters for observability.
func (r *Resolver) CacheStats() lrucache.Stats {
	return r.cache.Stats()
}
