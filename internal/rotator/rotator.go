// Package rotator rotates HELO-domain / MAIL-FROM identities across
// outbound SMTP probes, so that repeated verification traffic does not
// concentrate behind a single sender identity.
//
// There is no teacher precedent for this component in the example pack;
// its per-domain counter map follows the mutex-guarded map idiom used
// throughout internal/dnscache (see DESIGN.md).
package rotator

import (
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
)

// ErrEmptyList is returned when either identity list is empty at construction.
var ErrEmptyList = errors.New("rotator: helo_domains and from_addresses must both be non-empty")

const (
	perTargetCap     = 1000
	perTargetTrimTo  = 0.8
)

// Rotator hands out HELO/FROM identity pairs in round-robin order, either
// globally or per target domain.
type Rotator struct {
	heloDomains   []string
	fromAddresses []string

	mu          sync.Mutex
	globalHelo  int
	globalFrom  int
	perTarget   map[string]*targetCounters
}

type targetCounters struct {
	helo int
	from int
}

// New constructs a Rotator with randomized starting indices, per spec §4.9.
func New(heloDomains, fromAddresses []string) (*Rotator, error) {
	if len(heloDomains) == 0 || len(fromAddresses) == 0 {
		return nil, ErrEmptyList
	}
	return &Rotator{
		heloDomains:   append([]string(nil), heloDomains...),
		fromAddresses: append([]string(nil), fromAddresses...),
		globalHelo:    rand.IntN(len(heloDomains)),
		globalFrom:    rand.IntN(len(fromAddresses)),
		perTarget:     make(map[string]*targetCounters),
	}, nil
}

// NextHelo returns the next HELO domain, advancing either the global
// counter or the per-targetDomain counter when targetDomain is non-empty.
func (r *Rotator) NextHelo(targetDomain string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if targetDomain == "" {
		domain := r.heloDomains[r.globalHelo%len(r.heloDomains)]
		r.globalHelo++
		return domain
	}
	tc := r.targetLocked(targetDomain)
	domain := r.heloDomains[tc.helo%len(r.heloDomains)]
	tc.helo++
	return domain
}

// NextFrom is symmetric with NextHelo.
func (r *Rotator) NextFrom(targetDomain string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if targetDomain == "" {
		addr := r.fromAddresses[r.globalFrom%len(r.fromAddresses)]
		r.globalFrom++
		return addr
	}
	tc := r.targetLocked(targetDomain)
	addr := r.fromAddresses[tc.from%len(r.fromAddresses)]
	tc.from++
	return addr
}

// Credentials returns a (helo, from) pair for targetDomain such that the
// FROM address's domain differs from the HELO domain whenever that's
// achievable: if they'd otherwise coincide and at least two FROM addresses
// exist, the FROM counter is advanced once more.
func (r *Rotator) Credentials(targetDomain string) (helo, from string) {
	helo = r.NextHelo(targetDomain)
	from = r.NextFrom(targetDomain)

	if domainOf(from) == helo && len(r.fromAddresses) >= 2 {
		from = r.NextFrom(targetDomain)
	}
	return helo, from
}

// targetLocked returns (creating if absent) the counters for targetDomain,
// running the cleanup pass first if the map is at capacity. Caller holds r.mu.
func (r *Rotator) targetLocked(targetDomain string) *targetCounters {
	tc, ok := r.perTarget[targetDomain]
	if ok {
		return tc
	}
	if len(r.perTarget) >= perTargetCap {
		r.trimLocked()
	}
	tc = &targetCounters{}
	r.perTarget[targetDomain] = tc
	return tc
}

// trimLocked caps the per-target map at perTargetTrimTo of perTargetCap by
// evicting arbitrary entries (insertion order is not tracked; any cheap,
// deterministic-within-a-call selection satisfies the spec's cap).
func (r *Rotator) trimLocked() {
	target := int(float64(perTargetCap) * perTargetTrimTo)
	if len(r.perTarget) <= target {
		return
	}
	keys := make([]string, 0, len(r.perTarget))
	for k := range r.perTarget {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)-target] {
		delete(r.perTarget, k)
	}
}

// TargetCount reports how many per-target entries currently exist, for
// observability and tests.
func (r *Rotator) TargetCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.perTarget)
}

func domainOf(address string) string {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == '@' {
			return address[i+1:]
		}
	}
	return ""
}
