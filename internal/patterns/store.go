// Package patterns loads the static rulesets the lexical validator checks
// addresses against: placeholder domains, spam keywords, a typo-to-canonical
// domain map, disposable domains, and a supplemental role-account list.
//
// Each set is loaded at construction, and again on Store.Reload, from a
// plain-text file: one token
// per non-blank, non-"#"-prefixed line. typo_domains.txt lines instead read
// "bad:canonical". A missing file yields an empty set and a logged warning,
// never a startup failure.
package patterns

import (
	"bufio"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// setsSnapshot is the pattern data loaded from disk at a point in time.
// Store swaps this pointer atomically so Reload can replace every set in
// one step without readers ever observing a half-updated mix of old and
// new sets.
type setsSnapshot struct {
	placeholderDomains map[string]struct{}
	spamKeywords       map[string]struct{}
	typoDomains        map[string]string
	disposableDomains  map[string]struct{}
	roleAccounts       map[string]struct{}
}

// Store is a concurrency-safe collection of pattern sets. Reads never lock:
// they follow an atomically-loaded snapshot pointer, which Reload swaps in
// whole once a background refresh (see Refresher) has new files on disk.
type Store struct {
	paths Paths
	log   *zap.SugaredLogger
	snap  atomic.Pointer[setsSnapshot]
}

// Paths names the five source files a Store is built from. RoleAccounts is
// an optional supplement beyond the four spec'd sets (see DESIGN.md).
type Paths struct {
	PlaceholderDomains string
	SpamKeywords       string
	TypoDomains        string
	DisposableDomains  string
	RoleAccounts       string
}

// Load reads every configured file and builds a Store. It never returns an
// error: a missing or unreadable file produces an empty set and a warning
// logged through log, so the engine can still start with degraded coverage.
func Load(paths Paths, log *zap.SugaredLogger) *Store {
	s := &Store{paths: paths, log: log}
	s.snap.Store(buildSnapshot(paths, log))
	return s
}

// Reload re-reads every configured file and atomically replaces the Store's
// sets, so already-running lookups keep seeing a consistent pre-reload
// snapshot until the swap completes and new lookups see the refreshed one.
// Intended to be called by a Refresher after it rewrites DisposableDomains.
func (s *Store) Reload() {
	s.snap.Store(buildSnapshot(s.paths, s.log))
}

func buildSnapshot(paths Paths, log *zap.SugaredLogger) *setsSnapshot {
	return &setsSnapshot{
		placeholderDomains: loadSet(paths.PlaceholderDomains, log),
		spamKeywords:       loadSet(paths.SpamKeywords, log),
		typoDomains:        loadTypoMap(paths.TypoDomains, log),
		disposableDomains:  loadSet(paths.DisposableDomains, log),
		roleAccounts:       loadSet(paths.RoleAccounts, log),
	}
}

// IsPlaceholderDomain reports whether domain is a known placeholder/example
// domain (e.g. example.com, test.com).
func (s *Store) IsPlaceholderDomain(domain string) bool {
	_, ok := s.snap.Load().placeholderDomains[strings.ToLower(domain)]
	return ok
}

// IsSpamKeyword reports whether token is a member of the spam-keyword set.
func (s *Store) IsSpamKeyword(token string) bool {
	_, ok := s.snap.Load().spamKeywords[strings.ToLower(token)]
	return ok
}

// CanonicalFor returns the canonical domain for a known typo domain and
// whether a mapping exists.
func (s *Store) CanonicalFor(domain string) (string, bool) {
	canonical, ok := s.snap.Load().typoDomains[strings.ToLower(domain)]
	return canonical, ok
}

// IsDisposable reports whether domain is a known disposable-mail provider.
func (s *Store) IsDisposable(domain string) bool {
	_, ok := s.snap.Load().disposableDomains[strings.ToLower(domain)]
	return ok
}

// IsRoleAccount reports whether localPart names a shared role mailbox
// (e.g. "admin", "support") rather than an individual. Informational only;
// see DESIGN.md, Details.Role.
func (s *Store) IsRoleAccount(localPart string) bool {
	_, ok := s.snap.Load().roleAccounts[strings.ToLower(localPart)]
	return ok
}

// DisposableCount returns the size of the disposable-domain set, mostly
// useful for startup logging and the Refresher.
func (s *Store) DisposableCount() int {
	return len(s.snap.Load().disposableDomains)
}

func loadSet(path string, log *zap.SugaredLogger) map[string]struct{} {
	set := make(map[string]struct{})
	if path == "" {
		return set
	}
	f, err := os.Open(path)
	if err != nil {
		if log != nil {
			log.Warnw("pattern file unavailable, continuing with empty set", "path", path, "error", err)
		}
		return set
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		set[strings.ToLower(line)] = struct{}{}
	}
	if err := sc.Err(); err != nil && log != nil {
		log.Warnw("error scanning pattern file", "path", path, "error", err)
	}
	return set
}

func loadTypoMap(path string, log *zap.SugaredLogger) map[string]string {
	m := make(map[string]string)
	if path == "" {
		return m
	}
	f, err := os.Open(path)
	if err != nil {
		if log != nil {
			log.Warnw("typo-domain file unavailable, continuing with empty map", "path", path, "error", err)
		}
		return m
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		bad, canonical, ok := strings.Cut(line, ":")
		if !ok || bad == "" || canonical == "" {
			if log != nil {
				log.Warnw("malformed typo-domain line, skipping", "path", path, "line", line)
			}
			continue
		}
		m[strings.ToLower(strings.TrimSpace(bad))] = strings.ToLower(strings.TrimSpace(canonical))
	}
	if err := sc.Err(); err != nil && log != nil {
		log.Warnw("error scanning typo-domain file", "path", path, "error", err)
	}
	return m
}
