package mailverify

import (
	"time"

	"github.com/optimode/mailverify/internal/patterns"
)

// Options configures one Pipeline instance. Every field has a zero-value
// fallback applied by New, matching spec.md §6's configuration surface; most
// callers only need to set HeloDomains/FromAddresses and EnableSMTP.
type Options struct {
	// EnableSMTP gates whether validate_single's step 6 (the RCPT TO probe)
	// runs at all. When false, a lexically clean address with a resolvable
	// domain is accepted at score 100 without ever opening a socket.
	EnableSMTP bool

	// HeloDomains / FromAddresses feed the identity rotator (C9). At least
	// one of each is required when EnableSMTP is true.
	HeloDomains   []string
	FromAddresses []string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRetries     int
	STARTTLSPolicy string // "on" / "off" / "auto", default "auto"

	// DisableConnectionPooling forces one fresh, non-reused socket per SMTP
	// probe (spec's enable_connection_pooling: false). Zero-value false
	// means pooling stays on without requiring callers to start from
	// DefaultOptions first.
	DisableConnectionPooling bool
	ConnPoolMaxPerKey        int
	ConnPoolIdleTimeout      time.Duration

	PatternDataDir string // directory containing the four/five pattern files

	VerdictCacheSize int
	VerdictCacheTTL  time.Duration
	MXCacheSize      int
	// MXCacheTTL is the positive-lookup TTL for resolved MX record sets
	// (spec's mx_cache_default_ttl_ms). Negative (NXDOMAIN/no-MX) results
	// always use a shorter fixed TTL regardless of this value; see
	// internal/dnsresolve.
	MXCacheTTL time.Duration
	HashSalt   string

	BatchSize int // fan-out for ValidateBatch, default 10

	// RefreshDisposableList enables the background Refresher (A3) that pulls
	// RefreshDisposableListRepoURL on RefreshDisposableListInterval and
	// rewrites the disposable-domains pattern file in place, reloading the
	// Store once each pull succeeds. Off by default: most deployments manage
	// that list themselves.
	RefreshDisposableList             bool
	RefreshDisposableListRepoURL      string
	RefreshDisposableListPullCooldown time.Duration
	RefreshDisposableListInterval     time.Duration

	// RedisAddr, when non-empty, backs the verdict cache with Redis instead
	// of the in-process TTL-LRU cache, so multiple Pipeline instances (e.g.
	// across processes) share verdict history.
	RedisAddr string

	// patternPaths, when set, overrides PatternDataDir's directory+fixed-name
	// convention with explicit per-file paths. Only FromConfig populates
	// this, since a loaded config.Config names each file independently.
	patternPaths patterns.Paths
}

func (o Options) resolvedPatternPaths() patterns.Paths {
	if o.patternPaths != (patterns.Paths{}) {
		return o.patternPaths
	}
	dir := o.PatternDataDir
	if dir == "" {
		dir = DefaultOptions().PatternDataDir
	}
	return patterns.Paths{
		PlaceholderDomains: dir + "/placeholder_domains.txt",
		SpamKeywords:       dir + "/spam_keywords.txt",
		TypoDomains:        dir + "/typo_domains.txt",
		DisposableDomains:  dir + "/disposable_domains.txt",
		RoleAccounts:       dir + "/role_accounts.txt",
	}
}

// DefaultOptions matches the defaults named across spec.md §4, §6.
func DefaultOptions() Options {
	return Options{
		EnableSMTP:     true,
		HeloDomains:    []string{"verify.example.com"},
		FromAddresses:  []string{"probe@verify.example.com"},
		ConnectTimeout: 15 * time.Second,
		ReadTimeout:    15 * time.Second,
		MaxRetries:     2,
		STARTTLSPolicy: "auto",

		ConnPoolMaxPerKey:   3,
		ConnPoolIdleTimeout: 60 * time.Second,

		PatternDataDir: "patterns",

		VerdictCacheSize: 5000,
		VerdictCacheTTL:  24 * time.Hour,
		MXCacheSize:      2000,
		MXCacheTTL:       300 * time.Second,

		BatchSize: 10,

		RefreshDisposableListPullCooldown: 30 * time.Minute,
		RefreshDisposableListInterval:     30 * time.Minute,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if len(o.HeloDomains) == 0 {
		o.HeloDomains = def.HeloDomains
	}
	if len(o.FromAddresses) == 0 {
		o.FromAddresses = def.FromAddresses
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = def.ReadTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.STARTTLSPolicy == "" {
		o.STARTTLSPolicy = def.STARTTLSPolicy
	}
	if o.ConnPoolMaxPerKey <= 0 {
		o.ConnPoolMaxPerKey = def.ConnPoolMaxPerKey
	}
	if o.ConnPoolIdleTimeout <= 0 {
		o.ConnPoolIdleTimeout = def.ConnPoolIdleTimeout
	}
	if o.PatternDataDir == "" {
		o.PatternDataDir = def.PatternDataDir
	}
	if o.VerdictCacheSize <= 0 {
		o.VerdictCacheSize = def.VerdictCacheSize
	}
	if o.VerdictCacheTTL <= 0 {
		o.VerdictCacheTTL = def.VerdictCacheTTL
	}
	if o.MXCacheSize <= 0 {
		o.MXCacheSize = def.MXCacheSize
	}
	if o.MXCacheTTL <= 0 {
		o.MXCacheTTL = def.MXCacheTTL
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.RefreshDisposableListPullCooldown <= 0 {
		o.RefreshDisposableListPullCooldown = def.RefreshDisposableListPullCooldown
	}
	if o.RefreshDisposableListInterval <= 0 {
		o.RefreshDisposableListInterval = def.RefreshDisposableListInterval
	}
	return o
}

// ValidateOptions tailors a single ValidateSingle call, overriding the
// Pipeline's defaults for that one address (spec.md §6's per-call options).
type ValidateOptions struct {
	EnableSMTP     *bool
	STARTTLSPolicy string
	MaxRetries     int
	HeloDomain     string
	FromAddress    string
}
