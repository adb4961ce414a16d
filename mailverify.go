// Package mailverify is the top-level verification pipeline: it wires the
// pattern store, lexical validator, DNS resolver, connection pool, identity
// rotator and SMTP verifier into the single validate_single/validate_batch
// contract spec.md §4.10 describes.
//
// It keeps the fluent-but-flat shape of the package this module started
// from (github.com/optimode/emailkit's Validator/New/Close) but replaces
// its per-level []CheckResult accumulation with the spec's single flat
// Verdict, since every stage after the lexical pass can short-circuit the
// whole pipeline rather than merely fail one independent check.
package mailverify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/optimode/mailverify/internal/classifier"
	"github.com/optimode/mailverify/internal/config"
	"github.com/optimode/mailverify/internal/connpool"
	"github.com/optimode/mailverify/internal/dnsresolve"
	"github.com/optimode/mailverify/internal/lexical"
	"github.com/optimode/mailverify/internal/lrucache"
	"github.com/optimode/mailverify/internal/patterns"
	"github.com/optimode/mailverify/internal/rediscache"
	"github.com/optimode/mailverify/internal/rotator"
	"github.com/optimode/mailverify/internal/smtpclient"
	"github.com/optimode/mailverify/internal/smtpverify"
)

// verdictCache is the storage interface ValidateSingle reads and writes
// through; internal/lrucache.Cache[Verdict] and internal/rediscache.Cache[Verdict]
// both satisfy it unmodified, since their methods already share this shape.
type verdictCache interface {
	Get(key string) (Verdict, bool)
	Set(key string, value Verdict, ttl time.Duration)
	Flush()
	Size() int
	Stats() lrucache.Stats
}

// Pipeline is the engine's entry point. Construct with New (or NewFromConfig)
// and call Close when done to release pooled connections and stop the
// pool's background reaper.
type Pipeline struct {
	opts Options
	log  *zap.SugaredLogger

	store    *patterns.Store
	resolver *dnsresolve.Resolver
	pool     *connpool.Pool
	rotator  *rotator.Rotator
	verifier *smtpverify.Verifier

	verdictCache verdictCache
	redisClient  *redis.Client // non-nil only when Options.RedisAddr backs the cache, for Close

	refresher       *patterns.Refresher // non-nil only when Options.RefreshDisposableList is set
	refresherCancel context.CancelFunc
}

// Stats is the pipeline-wide observability snapshot spec.md §6 names:
// MX cache, verdict cache, connection pool, and rotator target counts.
type Stats struct {
	MXCache        lrucache.Stats
	VerdictCache   lrucache.Stats
	Pool           connpool.Stats
	RotatorTargets int
}

// New constructs a Pipeline from opts. A nil logger is replaced with a
// no-op logger.
func New(opts Options, log *zap.SugaredLogger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.EnableSMTP && (len(opts.HeloDomains) == 0 || len(opts.FromAddresses) == 0) {
		return nil, ErrInvalidSMTPOptions
	}
	opts = opts.withDefaults()

	store := patterns.Load(opts.resolvedPatternPaths(), log)

	var redisClient *redis.Client
	if opts.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
	}

	var mxCache dnsresolve.Cache
	if redisClient != nil {
		mxCache = rediscache.New[dnsresolve.Resolution](redisClient, "mailverify:mx:")
	}

	resolver := dnsresolve.New(dnsresolve.Config{
		Cache:         mxCache,
		CacheSize:     opts.MXCacheSize,
		LookupTimeout: opts.ConnectTimeout,
		PositiveTTL:   opts.MXCacheTTL,
		NegativeTTL:   60 * time.Second,
	})

	rot, err := rotator.New(opts.HeloDomains, opts.FromAddresses)
	if err != nil {
		return nil, err
	}

	pool := connpool.New(connpool.Config{
		EnablePooling: !opts.DisableConnectionPooling,
		MaxPerKey:     opts.ConnPoolMaxPerKey,
		IdleTimeout:   opts.ConnPoolIdleTimeout,
		ClientConfig: smtpclient.Config{
			ConnectTimeout: opts.ConnectTimeout,
			ReadTimeout:    opts.ReadTimeout,
			STARTTLS:       starttlsPolicy(opts.STARTTLSPolicy),
		},
	})

	verifier := smtpverify.New(resolver, pool, rot, smtpverify.Options{
		MaxRetries: opts.MaxRetries,
		RetryDelay: time.Second,
	})

	p := &Pipeline{
		opts:        opts,
		log:         log,
		store:       store,
		resolver:    resolver,
		pool:        pool,
		rotator:     rot,
		verifier:    verifier,
		redisClient: redisClient,
	}

	if redisClient != nil {
		p.verdictCache = rediscache.New[Verdict](redisClient, "mailverify:verdict:")
	} else {
		p.verdictCache = lrucache.New[Verdict](opts.VerdictCacheSize)
	}

	if opts.RefreshDisposableList && opts.RefreshDisposableListRepoURL != "" {
		refresherCfg := patterns.DefaultRefresherConfig()
		refresherCfg.RepoURL = opts.RefreshDisposableListRepoURL
		refresherCfg.PullCooldown = opts.RefreshDisposableListPullCooldown
		refresherCfg.Interval = opts.RefreshDisposableListInterval
		refresherCfg.DestPath = opts.resolvedPatternPaths().DisposableDomains

		ctx, cancel := context.WithCancel(context.Background())
		p.refresher = patterns.NewRefresher(refresherCfg, log)
		p.refresherCancel = cancel
		p.refresher.Start(ctx, store)
	}

	return p, nil
}

// NewFromConfig is a convenience constructor for callers that load
// configuration via internal/config rather than building Options by hand.
func NewFromConfig(cfg *config.Config, log *zap.SugaredLogger) (*Pipeline, error) {
	return New(FromConfig(cfg), log)
}

func starttlsPolicy(s string) smtpclient.STARTTLSPolicy {
	switch s {
	case "on":
		return smtpclient.STARTTLSOn
	case "off":
		return smtpclient.STARTTLSOff
	default:
		return smtpclient.STARTTLSAuto
	}
}

// Close releases pooled SMTP connections, stops the pool's background
// reaper and any running disposable-list refresher, and closes any Redis
// client backing the verdict cache.
func (p *Pipeline) Close() error {
	if p.refresher != nil {
		p.refresherCancel()
		p.refresher.Stop()
	}
	err := p.pool.Close()
	if p.redisClient != nil {
		if cerr := p.redisClient.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Stats returns a point-in-time snapshot of every cache, pool, and rotator
// this Pipeline owns.
func (p *Pipeline) Stats() Stats {
	return Stats{
		MXCache:        p.resolver.CacheStats(),
		VerdictCache:   p.verdictCache.Stats(),
		Pool:           p.pool.Stats(),
		RotatorTargets: p.rotator.TargetCount(),
	}
}

// ValidateSingle implements spec §4.10's validate_single contract.
func (p *Pipeline) ValidateSingle(ctx context.Context, address string, overrides ...ValidateOptions) (Verdict, error) {
	start := time.Now()

	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return Verdict{}, ErrEmptyAddress
	}

	var ov ValidateOptions
	if len(overrides) > 0 {
		ov = overrides[0]
	}

	// Step 1: cheap format guard. lexical.Validate with a nil store runs
	// only the store-independent checks (length, IDN, structure, characters,
	// local/domain rules, heuristics, plus-addressing: steps 1-8), never the
	// store-backed typo/disposable/placeholder checks (steps 9-11), so it is
	// cheap enough to run before the cache lookup. An address on a known
	// placeholder domain skips this early exit: the store-backed pass below
	// exempts it from the step-7 heuristic and reports it as a placeholder.
	guard := lexical.Validate(trimmed, nil)
	onPlaceholder := false
	if at := strings.LastIndex(trimmed, "@"); at >= 0 {
		onPlaceholder = p.store.IsPlaceholderDomain(trimmed[at+1:])
	}
	if guard.Terminal && !onPlaceholder {
		return p.finish(start, p.verdictFromTerminal(trimmed, guard), false), nil
	}

	key := p.cacheKey(trimmed)
	if cached, ok := p.verdictCache.Get(key); ok {
		cached.FromCache = true
		return cached, nil
	}

	outcome := lexical.Validate(trimmed, p.store)
	if outcome.Terminal {
		v := p.verdictFromTerminal(trimmed, outcome)
		p.verdictCache.Set(key, v, p.opts.VerdictCacheTTL)
		return p.finish(start, v, false), nil
	}

	// Step 4: MX lookup.
	res, err := p.resolver.LookupMX(ctx, outcome.Domain)
	hasMX := err == nil && len(res.Records) > 0
	if !hasMX {
		v := Verdict{
			Valid:      false,
			Email:      outcome.NormalizedAddress,
			Score:      ScoreNoMX,
			Reason:     []string{"No MX record found"},
			Suggestion: outcome.Suggestion,
			Details:    Details{Format: true, Disposable: true, Typo: true, Suspicious: true, SpamKeywords: true, Role: outcome.IsRole},
		}
		p.verdictCache.Set(key, v, p.opts.VerdictCacheTTL)
		return p.finish(start, v, false), nil
	}

	enableSMTP := p.opts.EnableSMTP
	if ov.EnableSMTP != nil {
		enableSMTP = *ov.EnableSMTP
	}

	// Step 5: SMTP probing disabled.
	if !enableSMTP {
		v := Verdict{
			Valid:      true,
			Email:      outcome.NormalizedAddress,
			Score:      ScorePassed,
			Suggestion: outcome.Suggestion,
			Details:    Details{Format: true, MX: true, Disposable: true, Typo: true, Suspicious: true, SpamKeywords: true, Role: outcome.IsRole},
		}
		p.verdictCache.Set(key, v, p.opts.VerdictCacheTTL)
		return p.finish(start, v, false), nil
	}

	// Step 6: SMTP probe.
	verifier, cleanup := p.verifierForCall(ov)
	defer cleanup()
	smtpOutcome := verifier.Verify(ctx, outcome.NormalizedAddress, outcome.Domain)
	v := p.verdictFromSMTP(outcome, smtpOutcome)
	p.verdictCache.Set(key, v, p.opts.VerdictCacheTTL)
	return p.finish(start, v, false), nil
}

// finish stamps processing time and from_cache onto a freshly computed
// Verdict (fromCache is always false here; cache hits return earlier).
func (p *Pipeline) finish(start time.Time, v Verdict, fromCache bool) Verdict {
	v.ProcessingTimeMs = float64(time.Since(start)) / float64(time.Millisecond)
	v.FromCache = fromCache
	return v
}

// verifierForCall returns the Pipeline's shared verifier, unless the call
// overrides HeloDomain/FromAddress/STARTTLSPolicy, in which case a throwaway
// Verifier is built so the override never touches the shared rotation
// counters or the shared pool's fixed STARTTLS policy. The returned cleanup
// must be called once the caller is done with the verifier; it is a no-op
// when the shared verifier was returned.
func (p *Pipeline) verifierForCall(ov ValidateOptions) (v *smtpverify.Verifier, cleanup func()) {
	if ov.HeloDomain == "" && ov.FromAddress == "" && ov.STARTTLSPolicy == "" && ov.MaxRetries <= 0 {
		return p.verifier, func() {}
	}

	helo := ov.HeloDomain
	if helo == "" {
		helo = p.opts.HeloDomains[0]
	}
	from := ov.FromAddress
	if from == "" {
		from = p.opts.FromAddresses[0]
	}
	oneShot, err := rotator.New([]string{helo}, []string{from})
	if err != nil {
		return p.verifier, func() {}
	}

	maxRetries := p.opts.MaxRetries
	if ov.MaxRetries > 0 {
		maxRetries = ov.MaxRetries
	}

	// STARTTLS policy is baked into the shared pool at construction time, so
	// honoring a per-call override means standing up a throwaway pool (and
	// tearing it down again via cleanup) rather than reusing p.pool.
	if ov.STARTTLSPolicy == "" {
		return smtpverify.New(p.resolver, p.pool, oneShot, smtpverify.Options{MaxRetries: maxRetries, RetryDelay: time.Second}), func() {}
	}

	onceConfig := smtpclient.Config{
		ConnectTimeout: p.opts.ConnectTimeout,
		ReadTimeout:    p.opts.ReadTimeout,
		STARTTLS:       starttlsPolicy(ov.STARTTLSPolicy),
	}
	oncePool := connpool.New(connpool.Config{
		EnablePooling: !p.opts.DisableConnectionPooling,
		MaxPerKey:     p.opts.ConnPoolMaxPerKey,
		IdleTimeout:   p.opts.ConnPoolIdleTimeout,
		ClientConfig:  onceConfig,
	})
	return smtpverify.New(p.resolver, oncePool, oneShot, smtpverify.Options{MaxRetries: maxRetries, RetryDelay: time.Second}),
		func() { _ = oncePool.Close() }
}

func (p *Pipeline) verdictFromTerminal(address string, o lexical.Outcome) Verdict {
	d := Details{Role: o.IsRole}
	if o.Score > 0 {
		d.Format = true
	}
	return Verdict{
		Valid:      o.Valid,
		Email:      address,
		Score:      o.Score,
		Reason:     o.Reason,
		Suggestion: o.Suggestion,
		Details:    d,
	}
}

func (p *Pipeline) verdictFromSMTP(outcome lexical.Outcome, s smtpverify.Outcome) Verdict {
	d := Details{Format: true, MX: true, Disposable: true, Typo: true, Suspicious: true, SpamKeywords: true, Role: outcome.IsRole}

	smtpDetails := &SMTPDetails{
		ReasonCode: s.ReasonCode,
		SMTPCode:   s.SMTPCode,
		MXHost:     s.MXHost,
		ServerHint: s.ServerHint,
	}

	var v Verdict
	switch s.Result {
	case classifier.ResultValid:
		smtpPassed := true
		d.SMTP = &smtpPassed
		v = Verdict{Valid: true, Score: ScorePassed}
	case classifier.ResultInvalid:
		smtpFailed := false
		d.SMTP = &smtpFailed
		v = Verdict{Valid: false, Score: ScoreSMTPFailed, Reason: []string{"SMTP verification rejected the address"}}
	default: // unknown: degraded-but-accepted, per spec §4.10 step 6 / §9 open question
		v = Verdict{Valid: true, Score: ScoreSMTPUnavailable, Reason: []string{"SMTP verification unavailable"}}
	}

	v.Email = outcome.NormalizedAddress
	v.Suggestion = outcome.Suggestion
	v.Details = d
	v.SMTPDetails = smtpDetails
	return v
}

// cacheKey hashes the lower-cased address with the configured salt, per
// spec §4.10 step 2.
func (p *Pipeline) cacheKey(address string) string {
	h := sha256.New()
	h.Write([]byte(p.opts.HashSalt))
	h.Write([]byte(strings.ToLower(address)))
	return hex.EncodeToString(h.Sum(nil))
}
