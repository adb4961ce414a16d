package mailverify

import (
	"github.com/optimode/mailverify/internal/config"
	"github.com/optimode/mailverify/internal/patterns"
)

// FromConfig maps a loaded internal/config.Config onto Options, so callers
// who want file+env-driven configuration can do:
//
//	cfg, _ := config.Load("mailverify.yaml", log)
//	pipeline, err := mailverify.New(mailverify.FromConfig(cfg), log)
func FromConfig(cfg *config.Config) Options {
	return Options{
		EnableSMTP:     cfg.EnableSMTPValidation,
		HeloDomains:    cfg.HeloDomains,
		FromAddresses:  cfg.FromAddresses,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		MaxRetries:     cfg.MaxRetries,
		STARTTLSPolicy: cfg.STARTTLSPolicy,

		DisableConnectionPooling: !cfg.EnableConnectionPooling,
		ConnPoolMaxPerKey:        cfg.ConnPoolMaxPerKey,
		ConnPoolIdleTimeout:      cfg.ConnPoolIdleTimeout,

		VerdictCacheSize: cfg.VerdictCacheSize,
		VerdictCacheTTL:  cfg.VerdictCacheTTL,
		MXCacheSize:      cfg.MXCacheSize,
		MXCacheTTL:       cfg.MXCacheDefaultTTL,
		HashSalt:         cfg.HashSalt,

		BatchSize: cfg.BatchSize,

		RefreshDisposableList:             cfg.DisposableListRefreshEnabled,
		RefreshDisposableListRepoURL:      cfg.DisposableListRepoURL,
		RefreshDisposableListPullCooldown: cfg.DisposableListPullCooldown,
		RefreshDisposableListInterval:     cfg.DisposableListRefreshInterval,

		RedisAddr: redisAddrIfEnabled(cfg),

		patternPaths: patterns.Paths{
			PlaceholderDomains: cfg.PatternPlaceholderDomainsFile,
			SpamKeywords:       cfg.PatternSpamKeywordsFile,
			TypoDomains:        cfg.PatternTypoDomainsFile,
			DisposableDomains:  cfg.PatternDisposableDomainsFile,
			RoleAccounts:       cfg.PatternRoleAccountsFile,
		},
	}
}

func redisAddrIfEnabled(cfg *config.Config) string {
	if cfg.RedisEnabled {
		return cfg.RedisAddr
	}
	return ""
}
