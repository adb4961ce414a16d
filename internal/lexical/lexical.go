// Package lexical implements the address validator's first, purely
// syntactic stage: a fixed, ordered sequence of checks that either produces
// a final verdict on its own (too long, malformed, disposable, ...) or signals
// that the address is lexically clean and DNS/SMTP verification should
// proceed.
//
// The ordering mirrors the style of check/syntax.go and check/domain.go in
// the package this module started from, generalized into one pipeline
// instead of several independently pluggable Checkers, because the spec
// requires "first check that fires wins" semantics rather than an
// accumulation of independent pass/fail results.
package lexical

import (
	"regexp"
	"strings"

	"golang.org/x/net/idna"

	"github.com/optimode/mailverify/internal/levenshtein"
	"github.com/optimode/mailverify/internal/patterns"
)

// Outcome is what one call to Validate produces. When Terminal is true, the
// caller has a final verdict and must not proceed to DNS/SMTP. When false,
// NormalizedAddress and Domain carry the cleaned-up values for the next
// stage.
type Outcome struct {
	Terminal          bool
	Valid             bool
	Score             int
	Reason            []string
	Suggestion        string
	NormalizedAddress string
	Domain            string

	// Informational flags for filling in Details. They are set on the
	// outcomes of steps 9-11 and on non-terminal outcomes; an outcome that
	// ends at steps 1-8 leaves both false.
	IsDisposable bool
	IsRole       bool
}

var localAllowed = regexp.MustCompile(`^[A-Za-z0-9._+-]*$`)

// structuralRegex is spec §4.2 step 3, verbatim.
var structuralRegex = regexp.MustCompile(`^[A-Za-z0-9._+-]+@[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?)*$`)

// restrictedChars is spec §4.2 step 4.
var restrictedChars = regexp.MustCompile(`["'!#$%&*/=?^` + "`" + `{|}~()<>\[\]\\]|\s`)

var plusTagRegex = regexp.MustCompile(`(?i)^(test|spam|fake|dummy|temp)$`)

// plusUnsupportedProviders is the well-known set of mailbox providers that
// do not honor RFC 5233 sub-addressing.
var plusUnsupportedProviders = map[string]struct{}{
	"aol.com":        {},
	"yandex.com":     {},
	"yandex.ru":      {},
	"mail.ru":        {},
	"protonmail.com": {},
	"proton.me":      {},
	"zoho.com":       {},
	"tutanota.com":   {},
	"fastmail.com":   {},
}

var keyboardWalks = []string{
	"qwerty", "asdfgh", "zxcvbn", "qwertyui", "asdfghjk", "zxcvbnm",
	"123456", "098765", "1234567890", "0987654321",
}

// defaultKnownProviders seeds the Levenshtein-based "closest known provider"
// suggestion used when the exact typo_domains map misses (see DESIGN.md).
var defaultKnownProviders = []string{
	"gmail.com", "googlemail.com",
	"yahoo.com", "yahoo.co.uk", "yahoo.fr", "yahoo.de",
	"outlook.com", "hotmail.com", "hotmail.co.uk", "live.com",
	"icloud.com", "me.com", "mac.com",
	"protonmail.com", "proton.me",
	"aol.com",
	"zoho.com",
	"yandex.com", "yandex.ru",
	"mail.com",
	"gmx.com", "gmx.net", "gmx.de",
	"fastmail.com",
	"tutanota.com",
}

const typoSuggestThreshold = 2

func terminal(valid bool, score int, reason string) Outcome {
	return Outcome{Terminal: true, Valid: valid, Score: score, Reason: []string{reason}}
}

// Validate runs the ordered check sequence of spec §4.2 against raw. store
// may be nil, in which case the typo/disposable/placeholder/spam checks
// (steps 9-11) never fire — useful for unit-testing the earlier steps in
// isolation.
func Validate(raw string, store *patterns.Store) Outcome {
	// Step 1: length guard.
	working := strings.ToLower(strings.TrimSpace(raw))
	if len(working) >= 250 {
		return terminal(false, 0, "Email address too long (250+ characters)")
	}

	atIdx := strings.LastIndex(working, "@")
	if atIdx < 1 || atIdx == len(working)-1 {
		return terminal(false, 0, "International characters not supported in local part")
	}
	local := working[:atIdx]
	domain := working[atIdx+1:]

	// Step 2: IDN normalization.
	if !localAllowed.MatchString(local) {
		return terminal(false, 0, "International characters not supported in local part")
	}
	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return terminal(false, 0, "International characters not supported in local part")
	}
	domain = asciiDomain
	working = local + "@" + domain

	// Step 3: structural regex.
	if !structuralRegex.MatchString(working) {
		return terminal(false, 0, "Invalid email address format")
	}

	// Step 4: restricted characters.
	if restrictedChars.MatchString(working) {
		return terminal(false, 0, "Email address contains restricted characters")
	}

	// Step 5: local-part rules.
	if len(local) > 64 {
		return terminal(false, 0, "Local part exceeds 64 characters")
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") {
		return terminal(false, 0, "Local part cannot start or end with a dot")
	}
	if strings.Contains(local, "..") {
		return terminal(false, 0, "Local part cannot contain consecutive dots")
	}

	// Step 6: domain rules.
	if len(domain) > 253 {
		return terminal(false, 0, "Domain exceeds 253 characters")
	}
	if strings.HasPrefix(domain, "-") || strings.HasSuffix(domain, "-") {
		return terminal(false, 0, "Domain cannot start or end with a hyphen")
	}
	if strings.Contains(domain, "..") {
		return terminal(false, 0, "Domain cannot contain consecutive dots")
	}

	// Step 7: heuristic suspicious local-part patterns. A domain that is
	// itself a known placeholder (example.com and friends) is exempted here
	// and falls through to step 11 instead — "qwerty@example.com" is a
	// placeholder/example address first and an auto-generated-looking local
	// part only incidentally.
	domainIsPlaceholder := store != nil && store.IsPlaceholderDomain(domain)
	if !domainIsPlaceholder && looksSuspicious(local) {
		return terminal(false, 0, "Email address local part looks auto-generated or suspicious")
	}

	// Step 8: plus-addressing rule.
	if strings.Contains(local, "+") {
		parts := strings.SplitN(local, "+", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return terminal(false, 0, "Malformed plus-addressing tag")
		}
		if _, blocked := plusUnsupportedProviders[domain]; blocked {
			return terminal(false, 0, "This provider does not support plus-addressing")
		}
		if plusTagRegex.MatchString(parts[1]) {
			return terminal(false, 0, "Plus-addressing tag indicates a disposable or test address")
		}
	}

	isRole := store != nil && store.IsRoleAccount(local)

	// Step 9: typo domain.
	if store != nil {
		if canonical, ok := store.CanonicalFor(domain); ok {
			return Outcome{
				Terminal:   true,
				Valid:      false,
				Score:      20,
				Reason:     []string{"Domain appears to be a typo. Did you mean '" + canonical + "'?"},
				Suggestion: canonical,
				IsRole:     isRole,
			}
		}
	}

	// Step 10: disposable domain.
	if store != nil && store.IsDisposable(domain) {
		return Outcome{
			Terminal:     true,
			Valid:        false,
			Score:        10,
			Reason:       []string{"Disposable email address"},
			IsDisposable: true,
			IsRole:       isRole,
		}
	}

	// Step 11: placeholder / spam-dominant.
	if store != nil && isPlaceholderOrSpam(store, local, domain) {
		return Outcome{
			Terminal: true,
			Valid:    false,
			Score:    5,
			Reason:   []string{"Placeholder or example email detected"},
			IsRole:   isRole,
		}
	}

	suggestion := ""
	if store != nil {
		suggestion = findKnownProviderSuggestion(domain)
	}

	return Outcome{
		Terminal:          false,
		NormalizedAddress: working,
		Domain:            domain,
		Suggestion:        suggestion,
		IsDisposable:      false,
		IsRole:            isRole,
	}
}

func looksSuspicious(local string) bool {
	if len(local) == 1 {
		return true
	}
	if hasConsecutiveIdentical(local, 5) {
		return true
	}
	if len(local) >= 3 && isSingleCharRepeated(local) {
		return true
	}
	if hasAscendingRun(local, 4) {
		return true
	}
	if len(local) >= 8 && uniqueCharRatio(local) < 0.3 {
		return true
	}
	lower := strings.ToLower(local)
	for _, walk := range keyboardWalks {
		if strings.Contains(lower, walk) || strings.Contains(lower, reverseString(walk)) {
			return true
		}
	}
	return false
}

func hasConsecutiveIdentical(s string, n int) bool {
	if len(s) < n {
		return false
	}
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func isSingleCharRepeated(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

func hasAscendingRun(s string, n int) bool {
	if len(s) < n {
		return false
	}
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1]+1 {
			run++
			if run >= n {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

func uniqueCharRatio(s string) float64 {
	seen := make(map[rune]struct{})
	count := 0
	for _, r := range s {
		seen[r] = struct{}{}
		count++
	}
	if count == 0 {
		return 0
	}
	return float64(len(seen)) / float64(count)
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

// isPlaceholderOrSpam implements spec §4.2 step 11's two disjuncts.
func isPlaceholderOrSpam(store *patterns.Store, local, domain string) bool {
	if store.IsPlaceholderDomain(domain) {
		return true
	}
	if allTokensAreSpam(store, local) {
		return true
	}
	domainNoTLD := domain
	if idx := strings.LastIndex(domain, "."); idx > 0 {
		domainNoTLD = domain[:idx]
	}
	return allTokensAreSpam(store, domainNoTLD)
}

var tokenSplitter = regexp.MustCompile(`[._-]+`)

func allTokensAreSpam(store *patterns.Store, s string) bool {
	tokens := tokenSplitter.Split(s, -1)
	nonEmpty := 0
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		nonEmpty++
		if !store.IsSpamKeyword(tok) {
			return false
		}
	}
	return nonEmpty >= 1
}

// findKnownProviderSuggestion returns the closest known provider domain
// within typoSuggestThreshold edits, or "" for an exact match or no match.
func findKnownProviderSuggestion(domain string) string {
	bestDist := typoSuggestThreshold + 1
	bestMatch := ""
	for _, provider := range defaultKnownProviders {
		if domain == provider {
			return ""
		}
		dist := levenshtein.Distance(domain, provider)
		if dist <= typoSuggestThreshold && dist < bestDist {
			bestDist = dist
			bestMatch = provider
		}
	}
	return bestMatch
}
