package lexical_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mailverify/internal/lexical"
	"github.com/optimode/mailverify/internal/patterns"
)

func testStore(t *testing.T) *patterns.Store {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	return patterns.Load(patterns.Paths{
		PlaceholderDomains: write("placeholder_domains.txt", "example.com\n"),
		SpamKeywords:       write("spam_keywords.txt", "spam\nfake\ntest\n"),
		TypoDomains:        write("typo_domains.txt", "gmial.com:gmail.com\n"),
		DisposableDomains:  write("disposable_domains.txt", "mailinator.com\n"),
		RoleAccounts:       write("role_accounts.txt", "admin\nsupport\n"),
	}, nil)
}

func TestValidate_TooLong(t *testing.T) {
	local := strings.Repeat("a", 250)
	out := lexical.Validate(local+"@example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
	assert.Equal(t, 0, out.Score)
}

func TestValidate_RestrictedCharacters(t *testing.T) {
	out := lexical.Validate("bad user@example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_NoAtSign(t *testing.T) {
	out := lexical.Validate("notanemail", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_LocalPartLeadingDot(t *testing.T) {
	out := lexical.Validate(".jdoe@example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_ConsecutiveDotsInLocal(t *testing.T) {
	out := lexical.Validate("j..doe@example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_DomainLeadingHyphen(t *testing.T) {
	out := lexical.Validate("jdoe@-example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_SingleCharacterLocal(t *testing.T) {
	out := lexical.Validate("a@example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_RepeatedCharacterLocal(t *testing.T) {
	out := lexical.Validate("aaaaaa@example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_AscendingRunLocal(t *testing.T) {
	out := lexical.Validate("abcdxyz@example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_KeyboardWalk(t *testing.T) {
	out := lexical.Validate("qwerty123@example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_PlusAddressingOK(t *testing.T) {
	out := lexical.Validate("jane.doe+newsletter@company.com", nil)
	assert.False(t, out.Terminal)
	assert.Equal(t, "jane.doe+newsletter@company.com", out.NormalizedAddress)
}

func TestValidate_PlusAddressingBlockedProvider(t *testing.T) {
	out := lexical.Validate("jane+newsletter@aol.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_PlusAddressingTestTag(t *testing.T) {
	out := lexical.Validate("jane+test@company.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}

func TestValidate_TypoDomain(t *testing.T) {
	store := testStore(t)
	out := lexical.Validate("jdoe@gmial.com", store)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
	assert.Equal(t, 20, out.Score)
	assert.Equal(t, "gmail.com", out.Suggestion)
}

func TestValidate_DisposableDomain(t *testing.T) {
	store := testStore(t)
	out := lexical.Validate("jdoe@mailinator.com", store)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
	assert.Equal(t, 10, out.Score)
	assert.True(t, out.IsDisposable)
}

func TestValidate_PlaceholderDomain(t *testing.T) {
	store := testStore(t)
	out := lexical.Validate("jdoe@example.com", store)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
	assert.Equal(t, 5, out.Score)
}

func TestValidate_PlaceholderDomainOutranksSuspiciousLocal(t *testing.T) {
	store := testStore(t)
	out := lexical.Validate("qwerty@example.com", store)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
	assert.Equal(t, 5, out.Score)
	assert.Equal(t, []string{"Placeholder or example email detected"}, out.Reason)
}

func TestValidate_SpamDominantLocal(t *testing.T) {
	store := testStore(t)
	out := lexical.Validate("spam.fake@company.com", store)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
	assert.Equal(t, 5, out.Score)
}

func TestValidate_RoleAccountIsInformationalOnly(t *testing.T) {
	store := testStore(t)
	out := lexical.Validate("admin@company.com", store)
	assert.False(t, out.Terminal)
	assert.True(t, out.IsRole)
}

func TestValidate_CleanAddressContinues(t *testing.T) {
	store := testStore(t)
	out := lexical.Validate("  Jane.Doe@Company.COM  ", store)
	assert.False(t, out.Terminal)
	assert.Equal(t, "jane.doe@company.com", out.NormalizedAddress)
	assert.Equal(t, "company.com", out.Domain)
}

func TestValidate_IDNDomainNormalized(t *testing.T) {
	out := lexical.Validate("jdoe@münchen.de", nil)
	assert.False(t, out.Terminal)
	assert.True(t, strings.HasPrefix(out.Domain, "xn--"))
}

func TestValidate_NonASCIILocalRejected(t *testing.T) {
	out := lexical.Validate("jürgen@example.com", nil)
	assert.True(t, out.Terminal)
	assert.False(t, out.Valid)
}
