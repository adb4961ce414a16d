package classifier_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/optimode/mailverify/internal/classifier"
)

func TestClassify_Accepted(t *testing.T) {
	v := classifier.Classify(250, "Recipient OK", "Accepted")
	assert.Equal(t, classifier.ResultValid, v.Result)
	assert.Equal(t, "accepted", v.ReasonCode)
}

func TestClassify_InvalidUser(t *testing.T) {
	v := classifier.Classify(550, "5.1.1 User unknown", "")
	assert.Equal(t, classifier.ResultInvalid, v.Result)
	assert.Equal(t, "invalid_user", v.ReasonCode)
}

func TestClassify_RelayDenied(t *testing.T) {
	v := classifier.Classify(550, "Relaying denied for this domain", "")
	assert.Equal(t, classifier.ResultInvalid, v.Result)
	assert.Equal(t, "relay_denied", v.ReasonCode)
}

func TestClassify_GenericUserReject(t *testing.T) {
	v := classifier.Classify(550, "Mailbox unavailable", "")
	assert.Equal(t, classifier.ResultInvalid, v.Result)
	assert.Equal(t, "user_reject", v.ReasonCode)
}

func TestClassify_MailboxFull552(t *testing.T) {
	v := classifier.Classify(552, "Quota exceeded", "")
	assert.Equal(t, "mailbox_full", v.ReasonCode)
}

func TestClassify_ServerRejectRange(t *testing.T) {
	v := classifier.Classify(554, "Transaction failed", "")
	assert.Equal(t, "server_reject", v.ReasonCode)

	v = classifier.Classify(571, "Transaction failed", "")
	assert.Equal(t, "server_reject", v.ReasonCode)
}

func TestClassify_Greylisted(t *testing.T) {
	v := classifier.Classify(451, "Greylisted, please try again later", "")
	assert.Equal(t, classifier.ResultUnknown, v.Result)
	assert.Equal(t, "greylisted", v.ReasonCode)
}

func TestClassify_TemporaryFailure451(t *testing.T) {
	v := classifier.Classify(451, "Local error in processing", "")
	assert.Equal(t, "temporary_failure", v.ReasonCode)
}

func TestClassify_ServiceUnavailable421(t *testing.T) {
	v := classifier.Classify(421, "Service not available", "")
	assert.Equal(t, "service_unavailable", v.ReasonCode)
}

func TestClassify_FallthroughAccepted(t *testing.T) {
	v := classifier.Classify(251, "User not local, will forward", "")
	assert.Equal(t, classifier.ResultValid, v.Result)
	assert.Equal(t, "accepted", v.ReasonCode)
}

func TestClassify_MessageAnalysisBlockedHighestSeverity(t *testing.T) {
	v := classifier.Classify(550, "Your IP is blacklisted, rate limit also applies", "")
	assert.Equal(t, "blocked", v.MessageAnalysis)
	assert.Equal(t, "ip_rotation", v.ServerHint)
}

func TestClassify_MessageAnalysisRateLimited(t *testing.T) {
	v := classifier.Classify(450, "Rate limit exceeded, please slow down", "")
	assert.Equal(t, "rate_limited", v.MessageAnalysis)
	assert.Equal(t, "delay_and_retry", v.ServerHint)
}

func TestClassify_NoMessageAnalysisMatch(t *testing.T) {
	v := classifier.Classify(250, "OK", "Accepted")
	assert.Empty(t, v.MessageAnalysis)
}
