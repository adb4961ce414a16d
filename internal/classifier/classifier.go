// Package classifier maps an SMTP (code, message) pair to a verification
// result and reason code, then layers a secondary, non-authoritative
// message-analysis pass on top for operational hints.
//
// The primary rule table generalizes forgedlabs-mail_sorter's
// classifySMTPResponse (a flat code-range switch) into the spec's full
// reason-code table; the severity-ranked hint pass is new, grounded on the
// same file's isRetryableError keyword sniffing.
package classifier

import "regexp"

// Result is a result category: valid, invalid, or unknown (temporary /
// undetermined).
type Result string

const (
	ResultValid   Result = "valid"
	ResultInvalid Result = "invalid"
	ResultUnknown Result = "unknown"
)

// Verdict is the classifier's structured output.
type Verdict struct {
	Result          Result
	ReasonCode      string
	SMTPCode        int
	Details         string
	MessageAnalysis string
	ServerHint      string
}

var (
	reUserUnknown  = regexp.MustCompile(`(?i)user.*unknown|recipient.*unknown|no.*mailbox|does.*not.*exist`)
	reRelayDenied  = regexp.MustCompile(`(?i)relay.*denied|relaying.*denied`)
	reGreylisted   = regexp.MustCompile(`(?i)grey.*list|gray.*list|try.*later`)
)

// Classify applies the primary rule table of spec §4.7. reasonLabel carries
// the caller's own characterization of the attempt (set to "Accepted" for a
// successful RCPT where the caller already knows the stage passed).
func Classify(code int, message, reasonLabel string) Verdict {
	v := classifyCode(code, message, reasonLabel)
	v.SMTPCode = code
	severity, hint := analyzeMessage(message)
	if severity != "" {
		v.MessageAnalysis = severity
		v.ServerHint = hint
	}
	return v
}

func classifyCode(code int, message, reasonLabel string) Verdict {
	if reasonLabel == "Accepted" && code >= 200 && code < 300 {
		return Verdict{Result: ResultValid, ReasonCode: "accepted"}
	}

	switch {
	case code == 550 && reUserUnknown.MatchString(message):
		return Verdict{Result: ResultInvalid, ReasonCode: "invalid_user"}
	case code == 550 && reRelayDenied.MatchString(message):
		return Verdict{Result: ResultInvalid, ReasonCode: "relay_denied"}
	case code == 550:
		return Verdict{Result: ResultInvalid, ReasonCode: "user_reject"}
	case code == 551:
		return Verdict{Result: ResultInvalid, ReasonCode: "user_not_local"}
	case code == 552:
		return Verdict{Result: ResultInvalid, ReasonCode: "mailbox_full"}
	case code == 553:
		return Verdict{Result: ResultInvalid, ReasonCode: "invalid_address_syntax"}
	case code == 554 || code == 571:
		return Verdict{Result: ResultInvalid, ReasonCode: "server_reject"}
	case code >= 500 && code < 600:
		return Verdict{Result: ResultInvalid, ReasonCode: "permanent_failure"}
	case code == 421:
		return Verdict{Result: ResultUnknown, ReasonCode: "service_unavailable"}
	case code == 450:
		return Verdict{Result: ResultUnknown, ReasonCode: "mailbox_busy"}
	case code == 451 && reGreylisted.MatchString(message):
		return Verdict{Result: ResultUnknown, ReasonCode: "greylisted"}
	case code == 451:
		return Verdict{Result: ResultUnknown, ReasonCode: "temporary_failure"}
	case code == 452:
		return Verdict{Result: ResultUnknown, ReasonCode: "mailbox_full"}
	case code == 454:
		return Verdict{Result: ResultUnknown, ReasonCode: "temporary_failure"}
	case code >= 400 && code < 500:
		return Verdict{Result: ResultUnknown, ReasonCode: "temporary_failure"}
	case code >= 200 && code < 400:
		return Verdict{Result: ResultValid, ReasonCode: "accepted"}
	default:
		return Verdict{Result: ResultUnknown, ReasonCode: "unrecognized_response"}
	}
}

type hintGroup struct {
	severity int // higher wins
	label    string
	hint     string
	pattern  *regexp.Regexp
}

// hintGroups is ordered by ascending severity; analyzeMessage keeps the
// highest-severity match, so later entries in this slice win ties over
// earlier ones when both match (matching the "highest severity" rule, not
// table order).
var hintGroups = []hintGroup{
	{severity: 1, label: "greylisted", hint: "exponential_backoff", pattern: regexp.MustCompile(`(?i)greylist|graylist|try again later`)},
	{severity: 1, label: "server_busy", hint: "retry_later", pattern: regexp.MustCompile(`(?i)server busy|too many connections|load too high`)},
	{severity: 2, label: "rate_limited", hint: "delay_and_retry", pattern: regexp.MustCompile(`(?i)rate limit|too many (messages|recipients)|throttl`)},
	{severity: 2, label: "connection_issues", hint: "try_next_mx", pattern: regexp.MustCompile(`(?i)connection (refused|reset|timed out)|network (error|unreachable)`)},
	{severity: 2, label: "authentication_issues", hint: "check_credentials", pattern: regexp.MustCompile(`(?i)authentication required|must authenticate|access denied`)},
	{severity: 3, label: "blocked", hint: "ip_rotation", pattern: regexp.MustCompile(`(?i)blocked|blacklist|spamhaus|reputation|banned`)},
}

// analyzeMessage scans message against every pattern group and returns the
// label/hint of the highest-severity match, or ("", "") if none match.
func analyzeMessage(message string) (label, hint string) {
	bestSeverity := 0
	for _, g := range hintGroups {
		if g.pattern.MatchString(message) && g.severity >= bestSeverity {
			bestSeverity = g.severity
			label, hint = g.label, g.hint
		}
	}
	return label, hint
}
