package mailverify

// Details reports which individual checks an address passed. A field is
// true when the address passed that check, except Role, which is true when
// the local part is a known role account (informational only); omitted SMTP
// means the probe stage was disabled for this verification.
type Details struct {
	Format       bool  `json:"format"`
	MX           bool  `json:"mx"`
	Disposable   bool  `json:"disposable"`
	Role         bool  `json:"role"`
	Typo         bool  `json:"typo"`
	Suspicious   bool  `json:"suspicious"`
	SpamKeywords bool  `json:"spam_keywords"`
	SMTP         *bool `json:"smtp,omitempty"`
}

// SMTPDetails carries the classifier's verdict for the SMTP probe stage.
// ReasonCode is always populated whenever the SMTP stage ran, even when the
// overall Verdict ends up valid (see DESIGN.md, Open Question 3).
type SMTPDetails struct {
	ReasonCode string `json:"reason_code"`
	SMTPCode   int    `json:"smtp_code,omitempty"`
	MXHost     string `json:"mx_host,omitempty"`
	ServerHint string `json:"server_hint,omitempty"`
}

// Verdict is the engine's structured decision for one address.
type Verdict struct {
	Valid            bool         `json:"valid"`
	Email            string       `json:"email"`
	Score            int          `json:"score"`
	Reason           []string     `json:"reason,omitempty"`
	Details          Details      `json:"details"`
	Suggestion       string       `json:"suggestion,omitempty"`
	ProcessingTimeMs float64      `json:"processing_time_ms"`
	FromCache        bool         `json:"from_cache"`
	SMTPDetails      *SMTPDetails `json:"smtp_details,omitempty"`
}

// Score constants, see spec §4.11. These are the only values a Verdict may
// carry in its Score field (testable property P8).
const (
	ScorePassed            = 100
	ScoreSMTPUnavailable   = 80
	ScoreSMTPFailed        = 60
	ScoreNoMX              = 30
	ScoreTypo              = 20
	ScoreDisposable        = 10
	ScorePlaceholderOrSpam = 5
	ScoreFormat            = 0
)
