// Package smtpverify orchestrates the per-host, per-attempt RCPT TO probe
// algorithm of spec §4.8: it asks the DNS resolver for MX hosts, the
// identity rotator for a HELO/FROM pair on each attempt, acquires a pooled
// SMTP session, drives it through MAIL FROM / RCPT TO, and classifies the
// response.
//
// This generalizes forgedlabs-mail_sorter's per-MX retry-with-backoff loop
// (performSMTPVerification / verifySMTPWithMX) onto this module's own
// connection pool and classifier instead of stdlib net/smtp and an ad hoc
// status enum.
package smtpverify

import (
	"context"
	"strings"
	"time"

	"github.com/optimode/mailverify/internal/classifier"
	"github.com/optimode/mailverify/internal/connpool"
	"github.com/optimode/mailverify/internal/dnsresolve"
	"github.com/optimode/mailverify/internal/rotator"
)

// Options controls one verification attempt series.
type Options struct {
	MaxRetries int // attempts per MX host beyond the first, default 2
	RetryDelay time.Duration
}

// DefaultOptions matches spec §4.8/§6: 2 retries, 1s inter-attempt sleep.
func DefaultOptions() Options {
	return Options{MaxRetries: 2, RetryDelay: time.Second}
}

// Outcome is the SMTP verifier's final result for one address.
type Outcome struct {
	Result     classifier.Result
	ReasonCode string
	SMTPCode   int
	MXHost     string
	ServerHint string
}

// Verifier ties together MX resolution, identity rotation, and pooled SMTP
// sessions to answer whether a target mailbox accepts mail.
type Verifier struct {
	resolver *dnsresolve.Resolver
	pool     *connpool.Pool
	rotator  *rotator.Rotator
	opts     Options
}

// New constructs a Verifier from its three collaborators.
func New(resolver *dnsresolve.Resolver, pool *connpool.Pool, rot *rotator.Rotator, opts Options) *Verifier {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 2
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &Verifier{resolver: resolver, pool: pool, rotator: rot, opts: opts}
}

// Verify probes targetAddress (full "local@domain") for deliverability.
func (v *Verifier) Verify(ctx context.Context, targetAddress, targetDomain string) Outcome {
	res, err := v.resolver.LookupMX(ctx, targetDomain)
	if err != nil || len(res.Records) == 0 {
		return Outcome{Result: classifier.ResultUnknown, ReasonCode: "no_mx_available"}
	}

	var last Outcome
	for _, mx := range res.Records {
		select {
		case <-ctx.Done():
			return Outcome{Result: classifier.ResultUnknown, ReasonCode: "cancelled", MXHost: mx.Host}
		default:
		}

		outcome, done := v.probeHost(ctx, mx.Host, targetAddress, targetDomain)
		last = outcome
		if done {
			return outcome
		}
	}

	last.Result = classifier.ResultUnknown
	return last
}

// probeHost runs the attempt loop against a single MX host, returning the
// outcome of the last attempt and whether that outcome is final (ok or
// permfail, per spec §4.8 step 2).
func (v *Verifier) probeHost(ctx context.Context, host, targetAddress, targetDomain string) (Outcome, bool) {
	var last Outcome
	for attempt := 0; attempt <= v.opts.MaxRetries; attempt++ {
		helo, from := v.rotator.Credentials(targetDomain)

		outcome, transportErr := v.attempt(host, from, targetAddress, helo)
		last = outcome

		if transportErr != nil {
			if strings.Contains(transportErr.Error(), "timeout") {
				return last, false // move on to the next host
			}
			if attempt < v.opts.MaxRetries {
				sleep(ctx, v.opts.RetryDelay)
				continue
			}
			return last, false
		}

		switch outcome.Result {
		case classifier.ResultValid:
			return last, true
		case classifier.ResultInvalid:
			return last, true
		default: // unknown: tempfail
			if attempt < v.opts.MaxRetries {
				sleep(ctx, v.opts.RetryDelay)
				continue
			}
			return last, false
		}
	}
	return last, false
}

// attempt performs one MAIL FROM / RCPT TO exchange against host using a
// pooled session, returning the classified outcome or a transport error.
func (v *Verifier) attempt(host, from, targetAddress, helo string) (Outcome, error) {
	session, err := v.pool.Acquire(host, "25")
	if err != nil {
		return Outcome{Result: classifier.ResultUnknown, ReasonCode: "pool_unavailable", MXHost: host}, err
	}

	if session.IsNew() {
		if err := session.Client.Connect(host+":25", helo); err != nil {
			v.pool.Release(session)
			return Outcome{Result: classifier.ResultUnknown, ReasonCode: "connect_failed", MXHost: host}, err
		}
	} else {
		if err := session.Client.Reset(); err != nil {
			v.pool.Release(session)
			return Outcome{Result: classifier.ResultUnknown, ReasonCode: "reset_failed", MXHost: host}, err
		}
	}

	mailResp, err := session.Client.MailFrom(from)
	if err != nil {
		v.pool.Release(session)
		return Outcome{Result: classifier.ResultUnknown, ReasonCode: "transport_error", MXHost: host}, err
	}
	if mailResp.Code >= 500 {
		_ = session.Client.Reset()
		v.pool.Release(session)
		cv := classifier.Classify(mailResp.Code, mailResp.Message, "")
		return Outcome{Result: classifier.ResultInvalid, ReasonCode: cv.ReasonCode, SMTPCode: mailResp.Code, MXHost: host, ServerHint: cv.ServerHint}, nil
	}
	if mailResp.Code >= 400 {
		_ = session.Client.Reset()
		v.pool.Release(session)
		cv := classifier.Classify(mailResp.Code, mailResp.Message, "")
		return Outcome{Result: classifier.ResultUnknown, ReasonCode: cv.ReasonCode, SMTPCode: mailResp.Code, MXHost: host, ServerHint: cv.ServerHint}, nil
	}

	rcptResp, err := session.Client.RcptTo(targetAddress)
	if err != nil {
		v.pool.Release(session)
		return Outcome{Result: classifier.ResultUnknown, ReasonCode: "transport_error", MXHost: host}, err
	}

	reasonLabel := ""
	if rcptResp.Code >= 200 && rcptResp.Code < 300 {
		reasonLabel = "Accepted"
	}
	cv := classifier.Classify(rcptResp.Code, rcptResp.Message, reasonLabel)

	_ = session.Client.Reset()
	v.pool.Release(session)

	return Outcome{
		Result:     cv.Result,
		ReasonCode: cv.ReasonCode,
		SMTPCode:   rcptResp.Code,
		MXHost:     host,
		ServerHint: cv.ServerHint,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
