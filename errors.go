package mailverify

import "errors"

var (
	// ErrInvalidSMTPOptions is returned when SMTP probing is enabled but no
	// HELO domain / MAIL FROM identity source is configured.
	ErrInvalidSMTPOptions = errors.New("mailverify: SMTP probing requires at least one helo_domain and one from_address")

	// ErrEmptyAddress is returned by ValidateSingle for a zero-length input.
	ErrEmptyAddress = errors.New("mailverify: address is empty")
)
