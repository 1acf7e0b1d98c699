// Package apperr defines the error kinds shared by the market data, risk,
// news and storage layers.
package apperr

import (
	"errors"
	"strings"
)

var (
	// ErrDataUnavailable means the provider answered but had nothing for the
	// requested symbol or period.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInvalidPortfolio covers empty portfolios, zero total value and
	// price histories too short to support a statistic.
	ErrInvalidPortfolio = errors.New("invalid portfolio")
	// ErrPersistence wraps failures reported by the article store.
	ErrPersistence = errors.New("persistence error")
	// ErrUpstream means the provider could not be reached or failed.
	ErrUpstream = errors.New("upstream error")
	// ErrRejected means the provider refused the request itself, for
	// example a bad API key. It is never retried.
	ErrRejected = errors.New("request rejected")
)

// Error carries the kind plus the operation and subject (symbol, article
// title, ...) it happened on.
type Error struct {
	Kind    error
	Op      string
	Subject string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
	}
	if e.Subject != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(e.Subject)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func DataUnavailable(op, subject string, err error) error {
	return &Error{Kind: ErrDataUnavailable, Op: op, Subject: subject, Err: err}
}

func InvalidPortfolio(op, subject string, err error) error {
	return &Error{Kind: ErrInvalidPortfolio, Op: op, Subject: subject, Err: err}
}

func Persistence(op, subject string, err error) error {
	return &Error{Kind: ErrPersistence, Op: op, Subject: subject, Err: err}
}

func Upstream(op, subject string, err error) error {
	return &Error{Kind: ErrUpstream, Op: op, Subject: subject, Err: err}
}

func Rejected(op, subject string, err error) error {
	return &Error{Kind: ErrRejected, Op: op, Subject: subject, Err: err}
}

// Retryable reports whether err is a transient upstream failure.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDataUnavailable) || errors.Is(err, ErrInvalidPortfolio) {
		return false
	}
	return errors.Is(err, ErrUpstream)
}
