// Package errs is the error taxonomy shared by every wallet service. Each
// error carries a Kind for routing, a stable Reason code for clients and a
// human readable Message that never includes storage details.
package errs

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindUpstream          Kind = "upstream_error"
	KindPartial           Kind = "partial"
	KindForbidden         Kind = "forbidden"
)

// Reason codes surfaced to clients.
const (
	ReasonInvalid             = "invalid"
	ReasonIdempotencyConflict = "idempotency_conflict"
	ReasonNotFound            = "not_found"
	ReasonInsufficientFunds   = "insufficient_funds"
	ReasonUpstream            = "upstream_error"
	ReasonTransferInProgress  = "transfer_in_progress"
	ReasonTransferPending     = "transfer_pending"
	ReasonPartial             = "partial"
	ReasonForbidden           = "forbidden"
)

type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, errs.ErrNotFound) works
// for every not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrUpstream          = &Error{Kind: KindUpstream}
	ErrPartial           = &Error{Kind: KindPartial}
	ErrForbidden         = &Error{Kind: KindForbidden}
)

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Reason: ReasonInvalid, Message: message}
}

func IdempotencyConflict(message string) *Error {
	return &Error{Kind: KindValidation, Reason: ReasonIdempotencyConflict, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Reason: ReasonNotFound, Message: message}
}

func InsufficientFunds() *Error {
	return &Error{Kind: KindInsufficientFunds, Reason: ReasonInsufficientFunds, Message: "Insufficient funds."}
}

func Upstream(message string, err error) *Error {
	return &Error{Kind: KindUpstream, Reason: ReasonUpstream, Message: message, Err: err}
}

// TransferInProgress reports that another request holds the transfer's lock.
// It is retryable.
func TransferInProgress(err error) *Error {
	return &Error{Kind: KindUpstream, Reason: ReasonTransferInProgress, Message: "Transfer is already being processed, please retry", Err: err}
}

// TransferPending reports a transfer whose ledger outcome could not be
// confirmed. Funds may have moved; a retry with the same transferId settles it.
func TransferPending(err error) *Error {
	return &Error{Kind: KindUpstream, Reason: ReasonTransferPending, Message: "Transfer is being confirmed, retry with the same transferId", Err: err}
}

func Partial(message string, err error) *Error {
	return &Error{Kind: KindPartial, Reason: ReasonPartial, Message: message, Err: err}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Reason: ReasonForbidden, Message: message}
}

// As extracts the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf classifies err. Context deadlines and cancellations count as
// upstream failures; anything unclassified is reported as upstream too.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUpstream
}

// ReasonOf returns the client-facing reason code for err.
func ReasonOf(err error) string {
	if e, ok := As(err); ok && e.Reason != "" {
		return e.Reason
	}
	return string(KindOf(err))
}

// Retryable reports whether err may be retried without risking a duplicate side effect.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err) == KindUpstream
}
