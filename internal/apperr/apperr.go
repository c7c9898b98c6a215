// Package apperr defines the error taxonomy shared by every service.
// Handlers translate kinds to HTTP status codes in exactly one place;
// services never reason about transport.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalid
	KindConflict
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindInvalidToken
	KindExpiredToken
	KindAlreadyVoted
	KindNotEnrolled
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets sentinel apperr values match any error of the same kind carrying
// the same message, so services can return fresh wrapped instances while
// callers compare against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// internal: storage outages and collaborator failures must not leak detail.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Sentinels for outcomes callers need to distinguish beyond the kind.
var (
	ErrRegistrationIncomplete = New(KindUnauthorized, "please complete your registration first")
	ErrInvalidCredentials     = New(KindUnauthorized, "invalid email or password")
	ErrAccountDeactivated     = New(KindUnauthorized, "account is deactivated, contact the administrator")
	ErrCredentialMismatch     = New(KindInvalid, "current password is incorrect")
	ErrWalletConflict         = New(KindConflict, "this wallet address is already registered")
	ErrAlreadyRegistered      = New(KindInvalidToken, "user is already registered")
	ErrInvalidToken           = New(KindInvalidToken, "invalid registration token")
	ErrExpiredToken           = New(KindExpiredToken, "registration token has expired")
	ErrEmptyBatch             = New(KindInvalid, "no valid voters found in file")
)
