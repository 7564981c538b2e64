// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package envelope

import (
	"fmt"

	"github.com/pkg/errors"
)

// Validation and precondition failures. Handled fully locally: no funds
// move, nothing is persisted.
var (
	ErrMalformedAmount     = errors.New("malformed amount")
	ErrAmountTooLarge      = errors.New("amount above maximum")
	ErrBadShareCount       = errors.New("share count must be positive")
	ErrTooManyShares       = errors.New("share count above maximum")
	ErrBelowMinPerShare    = errors.New("per-share amount below minimum")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnknownToken        = errors.New("token is not configured")
	ErrNotFound            = errors.New("envelope not found for this owner")
	ErrAlreadySent         = errors.New("envelope already sent")
	ErrAlreadyRevoked      = errors.New("envelope already revoked")
	ErrExpired             = errors.New("envelope expired")
	ErrNotYetExpired       = errors.New("envelope not yet expired")
	ErrDuplicateClaim      = errors.New("claim already attempted")
)

// RegistryCode is the closed space of remote registry rejections. The
// registry reports (code, message); everything outside this set renders
// as a generic failure.
type RegistryCode uint64

const (
	RegistryOK             RegistryCode = 0
	RegistryExpired        RegistryCode = 1107
	RegistryNotFound       RegistryCode = 1108
	RegistryExhausted      RegistryCode = 1109
	RegistryAlreadyClaimed RegistryCode = 1110
	RegistryNotOwner       RegistryCode = 1111
	RegistryAlreadyRevoked RegistryCode = 1112
	RegistryNotYetExpired  RegistryCode = 1113
	RegistryInvalid        RegistryCode = 1114
)

func (c RegistryCode) Known() bool {
	switch c {
	case RegistryExpired, RegistryNotFound, RegistryExhausted, RegistryAlreadyClaimed,
		RegistryNotOwner, RegistryAlreadyRevoked, RegistryNotYetExpired, RegistryInvalid:
		return true
	}
	return false
}

// NeedsEnvelopeID reports whether the user-facing message for this code
// is parameterized by the envelope id.
func (c RegistryCode) NeedsEnvelopeID() bool {
	switch c {
	case RegistryExpired, RegistryNotFound, RegistryExhausted, RegistryAlreadyClaimed,
		RegistryAlreadyRevoked, RegistryNotYetExpired, RegistryInvalid:
		return true
	}
	return false
}

type RegistryError struct {
	Code    RegistryCode
	Message string
}

func (e *RegistryError) Error() string {
	return fmt.Sprintf("registry rejected call: code=%d %s", e.Code, e.Message)
}

// LedgerErrorKind is the closed space of ledger transfer/approve
// rejections surfaced to users.
type LedgerErrorKind int

const (
	LedgerUnknown LedgerErrorKind = iota
	LedgerGeneric
	LedgerTemporarilyUnavailable
	LedgerInsufficientFunds
)

type LedgerError struct {
	Kind    LedgerErrorKind
	Message string
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger rejected call: kind=%d %s", e.Kind, e.Message)
}

// AmbiguousError marks a transport failure on a mutating call whose true
// outcome is unknown. It must never trigger an automatic retry of the
// same call; the remote state has to be inspected first.
type AmbiguousError struct {
	Op  string
	Err error
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous outcome of %s: %v", e.Op, e.Err)
}

func (e *AmbiguousError) Unwrap() error {
	return e.Err
}

func IsAmbiguous(err error) bool {
	var ambiguous *AmbiguousError
	return errors.As(err, &ambiguous)
}
