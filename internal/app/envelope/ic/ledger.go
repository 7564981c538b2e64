// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package ic

import (
	"context"
	"math/big"

	"github.com/aviate-labs/agent-go/candid/idl"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/internal/app/envelope"
	"github.com/socialfi/rebot/internal/app/identity"
	"github.com/socialfi/rebot/internal/models"
	"github.com/socialfi/rebot/observability"
)

type account struct {
	Owner      principal.Principal `ic:"owner"`
	Subaccount *[]byte             `ic:"subaccount"`
}

type transferArgs struct {
	FromSubaccount *[]byte  `ic:"from_subaccount"`
	To             account  `ic:"to"`
	Amount         idl.Nat  `ic:"amount"`
	Fee            *idl.Nat `ic:"fee"`
	Memo           *[]byte  `ic:"memo"`
	CreatedAtTime  *uint64  `ic:"created_at_time"`
}

type badFee struct {
	ExpectedFee idl.Nat `ic:"expected_fee"`
}

type badBurn struct {
	MinBurnAmount idl.Nat `ic:"min_burn_amount"`
}

type insufficientFunds struct {
	Balance idl.Nat `ic:"balance"`
}

type createdInFuture struct {
	LedgerTime uint64 `ic:"ledger_time"`
}

type duplicate struct {
	DuplicateOf idl.Nat `ic:"duplicate_of"`
}

type genericError struct {
	ErrorCode idl.Nat `ic:"error_code"`
	Message   string  `ic:"message"`
}

type transferError struct {
	BadFee                 *badFee            `ic:"BadFee,variant"`
	BadBurn                *badBurn           `ic:"BadBurn,variant"`
	InsufficientFunds      *insufficientFunds `ic:"InsufficientFunds,variant"`
	TooOld                 *idl.Null          `ic:"TooOld,variant"`
	CreatedInFuture        *createdInFuture   `ic:"CreatedInFuture,variant"`
	TemporarilyUnavailable *idl.Null          `ic:"TemporarilyUnavailable,variant"`
	Duplicate              *duplicate         `ic:"Duplicate,variant"`
	GenericError           *genericError      `ic:"GenericError,variant"`
}

type transferResult struct {
	Ok  *idl.Nat       `ic:"Ok,variant"`
	Err *transferError `ic:"Err,variant"`
}

type allowanceChanged struct {
	CurrentAllowance idl.Nat `ic:"current_allowance"`
}

type approveExpired struct {
	LedgerTime uint64 `ic:"ledger_time"`
}

type approveError struct {
	BadFee                 *badFee            `ic:"BadFee,variant"`
	InsufficientFunds      *insufficientFunds `ic:"InsufficientFunds,variant"`
	AllowanceChanged       *allowanceChanged  `ic:"AllowanceChanged,variant"`
	Expired                *approveExpired    `ic:"Expired,variant"`
	TooOld                 *idl.Null          `ic:"TooOld,variant"`
	CreatedInFuture        *createdInFuture   `ic:"CreatedInFuture,variant"`
	Duplicate              *duplicate         `ic:"Duplicate,variant"`
	TemporarilyUnavailable *idl.Null          `ic:"TemporarilyUnavailable,variant"`
	GenericError           *genericError      `ic:"GenericError,variant"`
}

type approveResult struct {
	Ok  *idl.Nat      `ic:"Ok,variant"`
	Err *approveError `ic:"Err,variant"`
}

type approveArgs struct {
	FromSubaccount    *[]byte  `ic:"from_subaccount"`
	Spender           account  `ic:"spender"`
	Amount            idl.Nat  `ic:"amount"`
	ExpectedAllowance *idl.Nat `ic:"expected_allowance"`
	ExpiresAt         *uint64  `ic:"expires_at"`
	Fee               *idl.Nat `ic:"fee"`
	Memo              *[]byte  `ic:"memo"`
	CreatedAtTime     *uint64  `ic:"created_at_time"`
}

type allowanceArgs struct {
	Account account `ic:"account"`
	Spender account `ic:"spender"`
}

type allowanceResponse struct {
	Allowance idl.Nat `ic:"allowance"`
	ExpiresAt *uint64 `ic:"expires_at"`
}

// Ledger speaks ICRC-1/ICRC-2 to whichever ledger canister the token
// config names. Every call runs under a delegation for the user, so the
// ledger account charged is the user's own.
type Ledger struct {
	log    *logrus.Logger
	dialer *Dialer
	issuer *identity.Issuer
}

func NewLedger(obs *observability.Observability, dialer *Dialer, issuer *identity.Issuer) *Ledger {
	return &Ledger{
		log:    obs.Log(),
		dialer: dialer,
		issuer: issuer,
	}
}

// dialAsUser issues (or reuses) a delegation scoped to the ledger
// canister and opens an agent that sends as the user.
func (l *Ledger) dialAsUser(token *models.TokenConfig, userID int64) (*delegatedAgent, principal.Principal, principal.Principal, error) {
	canister, err := principal.Decode(token.LedgerID)
	if err != nil {
		return nil, principal.Principal{}, principal.Principal{}, errors.Wrap(err, "failed to decode ledger canister id")
	}
	grant, err := l.issuer.Issue(userID, canister)
	if err != nil {
		return nil, principal.Principal{}, principal.Principal{}, err
	}
	id := identity.NewDelegationIdentity(l.issuer.Gateway(), grant)
	return l.dialer.dialDelegated(id), canister, id.Sender(), nil
}

func (l *Ledger) BalanceOf(ctx context.Context, token *models.TokenConfig, userID int64) (*big.Int, error) {
	a, canister, sender, err := l.dialAsUser(token, userID)
	if err != nil {
		return nil, err
	}
	var balance idl.Nat
	err = a.Query(ctx, canister, "icrc1_balance_of", []any{account{Owner: sender}}, []any{&balance})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query balance")
	}
	return balance.BigInt(), nil
}

func (l *Ledger) Fee(ctx context.Context, token *models.TokenConfig, userID int64) (*big.Int, error) {
	a, canister, _, err := l.dialAsUser(token, userID)
	if err != nil {
		return nil, err
	}
	var fee idl.Nat
	err = a.Query(ctx, canister, "icrc1_fee", []any{}, []any{&fee})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query transfer fee")
	}
	return fee.BigInt(), nil
}

func (l *Ledger) Transfer(ctx context.Context, token *models.TokenConfig, userID int64, amount *big.Int, to principal.Principal) (*big.Int, error) {
	a, canister, _, err := l.dialAsUser(token, userID)
	if err != nil {
		return nil, err
	}
	arg := transferArgs{
		To:     account{Owner: to},
		Amount: idl.NewBigNat(amount),
	}
	var result transferResult
	if err := a.Call(ctx, canister, "icrc1_transfer", []any{arg}, []any{&result}); err != nil {
		return nil, &envelope.AmbiguousError{Op: "icrc1_transfer", Err: err}
	}
	if result.Err != nil {
		return nil, result.Err.toLedgerError()
	}
	if result.Ok == nil {
		return nil, errors.New("icrc1_transfer returned neither Ok nor Err")
	}
	return result.Ok.BigInt(), nil
}

// Approve grants the spender an allowance, skipping the call when the
// current allowance already covers the amount.
func (l *Ledger) Approve(ctx context.Context, token *models.TokenConfig, userID int64, amount *big.Int, spender principal.Principal) error {
	a, canister, sender, err := l.dialAsUser(token, userID)
	if err != nil {
		return err
	}
	var current allowanceResponse
	err = a.Query(ctx, canister, "icrc2_allowance", []any{allowanceArgs{
		Account: account{Owner: sender},
		Spender: account{Owner: spender},
	}}, []any{&current})
	if err != nil {
		return errors.Wrap(err, "failed to query allowance")
	}
	if current.Allowance.BigInt().Cmp(amount) >= 0 {
		return nil
	}

	arg := approveArgs{
		Spender: account{Owner: spender},
		Amount:  idl.NewBigNat(amount),
	}
	var result approveResult
	if err := a.Call(ctx, canister, "icrc2_approve", []any{arg}, []any{&result}); err != nil {
		return &envelope.AmbiguousError{Op: "icrc2_approve", Err: err}
	}
	if result.Err != nil {
		return result.Err.toLedgerError()
	}
	if result.Ok == nil {
		return errors.New("icrc2_approve returned neither Ok nor Err")
	}
	return nil
}

func (l *Ledger) Allowance(ctx context.Context, token *models.TokenConfig, userID int64, spender principal.Principal) (*big.Int, error) {
	a, canister, sender, err := l.dialAsUser(token, userID)
	if err != nil {
		return nil, err
	}
	var current allowanceResponse
	err = a.Query(ctx, canister, "icrc2_allowance", []any{allowanceArgs{
		Account: account{Owner: sender},
		Spender: account{Owner: spender},
	}}, []any{&current})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query allowance")
	}
	return current.Allowance.BigInt(), nil
}

func (e *transferError) toLedgerError() *envelope.LedgerError {
	switch {
	case e.InsufficientFunds != nil:
		return &envelope.LedgerError{Kind: envelope.LedgerInsufficientFunds, Message: "insufficient funds"}
	case e.TemporarilyUnavailable != nil:
		return &envelope.LedgerError{Kind: envelope.LedgerTemporarilyUnavailable, Message: "ledger temporarily unavailable"}
	case e.GenericError != nil:
		return &envelope.LedgerError{Kind: envelope.LedgerGeneric, Message: e.GenericError.Message}
	default:
		return &envelope.LedgerError{Kind: envelope.LedgerUnknown, Message: "transfer rejected"}
	}
}

func (e *approveError) toLedgerError() *envelope.LedgerError {
	switch {
	case e.InsufficientFunds != nil:
		return &envelope.LedgerError{Kind: envelope.LedgerInsufficientFunds, Message: "insufficient funds"}
	case e.TemporarilyUnavailable != nil:
		return &envelope.LedgerError{Kind: envelope.LedgerTemporarilyUnavailable, Message: "ledger temporarily unavailable"}
	case e.GenericError != nil:
		return &envelope.LedgerError{Kind: envelope.LedgerGeneric, Message: e.GenericError.Message}
	default:
		return &envelope.LedgerError{Kind: envelope.LedgerUnknown, Message: "approve rejected"}
	}
}
