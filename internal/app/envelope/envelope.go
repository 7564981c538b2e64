// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

// Package envelope drives the gift-envelope lifecycle across three
// systems of record that are not transactionally linked: the ICRC-1
// token ledger, the registry canister holding canonical envelope state,
// and the local Postgres bookkeeping that makes the multi-step flows
// safe to retry.
package envelope

import (
	"context"
	"math/big"

	"github.com/aviate-labs/agent-go/principal"

	"github.com/socialfi/rebot/internal/models"
)

// Envelope mirrors the registry's canonical record. The registry is the
// sole writer; this side only reads it and invokes its mutating calls.
type Envelope struct {
	ID           int64
	Owner        principal.Principal
	Token        principal.Principal
	Amount       *big.Int
	ShareCount   int
	IsRandom     bool
	Memo         string
	// registry time unit, UTC nanoseconds
	ExpiresAt    int64
	Participants []Participant
}

type Participant struct {
	Claimant principal.Principal
	Amount   *big.Int
}

// Exhausted reports whether every share slot has been claimed.
func (e *Envelope) Exhausted() bool {
	return len(e.Participants) >= e.ShareCount
}

// Remaining is the unclaimed part of the amount.
func (e *Envelope) Remaining() *big.Int {
	left := new(big.Int).Set(e.Amount)
	for _, p := range e.Participants {
		left.Sub(left, p.Amount)
	}
	return left
}

// RegistryClient is the external registry boundary. Remote rejections
// come back as *RegistryError, transport failures on mutating calls as
// *AmbiguousError.
type RegistryClient interface {
	Create(ctx context.Context, env *Envelope) (int64, error)
	Open(ctx context.Context, id int64, claimant principal.Principal) (*big.Int, error)
	Revoke(ctx context.Context, id int64) (*big.Int, error)
	// Get returns nil when the registry has no such envelope.
	Get(ctx context.Context, id int64) (*Envelope, error)
	ListOwned(ctx context.Context, owner principal.Principal) ([]int64, error)
}

// LedgerClient is the ICRC-1 ledger boundary, one call set per token.
// Rejections come back as *LedgerError, transport failures on transfers
// as *AmbiguousError. Amounts are in the token's smallest unit.
type LedgerClient interface {
	BalanceOf(ctx context.Context, token *models.TokenConfig, userID int64) (*big.Int, error)
	Fee(ctx context.Context, token *models.TokenConfig, userID int64) (*big.Int, error)
	Transfer(ctx context.Context, token *models.TokenConfig, userID int64, amount *big.Int, to principal.Principal) (*big.Int, error)
	Approve(ctx context.Context, token *models.TokenConfig, userID int64, amount *big.Int, spender principal.Principal) error
	Allowance(ctx context.Context, token *models.TokenConfig, userID int64, spender principal.Principal) (*big.Int, error)
}

// StatusStore persists local envelope UX state. Every write is safe to
// repeat with identical arguments.
type StatusStore interface {
	// Insert is a no-op when the id is already present.
	Insert(status *models.EnvelopeStatus) error
	// Get returns nil when no row belongs to this owner.
	Get(id, ownerID int64) (*models.EnvelopeStatus, error)
	GetByIDs(ids []int64, ownerID int64) ([]models.EnvelopeStatus, error)
	MarkSent(id int64, receiver string) error
	MarkRevoked(id int64) error
}

// ClaimStore records one row per (envelope, user) claim attempt. The
// unique pair constraint is the duplicate-claim arbitration.
type ClaimStore interface {
	// InsertPending returns false when the pair already exists.
	InsertPending(envelopeID, userID int64) (bool, error)
	Resolve(envelopeID, userID int64, code int64, amount *big.Int) error
}

// WalletStore links user ids to their derived addresses. The channel
// attribution is written once and never overwritten.
type WalletStore interface {
	Link(userID int64, address string, channel int64) error
	// Get returns nil when the user has never interacted.
	Get(userID int64) (*models.WalletLink, error)
}

// UserStore keeps the username snapshot the spreaders report joins on.
type UserStore interface {
	Upsert(userID int64, username string) error
}

// TokenStore reads admin-managed token parameters.
type TokenStore interface {
	// BySymbol returns nil when the symbol is not configured.
	BySymbol(symbol string) (*models.TokenConfig, error)
}
