// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package envelope

import (
	"context"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/aviate-labs/agent-go/principal"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/configuration"
	"github.com/socialfi/rebot/internal/app/identity"
	"github.com/socialfi/rebot/internal/models"
	"github.com/socialfi/rebot/observability"
)

type Clock interface {
	Now() time.Time
}

type DefaultClock struct{}

func (c *DefaultClock) Now() time.Time {
	return time.Now()
}

// Deps carries everything the orchestrator acts through. All of it is
// constructed at startup and injected; there is no lazily-initialized
// shared state.
type Deps struct {
	Log      *logrus.Logger
	Metrics  *observability.GatewayMetrics
	Deriver  *identity.Deriver
	Registry RegistryClient
	Ledger   LedgerClient
	Statuses StatusStore
	Claims   ClaimStore
	Wallets  WalletStore
	Users    UserStore
	Tokens   TokenStore
	// optional share-link codec; links are omitted when nil
	Links *ShareLinks
	// escrow address envelope principal is transferred to, which is the
	// registry canister itself
	Escrow principal.Principal
	Clock  Clock
	Cfg    configuration.Envelope
}

type Orchestrator struct {
	deps      Deps
	maxAmount *big.Int
}

func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = &DefaultClock{}
	}
	o := &Orchestrator{deps: deps}
	if deps.Cfg.MaxAmount != "" {
		if cap, ok := new(big.Int).SetString(deps.Cfg.MaxAmount, 10); ok {
			o.maxAmount = cap
		} else {
			deps.Log.Warnf("ignoring malformed envelope.maxAmount %q", deps.Cfg.MaxAmount)
		}
	}
	return o
}

type CreateRequest struct {
	UserID   int64
	Amount   string
	Shares   int
	IsRandom bool
	Memo     string
	// UTC nanoseconds; zero means now + the configured default expiry
	ExpiresAt int64
}

type CreateResult struct {
	EnvelopeID int64
	Fee        *big.Int
	// two ledger transfers are issued, this is their combined network fee
	TransferFees *big.Int
	ShareLink    string
}

// Create validates, escrows the principal and the platform fee, then
// registers the envelope and records it locally. Once the first transfer
// succeeds the flow is past the point of no return: later failures leave
// funds escrowed and are reported for manual reconciliation, never
// auto-refunded.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	token, err := o.deps.Tokens.BySymbol(o.deps.Cfg.TokenSymbol)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, ErrUnknownToken
	}

	if !createAmountPattern(token.Decimals).MatchString(req.Amount) {
		return nil, ErrMalformedAmount
	}
	amount, err := ParseAmount(req.Amount, token.Decimals)
	if err != nil {
		return nil, ErrMalformedAmount
	}
	if o.maxAmount != nil && amount.Cmp(o.maxAmount) > 0 {
		return nil, ErrAmountTooLarge
	}
	if req.Shares < 1 {
		return nil, ErrBadShareCount
	}
	if req.Shares > o.deps.Cfg.MaxShares {
		return nil, ErrTooManyShares
	}

	// the floor check stays in integer arithmetic, floats would round
	minPerShare, ok := new(big.Int).SetString(token.MinPerShare, 10)
	if !ok {
		return nil, errors.Errorf("malformed min_per_share for token %s", token.Symbol)
	}
	perShare := new(big.Int).Quo(amount, big.NewInt(int64(req.Shares)))
	if perShare.Cmp(minPerShare) < 0 {
		return nil, ErrBelowMinPerShare
	}

	fee := new(big.Int).Quo(
		new(big.Int).Mul(amount, big.NewInt(int64(token.FeeRatio))),
		big.NewInt(100),
	)

	balance, err := o.deps.Ledger.BalanceOf(ctx, token, req.UserID)
	if err != nil {
		return nil, err
	}
	transferFee, err := o.deps.Ledger.Fee(ctx, token, req.UserID)
	if err != nil {
		return nil, err
	}
	transferFees := new(big.Int).Mul(transferFee, big.NewInt(2))
	total := new(big.Int).Add(new(big.Int).Add(amount, fee), transferFees)
	if balance.Cmp(total) < 0 {
		return nil, ErrInsufficientBalance
	}

	// transfer 1: principal into escrow. A failure here aborts cleanly,
	// no registry record exists yet.
	if _, err := o.deps.Ledger.Transfer(ctx, token, req.UserID, amount, o.deps.Escrow); err != nil {
		return nil, err
	}

	// transfer 2: platform fee. From here on funds already left the
	// wallet, so failures open the acknowledged partial-failure window.
	feeAddress, err := principal.Decode(token.FeeAddress)
	if err != nil {
		o.reconcile(req.UserID, 0, "fee_address_decode", err)
		return nil, errors.Wrap(err, "failed to decode fee address")
	}
	if _, err := o.deps.Ledger.Transfer(ctx, token, req.UserID, fee, feeAddress); err != nil {
		o.reconcile(req.UserID, 0, "fee_transfer", err)
		return nil, err
	}

	owner, err := o.deps.Deriver.UserPrincipal(req.UserID)
	if err != nil {
		return nil, err
	}
	ledgerID, err := principal.Decode(token.LedgerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode ledger canister id")
	}
	expiresAt := req.ExpiresAt
	if expiresAt == 0 {
		expiresAt = o.deps.Clock.Now().Add(o.deps.Cfg.DefaultExpiry).UnixNano()
	}
	id, err := o.deps.Registry.Create(ctx, &Envelope{
		Owner:      owner,
		Token:      ledgerID,
		Amount:     amount,
		ShareCount: req.Shares,
		IsRandom:   req.IsRandom,
		Memo:       req.Memo,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		o.reconcile(req.UserID, 0, "registry_create", err)
		return nil, err
	}

	// duplicate create responses for the same id are a no-op here
	err = o.deps.Statuses.Insert(&models.EnvelopeStatus{
		ID:         id,
		Token:      token.Symbol,
		OwnerID:    req.UserID,
		Amount:     amount.String(),
		ShareCount: req.Shares,
		ExpiresAt:  expiresAt,
		FeeAmount:  fee.String(),
	})
	if err != nil {
		return nil, err
	}
	o.deps.Metrics.Creates.Inc()

	result := &CreateResult{
		EnvelopeID:   id,
		Fee:          fee,
		TransferFees: transferFees,
	}
	if o.deps.Links != nil {
		link, err := o.deps.Links.Generate(req.UserID, id)
		if err != nil {
			// the envelope exists either way, a missing link is cosmetic
			o.deps.Log.WithField("envelope_id", id).Warnf("failed to generate share link: %s", err)
		} else {
			result.ShareLink = link
		}
	}
	return result, nil
}

// Send checks the local preconditions cheapest-first, re-checks the
// registry defensively and returns the announce payload. It mutates
// nothing: the caller marks the envelope sent only after the
// announcement actually reached its destination.
func (o *Orchestrator) Send(ctx context.Context, userID, envelopeID int64) (*Envelope, error) {
	status, err := o.deps.Statuses.Get(envelopeID, userID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, ErrNotFound
	}
	if status.IsSent {
		return nil, ErrAlreadySent
	}
	if status.IsRevoked {
		return nil, ErrAlreadyRevoked
	}
	if o.nowNanos() > status.ExpiresAt {
		return nil, ErrExpired
	}

	env, err := o.deps.Registry.Get(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	if env == nil {
		// the registry drops revoked envelopes
		return nil, ErrAlreadyRevoked
	}
	return env, nil
}

// MarkSent records a successful announcement. Safe to repeat.
func (o *Orchestrator) MarkSent(ctx context.Context, envelopeID int64, receiver string) error {
	return o.deps.Statuses.MarkSent(envelopeID, receiver)
}

// TouchUser refreshes the username snapshot for whoever just interacted;
// the frontend calls it on every command it handles.
func (o *Orchestrator) TouchUser(userID int64, username string) error {
	return o.deps.Users.Upsert(userID, username)
}

type ClaimResult struct {
	Amount *big.Int
	// best-effort signal that the last share is gone, so the caller can
	// retract the claim affordance
	Exhausted bool
}

// Claim is the safety-critical path. The pending attempt row is written
// before the registry call; its unique (envelope, user) constraint is
// what turns a duplicate request into a typed rejection instead of a
// double charge. The registry alone arbitrates share exhaustion.
func (o *Orchestrator) Claim(ctx context.Context, userID, envelopeID int64) (*ClaimResult, error) {
	claimant, err := o.deps.Deriver.UserPrincipal(userID)
	if err != nil {
		return nil, err
	}
	// first-seen attribution; the store keeps an existing channel
	if err := o.deps.Wallets.Link(userID, claimant.String(), envelopeID); err != nil {
		return nil, err
	}

	inserted, err := o.deps.Claims.InsertPending(envelopeID, userID)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ErrDuplicateClaim
	}

	amount, err := o.deps.Registry.Open(ctx, envelopeID, claimant)
	if err != nil {
		var rejected *RegistryError
		if errors.As(err, &rejected) {
			if rerr := o.deps.Claims.Resolve(envelopeID, userID, int64(rejected.Code), big.NewInt(0)); rerr != nil {
				o.deps.Log.WithField("envelope_id", envelopeID).Errorf("failed to resolve claim attempt: %s", rerr)
			}
			return nil, err
		}
		// ambiguous outcome: the attempt row stays pending so nothing
		// blindly retries the same open call
		return nil, err
	}

	if err := o.deps.Claims.Resolve(envelopeID, userID, models.ClaimOK, amount); err != nil {
		o.deps.Log.WithField("envelope_id", envelopeID).Errorf("failed to resolve claim attempt: %s", err)
	}
	o.deps.Metrics.Claims.Inc()

	result := &ClaimResult{Amount: amount}
	// best-effort; its failure must not affect the claim already made
	if env, err := o.deps.Registry.Get(ctx, envelopeID); err == nil && env != nil {
		result.Exhausted = env.Exhausted()
	}
	return result, nil
}

// Revoke returns escrowed funds to the owner, permitted only after
// expiry so funds are never pulled out from under pending claimants.
func (o *Orchestrator) Revoke(ctx context.Context, userID, envelopeID int64) (*big.Int, error) {
	status, err := o.deps.Statuses.Get(envelopeID, userID)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, ErrNotFound
	}
	if status.IsRevoked {
		return nil, ErrAlreadyRevoked
	}
	if o.nowNanos() < status.ExpiresAt {
		return nil, ErrNotYetExpired
	}

	returned, err := o.deps.Registry.Revoke(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	if err := o.deps.Statuses.MarkRevoked(envelopeID); err != nil {
		return nil, err
	}
	o.deps.Metrics.Revokes.Inc()
	return returned, nil
}

const (
	StatusUnsent  = "Unsent"
	StatusSent    = "Sent"
	StatusExpired = "Expired"
	StatusRevoked = "Revoked"
)

type ListItem struct {
	ID        int64
	Amount    *big.Int
	Remaining *big.Int
	Status    string
}

type List struct {
	Items   []ListItem
	Page    int
	MaxPage int
}

// List pages through the caller's envelopes newest-first, merging the
// registry's live remaining amounts with the local status labels.
func (o *Orchestrator) List(ctx context.Context, userID int64, page int) (*List, error) {
	owner, err := o.deps.Deriver.UserPrincipal(userID)
	if err != nil {
		return nil, err
	}
	ids, err := o.deps.Registry.ListOwned(ctx, owner)
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] > ids[b] })

	pageSize := o.deps.Cfg.PageSize
	maxPage := (len(ids) + pageSize - 1) / pageSize
	if maxPage < 1 {
		maxPage = 1
	}
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(ids) {
		end = len(ids)
	}
	pageIDs := ids[start:end]

	local, err := o.deps.Statuses.GetByIDs(pageIDs, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.EnvelopeStatus, len(local))
	for i := range local {
		byID[local[i].ID] = &local[i]
	}

	now := o.nowNanos()
	items := make([]ListItem, 0, len(pageIDs))
	for _, id := range pageIDs {
		env, err := o.deps.Registry.Get(ctx, id)
		if err != nil {
			o.deps.Log.WithField("envelope_id", id).Warnf("failed to query envelope for listing: %s", err)
		}
		item := ListItem{
			ID:        id,
			Amount:    big.NewInt(0),
			Remaining: big.NewInt(0),
			Status:    StatusUnsent,
		}
		if env != nil {
			item.Amount = env.Amount
			item.Remaining = env.Remaining()
		} else if err == nil {
			// the registry drops revoked envelopes, only the local row
			// still knows them
			item.Status = StatusRevoked
		}
		if status, ok := byID[id]; ok {
			switch {
			case status.IsRevoked:
				item.Status = StatusRevoked
			case now > status.ExpiresAt:
				item.Status = StatusExpired
			case status.IsSent:
				item.Status = StatusSent
			}
		}
		items = append(items, item)
	}
	return &List{Items: items, Page: page, MaxPage: maxPage}, nil
}

func (o *Orchestrator) nowNanos() int64 {
	return o.deps.Clock.Now().UnixNano()
}

func (o *Orchestrator) reconcile(userID, envelopeID int64, stage string, cause error) {
	o.deps.Metrics.Reconciliation.Inc()
	o.deps.Log.WithFields(logrus.Fields{
		"user_id":     userID,
		"envelope_id": envelopeID,
		"stage":       stage,
	}).Errorf("funds escrowed but flow failed, manual reconciliation required: %s", cause)
}

// createAmountPattern bounds the fraction part to the token's decimals,
// the same syntax users type into the create command.
func createAmountPattern(decimals int) *regexp.Regexp {
	if decimals == 0 {
		return regexp.MustCompile(`^\d+$`)
	}
	return regexp.MustCompile(`^\d+(?:\.\d{1,` + strconv.Itoa(decimals) + `})?$`)
}
