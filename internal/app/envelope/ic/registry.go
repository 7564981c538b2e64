// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package ic

import (
	"context"
	"math/big"

	"github.com/aviate-labs/agent-go/candid/idl"
	agentid "github.com/aviate-labs/agent-go/identity"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/internal/app/envelope"
	"github.com/socialfi/rebot/observability"
)

// redEnvelope mirrors the registry canister's record.
type redEnvelope struct {
	Num          uint16              `ic:"num"`
	Status       uint8               `ic:"status"`
	Participants []registryClaim     `ic:"participants"`
	TokenID      principal.Principal `ic:"token_id"`
	Owner        principal.Principal `ic:"owner"`
	Memo         string              `ic:"memo"`
	IsRandom     bool                `ic:"is_random"`
	Amount       idl.Nat             `ic:"amount"`
	ExpiresAt    *uint64             `ic:"expires_at"`
}

type registryClaim struct {
	Claimant principal.Principal `ic:"0"`
	Amount   idl.Nat             `ic:"1"`
}

type registryErr struct {
	Code    idl.Nat `ic:"0"`
	Message string  `ic:"1"`
}

type natResult struct {
	Ok  *idl.Nat     `ic:"Ok,variant"`
	Err *registryErr `ic:"Err,variant"`
}

// Registry calls the registry canister under the gateway identity; the
// canister trusts the gateway to act for claimants it names explicitly.
type Registry struct {
	log      *logrus.Logger
	dialer   *Dialer
	canister principal.Principal
	gateway  agentid.Identity
}

func NewRegistry(obs *observability.Observability, dialer *Dialer, canister principal.Principal, gateway agentid.Identity) *Registry {
	return &Registry{
		log:      obs.Log(),
		dialer:   dialer,
		canister: canister,
		gateway:  gateway,
	}
}

func (r *Registry) Create(_ context.Context, env *envelope.Envelope) (int64, error) {
	a, err := r.dialer.dial(r.gateway)
	if err != nil {
		return 0, err
	}
	expiresAt := uint64(env.ExpiresAt)
	arg := redEnvelope{
		Num:          uint16(env.ShareCount),
		Participants: []registryClaim{},
		TokenID:      env.Token,
		Owner:        env.Owner,
		Memo:         env.Memo,
		IsRandom:     env.IsRandom,
		Amount:       idl.NewBigNat(env.Amount),
		ExpiresAt:    &expiresAt,
	}
	var result natResult
	if err := a.Call(r.canister, "create_red_envelope", []any{arg}, []any{&result}); err != nil {
		return 0, &envelope.AmbiguousError{Op: "create_red_envelope", Err: err}
	}
	id, err := natValue(&result, "create_red_envelope")
	if err != nil {
		return 0, err
	}
	return id.Int64(), nil
}

func (r *Registry) Open(_ context.Context, id int64, claimant principal.Principal) (*big.Int, error) {
	a, err := r.dialer.dial(r.gateway)
	if err != nil {
		return nil, err
	}
	var result natResult
	err = a.Call(r.canister, "open_red_envelope",
		[]any{idl.NewBigNat(big.NewInt(id)), claimant},
		[]any{&result})
	if err != nil {
		return nil, &envelope.AmbiguousError{Op: "open_red_envelope", Err: err}
	}
	return natValue(&result, "open_red_envelope")
}

func (r *Registry) Revoke(_ context.Context, id int64) (*big.Int, error) {
	a, err := r.dialer.dial(r.gateway)
	if err != nil {
		return nil, err
	}
	var result natResult
	err = a.Call(r.canister, "revoke_red_envelope",
		[]any{idl.NewBigNat(big.NewInt(id))},
		[]any{&result})
	if err != nil {
		return nil, &envelope.AmbiguousError{Op: "revoke_red_envelope", Err: err}
	}
	return natValue(&result, "revoke_red_envelope")
}

func (r *Registry) Get(_ context.Context, id int64) (*envelope.Envelope, error) {
	a, err := r.dialer.dial(r.gateway)
	if err != nil {
		return nil, err
	}
	var raw *redEnvelope
	err = a.Query(r.canister, "get_red_envelope",
		[]any{idl.NewBigNat(big.NewInt(id))},
		[]any{&raw})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query envelope %d", id)
	}
	if raw == nil {
		return nil, nil
	}
	return toEnvelope(id, raw), nil
}

func (r *Registry) ListOwned(_ context.Context, owner principal.Principal) ([]int64, error) {
	a, err := r.dialer.dial(r.gateway)
	if err != nil {
		return nil, err
	}
	var raw []idl.Nat
	err = a.Query(r.canister, "get_rids_by_owner", []any{owner}, []any{&raw})
	if err != nil {
		return nil, errors.Wrap(err, "failed to query owned envelopes")
	}
	ids := make([]int64, 0, len(raw))
	for _, n := range raw {
		ids = append(ids, n.BigInt().Int64())
	}
	return ids, nil
}

func toEnvelope(id int64, raw *redEnvelope) *envelope.Envelope {
	out := &envelope.Envelope{
		ID:         id,
		Owner:      raw.Owner,
		Token:      raw.TokenID,
		Amount:     raw.Amount.BigInt(),
		ShareCount: int(raw.Num),
		IsRandom:   raw.IsRandom,
		Memo:       raw.Memo,
	}
	if raw.ExpiresAt != nil {
		out.ExpiresAt = int64(*raw.ExpiresAt)
	}
	for _, p := range raw.Participants {
		out.Participants = append(out.Participants, envelope.Participant{
			Claimant: p.Claimant,
			Amount:   p.Amount.BigInt(),
		})
	}
	return out
}

func natValue(result *natResult, op string) (*big.Int, error) {
	if result.Err != nil {
		return nil, &envelope.RegistryError{
			Code:    envelope.RegistryCode(result.Err.Code.BigInt().Uint64()),
			Message: result.Err.Message,
		}
	}
	if result.Ok == nil {
		return nil, errors.Errorf("%s returned neither Ok nor Err", op)
	}
	return result.Ok.BigInt(), nil
}
