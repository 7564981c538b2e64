// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package ic

import (
	"math/big"
	"testing"

	"github.com/aviate-labs/agent-go/candid/idl"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/stretchr/testify/require"

	"github.com/socialfi/rebot/internal/app/envelope"
)

func nat(v int64) idl.Nat {
	return idl.NewBigNat(big.NewInt(v))
}

func TestNatValue(t *testing.T) {
	ok := nat(42)
	value, err := natValue(&natResult{Ok: &ok}, "open_red_envelope")
	require.NoError(t, err)
	require.Equal(t, "42", value.String())

	_, err = natValue(&natResult{Err: &registryErr{Code: nat(1109), Message: "exhausted"}}, "open_red_envelope")
	var rejected *envelope.RegistryError
	require.ErrorAs(t, err, &rejected)
	require.Equal(t, envelope.RegistryExhausted, rejected.Code)
	require.Equal(t, "exhausted", rejected.Message)

	_, err = natValue(&natResult{}, "open_red_envelope")
	require.Error(t, err)
	require.False(t, envelope.IsAmbiguous(err))
}

func TestToEnvelope(t *testing.T) {
	owner, err := principal.Decode("aaaaa-aa")
	require.NoError(t, err)
	expiresAt := uint64(1700086400000000000)
	raw := &redEnvelope{
		Num:      3,
		Owner:    owner,
		TokenID:  owner,
		Memo:     "gift",
		IsRandom: true,
		Amount:   nat(1000),
		Participants: []registryClaim{
			{Claimant: owner, Amount: nat(333)},
		},
		ExpiresAt: &expiresAt,
	}

	env := toEnvelope(7, raw)
	require.Equal(t, int64(7), env.ID)
	require.Equal(t, "1000", env.Amount.String())
	require.Equal(t, 3, env.ShareCount)
	require.True(t, env.IsRandom)
	require.Equal(t, int64(1700086400000000000), env.ExpiresAt)
	require.Len(t, env.Participants, 1)
	require.Equal(t, "667", env.Remaining().String())
	require.False(t, env.Exhausted())

	noExpiry := &redEnvelope{Amount: nat(1), Num: 1}
	require.Zero(t, toEnvelope(1, noExpiry).ExpiresAt)
}

func TestTransferErrorMapping(t *testing.T) {
	var null idl.Null

	err := (&transferError{InsufficientFunds: &insufficientFunds{Balance: nat(5)}}).toLedgerError()
	require.Equal(t, envelope.LedgerInsufficientFunds, err.Kind)

	err = (&transferError{TemporarilyUnavailable: &null}).toLedgerError()
	require.Equal(t, envelope.LedgerTemporarilyUnavailable, err.Kind)

	err = (&transferError{GenericError: &genericError{Message: "boom"}}).toLedgerError()
	require.Equal(t, envelope.LedgerGeneric, err.Kind)
	require.Equal(t, "boom", err.Message)

	err = (&transferError{TooOld: &null}).toLedgerError()
	require.Equal(t, envelope.LedgerUnknown, err.Kind)

	aerr := (&approveError{AllowanceChanged: &allowanceChanged{CurrentAllowance: nat(1)}}).toLedgerError()
	require.Equal(t, envelope.LedgerUnknown, aerr.Kind)
}
