// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package identity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// a well-known valid test vector, never used outside tests
const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestNewDeriver_RejectsMalformedMnemonic(t *testing.T) {
	_, err := NewDeriver("definitely not a mnemonic")
	require.Error(t, err)
}

func TestDeriver_Deterministic(t *testing.T) {
	first, err := NewDeriver(testMnemonic)
	require.NoError(t, err)
	second, err := NewDeriver(testMnemonic)
	require.NoError(t, err)

	a, err := first.User(42)
	require.NoError(t, err)
	b, err := second.User(42)
	require.NoError(t, err)

	require.Equal(t, a.PublicKey(), b.PublicKey())
	require.Equal(t, a.Sender(), b.Sender())
}

func TestDeriver_DistinctUsers(t *testing.T) {
	d, err := NewDeriver(testMnemonic)
	require.NoError(t, err)

	a, err := d.User(1)
	require.NoError(t, err)
	b, err := d.User(2)
	require.NoError(t, err)

	require.NotEqual(t, a.PublicKey(), b.PublicKey())
}

func TestDeriver_LargeIDSplitsPath(t *testing.T) {
	d, err := NewDeriver(testMnemonic)
	require.NoError(t, err)

	// ids above the path bound must still derive, just deeper in the tree
	big, err := d.User(int64(pathBound) + 7)
	require.NoError(t, err)
	small, err := d.User(7)
	require.NoError(t, err)
	require.NotEqual(t, small.PublicKey(), big.PublicKey())
}

func TestDeriver_GatewayIsNotAUser(t *testing.T) {
	d, err := NewDeriver(testMnemonic)
	require.NoError(t, err)

	gw, err := d.Gateway()
	require.NoError(t, err)

	for _, uid := range []int64{0, 1, pathBound - 1, pathBound, pathBound + 1} {
		u, err := d.User(uid)
		require.NoError(t, err)
		require.NotEqual(t, u.PublicKey(), gw.PublicKey(), "uid %d collides with gateway", uid)
	}
}

func TestDeriver_NegativeID(t *testing.T) {
	d, err := NewDeriver(testMnemonic)
	require.NoError(t, err)
	_, err = d.User(-1)
	require.Error(t, err)
}
