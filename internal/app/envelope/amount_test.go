// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package envelope

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	for _, tc := range []struct {
		input    string
		decimals int
		expected string
	}{
		{"10.00", 2, "1000"},
		{"10", 2, "1000"},
		{"10.5", 2, "1050"},
		{"0.01", 2, "1"},
		{"0.001", 2, "0"},
		{"10.999", 2, "1099"},
		{"7", 0, "7"},
		{"1.23456789", 8, "123456789"},
	} {
		got, err := ParseAmount(tc.input, tc.decimals)
		require.NoError(t, err, tc.input)
		require.Equal(t, tc.expected, got.String(), tc.input)
	}
}

func TestParseAmount_Malformed(t *testing.T) {
	for _, input := range []string{"", ".", "10.", ".5", "-1", "1e3", "1,5", "abc", "1.2.3"} {
		_, err := ParseAmount(input, 2)
		require.Error(t, err, input)
	}
}

func TestFormatAmount(t *testing.T) {
	for _, tc := range []struct {
		input    string
		decimals int
		expected string
	}{
		{"1000", 2, "10.00"},
		{"1", 2, "0.01"},
		{"0", 2, "0.00"},
		{"1050", 2, "10.50"},
		{"7", 0, "7"},
		{"123456789", 8, "1.23456789"},
	} {
		n, ok := new(big.Int).SetString(tc.input, 10)
		require.True(t, ok)
		require.Equal(t, tc.expected, FormatAmount(n, tc.decimals))
	}
}

func TestAmountRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, 99, 100, 101, 12345678, 100000000} {
		for _, decimals := range []int{0, 2, 8} {
			n := big.NewInt(v)
			back, err := ParseAmount(FormatAmount(n, decimals), decimals)
			require.NoError(t, err)
			require.Zero(t, n.Cmp(back), "value %d decimals %d", v, decimals)
		}
	}
}
