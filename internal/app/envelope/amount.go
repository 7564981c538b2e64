// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package envelope

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Amounts travel as arbitrary-precision integers in the token's smallest
// unit. The string form is fixed-point with exactly `decimals` fraction
// digits. parse truncates excess fraction digits, format zero-pads, so
// ParseAmount(FormatAmount(n, d), d) == n for every valid n.

var amountPattern = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

func ParseAmount(s string, decimals int) (*big.Int, error) {
	if !amountPattern.MatchString(s) {
		return nil, errors.Errorf("malformed amount %q", s)
	}
	integer, fraction, _ := strings.Cut(s, ".")
	if len(fraction) > decimals {
		fraction = fraction[:decimals]
	}
	for len(fraction) < decimals {
		fraction += "0"
	}
	n, ok := new(big.Int).SetString(integer+fraction, 10)
	if !ok {
		return nil, errors.Errorf("malformed amount %q", s)
	}
	return n, nil
}

func FormatAmount(n *big.Int, decimals int) string {
	s := n.String()
	if decimals == 0 {
		return s
	}
	var integer, fraction string
	if len(s) > decimals {
		integer, fraction = s[:len(s)-decimals], s[len(s)-decimals:]
	} else {
		integer, fraction = "0", strings.Repeat("0", decimals-len(s))+s
	}
	return integer + "." + fraction
}
