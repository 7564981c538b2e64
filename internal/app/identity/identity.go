// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

// Package identity derives custodial key pairs from one master mnemonic.
//
// Every numeric user id maps to exactly one secp256k1 key pair on the
// BIP44 path m/44'/223'/0'/q/r, where q and r split the id around
// 0x7FFFFFFF so any 64-bit id fits into two non-hardened path segments.
// The gateway's own key sits at the reserved tail 2147483647/2147483647,
// which no user id can produce. Keys are never persisted; the same input
// always yields byte-identical material.
package identity

import (
	"github.com/aviate-labs/agent-go/identity"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/aviate-labs/secp256k1"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"
)

// pathBound splits a user id into two in-range BIP32 child indexes.
const pathBound = 0x7FFFFFFF

// reservedIndex marks the gateway's own derivation tail. It equals the
// bound itself, which the user split can never reach as a remainder.
const reservedIndex = pathBound

type Deriver struct {
	// account-level key for m/44'/223'/0', the common prefix of every
	// derivation this process performs
	account *hdkeychain.ExtendedKey
}

// NewDeriver validates the mnemonic and prepares the account-level key.
// A malformed mnemonic is fatal at process start, never per call.
func NewDeriver(mnemonic string) (*Deriver, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("master mnemonic is not a valid BIP39 phrase")
	}
	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build master key from seed")
	}
	account := master
	for _, index := range []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 223,
		hdkeychain.HardenedKeyStart + 0,
	} {
		account, err = account.Derive(index)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive account path")
		}
	}
	return &Deriver{account: account}, nil
}

// User returns the key pair acting for the given user id.
func (d *Deriver) User(userID int64) (*identity.Secp256k1Identity, error) {
	if userID < 0 {
		return nil, errors.Errorf("negative user id %d", userID)
	}
	quotient := uint32(userID / pathBound)
	remainder := uint32(userID % pathBound)
	return d.at(quotient, remainder)
}

// Gateway returns the process' own key pair from the reserved tail.
func (d *Deriver) Gateway() (*identity.Secp256k1Identity, error) {
	return d.at(reservedIndex, reservedIndex)
}

// UserPrincipal is the self-authenticating principal of a user's key.
func (d *Deriver) UserPrincipal(userID int64) (principal.Principal, error) {
	id, err := d.User(userID)
	if err != nil {
		return principal.Principal{}, err
	}
	return id.Sender(), nil
}

func (d *Deriver) at(quotient, remainder uint32) (*identity.Secp256k1Identity, error) {
	key, err := d.account.Derive(quotient)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive child %d", quotient)
	}
	key, err = key.Derive(remainder)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to derive child %d/%d", quotient, remainder)
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to extract private key")
	}
	// the agent library carries its own curve fork, rebuild the key there
	seckey, _ := secp256k1.PrivKeyFromBytes(secp256k1.S256(), priv.Serialize())
	id, err := identity.NewSecp256k1Identity(seckey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build identity")
	}
	return id, nil
}
