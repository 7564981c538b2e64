// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package identity

import (
	"bytes"
	"crypto/sha256"
	"math/big"
	"sort"
	"time"

	"github.com/aviate-labs/agent-go/identity"
	"github.com/aviate-labs/agent-go/principal"
	"github.com/aviate-labs/leb128"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// authDelegationDomain is the IC domain separator for delegation
// signatures, one length byte followed by the tag.
var authDelegationDomain = []byte("\x1aic-request-auth-delegation")

// Delegation lets the gateway key act as the delegator's key, but only
// against the listed targets and only until Expiration.
type Delegation struct {
	// DER-encoded public key of the delegate (the gateway)
	PublicKey []byte
	// UTC nanoseconds
	Expiration uint64
	Targets    []principal.Principal
}

type SignedDelegation struct {
	Delegation Delegation
	Signature  []byte
}

// Grant is a complete chain rooted at the user's key. The remote system
// enforces scope and expiry; this side only constructs it correctly.
type Grant struct {
	// DER-encoded public key of the delegator (the user)
	UserPublicKey []byte
	Chain         []SignedDelegation
	ExpiresAt     time.Time
}

func (g *Grant) Expired(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}

type Issuer struct {
	deriver *Deriver
	gateway *identity.Secp256k1Identity
	ttl     time.Duration
	// cached grants expire before their chain does, so a cache hit can
	// never hand out a chain the remote side already rejects
	cache    *lru.Cache
	cacheTTL time.Duration
}

type cacheKey struct {
	userID int64
	target string
}

type cacheEntry struct {
	grant   *Grant
	validTo time.Time
}

func NewIssuer(deriver *Deriver, ttl time.Duration, cacheSize int) (*Issuer, error) {
	gateway, err := deriver.Gateway()
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive gateway identity")
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build grant cache")
	}
	return &Issuer{
		deriver:  deriver,
		gateway:  gateway,
		ttl:      ttl,
		cache:    cache,
		cacheTTL: ttl / 2,
	}, nil
}

// Issue builds a grant letting the gateway act as userID against target.
func (i *Issuer) Issue(userID int64, target principal.Principal) (*Grant, error) {
	key := cacheKey{userID: userID, target: target.String()}
	now := time.Now()
	if v, ok := i.cache.Get(key); ok {
		entry := v.(cacheEntry)
		if now.Before(entry.validTo) {
			return entry.grant, nil
		}
		i.cache.Remove(key)
	}

	user, err := i.deriver.User(userID)
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(i.ttl)
	delegation := Delegation{
		PublicKey:  i.gateway.PublicKey(),
		Expiration: uint64(expiresAt.UnixNano()),
		Targets:    []principal.Principal{target},
	}
	digest, err := requestID(delegation)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash delegation")
	}
	message := append(append([]byte{}, authDelegationDomain...), digest...)
	grant := &Grant{
		UserPublicKey: user.PublicKey(),
		Chain: []SignedDelegation{{
			Delegation: delegation,
			Signature:  user.Sign(message),
		}},
		ExpiresAt: expiresAt,
	}
	i.cache.Add(key, cacheEntry{grant: grant, validTo: now.Add(i.cacheTTL)})
	return grant, nil
}

// Gateway exposes the signing identity the chain delegates to.
func (i *Issuer) Gateway() *identity.Secp256k1Identity {
	return i.gateway
}

// requestID is the representation-independent hash of the delegation
// map: sha256 over the sorted (sha256(name), sha256(value)) pairs.
func requestID(d Delegation) ([]byte, error) {
	expiration, err := leb128.EncodeUnsigned(new(big.Int).SetUint64(d.Expiration))
	if err != nil {
		return nil, err
	}
	targets := sha256.New()
	for _, t := range d.Targets {
		h := sha256.Sum256(t.Raw)
		targets.Write(h[:])
	}
	pairs := [][]byte{
		hashPair("pubkey", d.PublicKey),
		hashPair("expiration", expiration),
		hashPairRaw("targets", targets.Sum(nil)),
	}
	sort.Slice(pairs, func(a, b int) bool { return bytes.Compare(pairs[a], pairs[b]) < 0 })
	sum := sha256.New()
	for _, p := range pairs {
		sum.Write(p)
	}
	return sum.Sum(nil), nil
}

func hashPair(name string, value []byte) []byte {
	v := sha256.Sum256(value)
	return hashPairRaw(name, v[:])
}

func hashPairRaw(name string, valueHash []byte) []byte {
	n := sha256.Sum256([]byte(name))
	return append(n[:], valueHash...)
}
