// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package identity

import (
	"github.com/aviate-labs/agent-go/identity"
	"github.com/aviate-labs/agent-go/principal"
)

// DelegationIdentity signs with the gateway key while authenticating as
// the delegating user. The remote system validates the attached chain.
type DelegationIdentity struct {
	gateway *identity.Secp256k1Identity
	grant   *Grant
}

func NewDelegationIdentity(gateway *identity.Secp256k1Identity, grant *Grant) *DelegationIdentity {
	return &DelegationIdentity{gateway: gateway, grant: grant}
}

func (d *DelegationIdentity) Sender() principal.Principal {
	return principal.NewSelfAuthenticating(d.grant.UserPublicKey)
}

func (d *DelegationIdentity) Sign(msg []byte) []byte {
	return d.gateway.Sign(msg)
}

// PublicKey is the delegator's key; the gateway's key rides inside the
// delegation chain.
func (d *DelegationIdentity) PublicKey() []byte {
	return d.grant.UserPublicKey
}

func (d *DelegationIdentity) Verify(msg, sig []byte) bool {
	return d.gateway.Verify(msg, sig)
}

// ToPEM serializes the signing key. The grant itself is ephemeral and
// has no PEM form.
func (d *DelegationIdentity) ToPEM() ([]byte, error) {
	return d.gateway.ToPEM()
}

func (d *DelegationIdentity) Grant() *Grant {
	return d.grant
}
