// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

// Package ic holds the canister-facing adapters. The registry is always
// called under the gateway identity; ledger calls run under a delegated
// identity so the ledger sees the user's own principal as the caller.
package ic

import (
	"net/url"

	"github.com/aviate-labs/agent-go"
	agentid "github.com/aviate-labs/agent-go/identity"
	"github.com/pkg/errors"
)

// Dialer builds replica agents bound to a caller identity. Agents are
// cheap to construct, one per call keeps the identity handling simple.
type Dialer struct {
	replica      *url.URL
	fetchRootKey bool
}

func NewDialer(replica *url.URL, fetchRootKey bool) *Dialer {
	return &Dialer{
		replica:      replica,
		fetchRootKey: fetchRootKey,
	}
}

func (d *Dialer) dial(id agentid.Identity) (*agent.Agent, error) {
	a, err := agent.New(agent.Config{
		Identity:     id,
		ClientConfig: &agent.ClientConfig{Host: d.replica},
		FetchRootKey: d.fetchRootKey,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create replica agent")
	}
	return a, nil
}
