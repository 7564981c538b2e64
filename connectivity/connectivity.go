// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package connectivity

import (
	"net/url"

	"github.com/aviate-labs/agent-go/principal"
	"github.com/go-pg/pg"

	"github.com/socialfi/rebot/configuration"
	"github.com/socialfi/rebot/internal/dbconn"
	"github.com/socialfi/rebot/internal/pkg/cycle"
	"github.com/socialfi/rebot/observability"
)

func Make(cfg *configuration.Configuration, obs *observability.Observability) *Connectivity {
	log := obs.Log()
	return &Connectivity{
		pg: func() *pg.DB {
			db, err := dbconn.Connect(cfg.DB)
			if err != nil {
				log.Fatal(err.Error())
			}
			// the db may still be starting alongside this process
			cycle.UntilConnectionError(func() error {
				_, err := db.Exec("SELECT 1")
				return err
			}, cfg.DB.AttemptInterval, cfg.DB.Attempts, log)
			return db
		}(),
		replica: func() *url.URL {
			u, err := url.Parse(cfg.Gateway.ReplicaURL)
			if err != nil {
				log.Fatalf("failed to parse replica url %s: %s", cfg.Gateway.ReplicaURL, err)
			}
			return u
		}(),
		registry: func() principal.Principal {
			p, err := principal.Decode(cfg.Gateway.RegistryCanister)
			if err != nil {
				log.Fatalf("failed to decode registry canister id %s: %s", cfg.Gateway.RegistryCanister, err)
			}
			return p
		}(),
	}
}

type Connectivity struct {
	pg       *pg.DB
	replica  *url.URL
	registry principal.Principal
}

func (c *Connectivity) PG() *pg.DB {
	return c.pg
}

// Replica is the IC endpoint both the ledger and the registry live behind.
func (c *Connectivity) Replica() *url.URL {
	return c.replica
}

// Registry is the canister principal holding canonical envelope state.
// It doubles as the escrow address envelope principal transfers go to.
func (c *Connectivity) Registry() principal.Principal {
	return c.registry
}
