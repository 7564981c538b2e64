// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package configuration

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/internal/pkg/cycle"
)

type Configuration struct {
	Log      Log
	DB       DB
	API      API
	Gateway  Gateway
	Envelope Envelope
}

type Log struct {
	Level  string
	Format string
}

type DB struct {
	URL      string
	PoolSize int
	Attempts cycle.Limit
	// Interval between failed connection attempts
	AttemptInterval time.Duration
}

type API struct {
	// /healthcheck and /metrics
	Listen string
	// admin statistics API
	Admin string
}

type Gateway struct {
	// BIP39 mnemonic the whole custodial key tree is derived from
	Mnemonic string
	// registry canister holding canonical envelope state
	RegistryCanister string
	// IC replica endpoint
	ReplicaURL string
	// fetch the replica root key on startup (local replicas only)
	FetchRootKey bool
	// delegation grant lifetime
	DelegationTTL time.Duration
	// bounded grant cache, entries expire before DelegationTTL
	DelegationCacheSize int
	// 64 hex chars, AES key and IV for share link tokens
	ShareSecret string
}

type Envelope struct {
	TokenSymbol string
	// registry expiry applied when the caller does not override it
	DefaultExpiry time.Duration
	PageSize      int
	// validation caps in the token's smallest unit
	MaxAmount string
	MaxShares int
	// bot the share deep-links point at
	BotUsername string
}

func Default() *Configuration {
	return &Configuration{
		Log: Log{
			Level:  logrus.InfoLevel.String(),
			Format: "text",
		},
		DB: DB{
			URL:             "postgres://postgres@localhost/postgres?sslmode=disable",
			PoolSize:        100,
			Attempts:        5,
			AttemptInterval: 3 * time.Second,
		},
		API: API{
			Listen: ":8888",
			Admin:  ":8889",
		},
		Gateway: Gateway{
			ReplicaURL:          "https://icp-api.io",
			FetchRootKey:        false,
			DelegationTTL:       10 * time.Minute,
			DelegationCacheSize: 1024,
		},
		Envelope: Envelope{
			TokenSymbol:   "RICH",
			DefaultExpiry: 24 * time.Hour,
			PageSize:      10,
			MaxAmount:     "100000000",
			MaxShares:     1000,
			BotUsername:   "rebot_re_bot",
		},
	}
}
