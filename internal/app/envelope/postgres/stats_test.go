// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package postgres_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/socialfi/rebot/internal/app/envelope/postgres"
	"github.com/socialfi/rebot/internal/models"
	"github.com/socialfi/rebot/internal/testutils"
)

func TestStatsRepository_Overview(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{
		&models.EnvelopeStatus{}, &models.ClaimAttempt{}, &models.WalletLink{},
	})
	repo := postgres.NewStatsRepository(db)

	stats, err := repo.Overview()
	require.NoError(t, err)
	require.Zero(t, stats.TotalEnvelopes)
	require.Equal(t, "0", stats.TotalAmount)

	statuses := postgres.NewStatusStorage(obs(), db)
	claims := postgres.NewClaimStorage(obs(), db)
	wallets := postgres.NewWalletStorage(obs(), db)

	// two sent envelopes, one draft that must stay out of the figures
	require.NoError(t, statuses.Insert(newStatus(1, 100)))
	require.NoError(t, statuses.Insert(newStatus(2, 100)))
	require.NoError(t, statuses.Insert(newStatus(3, 200)))
	require.NoError(t, statuses.MarkSent(1, "chat:42"))
	require.NoError(t, statuses.MarkSent(2, "chat:42"))

	require.NoError(t, wallets.Link(300, "aaaaa-aa", 1))

	inserted, err := claims.InsertPending(1, 300)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, claims.Resolve(1, 300, models.ClaimOK, big.NewInt(333)))
	// pending attempts count too, they represent real snatch traffic
	inserted, err = claims.InsertPending(2, 300)
	require.NoError(t, err)
	require.True(t, inserted)

	stats, err = repo.Overview()
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalWallets)
	require.Equal(t, 1, stats.DayWallets)
	require.Equal(t, 2, stats.TotalEnvelopes)
	require.Equal(t, 2, stats.DayEnvelopes)
	require.Equal(t, "2000", stats.TotalAmount)
	require.Equal(t, "2000", stats.DayAmount)
	require.Equal(t, 2, stats.TotalClaims)
	require.Equal(t, 2, stats.DayClaims)
}

func TestStatsRepository_Spreaders(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{
		&models.EnvelopeStatus{}, &models.WalletLink{}, &models.User{},
	})
	repo := postgres.NewStatsRepository(db)
	statuses := postgres.NewStatusStorage(obs(), db)
	wallets := postgres.NewWalletStorage(obs(), db)
	users := postgres.NewUserStorage(obs(), db)

	// owner 100 spread two envelopes that pulled in three wallets,
	// owner 200 spread one envelope that pulled in one
	require.NoError(t, statuses.Insert(newStatus(1, 100)))
	require.NoError(t, statuses.Insert(newStatus(2, 100)))
	require.NoError(t, statuses.Insert(newStatus(3, 200)))
	require.NoError(t, wallets.Link(301, "aaaaa-aa", 1))
	require.NoError(t, wallets.Link(302, "aaaaa-aa", 1))
	require.NoError(t, wallets.Link(303, "aaaaa-aa", 2))
	require.NoError(t, wallets.Link(304, "aaaaa-aa", 3))
	require.NoError(t, users.Upsert(100, "alice"))

	rows, err := repo.Spreaders(10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, int64(100), rows[0].UserID)
	require.Equal(t, "alice", rows[0].Username)
	require.Equal(t, 3, rows[0].Wallets)
	require.Equal(t, 2, rows[0].Envelopes)
	require.Equal(t, int64(200), rows[1].UserID)
	require.Equal(t, "", rows[1].Username)
	require.Equal(t, 1, rows[1].Wallets)

	rows, err = repo.Spreaders(1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestUserStorage(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{&models.User{}})
	storage := postgres.NewUserStorage(obs(), db)

	user, err := storage.Get(100)
	require.NoError(t, err)
	require.Nil(t, user)

	require.NoError(t, storage.Upsert(100, "alice"))
	require.NoError(t, storage.Upsert(100, "alice_renamed"))

	user, err = storage.Get(100)
	require.NoError(t, err)
	require.NotNil(t, user)
	require.Equal(t, "alice_renamed", user.Username)
}

func TestTokenStorage(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{&models.TokenConfig{}})
	storage := postgres.NewTokenStorage(db)

	token, err := storage.BySymbol("RICH")
	require.NoError(t, err)
	require.Nil(t, token)

	require.NoError(t, db.Insert(&models.TokenConfig{
		Symbol:      "RICH",
		LedgerID:    "ryjl3-tyaaa-aaaaa-aaaba-cai",
		Decimals:    2,
		MinPerShare: "10",
		FeeRatio:    1,
		FeeAddress:  "rrkah-fqaaa-aaaaa-aaaaq-cai",
	}))

	token, err = storage.BySymbol("RICH")
	require.NoError(t, err)
	require.NotNil(t, token)
	require.Equal(t, 2, token.Decimals)
	require.Equal(t, "10", token.MinPerShare)
}
