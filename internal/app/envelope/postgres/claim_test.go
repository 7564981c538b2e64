// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package postgres_test

import (
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/socialfi/rebot/internal/app/envelope/postgres"
	"github.com/socialfi/rebot/internal/models"
	"github.com/socialfi/rebot/internal/testutils"
)

func TestClaimStorage_InsertPending(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{&models.ClaimAttempt{}})
	storage := postgres.NewClaimStorage(obs(), db)

	inserted, err := storage.InsertPending(1, 100)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = storage.InsertPending(1, 100)
	require.NoError(t, err)
	require.False(t, inserted)

	// other users and other envelopes are unaffected
	inserted, err = storage.InsertPending(1, 101)
	require.NoError(t, err)
	require.True(t, inserted)
	inserted, err = storage.InsertPending(2, 100)
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestClaimStorage_InsertPendingConcurrent(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{&models.ClaimAttempt{}})
	storage := postgres.NewClaimStorage(obs(), db)

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := storage.InsertPending(7, 700)
			require.NoError(t, err)
			results <- inserted
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for inserted := range results {
		if inserted {
			winners++
		}
	}
	require.Equal(t, 1, winners)
}

func TestClaimStorage_Resolve(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{&models.ClaimAttempt{}})
	storage := postgres.NewClaimStorage(obs(), db)

	inserted, err := storage.InsertPending(1, 100)
	require.NoError(t, err)
	require.True(t, inserted)

	row := &models.ClaimAttempt{}
	err = db.Model(row).Where("envelope_id = 1 and user_id = 100").Select()
	require.NoError(t, err)
	require.Equal(t, int64(models.ClaimPending), row.ResultCode)

	require.NoError(t, storage.Resolve(1, 100, models.ClaimOK, big.NewInt(333)))
	err = db.Model(row).Where("envelope_id = 1 and user_id = 100").Select()
	require.NoError(t, err)
	require.Equal(t, int64(models.ClaimOK), row.ResultCode)
	require.Equal(t, "333", row.AmountClaimed)

	// resolving a missing attempt is logged, not fatal
	require.NoError(t, storage.Resolve(9, 900, 1108, big.NewInt(0)))
}
