// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/socialfi/rebot/internal/app/envelope/postgres"
	"github.com/socialfi/rebot/internal/models"
	"github.com/socialfi/rebot/internal/testutils"
)

func newStatus(id, ownerID int64) *models.EnvelopeStatus {
	return &models.EnvelopeStatus{
		ID:         id,
		Token:      "RICH",
		OwnerID:    ownerID,
		Amount:     "1000",
		ShareCount: 3,
		ExpiresAt:  1700086400000000000,
		FeeAmount:  "10",
	}
}

func TestStatusStorage(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{&models.EnvelopeStatus{}})
	storage := postgres.NewStatusStorage(obs(), db)

	require.NoError(t, storage.Insert(newStatus(1, 100)))

	status, err := storage.Get(1, 100)
	require.NoError(t, err)
	require.NotNil(t, status)
	require.Equal(t, "1000", status.Amount)
	require.False(t, status.IsSent)
	require.False(t, status.CreateTime.IsZero())

	// replays of the same create response change nothing
	replay := newStatus(1, 100)
	replay.Amount = "9999"
	require.NoError(t, storage.Insert(replay))
	status, err = storage.Get(1, 100)
	require.NoError(t, err)
	require.Equal(t, "1000", status.Amount)

	// wrong owner sees nothing
	status, err = storage.Get(1, 200)
	require.NoError(t, err)
	require.Nil(t, status)

	status, err = storage.Get(77, 100)
	require.NoError(t, err)
	require.Nil(t, status)
}

func TestStatusStorage_Marks(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{&models.EnvelopeStatus{}})
	storage := postgres.NewStatusStorage(obs(), db)

	require.NoError(t, storage.Insert(newStatus(1, 100)))

	require.NoError(t, storage.MarkSent(1, "chat:42"))
	status, err := storage.Get(1, 100)
	require.NoError(t, err)
	require.True(t, status.IsSent)
	require.Equal(t, "chat:42", status.Receiver)
	require.NotNil(t, status.SendTime)

	// repeating the mark is harmless
	require.NoError(t, storage.MarkSent(1, "chat:42"))

	require.NoError(t, storage.MarkRevoked(1))
	status, err = storage.Get(1, 100)
	require.NoError(t, err)
	require.True(t, status.IsRevoked)

	// missing rows are logged, not fatal
	require.NoError(t, storage.MarkSent(77, "chat:42"))
	require.NoError(t, storage.MarkRevoked(77))
}

func TestStatusStorage_GetByIDs(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{&models.EnvelopeStatus{}})
	storage := postgres.NewStatusStorage(obs(), db)

	require.NoError(t, storage.Insert(newStatus(1, 100)))
	require.NoError(t, storage.Insert(newStatus(2, 100)))
	require.NoError(t, storage.Insert(newStatus(3, 200)))

	statuses, err := storage.GetByIDs([]int64{1, 2, 3, 4}, 100)
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	statuses, err = storage.GetByIDs(nil, 100)
	require.NoError(t, err)
	require.Empty(t, statuses)
}
