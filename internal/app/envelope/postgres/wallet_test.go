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

func TestWalletStorage(t *testing.T) {
	defer testutils.TruncateTables(t, db, []interface{}{&models.WalletLink{}})
	storage := postgres.NewWalletStorage(obs(), db)

	link, err := storage.Get(100)
	require.NoError(t, err)
	require.Nil(t, link)

	require.NoError(t, storage.Link(100, "aaaaa-aa", 7))
	link, err = storage.Get(100)
	require.NoError(t, err)
	require.NotNil(t, link)
	require.Equal(t, "aaaaa-aa", link.Address)
	require.NotNil(t, link.Channel)
	require.Equal(t, int64(7), *link.Channel)

	// the first-seen channel sticks
	require.NoError(t, storage.Link(100, "aaaaa-aa", 9))
	link, err = storage.Get(100)
	require.NoError(t, err)
	require.Equal(t, int64(7), *link.Channel)
}
