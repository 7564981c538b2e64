// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package dbconn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/socialfi/rebot/configuration"
)

func TestConnect(t *testing.T) {
	cfg := configuration.Default()
	db, err := Connect(cfg.DB)
	require.NoError(t, err)
	require.NotNil(t, db)
}

func TestConnect_BadURL(t *testing.T) {
	cfg := configuration.DB{URL: "not-a-url"}
	_, err := Connect(cfg)
	require.Error(t, err)
	require.NotContains(t, err.Error(), "not-a-url")
}
