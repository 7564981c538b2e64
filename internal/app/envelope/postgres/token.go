// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package postgres

import (
	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"
	"github.com/pkg/errors"

	"github.com/socialfi/rebot/internal/models"
)

// TokenStorage reads token parameters the operators manage by hand.
type TokenStorage struct {
	db orm.DB
}

func NewTokenStorage(db orm.DB) *TokenStorage {
	return &TokenStorage{db: db}
}

func (s *TokenStorage) BySymbol(symbol string) (*models.TokenConfig, error) {
	token := &models.TokenConfig{}
	err := s.db.Model(token).
		Where("symbol = ?", symbol).
		Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select token config %s", symbol)
	}
	return token, nil
}
