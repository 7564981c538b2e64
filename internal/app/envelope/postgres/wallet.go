// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package postgres

import (
	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/internal/models"
	"github.com/socialfi/rebot/observability"
)

type WalletStorage struct {
	log *logrus.Logger
	db  orm.DB
}

func NewWalletStorage(obs *observability.Observability, db orm.DB) *WalletStorage {
	return &WalletStorage{
		log: obs.Log(),
		db:  db,
	}
}

// Link records the user's derived address and first-seen channel. The
// address is deterministic per user and the channel is a one-shot
// attribution, so an existing row is left exactly as it is.
func (s *WalletStorage) Link(userID int64, address string, channel int64) error {
	ch := channel
	row := &models.WalletLink{
		UserID:  userID,
		Address: address,
		Channel: &ch,
	}
	_, err := s.db.Model(row).
		OnConflict("DO NOTHING").
		Insert()
	if err != nil {
		return errors.Wrapf(err, "failed to link wallet for user %d", userID)
	}
	return nil
}

func (s *WalletStorage) Get(userID int64) (*models.WalletLink, error) {
	link := &models.WalletLink{}
	err := s.db.Model(link).
		Where("user_id = ?", userID).
		Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select wallet link for user %d", userID)
	}
	return link, nil
}
