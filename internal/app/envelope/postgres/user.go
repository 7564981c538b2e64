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

type UserStorage struct {
	log *logrus.Logger
	db  orm.DB
}

func NewUserStorage(obs *observability.Observability, db orm.DB) *UserStorage {
	return &UserStorage{
		log: obs.Log(),
		db:  db,
	}
}

// Upsert refreshes the last known username, usernames change at will.
func (s *UserStorage) Upsert(userID int64, username string) error {
	row := &models.User{
		UserID:   userID,
		Username: username,
	}
	_, err := s.db.Model(row).
		OnConflict("(user_id) DO UPDATE").
		Set("username = EXCLUDED.username, update_time = now()").
		Insert()
	if err != nil {
		return errors.Wrapf(err, "failed to upsert user %d", userID)
	}
	return nil
}

func (s *UserStorage) Get(userID int64) (*models.User, error) {
	user := &models.User{}
	err := s.db.Model(user).
		Where("user_id = ?", userID).
		Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select user %d", userID)
	}
	return user, nil
}
