// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package postgres

import (
	"math/big"

	"github.com/go-pg/pg/orm"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/internal/models"
	"github.com/socialfi/rebot/observability"
)

type ClaimStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewClaimStorage(obs *observability.Observability, db orm.DB) *ClaimStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "rebot_claim_storage_error_counter",
		Help: "",
	})
	return &ClaimStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

// InsertPending writes the attempt row ahead of the registry call. The
// (envelope_id, user_id) primary key makes the second writer lose: zero
// affected rows means someone already holds the attempt.
func (s *ClaimStorage) InsertPending(envelopeID, userID int64) (bool, error) {
	row := &models.ClaimAttempt{
		EnvelopeID:    envelopeID,
		UserID:        userID,
		ResultCode:    models.ClaimPending,
		AmountClaimed: "0",
	}
	res, err := s.db.Model(row).
		OnConflict("DO NOTHING").
		Insert()
	if err != nil {
		return false, errors.Wrapf(err, "failed to insert claim attempt %d/%d", envelopeID, userID)
	}
	return res.RowsAffected() > 0, nil
}

func (s *ClaimStorage) Resolve(envelopeID, userID int64, code int64, amount *big.Int) error {
	res, err := s.db.Model(&models.ClaimAttempt{}).
		Where("envelope_id = ? and user_id = ?", envelopeID, userID).
		Set("result_code = ?, amount_claimed = ?", code, amount.String()).
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to resolve claim attempt %d/%d", envelopeID, userID)
	}
	if res.RowsAffected() == 0 {
		s.errorCounter.Inc()
		s.log.WithField("envelope_id", envelopeID).Errorf("failed to resolve claim attempt")
	}
	return nil
}
