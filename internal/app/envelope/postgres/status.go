// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

// Package postgres keeps the local bookkeeping side of the envelope
// flows. Every storage is written against orm.DB so tests can run the
// same code inside a transaction.
package postgres

import (
	"github.com/go-pg/pg"
	"github.com/go-pg/pg/orm"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/internal/models"
	"github.com/socialfi/rebot/observability"
)

type StatusStorage struct {
	log          *logrus.Logger
	errorCounter prometheus.Counter
	db           orm.DB
}

func NewStatusStorage(obs *observability.Observability, db orm.DB) *StatusStorage {
	errorCounter := obs.Counter(prometheus.CounterOpts{
		Name: "rebot_status_storage_error_counter",
		Help: "",
	})
	return &StatusStorage{
		log:          obs.Log(),
		errorCounter: errorCounter,
		db:           db,
	}
}

// Insert ignores a duplicate id, so replaying a create response is
// harmless.
func (s *StatusStorage) Insert(model *models.EnvelopeStatus) error {
	if model == nil {
		s.log.Warnf("trying to insert nil envelope status model")
		return nil
	}
	_, err := s.db.Model(model).
		OnConflict("DO NOTHING").
		Insert()
	if err != nil {
		return errors.Wrapf(err, "failed to insert envelope status %v", model)
	}
	return nil
}

func (s *StatusStorage) Get(id, ownerID int64) (*models.EnvelopeStatus, error) {
	status := &models.EnvelopeStatus{}
	err := s.db.Model(status).
		Where("id = ? and owner_uid = ?", id, ownerID).
		Select()
	if err == pg.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select envelope status %d", id)
	}
	return status, nil
}

func (s *StatusStorage) GetByIDs(ids []int64, ownerID int64) ([]models.EnvelopeStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var statuses []models.EnvelopeStatus
	err := s.db.Model(&statuses).
		Where("id in (?)", pg.In(ids)).
		Where("owner_uid = ?", ownerID).
		Select()
	if err != nil {
		return nil, errors.Wrap(err, "failed to select envelope statuses")
	}
	return statuses, nil
}

func (s *StatusStorage) MarkSent(id int64, receiver string) error {
	res, err := s.db.Model(&models.EnvelopeStatus{}).
		Where("id = ?", id).
		Set("is_sent = true, receiver = ?, send_time = now()", receiver).
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to mark envelope %d sent", id)
	}
	if res.RowsAffected() == 0 {
		s.errorCounter.Inc()
		s.log.WithField("envelope_id", id).Errorf("failed to mark envelope sent")
	}
	return nil
}

func (s *StatusStorage) MarkRevoked(id int64) error {
	res, err := s.db.Model(&models.EnvelopeStatus{}).
		Where("id = ?", id).
		Set("is_revoked = true").
		Update()
	if err != nil {
		return errors.Wrapf(err, "failed to mark envelope %d revoked", id)
	}
	if res.RowsAffected() == 0 {
		s.errorCounter.Inc()
		s.log.WithField("envelope_id", id).Errorf("failed to mark envelope revoked")
	}
	return nil
}
