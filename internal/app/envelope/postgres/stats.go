// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package postgres

import (
	"time"

	"github.com/go-pg/pg/orm"
	"github.com/pkg/errors"
)

// StatsOverview is an operational snapshot, totals since launch plus a
// trailing 24h window. Envelope figures count sent envelopes only, the
// unsent ones are drafts nobody saw. Amounts are decimal text in the
// token's smallest unit.
type StatsOverview struct {
	Created        time.Time
	TotalWallets   int
	DayWallets     int
	TotalEnvelopes int
	DayEnvelopes   int
	TotalAmount    string
	DayAmount      string
	TotalClaims    int
	DayClaims      int
}

// Spreader ranks envelope owners by how many wallets were first linked
// through one of their envelopes.
type Spreader struct {
	UserID    int64
	Username  string
	Wallets   int
	Envelopes int
}

type StatsRepo interface {
	Overview() (StatsOverview, error)
	Spreaders(limit int) ([]Spreader, error)
}

type StatsRepository struct {
	db orm.DB
}

func NewStatsRepository(db orm.DB) StatsRepo {
	return &StatsRepository{db: db}
}

func (s *StatsRepository) Overview() (StatsOverview, error) {
	stats := StatsOverview{
		Created: time.Now(),
	}

	// wallets
	{
		sqlRes := struct {
			Count int
			Day   int
		}{}
		_, err := s.db.QueryOne(&sqlRes,
			"SELECT COUNT(1) AS Count,"+
				" COUNT(1) FILTER (WHERE create_time >= NOW() - INTERVAL '24 HOURS') AS Day"+
				" FROM wallet_links",
		)
		if err != nil {
			return StatsOverview{}, errors.Wrap(err, "couldn't count wallets")
		}
		stats.TotalWallets = sqlRes.Count
		stats.DayWallets = sqlRes.Day
	}

	// sent envelopes
	{
		sqlRes := struct {
			Count     int
			Amount    string
			Day       int
			DayAmount string
		}{}
		_, err := s.db.QueryOne(&sqlRes,
			"SELECT COUNT(1) AS Count,"+
				" COALESCE(SUM(amount::numeric), 0)::text AS Amount,"+
				" COUNT(1) FILTER (WHERE send_time >= NOW() - INTERVAL '24 HOURS') AS Day,"+
				" COALESCE(SUM(amount::numeric) FILTER (WHERE send_time >= NOW() - INTERVAL '24 HOURS'), 0)::text AS Day_Amount"+
				" FROM envelope_status WHERE is_sent",
		)
		if err != nil {
			return StatsOverview{}, errors.Wrap(err, "couldn't count envelopes")
		}
		stats.TotalEnvelopes = sqlRes.Count
		stats.TotalAmount = sqlRes.Amount
		stats.DayEnvelopes = sqlRes.Day
		stats.DayAmount = sqlRes.DayAmount
	}

	// claim attempts, resolved or not
	{
		sqlRes := struct {
			Count int
			Day   int
		}{}
		_, err := s.db.QueryOne(&sqlRes,
			"SELECT COUNT(1) AS Count,"+
				" COUNT(1) FILTER (WHERE create_time >= NOW() - INTERVAL '24 HOURS') AS Day"+
				" FROM claim_attempts",
		)
		if err != nil {
			return StatsOverview{}, errors.Wrap(err, "couldn't count claims")
		}
		stats.TotalClaims = sqlRes.Count
		stats.DayClaims = sqlRes.Day
	}

	return stats, nil
}

func (s *StatsRepository) Spreaders(limit int) ([]Spreader, error) {
	var rows []Spreader
	_, err := s.db.Query(&rows,
		"SELECT s.owner_uid AS user_id,"+
			" COALESCE(u.username, '') AS username,"+
			" COUNT(w.user_id) AS wallets,"+
			" COUNT(DISTINCT s.id) AS envelopes"+
			" FROM wallet_links w"+
			" JOIN envelope_status s ON w.channel = s.id"+
			" LEFT JOIN users u ON u.user_id = s.owner_uid"+
			" GROUP BY s.owner_uid, u.username"+
			" ORDER BY COUNT(w.user_id) DESC"+
			" LIMIT ?", limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't select spreaders")
	}
	return rows, nil
}
