// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package models

import "time"

// Amounts are kept as decimal text in the token's smallest unit. They are
// arbitrary-precision nats on the wire and must never pass through floats.

type EnvelopeStatus struct {
	tableName struct{} `sql:"envelope_status"` //nolint: unused,structcheck

	ID         int64  `sql:"id,pk"`
	Token      string `sql:"token,notnull"`
	OwnerID    int64  `sql:"owner_uid,notnull"`
	Amount     string `sql:"amount,notnull"`
	ShareCount int    `sql:"share_count,notnull"`
	// registry time unit, UTC nanoseconds
	ExpiresAt  int64      `sql:"expires_at,notnull"`
	FeeAmount  string     `sql:"fee_amount,notnull"`
	IsSent     bool       `sql:"is_sent,notnull,default:false"`
	IsRevoked  bool       `sql:"is_revoked,notnull,default:false"`
	Receiver   string     `sql:"receiver"`
	SendTime   *time.Time `sql:"send_time"`
	CreateTime time.Time  `sql:"create_time,notnull,default:now()"`
}

const (
	// ClaimPending is the sentinel result code written before the registry
	// call is issued. Any non-negative code means the call resolved.
	ClaimPending = -1
	// ClaimOK is the registry's success code.
	ClaimOK = 0
)

type ClaimAttempt struct {
	tableName struct{} `sql:"claim_attempts"` //nolint: unused,structcheck

	EnvelopeID    int64     `sql:"envelope_id,pk"`
	UserID        int64     `sql:"user_id,pk"`
	ResultCode    int64     `sql:"result_code,notnull,default:-1"`
	AmountClaimed string    `sql:"amount_claimed,notnull"`
	Discard       int       `sql:"discard,notnull,default:0"`
	CreateTime    time.Time `sql:"create_time,notnull,default:now()"`
}

type WalletLink struct {
	tableName struct{} `sql:"wallet_links"` //nolint: unused,structcheck

	UserID  int64  `sql:"user_id,pk"`
	Address string `sql:"address,notnull"`
	// envelope id the user was first seen through; immutable once set
	Channel    *int64    `sql:"channel"`
	CreateTime time.Time `sql:"create_time,notnull,default:now()"`
}

type TokenConfig struct {
	tableName struct{} `sql:"token_configs"` //nolint: unused,structcheck

	Symbol      string `sql:"symbol,pk"`
	LedgerID    string `sql:"ledger_id,notnull"`
	Decimals    int    `sql:"decimals,notnull"`
	MinPerShare string `sql:"min_per_share,notnull"`
	// platform fee in percent, integer
	FeeRatio   int    `sql:"fee_ratio,notnull"`
	FeeAddress string `sql:"fee_address,notnull"`
}

type User struct {
	tableName struct{} `sql:"users"` //nolint: unused,structcheck

	UserID     int64     `sql:"user_id,pk"`
	Username   string    `sql:"username"`
	UpdateTime time.Time `sql:"update_time,notnull,default:now()"`
}
