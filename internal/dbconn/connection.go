// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package dbconn

import (
	"github.com/go-pg/pg"
	"github.com/pkg/errors"

	"github.com/socialfi/rebot/configuration"
)

func Connect(cfg configuration.DB) (*pg.DB, error) {
	opt, err := pg.ParseURL(cfg.URL)
	if err != nil {
		// pg.ParseURL uses standard url.Parse
		// which fills the url-string with password into error.
		// So we can't use errors.Wrap here and print error above in code.
		return nil, errors.New("failed to parse cfg.DB.URL")
	}
	opt.PoolSize = cfg.PoolSize
	return pg.Connect(opt), nil
}
