// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package main

import (
	"flag"
	"log"

	"github.com/go-pg/migrations"
	"github.com/pkg/errors"

	"github.com/socialfi/rebot/configuration"
	"github.com/socialfi/rebot/internal/dbconn"
)

var migrationDir = flag.String("dir", "scripts/migrations", "directory with migrations")
var doInit = flag.Bool("init", false, "perform db init (for empty db)")

func main() {
	flag.Parse()
	cfg := configuration.Load()

	db, err := dbconn.Connect(cfg.DB)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	migrationCollection := migrations.NewCollection()
	if *doInit {
		_, _, err := migrationCollection.Run(db, "init")
		if err != nil {
			log.Fatal(errors.Wrap(err, "could not init migrations"))
		}
	}

	err = migrationCollection.DiscoverSQLMigrations(*migrationDir)
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to read migrations"))
	}

	oldVersion, newVersion, err := migrationCollection.Run(db, "up")
	if err != nil {
		log.Fatal(errors.Wrap(err, "could not migrate"))
	}
	if newVersion != oldVersion {
		log.Printf("migrated from version %d to %d", oldVersion, newVersion)
	} else {
		log.Printf("version is %d, nothing to run", oldVersion)
	}
}
