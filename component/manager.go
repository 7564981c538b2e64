// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package component

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/configuration"
	"github.com/socialfi/rebot/connectivity"
	"github.com/socialfi/rebot/internal/app/api"
	"github.com/socialfi/rebot/internal/app/envelope"
	"github.com/socialfi/rebot/internal/app/envelope/ic"
	"github.com/socialfi/rebot/internal/app/envelope/postgres"
	"github.com/socialfi/rebot/internal/app/identity"
	"github.com/socialfi/rebot/observability"
)

// Manager owns the wiring and the lifecycle. Everything is constructed
// up front in Prepare; Start only opens the listeners.
type Manager struct {
	cfg    *configuration.Configuration
	log    *logrus.Logger
	conn   *connectivity.Connectivity
	router *Router
	admin  *echo.Echo
	orc    *envelope.Orchestrator
}

func Prepare() *Manager {
	cfg := configuration.Load()
	obs := observability.Make(cfg)
	conn := connectivity.Make(cfg, obs)
	return prepare(cfg, obs, conn)
}

func prepare(cfg *configuration.Configuration, obs *observability.Observability, conn *connectivity.Connectivity) *Manager {
	log := obs.Log()

	deriver, err := identity.NewDeriver(cfg.Gateway.Mnemonic)
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to build key deriver"))
	}
	issuer, err := identity.NewIssuer(deriver, cfg.Gateway.DelegationTTL, cfg.Gateway.DelegationCacheSize)
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to build delegation issuer"))
	}
	gateway, err := deriver.Gateway()
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to derive gateway identity"))
	}

	dialer := ic.NewDialer(conn.Replica(), cfg.Gateway.FetchRootKey)
	registry := ic.NewRegistry(obs, dialer, conn.Registry(), gateway)
	ledger := ic.NewLedger(obs, dialer, issuer)

	db := conn.PG()
	var links *envelope.ShareLinks
	if cfg.Gateway.ShareSecret != "" {
		links, err = envelope.NewShareLinks(cfg.Gateway.ShareSecret, cfg.Envelope.BotUsername)
		if err != nil {
			log.Fatal(errors.Wrap(err, "failed to build share link codec"))
		}
	}

	orc := envelope.NewOrchestrator(envelope.Deps{
		Log:      log,
		Metrics:  observability.MakeGatewayMetrics(obs),
		Deriver:  deriver,
		Registry: registry,
		Ledger:   ledger,
		Statuses: postgres.NewStatusStorage(obs, db),
		Claims:   postgres.NewClaimStorage(obs, db),
		Wallets:  postgres.NewWalletStorage(obs, db),
		Users:    postgres.NewUserStorage(obs, db),
		Tokens:   postgres.NewTokenStorage(db),
		Links:    links,
		Escrow:   conn.Registry(),
		Clock:    &envelope.DefaultClock{},
		Cfg:      cfg.Envelope,
	})

	admin := echo.New()
	admin.HideBanner = true
	admin.HidePort = true
	api.NewServer(obs, postgres.NewStatsRepository(db)).Register(admin)

	return &Manager{
		cfg:    cfg,
		log:    log,
		conn:   conn,
		router: NewRouter(cfg, obs),
		admin:  admin,
		orc:    orc,
	}
}

// Orchestrator is the gateway's operation surface for whatever chat or
// RPC frontend embeds this process.
func (m *Manager) Orchestrator() *envelope.Orchestrator {
	return m.orc
}

func (m *Manager) Start() {
	m.router.Start()
	go func() {
		err := m.admin.Start(m.cfg.API.Admin)
		if err != nil && err != http.ErrServerClosed {
			m.log.Error(errors.Wrap(err, "admin server ListenAndServe"))
		}
	}()
}

func (m *Manager) Stop() {
	m.router.Stop()
	if err := m.admin.Shutdown(context.Background()); err != nil {
		m.log.Error(errors.Wrap(err, "admin server shutdown"))
	}
	if err := m.conn.PG().Close(); err != nil {
		m.log.Error(errors.Wrap(err, "failed to close db"))
	}
}
