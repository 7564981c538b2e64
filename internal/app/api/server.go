// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

// Package api is the operator-facing admin surface. It exposes read-only
// reports over the local bookkeeping, never the fund-moving flows.
package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/internal/app/envelope/postgres"
	"github.com/socialfi/rebot/observability"
)

type Server struct {
	log   *logrus.Logger
	stats postgres.StatsRepo
}

func NewServer(obs *observability.Observability, stats postgres.StatsRepo) *Server {
	return &Server{
		log:   obs.Log(),
		stats: stats,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/admin/statistics", s.Statistics)
	e.GET("/admin/spreaders", s.Spreaders)
}

type windowCount struct {
	Total int `json:"total"`
	Day   int `json:"24h"`
}

type windowAmount struct {
	Total string `json:"total"`
	Day   string `json:"24h"`
}

type statisticsResponse struct {
	User windowCount `json:"user"`
	Re   struct {
		Count  windowCount  `json:"count"`
		Amount windowAmount `json:"amount"`
		Snatch windowCount  `json:"snatch"`
	} `json:"re"`
}

func (s *Server) Statistics(ctx echo.Context) error {
	overview, err := s.stats.Overview()
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}

	resp := statisticsResponse{}
	resp.User = windowCount{Total: overview.TotalWallets, Day: overview.DayWallets}
	resp.Re.Count = windowCount{Total: overview.TotalEnvelopes, Day: overview.DayEnvelopes}
	resp.Re.Amount = windowAmount{Total: overview.TotalAmount, Day: overview.DayAmount}
	resp.Re.Snatch = windowCount{Total: overview.TotalClaims, Day: overview.DayClaims}
	return ctx.JSON(http.StatusOK, resp)
}

var topPattern = regexp.MustCompile(`^\d+$`)

func (s *Server) Spreaders(ctx echo.Context) error {
	limit := 10
	if top := ctx.QueryParam("top"); topPattern.MatchString(top) {
		parsed, err := strconv.Atoi(top)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	rows, err := s.stats.Spreaders(limit)
	if err != nil {
		s.log.Error(err)
		return ctx.JSON(http.StatusInternalServerError, struct{}{})
	}

	var csv strings.Builder
	csv.WriteString("user_id,username,user_count,re_count\n")
	for _, row := range rows {
		fmt.Fprintf(&csv, "%d,%s,%d,%d\n", row.UserID, row.Username, row.Wallets, row.Envelopes)
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "inline; filename=spreaders.csv")
	return ctx.Blob(http.StatusOK, "text/csv", []byte(csv.String()))
}
