// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package component

import (
	"context"
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/socialfi/rebot/configuration"
	"github.com/socialfi/rebot/observability"
)

func NewRouter(cfg *configuration.Configuration, obs *observability.Observability) *Router {
	router := httprouter.New()
	hs := &http.Server{Addr: cfg.API.Listen, Handler: router}
	r := &Router{
		hs:  hs,
		obs: obs,
	}
	router.GET("/healthcheck", r.healthCheck)
	router.GET("/metrics", r.metrics)
	return r
}

type Router struct {
	hs  *http.Server
	obs *observability.Observability
}

func (r *Router) Start() {
	log := r.obs.Log()
	go func() {
		err := r.hs.ListenAndServe()
		if err != http.ErrServerClosed {
			log.Error(errors.Wrapf(err, "http server ListenAndServe"))
		}
	}()
}

func (r *Router) Stop() {
	log := r.obs.Log()

	if err := r.hs.Shutdown(context.Background()); err != nil {
		log.Error(errors.Wrapf(err, "http server shutdown"))
	}
}

func (r *Router) healthCheck(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

func (r *Router) metrics(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ops := promhttp.HandlerOpts{
		ErrorLog: r.obs.Log(),
	}
	handler := promhttp.HandlerFor(r.obs.Metrics(), ops)
	handler.ServeHTTP(w, req)
}
