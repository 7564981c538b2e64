// Copyright 2024 SocialFi Agent Ltd.
// All rights reserved.
// This material is licensed under the Apache License version 2.0,
// available at https://github.com/socialfi/rebot/blob/master/LICENSE.md.

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/socialfi/rebot/configuration"
)

func Make(cfg *configuration.Configuration) *Observability {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Observability{
		log:      log,
		metrics:  prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
	}
}

type Observability struct {
	log      *logrus.Logger
	metrics  *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

func (o *Observability) Log() *logrus.Logger {
	return o.log
}

func (o *Observability) Metrics() *prometheus.Registry {
	return o.metrics
}

func (o *Observability) Counter(opts prometheus.CounterOpts) prometheus.Counter {
	c, ok := o.counters[opts.Name]
	if ok {
		return c
	}
	c = prometheus.NewCounter(opts)
	err := o.metrics.Register(c)
	if err != nil {
		o.log.WithField("metric_collector", opts.Name).
			Errorf("failed to register metric")
		return c
	}
	o.counters[opts.Name] = c
	return c
}

func (o *Observability) Gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g, ok := o.gauges[opts.Name]
	if ok {
		return g
	}
	g = prometheus.NewGauge(opts)
	err := o.metrics.Register(g)
	if err != nil {
		o.log.WithField("metric_collector", opts.Name).
			Errorf("failed to register metric")
		return g
	}
	o.gauges[opts.Name] = g
	return g
}

// GatewayMetrics are the counters every envelope operation reports into.
type GatewayMetrics struct {
	Creates        prometheus.Counter
	Claims         prometheus.Counter
	Revokes        prometheus.Counter
	Reconciliation prometheus.Counter
}

func MakeGatewayMetrics(obs *Observability) *GatewayMetrics {
	return &GatewayMetrics{
		Creates: obs.Counter(prometheus.CounterOpts{
			Name: "rebot_envelope_creates_total",
			Help: "Number of envelopes successfully created in the registry.",
		}),
		Claims: obs.Counter(prometheus.CounterOpts{
			Name: "rebot_envelope_claims_total",
			Help: "Number of successful envelope claims.",
		}),
		Revokes: obs.Counter(prometheus.CounterOpts{
			Name: "rebot_envelope_revokes_total",
			Help: "Number of successful envelope revocations.",
		}),
		Reconciliation: obs.Counter(prometheus.CounterOpts{
			Name: "rebot_reconciliation_pending_total",
			Help: "Number of partial failures left for manual reconciliation.",
		}),
	}
}
