// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Strategy labels.
const (
	strategyBasic   = "basic"
	strategySession = "session"
)

// Outcome labels.
const (
	outcomeResolved     = "resolved"
	outcomeNoCredential = "no_credential"
	outcomeRejected     = "rejected"
	outcomeExpired      = "expired"
	outcomeError        = "error"
	outcomeSuccess      = "success"
	outcomeNotFound     = "not_found"
)

// Metrics holds the authentication counters.
// Counters are created unregistered; callers expose them via Collectors.
type Metrics struct {
	Resolutions *prometheus.CounterVec
	Sessions    *prometheus.CounterVec
	Logins      *prometheus.CounterVec
	Resets      *prometheus.CounterVec
}

// NewMetrics creates an unregistered set of authentication counters.
func NewMetrics() *Metrics {
	return &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_principal_resolutions_total",
			Help: "Total number of request-to-principal resolutions by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_session_operations_total",
			Help: "Total number of session operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_logins_total",
			Help: "Total number of login attempts by outcome",
		}, []string{"outcome"}),
		Resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_password_resets_total",
			Help: "Total number of password reset operations by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}

// Collectors returns the counters for registration with a prometheus.Registerer.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Resolutions, m.Sessions, m.Logins, m.Resets}
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// DefaultMetrics returns the process-wide counters shared by all strategies and services.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

func (m *Metrics) recordResolution(strategy, outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) recordSession(operation, outcome string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) recordLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) recordReset(operation, outcome string) {
	if m == nil {
		return
	}
	m.Resets.WithLabelValues(operation, outcome).Inc()
}
