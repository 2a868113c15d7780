// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package metrics instruments the executor with Prometheus counters, kept in
// a private registry rather than exposed via an HTTP server: this tool is a
// one-shot CLI action, not a daemon, so there is no /metrics endpoint to
// scrape. The counters exist so the run can log an aggregate summary built
// from their final values, condensed into one log line at the end of a run.
package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters bundles the run's outcome counters. Construct one with New per
// run; there is no global singleton.
type Counters struct {
	Registry *prometheus.Registry

	VersionsDeleted      prometheus.Counter
	VersionsDeleteFailed prometheus.Counter
	TagsDeleted          prometheus.Counter
	TagsDeleteFailed     prometheus.Counter
}

// New builds a fresh, privately-registered Counters bundle.
func New() *Counters {
	reg := prometheus.NewRegistry()
	c := &Counters{
		Registry: reg,
		VersionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghcr_prune_versions_deleted_total",
			Help: "Package versions successfully deleted.",
		}),
		VersionsDeleteFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghcr_prune_versions_delete_failed_total",
			Help: "Package version deletions that failed.",
		}),
		TagsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghcr_prune_tags_deleted_total",
			Help: "Tags successfully detached via the ghost-manifest protocol.",
		}),
		TagsDeleteFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghcr_prune_tags_delete_failed_total",
			Help: "Tag detachments that failed.",
		}),
	}
	reg.MustRegister(c.VersionsDeleted, c.VersionsDeleteFailed, c.TagsDeleted, c.TagsDeleteFailed)
	return c
}

// CounterValue reads back the current value of a prometheus.Counter for the
// final summary log line.
func CounterValue(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
