// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/gildash/internal/ui"
	"github.com/kraklabs/gildash/pkg/gildash"
	"github.com/kraklabs/gildash/pkg/indexer"
)

// watchMetrics are the Prometheus series exported while watching.
type watchMetrics struct {
	runsTotal    prometheus.Counter
	indexedFiles prometheus.Counter
	removedFiles prometheus.Counter
	runDuration  prometheus.Histogram
	ownerRole    prometheus.Gauge
}

func newWatchMetrics() *watchMetrics {
	return &watchMetrics{
		runsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gildash_index_runs_total",
			Help: "Number of completed index runs.",
		}),
		indexedFiles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gildash_indexed_files_total",
			Help: "Number of files indexed across all runs.",
		}),
		removedFiles: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gildash_removed_files_total",
			Help: "Number of files removed from the index across all runs.",
		}),
		runDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "gildash_index_run_duration_seconds",
			Help:    "Duration of index runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		ownerRole: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "gildash_owner_role",
			Help: "1 when this instance holds the owner role.",
		}),
	}
}

func (m *watchMetrics) observe(res indexer.Result) {
	m.runsTotal.Inc()
	m.indexedFiles.Add(float64(res.IndexedFiles))
	m.removedFiles.Add(float64(res.RemovedFiles))
	m.runDuration.Observe(float64(res.DurationMS) / 1000.0)
}

// runWatch runs the long-lived owner: watch mode with optional metrics
// endpoint. The process blocks until interrupted.
func runWatch(args []string, configPath string, globals GlobalFlags) int {
	flags := flag.NewFlagSet("watch", flag.ExitOnError)
	metricsAddr := flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9135)")
	semanticMode := flags.Bool("semantic", false, "Enable the semantic bridge")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		ui.Error("load config: %v", err)
		return 1
	}
	root, err := projectRoot()
	if err != nil {
		ui.Error("%v", err)
		return 1
	}

	opts := cfg.openOptions(globals)
	if *semanticMode {
		opts.Semantic = true
	}

	g, err := gildash.Open(context.Background(), root, opts)
	if err != nil {
		ui.Error("open: %v", err)
		return 1
	}

	metrics := newWatchMetrics()
	refreshRole := func() {
		if g.Role() == gildash.RoleOwner {
			metrics.ownerRole.Set(1)
		} else {
			metrics.ownerRole.Set(0)
		}
	}
	refreshRole()

	unsubscribe := g.OnIndexed(func(res indexer.Result) {
		metrics.observe(res)
		refreshRole()
		if !globals.Quiet {
			printResult(&res)
		}
	})
	defer unsubscribe()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				ui.Error("metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		ui.Dim("metrics on %s/metrics", *metricsAddr)
	}

	ui.Success("watching %s as %s", g.DefaultProject(), g.Role())

	// The runtime registers its own close-on-signal handlers; this
	// just keeps the process alive until one fires.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if err := g.Close(); err != nil {
		ui.Error("close: %v", err)
		return 1
	}
	ui.Success("stopped")
	return 0
}
