// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/railfeed/dvsd/internal/config"
	"github.com/railfeed/dvsd/internal/downtime"
	"github.com/railfeed/dvsd/internal/inject"
	"github.com/railfeed/dvsd/internal/ingest"
	"github.com/railfeed/dvsd/internal/lifecycle"
	"github.com/railfeed/dvsd/internal/metrics"
	"github.com/railfeed/dvsd/internal/persistence"
	"github.com/railfeed/dvsd/internal/query"
	"github.com/railfeed/dvsd/internal/store"
	"github.com/railfeed/dvsd/pkg/util"
)

var replyJSON = jsoniter.ConfigCompatibleWithStandardLibrary

var adminAddr string

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: ingest, lifecycle sweep, downtime detection, query and injector channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&adminAddr, "admin-addr", ":2112", "address the Prometheus /metrics endpoint listens on")
	return cmd
}

// runServe wires every component named in SPEC_FULL.md §3 into one
// errgroup, the same shape cdc/owner_operator.go uses to run a set of
// goroutines that all cancel each other on first failure.
func runServe(parentCtx context.Context) error {
	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		// Configuration / startup failure is fatal (spec.md §7).
		return errors.Annotate(err, "loading configuration")
	}
	cfg := watcher.Current()

	if err := util.InitLogger(&cfg.Log); err != nil {
		return errors.Annotate(err, "initializing logger")
	}

	ctx, stop := signal.NotifyContext(parentCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	st := store.New(m)

	persist, err := persistence.New(cfg.Persistence)
	if err != nil {
		return errors.Annotate(err, "constructing persistence adapter")
	}
	defer persist.Close()

	if snap, err := persist.Load(ctx); err != nil {
		log.Warn("snapshot restore failed, starting from an empty store", zap.Error(err))
	} else {
		st.Restore(snap)
	}

	detector := downtime.New(
		cfg.DowntimeDetection.CountTimeWindow,
		cfg.DowntimeDetection.CountThreshold,
		cfg.DowntimeDetection.RecoveryTime.AsDuration(),
	)

	engine := lifecycle.New(st, m, func() lifecycle.Thresholds {
		gc := watcher.Current().GarbageCollection
		return lifecycle.Thresholds{
			GCThreshold:         gc.GCThreshold.AsDuration(),
			GCThresholdStatic:   gc.GCThresholdStatic.AsDuration(),
			GCThresholdDeparted: gc.GCThresholdDeparted.AsDuration(),
		}
	})
	engine.KeepDepartures = cfg.Debug.KeepDepartures
	engine.AfterSweep = func() {
		m.SetDowntimeState(string(detector.State()), downtime.AllStates)
		detector.Sample(m.MessagesValue())
		m.SetDowntimeState(string(detector.State()), downtime.AllStates)

		snap := st.TakeSnapshot()
		if err := persist.Save(ctx, snap); err != nil {
			log.Warn("snapshot save failed, will retry next tick", zap.Error(err))
		}
	}

	queue := ingest.NewQueue()
	reader := ingest.NewReader(cfg.Bindings.DVSServer, "dvsd.feed", cfg.ZMQ.Envelope, queue)
	worker := ingest.NewWorker(queue, st, m)

	queryServer := query.New(st, m, detector)
	injector := inject.New(st, m, rate.Limit(cfg.Injector.RateLimitPerSec), cfg.Injector.Burst)

	nc, err := nats.Connect(cfg.Bindings.DVSServer)
	if err != nil {
		return errors.Annotate(err, "connecting to NATS for client/injector channels")
	}
	defer nc.Close()

	querySub, err := nc.QueueSubscribe(cfg.Bindings.ClientServer, "dvsd-query", func(msg *nats.Msg) {
		reply := queryServer.Handle(string(msg.Data))
		if err := msg.Respond(reply); err != nil {
			log.Warn("query reply failed", zap.Error(err))
		}
	})
	if err != nil {
		return errors.Annotate(err, "subscribing to client channel")
	}
	defer querySub.Unsubscribe()

	injectSub, err := nc.QueueSubscribe(cfg.Bindings.InjectorServer, "dvsd-injector", func(msg *nats.Msg) {
		reply := injector.Handle(msg.Data)
		out, err := replyJSON.Marshal(reply)
		if err != nil {
			log.Warn("injector reply marshal failed", zap.Error(err))
			return
		}
		if err := msg.Respond(out); err != nil {
			log.Warn("injector reply failed", zap.Error(err))
		}
	})
	if err != nil {
		return errors.Annotate(err, "subscribing to injector channel")
	}
	defer injectSub.Unsubscribe()

	admin := newAdminServer(reg, adminAddr)

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error { return reader.Run(ctx) })
	errg.Go(func() error { return worker.Run(ctx) })
	errg.Go(func() error { return engine.Run(ctx) })
	errg.Go(func() error { return watcher.Run(ctx) })
	errg.Go(func() error {
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Trace(err)
		}
		return nil
	})
	errg.Go(func() error {
		<-ctx.Done()
		return admin.Close()
	})

	if err := errg.Wait(); err != nil && errors.Cause(err) != context.Canceled {
		return errors.Trace(err)
	}
	return nil
}

// newAdminServer mounts the Prometheus scrape endpoint on its own
// mux, split out from runServe so a test can stand one up on an
// ephemeral port without dialing NATS or touching the store.
func newAdminServer(gatherer prometheus.Gatherer, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux}
}
