/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"capture-scheduler-go/internal/common"
	"capture-scheduler-go/internal/config"
	"capture-scheduler-go/internal/httpapi"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	addr := flag.String("addr", "", "Override the HTTP API listen address (default: HTTP_ADDR)")
	apiOnly := flag.Bool("api-only", false, "Serve the HTTP API without running the scheduler loop")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting capture scheduler",
		zap.Duration("tick_interval", cfg.Scheduler.TickInterval),
		zap.Duration("session_deadline", cfg.Scheduler.SessionDeadline),
		zap.String("lock_backend", cfg.Lock.Backend),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("ledger_backend", cfg.Ledger.Backend))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if !*apiOnly {
		if err := services.Scheduler.Start(ctx); err != nil {
			zap.L().Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	server := httpapi.NewServer(cfg.HTTP, services.API)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})

	zap.L().Info("Press Ctrl+C to stop")
	<-gctx.Done()
	zap.L().Info("Shutdown signal received, stopping...")

	done := make(chan error, 1)
	go func() {
		err := g.Wait()
		services.Scheduler.Stop()
		done <- err
	}()

	shutdownTimeout := cfg.HTTP.ShutdownTimeout + cfg.Scheduler.SessionDeadline
	select {
	case err := <-done:
		if err != nil {
			zap.L().Error("HTTP API exited with error", zap.Error(err))
			return
		}
		zap.L().Info("Capture scheduler stopped gracefully")
	case <-time.After(shutdownTimeout):
		zap.L().Warn("Forced shutdown after timeout", zap.Duration("timeout", shutdownTimeout))
	}
}
