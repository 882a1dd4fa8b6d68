/*
 * Copyright 2025 Clidey, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
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
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/databeam/xlsxexport/internal/auth"
	"github.com/databeam/xlsxexport/internal/config"
	"github.com/databeam/xlsxexport/internal/dbpool"
	"github.com/databeam/xlsxexport/internal/httpapi"
	"github.com/databeam/xlsxexport/internal/log"
	"github.com/pkg/errors"
)

func main() {
	log.Logger.Info("Starting export service...")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Logger.WithError(err).Fatal("invalid configuration")
	}

	verifier, err := auth.NewVerifier([]byte(cfg.JWTSecret))
	if err != nil {
		log.Logger.WithError(err).Fatal("invalid JWT secret")
	}

	pool := dbpool.New(dbpool.Config{
		Host:           cfg.DBHost,
		Port:           cfg.DBPort,
		User:           cfg.DBUser,
		Password:       cfg.DBPassword,
		Database:       cfg.DBName,
		MaxConns:       cfg.PoolMaxConns,
		MinWarm:        cfg.PoolMinWarm,
		IdleTimeout:    cfg.PoolIdleTimeout,
		ConnectTimeout: cfg.PoolConnectTimeout,
		RequestTimeout: cfg.PoolRequestTimeout,
	})

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.PoolConnectTimeout)
	if err := pool.Connect(connectCtx); err != nil {
		log.Logger.WithError(err).Warn("initial database connection failed, will retry lazily on first request")
	}
	cancel()

	router := httpapi.NewRouter(httpapi.Options{
		Pool:                pool,
		Verifier:            verifier,
		HighWaterMarkBytes:  cfg.SinkHighWaterMarkBytes,
		MemorySampleEvery:   cfg.MemorySampleIntervalRows,
		IncludeStackTraces:  cfg.IsDevelopment(),
		DebugRequestLogging: cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.APIPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: a large export legitimately runs far longer than
		// any fixed deadline. Slow clients are bounded by backpressure, not
		// a wall-clock cutoff (see sink write policy).
		IdleTimeout: 30 * time.Second,
	}

	serverStarted := make(chan bool, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logger.WithError(err).Error("listen failed")
			serverStarted <- false
		}
	}()

	select {
	case success := <-serverStarted:
		if !success {
			log.Logger.Error("server failed to start, exiting")
			os.Exit(1)
		}
	case <-time.After(2 * time.Second):
		log.Logger.Infof("export service listening on :%s", cfg.APIPort)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Logger.Info("shutting down export service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Logger.WithError(err).Error("server forced to shutdown, resources might be left hanging")
	}

	if err := pool.GracefulShutdown(cfg.PoolDrainTimeout); err != nil {
		log.Logger.WithError(err).Warn("pool drain did not complete cleanly")
	}

	log.Logger.Info("export service exited")
}
