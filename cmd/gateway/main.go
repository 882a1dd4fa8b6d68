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
	"github.com/databeam/xlsxexport/internal/gatewayapi"
	"github.com/databeam/xlsxexport/internal/gatewayproxy"
	"github.com/databeam/xlsxexport/internal/log"
	"github.com/pkg/errors"
)

func main() {
	log.Logger.Info("Starting export gateway...")

	cfg, err := config.LoadGatewayFromEnv()
	if err != nil {
		log.Logger.WithError(err).Fatal("invalid configuration")
	}

	minter, err := auth.NewMinter([]byte(cfg.JWTSecret), cfg.JWTExpiresIn)
	if err != nil {
		log.Logger.WithError(err).Fatal("invalid JWT secret")
	}

	forwarder, err := gatewayproxy.NewForwarder(
		cfg.UpstreamBaseURL(),
		gatewayproxy.PathRewrite{From: "/exports", To: "/export"},
		minter,
	)
	if err != nil {
		log.Logger.WithError(err).Fatal("failed to build upstream forwarder")
	}

	router := gatewayapi.NewRouter(gatewayapi.Options{
		Forwarder:           forwarder,
		CORSOrigin:          cfg.CORSOrigin,
		DebugRequestLogging: cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout here either: the gateway streams through whatever
		// the core produces, for as long as the core takes.
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
		log.Logger.Infof("gateway listening on :%s, forwarding to %s", cfg.AppPort, cfg.UpstreamBaseURL())
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Logger.Info("shutting down gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Logger.WithError(err).Error("server forced to shutdown, resources might be left hanging")
	}

	log.Logger.Info("gateway exited")
}
