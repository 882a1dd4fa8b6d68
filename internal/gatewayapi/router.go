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

// Package gatewayapi wires the edge gateway's public HTTP surface: the
// proxied export routes and the public health check.
package gatewayapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/databeam/xlsxexport/internal/gatewayproxy"
	"github.com/databeam/xlsxexport/internal/reqid"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Options configures the gateway router.
type Options struct {
	Forwarder           *gatewayproxy.Forwarder
	CORSOrigin          string
	DebugRequestLogging bool
}

// NewRouter builds the chi router serving the edge gateway.
func NewRouter(opts Options) *chi.Mux {
	router := chi.NewRouter()

	router.Use(
		middleware.ThrottleBacklog(100, 50, 5*time.Second),
		middleware.RequestID,
		middleware.RealIP,
	)
	if opts.DebugRequestLogging {
		router.Use(middleware.Logger)
	}
	router.Use(
		middleware.RedirectSlashes,
		middleware.Recoverer,
		reqid.Propagate,
		cors.Handler(cors.Options{
			AllowedOrigins: []string{opts.CORSOrigin},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}),
	)

	router.Get("/health", healthHandler)

	router.Get("/exports/report", opts.Forwarder.ServeHTTP)
	router.Get("/exports/report-buffered", opts.Forwarder.ServeHTTP)

	return router
}

type healthBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(healthBody{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
