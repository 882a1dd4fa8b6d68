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

// Package httpapi wires the core export service's HTTP surface: the
// authenticated export endpoints and the public health check.
package httpapi

import (
	"time"

	"github.com/databeam/xlsxexport/internal/auth"
	"github.com/databeam/xlsxexport/internal/dbpool"
	"github.com/databeam/xlsxexport/internal/export"
	"github.com/databeam/xlsxexport/internal/reqid"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options configures the router. IncludeStackTraces should be true only
// under NODE_ENV=development.
type Options struct {
	Pool                *dbpool.Pool
	Verifier            *auth.Verifier
	HighWaterMarkBytes  int
	MemorySampleEvery   uint64
	IncludeStackTraces  bool
	DebugRequestLogging bool
}

// NewRouter builds the chi router serving the core export service.
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
	)

	router.Get("/health", healthHandler(opts.Pool))

	router.Route("/export", func(r chi.Router) {
		r.Use(auth.Middleware(opts.Verifier))

		h := &exportHandlers{
			controller: &export.Controller{
				HighWaterMarkBytes: opts.HighWaterMarkBytes,
				MemorySampleEvery:  opts.MemorySampleEvery,
				IncludeStackTraces: opts.IncludeStackTraces,
			},
			pool: opts.Pool,
		}

		r.Get("/report", h.streamingReport)
		r.Get("/report-buffered", h.bufferedReport)
	})

	return router
}
