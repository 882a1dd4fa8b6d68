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

// Package reqid propagates a per-request correlation ID as the X-Request-Id
// response header, so gateway and core logs for the same export can be
// matched up across the network hop.
package reqid

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// HeaderName is the response header carrying the correlation ID.
const HeaderName = "X-Request-Id"

// Propagate must be mounted after chi's middleware.RequestID. It echoes
// chi's request-scoped ID (itself derived from an inbound X-Request-Id
// header, or a counter-based fallback) as a response header, minting a
// fresh UUID when chi's ID is empty, e.g. because RequestID was not
// mounted upstream of this handler in some test configuration.
func Propagate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderName, id)
		next.ServeHTTP(w, r)
	})
}
