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

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/databeam/xlsxexport/internal/dbpool"
)

type healthBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Pool      string `json:"pool,omitempty"`
}

// healthHandler never requires auth and never touches streaming resources.
// Pool state is included as a supplementary detail beyond the minimal
// {status, timestamp} contract, useful for operators without changing the
// shape a plain client expects.
func healthHandler(pool *dbpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthBody{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		if pool != nil {
			body.Pool = pool.State().String()
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(body)
	}
}
