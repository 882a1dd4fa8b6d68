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
	"context"
	"database/sql"
	"net/http"

	"github.com/databeam/xlsxexport/internal/apperror"
	"github.com/databeam/xlsxexport/internal/dbpool"
	"github.com/databeam/xlsxexport/internal/export"
	"github.com/databeam/xlsxexport/internal/httpjson"
)

type exportHandlers struct {
	controller *export.Controller
	pool       *dbpool.Pool
}

// streamingReport is the primary streaming export path: GET
// /export/report?rowCount=<int>. Rows are encoded and written to the
// response as they arrive from the source.
func (h *exportHandlers) streamingReport(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.controller.StreamExport)
}

// bufferedReport is the non-streaming sibling named in the external
// interfaces as an Open Question resolution: the entire workbook is built
// in memory before a single write reaches the response. It exists as a
// documented comparison against streamingReport, not a recommended path.
func (h *exportHandlers) bufferedReport(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.controller.BufferedExport)
}

func (h *exportHandlers) serve(w http.ResponseWriter, r *http.Request, run func(context.Context, *sql.DB, http.ResponseWriter, export.Request)) {
	rowCount, err := export.ParseRowCount(r.URL.Query().Get("rowCount"))
	if err != nil {
		if appErr, ok := err.(*apperror.Error); ok {
			httpjson.WriteError(w, appErr, h.controller.IncludeStackTraces)
			return
		}
		httpjson.WriteError(w, apperror.Wrap(apperror.KindValidation, "invalid rowCount", err), h.controller.IncludeStackTraces)
		return
	}

	db, err := h.pool.Acquire(r.Context())
	if err != nil {
		httpjson.WriteError(w, apperror.Wrap(apperror.KindDatabase, "database unavailable", err), h.controller.IncludeStackTraces)
		return
	}

	run(r.Context(), db, w, export.Request{RowCount: rowCount})
}
