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

// Package httpjson writes the one JSON error envelope shape used by the
// export service, pre-flush only. The gateway's proxy failures carry no
// JSON body.
package httpjson

import (
	"encoding/json"
	"net/http"

	"github.com/databeam/xlsxexport/internal/apperror"
	"github.com/databeam/xlsxexport/internal/log"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Stack   string `json:"stack,omitempty"`
}

type envelope struct {
	Error errorBody `json:"error"`
}

// WriteError writes {error:{message, code, stack?}} with the status the
// error's Kind maps to. includeStack should be true only when running with
// NODE_ENV=development. A failure to write (socket already gone) is logged
// and swallowed - this is itself a best-effort emit, never a second
// terminal action.
func WriteError(w http.ResponseWriter, err *apperror.Error, includeStack bool) {
	body := envelope{Error: errorBody{
		Message: err.Message,
		Code:    string(err.Kind),
	}}
	if includeStack && err.Cause != nil {
		body.Error.Stack = err.Cause.Error()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(err.Kind.Status())
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		log.Logger.WithError(encErr).Warn("httpjson: failed to write error body, client likely gone")
	}
}

// WriteStatusOnly writes a bare status code with no body. The gateway's
// proxy error handler does the same with a direct WriteHeader call and does
// not go through this function.
func WriteStatusOnly(w http.ResponseWriter, status int) {
	w.WriteHeader(status)
}
