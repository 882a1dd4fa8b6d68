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

package gatewayproxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/databeam/xlsxexport/internal/auth"
)

func newTestMinter(t *testing.T) *auth.Minter {
	t.Helper()
	m, err := auth.NewMinter([]byte(strings.Repeat("a", 32)), time.Minute)
	if err != nil {
		t.Fatalf("new minter: %v", err)
	}
	return m
}

func TestForwarderRewritesPathAndInjectsBearer(t *testing.T) {
	var gotPath, gotAuth string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	fwd, err := NewForwarder(upstream.URL, PathRewrite{From: "/exports", To: "/export"}, newTestMinter(t))
	if err != nil {
		t.Fatalf("new forwarder: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/exports/report?rowCount=3", nil)
	rec := httptest.NewRecorder()
	fwd.ServeHTTP(rec, req)

	if gotPath != "/export/report" {
		t.Fatalf("expected rewritten path /export/report, got %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "Bearer ") {
		t.Fatalf("expected a bearer credential to be injected, got %q", gotAuth)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestForwarderReturns502OnConnectionRefused(t *testing.T) {
	// A server that's immediately closed leaves its port refusing
	// connections, simulating the core being down.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := upstream.URL
	upstream.Close()

	fwd, err := NewForwarder(deadURL, PathRewrite{From: "/exports", To: "/export"}, newTestMinter(t))
	if err != nil {
		t.Fatalf("new forwarder: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/exports/report", nil)
	rec := httptest.NewRecorder()
	fwd.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected an empty body on proxy failure, got %q", rec.Body.String())
	}
}
