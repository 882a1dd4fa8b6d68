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

package export

import (
	"bytes"
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func fixtureDB(t *testing.T, rowCount int) *sql.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite3: %v", err)
	}
	db, err := gdb.DB()
	if err != nil {
		t.Fatalf("underlying sql.DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE spgeneratedata_fixture (
		IntColumn INTEGER, BigIntColumn INTEGER, DecimalColumn REAL, FloatColumn REAL,
		BitColumn INTEGER, GuidColumn TEXT, DateColumn TEXT, VarcharColumn TEXT,
		TextColumn TEXT, JsonColumn TEXT)`)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	for i := 0; i < rowCount; i++ {
		_, err := db.Exec(`INSERT INTO spgeneratedata_fixture VALUES (?,?,?,?,?,?,?,?,?,?)`,
			i, i, 1.5, 2.5, i%2, "guid", "2024-01-01", "v", "t", "{}")
		if err != nil {
			t.Fatalf("insert fixture row %d: %v", i, err)
		}
	}
	return db
}

func newTestController() *Controller {
	return &Controller{
		HighWaterMarkBytes: 4096,
		MemorySampleEvery:  1000,
		ProcCall:           "SELECT * FROM spgeneratedata_fixture LIMIT ?",
	}
}

func TestStreamExportHappyPathProducesValidWorkbook(t *testing.T) {
	db := fixtureDB(t, 3)
	c := newTestController()

	rec := httptest.NewRecorder()
	c.StreamExport(context.Background(), db, rec, Request{RowCount: 3})

	resp := rec.Result()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type: %q", ct)
	}
	disposition := resp.Header.Get("Content-Disposition")
	if disposition == "" {
		t.Fatal("expected a Content-Disposition header")
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("reopen generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Report")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 1 header + 3 data rows, got %d", len(rows))
	}
}

func TestParseRowCountDefaultsAndRejectsOutOfRange(t *testing.T) {
	n, err := ParseRowCount("")
	if err != nil || n != DefaultRowCount {
		t.Fatalf("expected default %d, got %d err %v", DefaultRowCount, n, err)
	}

	if _, err := ParseRowCount("abc"); err == nil {
		t.Fatal("expected validation error for non-integer rowCount")
	}
	if _, err := ParseRowCount("0"); err == nil {
		t.Fatal("expected validation error for rowCount below minimum")
	}
	if _, err := ParseRowCount("2000000"); err == nil {
		t.Fatal("expected validation error for rowCount above maximum")
	}
}

func TestStreamExportStartupFailureReturnsJSONError(t *testing.T) {
	db := fixtureDB(t, 0)
	c := newTestController()
	c.ProcCall = "SELECT * FROM no_such_table"

	rec := httptest.NewRecorder()
	c.StreamExport(context.Background(), db, rec, Request{RowCount: 10})

	resp := rec.Result()
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500 for a startup failure, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("expected a JSON error body, got content type %q", ct)
	}
}

func TestStreamExportZeroRowsStillProducesHeaderOnlyWorkbook(t *testing.T) {
	db := fixtureDB(t, 0)
	c := newTestController()

	rec := httptest.NewRecorder()
	c.StreamExport(context.Background(), db, rec, Request{RowCount: 1})

	resp := rec.Result()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("reopen generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Report")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the header row, got %d rows", len(rows))
	}
}

func TestBuildFilenameMatchesExpectedPattern(t *testing.T) {
	name := buildFilename("", time.Now())
	if !validFilenamePattern.MatchString(name) {
		t.Fatalf("filename %q does not match expected pattern", name)
	}
}

// countingResponseWriter records how many discrete Write calls reach the
// response, so a test can tell an encoder that streams bytes as rows
// arrive apart from one that hands over a complete workbook in a single
// burst at the end.
type countingResponseWriter struct {
	*httptest.ResponseRecorder
	writeCount int
}

func (w *countingResponseWriter) Write(p []byte) (int, error) {
	w.writeCount++
	return w.ResponseRecorder.Write(p)
}

func TestStreamExportFlushesRowsIncrementallyUnderLowHighWaterMark(t *testing.T) {
	db := fixtureDB(t, 300)
	c := newTestController()
	c.HighWaterMarkBytes = 64 // small enough that many rows must trip it

	rec := &countingResponseWriter{ResponseRecorder: httptest.NewRecorder()}
	c.StreamExport(context.Background(), db, rec, Request{RowCount: 300})

	resp := rec.Result()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if rec.writeCount < 2 {
		t.Fatalf("expected the response to receive more than one write under a low high-water mark (proving rows are flushed as they arrive, not only at Finalize), got %d", rec.writeCount)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("reopen generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Report")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 301 {
		t.Fatalf("expected 1 header + 300 data rows, got %d", len(rows))
	}
}

func TestBufferedExportHappyPathProducesValidWorkbook(t *testing.T) {
	db := fixtureDB(t, 3)
	c := newTestController()

	rec := httptest.NewRecorder()
	c.BufferedExport(context.Background(), db, rec, Request{RowCount: 3})

	resp := rec.Result()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type: %q", ct)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("reopen generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Report")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 1 header + 3 data rows, got %d", len(rows))
	}
}

func TestBufferedExportZeroRowsStillProducesHeaderOnlyWorkbook(t *testing.T) {
	db := fixtureDB(t, 0)
	c := newTestController()

	rec := httptest.NewRecorder()
	c.BufferedExport(context.Background(), db, rec, Request{RowCount: 1})

	resp := rec.Result()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("reopen generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Report")
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the header row, got %d rows", len(rows))
	}
}

func TestBufferedExportStartupFailureReturnsJSONError(t *testing.T) {
	db := fixtureDB(t, 0)
	c := newTestController()
	c.ProcCall = "SELECT * FROM no_such_table"

	rec := httptest.NewRecorder()
	c.BufferedExport(context.Background(), db, rec, Request{RowCount: 10})

	resp := rec.Result()
	if resp.StatusCode != 500 {
		t.Fatalf("expected 500 for a startup failure, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Fatalf("expected a JSON error body, got content type %q", ct)
	}
}
