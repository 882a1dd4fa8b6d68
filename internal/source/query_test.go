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

package source

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *sql.DB {
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

	if _, err := db.Exec(`CREATE TABLE rows_fixture (a INTEGER, b TEXT)`); err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := db.Exec(`INSERT INTO rows_fixture (a, b) VALUES (?, ?)`, i, "v"); err != nil {
			t.Fatalf("insert fixture: %v", err)
		}
	}
	return db
}

func drain(t *testing.T, h *Handle, timeout time.Duration) ([]Row, error) {
	t.Helper()
	var got []Row
	deadline := time.After(timeout)
	for {
		select {
		case row, ok := <-h.RowCh:
			if !ok {
				return got, nil
			}
			got = append(got, row)
		case <-h.DoneCh:
			return got, nil
		case err := <-h.ErrCh:
			return got, err
		case <-deadline:
			t.Fatal("timed out waiting for source to finish")
		}
	}
}

func TestExecuteStartupFailureReturnsErrorSynchronously(t *testing.T) {
	db := openTestDB(t)
	_, err := Execute(context.Background(), db, "SELECT * FROM no_such_table")
	if err == nil {
		t.Fatal("expected a startup error for an invalid query")
	}
}

func TestExecuteDeliversAllRowsThenDone(t *testing.T) {
	db := openTestDB(t)
	h, err := Execute(context.Background(), db, "SELECT a, b FROM rows_fixture ORDER BY a")
	if err != nil {
		t.Fatalf("unexpected startup error: %v", err)
	}

	rows, err := drain(t, h, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error event: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(rows))
	}
}

func TestPauseBlocksDeliveryUntilResume(t *testing.T) {
	db := openTestDB(t)
	h, err := Execute(context.Background(), db, "SELECT a, b FROM rows_fixture ORDER BY a")
	if err != nil {
		t.Fatalf("unexpected startup error: %v", err)
	}

	h.Pause()

	select {
	case <-h.RowCh:
		t.Fatal("row delivered while paused")
	case <-h.DoneCh:
		t.Fatal("done fired while paused")
	case <-time.After(100 * time.Millisecond):
	}

	h.Resume()

	rows, err := drain(t, h, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error event: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("expected rows to resume flowing after Resume")
	}
}

func TestCancelIsIdempotentAndStopsDelivery(t *testing.T) {
	db := openTestDB(t)
	h, err := Execute(context.Background(), db, "SELECT a, b FROM rows_fixture ORDER BY a")
	if err != nil {
		t.Fatalf("unexpected startup error: %v", err)
	}

	h.Cancel()
	h.Cancel() // must not panic or block

	select {
	case <-h.DoneCh:
		t.Fatal("done must not fire after cancel")
	case err := <-h.ErrCh:
		t.Fatalf("error must not fire after cancel, got %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}
