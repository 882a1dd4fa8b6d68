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

// Package source executes the report-generating stored procedure in
// streaming mode and delivers rows one at a time over a channel, with
// cooperative pause/resume for backpressure and idempotent cancellation.
package source

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	"github.com/databeam/xlsxexport/internal/log"
)

// ReportColumns is the fixed column order spGenerateData returns.
var ReportColumns = []string{
	"IntColumn", "BigIntColumn", "DecimalColumn", "FloatColumn", "BitColumn",
	"GuidColumn", "DateColumn", "VarcharColumn", "TextColumn", "JsonColumn",
}

// Row is one result-set row, values in ReportColumns order.
type Row struct {
	Values []any
}

// Handle is returned by Execute. Row, Done and Error fire on their
// respective channels; Done and Error are each closed/sent at most once and
// are mutually exclusive in terminal effect.
type Handle struct {
	RowCh  <-chan Row
	DoneCh <-chan struct{}
	ErrCh  <-chan error

	mu        sync.Mutex
	pausedCh  chan struct{}
	cancelled atomic.Bool
	cancel    context.CancelFunc
	rows      *sql.Rows
}

// Execute runs the stored procedure against db, returning a Handle on
// success. A non-nil error here is a startup failure (bad procedure name,
// permissions, pre-execution connection drop) distinct from a later "error"
// event, exactly as the contract requires both be handled independently.
func Execute(ctx context.Context, db *sql.DB, procCall string, args ...any) (*Handle, error) {
	queryCtx, cancel := context.WithCancel(ctx)

	rows, err := db.QueryContext(queryCtx, procCall, args...)
	if err != nil {
		cancel()
		return nil, err
	}

	rowCh := make(chan Row)
	doneCh := make(chan struct{})
	errCh := make(chan error, 1)

	h := &Handle{
		RowCh:  rowCh,
		DoneCh: doneCh,
		ErrCh:  errCh,
		cancel: cancel,
		rows:   rows,
	}

	go h.pump(queryCtx, rows, rowCh, doneCh, errCh)

	return h, nil
}

func (h *Handle) pump(ctx context.Context, rows *sql.Rows, rowCh chan<- Row, doneCh chan<- struct{}, errCh chan<- error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		h.emitError(ctx, errCh, err)
		return
	}

	for rows.Next() {
		if h.cancelled.Load() {
			return
		}
		if !h.waitIfPaused(ctx) {
			return
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			h.emitError(ctx, errCh, err)
			return
		}

		if h.cancelled.Load() {
			return
		}

		select {
		case rowCh <- Row{Values: values}:
		case <-ctx.Done():
			return
		}
	}

	if err := rows.Err(); err != nil {
		h.emitError(ctx, errCh, err)
		return
	}

	if h.cancelled.Load() {
		return
	}
	close(doneCh)
}

func (h *Handle) emitError(ctx context.Context, errCh chan<- error, err error) {
	if h.cancelled.Load() {
		return
	}
	select {
	case errCh <- err:
	case <-ctx.Done():
	}
}

// Pause arms backpressure. Each pause arms exactly one resume: calling
// Pause again before Resume is a no-op.
func (h *Handle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pausedCh == nil {
		h.pausedCh = make(chan struct{})
	}
}

// Resume is the one-shot, edge-triggered listener Pause armed. Calling it
// without a matching Pause is a safe no-op.
func (h *Handle) Resume() {
	h.mu.Lock()
	ch := h.pausedCh
	h.pausedCh = nil
	h.mu.Unlock()
	if ch != nil {
		close(ch)
	}
}

func (h *Handle) waitIfPaused(ctx context.Context) bool {
	h.mu.Lock()
	ch := h.pausedCh
	h.mu.Unlock()
	if ch == nil {
		return true
	}
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

// Cancel instructs the server to stop producing rows and releases the
// connection back to the pool. Idempotent: cancel();cancel() behaves as one
// cancel(). After Cancel returns, no further row is observed.
func (h *Handle) Cancel() {
	if h.cancelled.CompareAndSwap(false, true) {
		h.cancel()
		log.Logger.Debug("source: cancelled")
	}
}
