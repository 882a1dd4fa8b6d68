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

// Package export drives a single export request end-to-end: validate,
// start the streaming query, write rows through the XLSX encoder into the
// HTTP response, and resolve to exactly one terminal outcome.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/databeam/xlsxexport/internal/apperror"
	"github.com/databeam/xlsxexport/internal/httpjson"
	"github.com/databeam/xlsxexport/internal/log"
	"github.com/databeam/xlsxexport/internal/memory"
	"github.com/databeam/xlsxexport/internal/source"
	"github.com/databeam/xlsxexport/internal/xlsxsink"
)

// State is one step of the export lifecycle.
type State int32

const (
	StateInit State = iota
	StateHeadersSet
	StateStreaming
	StateFinalizing
	StateDone
	StateFailedEarly
	StateFailedLate
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateHeadersSet:
		return "headers_set"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailedEarly:
		return "failed_early"
	case StateFailedLate:
		return "failed_late"
	default:
		return "unknown"
	}
}

const (
	MinRowCount     = 1
	MaxRowCount     = 1_048_576
	DefaultRowCount = 30_000
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// reportProcCall is the set-returning invocation of the external stored
// procedure contract described in the external interfaces: a fixed
// ten-column result set, server's natural row order.
const reportProcCall = `SELECT * FROM spgeneratedata($1)`

// Request is one validated export request.
type Request struct {
	RowCount       int
	FilenamePrefix string
}

// ParseRowCount validates the rowCount query parameter per the [1,
// 1_048_576] range, default 30_000, non-integer or out-of-range rejected.
func ParseRowCount(raw string) (int, error) {
	if raw == "" {
		return DefaultRowCount, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.New(apperror.KindValidation, "rowCount must be an integer")
	}
	if n < MinRowCount || n > MaxRowCount {
		return 0, apperror.New(apperror.KindValidation, fmt.Sprintf("rowCount must be between %d and %d", MinRowCount, MaxRowCount))
	}
	return n, nil
}

// Controller drives one export at a time per call to StreamExport; it
// holds no per-request state between calls, so one Controller is shared
// safely across concurrent requests. The database handle is supplied by
// the caller per call (acquired from the pool), not stored here, since the
// pool may reset the handle between calls.
type Controller struct {
	HighWaterMarkBytes int
	MemorySampleEvery  uint64
	IncludeStackTraces bool
	Clock              func() time.Time

	// ProcCall overrides reportProcCall; tests substitute a fixture query
	// against a fake schema since the real call is Postgres-specific.
	ProcCall string
}

func (c *Controller) procCall() string {
	if c.ProcCall != "" {
		return c.ProcCall
	}
	return reportProcCall
}

func (c *Controller) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// StreamExport runs the full pipeline. It must be called from the HTTP
// handler goroutine directly (not a detached goroutine) because the
// post-flush failure path aborts the response by panicking with
// http.ErrAbortHandler, which net/http only honors from the handler's own
// goroutine.
func (c *Controller) StreamExport(ctx context.Context, db *sql.DB, w http.ResponseWriter, req Request) {
	var streamError atomic.Bool // exactly one terminal handler runs, ever
	var state atomic.Int32
	state.Store(int32(StateInit))

	fw := newFlushTrackingWriter(w)
	tracker := memory.NewTracker(c.MemorySampleEvery)
	filename := buildFilename(req.FilenamePrefix, c.now())

	state.Store(int32(StateHeadersSet))

	handle, err := source.Execute(ctx, db, c.procCall(), req.RowCount)
	if err != nil {
		if streamError.CompareAndSwap(false, true) {
			state.Store(int32(StateFailedEarly))
			log.Logger.WithError(err).Error("export: failed to start streaming query")
			httpjson.WriteError(fw, apperror.Wrap(apperror.KindDatabase, "failed to start export", err), c.IncludeStackTraces)
		}
		return
	}

	bsink := newBackpressureSink(fw, c.HighWaterMarkBytes)

	sink, err := xlsxsink.Open(bsink)
	if err != nil {
		handle.Cancel()
		if streamError.CompareAndSwap(false, true) {
			state.Store(int32(StateFailedEarly))
			log.Logger.WithError(err).Error("export: failed to initialize encoder")
			httpjson.WriteError(fw, apperror.Wrap(apperror.KindExport, "failed to initialize encoder", err), c.IncludeStackTraces)
		}
		return
	}

	headersCommitted := false

	commitHeaders := func() {
		if headersCommitted {
			return
		}
		fw.Header().Set("Content-Type", xlsxContentType)
		fw.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		headersCommitted = true
	}

	// failTerminal is the single code path every failure source funnels
	// through, so only one of them ever actually terminates the response.
	failTerminal := func(kind apperror.Kind, message string, cause error) {
		if !streamError.CompareAndSwap(false, true) {
			return
		}
		state.Store(int32(StateFailedLate))
		handle.Cancel()
		sink.Destroy()
		tracker.Take()

		if fw.HeadersFlushed() {
			log.Logger.WithError(cause).Warn("export: terminating stream abortively: " + message)
			panic(http.ErrAbortHandler) // bytes are already on the wire, no JSON body can follow
		}

		func() {
			defer func() {
				if r := recover(); r != nil { // best-effort emit, never a second terminal action
					log.Logger.Errorf("export: panic while emitting error body: %v", r)
				}
			}()
			httpjson.WriteError(fw, apperror.Wrap(kind, message, cause), c.IncludeStackTraces)
		}()
	}

	firstRow := true
	rowsEmitted := 0

rowLoop:
	for {
		select {
		case row, ok := <-handle.RowCh:
			if !ok {
				break rowLoop
			}
			if firstRow {
				commitHeaders()
				if err := sink.WriteHeader(source.ReportColumns, xlsxsink.DefaultHeaderStyle); err != nil {
					failTerminal(apperror.KindExport, "failed to write header row", err)
					return
				}
				state.Store(int32(StateStreaming))
				firstRow = false
			}

			if err := sink.AddRow(row.Values); err != nil {
				failTerminal(apperror.KindExport, "failed to write data row", err)
				return
			}
			rowsEmitted++
			tracker.MaybeSample()

			if bsink.OverHighWaterMark() {
				handle.Pause()
				if err := bsink.Drain(); err != nil {
					failTerminal(apperror.KindExport, "failed to drain response sink", err)
					return
				}
				handle.Resume()
			}

		case <-handle.DoneCh:
			break rowLoop

		case err := <-handle.ErrCh:
			failTerminal(apperror.KindDatabase, "export query failed mid-stream", err)
			return

		case <-ctx.Done():
			if !streamError.CompareAndSwap(false, true) {
				return
			}
			state.Store(int32(StateFailedLate))
			handle.Cancel() // release the source promptly so its goroutine exits
			sink.Destroy()
			tracker.Take()
			log.Logger.Info("export: client disconnected, export cancelled")
			return
		}
	}

	state.Store(int32(StateFinalizing))

	if firstRow {
		// rowCount is validated to be >= 1, but guard defensively: an
		// empty result set still yields a valid workbook with headers.
		commitHeaders()
		if err := sink.WriteHeader(source.ReportColumns, xlsxsink.DefaultHeaderStyle); err != nil {
			failTerminal(apperror.KindExport, "failed to write header row", err)
			return
		}
	}

	if err := sink.Finalize(); err != nil {
		failTerminal(apperror.KindExport, "failed to finalize workbook", err)
		return
	}
	if err := bsink.Drain(); err != nil {
		failTerminal(apperror.KindExport, "failed to flush final bytes", err)
		return
	}

	state.Store(int32(StateDone))
}

// BufferedExport runs the same source pipeline as StreamExport but
// accumulates the whole workbook in memory via xlsxsink.BufferedWorkbook
// and writes it to w in one call once the result set is fully drained. It
// is the non-streaming comparison path: memory use scales with result
// size, and a slow client applies no backpressure on the database scan,
// since nothing is written to w until the export is already complete. It
// must be called from the HTTP handler goroutine directly, same as
// StreamExport, for the same abortive-panic reason.
func (c *Controller) BufferedExport(ctx context.Context, db *sql.DB, w http.ResponseWriter, req Request) {
	var streamError atomic.Bool
	var state atomic.Int32
	state.Store(int32(StateInit))

	fw := newFlushTrackingWriter(w)
	tracker := memory.NewTracker(c.MemorySampleEvery)
	filename := buildFilename(req.FilenamePrefix, c.now())

	state.Store(int32(StateHeadersSet))

	handle, err := source.Execute(ctx, db, c.procCall(), req.RowCount)
	if err != nil {
		if streamError.CompareAndSwap(false, true) {
			state.Store(int32(StateFailedEarly))
			log.Logger.WithError(err).Error("export: failed to start streaming query")
			httpjson.WriteError(fw, apperror.Wrap(apperror.KindDatabase, "failed to start export", err), c.IncludeStackTraces)
		}
		return
	}

	workbook, err := xlsxsink.OpenBuffered()
	if err != nil {
		handle.Cancel()
		if streamError.CompareAndSwap(false, true) {
			state.Store(int32(StateFailedEarly))
			log.Logger.WithError(err).Error("export: failed to initialize encoder")
			httpjson.WriteError(fw, apperror.Wrap(apperror.KindExport, "failed to initialize encoder", err), c.IncludeStackTraces)
		}
		return
	}

	failTerminal := func(kind apperror.Kind, message string, cause error) {
		if !streamError.CompareAndSwap(false, true) {
			return
		}
		state.Store(int32(StateFailedLate))
		handle.Cancel()
		workbook.Destroy()
		tracker.Take()

		if fw.HeadersFlushed() {
			log.Logger.WithError(cause).Warn("export: terminating buffered export abortively: " + message)
			panic(http.ErrAbortHandler)
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Logger.Errorf("export: panic while emitting error body: %v", r)
				}
			}()
			httpjson.WriteError(fw, apperror.Wrap(kind, message, cause), c.IncludeStackTraces)
		}()
	}

	firstRow := true

bufferLoop:
	for {
		select {
		case row, ok := <-handle.RowCh:
			if !ok {
				break bufferLoop
			}
			if firstRow {
				if err := workbook.WriteHeader(source.ReportColumns, xlsxsink.DefaultHeaderStyle); err != nil {
					failTerminal(apperror.KindExport, "failed to write header row", err)
					return
				}
				state.Store(int32(StateStreaming))
				firstRow = false
			}
			if err := workbook.AddRow(row.Values); err != nil {
				failTerminal(apperror.KindExport, "failed to write data row", err)
				return
			}
			tracker.MaybeSample()

		case <-handle.DoneCh:
			break bufferLoop

		case err := <-handle.ErrCh:
			failTerminal(apperror.KindDatabase, "export query failed mid-stream", err)
			return

		case <-ctx.Done():
			if !streamError.CompareAndSwap(false, true) {
				return
			}
			state.Store(int32(StateFailedLate))
			handle.Cancel()
			workbook.Destroy()
			tracker.Take()
			log.Logger.Info("export: client disconnected, export cancelled")
			return
		}
	}

	state.Store(int32(StateFinalizing))

	if firstRow {
		if err := workbook.WriteHeader(source.ReportColumns, xlsxsink.DefaultHeaderStyle); err != nil {
			failTerminal(apperror.KindExport, "failed to write header row", err)
			return
		}
	}

	fw.Header().Set("Content-Type", xlsxContentType)
	fw.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := workbook.Write(fw); err != nil {
		failTerminal(apperror.KindExport, "failed to write workbook", err)
		return
	}

	state.Store(int32(StateDone))
}
