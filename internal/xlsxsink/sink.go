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

// Package xlsxsink writes the XLSX (OOXML) workbook the export pipeline
// returns to clients. Sink is the true streaming encoder: every row it is
// given is written straight into the worksheet entry of a zip stream wound
// around the caller's io.Writer, so the bytes a client receives are the
// exact bytes this package produces, in the order rows arrive - no later
// bulk write, no staging buffer of the whole workbook.
//
// excelize's own NewStreamWriter cannot do this: its Flush/File.Write pair
// assembles and hands over the complete zip archive in one call, no matter
// how the rows were added. That is fine for a one-shot, fully-buffered
// export (see BufferedWorkbook, which uses exactly that excelize path) but
// defeats a streaming HTTP response, so Sink instead builds the narrow
// slice of OOXML this pipeline needs directly on top of archive/zip, which
// streams to a non-seekable io.Writer using zip data descriptors.
package xlsxsink

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrSinkClosed is returned by AddRow/Finalize once the sink has already
// been finalized or destroyed - the encoder equivalent of writing to a
// closed socket.
var ErrSinkClosed = errors.New("xlsxsink: write after sink finalized or destroyed")

const sheetName = "Report"

// HeaderStyle describes the formatting applied to the header row. Matching
// the source system's bold, shaded header treatment is cosmetic, not
// load-bearing, so callers may override it.
type HeaderStyle struct {
	Bold    bool
	FillHex string
}

// DefaultHeaderStyle mirrors the header treatment used elsewhere in this
// codebase for exported tables.
var DefaultHeaderStyle = HeaderStyle{Bold: true, FillHex: "#E0E0E0"}

// Sink is a single-use streaming XLSX writer bound to one io.Writer. Zero
// value is not usable; use Open.
type Sink struct {
	mu sync.Mutex

	w      io.Writer
	zw     *zip.Writer
	sheetW io.Writer

	currentRow int
	started    bool
	destroyed  bool
	finalized  bool

	headerStyleAttr string
}

// Open binds a new Sink to w. No byte reaches w until WriteHeader is
// called, so a caller can still fail this step before anything has gone
// out over the wire.
func Open(w io.Writer) (*Sink, error) {
	if w == nil {
		return nil, fmt.Errorf("xlsxsink: nil writer")
	}
	return &Sink{w: w, currentRow: 1}, nil
}

// WriteHeader opens the zip stream, writes the small fixed workbook parts
// (content types, relationships, styles), and writes the header row. Must
// be called at most once, before any AddRow call.
func (s *Sink) WriteHeader(columns []string, style HeaderStyle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed || s.finalized {
		return ErrSinkClosed
	}
	if s.started {
		return fmt.Errorf("xlsxsink: header already written")
	}

	zw := zip.NewWriter(s.w)
	if err := writeStaticParts(zw, style); err != nil {
		return err
	}

	sheetW, err := zw.CreateHeader(&zip.FileHeader{Name: "xl/worksheets/sheet1.xml", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("xlsxsink: open worksheet entry: %w", err)
	}
	if _, err := io.WriteString(sheetW, sheetXMLOpenTag(len(columns))); err != nil {
		return fmt.Errorf("xlsxsink: write worksheet open tag: %w", err)
	}

	s.zw = zw
	s.sheetW = sheetW
	s.started = true
	if style.Bold || style.FillHex != "" {
		s.headerStyleAttr = ` s="1"`
	}

	headerValues := make([]any, len(columns))
	for i, c := range columns {
		headerValues[i] = c
	}
	if err := s.writeRowXML(s.currentRow, headerValues, s.headerStyleAttr); err != nil {
		return fmt.Errorf("xlsxsink: write header row: %w", err)
	}
	if err := zw.Flush(); err != nil {
		return fmt.Errorf("xlsxsink: flush header row: %w", err)
	}
	s.currentRow++
	return nil
}

// AddRow appends one data row, writing its XML straight into the open
// worksheet zip entry - these bytes reach the underlying writer as part of
// this call, not at Finalize.
func (s *Sink) AddRow(values []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed || s.finalized {
		return ErrSinkClosed
	}
	if !s.started {
		return fmt.Errorf("xlsxsink: AddRow called before WriteHeader")
	}

	if err := s.writeRowXML(s.currentRow, values, ""); err != nil {
		return fmt.Errorf("xlsxsink: write data row: %w", err)
	}
	if err := s.zw.Flush(); err != nil {
		return fmt.Errorf("xlsxsink: flush data row: %w", err)
	}
	s.currentRow++
	return nil
}

// Finalize closes the worksheet XML and the zip stream, which writes the
// zip central directory - the one unavoidable trailing write, small and
// fixed-size regardless of row count. Finalize may only be called once.
func (s *Sink) Finalize() error {
	s.mu.Lock()
	if s.destroyed || s.finalized {
		s.mu.Unlock()
		return ErrSinkClosed
	}
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("xlsxsink: finalize called before WriteHeader")
	}
	s.finalized = true
	zw := s.zw
	sheetW := s.sheetW
	s.mu.Unlock()

	if _, err := io.WriteString(sheetW, `</sheetData></worksheet>`); err != nil {
		return fmt.Errorf("xlsxsink: close worksheet: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("xlsxsink: close workbook: %w", err)
	}
	return nil
}

// Destroy marks the sink unusable without attempting any further write.
// Used on the abort path (FAILED_LATE, client disconnect) where the
// controller must not write to the response again - closing the zip
// writer here would itself be such a write. Safe to call multiple times
// and safe to call after Finalize.
func (s *Sink) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

func (s *Sink) writeRowXML(rowIndex int, values []any, styleAttr string) error {
	if _, err := fmt.Fprintf(s.sheetW, `<row r="%d">`, rowIndex); err != nil {
		return err
	}
	for i, v := range values {
		if err := writeCell(s.sheetW, cellRef(i+1, rowIndex), v, styleAttr); err != nil {
			return err
		}
	}
	_, err := io.WriteString(s.sheetW, `</row>`)
	return err
}
