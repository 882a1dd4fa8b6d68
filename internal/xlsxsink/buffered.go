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

package xlsxsink

import (
	"fmt"
	"io"
	"sync"

	"github.com/xuri/excelize/v2"
)

// BufferedWorkbook is the non-streaming counterpart to Sink: it builds the
// entire workbook in memory with excelize's ordinary cell API
// (SetSheetRow/SetCellStyle, no NewStreamWriter) and writes it out in a
// single Write call. It exists as the documented comparison path against
// Sink - same output shape, same header styling, no incremental delivery
// and so no backpressure against a slow client; the whole workbook sits in
// process memory until Write returns.
type BufferedWorkbook struct {
	mu sync.Mutex

	file       *excelize.File
	headerXfID int
	currentRow int
	numCols    int
	destroyed  bool
}

// OpenBuffered creates a new in-memory workbook with a single sheet named
// to match Sink's worksheet name, so the two paths are interchangeable
// from a client's perspective.
func OpenBuffered() (*BufferedWorkbook, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsxsink: create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsxsink: drop default sheet: %w", err)
	}
	return &BufferedWorkbook{file: f, currentRow: 1}, nil
}

// WriteHeader writes the header row and records its cell style for reuse.
func (b *BufferedWorkbook) WriteHeader(columns []string, style HeaderStyle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrSinkClosed
	}

	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	cell, _ := excelize.CoordinatesToCellName(1, b.currentRow)
	if err := b.file.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("xlsxsink: write header row: %w", err)
	}

	if style.Bold || style.FillHex != "" {
		font := &excelize.Font{Bold: style.Bold}
		styleOpts := &excelize.Style{Font: font}
		if style.FillHex != "" {
			styleOpts.Fill = excelize.Fill{Type: "pattern", Color: []string{style.FillHex}, Pattern: 1}
		}
		xfID, err := b.file.NewStyle(styleOpts)
		if err != nil {
			return fmt.Errorf("xlsxsink: create header style: %w", err)
		}
		b.headerXfID = xfID
		last, _ := excelize.CoordinatesToCellName(len(columns), b.currentRow)
		if err := b.file.SetCellStyle(sheetName, cell, last, xfID); err != nil {
			return fmt.Errorf("xlsxsink: apply header style: %w", err)
		}
	}

	b.numCols = len(columns)
	b.currentRow++
	return nil
}

// AddRow appends one data row to the in-memory sheet. No byte reaches any
// writer until Write is called.
func (b *BufferedWorkbook) AddRow(values []any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrSinkClosed
	}
	cell, _ := excelize.CoordinatesToCellName(1, b.currentRow)
	if err := b.file.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("xlsxsink: write data row: %w", err)
	}
	b.currentRow++
	return nil
}

// Write serializes the complete workbook to w in one call. This is the
// only point at which any byte of the export reaches w.
func (b *BufferedWorkbook) Write(w io.Writer) error {
	b.mu.Lock()
	file := b.file
	destroyed := b.destroyed
	b.mu.Unlock()
	if destroyed {
		return ErrSinkClosed
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("xlsxsink: write workbook: %w", err)
	}
	return nil
}

// Destroy releases the in-memory workbook without writing it.
func (b *BufferedWorkbook) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.file.Close()
}
