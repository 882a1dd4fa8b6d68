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
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWriteHeaderThenRowsThenFinalize(t *testing.T) {
	var buf bytes.Buffer
	s, err := Open(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.WriteHeader([]string{"IntColumn", "VarcharColumn"}, DefaultHeaderStyle); err != nil {
		t.Fatalf("write header: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.AddRow([]any{i, "v"}); err != nil {
			t.Fatalf("add row %d: %v", i, err)
		}
	}

	if err := s.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a non-empty workbook")
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows (header + 5 data), got %d", len(rows))
	}
}

// TestAddRowWritesThroughBeforeFinalize is the regression test for the
// defect where rows only reached the underlying writer in one bulk write
// at Finalize: here every AddRow must already have pushed bytes into buf
// well before Finalize is ever called, since Finalize only appends the
// closing tags and the zip central directory.
func TestAddRowWritesThroughBeforeFinalize(t *testing.T) {
	var buf bytes.Buffer
	s, err := Open(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if err := s.WriteHeader([]string{"IntColumn"}, DefaultHeaderStyle); err != nil {
		t.Fatalf("write header: %v", err)
	}
	afterHeader := buf.Len()
	if afterHeader == 0 {
		t.Fatal("expected header write to already have reached the underlying writer")
	}

	for i := 0; i < 50; i++ {
		if err := s.AddRow([]any{i}); err != nil {
			t.Fatalf("add row %d: %v", i, err)
		}
	}
	beforeFinalize := buf.Len()
	if beforeFinalize <= afterHeader {
		t.Fatalf("expected row writes to grow the underlying buffer before Finalize: after header %d, before finalize %d", afterHeader, beforeFinalize)
	}

	if err := s.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if buf.Len() <= beforeFinalize {
		t.Fatal("expected Finalize to still append the closing tags and central directory")
	}
}

func TestWriteAfterFinalizeFails(t *testing.T) {
	var buf bytes.Buffer
	s, _ := Open(&buf)
	_ = s.WriteHeader([]string{"a"}, DefaultHeaderStyle)

	if err := s.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if err := s.AddRow([]any{1}); !errors.Is(err, ErrSinkClosed) {
		t.Fatalf("expected ErrSinkClosed after finalize, got %v", err)
	}
}

func TestDestroyIsIdempotentAndBlocksFurtherWrites(t *testing.T) {
	var buf bytes.Buffer
	s, _ := Open(&buf)
	s.Destroy()
	s.Destroy() // must not panic

	if err := s.AddRow([]any{1}); !errors.Is(err, ErrSinkClosed) {
		t.Fatalf("expected ErrSinkClosed after destroy, got %v", err)
	}
}
