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
	"bufio"
	"net/http"
	"sync/atomic"
)

// flushTrackingWriter wraps the response writer the controller owns for the
// duration of one export. It maintains its own "has anything reached the
// wire" sentinel rather than relying on a runtime-specific flushed flag,
// exactly as the header-flushed observability note requires.
type flushTrackingWriter struct {
	http.ResponseWriter
	written atomic.Bool
}

func newFlushTrackingWriter(w http.ResponseWriter) *flushTrackingWriter {
	return &flushTrackingWriter{ResponseWriter: w}
}

func (t *flushTrackingWriter) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	if n > 0 {
		t.written.Store(true)
	}
	return n, err
}

func (t *flushTrackingWriter) HeadersFlushed() bool {
	return t.written.Load()
}

// backpressureSink is the byte-level high-water-mark sink the per-row loop
// inspects after every row write. It is a thin bufio.Writer: buffered bytes
// above the mark are drained by Flush, which performs the real underlying
// Write - if the client is slow, that call blocks at the transport layer,
// which is where the actual backpressure comes from. Pause/Resume on the
// row source are bookkeeping that make the pause observable to the rest of
// the pipeline and to tests; the transport block is what actually holds
// memory bounded.
type backpressureSink struct {
	bw  *bufio.Writer
	hwm int
}

func newBackpressureSink(w *flushTrackingWriter, hwmBytes int) *backpressureSink {
	if hwmBytes <= 0 {
		hwmBytes = 64 * 1024
	}
	return &backpressureSink{bw: bufio.NewWriterSize(w, hwmBytes), hwm: hwmBytes}
}

func (s *backpressureSink) Write(p []byte) (int, error) {
	return s.bw.Write(p)
}

// OverHighWaterMark reports whether buffered, unflushed bytes have reached
// the configured mark.
func (s *backpressureSink) OverHighWaterMark() bool {
	return s.bw.Buffered() >= s.hwm
}

// Drain flushes buffered bytes to the underlying writer. Once Drain
// returns, buffered bytes are back near zero and the source can resume.
func (s *backpressureSink) Drain() error {
	if err := s.bw.Flush(); err != nil {
		return err
	}
	return nil
}
