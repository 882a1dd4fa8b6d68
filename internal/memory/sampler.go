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

// Package memory tracks peak process memory usage for observability. It
// never participates in correctness decisions - sampling is a side effect
// the export pipeline performs periodically, not a gate on progress.
package memory

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Sample is a single point-in-time reading of process memory, tagged with
// an ID so individual samples can be correlated in log output independent
// of arrival order.
type Sample struct {
	ID        string
	RSS       uint64
	HeapUsed  uint64
	HeapTotal uint64
	External  uint64
}

// Tracker records the peak Sample observed across repeated calls to Take.
// Safe for concurrent use; one Tracker is created per export.
type Tracker struct {
	mu   sync.Mutex
	peak Sample

	rowsSinceSample uint64
	interval        uint64
}

// NewTracker creates a Tracker that samples every interval rows when driven
// through MaybeSample. interval <= 0 falls back to 5000, matching the
// source system's hot-path sampling cadence.
func NewTracker(interval uint64) *Tracker {
	if interval == 0 {
		interval = 5000
	}
	return &Tracker{interval: interval}
}

// Take captures a fresh Sample and folds it into the tracked peak.
func (t *Tracker) Take() Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sample := Sample{
		ID:        uuid.NewString(),
		RSS:       ms.Sys,
		HeapUsed:  ms.HeapAlloc,
		HeapTotal: ms.HeapSys,
		External:  ms.StackSys,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if sample.RSS > t.peak.RSS {
		t.peak = sample
	}
	return sample
}

// MaybeSample is called once per row written. It is non-blocking except for
// the occasional row where the sampling interval elapses and a full Take
// runs.
func (t *Tracker) MaybeSample() {
	n := atomic.AddUint64(&t.rowsSinceSample, 1)
	if n%t.interval == 0 {
		t.Take()
	}
}

// Peak returns the highest Sample observed so far.
func (t *Tracker) Peak() Sample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peak
}
