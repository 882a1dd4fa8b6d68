/*
 * Copyright 2026 Clidey, Inc.
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

package log

import "testing"

func TestIsLevelEnabled(t *testing.T) {
	orig := logLevel
	t.Cleanup(func() { logLevel = orig })

	cases := []struct {
		configured string
		level      string
		want       bool
	}{
		{"debug", "debug", true},
		{"debug", "error", true},
		{"info", "debug", false},
		{"info", "info", true},
		{"warning", "info", false},
		{"warning", "warning", true},
		{"error", "warning", false},
		{"error", "error", true},
		{"none", "error", false},
		{"garbage", "info", true},
	}

	for _, tc := range cases {
		logLevel = tc.configured
		if got := isLevelEnabled(tc.level); got != tc.want {
			t.Errorf("isLevelEnabled(%q) with logLevel=%q = %v, want %v", tc.level, tc.configured, got, tc.want)
		}
	}
}
