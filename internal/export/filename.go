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
	"regexp"
	"time"
)

const defaultFilenamePrefix = "report"

var validPrefixChars = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)

var validFilenamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}-\d{4}-\d{2}-\d{2}-\d{6}\.xlsx$`)

// sanitizeFilenamePrefix returns prefix unchanged if it already matches the
// allowed character class, otherwise falls back to the default. It never
// errors - an invalid prefix degrades to the default rather than failing
// the export.
func sanitizeFilenamePrefix(prefix string) string {
	if validPrefixChars.MatchString(prefix) {
		return prefix
	}
	return defaultFilenamePrefix
}

// buildFilename produces "<prefix>-YYYY-MM-DD-HHMMSS.xlsx" using the
// current UTC time.
func buildFilename(prefix string, now time.Time) string {
	prefix = sanitizeFilenamePrefix(prefix)
	return prefix + "-" + now.UTC().Format("2006-01-02-150405") + ".xlsx"
}
