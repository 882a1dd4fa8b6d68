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
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// columnName converts a 1-indexed column number to its spreadsheet letter
// name (1 -> A, 26 -> Z, 27 -> AA).
func columnName(n int) string {
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('A' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

func cellRef(col, row int) string {
	return fmt.Sprintf("%s%d", columnName(col), row)
}

// writeCell writes one <c> element for v, chosen by Go type the same way
// database/sql hands back driver values: numeric kinds as plain <v>,
// booleans as t="b", everything else as an inline string. styleAttr is
// either empty or a pre-built ` s="N"` attribute.
func writeCell(w io.Writer, ref string, v any, styleAttr string) error {
	switch val := v.(type) {
	case nil:
		_, err := fmt.Fprintf(w, `<c r="%s"%s/>`, ref, styleAttr)
		return err
	case bool:
		n := 0
		if val {
			n = 1
		}
		_, err := fmt.Fprintf(w, `<c r="%s"%s t="b"><v>%d</v></c>`, ref, styleAttr, n)
		return err
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		_, err := fmt.Fprintf(w, `<c r="%s"%s><v>%v</v></c>`, ref, styleAttr, val)
		return err
	case float32, float64:
		_, err := fmt.Fprintf(w, `<c r="%s"%s><v>%v</v></c>`, ref, styleAttr, val)
		return err
	case time.Time:
		return writeInlineString(w, ref, styleAttr, val.Format(time.RFC3339))
	case []byte:
		return writeInlineString(w, ref, styleAttr, string(val))
	case string:
		return writeInlineString(w, ref, styleAttr, val)
	default:
		return writeInlineString(w, ref, styleAttr, fmt.Sprintf("%v", val))
	}
}

func writeInlineString(w io.Writer, ref, styleAttr, s string) error {
	if _, err := fmt.Fprintf(w, `<c r="%s"%s t="inlineStr"><is><t xml:space="preserve">`, ref, styleAttr); err != nil {
		return err
	}
	if err := xml.EscapeText(w, []byte(s)); err != nil {
		return err
	}
	_, err := io.WriteString(w, `</t></is></c>`)
	return err
}
