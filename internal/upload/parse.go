package upload

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// ── File parsing ────────────────────────────────────────────
// Turns raw CSV/JSON text into an ordered sequence of loosely-typed
// records. No validation happens here — only shape normalization.

// ParseFile dispatches on the file extension (case-insensitive) and
// returns the parsed records. Unknown extensions fail with
// UnsupportedFormatError.
func ParseFile(fileName string, data []byte) ([]Record, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return ParseCSV(string(data))
	case ".json":
		return ParseJSON(data)
	default:
		return nil, &UnsupportedFormatError{FileName: fileName, Ext: ext}
	}
}

// ParseCSV parses comma-delimited text. The first non-blank row is the
// header; header cells are trimmed, stripped of quote characters, and
// lower-cased. Data rows are zipped positionally against the headers
// and every value stays a string — coercion is the transformer's job.
// Quoted fields (including embedded commas) are handled by the reader;
// rows reduced to a single empty cell are skipped as blank lines.
func ParseCSV(text string) ([]Record, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // tolerate ragged rows

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := normalizeHeaders(rows[0])

	var records []Record
	for _, row := range rows[1:] {
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		data := make(map[string]any, len(headers))
		for j, h := range headers {
			if h == "" {
				continue
			}
			if j < len(row) {
				data[h] = row[j]
			}
		}
		records = append(records, Record{Data: data})
	}
	return records, nil
}

// normalizeHeaders lower-cases header cells and strips quotes, spaces,
// and a UTF-8 BOM on the first cell.
func normalizeHeaders(cells []string) []string {
	headers := make([]string, len(cells))
	for i, h := range cells {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		h = strings.ReplaceAll(h, `"`, "")
		h = strings.ReplaceAll(h, `'`, "")
		headers[i] = strings.ToLower(h)
	}
	return headers
}

// ParseJSON parses the full text as one JSON value. An array yields
// one record per element (every element must be an object); a single
// object yields a one-record sequence. Malformed JSON is a format
// error, never a partial parse.
func ParseJSON(data []byte) ([]Record, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	switch v := raw.(type) {
	case []any:
		records := make([]Record, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("parse json: element %d is %T, expected an object", i, item)
			}
			records = append(records, Record{Data: obj})
		}
		return records, nil
	case map[string]any:
		return []Record{{Data: v}}, nil
	default:
		return nil, fmt.Errorf("parse json: top-level value is %T, expected an object or array of objects", raw)
	}
}
