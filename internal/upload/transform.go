package upload

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ── Record transformation ───────────────────────────────────
// Coerces validated records into canonical typed values. Only invoked
// on records that passed validation with zero errors, which is why the
// coercions here can be lenient: the validator already decided
// acceptance.

// Transformer coerces raw records to one schema.
type Transformer struct {
	schema *Schema
}

// NewTransformer returns a Transformer bound to schema.
func NewTransformer(schema *Schema) *Transformer {
	return &Transformer{schema: schema}
}

// Transform returns the canonical form of rec: declared fields coerced
// to their schema types plus the createdAt/updatedAt system stamps.
// Pure — the input record is not mutated, and fields outside the
// schema are dropped. Required fields with missing values receive a
// type-appropriate zero value; optional missing fields are omitted.
func (t *Transformer) Transform(rec Record) Record {
	out := make(map[string]any, len(t.schema.Fields)+2)

	for _, f := range t.schema.Fields {
		value, present := rec.Data[f.Name]
		if !present || isEmptyValue(value) {
			if f.Required {
				out[f.Name] = zeroValue(f.Type)
			}
			continue
		}
		out[f.Name] = coerce(value, f.Type)
	}

	now := time.Now()
	if v, ok := rec.Data["createdAt"]; ok && !isEmptyValue(v) {
		out["createdAt"] = coerceDate(v)
	} else {
		out["createdAt"] = now
	}
	out["updatedAt"] = now

	return Record{Data: out}
}

// TransformAll maps Transform over a batch.
func (t *Transformer) TransformAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = t.Transform(rec)
	}
	return out
}

// zeroValue is substituted for a required field with no value.
func zeroValue(ft FieldType) any {
	switch ft {
	case FieldNumber:
		return float64(0)
	case FieldArray:
		return []any{}
	case FieldBoolean:
		return false
	case FieldDate:
		return time.Now()
	case FieldObject:
		return map[string]any{}
	default:
		return ""
	}
}

func coerce(v any, ft FieldType) any {
	switch ft {
	case FieldString:
		return coerceString(v)
	case FieldNumber:
		return toFloat(v)
	case FieldArray:
		return coerceArray(v)
	case FieldDate:
		return coerceDate(v)
	case FieldBoolean:
		return toBool(v)
	default:
		return v
	}
}

func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// toFloat converts numeric values and numeric strings; anything else
// becomes 0. Validation has already rejected genuine mismatches.
func toFloat(v any) float64 {
	f, ok := toFiniteFloat(v)
	if !ok {
		return 0
	}
	return f
}

// coerceArray keeps literal arrays, JSON-parses array strings, falls
// back to comma-split-and-trim when the string is not JSON, and wraps
// any other scalar into a single-element array.
func coerceArray(v any) []any {
	switch a := v.(type) {
	case []any:
		return a
	case string:
		var arr []any
		if err := json.Unmarshal([]byte(a), &arr); err == nil {
			return arr
		}
		parts := strings.Split(a, ",")
		arr = make([]any, len(parts))
		for i, p := range parts {
			arr[i] = strings.TrimSpace(p)
		}
		return arr
	default:
		return []any{v}
	}
}

// coerceDate keeps time values, treats numbers as epoch milliseconds,
// and parses strings under the known layouts. An unparseable value
// (unreachable after validation) falls back to the zero time rather
// than inventing a timestamp.
func coerceDate(v any) time.Time {
	switch d := v.(type) {
	case time.Time:
		return d
	case float64:
		return time.UnixMilli(int64(d))
	case float32:
		return time.UnixMilli(int64(d))
	case int:
		return time.UnixMilli(int64(d))
	case int32:
		return time.UnixMilli(int64(d))
	case int64:
		return time.UnixMilli(d)
	case string:
		if t, ok := parseDateString(d); ok {
			return t
		}
	}
	return time.Time{}
}

// toBool parses the truthy set {true, 1, yes} from textual sources;
// numbers are truthy when non-zero.
func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "1":
			return true
		}
		return false
	case float64:
		return b != 0
	case int:
		return b != 0
	case int64:
		return b != 0
	default:
		return false
	}
}
