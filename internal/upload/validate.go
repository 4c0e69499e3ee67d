package upload

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ── Record validation ───────────────────────────────────────
// Checks every record against the inferred schema and collects errors;
// it never writes and never stops early at the batch level, so the
// caller gets the complete error report in one pass. Validation is the
// gate that decides acceptance — the transformer's coercions are more
// lenient on purpose, and the two passes must stay separate.

// Validator validates records against one schema. Per-field metadata
// (compiled patterns, allowed-value sets) is precomputed once so the
// per-record path stays cheap.
type Validator struct {
	schema *Schema
	meta   []fieldMeta
	known  map[string]bool
}

type fieldMeta struct {
	name    string
	fs      FieldSchema
	pattern *regexp.Regexp
	allowed map[string]bool
}

// booleanStrings are the textual forms accepted for boolean fields,
// compared case-insensitively.
var booleanStrings = map[string]bool{
	"true": true, "false": true, "1": true, "0": true, "yes": true, "no": true,
}

// NewValidator precompiles per-field metadata. It fails if a field's
// Pattern is not a valid regular expression.
func NewValidator(schema *Schema) (*Validator, error) {
	v := &Validator{
		schema: schema,
		meta:   make([]fieldMeta, 0, len(schema.Fields)),
		known:  make(map[string]bool, len(schema.Fields)),
	}
	for _, f := range schema.Fields {
		m := fieldMeta{name: f.Name, fs: f.FieldSchema}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return nil, fmt.Errorf("field %q: compile pattern: %w", f.Name, err)
			}
			m.pattern = re
		}
		if len(f.AllowedValues) > 0 {
			m.allowed = make(map[string]bool, len(f.AllowedValues))
			for _, av := range f.AllowedValues {
				m.allowed[av] = true
			}
		}
		v.meta = append(v.meta, m)
		v.known[f.Name] = true
	}
	return v, nil
}

// ValidateAll validates every record and returns the full error list
// across the batch.
func (v *Validator) ValidateAll(records []Record) []ValidationError {
	var all []ValidationError
	for i, rec := range records {
		all = append(all, v.Validate(rec, i)...)
	}
	return all
}

// Validate checks one record against the schema. Pure: no side
// effects, no store access. index is carried into the errors so the
// caller can point back at the offending row.
func (v *Validator) Validate(rec Record, index int) []ValidationError {
	var errs []ValidationError

	for _, m := range v.meta {
		value, present := rec.Data[m.name]
		empty := !present || isEmptyValue(value)

		if empty {
			if m.fs.Required {
				errs = append(errs, ValidationError{
					RecordIndex:  index,
					Field:        m.name,
					Message:      "required field is missing or empty",
					Value:        value,
					ExpectedType: string(m.fs.Type),
				})
			}
			// Optional and empty: skipped entirely.
			continue
		}

		if msg := checkType(value, m.fs.Type); msg != "" {
			errs = append(errs, ValidationError{
				RecordIndex:  index,
				Field:        m.name,
				Message:      msg,
				Value:        value,
				ExpectedType: string(m.fs.Type),
			})
			continue
		}

		errs = append(errs, v.checkConstraints(m, value, index)...)
	}

	// The schema is a closed contract: any non-empty field the sample
	// never exhibited is rejected rather than silently written. The
	// transformer-owned stamps are always admitted.
	extra := make([]string, 0)
	for k, val := range rec.Data {
		if !v.known[k] && !isSystemField(k) && !isEmptyValue(val) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		errs = append(errs, ValidationError{
			RecordIndex: index,
			Field:       k,
			Message:     "unknown field: not present in the collection schema",
			Value:       rec.Data[k],
		})
	}

	return errs
}

// checkType reports "" when value conforms to ft, else a message.
func checkType(value any, ft FieldType) string {
	switch ft {
	case FieldString:
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("expected a string, got %T", value)
		}
	case FieldNumber:
		if _, ok := toFiniteFloat(value); !ok {
			return fmt.Sprintf("expected a number, got %v", value)
		}
	case FieldArray:
		if !isArrayValue(value) {
			return fmt.Sprintf("expected an array or JSON array string, got %v", value)
		}
	case FieldDate:
		if !isDateValue(value) {
			return fmt.Sprintf("expected a date, got %v", value)
		}
	case FieldBoolean:
		if !isBooleanValue(value) {
			return fmt.Sprintf("expected a boolean, got %v", value)
		}
	case FieldObject:
		// Objects are the catch-all shape: any non-empty value passes.
	}
	return ""
}

// checkConstraints applies the optional FieldSchema constraints. Only
// called after the type check passed.
func (v *Validator) checkConstraints(m fieldMeta, value any, index int) []ValidationError {
	var errs []ValidationError
	fail := func(field, msg string, val any) {
		errs = append(errs, ValidationError{RecordIndex: index, Field: field, Message: msg, Value: val})
	}

	switch m.fs.Type {
	case FieldString:
		s := value.(string)
		n := utf8.RuneCountInString(s)
		if m.fs.MinLength != nil && n < *m.fs.MinLength {
			fail(m.name, fmt.Sprintf("must be at least %d characters, got %d", *m.fs.MinLength, n), value)
		}
		if m.fs.MaxLength != nil && n > *m.fs.MaxLength {
			fail(m.name, fmt.Sprintf("must be at most %d characters, got %d", *m.fs.MaxLength, n), value)
		}
		if m.pattern != nil && !m.pattern.MatchString(s) {
			fail(m.name, fmt.Sprintf("does not match pattern %s", m.fs.Pattern), value)
		}
		if m.allowed != nil && !m.allowed[s] {
			fail(m.name, fmt.Sprintf("must be one of: %s", strings.Join(m.fs.AllowedValues, ", ")), value)
		}

	case FieldNumber:
		f, _ := toFiniteFloat(value)
		if m.fs.MinValue != nil && f < *m.fs.MinValue {
			fail(m.name, fmt.Sprintf("must be at least %v", *m.fs.MinValue), value)
		}
		if m.fs.MaxValue != nil && f > *m.fs.MaxValue {
			fail(m.name, fmt.Sprintf("must be at most %v", *m.fs.MaxValue), value)
		}

	case FieldArray:
		if m.fs.ArrayElementType == "" {
			break
		}
		for i, el := range asArray(value) {
			if msg := checkType(el, m.fs.ArrayElementType); msg != "" {
				fail(fmt.Sprintf("%s[%d]", m.name, i), msg, el)
			}
		}
	}

	return errs
}

// ── Shape checks shared with the transformer ────────────────

// toFiniteFloat accepts literal numbers and strings that parse to a
// finite float. NaN and infinities are rejected.
func toFiniteFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// isArrayValue accepts literal arrays and strings holding a JSON array.
func isArrayValue(v any) bool {
	switch a := v.(type) {
	case []any:
		return true
	case string:
		var arr []any
		return json.Unmarshal([]byte(a), &arr) == nil
	default:
		return false
	}
}

// asArray returns the elements behind an array-shaped value. Callers
// must have passed isArrayValue first.
func asArray(v any) []any {
	switch a := v.(type) {
	case []any:
		return a
	case string:
		var arr []any
		if json.Unmarshal([]byte(a), &arr) == nil {
			return arr
		}
	}
	return nil
}

// isDateValue accepts time values, epoch numbers, and strings that
// parse under one of the known layouts.
func isDateValue(v any) bool {
	switch d := v.(type) {
	case time.Time:
		return true
	case float64, float32, int, int32, int64:
		return true
	case string:
		_, ok := parseDateString(d)
		return ok
	default:
		return false
	}
}

// dateLayouts are tried in order when a date arrives as a string.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	time.RFC1123,
	time.RFC822,
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isBooleanValue accepts literal bools and the textual forms in
// booleanStrings, case-insensitively.
func isBooleanValue(v any) bool {
	switch b := v.(type) {
	case bool:
		return true
	case string:
		return booleanStrings[strings.ToLower(strings.TrimSpace(b))]
	default:
		return false
	}
}
