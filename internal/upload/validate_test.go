package upload_test

import (
	"strings"
	"testing"
	"time"

	"docbase/internal/upload"
)

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

func mustValidator(t *testing.T, schema *upload.Schema) *upload.Validator {
	t.Helper()
	v, err := upload.NewValidator(schema)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func rec(data map[string]any) upload.Record { return upload.Record{Data: data} }

func TestValidator_RequiredField(t *testing.T) {
	schema := &upload.Schema{Fields: []upload.Field{
		{Name: "name", FieldSchema: upload.FieldSchema{
			Type: upload.FieldString, Required: true, MinLength: intp(3),
		}},
	}}
	v := mustValidator(t, schema)

	for _, data := range []map[string]any{
		{},                 // absent
		{"name": ""},       // empty string
		{"name": nil},      // explicit null
	} {
		errs := v.Validate(rec(data), 0)
		if len(errs) != 1 {
			t.Fatalf("data %v: expected exactly 1 error, got %v", data, errs)
		}
		e := errs[0]
		if e.Field != "name" || !strings.Contains(e.Message, "required") {
			t.Errorf("data %v: unexpected error %+v", data, e)
		}
		if e.ExpectedType != "string" {
			t.Errorf("data %v: expected type hint 'string', got %q", data, e.ExpectedType)
		}
	}
}

func TestValidator_OptionalEmptySkipped(t *testing.T) {
	schema := &upload.Schema{Fields: []upload.Field{
		{Name: "note", FieldSchema: upload.FieldSchema{
			Type: upload.FieldString, Required: false, MinLength: intp(10),
		}},
	}}
	v := mustValidator(t, schema)

	// Empty optional fields skip the type and constraint checks.
	if errs := v.Validate(rec(map[string]any{"note": ""}), 0); len(errs) != 0 {
		t.Errorf("expected empty optional field to pass, got %v", errs)
	}
	if errs := v.Validate(rec(map[string]any{}), 0); len(errs) != 0 {
		t.Errorf("expected absent optional field to pass, got %v", errs)
	}
	// A present value is still checked in full.
	if errs := v.Validate(rec(map[string]any{"note": "short"}), 0); len(errs) != 1 {
		t.Errorf("expected minLength violation for present value, got %v", errs)
	}
}

func TestValidator_TypeChecks(t *testing.T) {
	tests := []struct {
		name  string
		typ   upload.FieldType
		value any
		ok    bool
	}{
		{"string literal", upload.FieldString, "hello", true},
		{"string rejects number", upload.FieldString, float64(3), false},

		{"number literal", upload.FieldNumber, float64(3.5), true},
		{"number from string", upload.FieldNumber, "30", true},
		{"number from padded string", upload.FieldNumber, " 30 ", true},
		{"number rejects words", upload.FieldNumber, "thirty", false},
		{"number rejects NaN string", upload.FieldNumber, "NaN", false},
		{"number rejects overflow", upload.FieldNumber, "1e999", false},
		{"number rejects bool", upload.FieldNumber, true, false},

		{"array literal", upload.FieldArray, []any{"a"}, true},
		{"array from JSON string", upload.FieldArray, `["a","b"]`, true},
		{"array rejects csv-ish string", upload.FieldArray, "a,b", false},
		{"array rejects scalar", upload.FieldArray, float64(1), false},

		{"date from time", upload.FieldDate, time.Now(), true},
		{"date from epoch number", upload.FieldDate, float64(1700000000000), true},
		{"date from ISO string", upload.FieldDate, "2024-01-02", true},
		{"date from RFC3339 string", upload.FieldDate, "2024-01-02T15:04:05Z", true},
		{"date from slash string", upload.FieldDate, "2024/01/02", true},
		{"date rejects words", upload.FieldDate, "not a date", false},
		{"date rejects bool", upload.FieldDate, true, false},

		{"boolean literal", upload.FieldBoolean, false, true},
		{"boolean from yes", upload.FieldBoolean, "YES", true},
		{"boolean from zero", upload.FieldBoolean, "0", true},
		{"boolean rejects maybe", upload.FieldBoolean, "maybe", false},
		{"boolean rejects number", upload.FieldBoolean, float64(2), false},

		{"object accepts map", upload.FieldObject, map[string]any{"a": 1}, true},
		{"object accepts anything", upload.FieldObject, "free-form", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := &upload.Schema{Fields: []upload.Field{
				{Name: "f", FieldSchema: upload.FieldSchema{Type: tt.typ, Required: true}},
			}}
			v := mustValidator(t, schema)

			errs := v.Validate(rec(map[string]any{"f": tt.value}), 0)
			if tt.ok && len(errs) != 0 {
				t.Errorf("expected %v to pass as %s, got %v", tt.value, tt.typ, errs)
			}
			if !tt.ok && len(errs) == 0 {
				t.Errorf("expected %v to fail as %s", tt.value, tt.typ)
			}
		})
	}
}

func TestValidator_StringConstraints(t *testing.T) {
	schema := &upload.Schema{Fields: []upload.Field{
		{Name: "code", FieldSchema: upload.FieldSchema{
			Type: upload.FieldString, Required: true,
			MinLength: intp(2), MaxLength: intp(4),
		}},
		{Name: "email", FieldSchema: upload.FieldSchema{
			Type: upload.FieldString, Required: true,
			Pattern: `^[^\s@]+@[^\s@]+\.[^\s@]+$`,
		}},
		{Name: "status", FieldSchema: upload.FieldSchema{
			Type: upload.FieldString, Required: true,
			AllowedValues: []string{"active", "paused"},
		}},
	}}
	v := mustValidator(t, schema)

	valid := map[string]any{"code": "ab", "email": "ana@example.com", "status": "active"}
	if errs := v.Validate(rec(valid), 0); len(errs) != 0 {
		t.Fatalf("expected valid record, got %v", errs)
	}

	// Lengths count runes, not bytes.
	multi := map[string]any{"code": "héllo", "email": "ana@example.com", "status": "paused"}
	errs := v.Validate(rec(multi), 0)
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "at most 4") {
		t.Errorf("expected maxLength violation counting 5 runes, got %v", errs)
	}

	bad := map[string]any{"code": "a", "email": "not-an-email", "status": "gone"}
	errs = v.Validate(rec(bad), 0)
	if len(errs) != 3 {
		t.Fatalf("expected 3 constraint errors, got %v", errs)
	}
	byField := map[string]string{}
	for _, e := range errs {
		byField[e.Field] = e.Message
	}
	if !strings.Contains(byField["code"], "at least 2") {
		t.Errorf("unexpected code error: %q", byField["code"])
	}
	if !strings.Contains(byField["email"], "pattern") {
		t.Errorf("unexpected email error: %q", byField["email"])
	}
	if !strings.Contains(byField["status"], "one of") {
		t.Errorf("unexpected status error: %q", byField["status"])
	}
}

func TestValidator_NumberConstraints(t *testing.T) {
	schema := &upload.Schema{Fields: []upload.Field{
		{Name: "age", FieldSchema: upload.FieldSchema{
			Type: upload.FieldNumber, Required: true,
			MinValue: floatp(0), MaxValue: floatp(120),
		}},
	}}
	v := mustValidator(t, schema)

	if errs := v.Validate(rec(map[string]any{"age": "30"}), 0); len(errs) != 0 {
		t.Errorf("expected string '30' within range, got %v", errs)
	}
	if errs := v.Validate(rec(map[string]any{"age": float64(-1)}), 0); len(errs) != 1 {
		t.Errorf("expected minValue violation, got %v", errs)
	}
	if errs := v.Validate(rec(map[string]any{"age": "130"}), 0); len(errs) != 1 {
		t.Errorf("expected maxValue violation on parsed string, got %v", errs)
	}
}

func TestValidator_ArrayElementType(t *testing.T) {
	schema := &upload.Schema{Fields: []upload.Field{
		{Name: "scores", FieldSchema: upload.FieldSchema{
			Type: upload.FieldArray, Required: true,
			ArrayElementType: upload.FieldNumber,
		}},
	}}
	v := mustValidator(t, schema)

	if errs := v.Validate(rec(map[string]any{"scores": []any{float64(1), "2"}}), 0); len(errs) != 0 {
		t.Errorf("expected numeric elements to pass, got %v", errs)
	}

	errs := v.Validate(rec(map[string]any{"scores": []any{float64(1), "two", "three"}}), 0)
	if len(errs) != 2 {
		t.Fatalf("expected 2 element errors, got %v", errs)
	}
	if errs[0].Field != "scores[1]" || errs[1].Field != "scores[2]" {
		t.Errorf("expected element-indexed field names, got %q and %q", errs[0].Field, errs[1].Field)
	}

	// Elements inside a JSON array string are checked too.
	errs = v.Validate(rec(map[string]any{"scores": `[1, "two"]`}), 0)
	if len(errs) != 1 || errs[0].Field != "scores[1]" {
		t.Errorf("expected one element error for JSON string array, got %v", errs)
	}
}

func TestValidator_UnknownFields(t *testing.T) {
	schema := &upload.Schema{Fields: []upload.Field{
		{Name: "name", FieldSchema: upload.FieldSchema{Type: upload.FieldString, Required: true}},
	}}
	v := mustValidator(t, schema)

	// Unknown but empty: tolerated, the transformer will drop it.
	errs := v.Validate(rec(map[string]any{"name": "Ana", "ghost": ""}), 0)
	if len(errs) != 0 {
		t.Errorf("expected empty unknown field to pass, got %v", errs)
	}

	// Unknown and non-empty: rejected, sorted by field name.
	errs = v.Validate(rec(map[string]any{"name": "Ana", "zz": "1", "aa": "2"}), 3)
	if len(errs) != 2 {
		t.Fatalf("expected 2 unknown-field errors, got %v", errs)
	}
	if errs[0].Field != "aa" || errs[1].Field != "zz" {
		t.Errorf("expected deterministic field order [aa zz], got [%s %s]", errs[0].Field, errs[1].Field)
	}
	for _, e := range errs {
		if !strings.Contains(e.Message, "unknown field") {
			t.Errorf("unexpected message %q", e.Message)
		}
		if e.RecordIndex != 3 {
			t.Errorf("expected record index 3, got %d", e.RecordIndex)
		}
	}
}

func TestValidator_SystemStampsAreNotUnknown(t *testing.T) {
	schema := &upload.Schema{Fields: []upload.Field{
		{Name: "name", FieldSchema: upload.FieldSchema{Type: upload.FieldString, Required: true}},
	}}
	v := mustValidator(t, schema)

	// Records re-uploaded from an export carry the stamps; the closed
	// schema still admits them.
	errs := v.Validate(rec(map[string]any{
		"name":      "Ana",
		"createdAt": "2024-01-02T10:00:00Z",
		"updatedAt": time.Now(),
	}), 0)
	if len(errs) != 0 {
		t.Errorf("expected stamps to pass the unknown-field check, got %v", errs)
	}
}

func TestValidator_ValidateAllIndices(t *testing.T) {
	schema := &upload.Schema{Fields: []upload.Field{
		{Name: "age", FieldSchema: upload.FieldSchema{Type: upload.FieldNumber, Required: true}},
	}}
	v := mustValidator(t, schema)

	errs := v.ValidateAll([]upload.Record{
		rec(map[string]any{"age": "30"}),
		rec(map[string]any{"age": "x"}),
		rec(map[string]any{"age": "41"}),
		rec(map[string]any{}),
	})
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors across the batch, got %v", errs)
	}
	if errs[0].RecordIndex != 1 || errs[1].RecordIndex != 3 {
		t.Errorf("expected records 1 and 3 flagged, got %d and %d",
			errs[0].RecordIndex, errs[1].RecordIndex)
	}
}

func TestNewValidator_BadPattern(t *testing.T) {
	schema := &upload.Schema{Fields: []upload.Field{
		{Name: "code", FieldSchema: upload.FieldSchema{
			Type: upload.FieldString, Required: true, Pattern: `([`,
		}},
	}}
	if _, err := upload.NewValidator(schema); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}
