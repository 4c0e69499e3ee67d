package upload

// ── Record & Schema ─────────────────────────────────────────
// Common shapes flowing through the upload pipeline.
// The parser emits raw Records, the transformer emits canonical
// Records, the schema is inferred once per upload and never
// mutated afterwards.

// FieldType is the inferred type of a document field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldArray   FieldType = "array"
	FieldDate    FieldType = "date"
	FieldBoolean FieldType = "boolean"
	FieldObject  FieldType = "object"
)

// FieldSchema is the inferred contract for a single field.
// Pattern holds a regular expression source string; it is compiled
// by the validator, not here, so the schema stays a plain value.
type FieldSchema struct {
	Type             FieldType `json:"type"`
	Required         bool      `json:"required"`
	ArrayElementType FieldType `json:"arrayElementType,omitempty"` // "string" | "number", empty when unchecked
	MinLength        *int      `json:"minLength,omitempty"`
	MaxLength        *int      `json:"maxLength,omitempty"`
	MinValue         *float64  `json:"minValue,omitempty"`
	MaxValue         *float64  `json:"maxValue,omitempty"`
	Pattern          string    `json:"pattern,omitempty"`
	AllowedValues    []string  `json:"allowedValues,omitempty"`
}

// Field pairs a field name with its schema.
type Field struct {
	Name string `json:"name"`
	FieldSchema
}

// Schema describes the expected shape of documents in a collection.
// Fields are ordered by first appearance across the sampled documents;
// names are unique. A Schema is built once per upload and treated as
// immutable from then on.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Lookup returns a name → schema map for O(1) field access.
func (s *Schema) Lookup() map[string]FieldSchema {
	m := make(map[string]FieldSchema, len(s.Fields))
	for _, f := range s.Fields {
		m[f.Name] = f.FieldSchema
	}
	return m
}

// Record is a single row of data flowing through the pipeline.
// Raw records hold whatever the parser produced (CSV cells stay
// strings); canonical records hold values coerced to schema types.
type Record struct {
	Data map[string]any `json:"data"`
}

// ValidationError describes one field-level contract violation in one
// record. A record with zero validation errors is valid.
type ValidationError struct {
	RecordIndex  int    `json:"recordIndex"`
	Field        string `json:"field"`
	Message      string `json:"message"`
	Value        any    `json:"value"`
	ExpectedType string `json:"expectedType,omitempty"`
}

// Result is the single terminal artifact of an upload run.
// Counts and messages never contradict Success.
type Result struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	SuccessCount     int               `json:"successCount"`
	ErrorCount       int               `json:"errorCount"`
	Errors           []string          `json:"errors,omitempty"`
	ValidationErrors []ValidationError `json:"validationErrors,omitempty"`
	TotalRecords     int               `json:"totalRecords,omitempty"`
}

// isEmptyValue reports whether v counts as "missing" for requiredness:
// nil or the empty string. Zero numbers and false are real values.
func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// isSystemField reports whether name is one of the transformer-owned
// stamps. Stamps never enter an inferred schema and are never rejected
// as unknown fields, so a collection of previously uploaded documents
// keeps accepting files that only carry data fields.
func isSystemField(name string) bool {
	return name == "createdAt" || name == "updatedAt"
}
