package upload

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"
)

// ── Schema inference ────────────────────────────────────────
// The expected shape of a collection is not declared anywhere; it is
// derived from a small sample of documents already stored there.
// Sampling follows the store's natural document order, so a sparse
// early document can shift the schema between runs — accepted.

// DefaultSampleSize is how many documents are read when the caller
// does not ask for a specific sample size.
const DefaultSampleSize = 5

// Store is the document-store surface the pipeline consumes. Sample
// reads up to n existing documents from a collection; BatchWrite
// persists a batch of documents as one atomic write.
type Store interface {
	Sample(ctx context.Context, collectionID string, n int) ([]map[string]any, error)
	BatchWrite(ctx context.Context, collectionID string, docs []map[string]any) error
}

// Inferencer derives a Schema from sampled documents.
type Inferencer struct {
	Store      Store
	SampleSize int // 0 means DefaultSampleSize
}

// Infer samples up to SampleSize documents from the collection and
// builds a field-level schema. It fails with SchemaInferenceError when
// the sample is empty: an empty collection cannot bootstrap a schema.
func (inf *Inferencer) Infer(ctx context.Context, collectionID string) (*Schema, error) {
	n := inf.SampleSize
	if n <= 0 {
		n = DefaultSampleSize
	}

	docs, err := inf.Store.Sample(ctx, collectionID, n)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, &SchemaInferenceError{Collection: collectionID}
	}

	schema := buildSchema(docs)
	applyNameHeuristics(schema)

	log.Printf("[UPLOAD] inferred schema for %q from %d document(s): %d field(s)",
		collectionID, len(docs), len(schema.Fields))
	return schema, nil
}

// buildSchema walks the sample in store order. Only non-null,
// non-empty-string values create or reinforce a field entry; a field
// never becomes less required from a later document. Keys within one
// document are visited in sorted order so the first-seen field order
// is deterministic for a given sample. The createdAt/updatedAt stamps
// written by earlier uploads are not data fields and stay out of the
// schema.
func buildSchema(docs []map[string]any) *Schema {
	schema := &Schema{}
	index := make(map[string]int)

	for _, doc := range docs {
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			v := doc[k]
			if isSystemField(k) || isEmptyValue(v) {
				continue
			}
			if i, seen := index[k]; seen {
				schema.Fields[i].Required = true
				continue
			}
			index[k] = len(schema.Fields)
			schema.Fields = append(schema.Fields, Field{
				Name: k,
				FieldSchema: FieldSchema{
					Type:     inferFieldType(v),
					Required: true,
				},
			})
		}
	}
	return schema
}

// inferFieldType classifies a value by shape. Anything that is not an
// array, date, string, number, or boolean is treated as an object.
func inferFieldType(v any) FieldType {
	switch v.(type) {
	case []any:
		return FieldArray
	case time.Time:
		return FieldDate
	case string:
		return FieldString
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return FieldNumber
	case bool:
		return FieldBoolean
	default:
		return FieldObject
	}
}

// ── Field-name heuristics ───────────────────────────────────
// Post-hoc constraint refinements keyed by substring of the field
// name. Kept as an isolated rule table so new rules slot in without
// touching the inference walk above.

const (
	emailPattern = `^[^\s@]+@[^\s@]+\.[^\s@]+$`
	phonePattern = `^\+?\d[\d\s().-]*$`
)

type nameRule struct {
	substr string
	apply  func(*FieldSchema)
}

var nameRules = []nameRule{
	{"email", func(fs *FieldSchema) { fs.Pattern = emailPattern }},
	{"phone", func(fs *FieldSchema) { fs.Pattern = phonePattern }},
	{"id", func(fs *FieldSchema) {
		one := 1
		fs.MinLength = &one
	}},
}

func applyNameHeuristics(s *Schema) {
	for i := range s.Fields {
		name := strings.ToLower(s.Fields[i].Name)
		for _, rule := range nameRules {
			if strings.Contains(name, rule.substr) {
				rule.apply(&s.Fields[i].FieldSchema)
			}
		}
	}
}
