package upload_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"docbase/internal/upload"
)

func TestInferencer_EmptyCollection(t *testing.T) {
	inf := &upload.Inferencer{Store: &fakeStore{}}

	_, err := inf.Infer(context.Background(), "orders")
	if err == nil {
		t.Fatal("expected error for empty collection")
	}

	var sie *upload.SchemaInferenceError
	if !errors.As(err, &sie) {
		t.Fatalf("expected SchemaInferenceError, got %T", err)
	}
	if sie.Collection != "orders" {
		t.Errorf("expected collection 'orders', got %q", sie.Collection)
	}
	want := `Cannot determine schema: collection "orders" has no documents to sample from`
	if err.Error() != want {
		t.Errorf("unexpected message:\n got %q\nwant %q", err.Error(), want)
	}
}

func TestInferencer_FieldTypes(t *testing.T) {
	store := &fakeStore{
		samples: []map[string]any{{
			"title":   "hello",
			"count":   float64(3),
			"ok":      true,
			"tags":    []any{"a", "b"},
			"when":    time.Now(),
			"address": map[string]any{"city": "Lisbon"},
		}},
	}
	inf := &upload.Inferencer{Store: store}

	schema, err := inf.Infer(context.Background(), "things")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}

	want := map[string]upload.FieldType{
		"title":   upload.FieldString,
		"count":   upload.FieldNumber,
		"ok":      upload.FieldBoolean,
		"tags":    upload.FieldArray,
		"when":    upload.FieldDate,
		"address": upload.FieldObject,
	}
	if len(schema.Fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(schema.Fields))
	}
	byName := schema.Lookup()
	for name, typ := range want {
		fs, ok := byName[name]
		if !ok {
			t.Errorf("missing field %q", name)
			continue
		}
		if fs.Type != typ {
			t.Errorf("field %q: expected type %s, got %s", name, typ, fs.Type)
		}
		if !fs.Required {
			t.Errorf("field %q: expected required", name)
		}
	}
}

func TestInferencer_UnionAcrossDocuments(t *testing.T) {
	store := &fakeStore{
		samples: []map[string]any{
			{"name": "Ana", "age": float64(30)},
			{"name": "Bob", "email": "bob@example.com"},
		},
	}
	inf := &upload.Inferencer{Store: store}

	schema, err := inf.Infer(context.Background(), "people")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}

	// First document's fields come first (sorted within a document),
	// later documents only append what is new.
	got := schema.FieldNames()
	want := []string{"age", "name", "email"}
	if len(got) != len(want) {
		t.Fatalf("expected fields %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected field order %v, got %v", want, got)
		}
	}

	// A field absent from a later sampled document keeps its entry.
	if _, ok := schema.Lookup()["age"]; !ok {
		t.Error("expected 'age' from the first document to survive")
	}
}

func TestInferencer_SkipsEmptyValues(t *testing.T) {
	store := &fakeStore{
		samples: []map[string]any{
			{"name": "Ana", "note": ""},
			{"name": "Bob", "note": nil},
		},
	}
	inf := &upload.Inferencer{Store: store}

	schema, err := inf.Infer(context.Background(), "people")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	byName := schema.Lookup()
	if _, ok := byName["note"]; ok {
		t.Error("expected empty-valued 'note' to be left out of the schema")
	}
	if _, ok := byName["name"]; !ok {
		t.Error("expected 'name' in the schema")
	}
}

func TestInferencer_SkipsSystemStamps(t *testing.T) {
	// Documents written by an earlier upload carry the stamps; they
	// must not become schema fields, or the next plain file would be
	// rejected for missing them.
	store := &fakeStore{
		samples: []map[string]any{
			{"name": "Ana", "createdAt": time.Now(), "updatedAt": time.Now()},
		},
	}
	inf := &upload.Inferencer{Store: store}

	schema, err := inf.Infer(context.Background(), "people")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	byName := schema.Lookup()
	if _, ok := byName["createdAt"]; ok {
		t.Error("expected createdAt to stay out of the schema")
	}
	if _, ok := byName["updatedAt"]; ok {
		t.Error("expected updatedAt to stay out of the schema")
	}
	if _, ok := byName["name"]; !ok {
		t.Error("expected 'name' in the schema")
	}
}

func TestInferencer_SampleSize(t *testing.T) {
	store := &fakeStore{samples: []map[string]any{{"name": "Ana"}}}

	inf := &upload.Inferencer{Store: store}
	if _, err := inf.Infer(context.Background(), "people"); err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if len(store.sampledN) != 1 || store.sampledN[0] != upload.DefaultSampleSize {
		t.Errorf("expected default sample size %d requested, got %v",
			upload.DefaultSampleSize, store.sampledN)
	}

	inf.SampleSize = 25
	if _, err := inf.Infer(context.Background(), "people"); err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if store.sampledN[1] != 25 {
		t.Errorf("expected custom sample size 25 requested, got %d", store.sampledN[1])
	}
}

func TestInferencer_NameHeuristics(t *testing.T) {
	store := &fakeStore{
		samples: []map[string]any{{
			"email":      "ana@example.com",
			"workPhone":  "+351 21 123 4567",
			"customerId": "c-1",
			"name":       "Ana",
		}},
	}
	inf := &upload.Inferencer{Store: store}

	schema, err := inf.Infer(context.Background(), "contacts")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	byName := schema.Lookup()

	if byName["email"].Pattern == "" {
		t.Error("expected a pattern on 'email'")
	}
	if byName["workPhone"].Pattern == "" {
		t.Error("expected a pattern on 'workPhone'")
	}
	id := byName["customerId"]
	if id.MinLength == nil || *id.MinLength != 1 {
		t.Error("expected minLength 1 on 'customerId'")
	}
	name := byName["name"]
	if name.Pattern != "" || name.MinLength != nil {
		t.Errorf("expected no heuristics on 'name', got %+v", name)
	}
}

func TestInferencer_SampleError(t *testing.T) {
	store := &fakeStore{sampleErr: errors.New("connection reset")}
	inf := &upload.Inferencer{Store: store}

	_, err := inf.Infer(context.Background(), "people")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, store.sampleErr) {
		t.Errorf("expected the sample error back, got %v", err)
	}
}
