package tosdr

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

const servicePage = `{
	"parameters": {
		"_page": {"total": 3, "current": 1, "start": 1, "end": 2},
		"services": [
			{"id": 182, "name": "Facebook", "slug": "facebook", "rating": "E", "is_comprehensively_reviewed": true, "urls": ["facebook.com"]},
			{"id": 158, "name": "YouTube", "rating": "E", "is_comprehensively_reviewed": false}
		]
	}
}`

func TestDecodeServicePage(t *testing.T) {
	info, items, err := DecodeServicePage([]byte(servicePage))
	if err != nil {
		t.Fatalf("DecodeServicePage() error = %v", err)
	}

	if info.TotalPages() != 2 {
		t.Errorf("TotalPages() = %d, want 2", info.TotalPages())
	}
	if info.Current != 1 || info.Total != 3 {
		t.Errorf("PageInfo = %+v, want current=1 total=3", info)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0].ID != 182 || items[0].Name != "Facebook" || !items[0].IsComprehensivelyReviewed {
		t.Errorf("items[0] = %+v", items[0])
	}
	if items[1].Slug != "" {
		t.Errorf("items[1].Slug = %q, want empty", items[1].Slug)
	}
}

func TestServiceMetadata_MarshalKeepsUnknownFields(t *testing.T) {
	_, items, err := DecodeServicePage([]byte(servicePage))
	if err != nil {
		t.Fatalf("DecodeServicePage() error = %v", err)
	}

	out, err := json.Marshal(items[0])
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), `"urls":["facebook.com"]`) {
		t.Errorf("marshalled record lost untyped field: %s", out)
	}
}

func TestServiceMetadata_MarshalWithoutRaw(t *testing.T) {
	out, err := json.Marshal(ServiceMetadata{ID: 1, Name: "Example"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), `"id":1`) || !strings.Contains(string(out), `"name":"Example"`) {
		t.Errorf("Marshal() = %s", out)
	}
}

func TestDecodePage_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{
			name:      "missing parameters",
			body:      `{"services": []}`,
			wantField: KeyParameters,
		},
		{
			name:      "missing page info",
			body:      `{"parameters": {"services": []}}`,
			wantField: KeyPageInfo,
		},
		{
			name:      "null page end",
			body:      `{"parameters": {"_page": {"total": 1, "current": 1, "start": 1, "end": null}, "services": []}}`,
			wantField: "end",
		},
		{
			name:      "missing list",
			body:      `{"parameters": {"_page": {"total": 1, "current": 1, "start": 1, "end": 1}}}`,
			wantField: KeyServices,
		},
		{
			name:      "record without name",
			body:      `{"parameters": {"_page": {"total": 1, "current": 1, "start": 1, "end": 1}, "services": [{"id": 4}]}}`,
			wantField: "name",
		},
		{
			name:      "non-positive id",
			body:      `{"parameters": {"_page": {"total": 1, "current": 1, "start": 1, "end": 1}, "services": [{"id": 0, "name": "x"}]}}`,
			wantField: "id",
		},
		{
			name:      "current page zero",
			body:      `{"parameters": {"_page": {"total": 1, "current": 0, "start": 1, "end": 1}, "services": []}}`,
			wantField: "current",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeServicePage([]byte(tt.body))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected *SchemaError, got %T: %v", err, err)
			}
			if schemaErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q (%v)", schemaErr.Field, tt.wantField, err)
			}
		})
	}
}

func TestDecodePage_MalformedJSON(t *testing.T) {
	_, _, err := DecodeServicePage([]byte(`{"parameters":`))
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaError, got %v", err)
	}
	if schemaErr.Err == nil {
		t.Error("expected wrapped JSON error")
	}
}

func TestDecodePage_TypeMismatch(t *testing.T) {
	body := `{"parameters": {"_page": {"total": 1, "current": 1, "start": 1, "end": 1}, "services": [{"id": "abc", "name": "x"}]}}`
	_, _, err := DecodeServicePage([]byte(body))
	if err == nil {
		t.Fatal("expected error for string id")
	}
	if !strings.Contains(err.Error(), "services[0]") {
		t.Errorf("error should name the element, got %v", err)
	}
}

func TestDecodeCasePage(t *testing.T) {
	body := `{"parameters": {"_page": {"total": 2, "current": 2, "start": 1, "end": 2}, "cases": [
		{"id": 117, "title": "This service tracks you", "classification": "bad", "weight": 50},
		{"id": 124, "title": "You can delete your account"}
	]}}`

	info, cases, err := DecodeCasePage([]byte(body))
	if err != nil {
		t.Fatalf("DecodeCasePage() error = %v", err)
	}
	if info.Current != 2 {
		t.Errorf("Current = %d, want 2", info.Current)
	}
	if len(cases) != 2 || cases[0].Classification != "bad" || cases[1].Title != "You can delete your account" {
		t.Errorf("cases = %+v", cases)
	}
}

func TestDecodeServiceResponse(t *testing.T) {
	body := `{"parameters": {"id": 182, "name": "Facebook", "rating": "E", "points": [{"id": 1}]}}`

	svc, err := DecodeServiceResponse([]byte(body))
	if err != nil {
		t.Fatalf("DecodeServiceResponse() error = %v", err)
	}
	if svc.ID != 182 || svc.Rating != "E" {
		t.Errorf("service = %+v", svc)
	}

	out, _ := json.Marshal(svc)
	if !strings.Contains(string(out), `"points"`) {
		t.Errorf("marshalled service lost points: %s", out)
	}

	if _, err := DecodeServiceResponse([]byte(`{"parameters": null}`)); err == nil {
		t.Error("expected error for null parameters")
	}
}
