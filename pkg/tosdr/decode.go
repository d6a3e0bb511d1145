package tosdr

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response keys used by the ToS;DR v2 endpoints.
const (
	KeyParameters = "parameters"
	KeyPageInfo   = "_page"
	KeyServices   = "services"
	KeyCases      = "cases"
)

// SchemaError reports a payload that does not satisfy the decoding contract.
type SchemaError struct {
	// Kind is the record or block being decoded (e.g. "service", "_page").
	Kind string
	// Field is the offending field, empty when the whole object is invalid.
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	msg := "invalid " + e.Kind
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// DecodePage decodes a paginated envelope of the form
//
//	{"parameters": {"_page": {...}, "<listKey>": [...]}}
//
// and decodes every list element with decodeItem. Any invalid element fails the
// whole page.
func DecodePage[T any](body []byte, listKey string, decodeItem func(json.RawMessage) (T, error)) (PageInfo, []T, error) {
	params, err := parameters(body)
	if err != nil {
		return PageInfo{}, nil, err
	}

	rawInfo, err := required(params, KeyParameters, KeyPageInfo)
	if err != nil {
		return PageInfo{}, nil, err
	}
	info, err := decodePageInfo(rawInfo)
	if err != nil {
		return PageInfo{}, nil, err
	}

	rawList, err := required(params, KeyParameters, listKey)
	if err != nil {
		return PageInfo{}, nil, err
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(rawList, &elems); err != nil {
		return PageInfo{}, nil, &SchemaError{Kind: KeyParameters, Field: listKey, Reason: "not a list", Err: err}
	}

	items := make([]T, 0, len(elems))
	for i, elem := range elems {
		item, err := decodeItem(elem)
		if err != nil {
			return PageInfo{}, nil, fmt.Errorf("%s[%d]: %w", listKey, i, err)
		}
		items = append(items, item)
	}

	return info, items, nil
}

// DecodeServicePage decodes one page of the service listing.
func DecodeServicePage(body []byte) (PageInfo, []ServiceMetadata, error) {
	return DecodePage(body, KeyServices, DecodeServiceMetadata)
}

// DecodeCasePage decodes one page of the case listing.
func DecodeCasePage(body []byte) (PageInfo, []Case, error) {
	return DecodePage(body, KeyCases, DecodeCase)
}

// DecodeServiceMetadata decodes a single service listing entry.
func DecodeServiceMetadata(raw json.RawMessage) (ServiceMetadata, error) {
	var s ServiceMetadata
	if err := decodeRecord(raw, "service metadata", &s, "id", "name"); err != nil {
		return ServiceMetadata{}, err
	}
	if s.ID <= 0 {
		return ServiceMetadata{}, &SchemaError{Kind: "service metadata", Field: "id", Reason: fmt.Sprintf("must be positive, got %d", s.ID)}
	}
	s.raw = compact(raw)
	return s, nil
}

// DecodeService decodes a full service object.
func DecodeService(raw json.RawMessage) (Service, error) {
	var s Service
	if err := decodeRecord(raw, "service", &s, "id", "name"); err != nil {
		return Service{}, err
	}
	if s.ID <= 0 {
		return Service{}, &SchemaError{Kind: "service", Field: "id", Reason: fmt.Sprintf("must be positive, got %d", s.ID)}
	}
	s.raw = compact(raw)
	return s, nil
}

// DecodeServiceResponse decodes the {"parameters": {...}} envelope of a
// single-service lookup.
func DecodeServiceResponse(body []byte) (Service, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return Service{}, &SchemaError{Kind: "response", Reason: "malformed JSON", Err: err}
	}
	raw, err := required(env, "response", KeyParameters)
	if err != nil {
		return Service{}, err
	}
	return DecodeService(raw)
}

// DecodeCase decodes a single case listing entry.
func DecodeCase(raw json.RawMessage) (Case, error) {
	var c Case
	if err := decodeRecord(raw, "case", &c, "id", "title"); err != nil {
		return Case{}, err
	}
	c.raw = compact(raw)
	return c, nil
}

func parameters(body []byte) (map[string]json.RawMessage, error) {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &SchemaError{Kind: "response", Reason: "malformed JSON", Err: err}
	}
	raw, err := required(env, "response", KeyParameters)
	if err != nil {
		return nil, err
	}
	var params map[string]json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &SchemaError{Kind: "response", Field: KeyParameters, Reason: "not an object", Err: err}
	}
	return params, nil
}

func decodePageInfo(raw json.RawMessage) (PageInfo, error) {
	var info PageInfo
	if err := decodeRecord(raw, KeyPageInfo, &info, "total", "current", "start", "end"); err != nil {
		return PageInfo{}, err
	}
	if info.Current < 1 {
		return PageInfo{}, &SchemaError{Kind: KeyPageInfo, Field: "current", Reason: fmt.Sprintf("must be >= 1, got %d", info.Current)}
	}
	if info.End < 0 {
		return PageInfo{}, &SchemaError{Kind: KeyPageInfo, Field: "end", Reason: fmt.Sprintf("must be >= 0, got %d", info.End)}
	}
	return info, nil
}

// decodeRecord checks that every field in fields is present and non-null, then
// unmarshals raw into dst.
func decodeRecord(raw json.RawMessage, kind string, dst any, fields ...string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return &SchemaError{Kind: kind, Reason: "not a JSON object", Err: err}
	}
	for _, f := range fields {
		if _, err := required(obj, kind, f); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &SchemaError{Kind: kind, Reason: "type mismatch", Err: err}
	}
	return nil
}

func required(obj map[string]json.RawMessage, kind, field string) (json.RawMessage, error) {
	v, ok := obj[field]
	if !ok {
		return nil, &SchemaError{Kind: kind, Field: field, Reason: "missing"}
	}
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, &SchemaError{Kind: kind, Field: field, Reason: "null"}
	}
	return v, nil
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), raw...)
	}
	return buf.Bytes()
}
