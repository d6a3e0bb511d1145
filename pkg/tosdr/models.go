// Package tosdr defines the typed records returned by the ToS;DR API and the
// decoding contract that turns raw JSON responses into them.
//
// Every record keeps the raw JSON object it was decoded from and marshals back
// to it, so persisting a record never drops fields the typed view does not know
// about. Required fields are validated once at decode time; a payload that is
// missing one fails with a *SchemaError instead of producing a partial record.
package tosdr

import (
	"encoding/json"
)

// PageInfo is the "_page" block of a paginated response.
type PageInfo struct {
	// Total is the total number of records across all pages.
	Total int `json:"total"`
	// Current is the page index this response belongs to.
	Current int `json:"current"`
	Start   int `json:"start"`
	// End is the index of the last page, i.e. the total page count.
	End int `json:"end"`
}

// TotalPages returns the number of pages announced by the server.
func (p PageInfo) TotalPages() int {
	return p.End
}

// ServiceMetadata is one entry of the paginated service listing.
type ServiceMetadata struct {
	ID                        int    `json:"id"`
	Name                      string `json:"name"`
	Slug                      string `json:"slug,omitempty"`
	Rating                    string `json:"rating,omitempty"`
	IsComprehensivelyReviewed bool   `json:"is_comprehensively_reviewed"`

	raw json.RawMessage
}

// MarshalJSON returns the original payload when available.
func (s ServiceMetadata) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	type plain ServiceMetadata
	return json.Marshal(plain(s))
}

// Service is the full service record returned by a single-service lookup.
type Service struct {
	ID                        int    `json:"id"`
	Name                      string `json:"name"`
	Slug                      string `json:"slug,omitempty"`
	Rating                    string `json:"rating,omitempty"`
	IsComprehensivelyReviewed bool   `json:"is_comprehensively_reviewed"`

	raw json.RawMessage
}

// MarshalJSON returns the original payload when available.
func (s Service) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	type plain Service
	return json.Marshal(plain(s))
}

// Case is one entry of the paginated case listing.
type Case struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Classification string `json:"classification,omitempty"`
	Weight         int    `json:"weight,omitempty"`

	raw json.RawMessage
}

// MarshalJSON returns the original payload when available.
func (c Case) MarshalJSON() ([]byte, error) {
	if len(c.raw) > 0 {
		return c.raw, nil
	}
	type plain Case
	return json.Marshal(plain(c))
}
