// Package testutil provides testing utilities for the ToS;DR client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mock ToS;DR response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockTOSDR is a scripted mock of the ToS;DR API. Each page and each service
// id is served from a response sequence; the last response of a sequence is
// repeated once the sequence is used up. Unscripted requests get 404.
type MockTOSDR struct {
	server *httptest.Server
	mu     sync.Mutex

	pages    map[string]map[int][]MockResponse
	services map[int][]MockResponse
	calls    map[string]int

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewMockTOSDR creates a new mock ToS;DR server.
func NewMockTOSDR() *MockTOSDR {
	mock := &MockTOSDR{
		pages:    make(map[string]map[int][]MockResponse),
		services: make(map[int][]MockResponse),
		calls:    make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

// URL returns the mock server URL.
func (m *MockTOSDR) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockTOSDR) Close() {
	m.server.Close()
}

// SetPage scripts the responses for one page of a paginated endpoint.
func (m *MockTOSDR) SetPage(endpoint string, page int, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pages[endpoint] == nil {
		m.pages[endpoint] = make(map[int][]MockResponse)
	}
	m.pages[endpoint][page] = responses
}

// SetService scripts the responses for a single-service lookup.
func (m *MockTOSDR) SetService(id int, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[id] = responses
}

// PageRequests returns how many times a page was requested.
func (m *MockTOSDR) PageRequests(endpoint string, page int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[pageCallKey(endpoint, page)]
}

// ServiceRequests returns how many times a service was looked up.
func (m *MockTOSDR) ServiceRequests(id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[serviceCallKey(id)]
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockTOSDR) GetRequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.RequestCount
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockTOSDR) GetLastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastRequestHeader
}

func (m *MockTOSDR) serve(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	m.mu.Lock()
	m.RequestCount++
	m.LastRequestHeader = r.Header.Clone()

	var (
		script []MockResponse
		key    string
	)
	if id, err := strconv.Atoi(query.Get("id")); err == nil {
		key = serviceCallKey(id)
		script = m.services[id]
	} else {
		page := 1
		if p, err := strconv.Atoi(query.Get("page")); err == nil {
			page = p
		}
		key = pageCallKey(r.URL.Path, page)
		script = m.pages[r.URL.Path][page]
	}
	n := m.calls[key]
	m.calls[key]++
	m.mu.Unlock()

	if len(script) == 0 {
		write(w, NewNotFoundResponse())
		return
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	write(w, script[n])
}

func write(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	w.Header().Set("Content-Type", "application/json")
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func pageCallKey(endpoint string, page int) string {
	return fmt.Sprintf("%s?page=%d", endpoint, page)
}

func serviceCallKey(id int) string {
	return fmt.Sprintf("service?id=%d", id)
}

// Repeat returns n copies of resp.
func Repeat(resp MockResponse, n int) []MockResponse {
	out := make([]MockResponse, n)
	for i := range out {
		out[i] = resp
	}
	return out
}

// NewOKResponse creates a 200 OK response.
func NewOKResponse(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Too Many Requests"}`,
		Headers:    map[string]string{"Retry-After": "1"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "Not found"}`,
	}
}

// ServiceRecord returns a service object as served by the API.
func ServiceRecord(id int) map[string]any {
	return map[string]any{
		"id":                          id,
		"name":                        fmt.Sprintf("Service %d", id),
		"slug":                        fmt.Sprintf("service-%d", id),
		"rating":                      "C",
		"is_comprehensively_reviewed": id%2 == 0,
		"urls":                        []string{fmt.Sprintf("service%d.example", id)},
	}
}

// CaseRecord returns a case object as served by the API.
func CaseRecord(id int) map[string]any {
	return map[string]any{
		"id":             id,
		"title":          fmt.Sprintf("Case %d", id),
		"classification": "bad",
		"weight":         50,
	}
}

// ServicePageBody builds a service listing page holding the given ids.
func ServicePageBody(current, totalPages int, ids ...int) string {
	records := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		records = append(records, ServiceRecord(id))
	}
	return pageBody("services", current, totalPages, records)
}

// CasePageBody builds a case listing page holding the given ids.
func CasePageBody(current, totalPages int, ids ...int) string {
	records := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		records = append(records, CaseRecord(id))
	}
	return pageBody("cases", current, totalPages, records)
}

// ServiceBody builds a single-service lookup response.
func ServiceBody(id int) string {
	return mustJSON(map[string]any{"parameters": ServiceRecord(id)})
}

func pageBody(listKey string, current, totalPages int, records []map[string]any) string {
	return mustJSON(map[string]any{
		"parameters": map[string]any{
			"_page": map[string]any{
				"total":   totalPages * len(records),
				"current": current,
				"start":   1,
				"end":     totalPages,
			},
			listKey: records,
		},
	})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
