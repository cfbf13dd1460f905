// Package testutil provides testing utilities for the predictor proxy.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for one mock match response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration

	// Hang blocks until the client gives up, simulating an upstream that never answers.
	Hang bool
}

// MockPredictor is a configurable mock prediction service for testing.
// Match ids are served from the last path segment.
type MockPredictor struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse

	requestCount    int
	perMatch        map[string]int
	privilegedCount int
	lastHeader      http.Header
	lastQuery       string
}

// NewMockPredictor creates a new mock prediction server.
func NewMockPredictor() *MockPredictor {
	mock := &MockPredictor{
		responses: make(map[string]MockResponse),
		perMatch:  make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockPredictor) serve(w http.ResponseWriter, r *http.Request) {
	matchID := strings.TrimPrefix(r.URL.EscapedPath(), "/")
	if i := strings.LastIndex(matchID, "/"); i >= 0 {
		matchID = matchID[i+1:]
	}
	if unescaped, err := url.PathUnescape(matchID); err == nil {
		matchID = unescaped
	}

	m.mu.Lock()
	m.requestCount++
	m.perMatch[matchID]++
	m.lastHeader = r.Header.Clone()
	m.lastQuery = r.URL.RawQuery
	if r.Header.Get("X-Predictor-Key") != "" {
		m.privilegedCount++
	}
	resp, ok := m.responses[matchID]
	m.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown match"}`))
		return
	}

	if resp.Hang {
		<-r.Context().Done()
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockPredictor) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockPredictor) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockPredictor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.privilegedCount = 0
	m.perMatch = make(map[string]int)
	m.lastHeader = nil
	m.lastQuery = ""
}

// SetResponse configures the response for a match id.
func (m *MockPredictor) SetResponse(matchID string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[matchID] = resp
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockPredictor) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetMatchRequestCount returns the number of requests made for one match.
func (m *MockPredictor) GetMatchRequestCount(matchID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.perMatch[matchID]
}

// GetPrivilegedCount returns the number of requests carrying the privileged header.
func (m *MockPredictor) GetPrivilegedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.privilegedCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockPredictor) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// LastRawQuery returns the raw query string of the most recent request.
func (m *MockPredictor) LastRawQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastQuery
}

// NewPredictionResponse creates a standard 200 OK response.
func NewPredictionResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewHangingResponse creates a response that never arrives.
func NewHangingResponse() MockResponse {
	return MockResponse{Hang: true}
}

// NewInvalidJSONResponse creates a 200 response whose body is not JSON.
func NewInvalidJSONResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
		Headers: map[string]string{
			"Content-Type": "text/html",
		},
	}
}
