package saxoeu

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// mockServer is a configurable stand-in for the Saxo OpenAPI gateway,
// adapted from the teacher's MockSaxoServer: responses are registered per
// method+path, every request is captured for later assertion, and an
// unconfigured route falls back to a 404 error envelope in this adapter's
// own wire shape rather than the teacher's.
type mockServer struct {
	srv       *httptest.Server
	responses map[string]mockResponse
	requests  []mockRequest
}

type mockResponse struct {
	status int
	body   any
}

type mockRequest struct {
	Method  string
	Path    string
	Headers http.Header
}

func newMockServer() *mockServer {
	m := &mockServer{responses: make(map[string]mockResponse)}
	m.srv = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

func (m *mockServer) Close() { m.srv.Close() }

func (m *mockServer) BaseURL() string { return m.srv.URL }

func (m *mockServer) SetResponse(method, path string, status int, body any) {
	m.responses[method+" "+path] = mockResponse{status: status, body: body}
}

func (m *mockServer) Requests() []mockRequest { return m.requests }

func (m *mockServer) handle(w http.ResponseWriter, r *http.Request) {
	m.requests = append(m.requests, mockRequest{Method: r.Method, Path: r.URL.Path, Headers: r.Header})

	key := fmt.Sprintf("%s %s", r.Method, r.URL.Path)
	resp, ok := m.responses[key]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(wireErrorResponse{ErrorCode: "NotFound", Message: "endpoint not found: " + key})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	if resp.body != nil {
		json.NewEncoder(w).Encode(resp.body)
	}
}
