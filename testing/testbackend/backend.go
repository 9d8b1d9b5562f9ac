package testbackend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

const CSRFToken = "csrf-test-token"

// Recorded is one request the backend received.
type Recorded struct {
	Method        string
	Path          string
	Authorization string
	CSRF          string
	RequestID     string
	Body          []byte
}

// Backend is a fake academy API. The CSRF endpoint works out of the box;
// every other route must be registered with Handle.
type Backend struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	requests []Recorded
}

func New(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{handlers: make(map[string]http.HandlerFunc)}
	b.Handle(http.MethodGet, "/api/csrf/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: CSRFToken, Path: "/"})
		WriteJSON(w, http.StatusOK, map[string]string{"detail": "CSRF cookie set"})
	})
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) URL() string { return b.Server.URL }

func (b *Backend) Handle(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method+" "+path] = h
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
			body = raw
		}
	}

	b.mu.Lock()
	b.requests = append(b.requests, Recorded{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		CSRF:          r.Header.Get("X-CSRFToken"),
		RequestID:     r.Header.Get("X-Request-ID"),
		Body:          body,
	})
	h, ok := b.handlers[r.Method+" "+r.URL.Path]
	b.mu.Unlock()

	if !ok {
		WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		return
	}
	h(w, r)
}

// Calls counts requests for method and path.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, req := range b.requests {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}

func (b *Backend) Requests() []Recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Recorded(nil), b.requests...)
}

// Last returns the most recent request for method and path.
func (b *Backend) Last(method, path string) (Recorded, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		if b.requests[i].Method == method && b.requests[i].Path == path {
			return b.requests[i], true
		}
	}
	return Recorded{}, false
}

func WriteJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
