package opsgenietest

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Server is a fake OpsGenie API. Teams are looked up by name and users by username.
type Server struct {
	mu       sync.Mutex
	ts       *httptest.Server
	URL      string
	teams    map[string]string
	users    map[string]string
	status   int
	requests []Request
	closed   bool
}

// NewServer returns a server knowing the given team names and usernames, mapped to their IDs.
func NewServer(teams, users map[string]string) *Server {
	s := &Server{
		teams: teams,
		users: users,
	}
	ts := httptest.NewServer(http.HandlerFunc(s.handle))
	s.ts = ts
	s.URL = ts.URL
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := ioutil.ReadAll(r.Body)
	req := Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
	}
	if r.Method == "POST" {
		json.Unmarshal(body, &req.PostData)
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	status := s.status
	s.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"message": http.StatusText(status)})
		return
	}

	switch {
	case r.Method == "POST" && r.URL.Path == "/v2/alerts":
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result":    "Request will be processed",
			"took":      0.1,
			"requestId": "request-" + req.PostData.Alias,
		})
	case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/v2/teams/"):
		name := strings.TrimPrefix(r.URL.Path, "/v2/teams/")
		s.lookup(w, s.teams, name, "name")
	case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/v2/users/"):
		username := strings.TrimPrefix(r.URL.Path, "/v2/users/")
		s.lookup(w, s.users, username, "username")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) lookup(w http.ResponseWriter, ids map[string]string, identifier, field string) {
	id, ok := ids[identifier]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "No " + field + " exists with " + identifier})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": map[string]string{
			"id":  id,
			field: identifier,
		},
	})
}

// SetStatus makes every following request fail with the status code.
// A zero code restores normal behavior.
func (s *Server) SetStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = code
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Alerts returns the bodies of the create alert requests.
func (s *Server) Alerts() []PostData {
	var alerts []PostData
	for _, r := range s.Requests() {
		if r.Method == "POST" {
			alerts = append(alerts, r.PostData)
		}
	}
	return alerts
}

func (s *Server) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.ts.Close()
}

type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	Body          []byte
	PostData      PostData
}

type Responder struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type PostData struct {
	Message     string            `json:"message"`
	Alias       string            `json:"alias"`
	Description string            `json:"description"`
	Responders  []Responder       `json:"responders"`
	Tags        []string          `json:"tags"`
	Details     map[string]string `json:"details"`
	Entity      string            `json:"entity"`
	Source      string            `json:"source"`
	Priority    string            `json:"priority"`
}
