// Package freericetest provides an in-memory Freerice game server for tests.
package freericetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"ricefarm/internal/freerice"
)

const (
	GameID        = "test-game"
	RicePerAnswer = 10
)

type round struct {
	question freerice.Question
	answerID string
}

// Counts are the requests the server has handled.
type Counts struct {
	Logins  int
	Fetches int
	Submits int
	Correct int
	Wrong   int
}

type failure struct {
	remaining int
	status    int
}

func (f *failure) take() (int, bool) {
	if f.remaining <= 0 {
		return 0, false
	}
	f.remaining--
	return f.status, true
}

// Server imitates the accounts and game engine endpoints on a single host.
type Server struct {
	*httptest.Server

	Username string
	Password string

	mu          sync.Mutex
	tokens      map[string]string
	rounds      map[string]round
	roundNo     int
	riceTotal   int64
	riceScript  []int64
	omitTotal   bool
	counts      Counts
	loginFail   failure
	fetchFail   failure
	submitFail  failure
	unparseable int
}

// NewServer starts a server accepting `bob` / `hunter2`, it is closed on test cleanup.
func NewServer(t testing.TB) *Server {
	s := &Server{
		Username: "bob",
		Password: "hunter2",
		tokens:   map[string]string{},
		rounds:   map[string]round{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("GET /games/{id}", s.handleFetch)
	mux.HandleFunc("PATCH /games/{id}/answer", s.handleAnswer)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Options points a freerice client at this server.
func (s *Server) Options() freerice.Options {
	opts := freerice.DefaultOptions()
	opts.AccountsURL = s.URL
	opts.EngineURL = s.URL
	opts.GameID = GameID
	opts.CloudflareBypass = false
	opts.Timeout = 0
	return opts
}

func (s *Server) Credentials() freerice.Credentials {
	return freerice.Credentials{Username: s.Username, Password: s.Password}
}

// FailLogins makes the next n logins respond with `status`.
func (s *Server) FailLogins(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginFail = failure{remaining: n, status: status}
}

// FailFetches makes the next n game fetches respond with `status`.
func (s *Server) FailFetches(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchFail = failure{remaining: n, status: status}
}

// FailSubmits makes the next n answer submissions respond with `status`.
func (s *Server) FailSubmits(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitFail = failure{remaining: n, status: status}
}

// ServeUnparseable makes the next n rounds carry a question that is not a multiplication.
func (s *Server) ServeUnparseable(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unparseable = n
}

// ScriptRiceTotals makes successive game fetches report the given totals, the last one repeats.
func (s *Server) ScriptRiceTotals(totals ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riceScript = totals
}

// OmitRiceTotal stops the server from sending user_rice_total.
func (s *Server) OmitRiceTotal(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitTotal = omit
}

func (s *Server) SetRiceTotal(total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riceTotal = total
}

func (s *Server) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/vnd.api+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.Logins++

	if status, fail := s.loginFail.take(); fail {
		writeJSON(w, status, map[string]string{"message": "try again later"})
		return
	}
	if r.URL.Query().Get("_format") != "json" {
		writeJSON(w, http.StatusNotAcceptable, map[string]string{"message": "missing _format"})
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil || body.Username != s.Username || body.Password != s.Password {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message": "Sorry, unrecognized username or password.",
		})
		return
	}

	token := fmt.Sprintf("token-%d", len(s.tokens)+1)
	s.tokens[token] = body.Username
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"uuid":  "uuid-" + body.Username,
		"userData": map[string]any{
			"username": body.Username,
		},
	})
}

func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	_, ok = s.tokens[token]
	return ok
}

// nextRound must be called with mu held.
func (s *Server) nextRound() (string, round) {
	s.roundNo++
	n := s.roundNo
	id := fmt.Sprintf("round-%d", n)

	a := 2 + n%11
	b := 3 + n%7
	product := a * b
	values := []int{product - 2, product, product + 2, product + 10}

	text := fmt.Sprintf("%d x %d", a, b)
	if s.unparseable > 0 {
		s.unparseable--
		text = fmt.Sprintf("%d + %d", a, b)
	}

	r := round{question: freerice.Question{Text: text}}
	rotate := n % len(values)
	for i := range values {
		v := values[(i+rotate)%len(values)]
		optionID := fmt.Sprintf("opt-%d-%d", n, i)
		r.question.Options = append(r.question.Options, freerice.Option{
			ID:   optionID,
			Text: strconv.Itoa(v),
		})
		if v == product {
			r.answerID = optionID
		}
	}

	s.rounds[id] = r
	return id, r
}

// currentTotal must be called with mu held.
func (s *Server) currentTotal() int64 {
	if len(s.riceScript) == 0 {
		return s.riceTotal
	}
	total := s.riceScript[0]
	if len(s.riceScript) > 1 {
		s.riceScript = s.riceScript[1:]
	}
	return total
}

// writeRound must be called with mu held.
func (s *Server) writeRound(w http.ResponseWriter) {
	id, r := s.nextRound()
	attributes := map[string]any{
		"question": r.question,
	}
	if !s.omitTotal {
		attributes["user_rice_total"] = s.currentTotal()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":         id,
			"type":       "game",
			"attributes": attributes,
		},
	})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.Fetches++

	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}
	if status, fail := s.fetchFail.take(); fail {
		writeJSON(w, status, map[string]string{"message": "fetch failed"})
		return
	}
	if r.PathValue("id") != GameID {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown game"})
		return
	}
	s.writeRound(w)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts.Submits++

	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}
	if status, fail := s.submitFail.take(); fail {
		writeJSON(w, status, map[string]string{"message": "submit failed"})
		return
	}

	current, ok := s.rounds[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown round"})
		return
	}
	delete(s.rounds, r.PathValue("id"))

	var body struct {
		Answer string `json:"answer"`
	}
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad body"})
		return
	}

	if body.Answer == current.answerID {
		s.counts.Correct++
		s.riceTotal += RicePerAnswer
	} else {
		s.counts.Wrong++
	}
	s.writeRound(w)
}
