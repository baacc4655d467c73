package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/invakid404/cel-playground/internal/catalog"
	"github.com/invakid404/cel-playground/internal/modes"
	"github.com/invakid404/cel-playground/internal/prefs"
	"github.com/invakid404/cel-playground/internal/share"
)

type errorResponse struct {
	Error string `json:"error"`
}

type shareResponse struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

type prefsBody struct {
	Mode  string      `json:"mode,omitempty"`
	Theme prefs.Theme `json:"theme,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusOf maps domain errors to HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, modes.ErrUnknownMode),
		errors.Is(err, catalog.ErrExampleNotFound):
		return http.StatusNotFound
	case errors.Is(err, share.ErrInvalidShareLink),
		errors.Is(err, prefs.ErrInvalidTheme):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// baseURL is the address share links point at
func (s *Server) baseURL(r *http.Request) string {
	if s.config.BaseURL != "" {
		return s.config.BaseURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	view, err := s.playground.LoadState(r.Context(), clientID(r), r.URL.Query().Get(share.QueryKey))
	if err != nil {
		s.logger.Error("failed to load playground state", zap.Error(err))
		http.Error(w, "failed to load the playground", http.StatusInternalServerError)
		return
	}

	html, err := s.page.render(view, s.config.Version)
	if err != nil {
		s.logger.Error("failed to render page", zap.Error(err))
		http.Error(w, "failed to render the playground", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func (s *Server) listModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.playground.Registry().List())
}

func (s *Server) selectMode(w http.ResponseWriter, r *http.Request) {
	view, err := s.playground.SelectMode(r.Context(), clientID(r), chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) listExamples(w http.ResponseWriter, r *http.Request) {
	groups, err := s.playground.Catalog().Groups(chi.URLParam(r, "mode"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) getExample(w http.ResponseWriter, r *http.Request) {
	state, err := s.playground.ApplyExample(chi.URLParam(r, "mode"), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var state share.State
	if !decodeBody(w, r, &state) {
		return
	}
	writeJSON(w, http.StatusOK, s.playground.Run(r.Context(), state))
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	var state share.State
	if !decodeBody(w, r, &state) {
		return
	}
	issues, err := s.playground.Check(state)
	if err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (s *Server) encodeShare(w http.ResponseWriter, r *http.Request) {
	var state share.State
	if !decodeBody(w, r, &state) {
		return
	}
	content, err := s.playground.Encode(state)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	link, err := share.WithContent(s.baseURL(r), content)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{URL: link, Content: content})
}

func (s *Server) decodeShare(w http.ResponseWriter, r *http.Request) {
	content := r.URL.Query().Get(share.QueryKey)
	if content == "" {
		writeError(w, http.StatusBadRequest, "missing content parameter")
		return
	}
	state, err := s.playground.Decode(content)
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) getPrefs(w http.ResponseWriter, r *http.Request) {
	client := clientID(r)
	writeJSON(w, http.StatusOK, prefsBody{
		Mode:  s.playground.Mode(r.Context(), client),
		Theme: s.playground.Theme(r.Context(), client),
	})
}

func (s *Server) putPrefs(w http.ResponseWriter, r *http.Request) {
	var body prefsBody
	if !decodeBody(w, r, &body) {
		return
	}
	client := clientID(r)

	if body.Theme != "" {
		theme, err := prefs.ParseTheme(string(body.Theme))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.playground.SetTheme(r.Context(), client, theme); err != nil {
			writeError(w, statusOf(err), err.Error())
			return
		}
	}
	if body.Mode != "" {
		if _, err := s.playground.SelectMode(r.Context(), client, body.Mode); err != nil {
			writeError(w, statusOf(err), err.Error())
			return
		}
	}
	s.getPrefs(w, r)
}

func (s *Server) toggleTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.playground.ToggleTheme(r.Context(), clientID(r))
	if err != nil {
		writeError(w, statusOf(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, prefsBody{Theme: theme})
}
