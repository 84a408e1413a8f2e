package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/storage"
	"github.com/michaelbrown/mentor/internal/suggest"
)

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// writeStoreError maps storage errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "script not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// --- Execution handlers ---

type executeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, err := s.mentor.Engine.Exec(r.Context(), sandbox.ExecOpts{Code: req.Code})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type suggestionsRequest struct {
	Code   string   `json:"code"`
	Errors []string `json:"errors"`
	Policy string   `json:"policy"`
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	var req suggestionsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var policy suggest.Policy
	if req.Policy != "" {
		p, err := suggest.ParsePolicy(req.Policy)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		policy = p
	}

	list, err := s.mentor.Suggest(r.Context(), policy, req.Code, req.Errors)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// --- Session handlers ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	views := []sessionView{}
	for _, as := range s.sessions.List() {
		views = append(views, as.View())
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	as := s.sessions.Create()
	writeJSON(w, http.StatusCreated, map[string]string{"id": as.ID})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	as, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, as.View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type runResponse struct {
	Result      sandbox.Result       `json:"result"`
	Generation  uint64               `json:"generation,omitempty"`
	Suggestions []suggest.Suggestion `json:"suggestions,omitempty"`
}

// handleRunSession executes code in a session and returns immediately; the
// suggestions arrive later through GET or the websocket.
func (s *Server) handleRunSession(w http.ResponseWriter, r *http.Request) {
	as, ok := s.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	res, gen := as.Run(s.mentor.Engine, req.Code)
	writeJSON(w, http.StatusAccepted, runResponse{Result: res, Generation: gen})
}

// --- Script handlers ---

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	opts := storage.ScriptListOptions{Query: r.URL.Query().Get("q")}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			opts.Limit = n
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			opts.Offset = n
		}
	}

	scripts, err := s.store.ListScripts(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if scripts == nil {
		scripts = []storage.Script{}
	}
	writeJSON(w, http.StatusOK, scripts)
}

type scriptRequest struct {
	Title string `json:"title"`
	Code  string `json:"code"`
}

func (s *Server) handleCreateScript(w http.ResponseWriter, r *http.Request) {
	var req scriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	title := req.Title
	if title == "" {
		title = generateTitle(req.Code)
	}

	sc := &storage.Script{
		ID:       uuid.New().String(),
		Title:    title,
		Code:     req.Code,
		Language: storage.LanguageJavaScript,
	}
	if err := s.store.CreateScript(r.Context(), sc); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, sc)
}

type scriptView struct {
	storage.Script
	LastRun *sandbox.Result `json:"last_run,omitempty"`
}

func (s *Server) handleGetScript(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	run, err := s.store.LastRun(r.Context(), sc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scriptView{Script: *sc, LastRun: run})
}

func (s *Server) handleUpdateScript(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	var req scriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Title != "" {
		sc.Title = req.Title
	}
	if req.Code != "" {
		sc.Code = req.Code
	}

	if err := s.store.UpdateScript(r.Context(), sc); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *Server) handleDeleteScript(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteScript(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunScript executes a saved script, records the run and answers with
// the result and one completed suggestion cycle.
func (s *Server) handleRunScript(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	res, err := s.mentor.Engine.Exec(r.Context(), sandbox.ExecOpts{Code: sc.Code})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err := s.store.SaveRun(r.Context(), sc.ID, *res); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	list, err := s.mentor.Suggest(r.Context(), "", sc.Code, res.Errors)
	if err != nil {
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Result: *res, Suggestions: list})
}

func (s *Server) handleExportScript(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	run, err := s.store.LastRun(r.Context(), sc.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(storage.ExportMarkdown(sc, run)))
	case "json":
		data, err := storage.ExportJSON(sc, run)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		writeError(w, http.StatusBadRequest, "unknown format: "+format)
	}
}

// --- Provider handlers ---

type providerInfo struct {
	Name     string            `json:"name"`
	Models   map[string]string `json:"models"`
	IsOllama bool              `json:"is_ollama"`
	Active   bool              `json:"active"`
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers := []providerInfo{}
	for name, p := range s.cfg.Providers {
		providers = append(providers, providerInfo{
			Name:     name,
			Models:   p.Models,
			IsOllama: p.IsOllama(),
			Active:   s.mentor.Remote != nil && name == s.mentor.Provider,
		})
	}
	sort.Slice(providers, func(i, j int) bool {
		return providers[i].Name < providers[j].Name
	})
	writeJSON(w, http.StatusOK, providers)
}

// generateTitle derives a script title from its first non-empty line.
func generateTitle(code string) string {
	t := strings.TrimSpace(code)
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimPrefix(t, "//")
	t = strings.TrimSpace(t)
	if len(t) > 80 {
		t = t[:80] + "..."
	}
	return t
}
