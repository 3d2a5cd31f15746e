// Package api exposes the form configuration, entry and export core
// over a small REST surface plus a websocket event stream.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fieldforms/fieldforms-go/internal/appstate"
	"github.com/fieldforms/fieldforms-go/internal/database/repositories"
	"github.com/fieldforms/fieldforms-go/internal/forms/entry"
	"github.com/fieldforms/fieldforms-go/internal/forms/export"
	"github.com/fieldforms/fieldforms-go/internal/forms/schema"
	"github.com/fieldforms/fieldforms-go/internal/forms/trigger"
	"github.com/fieldforms/fieldforms-go/internal/services/pubsub"
)

// Server bundles the handlers' dependencies.
type Server struct {
	configs  *repositories.ConfigurationRepository
	entries  *repositories.EntryRepository
	exporter *export.Writer
	engine   *trigger.Engine
	sessions *SessionManager
	events   *pubsub.PubSub
	appState *appstate.Store
}

// NewServer creates the API server.
func NewServer(
	configs *repositories.ConfigurationRepository,
	entries *repositories.EntryRepository,
	exporter *export.Writer,
	engine *trigger.Engine,
	sessions *SessionManager,
	events *pubsub.PubSub,
	appState *appstate.Store,
) *Server {
	return &Server{
		configs:  configs,
		entries:  entries,
		exporter: exporter,
		engine:   engine,
		sessions: sessions,
		events:   events,
		appState: appState,
	}
}

// Routes mounts all API endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/configurations", s.listConfigurations)
		r.Post("/configurations", s.createConfiguration)
		r.Get("/configurations/{id}", s.getConfiguration)
		r.Put("/configurations/{id}", s.updateConfiguration)
		r.Delete("/configurations/{id}", s.deleteConfiguration)

		r.Get("/entries", s.listEntries)
		r.Post("/entries", s.createEntry)
		r.Get("/entries/{id}", s.getEntry)
		r.Put("/entries/{id}", s.updateEntry)
		r.Delete("/entries/{id}", s.deleteEntry)
		r.Post("/entries/{id}/save", s.saveEntry)
		r.Post("/entries/{id}/copy", s.copyEntry)
		r.Post("/entries/{id}/field-change", s.fieldChange)
		r.Post("/entries/{id}/timers/{entryKey}/toggle", s.toggleTimer)
		r.Post("/entries/{id}/timers/{entryKey}/reset", s.resetTimer)
		r.Post("/entries/{id}/export", s.exportEntry)

		r.Get("/appstate", s.getAppState)
		r.Put("/appstate", s.putAppState)
	})
	r.Get("/ws", s.handleWebsocket)
}

// --- configurations ---

func (s *Server) listConfigurations(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.configs.FindAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) createConfiguration(w http.ResponseWriter, r *http.Request) {
	var form schema.FormSchema
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, schema.NewValidationError("invalid configuration document: %v", err))
		return
	}
	form.ID = 0
	if err := schema.Sanitize(&form); err != nil {
		writeError(w, err)
		return
	}
	if err := s.configs.Save(r.Context(), &form); err != nil {
		writeError(w, err)
		return
	}
	s.events.PublishAll(pubsub.TopicConfigurationUpdated, form.ID)
	writeJSON(w, http.StatusCreated, form)
}

func (s *Server) getConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	form, err := s.configs.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := schema.Sanitize(form); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) updateConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var form schema.FormSchema
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, schema.NewValidationError("invalid configuration document: %v", err))
		return
	}
	form.ID = id
	if err := schema.Sanitize(&form); err != nil {
		writeError(w, err)
		return
	}
	if err := s.configs.Save(r.Context(), &form); err != nil {
		writeError(w, err)
		return
	}
	s.events.PublishAll(pubsub.TopicConfigurationUpdated, form.ID)
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) deleteConfiguration(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := s.configs.Delete(r.Context(), &schema.FormSchema{ID: id}); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- entries ---

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.entries.FindAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// createEntry instantiates a new entry from a saved configuration,
// persists it to get an id, and opens an editing session.
func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigurationID uint `json:"configurationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, schema.NewValidationError("invalid request body: %v", err))
		return
	}

	form, err := s.configs.FindByID(r.Context(), req.ConfigurationID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := schema.Sanitize(form); err != nil {
		writeError(w, err)
		return
	}

	e := entry.New(form)
	if _, err := s.entries.Save(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}

	session := s.sessions.Open(e)
	s.sessions.StartConfiguredTimers(session)
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	session, err := s.openSession(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	_ = session.Do(func(e *entry.FormEntry) error {
		writeJSON(w, http.StatusOK, e)
		return nil
	})
}

// updateEntry replaces the entry document wholesale. Last write wins;
// there is no field-level merge.
func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var e entry.FormEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, schema.NewValidationError("invalid entry document: %v", err))
		return
	}
	e.ID = id
	if _, err := s.entries.Save(r.Context(), &e); err != nil {
		writeError(w, err)
		return
	}
	// Any open session is stale after a wholesale replace.
	s.sessions.Close(id)
	s.events.Publish(pubsub.TopicEntryUpdated, entryFilter(id), e.ID)
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.sessions.Close(id)
	if err := s.entries.DeleteByID(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// saveEntry persists the current in-session state of the entry.
func (s *Server) saveEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	session := s.sessions.Get(id)
	if session == nil {
		writeError(w, &repositories.NotFoundError{Resource: "entry session", ID: id})
		return
	}
	err := session.Do(func(e *entry.FormEntry) error {
		_, saveErr := s.entries.Save(r.Context(), e)
		return saveErr
	})
	if err != nil {
		writeError(w, err)
		return
	}
	s.events.Publish(pubsub.TopicEntryUpdated, entryFilter(id), id)
	w.WriteHeader(http.StatusNoContent)
}

// copyEntry clones a saved entry for a new submission. Values on
// fields that do not persist across copies reset to their defaults.
func (s *Server) copyEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	source, err := s.entries.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	dup := source.Copy()
	if _, err := s.entries.Save(r.Context(), dup); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

// fieldChange applies one user edit and runs the trigger engine. The
// mutation stays in the session until an explicit save.
func (s *Server) fieldChange(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req struct {
		EntryKey    string `json:"entryKey"`
		Value       any    `json:"value"`
		ScreenIndex int    `json:"screenIndex"`
		RowIndex    int    `json:"rowIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, schema.NewValidationError("invalid request body: %v", err))
		return
	}

	session, err := s.openSession(r, id)
	if err != nil {
		writeError(w, err)
		return
	}

	var result *trigger.Result
	err = session.Do(func(e *entry.FormEntry) error {
		e.SetValue(req.EntryKey, req.Value)
		var engineErr error
		result, engineErr = s.engine.OnFieldChange(e, req.EntryKey, req.ScreenIndex, req.RowIndex)
		return engineErr
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.events.Publish(pubsub.TopicEntryUpdated, entryFilter(id), id)
	if result != nil {
		s.events.Publish(pubsub.TopicEntryRowsDuplicated, entryFilter(id), result)
	}
	if result == nil {
		writeJSON(w, http.StatusOK, &trigger.Result{})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) toggleTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	session, err := s.openSession(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	state, err := s.sessions.ToggleTimer(session, chi.URLParam(r, "entryKey"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

func (s *Server) resetTimer(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	session, err := s.openSession(r, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.sessions.ResetTimer(session, chi.URLParam(r, "entryKey")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// exportEntry writes the entry's CSV file and reports where it landed.
// A failed export aborts quietly on the state side: nothing in the
// entry is modified.
func (s *Server) exportEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var path string
	var exportErr error
	if session := s.sessions.Get(id); session != nil {
		_ = session.Do(func(e *entry.FormEntry) error {
			path, exportErr = s.exporter.Write(r.Context(), e)
			return nil
		})
	} else {
		e, err := s.entries.FindByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		path, exportErr = s.exporter.Write(r.Context(), e)
	}
	if exportErr != nil {
		writeError(w, exportErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// --- app state ---

func (s *Server) getAppState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.appState.Snapshot())
}

func (s *Server) putAppState(w http.ResponseWriter, r *http.Request) {
	var req appstate.State
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, schema.NewValidationError("invalid app state: %v", err))
		return
	}
	s.appState.SetDrawerOpen(req.DrawerOpen)
	if req.ActiveConfigType != "" {
		s.appState.SetActiveConfigType(req.ActiveConfigType)
	}
	writeJSON(w, http.StatusOK, s.appState.Snapshot())
}

// --- helpers ---

// openSession returns the open session for an entry, loading and
// opening it on demand.
func (s *Server) openSession(r *http.Request, id uint) (*EntrySession, error) {
	if session := s.sessions.Get(id); session != nil {
		return session, nil
	}
	e, err := s.entries.FindByID(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return s.sessions.Open(e), nil
}

func idParam(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		writeError(w, schema.NewValidationError("invalid id %q", raw))
		return 0, false
	}
	return uint(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var validationErr *schema.ValidationError
	var notFoundErr *repositories.NotFoundError
	var exportErr *export.ExportError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &exportErr):
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}
