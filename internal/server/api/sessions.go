package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/app"
	"github.com/ayusman/formcoach/internal/apperr"
	"github.com/ayusman/formcoach/internal/classifier"
	"github.com/ayusman/formcoach/internal/session"
	"github.com/ayusman/formcoach/internal/store"
)

// SessionHandler serves the live session endpoints.
type SessionHandler struct {
	app *app.App
}

// NewSessionHandler creates a SessionHandler backed by a.
func NewSessionHandler(a *app.App) *SessionHandler {
	return &SessionHandler{app: a}
}

type exerciseRequest struct {
	Name           string `json:"name"`
	TargetReps     uint32 `json:"target_reps"`
	TargetDuration string `json:"target_duration"`
}

type createSessionRequest struct {
	Exercises []exerciseRequest `json:"exercises"`
}

type selectRequest struct {
	Index int `json:"index"`
}

type listSessionsResponse struct {
	Sessions []session.Status `json:"sessions"`
}

type repetitionsResponse struct {
	SessionID   string           `json:"session_id"`
	Live        bool             `json:"live"`
	Repetitions []session.Record `json:"repetitions"`
}

type parseResponse struct {
	Name          string `json:"name"`
	Recognized    bool   `json:"recognized"`
	Kind          string `json:"kind,omitempty"`
	DurationBased bool   `json:"duration_based,omitempty"`
}

func (r createSessionRequest) exercises() ([]session.Exercise, error) {
	if len(r.Exercises) == 0 {
		return nil, session.ErrNoExercises
	}

	out := make([]session.Exercise, 0, len(r.Exercises))
	for i, ex := range r.Exercises {
		name := strings.TrimSpace(ex.Name)
		if name == "" {
			return nil, apperr.ErrValidation.WithCause(fmt.Errorf("exercise %d: name is required", i))
		}
		e := session.Exercise{Name: name, TargetReps: ex.TargetReps}
		if ex.TargetDuration != "" {
			d, err := time.ParseDuration(ex.TargetDuration)
			if err != nil || d < 0 {
				return nil, apperr.ErrValidation.WithCause(fmt.Errorf("exercise %d: invalid target_duration %q", i, ex.TargetDuration))
			}
			e.TargetDuration = d
		}
		out = append(out, e)
	}
	return out, nil
}

// HandleCreate handles POST /api/sessions.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	exercises, err := req.exercises()
	if err != nil {
		writeErr(w, err)
		return
	}

	s, err := h.app.CreateSession(exercises)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.Status())
}

// HandleList handles GET /api/sessions.
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessions := h.app.Sessions()
	resp := listSessionsResponse{Sessions: make([]session.Status, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, s.Status())
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /api/sessions/{id}.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.Session(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Status())
}

// HandleDelete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.app.EndSession(mux.Vars(r)["id"]); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAction handles POST /api/sessions/{id}/{action} for the navigation
// and lifecycle actions.
func (h *SessionHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s, err := h.app.Session(vars["id"])
	if err != nil {
		writeErr(w, err)
		return
	}

	var action func() error
	switch vars["action"] {
	case "next":
		action = s.Next
	case "previous":
		action = s.Previous
	case "restart":
		action = s.Restart
	case "pause":
		action = s.Pause
	case "resume":
		action = s.Resume
	case "complete":
		action = s.Complete
	default:
		writeError(w, http.StatusNotFound, "Unknown action")
		return
	}

	if err := action(); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Status())
}

// HandleSelect handles POST /api/sessions/{id}/select.
func (h *SessionHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.Session(mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, err)
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := s.Select(req.Index); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Status())
}

// HandleRepetitions handles GET /api/sessions/{id}/repetitions. Ended
// sessions are served from the history store when one is configured.
func (h *SessionHandler) HandleRepetitions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s, err := h.app.Session(id)
	if err == nil {
		reps := s.Repetitions()
		if reps == nil {
			reps = []session.Record{}
		}
		writeJSON(w, http.StatusOK, repetitionsResponse{SessionID: id, Live: true, Repetitions: reps})
		return
	}

	st := h.app.Store()
	if !errors.Is(err, app.ErrSessionNotFound) || st == nil {
		writeErr(w, err)
		return
	}

	if _, err := st.Workouts().GetByID(id); err != nil {
		writeErr(w, err)
		return
	}
	stored, err := st.Repetitions().ListBySession(id)
	if err != nil {
		log.WithError(err).WithField("session", id).Error("failed to list repetitions")
		writeError(w, http.StatusInternalServerError, "Failed to list repetitions")
		return
	}
	writeJSON(w, http.StatusOK, repetitionsResponse{SessionID: id, Repetitions: toRecords(stored)})
}

func toRecords(reps []store.Repetition) []session.Record {
	out := make([]session.Record, 0, len(reps))
	for _, rep := range reps {
		out = append(out, session.Record{
			ExerciseIndex: rep.ExercisePosition,
			Exercise:      rep.Exercise,
			Rep:           rep.RepetitionData,
		})
	}
	return out
}

// HandleParse handles GET /api/exercises/parse?name=.
func (h *SessionHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	resp := parseResponse{Name: name}
	if kind, ok := classifier.ParseExerciseName(name); ok {
		resp.Recognized = true
		resp.Kind = kind.String()
		resp.DurationBased = kind.IsDurationBased()
	}
	writeJSON(w, http.StatusOK, resp)
}
