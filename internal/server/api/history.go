package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/ayusman/formcoach/internal/store"
)

// HistoryHandler serves stored workouts.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a HistoryHandler reading from s.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type listWorkoutsResponse struct {
	Workouts []*store.Workout `json:"workouts"`
}

type workoutResponse struct {
	*store.Workout
	Repetitions []store.Repetition `json:"repetitions"`
	Feedback    []store.Feedback   `json:"feedback"`
}

// HandleList handles GET /api/history?limit=.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	workouts, err := h.store.Workouts().List(limit)
	if err != nil {
		log.WithError(err).Error("failed to list workouts")
		writeError(w, http.StatusInternalServerError, "Failed to list workouts")
		return
	}
	if workouts == nil {
		workouts = []*store.Workout{}
	}
	writeJSON(w, http.StatusOK, listWorkoutsResponse{Workouts: workouts})
}

// HandleGet handles GET /api/history/{id}.
func (h *HistoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	workout, err := h.store.Workouts().GetByID(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	reps, err := h.store.Repetitions().ListBySession(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	feedback, err := h.store.Feedback().ListBySession(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	resp := workoutResponse{Workout: workout, Repetitions: reps, Feedback: feedback}
	if resp.Repetitions == nil {
		resp.Repetitions = []store.Repetition{}
	}
	if resp.Feedback == nil {
		resp.Feedback = []store.Feedback{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /api/history/{id}.
func (h *HistoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Workouts().Delete(mux.Vars(r)["id"]); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
