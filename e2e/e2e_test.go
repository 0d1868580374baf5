package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/formcoach/internal/app"
	"github.com/ayusman/formcoach/internal/coach"
	"github.com/ayusman/formcoach/internal/metrics"
	"github.com/ayusman/formcoach/internal/pose"
	"github.com/ayusman/formcoach/internal/pose/posetest"
	"github.com/ayusman/formcoach/internal/server"
	"github.com/ayusman/formcoach/internal/session"
	"github.com/ayusman/formcoach/internal/store"
)

func writeJournalHook(t *testing.T, dir, journal string) {
	t.Helper()
	hookDir := filepath.Join(dir, "journal")
	require.NoError(t, os.MkdirAll(hookDir, 0o755))
	manifest := `{"name":"journal","version":"1.0.0","executable":"run.sh","kinds":["corrective"]}`
	script := "#!/bin/sh\ncat >> " + journal + "\necho >> " + journal + "\necho '{\"success\":true}'\n"
	require.NoError(t, os.WriteFile(filepath.Join(hookDir, "hook.json"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(hookDir, "run.sh"), []byte(script), 0o755))
}

func saggingPushUps(n int) []pose.Frame {
	cycle := posetest.Concat(posetest.Linear(170, 110, 10), posetest.Linear(116, 170, 10))
	var angles []float64
	for i := 0; i < n; i++ {
		angles = append(angles, cycle...)
	}
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return posetest.Sequence(start, 50*time.Millisecond, posetest.Frames(angles, func(a float64) pose.Frame {
		return posetest.SaggingPushUp(a, 0.15)
	}))
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	journal := filepath.Join(tmpDir, "journal.jsonl")

	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	require.NoError(t, err)
	defer s.Close()

	hooksDir := filepath.Join(tmpDir, "hooks")
	writeJournalHook(t, hooksDir, journal)
	hooks := coach.NewHookRegistry(hooksDir)
	require.NoError(t, hooks.Discover())
	require.Len(t, hooks.List(), 1)

	m, reg := metrics.NewTestManagerAndRegistry()
	hub := server.NewEventHub("", m)
	dispatcher := append(coach.MultiDispatcher{hub}, hooks.HookDispatchers(5*time.Second)...)

	application := app.New(app.Config{
		Store:      s,
		Dispatcher: dispatcher,
		Metrics:    m,
		Session:    session.DefaultConfig(),
	})
	defer application.Close()

	srv := server.New(server.Config{App: application, Hub: hub, Gatherer: reg})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	defer hub.Close()

	client := ts.Client()
	var id string

	t.Run("CreateSession", func(t *testing.T) {
		resp, err := client.Post(
			ts.URL+"/api/sessions",
			"application/json",
			strings.NewReader(`{"exercises": [{"name": "Push-Ups", "target_reps": 2}, {"name": "Squats"}]}`),
		)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var st session.Status
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
		id = st.ID
	})
	require.NotEmpty(t, id)

	t.Run("DetectorPipeline", func(t *testing.T) {
		d := pose.NewMockDetector(saggingPushUps(2)...)
		require.NoError(t, application.RunDetector(context.Background(), id, d))

		sess, err := application.Session(id)
		require.NoError(t, err)
		reps := sess.Repetitions()
		require.Len(t, reps, 2)
		for _, r := range reps {
			assert.NotEmpty(t, r.Rep.Issues())
		}
	})

	t.Run("CorrectiveFeedbackReachesHook", func(t *testing.T) {
		require.Eventually(t, func() bool {
			data, err := os.ReadFile(journal)
			return err == nil && strings.Count(string(data), "\n") >= 2
		}, 5*time.Second, 20*time.Millisecond)

		data, err := os.ReadFile(journal)
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)

		var req coach.HookRequest
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &req))
		assert.Equal(t, coach.KindCorrective, req.Message.Kind)
		assert.Equal(t, uint32(2), req.Message.RepNumber)
		assert.Contains(t, req.Message.Text, "Keep your hips up")
	})

	t.Run("EndSession", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("HistoryKeepsTheWorkout", func(t *testing.T) {
		var history struct {
			EndedAt     *time.Time         `json:"ended_at"`
			Exercises   []store.Exercise   `json:"exercises"`
			Repetitions []store.Repetition `json:"repetitions"`
			Feedback    []store.Feedback   `json:"feedback"`
		}
		require.Eventually(t, func() bool {
			resp, err := client.Get(ts.URL + "/api/history/" + id)
			if err != nil {
				return false
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return false
			}
			if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
				return false
			}
			return history.EndedAt != nil && len(history.Feedback) == 2
		}, 2*time.Second, 20*time.Millisecond)

		require.Len(t, history.Repetitions, 2)
		assert.True(t, history.Exercises[0].Completed)
		assert.False(t, history.Exercises[1].Completed)
		for _, f := range history.Feedback {
			assert.Equal(t, "corrective", f.Kind)
			assert.True(t, f.Delivered)
		}
	})
}
