package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/ayusman/formcoach/internal/classifier"
	"github.com/ayusman/formcoach/internal/counter"
)

// Repetition is a stored repetition.
type Repetition struct {
	ID               int64  `json:"id"`
	SessionID        string `json:"session_id"`
	ExercisePosition int    `json:"exercise_position"`
	Exercise         string `json:"exercise"`
	counter.RepetitionData
}

// RepetitionRepository stores completed repetitions.
type RepetitionRepository struct {
	db *sql.DB
}

// Repetitions returns the repetition repository for this store.
func (s *Store) Repetitions() *RepetitionRepository {
	return &RepetitionRepository{db: s.db}
}

// Create inserts a repetition and sets its ID.
func (r *RepetitionRepository) Create(rep *Repetition) error {
	metrics := rep.FormMetrics
	if metrics == nil {
		metrics = classifier.FormMetrics{}
	}
	data, err := json.Marshal(metrics)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(
		`INSERT INTO repetitions (session_id, exercise_position, exercise, rep_number, form_score, quality, duration_ms, metrics, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.SessionID, rep.ExercisePosition, rep.Exercise, rep.RepNumber, rep.FormScore,
		rep.Quality.String(), rep.Duration.Milliseconds(), string(data), rep.CompletedAt,
	)
	if err != nil {
		return err
	}

	rep.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns the repetitions of a session in completion order.
func (r *RepetitionRepository) ListBySession(sessionID string) ([]Repetition, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, exercise_position, exercise, rep_number, form_score, quality, duration_ms, metrics, completed_at
		 FROM repetitions WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reps []Repetition
	for rows.Next() {
		var (
			rep        Repetition
			quality    string
			durationMS int64
			metrics    string
		)
		err := rows.Scan(&rep.ID, &rep.SessionID, &rep.ExercisePosition, &rep.Exercise, &rep.RepNumber,
			&rep.FormScore, &quality, &durationMS, &metrics, &rep.CompletedAt)
		if err != nil {
			return nil, err
		}

		rep.Quality = counter.ParseQuality(quality)
		rep.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(metrics), &rep.FormMetrics); err != nil {
			return nil, err
		}
		reps = append(reps, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reps, nil
}

// CountBySession returns how many repetitions a session completed.
func (r *RepetitionRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM repetitions WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
