package store

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Workout is a stored session.
type Workout struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Exercises []Exercise `json:"exercises"`
}

// Exercise is one stored entry of a workout.
type Exercise struct {
	Position       int           `json:"position"`
	Name           string        `json:"name"`
	Kind           string        `json:"kind,omitempty"`
	TargetReps     uint32        `json:"target_reps,omitempty"`
	TargetDuration time.Duration `json:"target_duration,omitempty"`
	Completed      bool          `json:"completed"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	Held           time.Duration `json:"held,omitempty"`
}

// WorkoutRepository stores sessions and their exercise lists.
type WorkoutRepository struct {
	db *sql.DB
}

// Workouts returns the workout repository for this store.
func (s *Store) Workouts() *WorkoutRepository {
	return &WorkoutRepository{db: s.db}
}

// Create inserts a workout and its exercises in a single transaction.
func (r *WorkoutRepository) Create(w *Workout) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO sessions (id, created_at) VALUES (?, ?)`, w.ID, w.CreatedAt); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO session_exercises (session_id, position, name, kind, target_reps, target_duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range w.Exercises {
		ex := &w.Exercises[i]
		ex.Position = i
		if _, err := stmt.Exec(w.ID, i, ex.Name, ex.Kind, ex.TargetReps, ex.TargetDuration.Milliseconds()); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByID retrieves a workout with its exercises.
func (r *WorkoutRepository) GetByID(id string) (*Workout, error) {
	w := &Workout{}
	var ended sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, created_at, ended_at FROM sessions WHERE id = ?`,
		id,
	).Scan(&w.ID, &w.CreatedAt, &ended)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if ended.Valid {
		w.EndedAt = &ended.Time
	}

	w.Exercises, err = r.exercises(id)
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (r *WorkoutRepository) exercises(sessionID string) ([]Exercise, error) {
	rows, err := r.db.Query(
		`SELECT position, name, kind, target_reps, target_duration_ms, completed, completed_at, held_ms
		 FROM session_exercises WHERE session_id = ? ORDER BY position`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Exercise
	for rows.Next() {
		var (
			ex          Exercise
			targetMS    int64
			heldMS      int64
			completed   int
			completedAt sql.NullTime
		)
		if err := rows.Scan(&ex.Position, &ex.Name, &ex.Kind, &ex.TargetReps, &targetMS, &completed, &completedAt, &heldMS); err != nil {
			return nil, err
		}
		ex.TargetDuration = time.Duration(targetMS) * time.Millisecond
		ex.Held = time.Duration(heldMS) * time.Millisecond
		ex.Completed = completed != 0
		if completedAt.Valid {
			ex.CompletedAt = &completedAt.Time
		}
		out = append(out, ex)
	}

	return out, rows.Err()
}

// List retrieves workouts without their exercises, newest first.
func (r *WorkoutRepository) List(limit int) ([]*Workout, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, created_at, ended_at FROM sessions ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workouts []*Workout
	for rows.Next() {
		w := &Workout{}
		var ended sql.NullTime
		if err := rows.Scan(&w.ID, &w.CreatedAt, &ended); err != nil {
			return nil, err
		}
		if ended.Valid {
			w.EndedAt = &ended.Time
		}
		workouts = append(workouts, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return workouts, nil
}

// End marks a workout as ended. Ending twice keeps the first time.
func (r *WorkoutRepository) End(id string, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`,
		at, id,
	)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// CompleteExercise records the completion of the exercise at position.
func (r *WorkoutRepository) CompleteExercise(sessionID string, position int, held time.Duration, at time.Time) error {
	result, err := r.db.Exec(
		`UPDATE session_exercises SET completed = 1, completed_at = ?, held_ms = ?
		 WHERE session_id = ? AND position = ?`,
		at, held.Milliseconds(), sessionID, position,
	)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// Delete removes a workout and everything recorded for it.
func (r *WorkoutRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

func expectRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
