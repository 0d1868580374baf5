package store

import (
	"database/sql"
	"time"
)

// Feedback is one recorded delivery attempt.
type Feedback struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Exercise  string    `json:"exercise"`
	Kind      string    `json:"kind"`
	RepNumber uint32    `json:"rep_number"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackRepository stores feedback delivery attempts.
type FeedbackRepository struct {
	db *sql.DB
}

// Feedback returns the feedback repository for this store.
func (s *Store) Feedback() *FeedbackRepository {
	return &FeedbackRepository{db: s.db}
}

// Create inserts a delivery attempt and sets its ID.
func (r *FeedbackRepository) Create(f *Feedback) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO feedback (session_id, exercise, kind, rep_number, delivered, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.SessionID, f.Exercise, f.Kind, f.RepNumber, f.Delivered, f.Error, f.CreatedAt,
	)
	if err != nil {
		return err
	}

	f.ID, err = result.LastInsertId()
	return err
}

// ListBySession returns the delivery attempts of a session, oldest first.
func (r *FeedbackRepository) ListBySession(sessionID string) ([]Feedback, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, exercise, kind, rep_number, delivered, error, created_at
		 FROM feedback WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		var delivered int
		if err := rows.Scan(&f.ID, &f.SessionID, &f.Exercise, &f.Kind, &f.RepNumber, &delivered, &f.Error, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Delivered = delivered != 0
		out = append(out, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
