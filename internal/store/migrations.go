package store

// runMigrations executes all database migrations. Every statement is
// idempotent.
func (s *Store) runMigrations() error {
	migrations := []string{
		// one row per workout
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			ended_at DATETIME
		)`,

		// the ordered exercise list of a workout and its completion
		`CREATE TABLE IF NOT EXISTS session_exercises (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			target_reps INTEGER NOT NULL DEFAULT 0,
			target_duration_ms INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			completed_at DATETIME,
			held_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (session_id, position)
		)`,

		// completed repetitions, metrics kept as JSON
		`CREATE TABLE IF NOT EXISTS repetitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			exercise_position INTEGER NOT NULL,
			exercise TEXT NOT NULL,
			rep_number INTEGER NOT NULL,
			form_score REAL NOT NULL,
			quality TEXT NOT NULL CHECK(quality IN ('unknown', 'poor', 'fair', 'good', 'excellent')),
			duration_ms INTEGER NOT NULL,
			metrics TEXT NOT NULL DEFAULT '[]',
			completed_at DATETIME NOT NULL
		)`,

		// feedback delivery attempts
		`CREATE TABLE IF NOT EXISTS feedback (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			exercise TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('corrective', 'praise', 'count')),
			rep_number INTEGER NOT NULL,
			delivered INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_repetitions_session_id ON repetitions(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_session_id ON feedback(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
