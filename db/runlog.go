// Package db keeps a SQLite log of training runs and their evaluation
// metrics.
package db

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// TrainingRun is one row of the run log.
type TrainingRun struct {
	ID                int64
	ModelPath         string
	Components        int
	Family            string
	BIC               float64
	Rows              int
	Accuracy          float64
	MeanLogLikelihood float64
	Evaluated         bool
	Duration          time.Duration
	CreatedAt         time.Time
}

// RunLog wraps the runs database.
type RunLog struct {
	db *sql.DB
}

// Open opens (and if needed creates) the run log at path.
func Open(path string) (*RunLog, error) {
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	query := `
    CREATE TABLE IF NOT EXISTS training_runs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_path VARCHAR(255),
        components INTEGER,
        family VARCHAR(20),
        bic REAL,
        rows INTEGER,
        accuracy REAL,
        mean_log_likelihood REAL,
        evaluated BOOLEAN,
        duration_ms INTEGER,
        created_at DATETIME
    );`
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &RunLog{db: database}, nil
}

// Record inserts a run.
func (l *RunLog) Record(run TrainingRun) error {
	_, err := l.db.Exec(`
        INSERT INTO training_runs
        (model_path, components, family, bic, rows, accuracy, mean_log_likelihood, evaluated, duration_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ModelPath, run.Components, run.Family, run.BIC, run.Rows,
		run.Accuracy, run.MeanLogLikelihood, run.Evaluated,
		run.Duration.Milliseconds(), run.CreatedAt,
	)
	return err
}

// Recent returns the newest n runs.
func (l *RunLog) Recent(n int) ([]TrainingRun, error) {
	rows, err := l.db.Query(`
        SELECT id, model_path, components, family, bic, rows, accuracy,
               mean_log_likelihood, evaluated, duration_ms, created_at
        FROM training_runs ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		var run TrainingRun
		var durationMs int64
		if err := rows.Scan(&run.ID, &run.ModelPath, &run.Components, &run.Family,
			&run.BIC, &run.Rows, &run.Accuracy, &run.MeanLogLikelihood,
			&run.Evaluated, &durationMs, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Close closes the underlying database.
func (l *RunLog) Close() error {
	return l.db.Close()
}
