package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/obsidianstack/healthboard/pkg/types"
)

// Postgres is a Store backed by a single measurements table.
type Postgres struct {
	db     *sql.DB
	recent int
}

// NewPostgres connects to dsn, verifies the connection and creates the table.
func NewPostgres(ctx context.Context, dsn string, recent int) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("history: postgres backend requires a dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ping database: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create tables: %w", err)
	}
	return &Postgres{db: db, recent: recent}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS metric_history (
			id         BIGSERIAL PRIMARY KEY,
			pass_ts    TIMESTAMPTZ NOT NULL,
			metric_id  TEXT NOT NULL,
			value      DOUBLE PRECISION,
			status     TEXT NOT NULL,
			entry_ts   TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS metric_history_metric_ts
			ON metric_history (metric_id, pass_ts, id);
	`)
	return err
}

func (p *Postgres) latest(ctx context.Context, tx *sql.Tx) (time.Time, bool, error) {
	var ts sql.NullTime
	if err := tx.QueryRowContext(ctx, `SELECT MAX(pass_ts) FROM metric_history`).Scan(&ts); err != nil {
		return time.Time{}, false, err
	}
	return ts.Time, ts.Valid, nil
}

// Append inserts every measurement of snap in one transaction.
func (p *Postgres) Append(ctx context.Context, snap Snapshot) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin transaction: %w", err)
	}
	defer tx.Rollback()

	last, ok, err := p.latest(ctx, tx)
	if err != nil {
		return fmt.Errorf("history: latest snapshot: %w", err)
	}
	if ok && snap.Timestamp.Before(last) {
		return ErrOutOfOrder
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO metric_history (pass_ts, metric_id, value, status, entry_ts)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("history: prepare insert: %w", err)
	}
	defer stmt.Close()

	for id, e := range snap.Measurements {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = snap.Timestamp
		}
		if _, err := stmt.ExecContext(ctx, snap.Timestamp, id, e.Value, string(e.Status), ts); err != nil {
			return fmt.Errorf("history: insert %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Record inserts a single measurement. Rows sharing pass_ts form one
// snapshot, so a measurement at the latest timestamp joins it.
func (p *Postgres) Record(ctx context.Context, metricID string, value *float64, status types.Status, ts time.Time) error {
	return p.Append(ctx, Snapshot{
		Timestamp:    ts,
		Measurements: map[string]Entry{metricID: {Value: value, Status: status, Timestamp: ts}},
	})
}

// Entries implements Reader.
func (p *Postgres) Entries(ctx context.Context, metricID string) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT value, status, entry_ts
		FROM metric_history
		WHERE metric_id = $1
		ORDER BY pass_ts, id
	`, metricID)
	if err != nil {
		return nil, fmt.Errorf("history: query %s: %w", metricID, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			value  sql.NullFloat64
			status string
			e      Entry
		)
		if err := rows.Scan(&value, &status, &e.Timestamp); err != nil {
			return nil, err
		}
		if value.Valid {
			v := value.Float64
			e.Value = &v
		}
		e.Status = types.Status(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentValues implements Reader.
func (p *Postgres) RecentValues(ctx context.Context, metricID string, window int) ([]float64, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT value FROM (
			SELECT value, pass_ts, id
			FROM metric_history
			WHERE metric_id = $1
			ORDER BY pass_ts DESC, id DESC
			LIMIT $2
		) recent
		WHERE value IS NOT NULL
		ORDER BY pass_ts, id
	`, metricID, windowOr(window, p.recent))
	if err != nil {
		return nil, fmt.Errorf("history: query %s: %w", metricID, err)
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// StatusStartDate implements Reader.
func (p *Postgres) StatusStartDate(ctx context.Context, metricID string, current types.Status, now time.Time) (time.Time, error) {
	entries, err := p.Entries(ctx, metricID)
	if err != nil {
		return time.Time{}, err
	}
	return statusStart(entries, current, now), nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }
