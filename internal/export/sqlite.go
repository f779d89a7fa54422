// Package export persists canonical tables outside the process.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/signalsfoundry/astrometry-normalizer/core"
	"github.com/signalsfoundry/astrometry-normalizer/model"
)

// SQLiteSink writes canonical tables into a SQLite database. Each write is a
// dataset row plus one measurement row per canonical row. NaN and infinite
// values are stored as NULL; a NULL epoch or quant1 reads back as NaN.
type SQLiteSink struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	conn.SetMaxOpenConns(1)

	s := &SQLiteSink{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteSink) Close() error {
	return s.conn.Close()
}

func (s *SQLiteSink) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS datasets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			row_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			dataset_id TEXT NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			epoch REAL,
			quant1 REAL,
			quant1_err REAL,
			quant2 REAL,
			quant2_err REAL,
			quant_type TEXT NOT NULL CHECK (quant_type IN ('radec', 'seppa', 'rv')),
			PRIMARY KEY (dataset_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_type ON measurements(dataset_id, quant_type)`,
	}
	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// DatasetRecord identifies a stored dataset. RowCount is filled on read.
type DatasetRecord struct {
	ID        string
	Name      string
	Source    string
	CreatedAt time.Time
	RowCount  int
}

// WriteDataset stores table under rec in a single transaction. Writing the
// same ID twice replaces the earlier rows.
func (s *SQLiteSink) WriteDataset(ctx context.Context, rec DatasetRecord, table *core.CanonicalTable) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM measurements WHERE dataset_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("clear measurements: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO datasets (id, name, source, row_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Source, table.Len(), rec.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO measurements (dataset_id, seq, epoch, quant1, quant1_err, quant2, quant2_err, quant_type)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, r := range table.Rows() {
		if _, err := stmt.ExecContext(ctx,
			rec.ID, i, nullFloat(&r.Epoch), nullFloat(&r.Quant1),
			nullFloat(r.Quant1Err), nullFloat(r.Quant2), nullFloat(r.Quant2Err),
			r.QuantType.String(),
		); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListDatasets returns every stored dataset, oldest first.
func (s *SQLiteSink) ListDatasets(ctx context.Context) ([]DatasetRecord, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, source, row_count, created_at FROM datasets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetRecord
	for rows.Next() {
		var (
			rec     DatasetRecord
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Source, &rec.RowCount, &created); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		rec.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteDataset removes a dataset and its measurements. Unknown IDs are not
// an error.
func (s *SQLiteSink) DeleteDataset(ctx context.Context, id string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM measurements WHERE dataset_id = ?`, id); err != nil {
		return fmt.Errorf("delete measurements: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ReadDataset loads the canonical rows stored under id, in write order.
func (s *SQLiteSink) ReadDataset(ctx context.Context, id string) ([]model.CanonicalRow, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT epoch, quant1, quant1_err, quant2, quant2_err, quant_type
		 FROM measurements WHERE dataset_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	var out []model.CanonicalRow
	for rows.Next() {
		var (
			r                           model.CanonicalRow
			epoch, q1, q1err, q2, q2err sql.NullFloat64
			quantType                   string
		)
		if err := rows.Scan(&epoch, &q1, &q1err, &q2, &q2err, &quantType); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		qt, err := model.ParseQuantType(quantType)
		if err != nil {
			return nil, err
		}
		r.QuantType = qt
		r.Epoch = orNaN(epoch)
		r.Quant1 = orNaN(q1)
		r.Quant1Err = fromNull(q1err)
		r.Quant2 = fromNull(q2)
		r.Quant2Err = fromNull(q2err)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v = model.Finite(v); v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Float(v.Float64)
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
