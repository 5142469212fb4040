package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"BookmarkScanner/internal/domain"
	"BookmarkScanner/internal/ports"
)

const (
	recordsTable  = "analysis_records"
	countersTable = "usage_counters"

	counterAnalyzed = "total_analyzed"
	counterExports  = "total_exports"
)

var recordColumns = []string{
	"batch_id", "url", "title", "kind", "executive_summary", "action_point",
	"topic", "summary", "hashtags", "error", "captured_at",
}

// SQLRepository persists analysis history and usage counters.
type SQLRepository struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var _ ports.ResultRepository = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB with the placeholder style of dialect.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(dialect.placeholders()),
	}
}

// SaveRecords appends records to the history and bumps total_analyzed by the
// number of records that are not error placeholders.
func (r *SQLRepository) SaveRecords(ctx context.Context, batchID string, records []domain.AnalysisRecord) error {
	if r.db == nil || len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := r.sb.Insert(recordsTable).Columns(recordColumns...)
	analyzed := 0
	for _, rec := range records {
		hashtags, err := json.Marshal(nonNil(rec.Hashtags))
		if err != nil {
			return fmt.Errorf("marshal hashtags: %w", err)
		}
		insert = insert.Values(
			batchID,
			rec.URL,
			rec.Title,
			string(rec.Kind),
			rec.ExecutiveSummary,
			nullable(rec.ActionPoint),
			rec.Topic,
			rec.Summary,
			string(hashtags),
			rec.Error,
			rec.CapturedAt.UTC().Format(time.RFC3339Nano),
		)
		if rec.Kind != domain.KindError {
			analyzed++
		}
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}

	if analyzed > 0 {
		if err := r.bump(ctx, tx, counterAnalyzed, analyzed); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// RecordExport increments total_exports.
func (r *SQLRepository) RecordExport(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	return r.bump(ctx, r.db, counterExports, 1)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *SQLRepository) bump(ctx context.Context, exec execer, name string, delta int) error {
	query, args, err := r.sb.Update(countersTable).
		Set("value", sq.Expr("value + ?", delta)).
		Where(sq.Eq{"name": name}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build counter update: %w", err)
	}
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("bump %s: %w", name, err)
	}
	return nil
}

// Usage reads the persisted counters.
func (r *SQLRepository) Usage(ctx context.Context) (domain.Usage, error) {
	var usage domain.Usage
	if r.db == nil {
		return usage, nil
	}

	query, args, err := r.sb.Select("name", "value").From(countersTable).ToSql()
	if err != nil {
		return usage, fmt.Errorf("build usage query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return usage, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name  string
			value int64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return usage, fmt.Errorf("scan counter: %w", err)
		}
		switch name {
		case counterAnalyzed:
			usage.TotalAnalyzed = value
		case counterExports:
			usage.TotalExports = value
		}
	}
	if err := rows.Err(); err != nil {
		return usage, fmt.Errorf("rows iteration: %w", err)
	}
	return usage, nil
}

// History returns up to limit records, newest first.
func (r *SQLRepository) History(ctx context.Context, limit int) ([]domain.AnalysisRecord, error) {
	if r.db == nil {
		return nil, nil
	}

	builder := r.sb.Select(recordColumns[1:]...).From(recordsTable).OrderBy("id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalysisRecord
	for rows.Next() {
		var (
			rec        domain.AnalysisRecord
			kind       string
			action     sql.NullString
			hashtags   string
			capturedAt string
		)
		if err := rows.Scan(
			&rec.URL, &rec.Title, &kind, &rec.ExecutiveSummary, &action,
			&rec.Topic, &rec.Summary, &hashtags, &rec.Error, &capturedAt,
		); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = domain.RecordKind(kind)
		if action.Valid {
			a := action.String
			rec.ActionPoint = &a
		}
		if err := json.Unmarshal([]byte(hashtags), &rec.Hashtags); err != nil {
			return nil, fmt.Errorf("decode hashtags: %w", err)
		}
		if len(rec.Hashtags) == 0 {
			rec.Hashtags = nil
		}
		if rec.CapturedAt, err = time.Parse(time.RFC3339Nano, capturedAt); err != nil {
			return nil, fmt.Errorf("parse captured_at: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
