package storage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BookmarkScanner/internal/config"
	"BookmarkScanner/internal/domain"
)

func sampleRecords() []domain.AnalysisRecord {
	action := "Read the proposal"
	captured := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	return []domain.AnalysisRecord{
		{
			URL: "https://x.com/alice/status/1", Title: "Generics", CapturedAt: captured,
			Kind: domain.KindAnalysis, ExecutiveSummary: "Generics", ActionPoint: &action,
		},
		{
			URL: "https://x.com/bob/status/2", Title: "X post", CapturedAt: captured.Add(time.Minute),
			Kind: domain.KindFallback, Topic: "X post", Summary: "Saved post 2 from x.com",
			Hashtags: []string{"#bookmark", "#x", "#social"},
		},
		{
			URL: "https://x.com/carol/status/3", Title: "Analysis failed", CapturedAt: captured.Add(2 * time.Minute),
			Kind: domain.KindError, Topic: "Error", Summary: "Analysis failed", Error: "timeout",
		},
	}
}

func TestSQLRepositorySaveRecordsPostgres(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewSQLRepository(db, DialectPostgres)
	records := sampleRecords()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO analysis_records (batch_id,url,title,kind,executive_summary,action_point,topic,summary,hashtags,error,captured_at) VALUES ($1,$2,")).
		WillReturnResult(sqlmock.NewResult(3, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE usage_counters SET value = value + $1 WHERE name = $2")).
		WithArgs(2, "total_analyzed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveRecords(context.Background(), "batch-1", records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO analysis_records").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err = NewSQLRepository(db, DialectPostgres).SaveRecords(context.Background(), "b", sampleRecords())
	require.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryUsage(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name, value FROM usage_counters")).
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).
			AddRow("total_analyzed", int64(12)).
			AddRow("total_exports", int64(3)))

	usage, err := NewSQLRepository(db, DialectPostgres).Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.Usage{TotalAnalyzed: 12, TotalExports: 3}, usage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRepositoryRecordExportUsesQuestionPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("UPDATE usage_counters SET value = value + ? WHERE name = ?")).
		WithArgs(1, "total_exports").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewSQLRepository(db, DialectSQLite).RecordExport(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, dialect, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db, dialect))
	repo := NewSQLRepository(db, dialect)

	records := sampleRecords()
	require.NoError(t, repo.SaveRecords(ctx, "batch-1", records))
	require.NoError(t, repo.RecordExport(ctx))

	usage, err := repo.Usage(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Usage{TotalAnalyzed: 2, TotalExports: 1}, usage)

	history, err := repo.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, records[2], history[0])
	assert.Equal(t, records[1], history[1])

	all, err := repo.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.NotNil(t, all[2].ActionPoint)
	assert.Equal(t, "Read the proposal", *all[2].ActionPoint)
}

func TestParseDialect(t *testing.T) {
	for in, want := range map[string]Dialect{"sqlite": DialectSQLite, "sqlite3": DialectSQLite, "postgres": DialectPostgres, "pq": DialectPostgres} {
		got, err := ParseDialect(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDialect("mysql")
	assert.Error(t, err)
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	require.NoError(t, repo.SaveRecords(ctx, "b", sampleRecords()))
	require.NoError(t, repo.RecordExport(ctx))

	usage, _ := repo.Usage(ctx)
	assert.Equal(t, domain.Usage{TotalAnalyzed: 2, TotalExports: 1}, usage)

	history, _ := repo.History(ctx, 1)
	require.Len(t, history, 1)
	assert.Equal(t, "https://x.com/carol/status/3", history[0].URL)
}
