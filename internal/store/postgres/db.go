package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// Options configures the connection pool and query logging.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// SlowQuery is the duration above which a query is logged at warn.
	// Zero disables slow-query logging.
	SlowQuery time.Duration
	Logger    *slog.Logger
}

// Open connects to Postgres through the pgx stdlib driver and verifies the
// connection within ctx.
func Open(ctx context.Context, databaseURL string, opts Options) (*bun.DB, error) {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applyPool(sqlDB, opts)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := bun.NewDB(sqlDB, pgdialect.New())
	if opts.Logger != nil {
		db.AddQueryHook(newQueryLogger(opts.Logger, opts.SlowQuery))
	}
	return db, nil
}

func applyPool(sqlDB *sql.DB, opts Options) {
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func Ping(ctx context.Context, db *bun.DB) error {
	return db.PingContext(ctx)
}

// queryLogger logs failed statements at error and slow ones at warn.
// Conflicts the repositories translate into domain errors are not failures.
type queryLogger struct {
	log  *slog.Logger
	slow time.Duration
}

func newQueryLogger(log *slog.Logger, slow time.Duration) *queryLogger {
	return &queryLogger{log: log.With(slog.String("component", "postgres")), slow: slow}
}

func (h *queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *queryLogger) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	op := event.Operation()

	switch {
	case event.Err != nil && !expectedQueryError(event.Err):
		h.log.ErrorContext(ctx, "query failed",
			slog.String("operation", op),
			slog.Duration("elapsed", elapsed),
			slog.Any("err", event.Err),
		)
	case h.slow > 0 && elapsed >= h.slow:
		h.log.WarnContext(ctx, "slow query",
			slog.String("operation", op),
			slog.Duration("elapsed", elapsed),
			slog.String("query", event.Query),
		)
	}
}

func expectedQueryError(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	switch pgErrorCode(err) {
	case codeExclusionViolation, codeUniqueViolation, codeForeignKeyViolation:
		return true
	}
	return false
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
