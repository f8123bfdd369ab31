package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
)

const (
	defaultReportLimit = 50
	maxReportLimit     = 500
)

// psql is a Squirrel StatementBuilder configured for PostgreSQL
var errorReportPsql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var errorReportColumns = []string{
	"id", "code", "category", "severity", "message", "source",
	"correlation_id", "user_id", "retry_count", "fallback_tried", "occurred_at",
}

// ErrorReportRepository implements domain.ErrorReportRepository using PostgreSQL
type ErrorReportRepository struct {
	db *sql.DB
}

// NewErrorReportRepository creates a new ErrorReportRepository
func NewErrorReportRepository(db *sql.DB) domain.ErrorReportRepository {
	return &ErrorReportRepository{db: db}
}

// Save inserts a report. Saving the same ID twice is a no-op.
func (r *ErrorReportRepository) Save(ctx context.Context, report *domain.ErrorReport) error {
	query, args, err := errorReportPsql.
		Insert("error_reports").
		Columns(errorReportColumns...).
		Values(
			report.ID, int(report.Code), string(report.Category), string(report.Severity), report.Message,
			nullString(report.Source), nullString(report.CorrelationID), nullString(report.UserID),
			report.RetryCount, report.FallbackTried, report.OccurredAt.UTC(),
		).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert error report: %w", err)
	}
	return nil
}

// ListRecent returns the newest reports first, optionally filtered
func (r *ErrorReportRepository) ListRecent(ctx context.Context, req domain.ListErrorReportsRequest) ([]*domain.ErrorReport, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultReportLimit
	}
	if limit > maxReportLimit {
		limit = maxReportLimit
	}

	builder := errorReportPsql.
		Select(errorReportColumns...).
		From("error_reports").
		OrderBy("occurred_at DESC").
		Limit(uint64(limit))
	if req.Category != "" {
		builder = builder.Where(sq.Eq{"category": string(req.Category)})
	}
	if req.Severity != "" {
		builder = builder.Where(sq.Eq{"severity": string(req.Severity)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query error reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*domain.ErrorReport, 0)
	for rows.Next() {
		var (
			report                      domain.ErrorReport
			code                        int
			category, severity          string
			source, correlationID, user sql.NullString
		)
		if err := rows.Scan(
			&report.ID, &code, &category, &severity, &report.Message,
			&source, &correlationID, &user,
			&report.RetryCount, &report.FallbackTried, &report.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan error report: %w", err)
		}
		report.Code = domain.ErrorCode(code)
		report.Category = domain.ErrorCategory(category)
		report.Severity = domain.Severity(severity)
		report.Source = source.String
		report.CorrelationID = correlationID.String
		report.UserID = user.String
		reports = append(reports, &report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating error reports: %w", err)
	}

	return reports, nil
}

// DeleteOlderThan removes reports that occurred before cutoff
func (r *ErrorReportRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := errorReportPsql.
		Delete("error_reports").
		Where(sq.Lt{"occurred_at": cutoff.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete error reports: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return deleted, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
