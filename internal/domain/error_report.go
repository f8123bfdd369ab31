package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination mocks/mock_error_report_repository.go -package mocks github.com/t3-nico/boxlog-app-sub014/internal/domain ErrorReportRepository
//go:generate mockgen -destination mocks/mock_notice_notifier.go -package mocks github.com/t3-nico/boxlog-app-sub014/internal/domain NoticeNotifier
//go:generate mockgen -destination mocks/mock_observability_reporter.go -package mocks github.com/t3-nico/boxlog-app-sub014/internal/domain ObservabilityReporter

// ErrorReport is a stored terminal failure
type ErrorReport struct {
	ID            string        `json:"id"`
	Code          ErrorCode     `json:"code"`
	Category      ErrorCategory `json:"category"`
	Severity      Severity      `json:"severity"`
	Message       string        `json:"message"`
	Source        string        `json:"source,omitempty"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	UserID        string        `json:"user_id,omitempty"`
	RetryCount    int           `json:"retry_count"`
	FallbackTried bool          `json:"fallback_tried"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// NewErrorReport flattens an AppError for storage
func NewErrorReport(e *AppError) *ErrorReport {
	return &ErrorReport{
		ID:            e.ID,
		Code:          e.Code,
		Category:      e.Category,
		Severity:      e.Severity,
		Message:       e.Message,
		Source:        e.Metadata.Source,
		CorrelationID: e.Metadata.CorrelationID,
		UserID:        e.Metadata.UserID,
		RetryCount:    e.Recovery.RetryCount,
		FallbackTried: e.Recovery.FallbackTried,
		OccurredAt:    e.Metadata.Timestamp,
	}
}

// ListErrorReportsRequest filters the recent reports
type ListErrorReportsRequest struct {
	Category ErrorCategory
	Severity Severity
	Limit    int
}

// ErrorReportRepository stores terminal failures for alerting pipelines
type ErrorReportRepository interface {
	Save(ctx context.Context, report *ErrorReport) error
	ListRecent(ctx context.Context, req ListErrorReportsRequest) ([]*ErrorReport, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserNotice is the user-facing rendering of a terminal failure
type UserNotice struct {
	ErrorID       string    `json:"error_id"`
	Code          ErrorCode `json:"code"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
	UserID        string    `json:"user_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Retryable     bool      `json:"retryable"`
}

// NewUserNotice builds the notice for an AppError
func NewUserNotice(e *AppError) UserNotice {
	return UserNotice{
		ErrorID:       e.ID,
		Code:          e.Code,
		Severity:      e.Severity,
		Message:       e.Message,
		UserID:        e.Metadata.UserID,
		CorrelationID: e.Metadata.CorrelationID,
		Retryable:     e.IsRetryable(),
	}
}

// NoticeNotifier delivers notices to whatever surface shows them to users
type NoticeNotifier interface {
	Notify(ctx context.Context, notice UserNotice) error
}

// ObservabilityReporter forwards classified failures to external monitoring
type ObservabilityReporter interface {
	Report(ctx context.Context, e *AppError, oc ObservabilityContext)
}
