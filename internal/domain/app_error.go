package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/asaskevich/govalidator"
)

// ErrorMetadata describes where and for whom a failure happened
type ErrorMetadata struct {
	Source        string            `json:"source,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	RequestID     string            `json:"request_id,omitempty"`
	UserID        string            `json:"user_id,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Validate checks the caller supplied identifiers
func (m ErrorMetadata) Validate() error {
	if m.Source != "" {
		if !govalidator.IsPrintableASCII(m.Source) || !govalidator.StringLength(m.Source, "1", "255") {
			return NewValidationError("metadata source must be printable ASCII, at most 255 characters")
		}
	}
	for name, id := range map[string]string{
		"correlation_id": m.CorrelationID,
		"request_id":     m.RequestID,
		"user_id":        m.UserID,
	} {
		if id == "" {
			continue
		}
		if !govalidator.Matches(id, `^[A-Za-z0-9_.:\-]{1,128}$`) {
			return NewValidationError(fmt.Sprintf("metadata %s contains invalid characters", name))
		}
	}
	return nil
}

// RecoverySnapshot records what the recovery engine attempted before the
// failure was surfaced.
type RecoverySnapshot struct {
	AutoRecovery    bool   `json:"auto_recovery"`
	NotifyUser      bool   `json:"notify_user"`
	RetryEnabled    bool   `json:"retry_enabled"`
	MaxAttempts     int    `json:"max_attempts"`
	RetryCount      int    `json:"retry_count"`
	BreakerEnabled  bool   `json:"breaker_enabled"`
	BreakerState    string `json:"breaker_state,omitempty"`
	FallbackEnabled bool   `json:"fallback_enabled"`
	FallbackTried   bool   `json:"fallback_tried"`
}

// AppError is the classified failure handed back to callers. Category,
// severity and message are computed once at construction.
type AppError struct {
	ID       string           `json:"id"`
	Code     ErrorCode        `json:"code"`
	Category ErrorCategory    `json:"category"`
	Severity Severity         `json:"severity"`
	Message  string           `json:"message"`
	Metadata ErrorMetadata    `json:"metadata"`
	Recovery RecoverySnapshot `json:"recovery"`

	cause           error
	includeInternal bool
}

// NewAppError classifies code and builds an immutable AppError
func NewAppError(id string, code ErrorCode, message string, metadata ErrorMetadata, snapshot RecoverySnapshot, cause error) (*AppError, error) {
	category, err := Classify(code)
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = DefaultMessage(category)
	}
	if metadata.Timestamp.IsZero() {
		metadata.Timestamp = time.Now().UTC()
	}
	if len(metadata.Extra) > 0 {
		extra := make(map[string]string, len(metadata.Extra))
		for k, v := range metadata.Extra {
			extra[k] = v
		}
		metadata.Extra = extra
	}
	return &AppError{
		ID:       id,
		Code:     code,
		Category: category,
		Severity: SeverityOf(category),
		Message:  message,
		Metadata: metadata,
		Recovery: snapshot,
		cause:    cause,
	}, nil
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%d %s/%s] %s: %v", e.Code, e.Category, e.Severity, e.Message, e.cause)
	}
	return fmt.Sprintf("[%d %s/%s] %s", e.Code, e.Category, e.Severity, e.Message)
}

// Unwrap returns the underlying failure
func (e *AppError) Unwrap() error {
	return e.cause
}

// Cause returns the underlying failure
func (e *AppError) Cause() error {
	return e.cause
}

// WithInternal returns a copy whose JSON form includes the underlying cause
func (e *AppError) WithInternal() *AppError {
	cp := *e
	cp.includeInternal = true
	return &cp
}

// IsRetryable reports whether the category is retried by default
func (e *AppError) IsRetryable() bool {
	return IsRetryableByDefault(e.Category)
}

type appErrorJSON struct {
	ID       string           `json:"id"`
	Code     ErrorCode        `json:"code"`
	Category ErrorCategory    `json:"category"`
	Severity Severity         `json:"severity"`
	Message  string           `json:"message"`
	Metadata ErrorMetadata    `json:"metadata"`
	Recovery RecoverySnapshot `json:"recovery"`
	Internal string           `json:"internal,omitempty"`
}

// MarshalJSON renders the serializable form. The cause is only included
// when requested with WithInternal.
func (e *AppError) MarshalJSON() ([]byte, error) {
	out := appErrorJSON{
		ID:       e.ID,
		Code:     e.Code,
		Category: e.Category,
		Severity: e.Severity,
		Message:  e.Message,
		Metadata: e.Metadata,
		Recovery: e.Recovery,
	}
	if e.includeInternal && e.cause != nil {
		out.Internal = e.cause.Error()
	}
	return json.Marshal(out)
}

// ObservabilityContext is the hand-off to external monitoring
type ObservabilityContext struct {
	Level LogLevel          `json:"level"`
	Tags  map[string]string `json:"tags"`
	Extra map[string]any    `json:"extra,omitempty"`
}

// ObservabilityContext maps the error to monitoring tags and a level
func (e *AppError) ObservabilityContext() ObservabilityContext {
	extra := map[string]any{
		"error_id":    e.ID,
		"retry_count": e.Recovery.RetryCount,
	}
	if e.Metadata.Source != "" {
		extra["source"] = e.Metadata.Source
	}
	if e.Metadata.CorrelationID != "" {
		extra["correlation_id"] = e.Metadata.CorrelationID
	}
	return ObservabilityContext{
		Level: LevelForSeverity(e.Severity),
		Tags: map[string]string{
			"error_code":     e.Code.String(),
			"error_category": string(e.Category),
			"error_severity": string(e.Severity),
		},
		Extra: extra,
	}
}

// LevelForSeverity maps a severity to a monitoring level
func LevelForSeverity(s Severity) LogLevel {
	switch s {
	case SeverityCritical, SeverityHigh:
		return LogLevelError
	case SeverityMedium:
		return LogLevelWarn
	default:
		return LogLevelInfo
	}
}
