package recovery

import (
	"context"
	"time"

	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
	"github.com/t3-nico/boxlog-app-sub014/pkg/logger"
	"github.com/t3-nico/boxlog-app-sub014/pkg/ratelimiter"
)

const noticeNamespace = "notice"

// ThrottledNotifier caps how many notices per error code and user reach the
// next notifier within a window. Dropped notices are logged at debug level.
type ThrottledNotifier struct {
	next    domain.NoticeNotifier
	limiter *ratelimiter.RateLimiter
	logger  logger.Logger
}

// NewThrottledNotifier allows limit notices per window for each code and user
func NewThrottledNotifier(next domain.NoticeNotifier, limiter *ratelimiter.RateLimiter, limit int, window time.Duration, log logger.Logger) *ThrottledNotifier {
	limiter.SetPolicy(noticeNamespace, limit, window)
	return &ThrottledNotifier{next: next, limiter: limiter, logger: log}
}

// Notify forwards notice unless its key is over the limit
func (n *ThrottledNotifier) Notify(ctx context.Context, notice domain.UserNotice) error {
	key := notice.Code.String() + ":" + notice.UserID
	if !n.limiter.Allow(noticeNamespace, key) {
		n.logger.WithFields(map[string]interface{}{
			"error_code":  int(notice.Code),
			"user_id":     notice.UserID,
			"retry_after": n.limiter.RetryAfter(noticeNamespace, key).String(),
		}).Debug("User notice throttled")
		return nil
	}
	return n.next.Notify(ctx, notice)
}

// LogNotifier writes notices to the log. It is the default surface when no
// user-facing channel is wired.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Notify(_ context.Context, notice domain.UserNotice) error {
	n.logger.WithFields(map[string]interface{}{
		"error_id":       notice.ErrorID,
		"error_code":     int(notice.Code),
		"error_severity": string(notice.Severity),
		"user_id":        notice.UserID,
		"correlation_id": notice.CorrelationID,
		"retryable":      notice.Retryable,
	}).Info("User notice: " + notice.Message)
	return nil
}

// LogReporter is the log-backed domain.ObservabilityReporter
type LogReporter struct {
	logger logger.Logger
}

func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{logger: log}
}

// Report logs the tags and extras of oc at oc.Level
func (r *LogReporter) Report(_ context.Context, e *domain.AppError, oc domain.ObservabilityContext) {
	fields := make(map[string]interface{}, len(oc.Tags)+len(oc.Extra))
	for k, v := range oc.Extra {
		fields[k] = v
	}
	for k, v := range oc.Tags {
		fields[k] = v
	}
	logAt(r.logger.WithFields(fields), oc.Level, "Error reported: "+e.Message)
}
