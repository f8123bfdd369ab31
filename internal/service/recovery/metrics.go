package recovery

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
)

var (
	MeasureErrors             = stats.Int64("recovery/errors", "Classified terminal errors", stats.UnitDimensionless)
	MeasureRetries            = stats.Int64("recovery/retries", "Retries scheduled by the retry executor", stats.UnitDimensionless)
	MeasureFallbacks          = stats.Int64("recovery/fallbacks", "Fallback handler invocations", stats.UnitDimensionless)
	MeasureBreakerTransitions = stats.Int64("recovery/breaker_transitions", "Circuit breaker state changes", stats.UnitDimensionless)
	MeasureLatency            = stats.Float64("recovery/latency", "End-to-end latency of ExecuteWithRecovery", stats.UnitMilliseconds)
)

var (
	KeyCode     = tag.MustNewKey("error_code")
	KeyCategory = tag.MustNewKey("error_category")
	KeySeverity = tag.MustNewKey("error_severity")
	KeyState    = tag.MustNewKey("breaker_state")
	KeyOutcome  = tag.MustNewKey("outcome")
)

// Views exposes the recovery measures to whichever metrics exporter is configured
var Views = []*view.View{
	{
		Name:        "recovery/errors_total",
		Measure:     MeasureErrors,
		Description: "Count of classified terminal errors",
		TagKeys:     []tag.Key{KeyCode, KeyCategory, KeySeverity},
		Aggregation: view.Count(),
	},
	{
		Name:        "recovery/retries_total",
		Measure:     MeasureRetries,
		Description: "Sum of retries",
		TagKeys:     []tag.Key{KeyCategory},
		Aggregation: view.Sum(),
	},
	{
		Name:        "recovery/fallbacks_total",
		Measure:     MeasureFallbacks,
		Description: "Count of fallback invocations by outcome",
		TagKeys:     []tag.Key{KeyCategory, KeyOutcome},
		Aggregation: view.Count(),
	},
	{
		Name:        "recovery/breaker_transitions_total",
		Measure:     MeasureBreakerTransitions,
		Description: "Count of breaker transitions by target state",
		TagKeys:     []tag.Key{KeyCode, KeyState},
		Aggregation: view.Count(),
	},
	{
		Name:        "recovery/latency",
		Measure:     MeasureLatency,
		Description: "Latency distribution of recovered calls",
		TagKeys:     []tag.Key{KeyCategory, KeyOutcome},
		Aggregation: view.Distribution(1, 5, 10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000),
	},
}

// RegisterViews registers the recovery views with OpenCensus
func RegisterViews() error {
	return view.Register(Views...)
}

func recordCount(ctx context.Context, m *stats.Int64Measure, mutators ...tag.Mutator) {
	_ = stats.RecordWithTags(ctx, mutators, m.M(1))
}

func recordError(ctx context.Context, e *domain.AppError) {
	recordCount(ctx, MeasureErrors,
		tag.Upsert(KeyCode, e.Code.String()),
		tag.Upsert(KeyCategory, string(e.Category)),
		tag.Upsert(KeySeverity, string(e.Severity)),
	)
}

func recordRetries(ctx context.Context, category domain.ErrorCategory, n int) {
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{tag.Upsert(KeyCategory, string(category))},
		MeasureRetries.M(int64(n)),
	)
}

func recordFallback(ctx context.Context, category domain.ErrorCategory, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	recordCount(ctx, MeasureFallbacks,
		tag.Upsert(KeyCategory, string(category)),
		tag.Upsert(KeyOutcome, outcome),
	)
}

func recordTransition(code domain.ErrorCode, to BreakerState) {
	recordCount(context.Background(), MeasureBreakerTransitions,
		tag.Upsert(KeyCode, code.String()),
		tag.Upsert(KeyState, string(to)),
	)
}

func recordLatency(ctx context.Context, category domain.ErrorCategory, success bool, elapsed time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	_ = stats.RecordWithTags(ctx,
		[]tag.Mutator{
			tag.Upsert(KeyCategory, string(category)),
			tag.Upsert(KeyOutcome, outcome),
		},
		MeasureLatency.M(float64(elapsed)/float64(time.Millisecond)),
	)
}
