package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/trace"

	"github.com/t3-nico/boxlog-app-sub014/config"
	"github.com/t3-nico/boxlog-app-sub014/pkg/logger"
)

func TestInitTracing_Disabled(t *testing.T) {
	log := logger.NewTestLogger(t)

	err := InitTracing(&config.TracingConfig{Enabled: false}, log)
	require.NoError(t, err)
	assert.Empty(t, log.Entries())
}

func TestInitTracing_WithNoneExporters(t *testing.T) {
	cfg := &config.TracingConfig{
		Enabled:             true,
		SamplingProbability: 0.5,
		TraceExporter:       "none",
		MetricsExporter:     "none",
	}

	require.NoError(t, InitTracing(cfg, logger.NewTestLogger(t)))
}

func TestInitTracing_UnsupportedExporters(t *testing.T) {
	log := logger.NewTestLogger(t)

	err := InitTracing(&config.TracingConfig{Enabled: true, TraceExporter: "azure"}, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported trace exporter: azure")

	err = initMetricsExporters(&config.TracingConfig{MetricsExporter: "statsd"}, log, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported metrics exporter: statsd")
}

func TestTraceExporters_MissingSettings(t *testing.T) {
	log := logger.NewTestLogger(t)

	tests := []struct {
		name     string
		exporter string
		wantErr  string
	}{
		{"jaeger", "jaeger", "Jaeger endpoint is required"},
		{"zipkin", "zipkin", "Zipkin endpoint is required"},
		{"stackdriver", "stackdriver", "Stackdriver project ID is required"},
		{"datadog", "datadog", "Datadog agent address is required"},
		{"xray", "xray", "AWS region is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := initTraceExporter(&config.TracingConfig{TraceExporter: tt.exporter}, log)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMetricsExporters_MissingSettings(t *testing.T) {
	log := logger.NewTestLogger(t)

	err := initMetricsExporters(&config.TracingConfig{MetricsExporter: " stackdriver "}, log, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize stackdriver metrics exporter")

	err = initMetricsExporters(&config.TracingConfig{MetricsExporter: "datadog"}, log, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Datadog agent address is required")
}

func TestDatadogAddress(t *testing.T) {
	assert.Equal(t, "dd:8126", datadogAddress(&config.TracingConfig{DatadogAgentAddress: "dd:8126", AgentEndpoint: "agent:8126"}))
	assert.Equal(t, "agent:8126", datadogAddress(&config.TracingConfig{AgentEndpoint: "agent:8126"}))
	assert.Equal(t, "", datadogAddress(&config.TracingConfig{}))
}

func TestRegisterViews(t *testing.T) {
	measure := stats.Int64("tracing_test/events", "test events", stats.UnitDimensionless)
	v := &view.View{
		Name:        "tracing_test/events_total",
		Measure:     measure,
		Aggregation: view.Count(),
	}

	require.NoError(t, registerViews([]*view.View{v}))
	defer view.Unregister(v)

	assert.NotNil(t, view.Find("tracing_test/events_total"))
	require.NoError(t, registerViews(nil))
}

func TestHTTPHandler(t *testing.T) {
	var sawSpan bool
	h := HTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSpan = trace.FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recovery.stats", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, sawSpan)
}

func TestDefaultTracer(t *testing.T) {
	tracer := NewTracer()

	ctx, span := tracer.StartServiceSpan(context.Background(), "RecoveryService", "Execute")
	require.NotNil(t, span)
	assert.Equal(t, span, trace.FromContext(ctx))

	assert.NotPanics(t, func() {
		tracer.AddAttribute(ctx, "error_code", 3001)
		tracer.AddAttribute(ctx, "category", "storage")
		tracer.AddAttribute(ctx, "retried", true)
		tracer.AddAttribute(ctx, "retries", int64(2))
		tracer.AddAttribute(ctx, "other", 1.5)
		tracer.MarkSpanError(ctx, errors.New("boom"))
		tracer.MarkSpanError(ctx, nil)
		tracer.EndSpan(span, errors.New("boom"))
	})
}

func TestHelpers_NoSpanInContext(t *testing.T) {
	assert.NotPanics(t, func() {
		AddAttribute(context.Background(), "k", "v")
		MarkSpanError(context.Background(), errors.New("boom"))
	})
}

func TestTraceMethodWithResult(t *testing.T) {
	v, err := TraceMethodWithResult(context.Background(), "svc", "ok", func(ctx context.Context) (int, error) {
		assert.NotNil(t, trace.FromContext(ctx))
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = TraceMethodWithResult(context.Background(), "svc", "fail", func(ctx context.Context) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}
