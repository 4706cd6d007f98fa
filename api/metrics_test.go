package api

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setupTestTracer(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	return exporter, func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	}
}

func TestQuestionRequestMetricsLogsObservabilityEvent(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	exporter, restore := setupTestTracer(t)
	defer restore()

	metrics, spanCtx := newQuestionRequestMetrics(context.Background(), logger)
	if spanCtx == nil {
		t.Fatal("expected a span context")
	}
	if !trace.SpanFromContext(spanCtx).SpanContext().IsValid() {
		t.Fatal("span context not propagated")
	}

	metrics.start = metrics.start.Add(-50 * time.Millisecond)
	metrics.ObserveAuth(10 * time.Millisecond)
	metrics.ObserveGenerate(25 * time.Millisecond)
	metrics.ObserveEncode(5 * time.Millisecond)
	metrics.SetCardsProduced(9)

	metrics.Log(http.StatusOK, nil)

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry emitted")
	}
	if entry.Message != "observability.event" {
		t.Fatalf("unexpected message %q", entry.Message)
	}
	if entry.Data["event.name"] != questionEventName {
		t.Fatalf("unexpected event name %v", entry.Data["event.name"])
	}
	if entry.Data["event.domain"] != questionEventDomain {
		t.Fatalf("unexpected event domain %v", entry.Data["event.domain"])
	}
	if entry.Data["severity_text"] != "INFO" {
		t.Fatalf("unexpected severity %v", entry.Data["severity_text"])
	}

	attrs, ok := entry.Data["attributes"].(map[string]any)
	if !ok {
		t.Fatalf("attributes not a map: %#v", entry.Data["attributes"])
	}
	if attrs["http.route"] != "/api/questions" {
		t.Fatalf("unexpected route %v", attrs["http.route"])
	}
	if attrs["board.question.cards_produced"] != int64(9) {
		t.Fatalf("unexpected cards produced %v (%T)", attrs["board.question.cards_produced"], attrs["board.question.cards_produced"])
	}
	if attrs["board.question.total_ms"] == float64(0) {
		t.Fatal("expected non-zero total duration")
	}
	if _, ok := attrs["board.question.generate_ms"]; !ok {
		t.Fatal("expected generate duration attribute")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != questionEventName {
		t.Fatalf("unexpected span name %q", spans[0].Name)
	}
}

func TestQuestionRequestMetricsErrorSeverity(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	_, restore := setupTestTracer(t)
	defer restore()

	metrics, _ := newQuestionRequestMetrics(context.Background(), logger)
	metrics.SetErrorStage("generate")
	metrics.Log(http.StatusBadGateway, errors.New("upstream exploded"))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("no log entry emitted")
	}
	if entry.Data["severity_text"] != "ERROR" {
		t.Fatalf("unexpected severity %v", entry.Data["severity_text"])
	}
	if entry.Data["error"] != "upstream exploded" {
		t.Fatalf("unexpected error field %v", entry.Data["error"])
	}
	attrs := entry.Data["attributes"].(map[string]any)
	if attrs["board.question.error_stage"] != "generate" {
		t.Fatalf("unexpected error stage %v", attrs["board.question.error_stage"])
	}
}
