package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	questionEventName   = "board.question"
	questionEventDomain = "board"
	tracerName          = "insight-board/api"
)

// questionRequestMetrics collects stage timings for the ask route and
// emits them once as a structured log event plus span attributes.
type questionRequestMetrics struct {
	logger           *log.Logger
	span             trace.Span
	start            time.Time
	authDuration     time.Duration
	generateDuration time.Duration
	encodeDuration   time.Duration
	cardsProduced    int
	errorStage       string
}

func newQuestionRequestMetrics(ctx context.Context, logger *log.Logger) (*questionRequestMetrics, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, questionEventName)
	return &questionRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *questionRequestMetrics) ObserveAuth(d time.Duration) {
	if d > 0 {
		m.authDuration = d
	}
}

func (m *questionRequestMetrics) ObserveGenerate(d time.Duration) {
	if d > 0 {
		m.generateDuration = d
	}
}

func (m *questionRequestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *questionRequestMetrics) SetCardsProduced(count int) {
	if count < 0 {
		count = 0
	}
	m.cardsProduced = count
}

func (m *questionRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log finalizes the span and emits one observability event.
func (m *questionRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.route", "/api/questions"),
		attribute.Int("http.status_code", status),
		attribute.Float64("board.question.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int("board.question.cards_produced", m.cardsProduced),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.question.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.generateDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.question.generate_ms", durationToMillis(m.generateDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("board.question.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("board.question.error_stage", m.errorStage))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		if err != nil {
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, m.errorStage)
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":    questionEventName,
		"event.domain":  questionEventDomain,
		"severity_text": severityText(status, err),
		"attributes":    attributeMap(attrs),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	m.logger.WithFields(fields).Info("observability.event")
}

func severityText(status int, err error) string {
	if err != nil || status >= http.StatusInternalServerError {
		return "ERROR"
	}
	return "INFO"
}

func attributeMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
