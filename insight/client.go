// Package insight calls the external text-analysis service that converts
// a research question into a role-tagged issue payload.
package insight

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"insight-board/domain"
)

const (
	issuePath       = "/issues"
	maxResponseSize = 1 << 20
	tracerName      = "insight-board/insight"
)

// ServiceError is a non-success answer from the issue-generation service.
// Detail carries the service-provided message when the body had one.
type ServiceError struct {
	Status int
	Detail string
}

// Error picks the most specific message available: service detail, else
// the HTTP status text, else a generic fallback.
func (e *ServiceError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if text := http.StatusText(e.Status); text != "" {
		return fmt.Sprintf("issue service: %s", text)
	}
	return "issue service request failed"
}

// Client talks to the issue-generation endpoint.
type Client struct {
	base   string
	httpc  *http.Client
	logger *log.Logger
}

// New creates a client for the given base URL. The timeout bounds the
// whole call including body reads.
func New(base string, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		httpc:  &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type issueRequest struct {
	Question string `json:"question"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

// GenerateIssue posts the question and returns the raw issue payload.
// The caller decides what a usable payload looks like; this only fails on
// transport errors, non-success statuses and unparseable bodies.
func (c *Client) GenerateIssue(ctx context.Context, question string) (*domain.RawTaskPayload, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "insight.generate_issue")
	defer span.End()
	span.SetAttributes(attribute.Int("insight.question_chars", len(question)))

	body, err := sonic.ConfigStd.Marshal(issueRequest{Question: question})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode")
		return nil, fmt.Errorf("encode issue request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+issuePath, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request")
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		svcErr := &ServiceError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
		span.SetStatus(codes.Error, svcErr.Error())
		return nil, svcErr
	}

	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(resp.Body, maxResponseSize))
	var payload domain.RawTaskPayload
	if err := dec.Decode(&payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return nil, fmt.Errorf("decode issue response: %w", err)
	}

	c.logger.WithFields(log.Fields{
		"status":      resp.StatusCode,
		"duration_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}).Debug("issue generated")
	return &payload, nil
}

// readDetail extracts the FastAPI-style {"detail": ...} message, if any.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxResponseSize))
	if err != nil {
		return ""
	}
	var body errorBody
	if err := sonic.ConfigStd.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Detail
}
