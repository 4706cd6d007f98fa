package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"insight-board/domain"
	"insight-board/insight"
	"insight-board/workflow"
)

type mockAuth struct{ err error }

func (m mockAuth) UserIDFromAuthHeader(string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return "user", nil
}

type stubService struct {
	mu      sync.Mutex
	payload *domain.RawTaskPayload
	err     error
	calls   int
	block   chan struct{}
}

func (s *stubService) GenerateIssue(ctx context.Context, question string) (*domain.RawTaskPayload, error) {
	s.mu.Lock()
	s.calls++
	block := s.block
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return s.payload, s.err
}

func (s *stubService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func nullLogger() *log.Logger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func newRegistry(svc workflow.QuestionService) *workflow.Registry {
	return workflow.NewRegistry(func(string) *workflow.Controller {
		return workflow.NewController(svc, nullLogger(), nil)
	})
}

func doJSON(t *testing.T, handler echo.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func decodeBoard(t *testing.T, rec *httptest.ResponseRecorder) boardResponse {
	t.Helper()
	var resp boardResponse
	if err := sonic.ConfigStd.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestPostQuestionSuccess(t *testing.T) {
	svc := &stubService{payload: &domain.RawTaskPayload{
		Severity: "High",
		Tasks:    []byte(`{"Dev":["fix bug"],"PM":["plan"]}`),
	}}
	handler := postQuestion(newRegistry(svc), mockAuth{}, nullLogger())

	rec := doJSON(t, handler, http.MethodPost, "/api/questions", `{"question":"why do users leave?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBoard(t, rec)
	if len(resp.Board[domain.GroupDev]) != 1 || resp.Board[domain.GroupDev][0].Title != "fix bug" {
		t.Fatalf("unexpected board: %v", resp.Board)
	}
	if resp.Counts[domain.GroupDev] != 1 || resp.Counts[domain.GroupPM] != 1 || resp.Counts[domain.GroupDesign] != 0 {
		t.Fatalf("unexpected counts: %v", resp.Counts)
	}
}

func TestPostQuestionEmptyIsSilentlyIgnored(t *testing.T) {
	svc := &stubService{}
	handler := postQuestion(newRegistry(svc), mockAuth{}, nullLogger())

	rec := doJSON(t, handler, http.MethodPost, "/api/questions", `{"question":"   "}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if svc.callCount() != 0 {
		t.Fatalf("expected no external calls, got %d", svc.callCount())
	}
}

func TestPostQuestionRejectsSecondInFlight(t *testing.T) {
	svc := &stubService{
		payload: &domain.RawTaskPayload{Severity: "Low", Tasks: []byte(`{"Dev":["a"]}`)},
		block:   make(chan struct{}),
	}
	reg := newRegistry(svc)
	handler := postQuestion(reg, mockAuth{}, nullLogger())

	firstDone := make(chan error, 1)
	go func() {
		e := echo.New()
		req := httptest.NewRequest(http.MethodPost, "/api/questions", strings.NewReader(`{"question":"q1"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, "Bearer token")
		firstDone <- handler(e.NewContext(req, httptest.NewRecorder()))
	}()

	deadline := time.Now().Add(time.Second)
	for svc.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first request never reached the service")
		}
		time.Sleep(time.Millisecond)
	}

	rec := doJSON(t, handler, http.MethodPost, "/api/questions", `{"question":"q2"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	close(svc.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if svc.callCount() != 1 {
		t.Fatalf("expected exactly one external call, got %d", svc.callCount())
	}
}

func TestPostQuestionServiceFailureSurfacesDetail(t *testing.T) {
	svc := &stubService{err: &insight.ServiceError{Status: http.StatusInternalServerError, Detail: "Issue Error: boom"}}
	reg := newRegistry(svc)
	handler := postQuestion(reg, mockAuth{}, nullLogger())

	rec := doJSON(t, handler, http.MethodPost, "/api/questions", `{"question":"q"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if rec.Body.String() != "Issue Error: boom" {
		t.Fatalf("expected the service detail, got %q", rec.Body.String())
	}

	// The failed submit must not have installed anything.
	if reg.Session("user").Board().CardCount() != 0 {
		t.Fatal("failure changed the board")
	}
}

func TestPostQuestionUnauthorized(t *testing.T) {
	svc := &stubService{}
	handler := postQuestion(newRegistry(svc), mockAuth{err: errors.New("missing authorization header")}, nullLogger())

	rec := doJSON(t, handler, http.MethodPost, "/api/questions", `{"question":"q"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if svc.callCount() != 0 {
		t.Fatal("unauthorized request reached the service")
	}
}

func TestPostQuestionInvalidBody(t *testing.T) {
	handler := postQuestion(newRegistry(&stubService{}), mockAuth{}, nullLogger())
	rec := doJSON(t, handler, http.MethodPost, "/api/questions", `{"question":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSeedBoardBypassesService(t *testing.T) {
	svc := &stubService{}
	reg := newRegistry(svc)
	handler := seedBoard(reg, mockAuth{})

	rec := doJSON(t, handler, http.MethodPost, "/api/board",
		`{"severity":"Low","tasks":{"Design":["polish empty state"]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBoard(t, rec)
	if len(resp.Board[domain.GroupDesign]) != 1 || resp.Board[domain.GroupDesign][0].Title != "polish empty state" {
		t.Fatalf("unexpected board: %v", resp.Board)
	}
	if svc.callCount() != 0 {
		t.Fatalf("seed path called the service %d times", svc.callCount())
	}
}

func TestPostMoveCrossGroup(t *testing.T) {
	reg := newRegistry(&stubService{})
	ctrl := reg.Session("user")
	ctrl.AcceptPrecomputed(&domain.RawTaskPayload{
		Severity: "Medium",
		Tasks:    []byte(`{"Dev":["a","b"],"PM":["x"]}`),
	})
	state := ctrl.Board()
	devA := state[domain.GroupDev][0].ID
	pmX := state[domain.GroupPM][0].ID

	handler := postMove(reg, mockAuth{})
	rec := doJSON(t, handler, http.MethodPost, "/api/board/moves",
		`{"activeId":"`+devA+`","overId":"`+pmX+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeBoard(t, rec)
	if len(resp.Board[domain.GroupDev]) != 1 || len(resp.Board[domain.GroupPM]) != 2 {
		t.Fatalf("unexpected board: %v", resp.Board)
	}
	if resp.Board[domain.GroupPM][1].ID != devA {
		t.Fatalf("expected %s after target, got %v", devA, resp.Board[domain.GroupPM])
	}
}

func TestPostMoveNoOpReturnsBoardUnchanged(t *testing.T) {
	reg := newRegistry(&stubService{})
	ctrl := reg.Session("user")
	ctrl.AcceptPrecomputed(&domain.RawTaskPayload{Severity: "Low", Tasks: []byte(`{"Dev":["a"]}`)})
	before := ctrl.Board()

	handler := postMove(reg, mockAuth{})
	rec := doJSON(t, handler, http.MethodPost, "/api/board/moves",
		`{"activeId":"ghost","overId":"also-ghost"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeBoard(t, rec)
	if resp.Board.CardCount() != before.CardCount() {
		t.Fatalf("no-op changed the board: %v", resp.Board)
	}
}

func TestGetBoardAndDelete(t *testing.T) {
	reg := newRegistry(&stubService{})
	reg.Session("user").AcceptPrecomputed(&domain.RawTaskPayload{
		Severity: "High",
		Tasks:    []byte(`{"PM":["triage"]}`),
	})

	rec := doJSON(t, getBoard(reg, mockAuth{}), http.MethodGet, "/api/board", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeBoard(t, rec)
	if resp.Counts[domain.GroupPM] != 1 {
		t.Fatalf("unexpected counts: %v", resp.Counts)
	}

	rec = doJSON(t, deleteBoard(reg, mockAuth{}), http.MethodDelete, "/api/board", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, getBoard(reg, mockAuth{}), http.MethodGet, "/api/board", "")
	resp = decodeBoard(t, rec)
	if resp.Board.CardCount() != 0 {
		t.Fatalf("board survived unmount: %v", resp.Board)
	}
}

func TestUserMessageSelection(t *testing.T) {
	svcErr := &insight.ServiceError{Status: http.StatusBadGateway}
	if got := userMessage(svcErr); got != "issue service: Bad Gateway" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := userMessage(errors.New("dial tcp: connection refused")); got != "dial tcp: connection refused" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := userMessage(errors.New("")); got != "issue generation failed" {
		t.Fatalf("unexpected fallback %q", got)
	}
}
