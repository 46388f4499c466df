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

	"github.com/BTreeMap/SlimLine/internal/flow"
	"github.com/BTreeMap/SlimLine/internal/models"
	"github.com/BTreeMap/SlimLine/internal/store"
	"github.com/BTreeMap/SlimLine/internal/testutil"
)

// fakeGenerator is a scripted flow.Generator for API tests.
type fakeGenerator struct {
	reply string
	err   error
}

func (f *fakeGenerator) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string, maxTokens int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// fakeReplier records reply calls.
type fakeReplier struct {
	mu       sync.Mutex
	tokens   []string
	bodies   [][]string
	replyErr error
}

func (f *fakeReplier) Reply(ctx context.Context, replyToken string, bodies []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replyErr != nil {
		return f.replyErr
	}
	f.tokens = append(f.tokens, replyToken)
	f.bodies = append(f.bodies, bodies)
	return nil
}

func (f *fakeReplier) replies() ([]string, [][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tokens...), append([][]string(nil), f.bodies...)
}

// fakeMessagingService records push sends.
type fakeMessagingService struct {
	mu      sync.Mutex
	sent    []string
	sendErr error
}

func (f *fakeMessagingService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	trimmed := strings.TrimSpace(recipient)
	if !strings.HasPrefix(trimmed, "U") {
		return "", errors.New("invalid LINE user ID")
	}
	return trimmed, nil
}

func (f *fakeMessagingService) SendMessage(ctx context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, to+": "+body)
	return nil
}

func newTestServer(t *testing.T, adminIDs []string) (*Server, *store.InMemoryStore, *fakeReplier, *fakeMessagingService) {
	t.Helper()
	st := store.NewInMemoryStore()
	gen := &fakeGenerator{reply: "ラーメンは約500kcalです"}
	advisor := flow.NewCalorieAdvisor(gen)
	quiz := flow.NewQuizFlow(st, &fakeGenerator{err: errors.New("no llm in tests")})
	article := flow.NewArticleFlow(flow.DefaultArticles())
	summary := flow.NewSummaryFlow(st, time.UTC)
	router := flow.NewRouter(st, advisor, quiz, article, summary, adminIDs)

	replier := &fakeReplier{}
	msgService := &fakeMessagingService{}
	srv := NewServer(st, router, summary, replier, msgService, WithChannelSecret(testChannelSecret))
	return srv, st, replier, msgService
}

func seedDayUsage(t *testing.T, st *store.InMemoryStore, date string) {
	t.Helper()
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		t.Fatalf("bad test date: %v", err)
	}
	base := day.Unix()
	testutil.SeedUsageData(t, st, []models.UsageRecord{
		{ID: "1", UserID: "U1", Direction: models.DirectionIn, Mode: models.ModeCalorie, Body: "ラーメン", Time: base + 10},
		{ID: "2", UserID: "U1", Direction: models.DirectionOut, Mode: models.ModeCalorie, Body: "約500kcal", Time: base + 11},
		{ID: "3", UserID: "U2", Direction: models.DirectionIn, Mode: models.ModeQuiz, Body: "クイズ", Time: base + 20},
	})
}

func TestRootHandler(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestRootHandlerUnknownPath(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))

	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "GET /nope")
}

func TestHealthHandler(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /health")
	if !strings.Contains(rr.Body.String(), "healthy") {
		t.Errorf("expected healthy status, got %s", rr.Body.String())
	}
}

func TestLogsHandlerRequiresUserOrDate(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs", nil))

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "GET /logs without params")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestLogsHandlerByUser(t *testing.T) {
	srv, st, _, _ := newTestServer(t, nil)
	seedDayUsage(t, st, "2026-08-30")

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs?user=U1", nil))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /logs?user=U1")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	records, ok := response["result"].([]interface{})
	if !ok {
		t.Fatalf("expected result array, got %T", response["result"])
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records for U1, got %d", len(records))
	}
}

func TestLogsHandlerByDate(t *testing.T) {
	srv, st, _, _ := newTestServer(t, nil)
	seedDayUsage(t, st, "2026-08-30")

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs?date=2026-08-30", nil))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /logs?date")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	records, ok := response["result"].([]interface{})
	if !ok {
		t.Fatalf("expected result array, got %T", response["result"])
	}
	if len(records) != 3 {
		t.Errorf("expected 3 records for the day, got %d", len(records))
	}
}

func TestLogsHandlerInvalidParams(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs?user=U1&limit=abc", nil))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid limit")

	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/logs?date=yesterday", nil))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid date")
}

func TestSummaryHandler(t *testing.T) {
	srv, st, _, _ := newTestServer(t, nil)
	seedDayUsage(t, st, "2026-08-30")

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/summary?date=2026-08-30", nil))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /summary")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	result, ok := response["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %T", response["result"])
	}
	if result["date"] != "2026-08-30" {
		t.Errorf("unexpected report date: %v", result["date"])
	}
	if result["total_messages"] != float64(2) {
		t.Errorf("expected 2 inbound messages, got %v", result["total_messages"])
	}
}

func TestSummaryHandlerInvalidDate(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/summary?date=08-30", nil))

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "GET /summary invalid date")
}

func TestStatsHandler(t *testing.T) {
	srv, st, _, _ := newTestServer(t, nil)
	seedDayUsage(t, st, "2020-01-01")

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stats", nil))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "GET /stats")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	result, ok := response["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %T", response["result"])
	}
	if result["total_messages"] != float64(2) {
		t.Errorf("expected 2 inbound messages, got %v", result["total_messages"])
	}
	if result["unique_users"] != float64(2) {
		t.Errorf("expected 2 unique users, got %v", result["unique_users"])
	}
}

func TestSendHandler(t *testing.T) {
	srv, st, _, msgService := newTestServer(t, nil)

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/send", models.SendRequest{To: "U123", Body: "メンテナンスのお知らせ"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "POST /send")
	testutil.AssertJSONResponse(t, rr, "ok")

	msgService.mu.Lock()
	sent := append([]string(nil), msgService.sent...)
	msgService.mu.Unlock()
	if len(sent) != 1 || !strings.Contains(sent[0], "メンテナンス") {
		t.Errorf("unexpected sends: %v", sent)
	}
	testutil.AssertUsageCount(t, st, "U123", 1, "push recorded")
}

func TestSendHandlerRejectsBadRequests(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	// Invalid JSON
	req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")

	// Invalid recipient
	req = testutil.CreateHTTPRequest(t, http.MethodPost, "/send", models.SendRequest{To: "12345", Body: "hi"})
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid recipient")

	// Empty body
	req = testutil.CreateHTTPRequest(t, http.MethodPost, "/send", models.SendRequest{To: "U123", Body: ""})
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty body")
}

func TestSendHandlerSendFailure(t *testing.T) {
	srv, _, _, msgService := newTestServer(t, nil)
	msgService.sendErr = errors.New("network down")

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/send", models.SendRequest{To: "U123", Body: "hi"})
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "send failure")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _, _ := newTestServer(t, nil)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/health"},
		{http.MethodGet, "/send"},
		{http.MethodDelete, "/logs"},
		{http.MethodPost, "/summary"},
		{http.MethodPut, "/stats"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, tc.method+" "+tc.path)
	}
}
