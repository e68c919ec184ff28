package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	inbox "github.com/goliatone/go-inbox"
	"github.com/goliatone/go-inbox/adapters/gocommand"
	"github.com/goliatone/go-inbox/adapters/gologger"
	inboxprom "github.com/goliatone/go-inbox/adapters/prometheus"
	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/httpapi"
	sqlstore "github.com/goliatone/go-inbox/store/sql"
	"github.com/goliatone/go-inbox/webhooks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "testsecret"

type testServer struct {
	api     *httpapi.API
	handler http.Handler
	store   core.MessageStore
}

func newTestServer(t *testing.T, secret string, opts ...httpapi.Option) *testServer {
	t.Helper()
	ctx := context.Background()

	client, err := sqlstore.Open(ctx, "sqlite:///:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, sqlstore.WithStatsCacheTTL(time.Minute))
	require.NoError(t, err)

	recorder, err := inboxprom.NewRecorder()
	require.NoError(t, err)

	cfg := inbox.DefaultConfig()
	cfg.WebhookSecret = secret
	facade, err := inbox.NewFacade(cfg, factory.Store(), inbox.WithMetricsRecorder(recorder))
	require.NoError(t, err)

	options := append([]httpapi.Option{
		httpapi.WithMetricsRecorder(recorder),
		httpapi.WithMetricsHandler(recorder.Handler()),
	}, opts...)
	api, err := httpapi.New(facade, options...)
	require.NoError(t, err)
	t.Cleanup(api.Close)

	return &testServer{api: api, handler: api.Router(), store: factory.Store()}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) postSigned(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhooks.SignatureHeader, webhooks.Sign([]byte(testSecret), []byte(body)))
	return s.do(t, req)
}

func (s *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	return s.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func payload(id, from, ts, text string) string {
	return fmt.Sprintf(`{"message_id":%q,"from":%q,"to":"+14155550100","ts":%q,"text":%q}`, id, from, ts, text)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type errorResponse struct {
	Detail   string `json:"detail"`
	TextCode string `json:"text_code"`
	Errors   []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"errors"`
}

func TestWebhookStoresSignedMessage(t *testing.T) {
	srv := newTestServer(t, testSecret)

	rec := srv.postSigned(t, payload("m1", "+919876543210", "2025-01-15T10:00:00Z", "Hello"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	msg, err := srv.store.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", msg.FromMSISDN)
	assert.Equal(t, "2025-01-15T10:00:00.000000000Z", msg.TS)
	require.NotNil(t, msg.Text)
	assert.Equal(t, "Hello", *msg.Text)
}

func TestWebhookKeepsFractionalTimestampOrder(t *testing.T) {
	srv := newTestServer(t, testSecret)

	for _, p := range []struct{ id, ts string }{
		{"late", "2025-01-15T10:00:00.9Z"},
		{"whole", "2025-01-15T10:00:00Z"},
		{"early", "2025-01-15T10:00:00.25Z"},
		{"minute", "2025-01-15T10:01Z"},
	} {
		rec := srv.postSigned(t, payload(p.id, "+1555", p.ts, "hi"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	page := decode[core.MessagePage](t, srv.get(t, "/messages"))
	require.Len(t, page.Data, 4)
	ids := make([]string, 0, len(page.Data))
	for _, msg := range page.Data {
		ids = append(ids, msg.MessageID)
	}
	assert.Equal(t, []string{"whole", "early", "late", "minute"}, ids)
	assert.Equal(t, "2025-01-15T10:00:00.250000000Z", page.Data[1].TS)
	assert.Equal(t, "2025-01-15T10:01:00.000000000Z", page.Data[3].TS)

	page = decode[core.MessagePage](t, srv.get(t, "/messages?since=2025-01-15T10:00:00.5Z"))
	assert.Equal(t, 2, page.Total)
}

func TestWebhookDuplicateIsIdempotent(t *testing.T) {
	srv := newTestServer(t, testSecret)
	body := payload("m1", "+919876543210", "2025-01-15T10:00:00Z", "Hello")

	first := srv.postSigned(t, body)
	second := srv.postSigned(t, body)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"status":"ok"}`, second.Body.String())

	page := decode[core.MessagePage](t, srv.get(t, "/messages"))
	assert.Equal(t, 1, page.Total)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	srv := newTestServer(t, testSecret)
	body := payload("m1", "+919876543210", "2025-01-15T10:00:00Z", "Hello")

	cases := map[string]string{
		"missing": "",
		"wrong":   "deadbeef",
		"other":   webhooks.Sign([]byte("othersecret"), []byte(body)),
	}
	for name, signature := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
			if signature != "" {
				req.Header.Set(webhooks.SignatureHeader, signature)
			}
			rec := srv.do(t, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			resp := decode[errorResponse](t, rec)
			assert.Equal(t, "invalid signature", resp.Detail)
		})
	}

	_, err := srv.store.Get(context.Background(), "m1")
	assert.ErrorIs(t, err, core.ErrMessageNotFound)
}

func TestWebhookSignatureCheckedBeforeValidation(t *testing.T) {
	srv := newTestServer(t, testSecret)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`not json`))
	rec := srv.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookValidationErrors(t *testing.T) {
	srv := newTestServer(t, testSecret)

	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"bad sender", payload("m1", "919876543210", "2025-01-15T10:00:00Z", "x"), "from"},
		{"bad timestamp", payload("m1", "+919876543210", "2025-01-15 10:00:00", "x"), "ts"},
		{"missing id", `{"from":"+919876543210","to":"+14155550100","ts":"2025-01-15T10:00:00Z"}`, "message_id"},
		{"text too long", payload("m1", "+919876543210", "2025-01-15T10:00:00Z", strings.Repeat("a", 4097)), "text"},
		{"malformed", `{"message_id":`, "body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := srv.postSigned(t, tc.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			resp := decode[errorResponse](t, rec)
			assert.Equal(t, core.InboxErrorValidation, resp.TextCode)
			fields := make([]string, 0, len(resp.Errors))
			for _, fieldErr := range resp.Errors {
				fields = append(fields, fieldErr.Field)
			}
			assert.Contains(t, fields, tc.field)
		})
	}

	page := decode[core.MessagePage](t, srv.get(t, "/messages"))
	assert.Equal(t, 0, page.Total)
}

func TestWebhookBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, testSecret, httpapi.WithMaxBodyBytes(64))

	rec := srv.postSigned(t, payload("m1", "+919876543210", "2025-01-15T10:00:00Z", strings.Repeat("a", 128)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, core.InboxErrorPayloadTooLarge, resp.TextCode)
}

func TestListMessagesContainsFilter(t *testing.T) {
	srv := newTestServer(t, testSecret)
	require.Equal(t, http.StatusOK, srv.postSigned(t, payload("m1", "+919876543210", "2025-01-10T10:00:00Z", "Hello world")).Code)
	require.Equal(t, http.StatusOK, srv.postSigned(t, payload("m2", "+919876543210", "2025-01-11T10:00:00Z", "Goodbye world")).Code)

	rec := srv.get(t, "/messages?q=Hello")
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[core.MessagePage](t, rec)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "m1", page.Data[0].MessageID)

	page = decode[core.MessagePage](t, srv.get(t, "/messages?q=hello"))
	assert.Equal(t, 0, page.Total)
	assert.NotNil(t, page.Data)
}

func TestListMessagesFiltersAndOrdering(t *testing.T) {
	srv := newTestServer(t, testSecret)
	require.Equal(t, http.StatusOK, srv.postSigned(t, payload("b", "+111", "2025-01-12T10:00:00Z", "x")).Code)
	require.Equal(t, http.StatusOK, srv.postSigned(t, payload("a", "+222", "2025-01-12T10:00:00Z", "x")).Code)
	require.Equal(t, http.StatusOK, srv.postSigned(t, payload("c", "+111", "2025-01-10T10:00:00Z", "x")).Code)

	page := decode[core.MessagePage](t, srv.get(t, "/messages"))
	ids := make([]string, 0, len(page.Data))
	for _, msg := range page.Data {
		ids = append(ids, msg.MessageID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	page = decode[core.MessagePage](t, srv.get(t, "/messages?from=%2B111"))
	assert.Equal(t, 2, page.Total)

	page = decode[core.MessagePage](t, srv.get(t, "/messages?from=+111"))
	assert.Equal(t, 2, page.Total)

	page = decode[core.MessagePage](t, srv.get(t, "/messages?since=2025-01-11T00:00:00Z"))
	assert.Equal(t, 2, page.Total)
}

func TestListMessagesPaginationClamps(t *testing.T) {
	srv := newTestServer(t, testSecret)
	for i := 0; i < 3; i++ {
		body := payload(fmt.Sprintf("m%d", i), "+111", fmt.Sprintf("2025-01-1%dT10:00:00Z", i), "x")
		require.Equal(t, http.StatusOK, srv.postSigned(t, body).Code)
	}

	cases := []struct {
		query  string
		limit  int
		offset int
		count  int
	}{
		{"", core.DefaultPageLimit, 0, 3},
		{"?limit=0", 1, 0, 1},
		{"?limit=-5", 1, 0, 1},
		{"?limit=1000", core.MaxPageLimit, 0, 3},
		{"?limit=abc", core.DefaultPageLimit, 0, 3},
		{"?offset=-3", core.DefaultPageLimit, 0, 3},
		{"?limit=2&offset=2", 2, 2, 1},
		{"?offset=10", core.DefaultPageLimit, 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			rec := srv.get(t, "/messages"+tc.query)
			require.Equal(t, http.StatusOK, rec.Code)
			page := decode[core.MessagePage](t, rec)
			assert.Equal(t, tc.limit, page.Limit)
			assert.Equal(t, tc.offset, page.Offset)
			assert.Equal(t, 3, page.Total)
			assert.Len(t, page.Data, tc.count)
		})
	}
}

func TestGetMessage(t *testing.T) {
	srv := newTestServer(t, testSecret)
	require.Equal(t, http.StatusOK, srv.postSigned(t, payload("m1", "+111", "2025-01-10T10:00:00Z", "x")).Code)

	rec := srv.get(t, "/messages/m1")
	require.Equal(t, http.StatusOK, rec.Code)
	msg := decode[core.Message](t, rec)
	assert.Equal(t, "m1", msg.MessageID)
	assert.NotEmpty(t, msg.CreatedAt)

	rec = srv.get(t, "/messages/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, core.InboxErrorNotFound, decode[errorResponse](t, rec).TextCode)
}

func TestStatsTopSenders(t *testing.T) {
	srv := newTestServer(t, testSecret)

	empty := decode[core.Stats](t, srv.get(t, "/stats"))
	assert.Equal(t, 0, empty.TotalMessages)
	assert.NotNil(t, empty.MessagesPerSender)
	assert.Nil(t, empty.FirstMessageTS)

	n := 0
	for sender := 1; sender <= 15; sender++ {
		for j := 0; j < sender; j++ {
			n++
			body := payload(fmt.Sprintf("m%03d", n), fmt.Sprintf("+1%02d", sender), fmt.Sprintf("2025-02-%02dT10:%02d:00Z", (n%27)+1, n%60), "x")
			require.Equal(t, http.StatusOK, srv.postSigned(t, body).Code)
		}
	}

	rec := srv.get(t, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[core.Stats](t, rec)
	assert.Equal(t, n, stats.TotalMessages)
	assert.Equal(t, 15, stats.SendersCount)
	require.Len(t, stats.MessagesPerSender, 10)
	assert.Equal(t, core.SenderCount{From: "+115", Count: 15}, stats.MessagesPerSender[0])
	assert.Equal(t, core.SenderCount{From: "+106", Count: 6}, stats.MessagesPerSender[9])
	require.NotNil(t, stats.FirstMessageTS)
	require.NotNil(t, stats.LastMessageTS)
	assert.True(t, *stats.FirstMessageTS <= *stats.LastMessageTS)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, testSecret)

	rec := srv.get(t, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())

	rec = srv.get(t, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestReadyWithoutSecret(t *testing.T) {
	srv := newTestServer(t, "")

	assert.Equal(t, http.StatusOK, srv.get(t, "/health/live").Code)

	rec := srv.get(t, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"detail":"WEBHOOK_SECRET not configured"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload("m1", "+111", "2025-01-10T10:00:00Z", "x")))
	req.Header.Set(webhooks.SignatureHeader, webhooks.Sign([]byte(""), []byte("x")))
	assert.Equal(t, http.StatusUnauthorized, srv.do(t, req).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, testSecret)
	require.Equal(t, http.StatusOK, srv.postSigned(t, payload("m1", "+111", "2025-01-10T10:00:00Z", "x")).Code)
	require.Equal(t, http.StatusOK, srv.postSigned(t, payload("m1", "+111", "2025-01-10T10:00:00Z", "x")).Code)
	srv.do(t, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}")))
	srv.get(t, "/messages/m1")

	rec := srv.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `webhook_requests_total{result="created"} 1`)
	assert.Contains(t, text, `webhook_requests_total{result="duplicate"} 1`)
	assert.Contains(t, text, `webhook_requests_total{result="invalid_signature"} 1`)
	assert.Contains(t, text, `http_requests_total{method="POST",path="/webhook",status="200"} 2`)
	assert.Contains(t, text, `http_requests_total{method="GET",path="/messages/{message_id}",status="200"} 1`)
	assert.Contains(t, text, "http_request_duration_seconds_bucket")
}

func TestMetricsDisabled(t *testing.T) {
	ctx := context.Background()
	client, err := sqlstore.Open(ctx, "sqlite:///:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	require.NoError(t, err)
	facade, err := inbox.NewFacade(inbox.DefaultConfig(), factory.Store())
	require.NoError(t, err)
	api, err := httpapi.New(facade)
	require.NoError(t, err)
	t.Cleanup(api.Close)

	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(t, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(httpapi.RequestIDHeader, "req-123")
	rec := srv.do(t, req)
	assert.Equal(t, "req-123", rec.Header().Get(httpapi.RequestIDHeader))

	rec = srv.get(t, "/health/live")
	assert.Len(t, rec.Header().Get(httpapi.RequestIDHeader), 36)
}

func TestRequestLogLine(t *testing.T) {
	var buf bytes.Buffer
	logger := gologger.NewJSON(&buf, "info")
	srv := newTestServer(t, testSecret, httpapi.WithLogger(logger))

	req := httptest.NewRequest(http.MethodGet, "/messages?limit=1", nil)
	req.Header.Set(httpapi.RequestIDHeader, "req-log")
	srv.do(t, req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line), buf.String())
	assert.Equal(t, "req-log", line["request_id"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, "/messages", line["path"])
	assert.EqualValues(t, 200, line["status"])
	assert.Contains(t, line, "latency_ms")
}

func TestRoutesDispatchThroughSubscriptions(t *testing.T) {
	srv := newTestServer(t, testSecret)
	require.Equal(t, http.StatusOK, srv.get(t, "/stats").Code)

	rec := srv.postSigned(t, `{"message_id":"m1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, core.InboxErrorValidation, decode[errorResponse](t, rec).TextCode)

	srv.api.Close()
	srv.api.Close()
	rec = srv.get(t, "/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNewRecordsHandlersInRegistry(t *testing.T) {
	ctx := context.Background()
	client, err := sqlstore.Open(ctx, "sqlite:///:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	require.NoError(t, err)
	facade, err := inbox.NewFacade(inbox.DefaultConfig(), factory.Store())
	require.NoError(t, err)

	registry := gocommand.NewRegistryAdapter(nil)
	api, err := httpapi.New(facade, httpapi.WithRegistry(registry))
	require.NoError(t, err)
	t.Cleanup(api.Close)
	require.NoError(t, registry.Initialize())

	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, core.InboxErrorNotFound, decode[errorResponse](t, rec).TextCode)
}

func TestNewRequiresFacade(t *testing.T) {
	_, err := httpapi.New(nil)
	assert.Error(t, err)
}
