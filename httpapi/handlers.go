package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-inbox/adapters/gocommand"
	inboxcommand "github.com/goliatone/go-inbox/command"
	"github.com/goliatone/go-inbox/core"
	inboxquery "github.com/goliatone/go-inbox/query"
	"github.com/goliatone/go-inbox/webhooks"
)

type statusBody struct {
	Status string `json:"status"`
}

func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := a.readBody(w, r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	msg := inboxcommand.IngestMessage{Delivery: core.WebhookDelivery{
		Body:      body,
		Signature: r.Header.Get(webhooks.SignatureHeader),
		RequestID: RequestIDFromContext(r.Context()),
	}}
	collector := gocmd.NewResult[core.IngestResult]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)
	if err := gocommand.Dispatch(ctx, msg); err != nil {
		a.writeError(w, r, err)
		return
	}
	if _, ok := collector.Load(); !ok {
		a.writeError(w, r, core.InternalError("ingest produced no outcome"))
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "ok"})
}

// readBody reads the raw body once; the signature is computed over these
// exact bytes.
func (a *API) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte{}, nil
	}
	reader := io.Reader(r.Body)
	if a.maxBodyBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, a.maxBodyBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, core.PayloadTooLargeError(tooLarge.Limit)
		}
		return nil, core.BadInputError("unable to read request body")
	}
	return body, nil
}

func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	filter := core.MessageFilter{
		Limit:    parseLimit(values.Get("limit")),
		Offset:   parseInt(values.Get("offset"), 0),
		From:     senderParam(values.Get("from"), values.Get("from_msisdn")),
		Since:    values.Get("since"),
		Contains: values.Get("q"),
	}
	page, err := gocommand.Query[inboxquery.ListMessagesMessage, core.MessagePage](r.Context(), inboxquery.ListMessagesMessage{Filter: filter})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "message_id")
	msg, err := gocommand.Query[inboxquery.GetMessageMessage, core.Message](r.Context(), inboxquery.GetMessageMessage{MessageID: id})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := gocommand.Query[inboxquery.GetStatsMessage, core.Stats](r.Context(), inboxquery.GetStatsMessage{})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusBody{Status: "alive"})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	readiness, _ := gocommand.Query[inboxquery.CheckReadinessMessage, core.Readiness](r.Context(), inboxquery.CheckReadinessMessage{})
	if !readiness.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Detail: readiness.Reason()})
		return
	}
	writeJSON(w, http.StatusOK, statusBody{Status: "ready"})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if a.metricsHandler == nil {
		a.writeError(w, r, routeNotFound())
		return
	}
	a.metricsHandler.ServeHTTP(w, r)
}

// parseLimit leaves a missing or unparseable limit to the default and turns
// an explicit zero or negative value into the minimum page size.
func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	if limit < core.MinPageLimit {
		return core.MinPageLimit
	}
	return limit
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return value
}

// senderParam prefers from over from_msisdn. An unescaped '+' in a query
// string decodes to a space, so a leading space is read back as '+'.
func senderParam(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if strings.HasPrefix(value, " ") {
			return "+" + strings.TrimLeft(value, " ")
		}
		return strings.TrimSpace(value)
	}
	return ""
}
