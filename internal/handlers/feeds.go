package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"sensor-dashboard/internal/alerting"
	"sensor-dashboard/internal/analytics"
	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/export"
	"sensor-dashboard/internal/gateway"
)

// FeedsResponse ответ GET /api/feeds
type FeedsResponse struct {
	Query  gateway.FeedQuery      `json:"query"`
	Series analytics.TimeSeries   `json:"series"`
	Stats  analytics.SummaryStats `json:"stats"`
	Page   dashboard.Page         `json:"page"`
	Notice *alerting.Notice       `json:"notice,omitempty"`
}

// FeedsHandler обрабатывает GET /api/feeds - обновление панели.
// Без параметров используется окно последних 7 дней с лимитом 100.
func (h *Handler) FeedsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		h.respondError(w, gateway.Message(err), http.StatusBadRequest)
		return
	}

	snap, err := h.board.Refresh(r.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, dashboard.ErrSuperseded):
			h.respondError(w, "Requisição substituída por uma mais recente", http.StatusConflict)
		case errors.Is(err, gateway.ErrInvalidLimit):
			h.respondError(w, gateway.Message(err), http.StatusBadRequest)
		default:
			h.respondError(w, gateway.Message(err), http.StatusBadGateway)
		}
		return
	}

	h.respondJSON(w, FeedsResponse{
		Query:  snap.Query,
		Series: snap.Series,
		Stats:  snap.Stats,
		Page:   h.board.Page(1),
		Notice: h.board.LastNotice(),
	}, http.StatusOK)
}

func (h *Handler) parseQuery(r *http.Request) (gateway.FeedQuery, error) {
	values := r.URL.Query()
	if len(values) == 0 {
		return dashboard.DefaultQuery(h.now()), nil
	}

	q := gateway.FeedQuery{
		Limit:     dashboard.DefaultLimit,
		StartDate: values.Get("start_date"),
		EndDate:   values.Get("end_date"),
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return q, gateway.ErrInvalidLimit
		}
		q.Limit = n
	}
	return q, nil
}

// PageHandler обрабатывает GET /api/feeds/page?page=n
func (h *Handler) PageHandler(w http.ResponseWriter, r *http.Request) {
	n := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			n = v
		}
	}
	h.respondJSON(w, h.board.Page(n), http.StatusOK)
}

// ExportHandler обрабатывает GET /api/feeds/export.csv
func (h *Handler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.board.Snapshot()

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, snap.Feeds, h.loc); err != nil {
		h.log.Errorf("failed to write csv: %s", err)
	}
}

// LatestAlertHandler обрабатывает GET /api/alerts/latest
func (h *Handler) LatestAlertHandler(w http.ResponseWriter, r *http.Request) {
	notice := h.board.LastNotice()
	if notice == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.respondJSON(w, notice, http.StatusOK)
}

type ackRequest struct {
	ID string `json:"id"`
}

// AckAlertHandler обрабатывает POST /api/alerts/ack - закрытие баннера
func (h *Handler) AckAlertHandler(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.respondJSON(w, map[string]bool{"acknowledged": h.board.Acknowledge(req.ID)}, http.StatusOK)
}
