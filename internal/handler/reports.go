package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/smtech/caterer-api/internal/database"
)

// ReportStore defines the aggregate reads behind the reporting endpoints.
type ReportStore interface {
	UpcomingEvents(ctx context.Context, arg database.UpcomingEventsParams) ([]database.Order, error)
	RevenueByMethod(ctx context.Context, arg database.RevenueSummaryParams) ([]database.RevenueByMethodRow, error)
	CountOrdersByStatus(ctx context.Context, tenantID uuid.UUID) ([]database.OrderStatusCountRow, error)
	OutstandingBalances(ctx context.Context, arg database.OutstandingBalancesParams) ([]database.Order, error)
}

type ReportHandler struct {
	store ReportStore
}

func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	r.Get("/upcoming-events", h.UpcomingEvents)
	r.Get("/revenue", h.Revenue)
	r.Get("/order-status", h.OrderStatus)
	r.Get("/outstanding-balances", h.OutstandingBalances)
}

type revenueByMethodResponse struct {
	Method string `json:"payment_method"`
	Count  int64  `json:"count"`
	Total  string `json:"total"`
}

type revenueResponse struct {
	From     string                    `json:"from"`
	To       string                    `json:"to"`
	Total    string                    `json:"total"`
	ByMethod []revenueByMethodResponse `json:"by_method"`
}

// reportRange parses the from/to query params, defaulting to the next 30 days
// for event reports and the last 30 days for revenue.
func reportRange(r *http.Request, forward bool) (pgtype.Date, pgtype.Date, bool) {
	now := time.Now()
	from, to := now.AddDate(0, 0, -30), now
	if forward {
		from, to = now, now.AddDate(0, 0, 30)
	}
	fromDate := pgtype.Date{Time: from, Valid: true}
	toDate := pgtype.Date{Time: to, Valid: true}

	if s := r.URL.Query().Get("from"); s != "" {
		d, ok := parseDateParam(s)
		if !ok {
			return pgtype.Date{}, pgtype.Date{}, false
		}
		fromDate = d
	}
	if s := r.URL.Query().Get("to"); s != "" {
		d, ok := parseDateParam(s)
		if !ok {
			return pgtype.Date{}, pgtype.Date{}, false
		}
		toDate = d
	}
	return fromDate, toDate, true
}

func (h *ReportHandler) UpcomingEvents(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	from, to, ok := reportRange(r, true)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dates must be YYYY-MM-DD"})
		return
	}
	limit, _ := parseLimitOffset(r)

	orders, err := h.store.UpcomingEvents(r.Context(), database.UpcomingEventsParams{
		TenantID: tid,
		From:     from,
		To:       to,
		Limit:    limit,
	})
	if err != nil {
		log.Printf("ERROR: upcoming events: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReportHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	from, to, ok := reportRange(r, false)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "dates must be YYYY-MM-DD"})
		return
	}

	rows, err := h.store.RevenueByMethod(r.Context(), database.RevenueSummaryParams{
		TenantID: tid,
		From:     from,
		To:       to,
	})
	if err != nil {
		log.Printf("ERROR: revenue summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := revenueResponse{
		From:     from.Time.Format("2006-01-02"),
		To:       to.Time.Format("2006-01-02"),
		ByMethod: make([]revenueByMethodResponse, len(rows)),
	}
	total := decimal.Zero
	for i, row := range rows {
		amount := database.NumericToDecimal(row.Total)
		total = total.Add(amount)
		resp.ByMethod[i] = revenueByMethodResponse{
			Method: row.Method,
			Count:  row.Count,
			Total:  amount.StringFixed(2),
		}
	}
	resp.Total = total.StringFixed(2)
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReportHandler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}

	rows, err := h.store.CountOrdersByStatus(r.Context(), tid)
	if err != nil {
		log.Printf("ERROR: order status counts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *ReportHandler) OutstandingBalances(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenantFromPath(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
		return
	}
	limit, offset := parseLimitOffset(r)

	orders, err := h.store.OutstandingBalances(r.Context(), database.OutstandingBalancesParams{
		TenantID: tid,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		log.Printf("ERROR: outstanding balances: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}
