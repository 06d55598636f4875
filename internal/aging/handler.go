package aging

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ak-rocksdev/hyperbiz-core/internal/platform/httpx"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

type bucketsResponse struct {
	Current0To30  string `json:"current_0_30"`
	Current31To60 string `json:"current_31_60"`
	Current61To90 string `json:"current_61_90"`
	CurrentOver90 string `json:"current_over_90"`
}

type rowResponse struct {
	CounterpartyID   int64  `json:"counterparty_id"`
	CounterpartyName string `json:"counterparty_name"`
	bucketsResponse
	Total string `json:"total"`
}

type reportResponse struct {
	Side     string          `json:"side"`
	AsOf     string          `json:"as_of"`
	Currency string          `json:"currency"`
	Rows     []rowResponse   `json:"rows"`
	Totals   bucketsResponse `json:"totals"`
	Total    string          `json:"total"`
}

func toBucketsResponse(b Buckets) bucketsResponse {
	return bucketsResponse{
		Current0To30:  b.Current0To30.StringFixed(2),
		Current31To60: b.Current31To60.StringFixed(2),
		Current61To90: b.Current61To90.StringFixed(2),
		CurrentOver90: b.CurrentOver90.StringFixed(2),
	}
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	side := Side(chi.URLParam(r, "side"))
	q := Query{Side: side, Currency: r.URL.Query().Get("currency")}
	if q.Currency == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "currency is required")
		return
	}
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		asOf, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "as_of must be YYYY-MM-DD")
			return
		}
		q.AsOf = asOf
	}
	if raw := r.URL.Query().Get("counterparty_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
			return
		}
		q.CounterpartyID = &id
	}

	report, err := h.service.Report(r.Context(), q)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := reportResponse{
		Side:     string(report.Side),
		AsOf:     report.AsOf.Format("2006-01-02"),
		Currency: report.Currency,
		Rows:     make([]rowResponse, 0, len(report.Rows)),
		Totals:   toBucketsResponse(report.Totals),
		Total:    report.Totals.Total().StringFixed(2),
	}
	for _, row := range report.Rows {
		resp.Rows = append(resp.Rows, rowResponse{
			CounterpartyID:   row.CounterpartyID,
			CounterpartyName: row.CounterpartyName,
			bucketsResponse:  toBucketsResponse(row.Buckets),
			Total:            row.Total.StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type recalculateRequest struct {
	Side     string `json:"side" validate:"required,oneof=receivable payable"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.RecalculateAll(r.Context(), Side(req.Side), req.Currency); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "recalculated"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidSide):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("aging request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
