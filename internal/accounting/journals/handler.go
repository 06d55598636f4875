package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
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

type lineRequest struct {
	AccountID   int64  `json:"account_id" validate:"required"`
	Description string `json:"description"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	CustomerID  *int64 `json:"customer_id"`
	SupplierID  *int64 `json:"supplier_id"`
	ProductID   *int64 `json:"product_id"`
	ExpenseID   *int64 `json:"expense_id"`
}

type createEntryRequest struct {
	Date         string        `json:"date" validate:"required"`
	Type         string        `json:"type"`
	RefKind      string        `json:"reference_kind"`
	RefID        string        `json:"reference_id"`
	Memo         string        `json:"memo"`
	Currency     string        `json:"currency" validate:"required,len=3"`
	ExchangeRate string        `json:"exchange_rate"`
	AutoPost     bool          `json:"auto_post"`
	Lines        []lineRequest `json:"lines" validate:"required,min=2,dive"`
}

type entryResponse struct {
	ID          int64          `json:"id"`
	Number      string         `json:"number"`
	Date        string         `json:"date"`
	Type        string         `json:"type"`
	Memo        string         `json:"memo"`
	Currency    string         `json:"currency"`
	TotalDebit  string         `json:"total_debit"`
	TotalCredit string         `json:"total_credit"`
	Status      string         `json:"status"`
	Lines       []lineResponse `json:"lines,omitempty"`
}

type lineResponse struct {
	AccountID   int64  `json:"account_id"`
	LineNumber  int    `json:"line_number"`
	Description string `json:"description,omitempty"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
}

func toEntryResponse(e JournalEntry) entryResponse {
	resp := entryResponse{
		ID:          e.ID,
		Number:      e.Number,
		Date:        e.Date.Format("2006-01-02"),
		Type:        string(e.Type),
		Memo:        e.Memo,
		Currency:    e.Currency,
		TotalDebit:  e.TotalDebit.StringFixed(2),
		TotalCredit: e.TotalCredit.StringFixed(2),
		Status:      string(e.Status),
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			AccountID:   l.AccountID,
			LineNumber:  l.LineNumber,
			Description: l.Description,
			Debit:       l.Debit.StringFixed(2),
			Credit:      l.Credit.StringFixed(2),
		})
	}
	return resp
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input, err := req.toInput()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.CreateEntry(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	entry, err := h.service.Post(r.Context(), id, actorFrom(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

type voidRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Void(r.Context(), VoidInput{EntryID: id, ActorID: actorFrom(r), Reason: req.Reason})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (req createEntryRequest) toInput() (CreateEntryInput, error) {
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return CreateEntryInput{}, errors.New("journals: date must be YYYY-MM-DD")
	}
	rate := decimal.NewFromInt(1)
	if req.ExchangeRate != "" {
		if rate, err = decimal.NewFromString(req.ExchangeRate); err != nil {
			return CreateEntryInput{}, errors.New("journals: invalid exchange rate")
		}
	}
	entryType := TypeManual
	if req.Type != "" {
		entryType = EntryType(req.Type)
	}
	input := CreateEntryInput{
		Date:         date,
		Type:         entryType,
		Memo:         req.Memo,
		Currency:     req.Currency,
		ExchangeRate: rate,
		AutoPost:     req.AutoPost,
	}
	if req.RefKind != "" {
		refID, err := uuid.Parse(req.RefID)
		if err != nil {
			return CreateEntryInput{}, errors.New("journals: invalid reference id")
		}
		input.Reference = &Reference{Kind: ReferenceKind(req.RefKind), ID: refID}
	}
	for _, l := range req.Lines {
		line := LineInput{
			AccountID:   l.AccountID,
			Description: l.Description,
			Debit:       decimal.Zero,
			Credit:      decimal.Zero,
			CustomerID:  l.CustomerID,
			SupplierID:  l.SupplierID,
			ProductID:   l.ProductID,
			ExpenseID:   l.ExpenseID,
		}
		if l.Debit != "" {
			if line.Debit, err = decimal.NewFromString(l.Debit); err != nil {
				return CreateEntryInput{}, errors.New("journals: invalid debit amount")
			}
		}
		if l.Credit != "" {
			if line.Credit, err = decimal.NewFromString(l.Credit); err != nil {
				return CreateEntryInput{}, errors.New("journals: invalid credit amount")
			}
		}
		input.Lines = append(input.Lines, line)
	}
	return input, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrJournalNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicateReference):
		httpx.Problem(w, http.StatusConflict, "Duplicate Reference", err.Error())
	case errors.Is(err, shared.ErrUnbalanced),
		errors.Is(err, shared.ErrTooFewLines),
		errors.Is(err, shared.ErrDateOutOfRange),
		errors.Is(err, shared.ErrMissingAccount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrPeriodClosed),
		errors.Is(err, shared.ErrPeriodNotFound),
		errors.Is(err, shared.ErrInvalidStatus):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Not Allowed", err.Error())
	default:
		h.logger.Error("journals request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// actorFrom extracts the acting user id propagated by the gateway layer.
func actorFrom(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
