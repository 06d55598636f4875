package banking

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

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

type accountResponse struct {
	ID                    int64   `json:"id"`
	Name                  string  `json:"name"`
	AccountNumber         string  `json:"account_number"`
	Currency              string  `json:"currency"`
	CurrentBalance        string  `json:"current_balance"`
	LastReconciledDate    *string `json:"last_reconciled_date,omitempty"`
	LastReconciledBalance string  `json:"last_reconciled_balance"`
}

func toAccountResponse(a BankAccount) accountResponse {
	resp := accountResponse{
		ID:                    a.ID,
		Name:                  a.Name,
		AccountNumber:         a.AccountNumber,
		Currency:              a.Currency,
		CurrentBalance:        a.CurrentBalance.StringFixed(2),
		LastReconciledBalance: a.LastReconciledBalance.StringFixed(2),
	}
	if a.LastReconciledDate != nil {
		d := a.LastReconciledDate.Format("2006-01-02")
		resp.LastReconciledDate = &d
	}
	return resp
}

type transactionResponse struct {
	ID                   int64  `json:"id"`
	BankAccountID        int64  `json:"bank_account_id"`
	Date                 string `json:"date"`
	Type                 string `json:"type"`
	Amount               string `json:"amount"`
	Description          string `json:"description,omitempty"`
	RunningBalance       string `json:"running_balance"`
	ReconciliationID     *int64 `json:"reconciliation_id,omitempty"`
	ReconciliationStatus string `json:"reconciliation_status"`
}

func toTransactionResponse(t BankTransaction) transactionResponse {
	return transactionResponse{
		ID:                   t.ID,
		BankAccountID:        t.BankAccountID,
		Date:                 t.Date.Format("2006-01-02"),
		Type:                 string(t.Type),
		Amount:               t.Amount.StringFixed(2),
		Description:          t.Description,
		RunningBalance:       t.RunningBalance.StringFixed(2),
		ReconciliationID:     t.ReconciliationID,
		ReconciliationStatus: string(t.ReconciliationStatus),
	}
}

type reconciliationResponse struct {
	ID                     int64  `json:"id"`
	BankAccountID          int64  `json:"bank_account_id"`
	StatementDate          string `json:"statement_date"`
	StatementEndingBalance string `json:"statement_ending_balance"`
	BookBalance            string `json:"book_balance"`
	ReconciledBalance      string `json:"reconciled_balance"`
	Difference             string `json:"difference"`
	Status                 string `json:"status"`
	Balanced               bool   `json:"balanced"`
}

func toReconciliationResponse(r BankReconciliation) reconciliationResponse {
	return reconciliationResponse{
		ID:                     r.ID,
		BankAccountID:          r.BankAccountID,
		StatementDate:          r.StatementDate.Format("2006-01-02"),
		StatementEndingBalance: r.StatementEndingBalance.StringFixed(2),
		BookBalance:            r.BookBalance.StringFixed(2),
		ReconciledBalance:      r.ReconciledBalance.StringFixed(2),
		Difference:             r.Difference.StringFixed(2),
		Status:                 string(r.Status),
		Balanced:               r.IsBalanced(),
	}
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.Accounts(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": out})
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	account, err := h.service.Account(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	txns, err := h.service.Transactions(r.Context(), id, limit, offset)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": out})
}

type recordTransactionRequest struct {
	Date        string `json:"date" validate:"required"`
	Type        string `json:"type" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var req recordTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid amount")
		return
	}
	txn, err := h.service.RecordTransaction(r.Context(), RecordTransactionInput{
		BankAccountID: accountID,
		Date:          date,
		Type:          TransactionType(req.Type),
		Amount:        amount,
		Description:   req.Description,
		ActorID:       actorFrom(r),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "txnID")
	if !ok {
		return
	}
	if err := h.service.DeleteTransaction(r.Context(), id, actorFrom(r)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type startReconciliationRequest struct {
	StatementDate          string `json:"statement_date" validate:"required"`
	StatementEndingBalance string `json:"statement_ending_balance" validate:"required"`
}

func (h *Handler) StartReconciliation(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.idParam(w, r, "id")
	if !ok {
		return
	}
	var req startReconciliationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	date, err := time.Parse("2006-01-02", req.StatementDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "statement_date must be YYYY-MM-DD")
		return
	}
	balance, err := decimal.NewFromString(req.StatementEndingBalance)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid statement balance")
		return
	}
	recon, err := h.service.StartReconciliation(r.Context(), accountID, date, balance)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconciliationResponse(recon))
}

func (h *Handler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "reconID")
	if !ok {
		return
	}
	recon, err := h.service.Reconciliation(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconciliationResponse(recon))
}

type matchRequest struct {
	TransactionIDs []int64 `json:"transaction_ids" validate:"required,min=1"`
}

func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "reconID")
	if !ok {
		return
	}
	var req matchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	recon, err := h.service.MatchTransactions(r.Context(), id, req.TransactionIDs)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconciliationResponse(recon))
}

func (h *Handler) Unmatch(w http.ResponseWriter, r *http.Request) {
	reconID, ok := h.idParam(w, r, "reconID")
	if !ok {
		return
	}
	txnID, ok := h.idParam(w, r, "txnID")
	if !ok {
		return
	}
	recon, err := h.service.UnmatchTransaction(r.Context(), reconID, txnID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconciliationResponse(recon))
}

type statementItemRequest struct {
	Date        string `json:"date" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

type autoMatchRequest struct {
	Items []statementItemRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) AutoMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "reconID")
	if !ok {
		return
	}
	var req autoMatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	items := make([]StatementItem, 0, len(req.Items))
	for _, it := range req.Items {
		date, err := time.Parse("2006-01-02", it.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "item date must be YYYY-MM-DD")
			return
		}
		amount, err := decimal.NewFromString(it.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item amount")
			return
		}
		items = append(items, StatementItem{Date: date, Amount: amount, Description: it.Description, Reference: it.Reference})
	}
	result, err := h.service.AutoMatch(r.Context(), id, items)
	if err != nil {
		h.respondError(w, err)
		return
	}
	unmatched := make([]statementItemRequest, 0, len(result.Unmatched))
	for _, it := range result.Unmatched {
		unmatched = append(unmatched, statementItemRequest{
			Date:        it.Date.Format("2006-01-02"),
			Amount:      it.Amount.StringFixed(2),
			Description: it.Description,
			Reference:   it.Reference,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"reconciliation": toReconciliationResponse(result.Reconciliation),
		"matched_ids":    result.MatchedIDs,
		"unmatched":      unmatched,
	})
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "reconID")
	if !ok {
		return
	}
	recon, err := h.service.Complete(r.Context(), id, actorFrom(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconciliationResponse(recon))
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "reconID")
	if !ok {
		return
	}
	recon, err := h.service.Cancel(r.Context(), id, actorFrom(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReconciliationResponse(recon))
}

type adjustmentRequest struct {
	Description string `json:"description" validate:"required"`
}

func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r, "reconID")
	if !ok {
		return
	}
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	txn, err := h.service.CreateAdjustment(r.Context(), id, req.Description, actorFrom(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrTransactionNotFound),
		errors.Is(err, ErrReconciliationNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransaction):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrReconciliationClosed),
		errors.Is(err, ErrReconciliationUnbalanced),
		errors.Is(err, ErrTransactionMatched),
		errors.Is(err, ErrNotInReconciliation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Not Allowed", err.Error())
	default:
		h.logger.Error("banking request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// actorFrom extracts the acting user id propagated by the gateway layer.
func actorFrom(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
