package reports

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ak-rocksdev/hyperbiz-core/internal/accounting/shared"
	"github.com/ak-rocksdev/hyperbiz-core/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, now: time.Now}
}

type trialBalanceRowResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Debit  string `json:"debit"`
	Credit string `json:"credit"`
}

type trialBalanceResponse struct {
	AsOf        string                    `json:"as_of"`
	Rows        []trialBalanceRowResponse `json:"rows"`
	TotalDebit  string                    `json:"total_debit"`
	TotalCredit string                    `json:"total_credit"`
	Balanced    bool                      `json:"balanced"`
}

func toTrialBalanceResponse(asOf time.Time, tb TrialBalance) trialBalanceResponse {
	resp := trialBalanceResponse{
		AsOf:        asOf.Format("2006-01-02"),
		Rows:        make([]trialBalanceRowResponse, 0, len(tb.Rows)),
		TotalDebit:  FormatAmount(tb.TotalDebit),
		TotalCredit: FormatAmount(tb.TotalCredit),
		Balanced:    tb.Balanced(),
	}
	for _, row := range tb.Rows {
		resp.Rows = append(resp.Rows, trialBalanceRowResponse{
			Code:   row.Code,
			Name:   row.Name,
			Debit:  FormatAmount(row.Debit),
			Credit: FormatAmount(row.Credit),
		})
	}
	return resp
}

type sectionAccountResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type sectionResponse struct {
	Label    string                   `json:"label"`
	Accounts []sectionAccountResponse `json:"accounts"`
	Total    string                   `json:"total"`
}

func toPLSectionResponse(s ProfitAndLossSection) sectionResponse {
	resp := sectionResponse{Label: s.Label, Accounts: make([]sectionAccountResponse, 0, len(s.Accounts)), Total: FormatAmount(s.Total)}
	for _, acc := range s.Accounts {
		resp.Accounts = append(resp.Accounts, sectionAccountResponse{Code: acc.Code, Name: acc.Name, Amount: FormatAmount(acc.Amount)})
	}
	return resp
}

func toBSSectionResponse(s BalanceSheetSection) sectionResponse {
	resp := sectionResponse{Label: s.Label, Accounts: make([]sectionAccountResponse, 0, len(s.Accounts)), Total: FormatAmount(s.Total)}
	for _, acc := range s.Accounts {
		resp.Accounts = append(resp.Accounts, sectionAccountResponse{Code: acc.Code, Name: acc.Name, Amount: FormatAmount(acc.Balance)})
	}
	return resp
}

func (h *Handler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("period_id"); raw != "" {
		periodID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Period", "")
			return
		}
		tb, err := h.service.TrialBalanceForPeriod(r.Context(), periodID)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, toTrialBalanceResponse(h.now(), tb))
		return
	}
	asOf, err := h.dateParam(r, "as_of")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	}
	tb, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTrialBalanceResponse(asOf, tb))
}

func (h *Handler) ProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	start, err := h.dateParam(r, "start")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	}
	end, err := h.dateParam(r, "end")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	}
	if end.Before(start) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Range", "end precedes start")
		return
	}
	pl, err := h.service.ProfitAndLoss(r.Context(), start, end)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"start":            start.Format("2006-01-02"),
		"end":              end.Format("2006-01-02"),
		"revenue":          toPLSectionResponse(pl.Revenue),
		"cogs":             toPLSectionResponse(pl.COGS),
		"expenses":         toPLSectionResponse(pl.Expense),
		"other_income":     toPLSectionResponse(pl.OtherIncome),
		"other_expenses":   toPLSectionResponse(pl.OtherExpense),
		"gross_profit":     FormatAmount(pl.GrossProfit),
		"operating_income": FormatAmount(pl.OperatingIncome),
		"net_income":       FormatAmount(pl.NetIncome),
	})
}

func (h *Handler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := h.dateParam(r, "as_of")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", err.Error())
		return
	}
	bs, err := h.service.BalanceSheet(r.Context(), asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"as_of":                        asOf.Format("2006-01-02"),
		"assets":                       toBSSectionResponse(bs.Assets),
		"liabilities":                  toBSSectionResponse(bs.Liabilities),
		"equity":                       toBSSectionResponse(bs.Equity),
		"current_earnings":             FormatAmount(bs.CurrentEarnings),
		"total_liabilities_and_equity": FormatAmount(bs.TotalLiabilitiesAndEquity),
		"balanced":                     bs.Balanced(),
	})
}

// dateParam parses a YYYY-MM-DD query parameter, defaulting to today.
func (h *Handler) dateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return h.now().UTC().Truncate(24 * time.Hour), nil
	}
	return time.Parse("2006-01-02", raw)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrPeriodNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("report request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
