package banking

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/accounts", h.ListAccounts)
	r.Get("/accounts/{id}", h.GetAccount)
	r.Get("/accounts/{id}/transactions", h.ListTransactions)
	r.Post("/accounts/{id}/transactions", h.RecordTransaction)
	r.Delete("/transactions/{txnID}", h.DeleteTransaction)

	r.Post("/accounts/{id}/reconciliations", h.StartReconciliation)
	r.Get("/reconciliations/{reconID}", h.GetReconciliation)
	r.Post("/reconciliations/{reconID}/match", h.Match)
	r.Post("/reconciliations/{reconID}/unmatch/{txnID}", h.Unmatch)
	r.Post("/reconciliations/{reconID}/auto-match", h.AutoMatch)
	r.Post("/reconciliations/{reconID}/complete", h.Complete)
	r.Post("/reconciliations/{reconID}/cancel", h.Cancel)
	r.Post("/reconciliations/{reconID}/adjustments", h.CreateAdjustment)
}
