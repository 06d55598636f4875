package aging

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{side}", h.Report)
	r.Post("/recalculate", h.Recalculate)
}
