package ledger

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the ledger endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.PostEntry)
	r.Get("/customers/{contactID}/advance", h.AdvanceBalance)
	r.Get("/{contactType}/{contactID}/statement", h.Statement)
}
