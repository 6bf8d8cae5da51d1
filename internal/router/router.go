package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eventpass/backend/internal/auth"
	"github.com/eventpass/backend/internal/dashboard"
	"github.com/eventpass/backend/internal/handlers"
	"github.com/eventpass/backend/internal/middleware"
	"github.com/eventpass/backend/internal/models"
	"github.com/eventpass/backend/internal/schema"
)

// New returns an http.Handler that serves the API under /api/v1.
// Reads are public; every mutation needs a bearer token, and its body is
// schema-checked before the handler decodes it.
func New(authHandler *auth.Handler, th *handlers.TicketHandler, dashHandler *dashboard.Handler, tokens middleware.TokenValidator, validator middleware.BodyValidator) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	requireAuth := middleware.BearerAuth(tokens)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	body := func(name string) func(http.Handler) http.Handler {
		return middleware.ValidateBody(validator, name)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Get("/prices", th.ListPrices)
		r.Get("/prices/{tier}", th.GetPrice)
		r.Get("/tickets/{id}", th.GetTicket)
		r.Get("/tickets/{id}/owner", th.GetOwner)
		r.Get("/tickets/{id}/resellable", th.GetResellable)
		r.Get("/listings/{id}", th.GetListing)
		r.Get("/identities/{identity}", th.GetIdentity)
		r.Get("/identities/{identity}/tickets", th.ListIdentityTickets)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(adminOnly, body(schema.UpdatePrice)).Put("/prices/{tier}", th.UpdatePrice)
			r.With(body(schema.IssueTicket)).Post("/tickets", th.IssueTicket)
			r.Post("/tickets/{id}/validate", th.ValidateTicket)
			r.With(body(schema.ListTicket)).Post("/listings", th.CreateListing)
			r.With(body(schema.BuyListing)).Post("/listings/{id}/buy", th.BuyListing)
			r.Get("/identities/{identity}/transfers", dashHandler.ListTransfers)
			r.With(adminOnly).Get("/treasury", th.GetTreasury)
			r.With(adminOnly).Post("/treasury/withdraw", th.Withdraw)
		})
	})
	return r
}
