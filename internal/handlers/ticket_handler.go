package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eventpass/backend/internal/engine"
	"github.com/eventpass/backend/internal/middleware"
	"github.com/eventpass/backend/internal/models"
	"github.com/eventpass/backend/internal/money"
)

// TicketEngine is the subset of *engine.Engine the handler needs.
type TicketEngine interface {
	Issue(ctx context.Context, buyer models.Identity, tier models.Tier, reference string, paid models.Amount) (models.Receipt, error)
	List(ctx context.Context, seller models.Identity, id models.TicketID, price models.Amount) error
	BuyResale(ctx context.Context, buyer models.Identity, id models.TicketID, paid models.Amount) (models.Receipt, error)
	ValidateAndBurn(ctx context.Context, caller models.Identity, id models.TicketID) error
	UpdatePrice(ctx context.Context, caller models.Identity, tier models.Tier, price models.Amount) error
	Withdraw(ctx context.Context, caller models.Identity) (models.Amount, error)

	Price(tier models.Tier) models.Amount
	Prices() [models.NumTiers]models.Amount
	Ticket(id models.TicketID) (models.Ticket, error)
	CanResell(id models.TicketID) (bool, error)
	Listing(id models.TicketID) (models.Listing, error)
	BalanceOf(id models.Identity) int
	TicketsOf(id models.Identity) []models.Ticket
	CanAct(id models.Identity) bool
	IsAdmin(id models.Identity) bool
	TreasuryBalance() models.Amount
	TreasuryWithdrawn() models.Amount
}

var _ TicketEngine = (*engine.Engine)(nil)

// TicketHandler serves the /api/v1 ticket, listing, price and treasury endpoints.
// Request bodies are schema-checked by middleware before they get here.
type TicketHandler struct {
	Engine   TicketEngine
	Decimals int32
	Logger   *slog.Logger
}

func NewTicketHandler(e TicketEngine, decimals int32, logger *slog.Logger) *TicketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TicketHandler{Engine: e, Decimals: decimals, Logger: logger}
}

// --- wire types ---

type priceResponse struct {
	Tier  models.Tier `json:"tier"`
	Price string      `json:"price"`
}

type receiptResponse struct {
	TicketID models.TicketID `json:"ticket_id"`
	Price    string          `json:"price"`
	Refund   string          `json:"refund"`
}

type ticketResponse struct {
	TicketID      models.TicketID `json:"ticket_id"`
	Tier          models.Tier     `json:"tier"`
	Owner         models.Identity `json:"owner"`
	PurchasePrice string          `json:"purchase_price"`
	MintedAt      time.Time       `json:"minted_at"`
	ResaleCount   int             `json:"resale_count"`
	Reference     string          `json:"reference"`
	CanResell     bool            `json:"can_resell"`
}

type listingResponse struct {
	TicketID models.TicketID `json:"ticket_id"`
	Seller   models.Identity `json:"seller"`
	Price    string          `json:"price"`
	Active   bool            `json:"active"`
}

func (h *TicketHandler) receipt(r models.Receipt) receiptResponse {
	return receiptResponse{
		TicketID: r.TicketID,
		Price:    money.Format(r.Price, h.Decimals),
		Refund:   money.Format(r.Refund, h.Decimals),
	}
}

func (h *TicketHandler) ticket(t models.Ticket, canResell bool) ticketResponse {
	return ticketResponse{
		TicketID:      t.ID,
		Tier:          t.Tier,
		Owner:         t.Owner,
		PurchasePrice: money.Format(t.PurchasePrice, h.Decimals),
		MintedAt:      t.MintedAt,
		ResaleCount:   t.ResaleCount,
		Reference:     t.Reference,
		CanResell:     canResell,
	}
}

func (h *TicketHandler) listing(l models.Listing) listingResponse {
	return listingResponse{
		TicketID: l.TicketID,
		Seller:   l.Seller,
		Price:    money.Format(l.Price, h.Decimals),
		Active:   l.Active,
	}
}

// --- prices ---

// ListPrices handles GET /prices.
func (h *TicketHandler) ListPrices(w http.ResponseWriter, _ *http.Request) {
	prices := h.Engine.Prices()
	out := make([]priceResponse, 0, len(prices))
	for _, t := range models.Tiers() {
		out = append(out, priceResponse{Tier: t, Price: money.Format(prices[t], h.Decimals)})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPrice handles GET /prices/{tier}.
func (h *TicketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	tier, ok := h.tierParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Tier: tier, Price: money.Format(h.Engine.Price(tier), h.Decimals)})
}

type updatePriceRequest struct {
	Price string `json:"price"`
}

// UpdatePrice handles PUT /prices/{tier}.
func (h *TicketHandler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromCtx(r.Context())
	tier, ok := h.tierParam(w, r)
	if !ok {
		return
	}
	var req updatePriceRequest
	if !decode(w, r, &req) {
		return
	}
	price, ok := h.amount(w, "price", req.Price)
	if !ok {
		return
	}
	if err := h.Engine.UpdatePrice(r.Context(), caller, tier, price); err != nil {
		h.engineError(w, r, "update price", err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Tier: tier, Price: money.Format(price, h.Decimals)})
}

// --- tickets ---

type issueRequest struct {
	Tier      string `json:"tier"`
	Reference string `json:"reference"`
	Payment   string `json:"payment"`
}

// IssueTicket handles POST /tickets.
func (h *TicketHandler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromCtx(r.Context())
	var req issueRequest
	if !decode(w, r, &req) {
		return
	}
	tier, err := models.ParseTier(req.Tier)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	paid, ok := h.amount(w, "payment", req.Payment)
	if !ok {
		return
	}
	rc, err := h.Engine.Issue(r.Context(), caller, tier, req.Reference, paid)
	if err != nil {
		h.engineError(w, r, "issue ticket", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.receipt(rc))
}

// GetTicket handles GET /tickets/{id}.
func (h *TicketHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	t, err := h.Engine.Ticket(id)
	if err != nil {
		h.engineError(w, r, "get ticket", err)
		return
	}
	canResell, err := h.Engine.CanResell(id)
	if err != nil {
		h.engineError(w, r, "get ticket", err)
		return
	}
	writeJSON(w, http.StatusOK, h.ticket(t, canResell))
}

// GetOwner handles GET /tickets/{id}/owner.
func (h *TicketHandler) GetOwner(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	t, err := h.Engine.Ticket(id)
	if err != nil {
		h.engineError(w, r, "get owner", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket_id": id, "owner": t.Owner})
}

// GetResellable handles GET /tickets/{id}/resellable.
func (h *TicketHandler) GetResellable(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	can, err := h.Engine.CanResell(id)
	if err != nil {
		h.engineError(w, r, "can resell", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket_id": id, "can_resell": can})
}

// ValidateTicket handles POST /tickets/{id}/validate.
func (h *TicketHandler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromCtx(r.Context())
	id, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	if err := h.Engine.ValidateAndBurn(r.Context(), caller, id); err != nil {
		h.engineError(w, r, "validate ticket", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket_id": id, "validated": true})
}

// --- listings ---

type listRequest struct {
	TicketID models.TicketID `json:"ticket_id"`
	Price    string          `json:"price"`
}

// CreateListing handles POST /listings.
func (h *TicketHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromCtx(r.Context())
	var req listRequest
	if !decode(w, r, &req) {
		return
	}
	price, ok := h.amount(w, "price", req.Price)
	if !ok {
		return
	}
	if err := h.Engine.List(r.Context(), caller, req.TicketID, price); err != nil {
		h.engineError(w, r, "list ticket", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.listing(models.Listing{TicketID: req.TicketID, Seller: caller, Price: price, Active: true}))
}

// GetListing handles GET /listings/{id}.
func (h *TicketHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	l, err := h.Engine.Listing(id)
	if err != nil {
		h.engineError(w, r, "get listing", err)
		return
	}
	writeJSON(w, http.StatusOK, h.listing(l))
}

type buyRequest struct {
	Payment string `json:"payment"`
}

// BuyListing handles POST /listings/{id}/buy.
func (h *TicketHandler) BuyListing(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromCtx(r.Context())
	id, ok := ticketIDParam(w, r)
	if !ok {
		return
	}
	var req buyRequest
	if !decode(w, r, &req) {
		return
	}
	paid, ok := h.amount(w, "payment", req.Payment)
	if !ok {
		return
	}
	rc, err := h.Engine.BuyResale(r.Context(), caller, id, paid)
	if err != nil {
		h.engineError(w, r, "buy listing", err)
		return
	}
	writeJSON(w, http.StatusOK, h.receipt(rc))
}

// --- identities ---

// GetIdentity handles GET /identities/{identity}.
func (h *TicketHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	id := models.Identity(chi.URLParam(r, "identity"))
	writeJSON(w, http.StatusOK, map[string]any{
		"identity": id,
		"balance":  h.Engine.BalanceOf(id),
		"can_act":  h.Engine.CanAct(id),
	})
}

// ListIdentityTickets handles GET /identities/{identity}/tickets.
func (h *TicketHandler) ListIdentityTickets(w http.ResponseWriter, r *http.Request) {
	id := models.Identity(chi.URLParam(r, "identity"))
	tickets := h.Engine.TicketsOf(id)
	out := make([]ticketResponse, 0, len(tickets))
	for _, t := range tickets {
		can, _ := h.Engine.CanResell(t.ID)
		out = append(out, h.ticket(t, can))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- treasury ---

// GetTreasury handles GET /treasury. Admin only.
func (h *TicketHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromCtx(r.Context())
	if !h.Engine.IsAdmin(caller) {
		writeError(w, http.StatusForbidden, engine.Kind(engine.ErrUnauthorized), "treasury is visible to the administrator only")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"balance":   money.Format(h.Engine.TreasuryBalance(), h.Decimals),
		"withdrawn": money.Format(h.Engine.TreasuryWithdrawn(), h.Decimals),
	})
}

// Withdraw handles POST /treasury/withdraw.
func (h *TicketHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromCtx(r.Context())
	amount, err := h.Engine.Withdraw(r.Context(), caller)
	if err != nil {
		h.engineError(w, r, "withdraw", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount": money.Format(amount, h.Decimals)})
}

// --- helpers ---

// statusFor maps engine error kinds to HTTP status codes.
var statusFor = map[string]int{
	"insufficient_payment":  http.StatusPaymentRequired,
	"wallet_limit_exceeded": http.StatusConflict,
	"cooldown_active":       http.StatusTooManyRequests,
	"still_locked":          http.StatusLocked,
	"markup_exceeded":       http.StatusUnprocessableEntity,
	"already_resold":        http.StatusConflict,
	"not_owner":             http.StatusForbidden,
	"not_found":             http.StatusNotFound,
	"listing_not_active":    http.StatusConflict,
	"unauthorized":          http.StatusForbidden,
}

// engineError writes a business rejection with its mapped status, or a 500
// for anything else (journal failures).
func (h *TicketHandler) engineError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := engine.Kind(err)
	if status, ok := statusFor[kind]; ok {
		h.Logger.InfoContext(r.Context(), op+" rejected", "kind", kind, "identity", middleware.IdentityFromCtx(r.Context()))
		writeError(w, status, kind, err.Error())
		return
	}
	h.Logger.ErrorContext(r.Context(), op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal", "internal error")
}

func (h *TicketHandler) tierParam(w http.ResponseWriter, r *http.Request) (models.Tier, bool) {
	tier, err := models.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return 0, false
	}
	return tier, true
}

func (h *TicketHandler) amount(w http.ResponseWriter, field, raw string) (models.Amount, bool) {
	a, err := money.Parse(raw, h.Decimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", field+": "+err.Error())
		return 0, false
	}
	return a, true
}

func ticketIDParam(w http.ResponseWriter, r *http.Request) (models.TicketID, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid ticket id")
		return 0, false
	}
	return models.TicketID(n), true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}

