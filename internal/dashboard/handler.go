package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eventpass/backend/internal/ledger"
	"github.com/eventpass/backend/internal/middleware"
	"github.com/eventpass/backend/internal/models"
	"github.com/eventpass/backend/internal/money"
)

// TransferLister reads the money movements recorded by the journal.
type TransferLister interface {
	ListTransfers(ctx context.Context, who models.Identity) ([]models.Transfer, error)
}

// AdminChecker reports whether an identity is the administrator.
type AdminChecker interface {
	IsAdmin(id models.Identity) bool
}

// Handler serves an identity's payment history.
type Handler struct {
	transfers TransferLister
	admins    AdminChecker
	decimals  int32
	log       *slog.Logger
}

func NewHandler(transfers TransferLister, admins AdminChecker, decimals int32, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{transfers: transfers, admins: admins, decimals: decimals, log: log}
}

type transferResponse struct {
	ID        uuid.UUID       `json:"id"`
	EventSeq  int64           `json:"event_seq"`
	EntryType string          `json:"entry_type"`
	From      models.Identity `json:"from"`
	To        models.Identity `json:"to"`
	Amount    string          `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

type historyResponse struct {
	Identity  models.Identity    `json:"identity"`
	Net       string             `json:"net"`
	Transfers []transferResponse `json:"transfers"`
}

// GET /api/v1/identities/{identity}/transfers
// Visible to the identity itself and to the administrator.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	caller := middleware.IdentityFromCtx(r.Context())
	who := models.Identity(chi.URLParam(r, "identity"))
	if caller != who && !h.admins.IsAdmin(caller) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "unauthorized", "message": "payment history is private"})
		return
	}
	entries, err := h.transfers.ListTransfers(r.Context(), who)
	if err != nil {
		h.log.Error("list transfers failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal", "message": "internal error"})
		return
	}
	out := historyResponse{
		Identity:  who,
		Net:       money.Format(ledger.Net(entries, who), h.decimals),
		Transfers: make([]transferResponse, 0, len(entries)),
	}
	for _, t := range entries {
		out.Transfers = append(out.Transfers, transferResponse{
			ID:        t.ID,
			EventSeq:  t.EventSeq,
			EntryType: t.EntryType,
			From:      t.From,
			To:        t.To,
			Amount:    money.Format(t.Amount, h.decimals),
			CreatedAt: t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
