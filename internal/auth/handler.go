package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventpass/backend/internal/models"
)

// Request/response structs use snake_case JSON.

type RegisterRequest struct {
	Identity    string `json:"identity"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Identity string `json:"identity"`
	Password string `json:"password"`
}

type AccountResponse struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

type Handler struct {
	svc Service
	log *slog.Logger
}

func NewHandler(svc Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	if req.Identity == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "identity and password are required")
		return
	}
	acc, err := h.svc.Register(r.Context(), models.Identity(req.Identity), req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateIdentity):
			writeError(w, http.StatusConflict, "duplicate_identity", "identity already registered")
		case errors.Is(err, ErrInvalidIdentity):
			writeError(w, http.StatusBadRequest, "invalid_identity", "identity must be 3-64 letters, digits, '.', '_' or '-' and not reserved")
		case err.Error() == "password too short":
			writeError(w, http.StatusBadRequest, "weak_password", err.Error())
		default:
			h.log.Error("register failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "registration failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, AccountResponse{
		Identity:    string(acc.Identity),
		DisplayName: acc.DisplayName,
		Role:        acc.Role,
		CreatedAt:   acc.CreatedAt,
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON")
		return
	}
	if req.Identity == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing identity or password")
		return
	}
	token, err := h.svc.Login(r.Context(), models.Identity(req.Identity), req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		h.log.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "login failed")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
