package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mwhite-dev/punchcard/internal/auth"
	"github.com/mwhite-dev/punchcard/internal/models"
	"github.com/mwhite-dev/punchcard/internal/presence"
	"github.com/mwhite-dev/punchcard/internal/services"
	pkghttp "github.com/mwhite-dev/punchcard/pkg/http"
)

// PresenceServiceInterface defines the interface for the recognition flow
type PresenceServiceInterface interface {
	SelfIdentify(ctx context.Context, in services.IdentifyInput) (*models.IdentifyOutcome, error)
	Status(ctx context.Context, merchantCode, identificationID string) (*services.StatusResult, error)
	Pending(merchantID string) []presence.PendingEntry
	Consume(ctx context.Context, merchantID, identificationID string) (*services.ConsumeResult, error)
	Dismiss(merchantID, identificationID string)
	LookupByPersonalCode(ctx context.Context, merchantID, code string) (*services.LookupResult, error)
}

// LoginServiceInterface defines the interface for customer credential login
type LoginServiceInterface interface {
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
}

// PresenceHandler handles the customer-facing identification flow and the
// staff-facing pending queue.
type PresenceHandler struct {
	presence PresenceServiceInterface
	login    LoginServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewPresenceHandler creates a new PresenceHandler
func NewPresenceHandler(presenceService PresenceServiceInterface, loginService LoginServiceInterface, ipConfig *pkghttp.IPConfig) *PresenceHandler {
	return &PresenceHandler{
		presence: presenceService,
		login:    loginService,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// IdentifyRequest represents the request body for self-identification
type IdentifyRequest struct {
	MerchantCode string `json:"merchant_code" validate:"required,min=4,max=64"`
	Contact      string `json:"contact" validate:"required,min=3,max=254"`
	DisplayName  string `json:"display_name" validate:"omitempty,max=100"`
}

// LoginRequest represents the request body for customer login
type LoginRequest struct {
	MerchantCode string `json:"merchant_code" validate:"required,min=4,max=64"`
	Contact      string `json:"contact" validate:"required,min=3,max=254"`
	PIN          string `json:"pin" validate:"required,min=4,max=8,numeric"`
}

// Response DTOs

// IdentifyResponse is returned to the customer's device after identifying
type IdentifyResponse struct {
	IdentificationID string `json:"identification_id"`
	IsNew            bool   `json:"is_new"`
	DisplayName      string `json:"display_name"`
	PointsBalance    int    `json:"points_balance"`
}

// StatusResponse reports whether an identification is still pending
type StatusResponse struct {
	Active        bool   `json:"active"`
	IsNew         bool   `json:"is_new"`
	DisplayName   string `json:"display_name,omitempty"`
	PointsBalance int    `json:"points_balance"`
}

// PendingItem is one row of the staff pending queue
type PendingItem struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	Contact         string `json:"contact"`
	PointsBalance   int    `json:"points_balance"`
	VisitCount      int    `json:"visit_count"`
	IsFirstVisit    bool   `json:"is_first_visit"`
	RecentDuplicate bool   `json:"recent_duplicate"`
	ElapsedMinutes  int    `json:"elapsed_minutes,omitempty"`
	ElapsedSeconds  int    `json:"elapsed_seconds"`
}

// PendingResponse wraps the pending queue listing
type PendingResponse struct {
	Pending []PendingItem `json:"pending"`
}

// ConsumeResponse pairs the consumed snapshot with its verify token
type ConsumeResponse struct {
	Customer    models.CustomerSnapshot `json:"customer"`
	VerifyToken string                  `json:"verify_token"`
}

// LookupResponse is the staff view after scanning a personal code
type LookupResponse struct {
	Customer    models.CustomerSnapshot `json:"customer"`
	VerifyToken string                  `json:"verify_token"`
	PINToken    string                  `json:"pin_token,omitempty"`
}

// LoginResponse carries the customer session token
type LoginResponse struct {
	Token       string `json:"token"`
	CustomerID  string `json:"customer_id"`
	DisplayName string `json:"display_name"`
}

// Identify handles POST /v1/identify
func (h *PresenceHandler) Identify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	outcome, err := h.presence.SelfIdentify(r.Context(), services.IdentifyInput{
		MerchantCode: req.MerchantCode,
		Contact:      req.Contact,
		DisplayName:  req.DisplayName,
		Origin:       pkghttp.ExtractClientIP(r, h.ipConfig),
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Unknown merchant code")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		case errors.Is(err, models.ErrRateLimited):
			pkghttp.WriteTooManyRequests(w, "Too many identification attempts. Please try again later.")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, IdentifyResponse{
		IdentificationID: outcome.IdentificationID,
		IsNew:            outcome.IsNew,
		DisplayName:      outcome.DisplayName,
		PointsBalance:    outcome.PointsBalance,
	})
}

// Status handles GET /v1/identify/{id}/status
func (h *PresenceHandler) Status(w http.ResponseWriter, r *http.Request) {
	merchantCode := r.URL.Query().Get("merchant_code")
	if merchantCode == "" {
		pkghttp.WriteBadRequest(w, "merchant_code is required")
		return
	}

	status, err := h.presence.Status(r.Context(), merchantCode, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Unknown merchant code")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Active:        status.Active,
		IsNew:         status.IsNew,
		DisplayName:   status.DisplayName,
		PointsBalance: status.PointsBalance,
	})
}

// Login handles POST /v1/login
func (h *PresenceHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.login.Login(r.Context(), services.LoginInput{
		MerchantCode: req.MerchantCode,
		Contact:      req.Contact,
		PIN:          req.PIN,
		Origin:       pkghttp.ExtractClientIP(r, h.ipConfig),
	})
	if err != nil {
		var locked *models.LockoutError
		switch {
		case errors.As(err, &locked):
			pkghttp.WriteLockout(w, "Too many failed attempts. Please try again later.", locked.MinutesRemaining)
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, "Authentication failed")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Unknown merchant code")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, err.Error())
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:       result.Token,
		CustomerID:  result.CustomerID,
		DisplayName: result.DisplayName,
	})
}

// Pending handles GET /v1/pending (staff)
func (h *PresenceHandler) Pending(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing session")
		return
	}

	entries := h.presence.Pending(claims.MerchantID)
	items := make([]PendingItem, 0, len(entries))
	for _, e := range entries {
		contact := e.Email
		if contact == "" {
			contact = e.Phone
		}
		items = append(items, PendingItem{
			ID:              e.ID,
			DisplayName:     e.DisplayName,
			Contact:         contact,
			PointsBalance:   e.PointsBalance,
			VisitCount:      e.VisitCount,
			IsFirstVisit:    e.IsFirstVisit,
			RecentDuplicate: e.RecentDuplicate,
			ElapsedMinutes:  e.ElapsedMinutes,
			ElapsedSeconds:  e.ElapsedSeconds,
		})
	}

	writeJSON(w, http.StatusOK, PendingResponse{Pending: items})
}

// Consume handles POST /v1/pending/{id}/consume (staff)
func (h *PresenceHandler) Consume(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing session")
		return
	}

	result, err := h.presence.Consume(r.Context(), claims.MerchantID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Identification not found or already handled")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, ConsumeResponse{
		Customer:    result.Snapshot,
		VerifyToken: result.VerifyToken,
	})
}

// Dismiss handles POST /v1/pending/{id}/dismiss (staff)
func (h *PresenceHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing session")
		return
	}

	h.presence.Dismiss(claims.MerchantID, chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// LookupByCode handles GET /v1/customers/code/{personalCode} (staff)
func (h *PresenceHandler) LookupByCode(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing session")
		return
	}

	result, err := h.presence.LookupByPersonalCode(r.Context(), claims.MerchantID, chi.URLParam(r, "personalCode"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "No customer with that code")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, LookupResponse{
		Customer:    result.Snapshot,
		VerifyToken: result.VerifyToken,
		PINToken:    result.PINToken,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
