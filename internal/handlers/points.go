package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mwhite-dev/punchcard/internal/auth"
	"github.com/mwhite-dev/punchcard/internal/models"
	"github.com/mwhite-dev/punchcard/internal/services"
	pkghttp "github.com/mwhite-dev/punchcard/pkg/http"
)

// PointsServiceInterface defines the interface for points movements
type PointsServiceInterface interface {
	Credit(ctx context.Context, in services.PointsInput) (int, error)
	Redeem(ctx context.Context, in services.PointsInput) (int, error)
	History(ctx context.Context, merchantID, customerID string, limit int) (*services.HistoryResult, error)
}

// PointsHandler handles staff-initiated credits and redemptions.
type PointsHandler struct {
	service PointsServiceInterface
}

// NewPointsHandler creates a new PointsHandler
func NewPointsHandler(service PointsServiceInterface) *PointsHandler {
	return &PointsHandler{service: service}
}

// CreditRequest represents the request body for a points credit
type CreditRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Points     int    `json:"points" validate:"required,gte=1,lte=100000"`
	Note       string `json:"note" validate:"omitempty,max=500"`
}

// RedeemRequest represents the request body for a redemption. Exactly one
// proof is expected: a verify token, a pin token plus PIN, or a bare PIN.
type RedeemRequest struct {
	CustomerID  string `json:"customer_id" validate:"required"`
	Points      int    `json:"points" validate:"required,gte=1,lte=100000"`
	Note        string `json:"note" validate:"omitempty,max=500"`
	VerifyToken string `json:"verify_token" validate:"omitempty,len=64"`
	PINToken    string `json:"pin_token" validate:"omitempty,len=64"`
	PIN         string `json:"pin" validate:"omitempty,min=4,max=8,numeric"`
}

// BalanceResponse reports the post-transaction balance
type BalanceResponse struct {
	PointsBalance int `json:"points_balance"`
}

// TransactionItem is one row of a customer's transaction history
type TransactionItem struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Points    int     `json:"points"`
	StaffID   string  `json:"staff_id"`
	Note      *string `json:"note,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// HistoryResponse pairs the membership standing with recent transactions
type HistoryResponse struct {
	PointsBalance int               `json:"points_balance"`
	VisitCount    int               `json:"visit_count"`
	Transactions  []TransactionItem `json:"transactions"`
}

// Credit handles POST /v1/points/credit (staff)
func (h *PointsHandler) Credit(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing session")
		return
	}

	var req CreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	balance, err := h.service.Credit(r.Context(), services.PointsInput{
		MerchantID: claims.MerchantID,
		StaffID:    claims.RegisteredClaims.Subject,
		CustomerID: req.CustomerID,
		Points:     req.Points,
		Note:       req.Note,
	})
	if err != nil {
		h.writePointsError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{PointsBalance: balance})
}

// Redeem handles POST /v1/points/redeem (staff)
func (h *PointsHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing session")
		return
	}

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	balance, err := h.service.Redeem(r.Context(), services.PointsInput{
		MerchantID:  claims.MerchantID,
		StaffID:     claims.RegisteredClaims.Subject,
		CustomerID:  req.CustomerID,
		Points:      req.Points,
		Note:        req.Note,
		VerifyToken: req.VerifyToken,
		PINToken:    req.PINToken,
		PIN:         req.PIN,
	})
	if err != nil {
		h.writePointsError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{PointsBalance: balance})
}

// History handles GET /v1/customers/{id}/transactions (staff)
func (h *PointsHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing session")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "limit must be a number")
			return
		}
		limit = parsed
	}

	result, err := h.service.History(r.Context(), claims.MerchantID, chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writePointsError(w, err)
		return
	}

	items := make([]TransactionItem, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		items = append(items, TransactionItem{
			ID:        tx.ID,
			Kind:      tx.Kind,
			Points:    tx.Points,
			StaffID:   tx.StaffID,
			Note:      tx.Note,
			CreatedAt: tx.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		PointsBalance: result.PointsBalance,
		VisitCount:    result.VisitCount,
		Transactions:  items,
	})
}

func (h *PointsHandler) writePointsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrPINRequired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "pin_required", "Redemption requires a verify token or the customer's PIN")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authorization proof rejected")
	case errors.Is(err, models.ErrInsufficientPoints):
		pkghttp.WriteConflict(w, "Insufficient points balance")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Customer not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid points amount")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
