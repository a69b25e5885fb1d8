package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/mwhite-dev/punchcard/internal/auth"
	"github.com/mwhite-dev/punchcard/internal/models"
	pkghttp "github.com/mwhite-dev/punchcard/pkg/http"
)

// QRCustomerStore is the slice of the customer store the QR handler needs.
type QRCustomerStore interface {
	GetByID(ctx context.Context, id string) (*models.Customer, error)
}

// QRMerchantStore is the slice of the merchant store the QR handler needs.
type QRMerchantStore interface {
	GetByID(ctx context.Context, id string) (*models.Merchant, error)
}

// QRHandler renders QR PNGs: the merchant counter poster and a customer's
// personal code.
type QRHandler struct {
	customers QRCustomerStore
	merchants QRMerchantStore
	baseURL   string
}

// NewQRHandler creates a new QRHandler. baseURL is the public origin embedded
// in the merchant poster.
func NewQRHandler(customers QRCustomerStore, merchants QRMerchantStore, baseURL string) *QRHandler {
	return &QRHandler{customers: customers, merchants: merchants, baseURL: baseURL}
}

// MerchantQR handles GET /v1/qr/merchant.png (staff)
func (h *QRHandler) MerchantQR(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing session")
		return
	}

	merchant, err := h.merchants.GetByID(r.Context(), claims.MerchantID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Merchant not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	png, err := auth.MerchantQRPNG(h.baseURL, merchant.IdentifyCode)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to render QR code")
		return
	}
	writePNG(w, png)
}

// PersonalQR handles GET /v1/qr/personal.png (customer session)
func (h *QRHandler) PersonalQR(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Missing session")
		return
	}

	customer, err := h.customers.GetByID(r.Context(), claims.RegisteredClaims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Customer not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	png, err := auth.PersonalQRPNG(customer.PersonalCode)
	if err != nil {
		pkghttp.WriteInternalError(w, "Failed to render QR code")
		return
	}
	writePNG(w, png)
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
