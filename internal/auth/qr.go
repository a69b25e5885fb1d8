package auth

import (
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const qrImageSize = 256 // pixels, square

// MerchantQRPNG renders the counter poster QR: the public identify URL with
// the merchant's identify code baked in. Customers scan it to reach the
// self-identification page.
func MerchantQRPNG(baseURL, identifyCode string) ([]byte, error) {
	target := fmt.Sprintf("%s/v1/identify?merchant_code=%s", baseURL, url.QueryEscape(identifyCode))
	png, err := qrcode.Encode(target, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merchant QR: %w", err)
	}
	return png, nil
}

// PersonalQRPNG renders a customer's static personal code, which staff scan
// as the alternate entry path to the customer lookup endpoint.
func PersonalQRPNG(personalCode string) ([]byte, error) {
	png, err := qrcode.Encode(personalCode, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to encode personal QR: %w", err)
	}
	return png, nil
}
