// Package paystack reconciles Paystack payment webhooks against storefront
// orders and the transaction ledger.
package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/aurelia-backend/pkg/errors"
)

const (
	// SignatureHeader carries the hex HMAC-SHA512 of the raw request body.
	SignatureHeader = "X-Paystack-Signature"

	unknownOrigin = "unknown"
)

// Gate authenticates inbound webhook deliveries. It never touches storage.
type Gate struct {
	secret        []byte
	allowedIPs    map[string]struct{}
	enforceOrigin bool
}

// GateConfig configures a Gate. EnforceOrigin is meant for production only.
type GateConfig struct {
	Secret        string
	AllowedIPs    []string
	EnforceOrigin bool
}

func NewGate(cfg GateConfig) *Gate {
	allowed := make(map[string]struct{}, len(cfg.AllowedIPs))
	for _, ip := range cfg.AllowedIPs {
		if trimmed := strings.TrimSpace(ip); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}
	return &Gate{
		secret:        []byte(strings.TrimSpace(cfg.Secret)),
		allowedIPs:    allowed,
		enforceOrigin: cfg.EnforceOrigin,
	}
}

// ClientIP returns the first X-Forwarded-For hop, else X-Real-IP, else "unknown".
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return unknownOrigin
}

// CheckOrigin rejects callers outside the allow-list when origin enforcement is on.
func (g *Gate) CheckOrigin(r *http.Request) error {
	if !g.enforceOrigin {
		return nil
	}
	ip := ClientIP(r)
	if ip == unknownOrigin {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized").
			WithDetails(map[string]any{"ip": ip})
	}
	if _, ok := g.allowedIPs[ip]; !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "Unauthorized").
			WithDetails(map[string]any{"ip": ip})
	}
	return nil
}

// Verify checks signature against the HMAC-SHA512 of body. The comparison is
// constant time and runs over the raw bytes before any decoding.
func (g *Gate) Verify(body []byte, signature string) error {
	if len(g.secret) == 0 {
		return pkgerrors.New(pkgerrors.CodeConfiguration, "Webhook secret not configured")
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Missing signature")
	}
	if len(body) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Missing body")
	}
	expected := Sign(g.secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid signature")
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA512 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
