package reconcile

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PendingRequestCookie holds the checkout hint set before leaving for the gateway
const PendingRequestCookie = "pendingRequest"

// PendingRequestMaxAge discards stale checkout hints
const PendingRequestMaxAge = 2 * time.Hour

// PendingRequest is the cookie payload. Timestamp is in milliseconds since epoch.
type PendingRequest struct {
	RequestID   uint   `json:"requestId"`
	OrderNumber string `json:"orderNumber,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}

// Encode serializes p for use as a cookie value
func (p PendingRequest) Encode() string {
	data, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(data)
}

// ParsePendingRequest accepts base64url or URL-escaped JSON
func ParsePendingRequest(raw string) (*PendingRequest, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty pending request")
	}

	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		unescaped, uerr := url.QueryUnescape(raw)
		if uerr != nil {
			return nil, fmt.Errorf("decode pending request: %w", err)
		}
		data = []byte(unescaped)
	}

	var p PendingRequest
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode pending request: %w", err)
	}
	return &p, nil
}

// Expired reports whether the hint is older than PendingRequestMaxAge or undated
func (p *PendingRequest) Expired(now time.Time) bool {
	if p.Timestamp <= 0 {
		return true
	}
	return now.Sub(time.UnixMilli(p.Timestamp)) > PendingRequestMaxAge
}

// orderNumber prefers an explicit order number, then
// the request id, then the timestamp.
func (p *PendingRequest) orderNumber(prefix string) string {
	switch {
	case p.OrderNumber != "":
		return p.OrderNumber
	case p.RequestID != 0:
		return prefix + strconv.FormatUint(uint64(p.RequestID), 10)
	default:
		return prefix + strconv.FormatInt(p.Timestamp, 10)
	}
}

// ResolveOrderNumber finds the order number from the redirect query or, failing
// that, a fresh pendingRequest cookie. It returns "" when neither yields one.
func ResolveOrderNumber(query url.Values, pendingCookie string, now time.Time, prefix string) string {
	for _, key := range []string{"orderNumber", "order_id", "orderId"} {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			return v
		}
	}

	if pendingCookie == "" {
		return ""
	}
	p, err := ParsePendingRequest(pendingCookie)
	if err != nil || p.Expired(now) {
		return ""
	}
	return p.orderNumber(prefix)
}

var failureStatuses = map[string]bool{
	"failure": true,
	"error":   true,
	"deny":    true,
	"cancel":  true,
	"expire":  true,
}

// RedirectFailed reports whether the gateway redirect itself says the payment failed
func RedirectFailed(query url.Values) bool {
	for _, key := range []string{"transaction_status", "status"} {
		if failureStatuses[strings.ToLower(strings.TrimSpace(query.Get(key)))] {
			return true
		}
	}
	return false
}
