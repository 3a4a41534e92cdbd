package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"latepass-system/internal/status"
)

// TicketPayload is the tuple embedded in a ticket's QR code. The ticket row
// remains the source of truth; the payload is only a portable, unforgeable
// reference to it.
type TicketPayload struct {
	TicketID    string `json:"tid"`
	StudentID   string `json:"sid"`
	TimetableID string `json:"ttid"`
	ExpiresAt   int64  `json:"exp"` // unix seconds
}

// PayloadCodec signs and verifies QR payloads with HMAC-SHA256. The encoded
// form is base64url(JSON) + "." + hex(signature), self-contained so a scanner
// can reject forgeries without a database round trip.
type PayloadCodec struct {
	secretKey []byte
}

func NewPayloadCodec(secretKey string) *PayloadCodec {
	return &PayloadCodec{secretKey: []byte(secretKey)}
}

func (c *PayloadCodec) Encode(p TicketPayload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(body) + "." + c.sign(body), nil
}

// Decode verifies the signature and structure of qrData and returns the
// embedded payload. The expiry embedded here must still be compared against
// the stored ticket by the caller.
func (c *PayloadCodec) Decode(qrData string) (TicketPayload, error) {
	var p TicketPayload

	parts := strings.SplitN(qrData, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return p, status.ErrMalformedPayload
	}

	body, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return p, status.ErrMalformedPayload
	}

	if !hmac.Equal([]byte(c.sign(body)), []byte(parts[1])) {
		return p, status.ErrInvalidSignature
	}

	if err := json.Unmarshal(body, &p); err != nil {
		return p, status.ErrMalformedPayload
	}
	if p.TicketID == "" || p.StudentID == "" || p.TimetableID == "" || p.ExpiresAt == 0 {
		return p, status.ErrMalformedPayload
	}
	return p, nil
}

// Matches checks the embedded expiry against the stored one, guarding
// against replay of payloads from regenerated tickets.
func (p TicketPayload) Matches(storedExpiresAt time.Time) bool {
	return p.ExpiresAt == storedExpiresAt.Unix()
}

func (c *PayloadCodec) sign(body []byte) string {
	h := hmac.New(sha256.New, c.secretKey)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
