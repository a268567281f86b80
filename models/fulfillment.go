package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects which reference value a refresh round targets.
type Mode string

const (
	ModeCert  Mode = "cert"
	ModePrice Mode = "price"
)

// ParseMode validates a caller-supplied mode string.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCert:
		return ModeCert, true
	case ModePrice:
		return ModePrice, true
	}
	return "", false
}

// FulfillmentStatus is the lifecycle state of a refresh round.
// Transitions are monotone: pending moves to exactly one terminal state.
type FulfillmentStatus string

const (
	StatusPending   FulfillmentStatus = "pending"
	StatusFulfilled FulfillmentStatus = "fulfilled"
	StatusFailed    FulfillmentStatus = "failed"
	StatusExpired   FulfillmentStatus = "expired"
)

// IsTerminal reports whether the status is final.
func (s FulfillmentStatus) IsTerminal() bool {
	return s == StatusFulfilled || s == StatusFailed || s == StatusExpired
}

// RequestKey uniquely identifies one refresh round.
type RequestKey struct {
	IssuerID int  `json:"issuer_id"`
	Mode     Mode `json:"mode"`
	RoundID  int64 `json:"round_id"`
}

func (k RequestKey) String() string {
	return fmt.Sprintf("%d/%s/%d", k.IssuerID, k.Mode, k.RoundID)
}

// RefreshRequest is one scheduled or manually triggered refresh round.
type RefreshRequest struct {
	ID          uuid.UUID `json:"id"`
	IssuerID    int       `json:"issuer_id"`
	Mode        Mode      `json:"mode"`
	RoundID     int64     `json:"round_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Key returns the ledger key for this request.
func (r *RefreshRequest) Key() RequestKey {
	return RequestKey{IssuerID: r.IssuerID, Mode: r.Mode, RoundID: r.RoundID}
}

// FulfillmentRecord tracks the outcome of a single refresh round.
// Exactly one record exists per RequestKey; the ledger is its only writer.
type FulfillmentRecord struct {
	RequestID   uuid.UUID         `json:"request_id"`
	IssuerID    int               `json:"issuer_id"`
	Mode        Mode              `json:"mode"`
	RoundID     int64             `json:"round_id"`
	Status      FulfillmentStatus `json:"status"`
	Value       string            `json:"value,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	FulfilledAt *time.Time        `json:"fulfilled_at,omitempty"`
}

// Key returns the ledger key for this record.
func (r *FulfillmentRecord) Key() RequestKey {
	return RequestKey{IssuerID: r.IssuerID, Mode: r.Mode, RoundID: r.RoundID}
}

// OracleValue is the decoded form of the compact string an oracle callback
// carries. The wire shape is the shim encoding returned unmodified by the
// off-chain compute step:
//
//	cert:  "<ok>|CERT|<issuer_id>|<std>"
//	price: "<ok>|PRICE|<issuer_id>|<sku>|<jpykg>"
type OracleValue struct {
	OK       bool    `json:"ok"`
	Kind     Mode    `json:"kind"`
	IssuerID int     `json:"issuer_id"`
	Standard string  `json:"std,omitempty"`
	SKU      string  `json:"sku,omitempty"`
	JPYPerKg float64 `json:"jpykg,omitempty"`
	Raw      string  `json:"raw"`
}

// ParseOracleValue decodes a compact pipe-delimited oracle payload.
func ParseOracleValue(raw string) (*OracleValue, error) {
	parts := strings.Split(strings.TrimSpace(raw), "|")
	if len(parts) < 4 {
		return nil, fmt.Errorf("oracle payload has %d fields, want at least 4: %q", len(parts), raw)
	}

	ok := parts[0] == "1"

	issuerID, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("oracle payload has non-numeric issuer id %q: %w", parts[2], err)
	}

	v := &OracleValue{OK: ok, IssuerID: issuerID, Raw: raw}

	switch parts[1] {
	case "CERT":
		v.Kind = ModeCert
		v.Standard = parts[3]
	case "PRICE":
		if len(parts) < 5 {
			return nil, fmt.Errorf("price payload has %d fields, want 5: %q", len(parts), raw)
		}
		v.Kind = ModePrice
		v.SKU = parts[3]
		jpykg, err := strconv.ParseFloat(parts[4], 64)
		if err != nil {
			return nil, fmt.Errorf("price payload has non-numeric jpykg %q: %w", parts[4], err)
		}
		v.JPYPerKg = jpykg
	default:
		return nil, fmt.Errorf("oracle payload has unknown kind %q: %q", parts[1], raw)
	}

	return v, nil
}
