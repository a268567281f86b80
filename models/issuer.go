package models

import "time"

// Issuer is a per-issuer reference record served to the oracle network.
// Records are owned by the issuer dataset; this backend treats them as
// read-only apart from admin overrides and dataset sync.
type Issuer struct {
	ID          int        `json:"id"`
	CompanyName string     `json:"company_name"`
	ProductName string     `json:"product_name"`
	Cert        *CertInfo  `json:"cert,omitempty"`
	Price       *PriceInfo `json:"price,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CertInfo holds an issuer's certification record.
type CertInfo struct {
	OK       bool   `json:"ok"`
	Standard string `json:"std"`
	Subject  string `json:"sub"`
}

// PriceInfo holds an issuer's current price basis.
type PriceInfo struct {
	OK       bool    `json:"ok"`
	SKU      string  `json:"sku"`
	JPYPerKg float64 `json:"jpykg"`
}
