package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies marketplace notifications.
type NotificationKind string

const (
	NotificationDocumentAdded NotificationKind = "document_added"
	NotificationPriceUpdated  NotificationKind = "price_updated"
	NotificationCertUpdated   NotificationKind = "cert_updated"
)

// Notification is one entry in the append-only marketplace notification log.
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	ListingID int              `json:"listing_id"`
	Kind      NotificationKind `json:"kind"`
	Payload   string           `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}
