package models

import "time"

// Document is a due-diligence document reference in a listing's vault.
// Ids are listing-scoped and strictly increasing; documents are never
// mutated after creation.
type Document struct {
	ID        int64     `json:"id"`
	ListingID int       `json:"listing_id"`
	Link      string    `json:"link"`
	AddedAt   time.Time `json:"added_at"`
}
