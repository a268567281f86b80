package models

import "time"

// WatchlistEntry marks a listing a session is tracking. Keyed by
// (session_id, listing_id); toggles are last-write-wins and the entry
// lives only as long as the process.
type WatchlistEntry struct {
	SessionID string    `json:"session_id"`
	ListingID int       `json:"listing_id"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}
