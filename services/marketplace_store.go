package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/sirupsen/logrus"
)

// allowedLinkSchemes is the document link allow-list.
var allowedLinkSchemes = map[string]bool{
	"github": true,
	"drive":  true,
	"ipfs":   true,
	"https":  true,
}

// watchKey identifies one session's interest in one listing.
type watchKey struct {
	sessionID string
	listingID int
}

// listingVault holds one listing's documents and owns the listing-scoped
// id counter. The vault mutex makes id allocation atomic per listing
// without serializing writes to unrelated listings.
type listingVault struct {
	mutex     sync.Mutex
	nextID    int64
	documents []models.Document
}

// MarketplaceStore holds the three append-mostly marketplace collections
// (document vault, notification log, watchlist) plus the per-issuer
// displayed reference values, and arbitrates writes from user actions and
// coordinator events. Single writer per entity: every mutation of these
// collections goes through this store.
type MarketplaceStore struct {
	catalog *IssuerCatalog

	vaults     map[int]*listingVault
	vaultMutex sync.RWMutex // guards vault map lookup/insert only

	notifications     []models.Notification
	notificationMutex sync.RWMutex

	watchlist      map[watchKey]*models.WatchlistEntry
	watchlistMutex sync.RWMutex

	referenceValues map[slotKey]*models.OracleValue
	referenceMutex  sync.RWMutex

	notifyHook func(models.Notification)
	hookMutex  sync.RWMutex

	logger *logrus.Entry
}

// NewMarketplaceStore creates a store validating listing ids against the
// issuer catalog.
func NewMarketplaceStore(catalog *IssuerCatalog) *MarketplaceStore {
	return &MarketplaceStore{
		catalog:         catalog,
		vaults:          make(map[int]*listingVault),
		watchlist:       make(map[watchKey]*models.WatchlistEntry),
		referenceValues: make(map[slotKey]*models.OracleValue),
		logger:          logrus.WithField("component", "MarketplaceStore"),
	}
}

func (s *MarketplaceStore) vault(listingID int) *listingVault {
	s.vaultMutex.RLock()
	v, exists := s.vaults[listingID]
	s.vaultMutex.RUnlock()
	if exists {
		return v
	}

	s.vaultMutex.Lock()
	defer s.vaultMutex.Unlock()
	if v, exists = s.vaults[listingID]; exists {
		return v
	}
	v = &listingVault{}
	s.vaults[listingID] = v
	return v
}

// AddDocument stores a due-diligence document link in the listing's vault
// and appends a document_added notification. Document ids are listing
// scoped and strictly increasing even under concurrent calls.
func (s *MarketplaceStore) AddDocument(listingID int, link string) (*models.Document, error) {
	if !s.catalog.Exists(listingID) {
		return nil, shared.NewInvalidListingError("MarketplaceStore", "add_document", listingID)
	}
	if !ValidDocumentLink(link) {
		return nil, shared.NewInvalidLinkError("MarketplaceStore", "add_document", link)
	}

	v := s.vault(listingID)

	v.mutex.Lock()
	v.nextID++
	document := models.Document{
		ID:        v.nextID,
		ListingID: listingID,
		Link:      link,
		AddedAt:   time.Now(),
	}
	v.documents = append(v.documents, document)
	v.mutex.Unlock()

	s.AppendNotification(listingID, models.NotificationDocumentAdded, link)

	s.logger.WithFields(logrus.Fields{
		"listing_id":  listingID,
		"document_id": document.ID,
	}).Info("Document added to vault")

	return &document, nil
}

// ListDocuments returns the listing's documents oldest first. The length
// of the returned slice doubles as the badge count.
func (s *MarketplaceStore) ListDocuments(listingID int) ([]models.Document, error) {
	if !s.catalog.Exists(listingID) {
		return nil, shared.NewInvalidListingError("MarketplaceStore", "list_documents", listingID)
	}

	v := s.vault(listingID)

	v.mutex.Lock()
	defer v.mutex.Unlock()

	documents := make([]models.Document, len(v.documents))
	copy(documents, v.documents)
	return documents, nil
}

// ValidDocumentLink reports whether a link uses an allow-listed scheme.
func ValidDocumentLink(link string) bool {
	link = strings.TrimSpace(link)
	if link == "" {
		return false
	}

	scheme := link
	if idx := strings.Index(link, "://"); idx > 0 {
		scheme = link[:idx]
	} else if idx := strings.Index(link, ":"); idx > 0 {
		scheme = link[:idx]
	} else {
		return false
	}

	return allowedLinkSchemes[strings.ToLower(scheme)]
}

// AppendNotification appends to the shared notification log. The append is
// synchronous and in-memory, so the originating mutation never waits on a
// downstream consumer.
func (s *MarketplaceStore) AppendNotification(listingID int, kind models.NotificationKind, payload string) models.Notification {
	notification := models.Notification{
		ID:        uuid.New(),
		ListingID: listingID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now(),
	}

	s.notificationMutex.Lock()
	s.notifications = append(s.notifications, notification)
	s.notificationMutex.Unlock()

	s.hookMutex.RLock()
	hook := s.notifyHook
	s.hookMutex.RUnlock()
	if hook != nil {
		hook(notification)
	}

	return notification
}

// SetNotifyHook registers a callback invoked after every notification
// append, whatever its origin. The dispatcher installs its broadcast here
// so vault events and coordinator events reach subscribers the same way.
func (s *MarketplaceStore) SetNotifyHook(hook func(models.Notification)) {
	s.hookMutex.Lock()
	defer s.hookMutex.Unlock()

	s.notifyHook = hook
}

// ListNotifications returns notifications most recent first. A limit of
// zero or less returns the full log.
func (s *MarketplaceStore) ListNotifications(limit int) []models.Notification {
	s.notificationMutex.RLock()
	defer s.notificationMutex.RUnlock()

	count := len(s.notifications)
	if limit > 0 && limit < count {
		count = limit
	}

	out := make([]models.Notification, 0, count)
	for i := len(s.notifications) - 1; i >= 0 && len(out) < count; i-- {
		out = append(out, s.notifications[i])
	}
	return out
}

// ToggleWatchlist flips the session's tracking state for a listing,
// creating the entry active=true when absent. Returns the new state.
// Double-toggling returns to the original state.
func (s *MarketplaceStore) ToggleWatchlist(sessionID string, listingID int) (bool, error) {
	if !s.catalog.Exists(listingID) {
		return false, shared.NewInvalidListingError("MarketplaceStore", "toggle_watchlist", listingID)
	}

	key := watchKey{sessionID: sessionID, listingID: listingID}

	s.watchlistMutex.Lock()
	defer s.watchlistMutex.Unlock()

	entry, exists := s.watchlist[key]
	if !exists {
		entry = &models.WatchlistEntry{
			SessionID: sessionID,
			ListingID: listingID,
			Active:    true,
			UpdatedAt: time.Now(),
		}
		s.watchlist[key] = entry
		return true, nil
	}

	entry.Active = !entry.Active
	entry.UpdatedAt = time.Now()
	return entry.Active, nil
}

// Watchlist returns the session's active listing ids in ascending order.
func (s *MarketplaceStore) Watchlist(sessionID string) []int {
	s.watchlistMutex.RLock()
	defer s.watchlistMutex.RUnlock()

	var listings []int
	for key, entry := range s.watchlist {
		if key.sessionID == sessionID && entry.Active {
			listings = append(listings, key.listingID)
		}
	}
	sort.Ints(listings)
	return listings
}

// SetReferenceValue records the issuer's last confirmed oracle value. Only
// the coordinator calls this, and only on fulfillment, so a failed or
// expired round leaves the previously displayed value untouched.
func (s *MarketplaceStore) SetReferenceValue(issuerID int, mode models.Mode, value *models.OracleValue) {
	s.referenceMutex.Lock()
	defer s.referenceMutex.Unlock()

	s.referenceValues[slotKey{issuerID: issuerID, mode: mode}] = value
}

// ReferenceValue returns the issuer's displayed value for a mode.
func (s *MarketplaceStore) ReferenceValue(issuerID int, mode models.Mode) (*models.OracleValue, bool) {
	s.referenceMutex.RLock()
	defer s.referenceMutex.RUnlock()

	value, exists := s.referenceValues[slotKey{issuerID: issuerID, mode: mode}]
	return value, exists
}

// Reset clears every collection. Test hook.
func (s *MarketplaceStore) Reset() {
	s.vaultMutex.Lock()
	s.vaults = make(map[int]*listingVault)
	s.vaultMutex.Unlock()

	s.notificationMutex.Lock()
	s.notifications = nil
	s.notificationMutex.Unlock()

	s.watchlistMutex.Lock()
	s.watchlist = make(map[watchKey]*models.WatchlistEntry)
	s.watchlistMutex.Unlock()

	s.referenceMutex.Lock()
	s.referenceValues = make(map[slotKey]*models.OracleValue)
	s.referenceMutex.Unlock()
}
