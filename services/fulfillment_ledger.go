package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashirwa/oracle-backend/models"
	"github.com/hashirwa/oracle-backend/shared"
	"github.com/sirupsen/logrus"
)

// slotKey identifies one (issuer, mode) refresh slot.
type slotKey struct {
	issuerID int
	mode     models.Mode
}

// refreshSlot serializes all round transitions for one issuer and mode.
// At most one non-terminal record may exist per slot at a time; round ids
// are monotonic within the slot.
type refreshSlot struct {
	mutex       sync.Mutex
	lastRoundID int64
	records     map[int64]*models.FulfillmentRecord
}

// FulfillmentLedger is the idempotent request/response ledger. It is the
// sole writer of FulfillmentRecord: the scheduler begins rounds through it
// and the coordinator resolves them through it. Transitions on one request
// key are serialized by the slot mutex; different slots never contend with
// each other (a single global transition lock would serialize unrelated
// issuers).
type FulfillmentLedger struct {
	slots  map[slotKey]*refreshSlot
	mutex  sync.RWMutex // guards slot map lookup/insert only
	logger *logrus.Entry
}

// NewFulfillmentLedger creates an empty ledger.
func NewFulfillmentLedger() *FulfillmentLedger {
	return &FulfillmentLedger{
		slots:  make(map[slotKey]*refreshSlot),
		logger: logrus.WithField("component", "FulfillmentLedger"),
	}
}

func (l *FulfillmentLedger) slot(issuerID int, mode models.Mode) *refreshSlot {
	key := slotKey{issuerID: issuerID, mode: mode}

	l.mutex.RLock()
	s, exists := l.slots[key]
	l.mutex.RUnlock()
	if exists {
		return s
	}

	l.mutex.Lock()
	defer l.mutex.Unlock()
	if s, exists = l.slots[key]; exists {
		return s
	}
	s = &refreshSlot{records: make(map[int64]*models.FulfillmentRecord)}
	l.slots[key] = s
	return s
}

// peek looks a slot up without inserting. Read and resolve paths use it so
// garbage keys (stale callbacks for rounds that never existed) do not grow
// the slot map.
func (l *FulfillmentLedger) peek(issuerID int, mode models.Mode) (*refreshSlot, bool) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	s, exists := l.slots[slotKey{issuerID: issuerID, mode: mode}]
	return s, exists
}

// Begin opens a new round for the issuer and mode, allocating the next
// round id. Returns AlreadyPending while the prior round is non-terminal.
func (l *FulfillmentLedger) Begin(issuerID int, mode models.Mode) (*models.RefreshRequest, error) {
	s := l.slot(issuerID, mode)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if current, exists := s.records[s.lastRoundID]; exists && !current.Status.IsTerminal() {
		return nil, shared.NewAlreadyPendingError("FulfillmentLedger", "begin", issuerID, string(mode))
	}

	s.lastRoundID++
	now := time.Now()
	record := &models.FulfillmentRecord{
		RequestID:   uuid.New(),
		IssuerID:    issuerID,
		Mode:        mode,
		RoundID:     s.lastRoundID,
		Status:      models.StatusPending,
		RequestedAt: now,
	}
	s.records[s.lastRoundID] = record

	l.logger.WithFields(logrus.Fields{
		"issuer_id": issuerID,
		"mode":      mode,
		"round_id":  s.lastRoundID,
	}).Debug("Opened refresh round")

	return &models.RefreshRequest{
		ID:          record.RequestID,
		IssuerID:    issuerID,
		Mode:        mode,
		RoundID:     s.lastRoundID,
		RequestedAt: now,
	}, nil
}

// Resolve moves a pending record to a terminal state. Value is stored on
// fulfillment, reason on failure/expiry. Resolving an unknown or already
// terminal key returns StaleCallback and mutates nothing.
func (l *FulfillmentLedger) Resolve(key models.RequestKey, status models.FulfillmentStatus, value, reason string) (*models.FulfillmentRecord, error) {
	if !status.IsTerminal() {
		return nil, shared.NewServiceError(shared.ErrorCategoryProcessing, "INVALID_TRANSITION",
			"resolve target must be a terminal status", "FulfillmentLedger", "resolve", false, nil)
	}

	s, exists := l.peek(key.IssuerID, key.Mode)
	if !exists {
		return nil, shared.NewStaleCallbackError("FulfillmentLedger", "resolve", key.String())
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.records[key.RoundID]
	if !exists || record.Status != models.StatusPending {
		return nil, shared.NewStaleCallbackError("FulfillmentLedger", "resolve", key.String())
	}

	now := time.Now()
	record.Status = status
	record.Value = value
	record.Reason = reason
	record.FulfilledAt = &now

	copied := *record
	return &copied, nil
}

// MarkSubmitted records that the round was accepted by the oracle network.
// The expiry timeout counts from this point: an unsubmitted pending round
// is still inside the scheduler's synchronous submission attempt and its
// outcome is resolved there, never by the sweep.
func (l *FulfillmentLedger) MarkSubmitted(key models.RequestKey) error {
	s, exists := l.peek(key.IssuerID, key.Mode)
	if !exists {
		return shared.NewStaleCallbackError("FulfillmentLedger", "mark_submitted", key.String())
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.records[key.RoundID]
	if !exists || record.Status != models.StatusPending {
		return shared.NewStaleCallbackError("FulfillmentLedger", "mark_submitted", key.String())
	}

	now := time.Now()
	record.SubmittedAt = &now
	return nil
}

// SweepExpired expires every submitted pending record whose submission is
// older than timeout and returns copies of the expired records so the
// coordinator can log them. Rounds not yet marked submitted are skipped.
func (l *FulfillmentLedger) SweepExpired(timeout time.Duration) []models.FulfillmentRecord {
	l.mutex.RLock()
	slots := make([]*refreshSlot, 0, len(l.slots))
	for _, s := range l.slots {
		slots = append(slots, s)
	}
	l.mutex.RUnlock()

	cutoff := time.Now().Add(-timeout)
	var expired []models.FulfillmentRecord

	for _, s := range slots {
		s.mutex.Lock()
		record, exists := s.records[s.lastRoundID]
		if exists && record.Status == models.StatusPending &&
			record.SubmittedAt != nil && record.SubmittedAt.Before(cutoff) {
			now := time.Now()
			record.Status = models.StatusExpired
			record.Reason = shared.CodeExpired
			record.FulfilledAt = &now
			expired = append(expired, *record)
		}
		s.mutex.Unlock()
	}

	return expired
}

// Get returns a copy of one record.
func (l *FulfillmentLedger) Get(key models.RequestKey) (*models.FulfillmentRecord, bool) {
	s, exists := l.peek(key.IssuerID, key.Mode)
	if !exists {
		return nil, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.records[key.RoundID]
	if !exists {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// Current returns a copy of the latest record for the issuer and mode.
func (l *FulfillmentLedger) Current(issuerID int, mode models.Mode) (*models.FulfillmentRecord, bool) {
	s, exists := l.peek(issuerID, mode)
	if !exists {
		return nil, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, exists := s.records[s.lastRoundID]
	if !exists {
		return nil, false
	}
	copied := *record
	return &copied, true
}

// Snapshot returns copies of every record for the issuer and mode, oldest
// round first. Debug/admin read path.
func (l *FulfillmentLedger) Snapshot(issuerID int, mode models.Mode) []models.FulfillmentRecord {
	s, exists := l.peek(issuerID, mode)
	if !exists {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	records := make([]models.FulfillmentRecord, 0, len(s.records))
	for roundID := int64(1); roundID <= s.lastRoundID; roundID++ {
		if record, exists := s.records[roundID]; exists {
			records = append(records, *record)
		}
	}
	return records
}

// SlotCount returns the number of allocated slots. Test/admin hook.
func (l *FulfillmentLedger) SlotCount() int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return len(l.slots)
}

// Reset clears all slots. Test hook.
func (l *FulfillmentLedger) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.slots = make(map[slotKey]*refreshSlot)
}
