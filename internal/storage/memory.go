package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/points"
	"avatarShopAPI/internal/progress"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. Operations can be made to fail
// with Fail for exercising error paths.
type MemoryStore struct {
	mu           sync.Mutex
	accessories  []accessory.Accessory
	ownerships   map[string][]accessory.Ownership
	ledger       map[string][]points.Transaction
	scores       map[string][]points.Score
	achievements map[string][]points.EarnedAchievement
	counters     map[string]progress.Counters
	cache        map[string][]accessory.CacheEntry
	failures     map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ownerships:   make(map[string][]accessory.Ownership),
		ledger:       make(map[string][]points.Transaction),
		scores:       make(map[string][]points.Score),
		achievements: make(map[string][]points.EarnedAchievement),
		counters:     make(map[string]progress.Counters),
		cache:        make(map[string][]accessory.CacheEntry),
		failures:     make(map[string]error),
	}
}

// Fail makes every later call of the named method return err. A nil err
// clears the failure.
func (m *MemoryStore) Fail(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, method)
		return
	}
	m.failures[method] = err
}

func (m *MemoryStore) failure(method string) error {
	return m.failures[method]
}

func (m *MemoryStore) AddAccessory(a accessory.Accessory) accessory.Accessory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.accessories = append(m.accessories, a)
	return a
}

func (m *MemoryStore) AddScore(userID string, score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[userID] = append(m.scores[userID], points.Score{
		ID:        uuid.New(),
		StudentID: userID,
		Score:     score,
		CreatedAt: time.Now(),
	})
}

func (m *MemoryStore) AddAchievement(userID, achievementID string, pts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.achievements[userID] = append(m.achievements[userID], points.EarnedAchievement{
		StudentID:     userID,
		AchievementID: achievementID,
		Points:        pts,
		EarnedAt:      time.Now(),
	})
}

func (m *MemoryStore) SetCounters(c progress.Counters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[c.StudentID] = c
}

// EquippedCache returns the last payload saved for userID.
func (m *MemoryStore) EquippedCache(userID string) ([]accessory.CacheEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries, ok := m.cache[userID]
	return entries, ok
}

func (m *MemoryStore) accessoryByID(id uuid.UUID) (accessory.Accessory, bool) {
	for _, a := range m.accessories {
		if a.ID == id {
			return a, true
		}
	}
	return accessory.Accessory{}, false
}

func (m *MemoryStore) joined(o accessory.Ownership) accessory.Ownership {
	if a, ok := m.accessoryByID(o.AccessoryID); ok {
		o.Accessory = &a
	}
	return o
}

func (m *MemoryStore) ownershipIndex(userID string, accessoryID uuid.UUID) int {
	for i, o := range m.ownerships[userID] {
		if o.AccessoryID == accessoryID {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) ListAccessories(_ context.Context, filter accessory.Filter) ([]accessory.Accessory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListAccessories"); err != nil {
		return nil, err
	}

	var out []accessory.Accessory
	for _, a := range m.accessories {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PricePoints < out[j].PricePoints })
	return out, nil
}

func (m *MemoryStore) GetAccessory(_ context.Context, id uuid.UUID) (*accessory.Accessory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetAccessory"); err != nil {
		return nil, err
	}

	a, ok := m.accessoryByID(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryStore) ListOwnerships(_ context.Context, userID string) ([]accessory.Ownership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListOwnerships"); err != nil {
		return nil, err
	}

	out := make([]accessory.Ownership, 0, len(m.ownerships[userID]))
	for _, o := range m.ownerships[userID] {
		out = append(out, m.joined(o))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchasedAt.Before(out[j].PurchasedAt) })
	return out, nil
}

func (m *MemoryStore) GetOwnership(_ context.Context, userID string, accessoryID uuid.UUID) (*accessory.Ownership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetOwnership"); err != nil {
		return nil, err
	}

	i := m.ownershipIndex(userID, accessoryID)
	if i < 0 {
		return nil, ErrNotFound
	}
	o := m.joined(m.ownerships[userID][i])
	return &o, nil
}

func (m *MemoryStore) InsertOwnership(_ context.Context, o *accessory.Ownership) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("InsertOwnership"); err != nil {
		return err
	}

	if m.ownershipIndex(o.UserID, o.AccessoryID) >= 0 {
		return ErrDuplicate
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.PurchasedAt.IsZero() {
		o.PurchasedAt = time.Now()
	}
	row := *o
	row.Accessory = nil
	m.ownerships[o.UserID] = append(m.ownerships[o.UserID], row)
	return nil
}

func (m *MemoryStore) DeleteOwnership(_ context.Context, userID string, accessoryID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("DeleteOwnership"); err != nil {
		return err
	}

	i := m.ownershipIndex(userID, accessoryID)
	if i < 0 {
		return ErrNotFound
	}
	rows := m.ownerships[userID]
	m.ownerships[userID] = append(rows[:i:i], rows[i+1:]...)
	return nil
}

func (m *MemoryStore) UnequipSlot(_ context.Context, userID, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("UnequipSlot"); err != nil {
		return err
	}

	rows := m.ownerships[userID]
	for i := range rows {
		if rows[i].Slot == slot && rows[i].IsEquipped {
			rows[i].IsEquipped = false
			rows[i].EquippedAt = nil
		}
	}
	return nil
}

func (m *MemoryStore) update(method, userID string, accessoryID uuid.UUID, apply func(*accessory.Ownership)) (*accessory.Ownership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure(method); err != nil {
		return nil, err
	}

	i := m.ownershipIndex(userID, accessoryID)
	if i < 0 {
		return nil, ErrNotFound
	}
	apply(&m.ownerships[userID][i])
	o := m.joined(m.ownerships[userID][i])
	return &o, nil
}

func (m *MemoryStore) EquipOwnership(_ context.Context, userID string, accessoryID uuid.UUID, slot string, at time.Time) (*accessory.Ownership, error) {
	return m.update("EquipOwnership", userID, accessoryID, func(o *accessory.Ownership) {
		o.Slot = slot
		o.IsEquipped = true
		o.EquippedAt = &at
	})
}

func (m *MemoryStore) UnequipOwnership(_ context.Context, userID string, accessoryID uuid.UUID) (*accessory.Ownership, error) {
	return m.update("UnequipOwnership", userID, accessoryID, func(o *accessory.Ownership) {
		o.IsEquipped = false
		o.EquippedAt = nil
	})
}

func (m *MemoryStore) UpdateCustomMetadata(_ context.Context, userID string, accessoryID uuid.UUID, md accessory.Transform) (*accessory.Ownership, error) {
	return m.update("UpdateCustomMetadata", userID, accessoryID, func(o *accessory.Ownership) {
		o.CustomMetadata = &md
	})
}

func (m *MemoryStore) AppendLedgerEntry(_ context.Context, tx *points.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("AppendLedgerEntry"); err != nil {
		return err
	}

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	m.ledger[tx.StudentID] = append(m.ledger[tx.StudentID], *tx)
	return nil
}

func (m *MemoryStore) ListLedger(_ context.Context, userID string, limit int) ([]points.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListLedger"); err != nil {
		return nil, err
	}

	rows := m.ledger[userID]
	out := make([]points.Transaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, rows[i])
	}
	return out, nil
}

func (m *MemoryStore) LedgerDelta(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("LedgerDelta"); err != nil {
		return 0, err
	}
	return points.SumDeltas(m.ledger[userID]), nil
}

func (m *MemoryStore) ListScores(_ context.Context, userID string) ([]points.Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListScores"); err != nil {
		return nil, err
	}
	return append([]points.Score(nil), m.scores[userID]...), nil
}

func (m *MemoryStore) ListEarnedAchievements(_ context.Context, userID string) ([]points.EarnedAchievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("ListEarnedAchievements"); err != nil {
		return nil, err
	}
	return append([]points.EarnedAchievement(nil), m.achievements[userID]...), nil
}

func (m *MemoryStore) GetProgressCounters(_ context.Context, userID string) (progress.Counters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("GetProgressCounters"); err != nil {
		return progress.Counters{}, err
	}

	c, ok := m.counters[userID]
	if !ok {
		return progress.Counters{StudentID: userID, Level: 1}, nil
	}
	return c, nil
}

func (m *MemoryStore) SaveEquippedCache(_ context.Context, userID string, entries []accessory.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("SaveEquippedCache"); err != nil {
		return err
	}
	m.cache[userID] = append([]accessory.CacheEntry(nil), entries...)
	return nil
}

func (m *MemoryStore) FindOrphanedOwnerships(_ context.Context) ([]accessory.Ownership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failure("FindOrphanedOwnerships"); err != nil {
		return nil, err
	}

	var orphans []accessory.Ownership
	for userID, rows := range m.ownerships {
		debited := map[uuid.UUID]bool{}
		for _, tx := range m.ledger[userID] {
			if tx.Reason != points.ReasonAccessoryPurchase {
				continue
			}
			var md points.PurchaseMetadata
			if err := json.Unmarshal(tx.Metadata, &md); err != nil {
				continue
			}
			debited[md.AccessoryID] = true
		}
		for _, o := range rows {
			a, ok := m.accessoryByID(o.AccessoryID)
			if !ok || a.PricePoints == 0 || debited[o.AccessoryID] {
				continue
			}
			orphans = append(orphans, m.joined(o))
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].PurchasedAt.Before(orphans[j].PurchasedAt) })
	return orphans, nil
}

type memorySnapshot struct {
	ownerships map[string][]accessory.Ownership
	ledger     map[string][]points.Transaction
	cache      map[string][]accessory.CacheEntry
}

func (m *MemoryStore) snapshot() memorySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := memorySnapshot{
		ownerships: make(map[string][]accessory.Ownership, len(m.ownerships)),
		ledger:     make(map[string][]points.Transaction, len(m.ledger)),
		cache:      make(map[string][]accessory.CacheEntry, len(m.cache)),
	}
	for k, v := range m.ownerships {
		s.ownerships[k] = append([]accessory.Ownership(nil), v...)
	}
	for k, v := range m.ledger {
		s.ledger[k] = append([]points.Transaction(nil), v...)
	}
	for k, v := range m.cache {
		s.cache[k] = append([]accessory.CacheEntry(nil), v...)
	}
	return s
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownerships = s.ownerships
	m.ledger = s.ledger
	m.cache = s.cache
}

// TransactionalMemoryStore is a MemoryStore whose InTx undoes every write
// made by fn when fn fails. Transactions are serialized.
type TransactionalMemoryStore struct {
	*MemoryStore
	txMu sync.Mutex
}

func NewTransactionalMemoryStore() *TransactionalMemoryStore {
	return &TransactionalMemoryStore{MemoryStore: NewMemoryStore()}
}

func (t *TransactionalMemoryStore) InTx(_ context.Context, fn func(Store) error) error {
	t.txMu.Lock()
	defer t.txMu.Unlock()

	saved := t.snapshot()
	if err := fn(t.MemoryStore); err != nil {
		t.restore(saved)
		return err
	}
	return nil
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ Transactor = (*TransactionalMemoryStore)(nil)
)
