package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/points"
	"avatarShopAPI/internal/storage"

	"github.com/google/uuid"
)

// CacheScheduler queues a refresh of a student's equipped-accessory cache.
// It must not block.
type CacheScheduler interface {
	Schedule(userID string)
}

type AccessoryService struct {
	store storage.Store
	cache CacheScheduler
	now   func() time.Time
}

func NewAccessoryService(store storage.Store, cache CacheScheduler) *AccessoryService {
	return &AccessoryService{store: store, cache: cache, now: time.Now}
}

func (s *AccessoryService) scheduleCacheSync(userID string) {
	if s.cache != nil {
		s.cache.Schedule(userID)
	}
}

func (s *AccessoryService) ListCatalog(ctx context.Context, filter accessory.Filter) ([]accessory.Accessory, error) {
	items, err := s.store.ListAccessories(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []accessory.Accessory{}
	}
	return items, nil
}

// ListOwned returns the student's accessories, oldest purchase first.
func (s *AccessoryService) ListOwned(ctx context.Context, userID string) ([]accessory.Ownership, error) {
	if userID == "" {
		return nil, accessory.ErrAuthRequired
	}
	owned, err := s.store.ListOwnerships(ctx, userID)
	if err != nil {
		return nil, err
	}
	if owned == nil {
		owned = []accessory.Ownership{}
	}
	return owned, nil
}

func (s *AccessoryService) ListEquipped(ctx context.Context, userID string) ([]accessory.Ownership, error) {
	owned, err := s.ListOwned(ctx, userID)
	if err != nil {
		return nil, err
	}
	equipped := []accessory.Ownership{}
	for _, o := range owned {
		if o.IsEquipped {
			equipped = append(equipped, o)
		}
	}
	return equipped, nil
}

// Purchase buys an accessory with points. When the store supports
// transactions the ownership row and the debit commit together; otherwise a
// failed debit is compensated by deleting the ownership row.
func (s *AccessoryService) Purchase(ctx context.Context, userID string, accessoryID uuid.UUID, slotOverride string) (*accessory.Ownership, error) {
	if userID == "" {
		return nil, accessory.ErrAuthRequired
	}

	var (
		owned *accessory.Ownership
		err   error
	)
	if tx, ok := s.store.(storage.Transactor); ok {
		err = tx.InTx(ctx, func(st storage.Store) error {
			if l, ok := st.(storage.Locker); ok {
				if err := l.LockStudent(ctx, userID); err != nil {
					return fmt.Errorf("failed to lock student: %w", err)
				}
			}
			var perr error
			owned, perr = s.purchase(ctx, st, userID, accessoryID, slotOverride, false)
			return perr
		})
	} else {
		owned, err = s.purchase(ctx, s.store, userID, accessoryID, slotOverride, true)
	}
	if err != nil {
		purchasesTotal.WithLabelValues(purchaseOutcome(err)).Inc()
		return nil, err
	}

	purchasesTotal.WithLabelValues("success").Inc()
	log.Printf("Student %s purchased accessory %s for %d points", userID, accessoryID, owned.Accessory.PricePoints)
	s.scheduleCacheSync(userID)
	return owned, nil
}

func (s *AccessoryService) purchase(ctx context.Context, st storage.Store, userID string, accessoryID uuid.UUID, slotOverride string, compensate bool) (*accessory.Ownership, error) {
	item, err := st.GetAccessory(ctx, accessoryID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", accessory.ErrNotFound, accessoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accessory: %w", err)
	}

	_, err = st.GetOwnership(ctx, userID, accessoryID)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", accessory.ErrAlreadyOwned, accessoryID)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}

	balance, err := computeBalance(ctx, st, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	if balance.Available < item.PricePoints {
		return nil, fmt.Errorf("%w: need %d, have %d", accessory.ErrInsufficientFunds, item.PricePoints, balance.Available)
	}

	slot := slotOverride
	if slot == "" {
		slot = string(item.Category)
	}
	if slot == "" {
		slot = accessory.SlotAuto
	}

	owned := &accessory.Ownership{
		UserID:      userID,
		AccessoryID: accessoryID,
		Slot:        slot,
		PurchasedAt: s.now(),
	}
	if err := st.InsertOwnership(ctx, owned); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %s", accessory.ErrAlreadyOwned, accessoryID)
		}
		return nil, fmt.Errorf("failed to add accessory to collection: %w", err)
	}

	md, err := json.Marshal(points.PurchaseMetadata{AccessoryID: accessoryID, Slot: slot})
	if err != nil {
		return nil, err
	}
	debit := &points.Transaction{
		StudentID: userID,
		Delta:     -item.PricePoints,
		Reason:    points.ReasonAccessoryPurchase,
		Metadata:  md,
		CreatedAt: s.now(),
	}
	if err := st.AppendLedgerEntry(ctx, debit); err != nil {
		if compensate {
			s.compensate(ctx, st, userID, accessoryID, err)
		}
		return nil, fmt.Errorf("failed to record point transaction: %w", err)
	}

	owned.Accessory = item
	return owned, nil
}

// compensate removes an ownership row whose debit failed. A failure here
// leaves the row for reconciliation.
func (s *AccessoryService) compensate(ctx context.Context, st storage.Store, userID string, accessoryID uuid.UUID, cause error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := st.DeleteOwnership(cctx, userID, accessoryID); err != nil {
		compensationFailuresTotal.Inc()
		log.Printf("CRITICAL: purchase of %s by %s left without debit (ledger: %v), rollback failed: %v",
			accessoryID, userID, cause, err)
		return
	}
	log.Printf("Rolled back purchase of %s by %s after ledger failure: %v", accessoryID, userID, cause)
}

func purchaseOutcome(err error) string {
	switch {
	case errors.Is(err, accessory.ErrNotFound):
		return "not_found"
	case errors.Is(err, accessory.ErrAlreadyOwned):
		return "already_owned"
	case errors.Is(err, accessory.ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "error"
	}
}

func (s *AccessoryService) ownership(ctx context.Context, userID string, accessoryID uuid.UUID) (*accessory.Ownership, error) {
	o, err := s.store.GetOwnership(ctx, userID, accessoryID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", accessory.ErrNotOwned, accessoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ownership: %w", err)
	}
	return o, nil
}

func notOwned(err error, accessoryID uuid.UUID) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", accessory.ErrNotOwned, accessoryID)
	}
	return err
}

// Equip puts an owned accessory on and takes off whatever else occupied the
// slot. The slot is the one given, else the stored one, else the category.
func (s *AccessoryService) Equip(ctx context.Context, userID string, accessoryID uuid.UUID, slot string) (*accessory.Ownership, error) {
	if userID == "" {
		return nil, accessory.ErrAuthRequired
	}

	rec, err := s.ownership(ctx, userID, accessoryID)
	if err != nil {
		return nil, err
	}

	target := slot
	if target == "" {
		target = rec.Slot
	}
	if target == "" && rec.Accessory != nil {
		target = string(rec.Accessory.Category)
	}
	if target == "" {
		target = accessory.SlotAuto
	}

	if err := s.store.UnequipSlot(ctx, userID, target); err != nil {
		return nil, fmt.Errorf("failed to unequip slot %s: %w", target, err)
	}
	updated, err := s.store.EquipOwnership(ctx, userID, accessoryID, target, s.now())
	if err != nil {
		return nil, notOwned(err, accessoryID)
	}

	s.scheduleCacheSync(userID)
	return updated, nil
}

func (s *AccessoryService) Unequip(ctx context.Context, userID string, accessoryID uuid.UUID) (*accessory.Ownership, error) {
	if userID == "" {
		return nil, accessory.ErrAuthRequired
	}

	updated, err := s.store.UnequipOwnership(ctx, userID, accessoryID)
	if err != nil {
		return nil, notOwned(err, accessoryID)
	}

	s.scheduleCacheSync(userID)
	return updated, nil
}

func (s *AccessoryService) UpdateCustomMetadata(ctx context.Context, userID string, accessoryID uuid.UUID, md accessory.Transform) (*accessory.Ownership, error) {
	if userID == "" {
		return nil, accessory.ErrAuthRequired
	}

	updated, err := s.store.UpdateCustomMetadata(ctx, userID, accessoryID, md)
	if err != nil {
		return nil, notOwned(err, accessoryID)
	}

	s.scheduleCacheSync(userID)
	return updated, nil
}
