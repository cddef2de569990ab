package services

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/points"
	"avatarShopAPI/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingScheduler struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingScheduler) Schedule(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func (r *recordingScheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func available(t *testing.T, store storage.Store, userID string) int {
	t.Helper()
	b, err := NewPointsService(store).GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b.Available
}

// both runs a test against the compensating and the transactional store.
func both(t *testing.T, fn func(t *testing.T, store storage.Store, mem *storage.MemoryStore)) {
	t.Run("compensating", func(t *testing.T) {
		m := storage.NewMemoryStore()
		fn(t, m, m)
	})
	t.Run("transactional", func(t *testing.T) {
		m := storage.NewTransactionalMemoryStore()
		fn(t, m, m.MemoryStore)
	})
}

func TestPurchaseExactBalance(t *testing.T) {
	both(t, func(t *testing.T, store storage.Store, mem *storage.MemoryStore) {
		ctx := context.Background()
		mem.AddScore("u1", 50)
		beanie := mem.AddAccessory(accessory.Accessory{Name: "cap", Category: accessory.CategoryHat, PricePoints: 50})
		sched := &recordingScheduler{}
		svc := NewAccessoryService(store, sched)

		owned, err := svc.Purchase(ctx, "u1", beanie.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "hat", owned.Slot)
		assert.False(t, owned.IsEquipped)
		require.NotNil(t, owned.Accessory)
		assert.Equal(t, "cap", owned.Accessory.Name)

		assert.Equal(t, 0, available(t, store, "u1"))
		assert.Equal(t, 1, sched.count())

		ledger, err := mem.ListLedger(ctx, "u1", 0)
		require.NoError(t, err)
		require.Len(t, ledger, 1)
		assert.Equal(t, -50, ledger[0].Delta)
		assert.Equal(t, points.ReasonAccessoryPurchase, ledger[0].Reason)
		assert.JSONEq(t, `{"accessory_id":"`+beanie.ID.String()+`","slot":"hat"}`, string(ledger[0].Metadata))
	})
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	both(t, func(t *testing.T, store storage.Store, mem *storage.MemoryStore) {
		ctx := context.Background()
		mem.AddScore("u1", 49)
		beanie := mem.AddAccessory(accessory.Accessory{Name: "cap", Category: accessory.CategoryHat, PricePoints: 50})
		svc := NewAccessoryService(store, nil)

		_, err := svc.Purchase(ctx, "u1", beanie.ID, "")
		assert.ErrorIs(t, err, accessory.ErrInsufficientFunds)

		assert.Equal(t, 49, available(t, store, "u1"))
		owned, err := svc.ListOwned(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, owned)
	})
}

func TestPurchaseAlreadyOwnedAddsNoLedgerEntry(t *testing.T) {
	both(t, func(t *testing.T, store storage.Store, mem *storage.MemoryStore) {
		ctx := context.Background()
		mem.AddScore("u1", 100)
		beanie := mem.AddAccessory(accessory.Accessory{Name: "cap", Category: accessory.CategoryHat, PricePoints: 30})
		svc := NewAccessoryService(store, nil)

		_, err := svc.Purchase(ctx, "u1", beanie.ID, "")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err = svc.Purchase(ctx, "u1", beanie.ID, "")
			assert.ErrorIs(t, err, accessory.ErrAlreadyOwned)
		}

		ledger, err := mem.ListLedger(ctx, "u1", 0)
		require.NoError(t, err)
		assert.Len(t, ledger, 1)
		assert.Equal(t, 70, available(t, store, "u1"))
	})
}

func TestPurchaseUnknownAccessory(t *testing.T) {
	svc := NewAccessoryService(storage.NewMemoryStore(), nil)
	_, err := svc.Purchase(context.Background(), "u1", uuid.New(), "")
	assert.ErrorIs(t, err, accessory.ErrNotFound)
}

func TestPurchaseRequiresUser(t *testing.T) {
	m := storage.NewMemoryStore()
	m.Fail("GetAccessory", errors.New("should not be called"))
	svc := NewAccessoryService(m, nil)

	_, err := svc.Purchase(context.Background(), "", uuid.New(), "")
	assert.ErrorIs(t, err, accessory.ErrAuthRequired)
}

func TestPurchaseSlotOverride(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemoryStore()
	glasses := m.AddAccessory(accessory.Accessory{Name: "glasses", Category: accessory.CategoryEyes})
	svc := NewAccessoryService(m, nil)

	owned, err := svc.Purchase(ctx, "u1", glasses.ID, "face")
	require.NoError(t, err)
	assert.Equal(t, "face", owned.Slot)
}

func TestPurchaseLedgerFailureIsCompensated(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemoryStore()
	m.AddScore("u1", 100)
	beanie := m.AddAccessory(accessory.Accessory{Name: "cap", Category: accessory.CategoryHat, PricePoints: 40})
	m.Fail("AppendLedgerEntry", errors.New("ledger down"))
	sched := &recordingScheduler{}
	svc := NewAccessoryService(m, sched)

	_, err := svc.Purchase(ctx, "u1", beanie.ID, "")
	require.Error(t, err)

	_, err = m.GetOwnership(ctx, "u1", beanie.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 100, available(t, m, "u1"))
	assert.Zero(t, sched.count())
}

func TestPurchaseFailedCompensationLeavesOrphan(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemoryStore()
	m.AddScore("u1", 100)
	beanie := m.AddAccessory(accessory.Accessory{Name: "cap", Category: accessory.CategoryHat, PricePoints: 40})
	m.Fail("AppendLedgerEntry", errors.New("ledger down"))
	m.Fail("DeleteOwnership", errors.New("still down"))
	svc := NewAccessoryService(m, nil)

	_, err := svc.Purchase(ctx, "u1", beanie.ID, "")
	require.Error(t, err)

	orphans, err := m.FindOrphanedOwnerships(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, beanie.ID, orphans[0].AccessoryID)
}

func TestPurchaseLedgerFailureRollsBackTransaction(t *testing.T) {
	ctx := context.Background()
	m := storage.NewTransactionalMemoryStore()
	m.AddScore("u1", 100)
	beanie := m.AddAccessory(accessory.Accessory{Name: "cap", Category: accessory.CategoryHat, PricePoints: 40})
	m.Fail("AppendLedgerEntry", errors.New("ledger down"))
	// the transactional path must not rely on compensation
	m.Fail("DeleteOwnership", errors.New("not expected"))
	svc := NewAccessoryService(m, nil)

	_, err := svc.Purchase(ctx, "u1", beanie.ID, "")
	require.Error(t, err)

	_, err = m.GetOwnership(ctx, "u1", beanie.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	orphans, err := m.FindOrphanedOwnerships(ctx)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestPurchaseMonotonicity(t *testing.T) {
	both(t, func(t *testing.T, store storage.Store, mem *storage.MemoryStore) {
		ctx := context.Background()
		mem.AddScore("u1", 1000)
		svc := NewAccessoryService(store, nil)

		for _, price := range []int{0, 15, 120, 300} {
			a := mem.AddAccessory(accessory.Accessory{Name: "item", Category: accessory.CategoryBody, PricePoints: price})
			before := available(t, store, "u1")

			_, err := svc.Purchase(ctx, "u1", a.ID, "")
			require.NoError(t, err)

			assert.Equal(t, before-price, available(t, store, "u1"))
			_, err = mem.GetOwnership(ctx, "u1", a.ID)
			assert.NoError(t, err)
		}
	})
}

func TestConcurrentPurchasesDoNotOverspend(t *testing.T) {
	ctx := context.Background()
	m := storage.NewTransactionalMemoryStore()
	m.AddScore("u1", 100)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, m.AddAccessory(accessory.Accessory{Name: "item", Category: accessory.CategoryOther, PricePoints: 40}).ID)
	}
	svc := NewAccessoryService(m, nil)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			svc.Purchase(ctx, "u1", id, "")
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 20, available(t, m, "u1"))
	owned, err := svc.ListOwned(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func ownTwoHats(t *testing.T) (*storage.MemoryStore, accessory.Accessory, accessory.Accessory) {
	t.Helper()
	ctx := context.Background()
	m := storage.NewMemoryStore()
	a := m.AddAccessory(accessory.Accessory{Name: "A", Category: accessory.CategoryHat})
	b := m.AddAccessory(accessory.Accessory{Name: "B", Category: accessory.CategoryHat})
	require.NoError(t, m.InsertOwnership(ctx, &accessory.Ownership{UserID: "u1", AccessoryID: a.ID, Slot: "hat"}))
	require.NoError(t, m.InsertOwnership(ctx, &accessory.Ownership{UserID: "u1", AccessoryID: b.ID, Slot: "hat"}))
	return m, a, b
}

func TestEquipReplacesSlotOccupant(t *testing.T) {
	ctx := context.Background()
	m, a, b := ownTwoHats(t)
	sched := &recordingScheduler{}
	svc := NewAccessoryService(m, sched)

	_, err := svc.Equip(ctx, "u1", a.ID, "")
	require.NoError(t, err)
	got, err := svc.Equip(ctx, "u1", b.ID, "")
	require.NoError(t, err)
	assert.True(t, got.IsEquipped)
	assert.NotNil(t, got.EquippedAt)

	ra, err := m.GetOwnership(ctx, "u1", a.ID)
	require.NoError(t, err)
	rb, err := m.GetOwnership(ctx, "u1", b.ID)
	require.NoError(t, err)
	assert.False(t, ra.IsEquipped)
	assert.Nil(t, ra.EquippedAt)
	assert.True(t, rb.IsEquipped)
	assert.Equal(t, 2, sched.count())
}

func TestEquipNotOwned(t *testing.T) {
	m, _, _ := ownTwoHats(t)
	svc := NewAccessoryService(m, nil)

	_, err := svc.Equip(context.Background(), "u2", uuid.New(), "")
	assert.ErrorIs(t, err, accessory.ErrNotOwned)
}

func TestEquipFallsBackToCategory(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemoryStore()
	bg := m.AddAccessory(accessory.Accessory{Name: "stage", Category: accessory.CategoryBackground})
	require.NoError(t, m.InsertOwnership(ctx, &accessory.Ownership{UserID: "u1", AccessoryID: bg.ID}))
	svc := NewAccessoryService(m, nil)

	got, err := svc.Equip(ctx, "u1", bg.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "background", got.Slot)
}

func TestSlotExclusivity(t *testing.T) {
	ctx := context.Background()
	m := storage.NewMemoryStore()
	slots := []string{"hat", "eyes", "body"}
	var ids []uuid.UUID
	for i := 0; i < 9; i++ {
		a := m.AddAccessory(accessory.Accessory{Name: "item", Category: accessory.Category(slots[i%3])})
		require.NoError(t, m.InsertOwnership(ctx, &accessory.Ownership{UserID: "u1", AccessoryID: a.ID, Slot: slots[i%3]}))
		ids = append(ids, a.ID)
	}
	svc := NewAccessoryService(m, nil)
	rng := rand.New(rand.NewSource(42))

	for step := 0; step < 200; step++ {
		id := ids[rng.Intn(len(ids))]
		slot := ""
		if rng.Intn(4) == 0 {
			slot = slots[rng.Intn(len(slots))]
		}
		if rng.Intn(5) == 0 {
			_, err := svc.Unequip(ctx, "u1", id)
			require.NoError(t, err)
		} else {
			_, err := svc.Equip(ctx, "u1", id, slot)
			require.NoError(t, err)
		}

		equippedPerSlot := map[string]int{}
		owned, err := m.ListOwnerships(ctx, "u1")
		require.NoError(t, err)
		for _, o := range owned {
			if o.IsEquipped {
				equippedPerSlot[o.Slot]++
			}
		}
		for s, n := range equippedPerSlot {
			assert.LessOrEqual(t, n, 1, "slot %s at step %d", s, step)
		}
	}
}

func TestUnequip(t *testing.T) {
	ctx := context.Background()
	m, a, _ := ownTwoHats(t)
	svc := NewAccessoryService(m, nil)

	_, err := svc.Equip(ctx, "u1", a.ID, "")
	require.NoError(t, err)

	got, err := svc.Unequip(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEquipped)
	assert.Nil(t, got.EquippedAt)

	got, err = svc.Unequip(ctx, "u1", a.ID)
	require.NoError(t, err)
	assert.False(t, got.IsEquipped)

	_, err = svc.Unequip(ctx, "u1", uuid.New())
	assert.ErrorIs(t, err, accessory.ErrNotOwned)
}

func TestUpdateCustomMetadata(t *testing.T) {
	ctx := context.Background()
	m, a, _ := ownTwoHats(t)
	sched := &recordingScheduler{}
	svc := NewAccessoryService(m, sched)

	md := accessory.Transform{OffsetX: 4, OffsetY: -2, Scale: 1.2}
	got, err := svc.UpdateCustomMetadata(ctx, "u1", a.ID, md)
	require.NoError(t, err)
	require.NotNil(t, got.CustomMetadata)
	assert.Equal(t, md, *got.CustomMetadata)
	assert.Equal(t, 1, sched.count())

	_, err = svc.UpdateCustomMetadata(ctx, "u1", uuid.New(), md)
	assert.ErrorIs(t, err, accessory.ErrNotOwned)
}

func TestListEquipped(t *testing.T) {
	ctx := context.Background()
	m, a, _ := ownTwoHats(t)
	svc := NewAccessoryService(m, nil)

	equipped, err := svc.ListEquipped(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, equipped)

	_, err = svc.Equip(ctx, "u1", a.ID, "")
	require.NoError(t, err)
	equipped, err = svc.ListEquipped(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, equipped, 1)
	assert.Equal(t, a.ID, equipped[0].AccessoryID)
}

func TestOperationsRequireUser(t *testing.T) {
	ctx := context.Background()
	svc := NewAccessoryService(storage.NewMemoryStore(), nil)
	id := uuid.New()

	_, err := svc.Equip(ctx, "", id, "")
	assert.ErrorIs(t, err, accessory.ErrAuthRequired)
	_, err = svc.Unequip(ctx, "", id)
	assert.ErrorIs(t, err, accessory.ErrAuthRequired)
	_, err = svc.UpdateCustomMetadata(ctx, "", id, accessory.Transform{})
	assert.ErrorIs(t, err, accessory.ErrAuthRequired)
	_, err = svc.ListOwned(ctx, "")
	assert.ErrorIs(t, err, accessory.ErrAuthRequired)
}
