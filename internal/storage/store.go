package storage

import (
	"context"
	"errors"
	"time"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/points"
	"avatarShopAPI/internal/progress"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type Catalog interface {
	ListAccessories(ctx context.Context, filter accessory.Filter) ([]accessory.Accessory, error)
	GetAccessory(ctx context.Context, id uuid.UUID) (*accessory.Accessory, error)
}

// Ownerships holds per-user accessory records. Returned records carry the
// joined catalog entry.
type Ownerships interface {
	ListOwnerships(ctx context.Context, userID string) ([]accessory.Ownership, error)
	GetOwnership(ctx context.Context, userID string, accessoryID uuid.UUID) (*accessory.Ownership, error)
	InsertOwnership(ctx context.Context, o *accessory.Ownership) error
	DeleteOwnership(ctx context.Context, userID string, accessoryID uuid.UUID) error
	UnequipSlot(ctx context.Context, userID, slot string) error
	EquipOwnership(ctx context.Context, userID string, accessoryID uuid.UUID, slot string, at time.Time) (*accessory.Ownership, error)
	UnequipOwnership(ctx context.Context, userID string, accessoryID uuid.UUID) (*accessory.Ownership, error)
	UpdateCustomMetadata(ctx context.Context, userID string, accessoryID uuid.UUID, md accessory.Transform) (*accessory.Ownership, error)
}

type Ledger interface {
	AppendLedgerEntry(ctx context.Context, tx *points.Transaction) error
	ListLedger(ctx context.Context, userID string, limit int) ([]points.Transaction, error)
	LedgerDelta(ctx context.Context, userID string) (int, error)
}

// Progress reads the counters other services maintain.
type Progress interface {
	ListScores(ctx context.Context, userID string) ([]points.Score, error)
	ListEarnedAchievements(ctx context.Context, userID string) ([]points.EarnedAchievement, error)
	GetProgressCounters(ctx context.Context, userID string) (progress.Counters, error)
}

type EquippedCache interface {
	SaveEquippedCache(ctx context.Context, userID string, entries []accessory.CacheEntry) error
}

type Reconciliation interface {
	// FindOrphanedOwnerships lists records of priced accessories that have no
	// matching purchase debit in the ledger.
	FindOrphanedOwnerships(ctx context.Context) ([]accessory.Ownership, error)
}

type Store interface {
	Catalog
	Ownerships
	Ledger
	Progress
	EquippedCache
	Reconciliation
}

// Transactor is implemented by stores that can run several operations
// atomically. fn receives a Store bound to the transaction; returning an
// error rolls everything back.
type Transactor interface {
	InTx(ctx context.Context, fn func(Store) error) error
}

// Locker serializes balance-changing work per student inside a transaction.
type Locker interface {
	LockStudent(ctx context.Context, userID string) error
}
