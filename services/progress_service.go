package services

import (
	"context"
	"log"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/points"
	"avatarShopAPI/internal/progress"
	"avatarShopAPI/internal/storage"
	"avatarShopAPI/internal/unlock"
)

type unlockNotifier interface {
	NotifyUnlocked(ctx context.Context, userID string, unlocked []accessory.Accessory)
}

type ProgressService struct {
	store    storage.Store
	notifier unlockNotifier
}

func NewProgressService(store storage.Store, notifier unlockNotifier) *ProgressService {
	return &ProgressService{store: store, notifier: notifier}
}

// Snapshot aggregates the student's current progress from the counters,
// earned achievements and earned points.
func (s *ProgressService) Snapshot(ctx context.Context, userID string) (progress.Snapshot, error) {
	if userID == "" {
		return progress.Snapshot{}, accessory.ErrAuthRequired
	}

	counters, err := s.store.GetProgressCounters(ctx, userID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	scores, err := s.store.ListScores(ctx, userID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	earned, err := s.store.ListEarnedAchievements(ctx, userID)
	if err != nil {
		return progress.Snapshot{}, err
	}

	ids := make([]string, 0, len(earned))
	for _, a := range earned {
		ids = append(ids, a.AchievementID)
	}
	snap := progress.NewSnapshot(counters, ids, points.Summarize(scores, earned).Total)
	snap.Level = snap.EffectiveLevel()
	return snap, nil
}

// CheckUnlocks compares before with the student's current progress and
// returns the accessories that became unlocked in between, along with the
// fresh snapshot. Newly unlocked accessories are queued for a push to the
// student; the notifier skips any it has pushed before.
func (s *ProgressService) CheckUnlocks(ctx context.Context, userID string, before progress.Snapshot) ([]accessory.Accessory, progress.Snapshot, error) {
	after, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, progress.Snapshot{}, err
	}
	catalog, err := s.store.ListAccessories(ctx, accessory.Filter{})
	if err != nil {
		return nil, progress.Snapshot{}, err
	}
	recordUnsupported(catalog)

	newly := unlock.DetectNewlyUnlocked(catalog, before, after)
	if newly == nil {
		newly = []accessory.Accessory{}
	}
	if len(newly) > 0 && s.notifier != nil {
		s.notifier.NotifyUnlocked(ctx, userID, newly)
	}
	return newly, after, nil
}

// CatalogStatus evaluates every catalog entry for the student and groups the
// result by category in display order.
func (s *ProgressService) CatalogStatus(ctx context.Context, userID string) ([]unlock.Group, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := s.store.ListAccessories(ctx, accessory.Filter{})
	if err != nil {
		return nil, err
	}
	owned, err := s.store.ListOwnerships(ctx, userID)
	if err != nil {
		return nil, err
	}
	recordUnsupported(catalog)

	byID := make(map[string]accessory.Ownership, len(owned))
	for _, o := range owned {
		byID[o.AccessoryID.String()] = o
	}

	entries := make([]unlock.Status, 0, len(catalog))
	for _, a := range catalog {
		o, has := byID[a.ID.String()]
		entries = append(entries, unlock.Status{
			Accessory: a,
			Unlock:    unlock.Evaluate(a.UnlockRequirement, snap),
			Owned:     has,
			Equipped:  has && o.IsEquipped,
		})
	}

	groups := unlock.GroupByCategory(entries)
	if groups == nil {
		groups = []unlock.Group{}
	}
	return groups, nil
}

func recordUnsupported(catalog []accessory.Accessory) {
	for _, kind := range unlock.Unsupported(catalog) {
		unsupportedRequirementTotal.WithLabelValues(kind).Inc()
		log.Printf("Warning: unknown unlock requirement type %q treated as unlocked", kind)
	}
}
