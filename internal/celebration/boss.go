package celebration

import (
	"context"
	"fmt"
	"log"
)

// BossTracker remembers which boss-node unlock celebrations a user has seen.
type BossTracker struct {
	store KeyValueStore
}

func NewBossTracker(store KeyValueStore) *BossTracker {
	return &BossTracker{store: store}
}

func bossKey(userID, nodeID string) string {
	return fmt.Sprintf("boss-unlocked-%s-%s", userID, nodeID)
}

// ShouldShow is true until MarkShown is called for the pair. Missing ids
// never show; an unreadable store always shows.
func (t *BossTracker) ShouldShow(ctx context.Context, userID, nodeID string) bool {
	if userID == "" || nodeID == "" {
		return false
	}

	_, ok, err := t.store.Get(ctx, bossKey(userID, nodeID))
	if err != nil {
		log.Printf("Warning: boss unlock tracking unavailable for %s/%s: %v", userID, nodeID, err)
		return true
	}
	return !ok
}

func (t *BossTracker) MarkShown(ctx context.Context, userID, nodeID string) {
	if userID == "" || nodeID == "" {
		return
	}
	if err := t.store.Set(ctx, bossKey(userID, nodeID), "true"); err != nil {
		log.Printf("Warning: failed to mark boss unlock %s/%s shown: %v", userID, nodeID, err)
	}
}
