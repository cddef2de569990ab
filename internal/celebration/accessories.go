package celebration

import (
	"context"
	"encoding/json"
	"log"
	"time"
)

const (
	shownUnlocksVersion = 1
	maxShownUnlocks     = 50
)

type shownUnlocks struct {
	Version   int      `json:"version"`
	IDs       []string `json:"ids"`
	Timestamp int64    `json:"timestamp"`
}

// AccessoryTracker remembers the most recent accessory unlocks a user has
// been shown. Only the last 50 ids are kept, oldest evicted first.
type AccessoryTracker struct {
	store  KeyValueStore
	prefix string
	now    func() time.Time
}

func NewAccessoryTracker(store KeyValueStore) *AccessoryTracker {
	return &AccessoryTracker{store: store, prefix: "shown-accessory-unlocks-", now: time.Now}
}

// NewPushedUnlockTracker records which unlocks have already been pushed to a
// student. It is kept apart from the in-app celebration record so a push
// never hides the celebration.
func NewPushedUnlockTracker(store KeyValueStore) *AccessoryTracker {
	return &AccessoryTracker{store: store, prefix: "pushed-accessory-unlocks-", now: time.Now}
}

func (t *AccessoryTracker) key(userID string) string {
	return t.prefix + userID
}

// load returns the stored ids. A version mismatch or undecodable payload
// reads as empty.
func (t *AccessoryTracker) load(ctx context.Context, userID string) ([]string, error) {
	raw, ok, err := t.store.Get(ctx, t.key(userID))
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var env shownUnlocks
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		log.Printf("Error parsing shown accessory unlocks for %s: %v", userID, err)
		return nil, nil
	}
	if env.Version != shownUnlocksVersion {
		return nil, nil
	}
	return env.IDs, nil
}

// Shown returns the remembered ids, oldest first.
func (t *AccessoryTracker) Shown(ctx context.Context, userID string) []string {
	if userID == "" {
		return nil
	}
	ids, err := t.load(ctx, userID)
	if err != nil {
		log.Printf("Warning: accessory unlock tracking unavailable for %s: %v", userID, err)
		return nil
	}
	return ids
}

func (t *AccessoryTracker) HasBeenShown(ctx context.Context, userID, accessoryID string) bool {
	for _, id := range t.Shown(ctx, userID) {
		if id == accessoryID {
			return true
		}
	}
	return false
}

// Filter returns the ids from candidates that have not been shown yet, in
// their original order.
func (t *AccessoryTracker) Filter(ctx context.Context, userID string, candidates []string) []string {
	if userID == "" {
		return nil
	}

	seen := map[string]bool{}
	for _, id := range t.Shown(ctx, userID) {
		seen[id] = true
	}

	var unseen []string
	for _, id := range candidates {
		if seen[id] {
			continue
		}
		seen[id] = true
		unseen = append(unseen, id)
	}
	return unseen
}

func (t *AccessoryTracker) MarkShown(ctx context.Context, userID string, accessoryIDs ...string) {
	if userID == "" || len(accessoryIDs) == 0 {
		return
	}

	ids, err := t.load(ctx, userID)
	if err != nil {
		log.Printf("Warning: accessory unlock tracking unavailable for %s: %v", userID, err)
		return
	}

	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}
	changed := false
	for _, id := range accessoryIDs {
		if id == "" || present[id] {
			continue
		}
		present[id] = true
		ids = append(ids, id)
		changed = true
	}
	if !changed {
		return
	}
	if len(ids) > maxShownUnlocks {
		ids = ids[len(ids)-maxShownUnlocks:]
	}

	encoded, err := json.Marshal(shownUnlocks{
		Version:   shownUnlocksVersion,
		IDs:       ids,
		Timestamp: t.now().UnixMilli(),
	})
	if err != nil {
		log.Printf("Error encoding shown accessory unlocks for %s: %v", userID, err)
		return
	}
	if err := t.store.Set(ctx, t.key(userID), string(encoded)); err != nil {
		log.Printf("Warning: failed to mark accessory unlocks shown for %s: %v", userID, err)
	}
}
