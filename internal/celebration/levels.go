package celebration

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
)

const levelsVersion = "v1"

type LevelTracker struct {
	store KeyValueStore
}

func NewLevelTracker(store KeyValueStore) *LevelTracker {
	return &LevelTracker{store: store}
}

func levelsKey(userID string) string {
	return fmt.Sprintf("celebrated-levels-%s-%s", userID, levelsVersion)
}

func lastSeenKey(userID string) string {
	return "last-seen-level-" + userID
}

// Celebrated returns the levels already celebrated for the user. Missing or
// corrupt data reads as none.
func (t *LevelTracker) Celebrated(ctx context.Context, userID string) ([]int, error) {
	if userID == "" {
		return nil, nil
	}

	raw, ok, err := t.store.Get(ctx, levelsKey(userID))
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var levels []int
	if err := json.Unmarshal([]byte(raw), &levels); err != nil {
		log.Printf("Error parsing celebrated levels for %s: %v", userID, err)
		return nil, nil
	}
	return levels, nil
}

func (t *LevelTracker) HasBeenCelebrated(ctx context.Context, userID string, level int) bool {
	if userID == "" || level == 0 {
		return false
	}

	levels, err := t.Celebrated(ctx, userID)
	if err != nil {
		log.Printf("Warning: level-up tracking unavailable for %s: %v", userID, err)
		return false
	}
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

// MarkCelebrated appends level once; marking it again is a no-op.
func (t *LevelTracker) MarkCelebrated(ctx context.Context, userID string, level int) {
	if userID == "" || level == 0 {
		return
	}

	levels, err := t.Celebrated(ctx, userID)
	if err != nil {
		log.Printf("Warning: level-up tracking unavailable for %s: %v", userID, err)
		return
	}
	for _, l := range levels {
		if l == level {
			return
		}
	}

	encoded, err := json.Marshal(append(levels, level))
	if err != nil {
		log.Printf("Error encoding celebrated levels for %s: %v", userID, err)
		return
	}
	if err := t.store.Set(ctx, levelsKey(userID), string(encoded)); err != nil {
		log.Printf("Warning: failed to mark level %d celebrated for %s: %v", level, userID, err)
	}
}

// LastSeenLevel returns the level last shown on the dashboard, or ok=false
// when none is recorded.
func (t *LevelTracker) LastSeenLevel(ctx context.Context, userID string) (int, bool) {
	if userID == "" {
		return 0, false
	}

	raw, ok, err := t.store.Get(ctx, lastSeenKey(userID))
	if err != nil {
		log.Printf("Warning: last seen level unavailable for %s: %v", userID, err)
		return 0, false
	}
	if !ok || raw == "" {
		return 0, false
	}
	level, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Error parsing last seen level for %s: %v", userID, err)
		return 0, false
	}
	return level, true
}

func (t *LevelTracker) SetLastSeenLevel(ctx context.Context, userID string, level int) {
	if userID == "" || level == 0 {
		return
	}
	if err := t.store.Set(ctx, lastSeenKey(userID), strconv.Itoa(level)); err != nil {
		log.Printf("Warning: failed to store last seen level for %s: %v", userID, err)
	}
}
