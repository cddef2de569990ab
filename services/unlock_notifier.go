package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/celebration"
	"avatarShopAPI/internal/notification"
)

type PushProvider interface {
	SendToTopic(ctx context.Context, topic, title, body string, data map[string]string) error
}

// UnlockNotifier tells a student about newly unlocked accessories. Each
// accessory is pushed at most once per student, and delivery happens in the
// background so callers never wait on the push provider. A nil provider turns
// it into a no-op.
type UnlockNotifier struct {
	provider PushProvider
	pushed   *celebration.AccessoryTracker
	timeout  time.Duration

	mu sync.Mutex
	wg sync.WaitGroup
}

// NewUnlockNotifier remembers pushed accessories in store. A nil store
// disables the once-only check.
func NewUnlockNotifier(provider PushProvider, store celebration.KeyValueStore) *UnlockNotifier {
	n := &UnlockNotifier{provider: provider, timeout: 10 * time.Second}
	if store != nil {
		n.pushed = celebration.NewPushedUnlockTracker(store)
	}
	return n
}

func unlockMessage(unlocked []accessory.Accessory) (string, string, map[string]string) {
	ids := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		ids = append(ids, a.ID.String())
	}
	data := map[string]string{
		"type":          "accessory_unlocked",
		"accessory_ids": strings.Join(ids, ","),
	}

	if len(unlocked) == 1 {
		return "New accessory unlocked", fmt.Sprintf("%s is now available in your shop!", unlocked[0].Name), data
	}
	return "New accessories unlocked", fmt.Sprintf("%d new accessories are now available in your shop!", len(unlocked)), data
}

// fresh drops accessories already pushed to userID and records the rest.
func (n *UnlockNotifier) fresh(ctx context.Context, userID string, unlocked []accessory.Accessory) []accessory.Accessory {
	if n.pushed == nil {
		return unlocked
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ids := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		ids = append(ids, a.ID.String())
	}
	unseen := n.pushed.Filter(ctx, userID, ids)
	if len(unseen) == 0 {
		return nil
	}
	n.pushed.MarkShown(ctx, userID, unseen...)

	keep := make(map[string]bool, len(unseen))
	for _, id := range unseen {
		keep[id] = true
	}
	var out []accessory.Accessory
	for _, a := range unlocked {
		if keep[a.ID.String()] {
			out = append(out, a)
			delete(keep, a.ID.String())
		}
	}
	return out
}

// NotifyUnlocked queues one push for the accessories in unlocked that the
// student has not been told about yet. Delivery failures are logged.
func (n *UnlockNotifier) NotifyUnlocked(ctx context.Context, userID string, unlocked []accessory.Accessory) {
	if n == nil || n.provider == nil || userID == "" || len(unlocked) == 0 {
		return
	}

	unlocked = n.fresh(ctx, userID, unlocked)
	if len(unlocked) == 0 {
		unlockPushesTotal.WithLabelValues("duplicate").Inc()
		return
	}

	title, body, data := unlockMessage(unlocked)
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer cancel()

		if err := n.provider.SendToTopic(pushCtx, notification.StudentTopic(userID), title, body, data); err != nil {
			unlockPushesTotal.WithLabelValues("failed").Inc()
			log.Printf("Unlock push failed for %s: %v", userID, err)
			return
		}
		unlockPushesTotal.WithLabelValues("sent").Inc()
	}()
}

// Wait blocks until every queued push has finished.
func (n *UnlockNotifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}
