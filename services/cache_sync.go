package services

import (
	"context"
	"log"
	"sync"
	"time"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/storage"
)

type cacheStore interface {
	storage.Ownerships
	storage.EquippedCache
}

// CacheSyncer rebuilds the denormalized equipped-accessory payload on the
// student profile in the background. Failures are logged, never returned.
type CacheSyncer struct {
	store    cacheStore
	workers  int
	timeout  time.Duration
	jobQueue chan string
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCacheSyncer(store cacheStore, workers int, timeout time.Duration) *CacheSyncer {
	if workers <= 0 {
		workers = 2
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &CacheSyncer{
		store:    store,
		workers:  workers,
		timeout:  timeout,
		jobQueue: make(chan string, 100),
		stopChan: make(chan struct{}),
	}
	c.startWorkers()
	return c
}

func (c *CacheSyncer) startWorkers() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

func (c *CacheSyncer) worker() {
	defer c.wg.Done()
	for {
		select {
		case userID := <-c.jobQueue:
			c.sync(userID)
		case <-c.stopChan:
			// drain what is already queued before exiting
			for {
				select {
				case userID := <-c.jobQueue:
					c.sync(userID)
				default:
					return
				}
			}
		}
	}
}

// Schedule queues a refresh for userID. A full queue drops the job.
func (c *CacheSyncer) Schedule(userID string) {
	select {
	case <-c.stopChan:
		return
	default:
	}

	select {
	case c.jobQueue <- userID:
	default:
		cacheSyncFailuresTotal.Inc()
		log.Printf("Equipped cache refresh for %s dropped: queue full", userID)
	}
}

func (c *CacheSyncer) sync(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.Sync(ctx, userID); err != nil {
		cacheSyncFailuresTotal.Inc()
		log.Printf("Failed to refresh equipped accessory cache for %s: %v", userID, err)
	}
}

// Sync rebuilds the cache for userID right away.
func (c *CacheSyncer) Sync(ctx context.Context, userID string) error {
	owned, err := c.store.ListOwnerships(ctx, userID)
	if err != nil {
		return err
	}

	entries := []accessory.CacheEntry{}
	for _, o := range owned {
		if o.IsEquipped {
			entries = append(entries, accessory.NewCacheEntry(o))
		}
	}
	return c.store.SaveEquippedCache(ctx, userID, entries)
}

// Stop finishes queued refreshes and waits for the workers.
func (c *CacheSyncer) Stop() {
	c.stopOnce.Do(func() {
		log.Println("Stopping equipped cache syncer...")
		close(c.stopChan)
		c.wg.Wait()
		log.Println("Equipped cache syncer stopped")
	})
}
