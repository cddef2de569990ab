package services

import (
	"context"
	"log"
	"time"

	"avatarShopAPI/internal/storage"

	"github.com/go-co-op/gocron/v2"
)

// Reconciler periodically reports ownership rows of priced accessories that
// have no matching purchase debit. It never repairs them.
type Reconciler struct {
	store     storage.Reconciliation
	timeout   time.Duration
	scheduler gocron.Scheduler
}

func NewReconciler(store storage.Reconciliation) *Reconciler {
	return &Reconciler{store: store, timeout: time.Minute}
}

// RunOnce performs a single pass and returns the number of orphans found.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	orphans, err := r.store.FindOrphanedOwnerships(ctx)
	if err != nil {
		return 0, err
	}

	orphanedOwnerships.Set(float64(len(orphans)))
	for _, o := range orphans {
		price := 0
		if o.Accessory != nil {
			price = o.Accessory.PricePoints
		}
		log.Printf("Reconcile: student %s owns accessory %s (price %d) without a purchase debit, purchased %s",
			o.UserID, o.AccessoryID, price, o.PurchasedAt.Format(time.RFC3339))
	}
	if len(orphans) > 0 {
		log.Printf("Reconcile: %d orphaned ownership(s) need manual review", len(orphans))
	}
	return len(orphans), nil
}

// Start schedules RunOnce every interval.
func (r *Reconciler) Start(interval time.Duration) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			if _, err := r.RunOnce(ctx); err != nil {
				log.Printf("Reconcile failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	sched.Start()
	r.scheduler = sched
	log.Printf("Purchase reconciliation scheduled every %s", interval)
	return nil
}

func (r *Reconciler) Shutdown() error {
	if r.scheduler == nil {
		return nil
	}
	return r.scheduler.Shutdown()
}
