package services

import (
	"context"
	"log"

	"avatarShopAPI/internal/points"
	"avatarShopAPI/internal/storage"
)

const defaultTransactionLimit = 20

type PointsService struct {
	store storage.Store
}

func NewPointsService(store storage.Store) *PointsService {
	return &PointsService{store: store}
}

// GetBalance derives the spendable balance. An empty user has a zero
// balance.
func (s *PointsService) GetBalance(ctx context.Context, userID string) (points.Balance, error) {
	if userID == "" {
		return points.Balance{}, nil
	}
	return computeBalance(ctx, s.store, userID)
}

func (s *PointsService) GetSummary(ctx context.Context, userID string) (points.Summary, error) {
	if userID == "" {
		return points.Summary{}, nil
	}
	scores, err := s.store.ListScores(ctx, userID)
	if err != nil {
		return points.Summary{}, err
	}
	achievements, err := s.store.ListEarnedAchievements(ctx, userID)
	if err != nil {
		return points.Summary{}, err
	}
	return points.Summarize(scores, achievements), nil
}

// ListTransactions returns ledger entries newest first. A non-positive limit
// means the default page size.
func (s *PointsService) ListTransactions(ctx context.Context, userID string, limit int) ([]points.Transaction, error) {
	if userID == "" {
		return []points.Transaction{}, nil
	}
	if limit <= 0 {
		limit = defaultTransactionLimit
	}
	txs, err := s.store.ListLedger(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []points.Transaction{}
	}
	return txs, nil
}

// computeBalance runs against whatever store it is given, so purchases can
// check the balance inside their transaction.
func computeBalance(ctx context.Context, store storage.Store, userID string) (points.Balance, error) {
	scores, err := store.ListScores(ctx, userID)
	if err != nil {
		return points.Balance{}, err
	}
	achievements, err := store.ListEarnedAchievements(ctx, userID)
	if err != nil {
		return points.Balance{}, err
	}
	delta, err := store.LedgerDelta(ctx, userID)
	if err != nil {
		return points.Balance{}, err
	}

	balance := points.NewBalance(points.Summarize(scores, achievements).Total, delta)
	if balance.Available < 0 {
		negativeBalanceTotal.Inc()
		log.Printf("Warning: negative point balance for student %s: earned=%d ledger=%d available=%d",
			userID, balance.Earned, balance.LedgerDelta, balance.Available)
	}
	return balance, nil
}
