package points

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Reason string

const (
	ReasonAccessoryPurchase Reason = "accessory_purchase"
	ReasonRefund            Reason = "refund"
	ReasonAdminAdjustment   Reason = "admin_adjustment"
)

// Score is one finished game from the gameplay history.
type Score struct {
	ID        uuid.UUID `json:"id" db:"id"`
	StudentID string    `json:"student_id" db:"student_id"`
	Score     int       `json:"score" db:"score"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EarnedAchievement struct {
	StudentID     string    `json:"student_id" db:"student_id"`
	AchievementID string    `json:"achievement_id" db:"achievement_id"`
	Points        int       `json:"points" db:"points"`
	EarnedAt      time.Time `json:"earned_at" db:"earned_at"`
}

// Transaction is an append-only ledger row. Purchases carry a negative delta.
type Transaction struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	StudentID string          `json:"student_id" db:"student_id"`
	Delta     int             `json:"delta" db:"delta"`
	Reason    Reason          `json:"reason" db:"reason"`
	Metadata  json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

type PurchaseMetadata struct {
	AccessoryID uuid.UUID `json:"accessory_id"`
	Slot        string    `json:"slot"`
}

type Balance struct {
	Earned      int `json:"earned"`
	LedgerDelta int `json:"ledger_delta"`
	Available   int `json:"available"`
}

type Summary struct {
	GameplayPoints    int `json:"gameplay_points"`
	AchievementPoints int `json:"achievement_points"`
	Total             int `json:"total"`
}

func Summarize(scores []Score, achievements []EarnedAchievement) Summary {
	var s Summary
	for _, sc := range scores {
		s.GameplayPoints += sc.Score
	}
	for _, a := range achievements {
		s.AchievementPoints += a.Points
	}
	s.Total = s.GameplayPoints + s.AchievementPoints
	return s
}

func SumDeltas(ledger []Transaction) int {
	total := 0
	for _, tx := range ledger {
		total += tx.Delta
	}
	return total
}

// NewBalance applies the ledger to the earned total. The result is never
// clamped; a negative Available means the ledger is inconsistent.
func NewBalance(earned, ledgerDelta int) Balance {
	return Balance{
		Earned:      earned,
		LedgerDelta: ledgerDelta,
		Available:   earned + ledgerDelta,
	}
}

func Compute(scores []Score, achievements []EarnedAchievement, ledger []Transaction) Balance {
	return NewBalance(Summarize(scores, achievements).Total, SumDeltas(ledger))
}
