package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"avatarShopAPI/internal/accessory"
	"avatarShopAPI/internal/points"
	"avatarShopAPI/internal/progress"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	pool *pgxpool.Pool
	db   querier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, db: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LockStudent takes a transaction-scoped advisory lock keyed by the student.
func (s *PostgresStore) LockStudent(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type scanner interface {
	Scan(dest ...any) error
}

const accessoryColumns = `a.id, a.slug, a.name, a.category, a.price_points, a.image_url, a.metadata, a.unlock_requirement, a.created_at`

func scanAccessory(row scanner) (*accessory.Accessory, error) {
	var (
		a           accessory.Accessory
		metadata    []byte
		requirement []byte
	)
	err := row.Scan(
		&a.ID,
		&a.Slug,
		&a.Name,
		&a.Category,
		&a.PricePoints,
		&a.ImageURL,
		&metadata,
		&requirement,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	decodeAccessoryJSON(&a, metadata, requirement)
	return &a, nil
}

// decodeAccessoryJSON fills the jsonb columns of a scanned row. A bad column
// is logged and replaced, never failing the row: broken metadata falls back
// to the identity transform and a broken requirement is kept as unsupported.
func decodeAccessoryJSON(a *accessory.Accessory, metadata, requirement []byte) {
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
			log.Printf("Warning: accessory %s has unreadable metadata, using defaults: %v", a.ID, err)
			a.Metadata = accessory.Transform{Scale: 1}
		}
	}
	if len(requirement) > 0 && string(requirement) != "null" {
		var req accessory.Requirement
		if err := json.Unmarshal(requirement, &req); err != nil {
			raw := make(json.RawMessage, len(requirement))
			copy(raw, requirement)
			req.Condition = accessory.UnsupportedCondition{Raw: raw, Err: err}
		}
		if u, ok := req.Condition.(accessory.UnsupportedCondition); ok && u.Err != nil {
			log.Printf("Warning: accessory %s has a malformed unlock requirement, treating it as unlocked: %v", a.ID, u.Err)
		}
		a.UnlockRequirement = &req
	}
}

func (s *PostgresStore) ListAccessories(ctx context.Context, filter accessory.Filter) ([]accessory.Accessory, error) {
	query := `SELECT ` + accessoryColumns + ` FROM accessories a`
	var args []any
	if filter.Category != "" {
		query += ` WHERE a.category = $1`
		args = append(args, string(filter.Category))
	}
	query += ` ORDER BY a.price_points ASC, a.created_at ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessories: %w", err)
	}
	defer rows.Close()

	var out []accessory.Accessory
	for rows.Next() {
		a, err := scanAccessory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAccessory(ctx context.Context, id uuid.UUID) (*accessory.Accessory, error) {
	a, err := scanAccessory(s.db.QueryRow(ctx, `SELECT `+accessoryColumns+` FROM accessories a WHERE a.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accessory: %w", err)
	}
	return a, nil
}

// UpsertAccessory inserts a catalog entry or updates the one with the same
// slug. It reports whether a new row was created.
func (s *PostgresStore) UpsertAccessory(ctx context.Context, a *accessory.Accessory) (bool, error) {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return false, err
	}
	var requirement []byte
	if a.UnlockRequirement != nil {
		if requirement, err = json.Marshal(a.UnlockRequirement); err != nil {
			return false, err
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	var inserted bool
	err = s.db.QueryRow(ctx, `
		INSERT INTO accessories (id, slug, name, category, price_points, image_url, metadata, unlock_requirement)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slug) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			price_points = EXCLUDED.price_points,
			image_url = EXCLUDED.image_url,
			metadata = EXCLUDED.metadata,
			unlock_requirement = EXCLUDED.unlock_requirement
		RETURNING id, created_at, (xmax = 0)
	`, a.ID, a.Slug, a.Name, string(a.Category), a.PricePoints, a.ImageURL, metadata, requirement,
	).Scan(&a.ID, &a.CreatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert accessory %s: %w", a.Slug, err)
	}
	return inserted, nil
}

const ownershipSelect = `
	SELECT ua.id, ua.user_id, ua.accessory_id, ua.slot, ua.is_equipped, ua.equipped_at,
		ua.custom_metadata, ua.purchased_at, ` + accessoryColumns + `
	FROM user_accessories ua
	JOIN accessories a ON a.id = ua.accessory_id`

func scanOwnership(row scanner) (*accessory.Ownership, error) {
	var (
		o           accessory.Ownership
		a           accessory.Accessory
		custom      []byte
		metadata    []byte
		requirement []byte
	)
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.AccessoryID,
		&o.Slot,
		&o.IsEquipped,
		&o.EquippedAt,
		&custom,
		&o.PurchasedAt,
		&a.ID,
		&a.Slug,
		&a.Name,
		&a.Category,
		&a.PricePoints,
		&a.ImageURL,
		&metadata,
		&requirement,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(custom) > 0 && string(custom) != "null" {
		var md accessory.Transform
		if err := json.Unmarshal(custom, &md); err != nil {
			return nil, fmt.Errorf("ownership %s custom metadata: %w", o.ID, err)
		}
		o.CustomMetadata = &md
	}
	decodeAccessoryJSON(&a, metadata, requirement)
	o.Accessory = &a
	return &o, nil
}

func (s *PostgresStore) queryOwnerships(ctx context.Context, query string, args ...any) ([]accessory.Ownership, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ownerships: %w", err)
	}
	defer rows.Close()

	var out []accessory.Ownership
	for rows.Next() {
		o, err := scanOwnership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListOwnerships(ctx context.Context, userID string) ([]accessory.Ownership, error) {
	return s.queryOwnerships(ctx, ownershipSelect+` WHERE ua.user_id = $1 ORDER BY ua.purchased_at ASC`, userID)
}

func (s *PostgresStore) GetOwnership(ctx context.Context, userID string, accessoryID uuid.UUID) (*accessory.Ownership, error) {
	o, err := scanOwnership(s.db.QueryRow(ctx, ownershipSelect+` WHERE ua.user_id = $1 AND ua.accessory_id = $2`, userID, accessoryID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ownership: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) InsertOwnership(ctx context.Context, o *accessory.Ownership) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.PurchasedAt.IsZero() {
		o.PurchasedAt = time.Now()
	}
	var custom []byte
	if o.CustomMetadata != nil {
		var err error
		if custom, err = json.Marshal(o.CustomMetadata); err != nil {
			return err
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO user_accessories (id, user_id, accessory_id, slot, is_equipped, equipped_at, custom_metadata, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.UserID, o.AccessoryID, o.Slot, o.IsEquipped, o.EquippedAt, custom, o.PurchasedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert ownership: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteOwnership(ctx context.Context, userID string, accessoryID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_accessories WHERE user_id = $1 AND accessory_id = $2`, userID, accessoryID)
	if err != nil {
		return fmt.Errorf("failed to delete ownership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UnequipSlot(ctx context.Context, userID, slot string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_accessories
		SET is_equipped = FALSE, equipped_at = NULL
		WHERE user_id = $1 AND slot = $2 AND is_equipped
	`, userID, slot)
	if err != nil {
		return fmt.Errorf("failed to unequip slot %s: %w", slot, err)
	}
	return nil
}

func (s *PostgresStore) updateOwnership(ctx context.Context, userID string, accessoryID uuid.UUID, query string, args ...any) (*accessory.Ownership, error) {
	tag, err := s.db.Exec(ctx, query, append([]any{userID, accessoryID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to update ownership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetOwnership(ctx, userID, accessoryID)
}

func (s *PostgresStore) EquipOwnership(ctx context.Context, userID string, accessoryID uuid.UUID, slot string, at time.Time) (*accessory.Ownership, error) {
	return s.updateOwnership(ctx, userID, accessoryID, `
		UPDATE user_accessories
		SET is_equipped = TRUE, equipped_at = $4, slot = $3
		WHERE user_id = $1 AND accessory_id = $2
	`, slot, at)
}

func (s *PostgresStore) UnequipOwnership(ctx context.Context, userID string, accessoryID uuid.UUID) (*accessory.Ownership, error) {
	return s.updateOwnership(ctx, userID, accessoryID, `
		UPDATE user_accessories
		SET is_equipped = FALSE, equipped_at = NULL
		WHERE user_id = $1 AND accessory_id = $2
	`)
}

func (s *PostgresStore) UpdateCustomMetadata(ctx context.Context, userID string, accessoryID uuid.UUID, md accessory.Transform) (*accessory.Ownership, error) {
	encoded, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	return s.updateOwnership(ctx, userID, accessoryID, `
		UPDATE user_accessories
		SET custom_metadata = $3
		WHERE user_id = $1 AND accessory_id = $2
	`, encoded)
}

func (s *PostgresStore) AppendLedgerEntry(ctx context.Context, tx *points.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	var metadata []byte
	if len(tx.Metadata) > 0 {
		metadata = tx.Metadata
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO student_point_transactions (id, student_id, delta, reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tx.ID, tx.StudentID, tx.Delta, string(tx.Reason), metadata, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLedger(ctx context.Context, userID string, limit int) ([]points.Transaction, error) {
	query := `
		SELECT id, student_id, delta, reason, metadata, created_at
		FROM student_point_transactions
		WHERE student_id = $1
		ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	defer rows.Close()

	var out []points.Transaction
	for rows.Next() {
		var (
			tx       points.Transaction
			metadata []byte
		)
		if err := rows.Scan(&tx.ID, &tx.StudentID, &tx.Delta, &tx.Reason, &metadata, &tx.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			tx.Metadata = json.RawMessage(metadata)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LedgerDelta(ctx context.Context, userID string) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(delta), 0) FROM student_point_transactions WHERE student_id = $1
	`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) ListScores(ctx context.Context, userID string) ([]points.Score, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, student_id, score, created_at FROM students_score WHERE student_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	var out []points.Score
	for rows.Next() {
		var sc points.Score
		if err := rows.Scan(&sc.ID, &sc.StudentID, &sc.Score, &sc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListEarnedAchievements(ctx context.Context, userID string) ([]points.EarnedAchievement, error) {
	rows, err := s.db.Query(ctx, `
		SELECT student_id, achievement_id, points, earned_at FROM student_achievements WHERE student_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var out []points.EarnedAchievement
	for rows.Next() {
		var a points.EarnedAchievement
		if err := rows.Scan(&a.StudentID, &a.AchievementID, &a.Points, &a.EarnedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetProgressCounters(ctx context.Context, userID string) (progress.Counters, error) {
	c := progress.Counters{StudentID: userID, Level: 1}
	err := s.db.QueryRow(ctx, `
		SELECT games_played, current_streak, perfect_games, level
		FROM student_progress WHERE student_id = $1
	`, userID).Scan(&c.GamesPlayed, &c.CurrentStreak, &c.PerfectGames, &c.Level)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("failed to get progress: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) SaveEquippedCache(ctx context.Context, userID string, entries []accessory.CacheEntry) error {
	if entries == nil {
		entries = []accessory.CacheEntry{}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO student_equipped_cache (student_id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (student_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`, userID, payload)
	if err != nil {
		return fmt.Errorf("failed to save equipped cache: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindOrphanedOwnerships(ctx context.Context) ([]accessory.Ownership, error) {
	return s.queryOwnerships(ctx, ownershipSelect+`
	WHERE a.price_points > 0
	AND NOT EXISTS (
		SELECT 1 FROM student_point_transactions t
		WHERE t.student_id = ua.user_id
		AND t.reason = 'accessory_purchase'
		AND t.metadata->>'accessory_id' = ua.accessory_id::text
	)
	ORDER BY ua.purchased_at ASC`)
}

var (
	_ Store      = (*PostgresStore)(nil)
	_ Transactor = (*PostgresStore)(nil)
	_ Locker     = (*PostgresStore)(nil)
)
