package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"deadbears-gallery/logger"
	"deadbears-gallery/models"
)

// RewardRepository stores issued reward codes in Postgres
type RewardRepository struct {
	db *sql.DB
}

// NewRewardRepository creates a RewardRepository on an open connection
func NewRewardRepository(db *sql.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

// Ensure RewardRepository implements RewardRepositoryInterface
var _ RewardRepositoryInterface = (*RewardRepository)(nil)

// Insert records an issued reward code
func (r *RewardRepository) Insert(ctx context.Context, reward *models.IssuedReward) error {
	query := `
		INSERT INTO issued_rewards (code, tier, username, source, issued_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, reward.Code, reward.Tier, reward.Username, reward.Source, reward.IssuedAt); err != nil {
		logger.Error("❌ Error inserting reward %s: %v", reward.Code, err)
		return fmt.Errorf("failed to insert reward: %w", err)
	}

	logger.Info("💾 Reward recorded: code=%s tier=%s source=%s", reward.Code, reward.Tier, reward.Source)
	return nil
}

// GetByCode returns the ledger row for code
func (r *RewardRepository) GetByCode(ctx context.Context, code string) (*models.IssuedReward, error) {
	query := `
		SELECT code, tier, username, source, issued_at, redeemed_at
		FROM issued_rewards
		WHERE code = $1
	`
	reward, err := scanReward(r.db.QueryRowContext(ctx, query, normalizeCode(code)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRewardNotFound, code)
		}
		logger.Error("❌ Error fetching reward %s: %v", code, err)
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	return reward, nil
}

// Redeem marks code as redeemed. A code can be redeemed only once.
func (r *RewardRepository) Redeem(ctx context.Context, code string) (*models.IssuedReward, error) {
	code = normalizeCode(code)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT code, tier, username, source, issued_at, redeemed_at
		FROM issued_rewards
		WHERE code = $1
		FOR UPDATE
	`
	reward, err := scanReward(tx.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRewardNotFound, code)
		}
		return nil, fmt.Errorf("failed to get reward: %w", err)
	}
	if reward.RedeemedAt != nil {
		return reward, fmt.Errorf("%w: %s", ErrRewardRedeemed, code)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `UPDATE issued_rewards SET redeemed_at = $2 WHERE code = $1`, code, now); err != nil {
		return nil, fmt.Errorf("failed to redeem reward: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	reward.RedeemedAt = &now
	logger.Info("✓ Reward redeemed: code=%s tier=%s", reward.Code, reward.Tier)
	return reward, nil
}

func scanReward(row *sql.Row) (*models.IssuedReward, error) {
	var reward models.IssuedReward
	var redeemedAt sql.NullTime
	if err := row.Scan(&reward.Code, &reward.Tier, &reward.Username, &reward.Source, &reward.IssuedAt, &redeemedAt); err != nil {
		return nil, err
	}
	if redeemedAt.Valid {
		t := redeemedAt.Time
		reward.RedeemedAt = &t
	}
	return &reward, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
