package repository_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deadbears-gallery/db"
	"deadbears-gallery/models"
	"deadbears-gallery/repository"
)

// newLedger connects to DATABASE_URL, or skips the test when it is not set
func newLedger(t *testing.T) *repository.RewardRepository {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping Postgres ledger tests")
	}

	require.NoError(t, db.InitDB(context.Background(), dsn))
	t.Cleanup(func() {
		_ = db.CloseDB()
		db.DB = nil
	})
	return repository.NewRewardRepository(db.DB)
}

func issue(t *testing.T, ledger *repository.RewardRepository, tier string) *models.IssuedReward {
	t.Helper()
	reward := &models.IssuedReward{
		Code:     "RITUAL-TEST-" + strings.ToUpper(uuid.NewString()[:8]),
		Tier:     tier,
		Username: "graverobber",
		Source:   "terminal",
		IssuedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, ledger.Insert(context.Background(), reward))
	t.Cleanup(func() {
		_, _ = db.DB.Exec(`DELETE FROM issued_rewards WHERE code = $1`, reward.Code)
	})
	return reward
}

func TestRewardRepository_InsertAndGet(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()
	reward := issue(t, ledger, "OG")

	got, err := ledger.GetByCode(ctx, " "+strings.ToLower(reward.Code)+" ")
	require.NoError(t, err)
	assert.Equal(t, reward.Code, got.Code)
	assert.Equal(t, "OG", got.Tier)
	assert.Equal(t, "graverobber", got.Username)
	assert.Equal(t, "terminal", got.Source)
	assert.WithinDuration(t, reward.IssuedAt, got.IssuedAt, time.Millisecond)
	assert.Nil(t, got.RedeemedAt)

	assert.Error(t, ledger.Insert(ctx, reward), "codes are unique")

	_, err = ledger.GetByCode(ctx, "RITUAL-NOPE-0000")
	assert.ErrorIs(t, err, repository.ErrRewardNotFound)
}

func TestRewardRepository_RedeemOnce(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()
	reward := issue(t, ledger, "WL")

	redeemed, err := ledger.Redeem(ctx, reward.Code)
	require.NoError(t, err)
	require.NotNil(t, redeemed.RedeemedAt)

	_, err = ledger.Redeem(ctx, reward.Code)
	assert.ErrorIs(t, err, repository.ErrRewardRedeemed)

	got, err := ledger.GetByCode(ctx, reward.Code)
	require.NoError(t, err)
	require.NotNil(t, got.RedeemedAt)
	assert.WithinDuration(t, *redeemed.RedeemedAt, *got.RedeemedAt, time.Millisecond)

	_, err = ledger.Redeem(ctx, "RITUAL-NOPE-0000")
	assert.ErrorIs(t, err, repository.ErrRewardNotFound)
}

func TestRewardRepository_ConcurrentRedeem(t *testing.T) {
	ledger := newLedger(t)
	reward := issue(t, ledger, "OG")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Redeem(context.Background(), reward.Code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case assert.ErrorIs(t, err, repository.ErrRewardRedeemed):
				conflict++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, conflict)
}
