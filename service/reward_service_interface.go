package service

import (
	"context"

	"deadbears-gallery/models"
)

// RewardServiceInterface defines the contract for secret word checks and reward codes
type RewardServiceInterface interface {
	RandomLore() string
	CheckWord(ctx context.Context, word string) (*models.Reward, error)
	Issue(ctx context.Context, username, source string) (*models.Reward, error)
	Verify(ctx context.Context, code string) (*models.IssuedReward, error)
	Redeem(ctx context.Context, code string) (*models.IssuedReward, error)
}

// Ensure RewardService implements RewardServiceInterface
var _ RewardServiceInterface = (*RewardService)(nil)
