package repository

import (
	"context"
	"errors"

	"deadbears-gallery/models"
)

var (
	// ErrIDOutOfRange is returned when an item id falls outside [0, supply)
	ErrIDOutOfRange = errors.New("item id out of range")
	// ErrDuplicateID is returned when an item id is already in the catalog
	ErrDuplicateID = errors.New("item id already in catalog")
	// ErrItemNotFound is returned when an id has not been loaded
	ErrItemNotFound = errors.New("item not found")
	// ErrRewardNotFound is returned when a reward code is not in the ledger
	ErrRewardNotFound = errors.New("reward code not found")
	// ErrRewardRedeemed is returned when a reward code was already redeemed
	ErrRewardRedeemed = errors.New("reward code already redeemed")
)

// CatalogRepositoryInterface defines the contract for the in-memory collection catalog
type CatalogRepositoryInterface interface {
	Add(items ...models.NFT) (added int, err error)
	Get(id int) (*models.NFT, error)
	All() []models.NFT
	Len() int
	Supply() int
}

// RewardRepositoryInterface defines the contract for the issued reward ledger
type RewardRepositoryInterface interface {
	Insert(ctx context.Context, reward *models.IssuedReward) error
	GetByCode(ctx context.Context, code string) (*models.IssuedReward, error)
	Redeem(ctx context.Context, code string) (*models.IssuedReward, error)
}
