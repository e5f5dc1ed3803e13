package service

import (
	"context"

	"deadbears-gallery/models"
)

// MetadataLoaderInterface defines the contract for loading collection metadata
type MetadataLoaderInterface interface {
	// LoadAll fetches the whole collection, calling publish once per completed batch
	LoadAll(ctx context.Context, publish func([]models.NFT)) error
	// FetchOne fetches a single token with the same retry and rotation policy
	FetchOne(ctx context.Context, id int) (*models.NFT, error)
	// Backfill fetches an omitted id after loading finished and stores it through store
	Backfill(ctx context.Context, id int, store func(models.NFT) error) (*models.NFT, error)
	Status() models.LoadStatus
}
