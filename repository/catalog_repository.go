package repository

import (
	"fmt"
	"sort"
	"sync"

	"deadbears-gallery/logger"
	"deadbears-gallery/models"
)

// CatalogRepository holds loaded collection items in memory, keyed by id.
// Items are immutable once stored; the catalog never holds more than supply items.
type CatalogRepository struct {
	mu     sync.RWMutex
	supply int
	items  map[int]models.NFT
}

// NewCatalogRepository creates an empty catalog for a collection of the given supply
func NewCatalogRepository(supply int) *CatalogRepository {
	return &CatalogRepository{
		supply: supply,
		items:  make(map[int]models.NFT, supply),
	}
}

// Ensure CatalogRepository implements CatalogRepositoryInterface
var _ CatalogRepositoryInterface = (*CatalogRepository)(nil)

// Add stores new items. Out-of-range ids and duplicates are skipped; the first such error is returned
// after every valid item has been stored.
func (r *CatalogRepository) Add(items ...models.NFT) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	added := 0
	for _, item := range items {
		if err := r.checkLocked(item.ID); err != nil {
			logger.Warn("⚠️  Catalog: skipping item %d: %v", item.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.items[item.ID] = item
		added++
	}
	return added, firstErr
}

func (r *CatalogRepository) checkLocked(id int) error {
	if id < 0 || id >= r.supply {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIDOutOfRange, id, r.supply)
	}
	if _, exists := r.items[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	return nil
}

// Get returns a copy of the item with the given id
func (r *CatalogRepository) Get(id int) (*models.NFT, error) {
	r.mu.RLock()
	item, exists := r.items[id]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return &item, nil
}

// All returns a snapshot of every item in ascending id order
func (r *CatalogRepository) All() []models.NFT {
	r.mu.RLock()
	items := make([]models.NFT, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		return items[i].ID < items[j].ID
	})
	return items
}

// Len returns the number of loaded items
func (r *CatalogRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Supply returns the fixed total supply of the collection
func (r *CatalogRepository) Supply() int {
	return r.supply
}
