package service

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"

	"deadbears-gallery/models"
)

// ErrInvalidSearch is returned for a non-numeric identifier search
var ErrInvalidSearch = errors.New("search must contain only digits")

// ValidateSearch trims search and rejects anything but decimal digits
func ValidateSearch(search string) (string, error) {
	search = strings.TrimSpace(search)
	for _, r := range search {
		if r < '0' || r > '9' {
			return "", ErrInvalidSearch
		}
	}
	return search, nil
}

// shuffleKey mixes id with seed through the splitmix64 finalizer. Arithmetic wraps at 2^64.
func shuffleKey(id int, seed uint64) uint64 {
	z := (uint64(id) ^ seed) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// ApplyView filters and sorts items. The result is a subsequence of items and the input is not modified.
//
// Search keeps items whose decimal id contains the search string ("12" matches 12 and 512).
// Traits are OR'd within a category and AND'd across categories. Random order sorts by
// shuffleKey(id, seed) with ties broken by id, so the same seed always yields the same permutation.
func ApplyView(items []models.NFT, filter models.FilterState, sortState models.SortState) []models.NFT {
	result := make([]models.NFT, 0, len(items))
	for i := range items {
		if matches(&items[i], &filter) {
			result = append(result, items[i])
		}
	}

	switch sortState.Option {
	case models.SortIDDesc:
		sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	case models.SortRandom:
		seed := sortState.Seed
		sort.Slice(result, func(i, j int) bool {
			ki, kj := shuffleKey(result[i].ID, seed), shuffleKey(result[j].ID, seed)
			if ki != kj {
				return ki < kj
			}
			return result[i].ID < result[j].ID
		})
	default:
		sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	}
	return result
}

func matches(item *models.NFT, filter *models.FilterState) bool {
	if filter.Search != "" && !strings.Contains(strconv.Itoa(item.ID), filter.Search) {
		return false
	}
	if filter.OnlySpecials && !item.IsOneOfOne {
		return false
	}
	for traitType, accepted := range filter.Traits {
		if len(accepted) == 0 {
			continue
		}
		found := false
		for _, attr := range item.Attributes {
			if attr.TraitType != traitType {
				continue
			}
			if _, ok := accepted[attr.Value]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// TraitFacets lists, for each trait type, the sorted values present in items with their counts
func TraitFacets(items []models.NFT, traitTypes []string) []models.TraitFacet {
	counts := make(map[string]map[string]int, len(traitTypes))
	for _, t := range traitTypes {
		counts[t] = make(map[string]int)
	}
	for _, item := range items {
		for _, attr := range item.Attributes {
			if values, ok := counts[attr.TraitType]; ok {
				values[attr.Value]++
			}
		}
	}

	facets := make([]models.TraitFacet, 0, len(traitTypes))
	for _, t := range traitTypes {
		values := make([]models.TraitCount, 0, len(counts[t]))
		for value, count := range counts[t] {
			values = append(values, models.TraitCount{Value: value, Count: count})
		}
		sort.Slice(values, func(i, j int) bool { return values[i].Value < values[j].Value })
		facets = append(facets, models.TraitFacet{TraitType: t, Values: values})
	}
	return facets
}

// CatalogViewModel derives the visible window of the catalog from filter/sort state.
// The window resets to the initial size whenever filter or sort changes and otherwise only grows,
// one step each time the end-of-list sentinel becomes visible.
type CatalogViewModel struct {
	mu            sync.Mutex
	filter        models.FilterState
	sort          models.SortState
	window        int
	initialWindow int
	step          int
}

// NewCatalogViewModel creates a view model sorted ascending by id with the initial window
func NewCatalogViewModel(initialWindow, step int) *CatalogViewModel {
	return &CatalogViewModel{
		sort:          models.SortState{Option: models.SortIDAsc, Seed: 1},
		window:        initialWindow,
		initialWindow: initialWindow,
		step:          step,
	}
}

// SetFilter replaces the filter state and resets the window
func (vm *CatalogViewModel) SetFilter(filter models.FilterState) error {
	search, err := ValidateSearch(filter.Search)
	if err != nil {
		return err
	}
	filter.Search = search

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.filter = filter
	vm.window = vm.initialWindow
	return nil
}

// SetSort replaces the sort state and resets the window
func (vm *CatalogViewModel) SetSort(sortState models.SortState) {
	if !sortState.Option.Valid() {
		sortState.Option = models.SortIDAsc
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.sort = sortState
	vm.window = vm.initialWindow
}

// OnSentinelVisible grows the window by one step and returns the new size
func (vm *CatalogViewModel) OnSentinelVisible() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.window += vm.step
	return vm.window
}

// Window returns the current window size
func (vm *CatalogViewModel) Window() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.window
}

// State returns the current filter and sort state
func (vm *CatalogViewModel) State() (models.FilterState, models.SortState) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.filter, vm.sort
}

// Visible returns the first window items of the filtered/sorted view and the view's total size
func (vm *CatalogViewModel) Visible(items []models.NFT) ([]models.NFT, int) {
	vm.mu.Lock()
	filter, sortState, window := vm.filter, vm.sort, vm.window
	vm.mu.Unlock()

	view := ApplyView(items, filter, sortState)
	return view[:min(window, len(view))], len(view)
}

// Page builds the API response for the current state
func (vm *CatalogViewModel) Page(items []models.NFT, loaded, supply int) models.GalleryPage {
	visible, total := vm.Visible(items)

	vm.mu.Lock()
	defer vm.mu.Unlock()
	return models.GalleryPage{
		Items:         visible,
		Total:         total,
		Window:        vm.window,
		HasMore:       len(visible) < total,
		Loaded:        loaded,
		Supply:        supply,
		Sort:          vm.sort.Option,
		Seed:          vm.sort.Seed,
		ActiveFilters: vm.filter.ActiveCount(),
	}
}
