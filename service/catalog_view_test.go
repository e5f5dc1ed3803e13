package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deadbears-gallery/models"
)

func bear(id int, special bool, attrs ...string) models.NFT {
	item := models.NFT{ID: id, IsOneOfOne: special}
	for i := 0; i+1 < len(attrs); i += 2 {
		item.Attributes = append(item.Attributes, models.Attribute{TraitType: attrs[i], Value: attrs[i+1]})
	}
	return item
}

func ids(items []models.NFT) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func sampleCatalog() []models.NFT {
	return []models.NFT{
		bear(0, false, "Hat", "Beanie", "Fur", "Ash"),
		bear(1, false, "Hat", "Halo", "Fur", "Bone"),
		bear(2, true, "Hat", "Crown", "Fur", "Ash"),
		bear(12, false, "Hat", "Halo", "Fur", "Ash"),
		bear(512, true, "Hat", "Beanie", "Fur", "Bone"),
		bear(120, false, "Fur", "Ash"),
	}
}

func TestApplyView_CrownScenario(t *testing.T) {
	items := []models.NFT{
		bear(0, false, "Hat", "Beanie"),
		bear(1, false),
		bear(2, false, "Hat", "Halo"),
		bear(3, false, "Hat", "Crown"),
		bear(4, false, "Fur", "Crown"),
	}
	var filter models.FilterState
	filter.AddTrait("Hat", "Crown")

	for _, option := range []models.SortOption{models.SortIDAsc, models.SortIDDesc, models.SortRandom} {
		t.Run(string(option), func(t *testing.T) {
			view := ApplyView(items, filter, models.SortState{Option: option, Seed: 42})
			assert.Equal(t, []int{3}, ids(view))
		})
	}
}

func TestApplyView_SearchIsSubstring(t *testing.T) {
	view := ApplyView(sampleCatalog(), models.FilterState{Search: "12"}, models.SortState{Option: models.SortIDAsc})
	assert.Equal(t, []int{12, 120, 512}, ids(view))
}

func TestApplyView_Traits(t *testing.T) {
	t.Run("values within a category are OR'd", func(t *testing.T) {
		var filter models.FilterState
		filter.AddTrait("Hat", "Halo")
		filter.AddTrait("Hat", "Crown")
		view := ApplyView(sampleCatalog(), filter, models.SortState{Option: models.SortIDAsc})
		assert.Equal(t, []int{1, 2, 12}, ids(view))
	})

	t.Run("categories are AND'd", func(t *testing.T) {
		var filter models.FilterState
		filter.AddTrait("Hat", "Halo")
		filter.AddTrait("Hat", "Beanie")
		filter.AddTrait("Fur", "Bone")
		view := ApplyView(sampleCatalog(), filter, models.SortState{Option: models.SortIDAsc})
		assert.Equal(t, []int{1, 512}, ids(view))
	})

	t.Run("empty set is no constraint", func(t *testing.T) {
		filter := models.FilterState{Traits: map[string]map[string]struct{}{"Hat": {}}}
		view := ApplyView(sampleCatalog(), filter, models.SortState{Option: models.SortIDAsc})
		assert.Len(t, view, len(sampleCatalog()))
	})
}

func TestApplyView_OnlySpecialsDescending(t *testing.T) {
	view := ApplyView(sampleCatalog(), models.FilterState{OnlySpecials: true}, models.SortState{Option: models.SortIDDesc})
	assert.Equal(t, []int{512, 2}, ids(view))
}

func TestApplyView_RandomIsDeterministicPerSeed(t *testing.T) {
	items := make([]models.NFT, 200)
	for i := range items {
		items[i] = bear(i, false)
	}

	first := ApplyView(items, models.FilterState{}, models.SortState{Option: models.SortRandom, Seed: 7})
	second := ApplyView(items, models.FilterState{}, models.SortState{Option: models.SortRandom, Seed: 7})
	assert.Equal(t, ids(first), ids(second))

	// re-sorting an already shuffled input gives the same order
	again := ApplyView(first, models.FilterState{}, models.SortState{Option: models.SortRandom, Seed: 7})
	assert.Equal(t, ids(first), ids(again))

	other := ApplyView(items, models.FilterState{}, models.SortState{Option: models.SortRandom, Seed: 8})
	assert.NotEqual(t, ids(first), ids(other))
	assert.ElementsMatch(t, ids(first), ids(other))

	asc := ApplyView(items, models.FilterState{}, models.SortState{Option: models.SortIDAsc})
	assert.NotEqual(t, ids(asc), ids(first))
}

func TestApplyView_RandomIsNotParityOrder(t *testing.T) {
	items := make([]models.NFT, 20)
	for i := range items {
		items[i] = bear(i, false)
	}
	evensThenOdds := []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18, 1, 3, 5, 7, 9, 11, 13, 15, 17, 19}
	oddsThenEvens := []int{1, 3, 5, 7, 9, 11, 13, 15, 17, 19, 0, 2, 4, 6, 8, 10, 12, 14, 16, 18}

	for _, seed := range []uint64{0, 1, 2, 7, 1 << 30, 1 << 63} {
		view := ids(ApplyView(items, models.FilterState{}, models.SortState{Option: models.SortRandom, Seed: seed}))
		assert.NotEqual(t, evensThenOdds, view, "seed %d", seed)
		assert.NotEqual(t, oddsThenEvens, view, "seed %d", seed)

		// no constant stride between neighbours
		strides := make(map[int]bool)
		for i := 1; i < len(view); i++ {
			strides[(view[i]-view[i-1]+20)%20] = true
		}
		assert.Greater(t, len(strides), 2, "seed %d", seed)
	}
}

func TestApplyView_IsSubsequenceAndDoesNotMutate(t *testing.T) {
	items := sampleCatalog()
	before := ids(items)

	view := ApplyView(items, models.FilterState{Search: "1"}, models.SortState{Option: models.SortRandom, Seed: 3})
	assert.Equal(t, before, ids(items))

	catalog := make(map[int]bool)
	for _, id := range before {
		catalog[id] = true
	}
	for _, id := range ids(view) {
		assert.True(t, catalog[id])
	}
}

func TestValidateSearch(t *testing.T) {
	s, err := ValidateSearch(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, "42", s)

	_, err = ValidateSearch("bear")
	assert.ErrorIs(t, err, ErrInvalidSearch)

	_, err = ValidateSearch("-1")
	assert.ErrorIs(t, err, ErrInvalidSearch)
}

func TestCatalogViewModel_Window(t *testing.T) {
	items := make([]models.NFT, 23)
	for i := range items {
		items[i] = bear(i, i%5 == 0)
	}
	vm := NewCatalogViewModel(5, 5)

	visible, total := vm.Visible(items)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ids(visible))
	assert.Equal(t, 23, total)

	assert.Equal(t, 10, vm.OnSentinelVisible())
	assert.Equal(t, 15, vm.OnSentinelVisible())
	visible, _ = vm.Visible(items)
	assert.Len(t, visible, 15)

	t.Run("window never exceeds the view", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			vm.OnSentinelVisible()
		}
		visible, total := vm.Visible(items)
		assert.Len(t, visible, total)
		page := vm.Page(items, 23, 30)
		assert.False(t, page.HasMore)
	})

	t.Run("filter change resets the window", func(t *testing.T) {
		require.NoError(t, vm.SetFilter(models.FilterState{OnlySpecials: true}))
		assert.Equal(t, 5, vm.Window())
		visible, total := vm.Visible(items)
		assert.Equal(t, []int{0, 5, 10, 15, 20}, ids(visible))
		assert.Equal(t, 5, total)
	})

	t.Run("sort change resets the window", func(t *testing.T) {
		vm.OnSentinelVisible()
		vm.SetSort(models.SortState{Option: models.SortIDDesc})
		assert.Equal(t, 5, vm.Window())
	})

	t.Run("invalid search leaves state untouched", func(t *testing.T) {
		vm.OnSentinelVisible()
		assert.ErrorIs(t, vm.SetFilter(models.FilterState{Search: "abc"}), ErrInvalidSearch)
		assert.Equal(t, 10, vm.Window())
	})
}

func TestCatalogViewModel_VisibleIsPrefixOfView(t *testing.T) {
	items := sampleCatalog()
	vm := NewCatalogViewModel(2, 2)
	vm.SetSort(models.SortState{Option: models.SortRandom, Seed: 99})

	visible, _ := vm.Visible(items)
	view := ApplyView(items, models.FilterState{}, models.SortState{Option: models.SortRandom, Seed: 99})
	assert.Equal(t, ids(view[:2]), ids(visible))
}

func TestTraitFacets(t *testing.T) {
	facets := TraitFacets(sampleCatalog(), []string{"Hat", "Fur", "Eyes"})
	require.Len(t, facets, 3)

	assert.Equal(t, "Hat", facets[0].TraitType)
	assert.Equal(t, []models.TraitCount{{Value: "Beanie", Count: 2}, {Value: "Crown", Count: 1}, {Value: "Halo", Count: 2}}, facets[0].Values)
	assert.Equal(t, []models.TraitCount{{Value: "Ash", Count: 4}, {Value: "Bone", Count: 2}}, facets[1].Values)
	assert.Empty(t, facets[2].Values)
}
