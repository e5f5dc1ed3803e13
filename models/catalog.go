package models

import "time"

// SortOption selects the order of the gallery view
type SortOption string

const (
	SortIDAsc  SortOption = "id-asc"
	SortIDDesc SortOption = "id-desc"
	SortRandom SortOption = "random"
)

// Valid reports whether s is one of the known sort options
func (s SortOption) Valid() bool {
	switch s {
	case SortIDAsc, SortIDDesc, SortRandom:
		return true
	}
	return false
}

// FilterState is the user-selected search/trait/specials state.
// Traits maps a category to the accepted values; an empty or missing set means no constraint.
type FilterState struct {
	Search       string                         `json:"search"`
	Traits       map[string]map[string]struct{} `json:"-"`
	OnlySpecials bool                           `json:"onlySpecials"`
}

// AddTrait accepts value for traitType
func (f *FilterState) AddTrait(traitType, value string) {
	if f.Traits == nil {
		f.Traits = make(map[string]map[string]struct{})
	}
	if f.Traits[traitType] == nil {
		f.Traits[traitType] = make(map[string]struct{})
	}
	f.Traits[traitType][value] = struct{}{}
}

// ActiveCount is the number of active constraints, used as the filter badge count
func (f *FilterState) ActiveCount() int {
	count := 0
	for _, values := range f.Traits {
		if len(values) > 0 {
			count++
		}
	}
	if f.OnlySpecials {
		count++
	}
	if f.Search != "" {
		count++
	}
	return count
}

// SortState is the sort option plus the session seed used by random order
type SortState struct {
	Option SortOption `json:"option"`
	Seed   uint64     `json:"seed"`
}

// GalleryPage is the windowed view returned by GET /api/gallery
type GalleryPage struct {
	Items         []NFT      `json:"items"`
	Total         int        `json:"total"`
	Window        int        `json:"window"`
	HasMore       bool       `json:"hasMore"`
	Loaded        int        `json:"loaded"`
	Supply        int        `json:"supply"`
	Sort          SortOption `json:"sort"`
	Seed          uint64     `json:"seed"`
	ActiveFilters int        `json:"activeFilters"`
}

// TraitFacet lists the values of one trait category present in the catalog
type TraitFacet struct {
	TraitType string       `json:"traitType"`
	Values    []TraitCount `json:"values"`
}

// TraitCount is a trait value and how many loaded items carry it
type TraitCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// LoadStatus reports metadata loading progress
type LoadStatus struct {
	Loading    bool       `json:"loading"`
	Loaded     int        `json:"loaded"`
	Supply     int        `json:"supply"`
	Failed     int        `json:"failed"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// WarmReport summarises a bulk image cache warm-up
type WarmReport struct {
	Size       string   `json:"size"`
	Total      int      `json:"total"`
	Downloaded int      `json:"downloaded"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}
