package models

// Attribute is a single (trait category, trait value) pair from token metadata
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// NFTMetadata is the JSON document served at {gateway}/{metadataHash}/{id}.json
type NFTMetadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Edition     int         `json:"edition"`
	Attributes  []Attribute `json:"attributes"`
}

// NFT represents a loaded collection item
type NFT struct {
	NFTMetadata
	ID         int    `json:"id"`
	ImageURL   string `json:"imageUrl"`
	IsOneOfOne bool   `json:"isOneOfOne"`
}

// HasTrait reports whether the item carries traitType=value
func (n *NFT) HasTrait(traitType, value string) bool {
	for _, attr := range n.Attributes {
		if attr.TraitType == traitType && attr.Value == value {
			return true
		}
	}
	return false
}

// TraitValue returns the value for traitType, or "" when absent
func (n *NFT) TraitValue(traitType string) string {
	for _, attr := range n.Attributes {
		if attr.TraitType == traitType {
			return attr.Value
		}
	}
	return ""
}
