package models

import "time"

// Reward is a generated reward code and its tier
type Reward struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

// CheckWordRequest is the body of POST /api/check-word
type CheckWordRequest struct {
	Word string `json:"word"`
}

// CheckWordResponse is the body returned by POST /api/check-word
type CheckWordResponse struct {
	Success bool    `json:"success"`
	Reward  *Reward `json:"reward,omitempty"`
	Message string  `json:"message,omitempty"`
}

// LoreResponse is the body returned by GET /api/check-word
type LoreResponse struct {
	Lore string `json:"lore"`
}

// IssuedReward is a ledger row for an issued reward code
type IssuedReward struct {
	Code       string     `json:"code"`
	Tier       string     `json:"tier"`
	Username   string     `json:"username,omitempty"`
	Source     string     `json:"source"`
	IssuedAt   time.Time  `json:"issuedAt"`
	RedeemedAt *time.Time `json:"redeemedAt,omitempty"`
}
