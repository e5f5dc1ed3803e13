package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"deadbears-gallery/logger"
	"deadbears-gallery/models"
	"deadbears-gallery/repository"
	"deadbears-gallery/service"
)

// maxWordBody caps the check-word request body
const maxWordBody = 4 << 10

// User-facing answers of the check-word endpoint
const (
	msgNoWord       = "No word provided."
	msgWordRejected = "The void rejects your offering..."
)

type messageResponse struct {
	Message string `json:"message"`
}

// RewardController handles the secret word endpoint and reward code lookups
type RewardController struct {
	rewards    service.RewardServiceInterface
	adminToken string
}

// NewRewardController creates a new RewardController. adminToken guards redeem.
func NewRewardController(rewards service.RewardServiceInterface, adminToken string) *RewardController {
	return &RewardController{rewards: rewards, adminToken: adminToken}
}

// CheckWord handles /api/check-word.
// GET returns a random lore fragment; POST {"word": "..."} checks the word and issues a reward.
func (c *RewardController) CheckWord(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, models.LoreResponse{Lore: c.rewards.RandomLore()})
	case http.MethodPost:
		c.checkWord(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, messageResponse{Message: "Method Not Allowed"})
	}
}

func (c *RewardController) checkWord(w http.ResponseWriter, r *http.Request) {
	var req models.CheckWordRequest
	// An unreadable body is treated like a missing word
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWordBody)).Decode(&req); err != nil {
		logger.Debug("⚠️  CheckWord: invalid body: %v", err)
		req.Word = ""
	}

	reward, err := c.rewards.CheckWord(r.Context(), req.Word)
	switch {
	case errors.Is(err, service.ErrEmptyWord):
		writeJSON(w, http.StatusBadRequest, models.CheckWordResponse{Success: false, Message: msgNoWord})
	case errors.Is(err, service.ErrWordRejected):
		writeJSON(w, http.StatusBadRequest, models.CheckWordResponse{Success: false, Message: msgWordRejected})
	case err != nil:
		logger.Error("❌ CheckWord: %v", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Error processing request"})
	default:
		writeJSON(w, http.StatusOK, models.CheckWordResponse{Success: true, Reward: reward})
	}
}

// HandleCode routes GET /api/rewards/{code} and POST /api/rewards/{code}/redeem (admin)
func (c *RewardController) HandleCode(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/rewards/"), "/")
	code, action, _ := strings.Cut(path, "/")
	if code == "" {
		http.Error(w, "code is required", http.StatusBadRequest)
		return
	}

	var (
		issued *models.IssuedReward
		err    error
	)
	switch {
	case action == "" && r.Method == http.MethodGet:
		issued, err = c.rewards.Verify(r.Context(), code)
	case action == "redeem" && r.Method == http.MethodPost:
		if !requireAdmin(w, r, c.adminToken) {
			return
		}
		issued, err = c.rewards.Redeem(r.Context(), code)
	case action == "" || action == "redeem":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	default:
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch {
	case errors.Is(err, service.ErrLedgerDisabled):
		http.Error(w, "Reward ledger is not configured", http.StatusServiceUnavailable)
	case errors.Is(err, repository.ErrRewardNotFound):
		http.Error(w, "Reward code not found", http.StatusNotFound)
	case errors.Is(err, repository.ErrRewardRedeemed):
		http.Error(w, "Reward code already redeemed", http.StatusConflict)
	case err != nil:
		logger.Error("❌ HandleCode: %v", err)
		http.Error(w, "Failed to process reward code", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, issued)
	}
}
