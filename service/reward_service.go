package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"deadbears-gallery/config"
	"deadbears-gallery/logger"
	"deadbears-gallery/models"
	"deadbears-gallery/repository"
)

var (
	// ErrEmptyWord is returned when no word was submitted
	ErrEmptyWord = errors.New("no word provided")
	// ErrWordRejected is returned when the word is not a secret word
	ErrWordRejected = errors.New("word rejected")
	// ErrLedgerDisabled is returned by ledger operations when no database is configured
	ErrLedgerDisabled = errors.New("reward ledger is not configured")
)

var secretWords = map[string]struct{}{
	"obitus": {}, "revenant": {}, "sigilium": {}, "ashenfoil": {}, "marrowroot": {},
	"threshold": {}, "limina": {}, "duskbridge": {}, "hollowgate": {}, "nethercall": {},
	"rite": {}, "hymn": {}, "talon": {}, "voidkey": {}, "hush": {},
	"soulwax": {}, "tombdrop": {}, "echojar": {}, "cryptnote": {}, "nightseed": {},
}

var loreFragments = []string{
	"In death, we find truth. In fire, we find rebirth.",
	"The dead do not sleep. They wait. They watch. They whisper.",
	"Every bear that falls rises stronger in the void.",
	"The ritual has begun. Only the worthy may proceed.",
	"Beyond the veil lies the truth. Beyond truth lies power.",
	"We are the echoes of what was. We are the promise of what comes.",
	"The graveyard is not an end. It is a beginning.",
	"Speak the words, and the shadows will answer.",
}

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RewardService checks secret words and issues reward codes from a weighted tier table
type RewardService struct {
	tiers  []config.RewardTier
	total  float64
	prefix string
	ledger repository.RewardRepositoryInterface
	now    func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRewardService creates a RewardService. ledger may be nil, in which case codes are not recorded.
// rng may be nil, in which case a randomly seeded source is used.
func NewRewardService(tiers []config.RewardTier, prefix string, ledger repository.RewardRepositoryInterface, rng *rand.Rand) *RewardService {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	var total float64
	for _, t := range tiers {
		total += t.Weight
	}
	return &RewardService{
		tiers:  tiers,
		total:  total,
		prefix: prefix,
		ledger: ledger,
		now:    time.Now,
		rng:    rng,
	}
}

// NormalizeWord trims and lowercases a submitted word
func NormalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// IsSecretWord reports whether word, once normalized, is one of the secret words
func IsSecretWord(word string) bool {
	_, ok := secretWords[NormalizeWord(word)]
	return ok
}

// RandomLore returns one lore fragment at random
func (s *RewardService) RandomLore() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loreFragments[s.rng.IntN(len(loreFragments))]
}

// CheckWord validates a submitted word and, on a match, issues a reward
func (s *RewardService) CheckWord(ctx context.Context, word string) (*models.Reward, error) {
	normalized := NormalizeWord(word)
	if normalized == "" {
		wordChecks.WithLabelValues("empty").Inc()
		return nil, ErrEmptyWord
	}
	if _, ok := secretWords[normalized]; !ok {
		wordChecks.WithLabelValues("rejected").Inc()
		logger.Debug("🔒 Word rejected: %q", normalized)
		return nil, ErrWordRejected
	}

	wordChecks.WithLabelValues("accepted").Inc()
	return s.Issue(ctx, "", "check-word")
}

// Issue draws a tier, generates its code and records it in the ledger when one is configured
func (s *RewardService) Issue(ctx context.Context, username, source string) (*models.Reward, error) {
	tier := s.DrawTier()
	reward := &models.Reward{Type: tier, Code: s.generateCode()}

	if s.ledger != nil {
		issued := &models.IssuedReward{
			Code:     reward.Code,
			Tier:     reward.Type,
			Username: username,
			Source:   source,
			IssuedAt: s.now().UTC(),
		}
		if err := s.ledger.Insert(ctx, issued); err != nil {
			return nil, fmt.Errorf("failed to record reward: %w", err)
		}
	}

	rewardsIssued.WithLabelValues(tier).Inc()
	logger.Info("🎉 Reward issued: tier=%s code=%s source=%s", reward.Type, reward.Code, source)
	return reward, nil
}

// DrawTier picks a tier by weight
func (s *RewardService) DrawTier() string {
	s.mu.Lock()
	roll := s.rng.Float64() * s.total
	s.mu.Unlock()

	for _, t := range s.tiers {
		if roll < t.Weight {
			return t.Name
		}
		roll -= t.Weight
	}
	return s.tiers[len(s.tiers)-1].Name
}

// generateCode builds PREFIX-<base36 unix millis>-<4 random base36 chars>, upper case
func (s *RewardService) generateCode() string {
	timestamp := strings.ToUpper(strconv.FormatInt(s.now().UnixMilli(), 36))

	s.mu.Lock()
	var suffix [4]byte
	for i := range suffix {
		suffix[i] = codeAlphabet[s.rng.IntN(len(codeAlphabet))]
	}
	s.mu.Unlock()

	return fmt.Sprintf("%s-%s-%s", s.prefix, timestamp, suffix[:])
}

// Verify looks a code up in the ledger
func (s *RewardService) Verify(ctx context.Context, code string) (*models.IssuedReward, error) {
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return s.ledger.GetByCode(ctx, code)
}

// Redeem marks a code as used in the ledger; a second redemption fails with ErrRewardRedeemed
func (s *RewardService) Redeem(ctx context.Context, code string) (*models.IssuedReward, error) {
	if s.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return s.ledger.Redeem(ctx, code)
}
