package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"deadbears-gallery/logger"
	"deadbears-gallery/models"
)

var riddles = []string{
	"I am not alive, but I grow. I don't have lungs, but I need air. What am I?",
	"The more you take, the more you leave behind. What am I?",
	"I speak without a mouth and hear without ears. I have no body, but I come alive with wind. What am I?",
	"What can run but never walks, has a mouth but never talks, has a head but never weeps, has a bed but never sleeps?",
}

var tierAnnouncements = map[string]string{
	"OG": "you've earned OG status!",
	"WL": "you've been added to the WHITELIST!",
}

type terminalSession struct {
	mu       sync.Mutex
	state    models.TerminalState
	username string
	lastSeen time.Time
}

// defaultMaxSessions applies when NewTerminalService is given a non-positive cap
const defaultMaxSessions = 10000

// TerminalService runs the ritual terminal dialogue. Each session is a small state machine:
// idle -> awaiting-username -> awaiting-secret-word -> resolved.
//
// At most maxSessions sessions are live; opening one more evicts the least recently used.
type TerminalService struct {
	rewards RewardServiceInterface
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions *lru.Cache[string, *terminalSession]
	rng      *rand.Rand
}

// NewTerminalService creates a TerminalService. Sessions idle for longer than ttl are discarded.
func NewTerminalService(rewards RewardServiceInterface, ttl time.Duration, maxSessions int, rng *rand.Rand) *TerminalService {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	// lru.New only fails for a non-positive size
	sessions, _ := lru.New[string, *terminalSession](maxSessions)
	return &TerminalService{
		rewards:  rewards,
		ttl:      ttl,
		now:      time.Now,
		sessions: sessions,
		rng:      rng,
	}
}

// Handle processes one line of input. An unknown, expired or empty session id opens a new session,
// whose response starts with the boot banner.
func (s *TerminalService) Handle(ctx context.Context, req models.TerminalRequest) (*models.TerminalResponse, error) {
	id, sess, created := s.session(req.SessionID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	resp := &models.TerminalResponse{SessionID: id}
	if created {
		resp.Lines = append(resp.Lines, bannerLines()...)
	}

	input := strings.TrimSpace(req.Input)
	if input != "" {
		resp.Lines = append(resp.Lines, models.TerminalLine{Text: "$ " + input, Type: models.LineCommand})
		if err := s.dispatch(ctx, sess, input, resp); err != nil {
			return nil, err
		}
	}

	resp.State = sess.state
	return resp, nil
}

// session returns the live session for id, creating a new one when id is unknown or expired
func (s *TerminalService) session(id string) (string, *terminalSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions.Get(id); ok && id != "" {
		if !s.expired(sess, now) {
			sess.lastSeen = now
			return id, sess, false
		}
		s.sessions.Remove(id)
	}

	id = uuid.NewString()
	sess := &terminalSession{state: models.TerminalIdle, lastSeen: now}
	if evicted := s.sessions.Add(id, sess); evicted {
		logger.Debug("⚠️  Terminal session cap reached, evicted the least recently used session")
	}
	terminalSessions.Set(float64(s.sessions.Len()))
	return id, sess, true
}

func (s *TerminalService) expired(sess *terminalSession, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}

// Sweep drops every expired session and returns how many were removed
func (s *TerminalService) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, id := range s.sessions.Keys() {
		if sess, ok := s.sessions.Peek(id); ok && s.expired(sess, now) {
			s.sessions.Remove(id)
			removed++
		}
	}
	terminalSessions.Set(float64(s.sessions.Len()))
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled
func (s *TerminalService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("🧹 Swept %d expired terminal sessions", n)
			}
		}
	}
}

// Len returns the number of sessions held, expired ones included until the next sweep
func (s *TerminalService) Len() int {
	return s.sessions.Len()
}

func (s *TerminalService) dispatch(ctx context.Context, sess *terminalSession, input string, resp *models.TerminalResponse) error {
	switch sess.state {
	case models.TerminalAwaitingUsername:
		sess.username = input
		sess.state = models.TerminalAwaitingSecretWord
		resp.Lines = append(resp.Lines, response(fmt.Sprintf("> Welcome, %s. Now enter the secret word to proceed...", input)))
		return nil
	case models.TerminalAwaitingSecretWord:
		return s.offerWord(ctx, sess, input, resp)
	}

	switch command := strings.ToLower(input); command {
	case "help":
		resp.Lines = append(resp.Lines,
			response("> Available commands:"),
			response("  wake the dead - Reveal the origin story"),
			response("  dig deeper - Uncover hidden truths"),
			response("  solve riddle - Test your wit against the void"),
			response("  secret - Enter the inner circle... if you dare"),
			response("  graveyard - Visit the collection"),
			response("  burn - A hidden truth awaits..."),
			response("  clear - Clear the terminal"),
		)
	case "wake the dead":
		resp.Lines = append(resp.Lines,
			response("> Accessing archive..."),
			response(""),
			response("Once, we were Okay. We lived in the light, followed the rules, and believed in the roadmap."),
			response("Then the market crashed. The promises faded. And we died."),
			response(""),
			response("But death was not the end. It was the beginning."),
			response("From the ashes of false hope, Dead Bears rose. No roadmap. No promises. Just truth."),
			response("We are the survivors. The builders. The ones who refused to stay buried."),
		)
	case "dig deeper":
		resp.Lines = append(resp.Lines,
			response("> Excavating hidden files..."),
			response(""),
			response("🔍 SNEAK PEEK: The art is ready. The collection breathes in darkness."),
			response("Each bear carries the scars of what came before. No two deaths are alike."),
			response(""),
			response("Mint date: When the dead decide. Not before."),
			response("Supply: Fewer than you think. More than you deserve."),
		)
	case "solve riddle":
		s.mu.Lock()
		riddle := riddles[s.rng.IntN(len(riddles))]
		s.mu.Unlock()
		resp.Lines = append(resp.Lines,
			response("> The void poses a question..."),
			response(""),
			response(riddle),
			response(""),
		)
	case "secret":
		if sess.state == models.TerminalResolved {
			resp.Lines = append(resp.Lines, response("> The ritual is complete. The dead have already answered you."))
			return nil
		}
		sess.state = models.TerminalAwaitingUsername
		resp.Lines = append(resp.Lines,
			response("> Entering secure channel..."),
			response("> First, identify yourself. What is your Discord username?"),
		)
	case "graveyard":
		resp.Redirect = "/#gallery"
		resp.Lines = append(resp.Lines,
			response("> Opening portal to the graveyard..."),
			success("> Redirecting in 2 seconds..."),
		)
	case "burn":
		resp.Lines = append(resp.Lines,
			success("> 🔥 EASTER EGG UNLOCKED 🔥"),
			response(`> "In death, we find truth. In fire, we find rebirth."`),
			response("> The first 100 bears to burn their Okay Bears will receive a special airdrop."),
			response("> This message will self-destruct. Screenshot it if you dare."),
		)
	case "clear":
		resp.Clear = true
		resp.Lines = []models.TerminalLine{response("> Terminal cleared. The dead await your command.")}
	default:
		resp.Lines = append(resp.Lines,
			errorLine(fmt.Sprintf(`> The shadows do not understand "%s"... 💀`, input)),
			response(`> Type "help" to see available commands.`),
		)
	}
	return nil
}

func (s *TerminalService) offerWord(ctx context.Context, sess *terminalSession, word string, resp *models.TerminalResponse) error {
	if !IsSecretWord(word) {
		resp.Lines = append(resp.Lines,
			errorLine("> The shadows reject your offering. That is not the word."),
			response("> (Hint: the lore remembers what the living forget...)"),
		)
		return nil
	}

	reward, err := s.rewards.Issue(ctx, sess.username, "terminal")
	if err != nil {
		return fmt.Errorf("failed to issue terminal reward: %w", err)
	}

	sess.state = models.TerminalResolved
	resp.Reward = reward

	announcement, ok := tierAnnouncements[reward.Type]
	if !ok {
		announcement = fmt.Sprintf("you've unlocked %s!", reward.Type)
	}
	resp.Lines = append(resp.Lines,
		success("> Access granted. Generating reward..."),
		response(""),
		success("🎉 CONGRATULATIONS! 🎉"),
		response(""),
		success(fmt.Sprintf("> %s, %s", sess.username, announcement)),
		response(""),
		success("> Your unique code: "+reward.Code),
		response(""),
		response("> TO CLAIM: Open a ticket in Discord and provide this screenshot."),
	)
	logger.Info("💀 Terminal ritual resolved for %s (%s)", sess.username, reward.Type)
	return nil
}

func bannerLines() []models.TerminalLine {
	return []models.TerminalLine{
		response("> DEAD BEARS RITUAL TERMINAL v1.0"),
		response("> Initializing..."),
		success("> Connection established. The dead are listening."),
		response(`> Type "help" to see available commands.`),
		response(""),
	}
}

func response(text string) models.TerminalLine {
	return models.TerminalLine{Text: text, Type: models.LineResponse}
}

func success(text string) models.TerminalLine {
	return models.TerminalLine{Text: text, Type: models.LineSuccess}
}

func errorLine(text string) models.TerminalLine {
	return models.TerminalLine{Text: text, Type: models.LineError}
}
