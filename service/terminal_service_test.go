package service

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deadbears-gallery/models"
)

func newTestTerminal(ttl time.Duration) (*TerminalService, *memoryLedger) {
	ledger := newMemoryLedger()
	return NewTerminalService(newTestRewardService(ledger), ttl, 0, rand.New(rand.NewPCG(3, 4))), ledger
}

func send(t *testing.T, svc *TerminalService, sessionID, input string) *models.TerminalResponse {
	t.Helper()
	resp, err := svc.Handle(context.Background(), models.TerminalRequest{SessionID: sessionID, Input: input})
	require.NoError(t, err)
	return resp
}

func texts(lines []models.TerminalLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text
	}
	return strings.Join(parts, "\n")
}

func TestTerminalService_NewSessionShowsBanner(t *testing.T) {
	svc, _ := newTestTerminal(time.Minute)

	resp := send(t, svc, "", "")
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, models.TerminalIdle, resp.State)
	assert.Contains(t, texts(resp.Lines), "DEAD BEARS RITUAL TERMINAL")

	again := send(t, svc, resp.SessionID, "help")
	assert.Equal(t, resp.SessionID, again.SessionID)
	assert.NotContains(t, texts(again.Lines), "RITUAL TERMINAL v1.0")
	assert.Equal(t, models.LineCommand, again.Lines[0].Type)
	assert.Equal(t, "$ help", again.Lines[0].Text)
	assert.Contains(t, texts(again.Lines), "wake the dead")
}

func TestTerminalService_Commands(t *testing.T) {
	svc, _ := newTestTerminal(time.Minute)
	id := send(t, svc, "", "").SessionID

	tests := []struct {
		input string
		want  string
	}{
		{"wake the dead", "Dead Bears rose"},
		{"DIG DEEPER", "SNEAK PEEK"},
		{"solve riddle", "The void poses a question"},
		{"burn", "EASTER EGG UNLOCKED"},
		{"summon", `The shadows do not understand "summon"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			resp := send(t, svc, id, tt.input)
			assert.Contains(t, texts(resp.Lines), tt.want)
			assert.Equal(t, models.TerminalIdle, resp.State)
		})
	}

	t.Run("graveyard redirects", func(t *testing.T) {
		resp := send(t, svc, id, "graveyard")
		assert.Equal(t, "/#gallery", resp.Redirect)
	})

	t.Run("clear", func(t *testing.T) {
		resp := send(t, svc, id, "clear")
		assert.True(t, resp.Clear)
		require.Len(t, resp.Lines, 1)
		assert.Contains(t, resp.Lines[0].Text, "Terminal cleared")
	})
}

func TestTerminalService_SecretRitual(t *testing.T) {
	svc, ledger := newTestTerminal(time.Minute)
	id := send(t, svc, "", "").SessionID

	resp := send(t, svc, id, "secret")
	assert.Equal(t, models.TerminalAwaitingUsername, resp.State)

	// the username is taken verbatim, even when it looks like a command
	resp = send(t, svc, id, "help")
	assert.Equal(t, models.TerminalAwaitingSecretWord, resp.State)
	assert.Contains(t, texts(resp.Lines), "Welcome, help.")

	resp = send(t, svc, id, "deadbear")
	assert.Equal(t, models.TerminalAwaitingSecretWord, resp.State)
	assert.Nil(t, resp.Reward)
	assert.Equal(t, models.LineError, resp.Lines[1].Type)

	resp = send(t, svc, id, "  VoidKey ")
	assert.Equal(t, models.TerminalResolved, resp.State)
	require.NotNil(t, resp.Reward)
	assert.Regexp(t, codePattern, resp.Reward.Code)
	assert.Contains(t, texts(resp.Lines), "Your unique code: "+resp.Reward.Code)

	issued, err := ledger.GetByCode(context.Background(), resp.Reward.Code)
	require.NoError(t, err)
	assert.Equal(t, "help", issued.Username)
	assert.Equal(t, "terminal", issued.Source)

	// a resolved session cannot run the ritual again
	resp = send(t, svc, id, "secret")
	assert.Equal(t, models.TerminalResolved, resp.State)
	assert.Contains(t, texts(resp.Lines), "ritual is complete")

	resp = send(t, svc, id, "burn")
	assert.Equal(t, models.TerminalResolved, resp.State)
	assert.Contains(t, texts(resp.Lines), "EASTER EGG")
}

func TestTerminalService_SessionsExpire(t *testing.T) {
	svc, _ := newTestTerminal(time.Minute)
	now := time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	id := send(t, svc, "", "secret").SessionID
	assert.Equal(t, 1, svc.Len())

	now = now.Add(30 * time.Second)
	resp := send(t, svc, id, "graverobber")
	assert.Equal(t, id, resp.SessionID)
	assert.Equal(t, models.TerminalAwaitingSecretWord, resp.State)

	now = now.Add(2 * time.Minute)
	resp = send(t, svc, id, "obitus")
	assert.NotEqual(t, id, resp.SessionID)
	assert.Equal(t, models.TerminalIdle, resp.State)
	assert.Nil(t, resp.Reward)
	assert.Equal(t, 1, svc.Len())
}

func TestTerminalService_Sweep(t *testing.T) {
	svc, _ := newTestTerminal(time.Minute)
	now := time.Date(2024, 10, 31, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		send(t, svc, "", "")
	}
	now = now.Add(45 * time.Second)
	fresh := send(t, svc, "", "").SessionID

	now = now.Add(30 * time.Second)
	assert.Equal(t, 5, svc.Sweep())
	assert.Equal(t, 1, svc.Len())
	assert.Equal(t, fresh, send(t, svc, fresh, "help").SessionID)
}

func TestTerminalService_SessionCap(t *testing.T) {
	ledger := newMemoryLedger()
	svc := NewTerminalService(newTestRewardService(ledger), time.Hour, 3, rand.New(rand.NewPCG(3, 4)))

	first := send(t, svc, "", "").SessionID
	second := send(t, svc, "", "").SessionID
	third := send(t, svc, "", "").SessionID

	// touching the first session makes the second the least recently used
	assert.Equal(t, first, send(t, svc, first, "help").SessionID)

	for i := 0; i < 50; i++ {
		send(t, svc, "", "")
		assert.LessOrEqual(t, svc.Len(), 3)
	}
	assert.Equal(t, 3, svc.Len())

	// the evicted sessions come back as new ones
	assert.NotEqual(t, second, send(t, svc, second, "help").SessionID)
	assert.NotEqual(t, third, send(t, svc, third, "help").SessionID)
}

func TestTerminalService_LedgerFailure(t *testing.T) {
	svc, ledger := newTestTerminal(time.Minute)
	ledger.failing = true

	id := send(t, svc, "", "secret").SessionID
	send(t, svc, id, "graverobber")

	_, err := svc.Handle(context.Background(), models.TerminalRequest{SessionID: id, Input: "hush"})
	assert.Error(t, err)
}
