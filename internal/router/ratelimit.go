package router

import (
	"sync"
	"time"

	"github.com/parlorgames/parlor-backend/internal"
)

const (
	// Drawing traffic gets its own, much larger budget: rapid pointer
	// movement legitimately produces many frames per second.
	DefaultDrawBudget  = 300
	DefaultOtherBudget = 60

	rateWindow = 60 * time.Second
)

type budget struct {
	count       int
	windowStart time.Time
}

type playerBudgets struct {
	draw  budget
	other budget
}

// RateLimiter enforces per-player per-minute budgets, with "draw" messages
// counted separately from everything else. Each budget's window opens on its
// first use and resets 60 seconds later; messages over budget are rejected,
// never queued.
type RateLimiter struct {
	DrawBudget  int
	OtherBudget int

	// now is swapped out by tests to step through windows.
	now func() time.Time

	mu      sync.Mutex
	players map[string]*playerBudgets
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		DrawBudget:  DefaultDrawBudget,
		OtherBudget: DefaultOtherBudget,
		now:         time.Now,
		players:     make(map[string]*playerBudgets),
	}
}

// CheckRateLimit consumes one unit of the budget for msgType. It returns a
// RateLimitError when the budget for the current window is exhausted.
func (rl *RateLimiter) CheckRateLimit(playerID, msgType string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	pb, ok := rl.players[playerID]
	if !ok {
		pb = &playerBudgets{}
		rl.players[playerID] = pb
	}

	b, limit, name := &pb.other, rl.OtherBudget, "default"
	if msgType == internal.TypeDraw {
		b, limit, name = &pb.draw, rl.DrawBudget, "draw"
	}

	now := rl.now()
	if b.count == 0 || now.Sub(b.windowStart) >= rateWindow {
		b.windowStart = now
		b.count = 0
	}
	if b.count >= limit {
		return &internal.RateLimitError{Budget: name}
	}
	b.count++
	return nil
}

// Forget drops a player's budgets; called when their connection goes away.
func (rl *RateLimiter) Forget(playerID string) {
	rl.mu.Lock()
	delete(rl.players, playerID)
	rl.mu.Unlock()
}
