// Package timer provides one cancelable repeating countdown per room. The
// timer holds no game logic; it only invokes the callback once per tick.
package timer

import (
	"log"
	"sync"
	"time"
)

// Service schedules at most one round timer per room. Each start hands the
// tick goroutine a ticket (a generation counter); clearing or restarting the
// room's timer bumps the generation, so stale goroutines notice on their next
// tick and exit without firing. Generations are never reset, which keeps a
// recycled ticket from reviving a cancelled timer.
type Service struct {
	// Interval between ticks. Defaults to one second; tests shorten it.
	Interval time.Duration

	mu     sync.Mutex
	gen    map[string]uint64
	active map[string]bool
}

func NewService() *Service {
	return &Service{
		Interval: time.Second,
		gen:      make(map[string]uint64),
		active:   make(map[string]bool),
	}
}

// StartRoundTimer installs a repeating tick invoking callback(roomID). Only
// one timer may be active per room; starting a new one implicitly cancels the
// prior one.
func (s *Service) StartRoundTimer(roomID string, callback func(roomID string)) {
	s.mu.Lock()
	s.gen[roomID]++
	ticket := s.gen[roomID]
	s.active[roomID] = true
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	s.mu.Unlock()

	log.Printf("[Timer.Start] room=%s ticket=%d interval=%v", roomID, ticket, interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if !s.holds(roomID, ticket) {
				return
			}
			callback(roomID)
		}
	}()
}

// ClearRoundTimer cancels the room's timer. Idempotent; clearing a room with
// no timer is a no-op.
func (s *Service) ClearRoundTimer(roomID string) {
	s.mu.Lock()
	if s.active[roomID] {
		s.gen[roomID]++
		delete(s.active, roomID)
	}
	s.mu.Unlock()
	log.Printf("[Timer.Clear] room=%s", roomID)
}

func (s *Service) holds(roomID string, ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[roomID] && s.gen[roomID] == ticket
}

// Active reports whether a timer is currently installed for the room.
func (s *Service) Active(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[roomID]
}
