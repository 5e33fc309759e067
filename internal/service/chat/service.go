package chat

import (
	"context"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/zhouzirui/medrag/backend/internal/model/chat"
)

type entry struct {
	transcript chat.Transcript
	touched    time.Time
}

// Service keeps one transcript per browser session in memory. Transcripts
// live until they are cleared or expire after a period of inactivity.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	locks    map[string]*sync.Mutex
	now      func() time.Time
}

// NewService bootstraps an empty transcript store.
func NewService() *Service {
	return &Service{
		sessions: make(map[string]*entry),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

// GetOrInit returns a copy of the session transcript, creating an empty one
// on first use.
func (s *Service) GetOrInit(_ context.Context, sessionID string) chat.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(sessionID)
	return e.transcript.Clone()
}

// Append adds a turn to the end of the session transcript.
func (s *Service) Append(_ context.Context, sessionID string, turn chat.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entryLocked(sessionID)
	e.transcript = append(e.transcript, turn)
}

// Clear drops the session transcript entirely.
func (s *Service) Clear(_ context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
}

// Len reports how many sessions currently hold a transcript.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Expire removes transcripts untouched for longer than maxIdle and returns
// how many were removed.
func (s *Service) Expire(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if e.touched.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}

	// Locks of sessions without a transcript go too, unless a submission
	// is still holding them.
	for id, lock := range s.locks {
		if _, ok := s.sessions[id]; ok {
			continue
		}
		if lock.TryLock() {
			delete(s.locks, id)
			lock.Unlock()
		}
	}
	return removed
}

// RunJanitor expires idle transcripts every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Expire(maxIdle); removed > 0 {
				klog.V(6).Infof("[chat] expired %d idle transcripts", removed)
			}
		}
	}
}

// lockSession serialises work on a single session and returns the unlock func.
func (s *Service) lockSession(sessionID string) func() {
	for {
		s.mu.Lock()
		lock, ok := s.locks[sessionID]
		if !ok {
			lock = &sync.Mutex{}
			s.locks[sessionID] = lock
		}
		s.mu.Unlock()

		lock.Lock()

		// Expire may have pruned the lock between lookup and Lock.
		s.mu.RLock()
		current := s.locks[sessionID]
		s.mu.RUnlock()
		if current == lock {
			return lock.Unlock
		}
		lock.Unlock()
	}
}

func (s *Service) entryLocked(sessionID string) *entry {
	e, ok := s.sessions[sessionID]
	if !ok {
		e = &entry{transcript: make(chat.Transcript, 0, 16)}
		s.sessions[sessionID] = e
	}
	e.touched = s.now()
	return e
}
