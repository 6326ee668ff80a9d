package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danielmarv/hms-front-sub002/internal/domain"
)

// SessionStore keeps live wizard sessions in process memory. Drafts
// are ephemeral per session and must not survive the process, so no
// external storage backs this.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.WizardSession
	idleTTL  time.Duration
}

func NewSessionStore(idleTTL time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.WizardSession),
		idleTTL:  idleTTL,
	}
}

func (s *SessionStore) Put(ws *domain.WizardSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[ws.ID] = ws
}

// View runs fn under the store lock for a consistent read. Snapshots
// racing an Update on the same session see either the state before or
// after it, never a half-applied one.
func (s *SessionStore) View(id string, fn func(*domain.WizardSession)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	fn(ws)
	return nil
}

// Update runs fn under the store lock so concurrent handlers cannot
// interleave session mutations. fn returning an error leaves whatever
// it already wrote in place; gate functions validate before mutating.
func (s *SessionStore) Update(id string, fn func(*domain.WizardSession) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	return fn(ws)
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StartJanitor sweeps idle sessions every interval until ctx is done.
// Sessions with an in-flight call are spared so a resolving search or
// submit still finds its session.
func (s *SessionStore) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.sweep(time.Now())
			}
		}
	}()
}

func (s *SessionStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ws := range s.sessions {
		if ws.Searching || ws.Submitting {
			continue
		}
		if now.Sub(ws.LastActive) > s.idleTTL {
			delete(s.sessions, id)
			log.Info().Str("session", id).Msg("idle wizard session swept")
		}
	}
}

var _ domain.SessionStore = (*SessionStore)(nil)
