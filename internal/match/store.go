package match

import (
	"context"
	"errors"
	"sync"
	"time"

	"match_coordinator/internal/domain"
	"match_coordinator/internal/logger"
	"match_coordinator/internal/repository"
)

var ErrAuditNotFound = errors.New("no audit trail for match")

// AuditStore is the read path for fairness verification: live matches
// are served from memory, concluded ones from memory until pruned and
// from Postgres when a repository is configured. repo may be nil.
type AuditStore struct {
	mu       sync.Mutex
	emitters map[string]*Emitter
	done     map[string]time.Time

	repo *repository.AuditRepository
}

func NewAuditStore(repo *repository.AuditRepository) *AuditStore {
	return &AuditStore{
		emitters: make(map[string]*Emitter),
		done:     make(map[string]time.Time),
		repo:     repo,
	}
}

func (s *AuditStore) Track(matchID string, e *Emitter) {
	s.mu.Lock()
	s.emitters[matchID] = e
	s.mu.Unlock()
}

// Concluded marks the match finished and, when persistence is
// configured, writes the sealed trail out in the background.
func (s *AuditStore) Concluded(matchID string) {
	s.mu.Lock()
	e := s.emitters[matchID]
	s.done[matchID] = time.Now()
	s.mu.Unlock()

	if e == nil || s.repo == nil {
		return
	}
	audit := e.Audit()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.Create(ctx, &audit); err != nil {
			logger.Error("audit store: persist failed", "match", matchID, "error", err)
		}
	}()
}

// Get returns the ordered turn trail for a match.
func (s *AuditStore) Get(ctx context.Context, matchID string) (*domain.MatchAudit, error) {
	s.mu.Lock()
	e := s.emitters[matchID]
	s.mu.Unlock()

	if e != nil {
		a := e.Audit()
		return &a, nil
	}
	if s.repo != nil {
		a, err := s.repo.GetByMatchID(ctx, matchID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAuditNotFound
		}
		return a, err
	}
	return nil, ErrAuditNotFound
}

// Reset drops all in-memory trails.
func (s *AuditStore) Reset() {
	s.mu.Lock()
	s.emitters = make(map[string]*Emitter)
	s.done = make(map[string]time.Time)
	s.mu.Unlock()
}

// StartCleanup prunes concluded trails from memory after retention.
// Persisted copies remain readable through the repository.
func (s *AuditStore) StartCleanup(ctx context.Context, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.prune(retention)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *AuditStore) prune(retention time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	for id, at := range s.done {
		if at.Before(cutoff) {
			delete(s.done, id)
			delete(s.emitters, id)
		}
	}
}
