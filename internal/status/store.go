// Package status tracks the last-known run status per config. The store is
// purely observational: callers of the orchestrator never block on it.
package status

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/courtbook/internal/domain/reservation"
)

// RecordRepo persists terminal run records. Implementations must tolerate
// being called concurrently.
type RecordRepo interface {
	Save(ctx context.Context, rec reservation.RunRecord) error
}

// Store holds per-config run status, last write wins. It is the only writer
// of run status in the system (the orchestrator calls it; nothing else does).
type Store struct {
	mu      sync.RWMutex
	records map[string]reservation.RunRecord

	repo RecordRepo
	now  func() time.Time
}

// NewStore builds a store. repo may be nil for memory-only operation.
func NewStore(repo RecordRepo) *Store {
	return &Store{
		records: make(map[string]reservation.RunRecord),
		repo:    repo,
		now:     time.Now,
	}
}

// Update records the status with the current timestamp. Terminal statuses
// are persisted asynchronously; a failed persist is logged, never surfaced,
// since the in-memory state is the source of truth for observers.
func (s *Store) Update(configID string, runType reservation.RunType, st reservation.RunStatus) {
	rec := reservation.RunRecord{
		ConfigID:  configID,
		RunType:   runType,
		Status:    st,
		UpdatedAt: s.now(),
	}

	s.mu.Lock()
	s.records[configID] = rec
	s.mu.Unlock()

	if s.repo != nil && st.State.Terminal() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.repo.Save(ctx, rec); err != nil {
				log.Warn().Err(err).Str("config", configID).Msg("run record persist failed")
			}
		}()
	}
}

// GetLastRunInfo returns the last recorded status for the config, absent
// when it has never run.
func (s *Store) GetLastRunInfo(configID string) (reservation.RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[configID]
	return rec, ok
}

// Snapshot returns a copy of every config's last status.
func (s *Store) Snapshot() map[string]reservation.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]reservation.RunRecord, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}
