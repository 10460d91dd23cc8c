package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/courtbook/internal/domain/reservation"
)

type memRepo struct {
	mu    sync.Mutex
	saved []reservation.RunRecord
	done  chan struct{}
}

func (m *memRepo) Save(ctx context.Context, rec reservation.RunRecord) error {
	m.mu.Lock()
	m.saved = append(m.saved, rec)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return nil
}

func TestStoreLastWriteWins(t *testing.T) {
	s := NewStore(nil)

	s.Update("cfg-1", reservation.RunTypeManual, reservation.Running())
	s.Update("cfg-1", reservation.RunTypeManual, reservation.Failed("emailVerificationFailed"))

	rec, ok := s.GetLastRunInfo("cfg-1")
	require.True(t, ok)
	assert.Equal(t, reservation.StateFailed, rec.Status.State)
	assert.Equal(t, "emailVerificationFailed", rec.Status.Reason)
	assert.False(t, rec.UpdatedAt.IsZero())

	_, ok = s.GetLastRunInfo("never-ran")
	assert.False(t, ok)
}

func TestStorePersistsTerminalOnly(t *testing.T) {
	repo := &memRepo{done: make(chan struct{}, 4)}
	s := NewStore(repo)

	s.Update("cfg-1", reservation.RunTypeAutorun, reservation.Running())
	s.Update("cfg-1", reservation.RunTypeAutorun, reservation.Success())

	select {
	case <-repo.done:
	case <-time.After(time.Second):
		t.Fatal("terminal record was not persisted")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.saved, 1)
	assert.Equal(t, reservation.StateSuccess, repo.saved[0].Status.State)
}

func TestStoreSnapshot(t *testing.T) {
	s := NewStore(nil)
	s.Update("a", reservation.RunTypeManual, reservation.Running())
	s.Update("b", reservation.RunTypeManual, reservation.Stopped())

	snap := s.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, reservation.StateRunning, snap["a"].Status.State)
	assert.Equal(t, reservation.StateStopped, snap["b"].Status.State)
}

func TestStoreConcurrentUpdates(t *testing.T) {
	s := NewStore(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update("cfg-1", reservation.RunTypeManual, reservation.Running())
			s.GetLastRunInfo("cfg-1")
		}()
	}
	wg.Wait()

	rec, ok := s.GetLastRunInfo("cfg-1")
	require.True(t, ok)
	assert.Equal(t, reservation.StateRunning, rec.Status.State)
}
