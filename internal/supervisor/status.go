package supervisor

import (
	"context"
	"time"

	"github.com/Paintersrp/acpwrap/internal/api"
)

// Status implements api.StatusSource.
func (s *Supervisor) Status(context.Context) (*api.Status, error) {
	state := s.State()
	if state < StateRunning {
		return nil, api.ErrNotStarted
	}

	s.mu.Lock()
	h := s.handle
	exe := s.exe
	startedAt := s.startedAt
	s.mu.Unlock()

	status := &api.Status{
		Name:        s.cfg.Name,
		Session:     s.session,
		State:       state.String(),
		Binary:      exe.Path,
		LogPath:     s.logger.Path(),
		StartedAt:   startedAt,
		GeneratedAt: time.Now().UTC(),
	}
	if h != nil {
		status.PID = h.PID()
		status.ChildUp = h.Live()
	}
	return status, nil
}
