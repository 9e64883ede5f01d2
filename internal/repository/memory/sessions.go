package memory

import (
	"context"
	"time"

	"github.com/spec-kit/support-engine/internal/domain"
)

type breakSessionRepo struct {
	store *Store
}

func (r *breakSessionRepo) Open(ctx context.Context, session *domain.AgentBreakSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if session.ID == "" {
		session.ID = newID()
	}
	session.CreatedAt = r.store.stamp(session.CreatedAt)
	r.store.breakSessions[session.ID] = *session
	return nil
}

func (r *breakSessionRepo) Close(ctx context.Context, sessionID string, end time.Time, durationSeconds int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session, ok := r.store.breakSessions[sessionID]
	if !ok || session.EndTime != nil {
		return ErrNotFound
	}
	session.EndTime = &end
	session.DurationSeconds = &durationSeconds
	r.store.breakSessions[sessionID] = session
	return nil
}

func (r *breakSessionRepo) GetOpenByAgent(ctx context.Context, agentID string) (*domain.AgentBreakSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var latest *domain.AgentBreakSession
	for id := range r.store.breakSessions {
		session := r.store.breakSessions[id]
		if session.AgentID != agentID || session.EndTime != nil {
			continue
		}
		if latest == nil || session.StartTime.After(latest.StartTime) {
			out := session
			latest = &out
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (r *breakSessionRepo) ListClosedByAgentBetween(ctx context.Context, agentID string, from, to time.Time) ([]domain.AgentBreakSession, error) {
	r.store.mu.RLock()
	var result []domain.AgentBreakSession
	for _, session := range r.store.breakSessions {
		if session.AgentID != agentID || session.EndTime == nil {
			continue
		}
		if !inRange(session.StartTime, from, to) {
			continue
		}
		result = append(result, session)
	}
	r.store.mu.RUnlock()
	return sortedByCreation(result, func(s domain.AgentBreakSession) time.Time { return s.StartTime }), nil
}
