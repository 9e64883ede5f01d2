// Package memory provides mutex-guarded in-memory implementations of the
// repository interfaces. They back the service when no POSTGRES_DSN is
// configured and the package-level tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-engine/internal/domain"
	"github.com/spec-kit/support-engine/internal/repository"
)

// Store owns all record sets behind a single lock. Copy-in/copy-out keeps
// callers from aliasing stored records.
type Store struct {
	mu sync.RWMutex

	agents        map[string]domain.Agent
	tickets       map[string]domain.Ticket
	messages      map[string]domain.Message
	stateLogs     []domain.TicketStateLog
	transferLogs  []domain.TicketTransferLog
	breakSessions map[string]domain.AgentBreakSession
	dailyKPIs     map[string]domain.AgentKPI
	monthlyKPIs   map[string]domain.AgentKPIMonthly
	ratings       []domain.CustomerSatisfaction
	activity      []domain.ActivityLog
	customers     map[string]domain.Customer

	now func() time.Time
}

// NewStore creates an empty store using the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock creates a store stamping records with the given clock.
func NewStoreWithClock(now func() time.Time) *Store {
	return &Store{
		agents:        make(map[string]domain.Agent),
		tickets:       make(map[string]domain.Ticket),
		messages:      make(map[string]domain.Message),
		breakSessions: make(map[string]domain.AgentBreakSession),
		dailyKPIs:     make(map[string]domain.AgentKPI),
		monthlyKPIs:   make(map[string]domain.AgentKPIMonthly),
		customers:     make(map[string]domain.Customer),
		now:           now,
	}
}

// Agents returns the agent repository view of the store.
func (s *Store) Agents() repository.AgentRepository { return &agentRepo{s} }

// Tickets returns the ticket repository view of the store.
func (s *Store) Tickets() repository.TicketRepository { return &ticketRepo{s} }

// Messages returns the message repository view of the store.
func (s *Store) Messages() repository.MessageRepository { return &messageRepo{s} }

// StateLogs returns the state log repository view of the store.
func (s *Store) StateLogs() repository.StateLogRepository { return &stateLogRepo{s} }

// TransferLogs returns the transfer log repository view of the store.
func (s *Store) TransferLogs() repository.TransferLogRepository { return &transferLogRepo{s} }

// BreakSessions returns the break session repository view of the store.
func (s *Store) BreakSessions() repository.BreakSessionRepository { return &breakSessionRepo{s} }

// KPIs returns the KPI repository view of the store.
func (s *Store) KPIs() repository.KPIRepository { return &kpiRepo{s} }

// Satisfaction returns the satisfaction repository view of the store.
func (s *Store) Satisfaction() repository.SatisfactionRepository { return &satisfactionRepo{s} }

// ActivityLogs returns the activity log repository view of the store.
func (s *Store) ActivityLogs() repository.ActivityLogRepository { return &activityLogRepo{s} }

// Customers returns the customer repository view of the store.
func (s *Store) Customers() repository.CustomerRepository { return &customerRepo{s} }

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

func newID() string { return uuid.NewString() }

// ErrNotFound matches the pgx sentinel so callers handle both backends the
// same way.
var ErrNotFound = pgx.ErrNoRows

func sortedByCreation[T any](items []T, createdAt func(T) time.Time) []T {
	out := append([]T{}, items...)
	sort.SliceStable(out, func(i, j int) bool {
		return createdAt(out[i]).Before(createdAt(out[j]))
	})
	return out
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
