package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"latepass-system/internal/status"
	"latepass-system/models"
)

// MemoryTicketStore keeps tickets in a mutex-guarded map with the same
// compare-and-swap semantics as the SQL store. Used by tests and local
// development without a database file.
type MemoryTicketStore struct {
	mu      sync.Mutex
	tickets map[string]models.Ticket
}

func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{tickets: make(map[string]models.Ticket)}
}

func (s *MemoryTicketStore) IssueTicket(_ context.Context, ticket models.Ticket, allowMultiple bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !allowMultiple {
		for _, t := range s.tickets {
			if t.StudentID == ticket.StudentID && t.Active(ticket.IssuedAt) {
				return &status.ActiveTicketError{
					ExistingTicketID:     t.ID,
					ExistingTicketNumber: t.TicketNumber,
				}
			}
		}
	}

	s.tickets[ticket.ID] = ticket
	return nil
}

func (s *MemoryTicketStore) GetTicket(_ context.Context, id string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return models.Ticket{}, status.ErrTicketNotFound
	}
	return t, nil
}

func (s *MemoryTicketStore) FindActiveTicket(_ context.Context, studentID string, now time.Time) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found models.Ticket
	var ok bool
	for _, t := range s.tickets {
		if t.StudentID == studentID && t.Active(now) {
			if !ok || t.IssuedAt.After(found.IssuedAt) {
				found = t
				ok = true
			}
		}
	}
	if !ok {
		return models.Ticket{}, status.ErrTicketNotFound
	}
	return found, nil
}

func (s *MemoryTicketStore) MarkUsed(_ context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok || t.Status != models.TicketStatusIssued || now.After(t.ExpiresAt) {
		return false, nil
	}

	usedAt := now
	t.Status = models.TicketStatusUsed
	t.UsedAt = &usedAt
	s.tickets[id] = t
	return true, nil
}

func (s *MemoryTicketStore) MarkExpired(_ context.Context, id string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok || t.Status != models.TicketStatusIssued || !now.After(t.ExpiresAt) {
		return false, nil
	}

	t.Status = models.TicketStatusExpired
	s.tickets[id] = t
	return true, nil
}

func (s *MemoryTicketStore) MarkCanceled(_ context.Context, id, canceledBy, reason string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok || t.Status != models.TicketStatusIssued || now.After(t.ExpiresAt) {
		return false, nil
	}

	canceledAt := now
	t.Status = models.TicketStatusCanceled
	t.CanceledAt = &canceledAt
	t.CanceledByUserID = canceledBy
	t.CancellationReason = reason
	s.tickets[id] = t
	return true, nil
}

func (s *MemoryTicketStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for id, t := range s.tickets {
		if t.Status == models.TicketStatusIssued && now.After(t.ExpiresAt) {
			t.Status = models.TicketStatusExpired
			s.tickets[id] = t
			swept++
		}
	}
	return swept, nil
}

func (s *MemoryTicketStore) CountByStatus(_ context.Context) (map[models.TicketStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[models.TicketStatus]int)
	for _, t := range s.tickets {
		counts[t.Status]++
	}
	return counts, nil
}

func (s *MemoryTicketStore) ListUsed(_ context.Context, limit int) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var used []models.Ticket
	for _, t := range s.tickets {
		if t.Status == models.TicketStatusUsed {
			used = append(used, t)
		}
	}
	sort.Slice(used, func(i, j int) bool {
		return used[i].UsedAt.After(*used[j].UsedAt)
	})
	if limit > 0 && len(used) > limit {
		used = used[:limit]
	}
	return used, nil
}

// MemoryTimetableStore serves timetables from a fixed map.
type MemoryTimetableStore struct {
	mu         sync.Mutex
	timetables map[string]models.Timetable
}

func NewMemoryTimetableStore() *MemoryTimetableStore {
	return &MemoryTimetableStore{timetables: make(map[string]models.Timetable)}
}

func (s *MemoryTimetableStore) Put(t models.Timetable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timetables[t.ID] = t
}

func (s *MemoryTimetableStore) TimetableByID(_ context.Context, id string) (models.Timetable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timetables[id]
	if !ok {
		return models.Timetable{}, status.ErrTimetableNotFound
	}
	return t, nil
}
