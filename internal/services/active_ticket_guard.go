package services

import (
	"context"
	"errors"
	"time"

	"latepass-system/internal/status"
)

// ActiveTicketGuard enforces the one-active-ticket-per-student policy. This
// is the fast pre-check; the store repeats it inside the issuance
// transaction, so a race between two issuance requests is still caught.
type ActiveTicketGuard struct {
	store TicketStore
}

func NewActiveTicketGuard(store TicketStore) *ActiveTicketGuard {
	return &ActiveTicketGuard{store: store}
}

func (g *ActiveTicketGuard) Check(ctx context.Context, studentID string, now time.Time) error {
	existing, err := g.store.FindActiveTicket(ctx, studentID, now)
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			return nil
		}
		return err
	}
	return &status.ActiveTicketError{
		ExistingTicketID:     existing.ID,
		ExistingTicketNumber: existing.TicketNumber,
	}
}
