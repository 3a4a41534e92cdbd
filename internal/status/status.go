package status

import (
	"errors"
	"fmt"
)

var (
	ErrTimetableNotFound       = errors.New("timetable: timetable not found")
	ErrOutsideGenerationWindow = errors.New("latepass: outside generation window")
	ErrTicketNumberExhausted   = errors.New("latepass: ticket numbers exhausted for this year")

	ErrInvalidSignature = errors.New("qr payload: invalid signature")
	ErrMalformedPayload = errors.New("qr payload: malformed payload")

	ErrTicketNotFound  = errors.New("ticket: ticket not found")
	ErrAlreadyUsed     = errors.New("ticket: ticket already used")
	ErrAlreadyCanceled = errors.New("ticket: ticket already canceled")
	ErrAlreadyExpired  = errors.New("ticket: ticket already expired")

	ErrCancellationReasonRequired = errors.New("ticket: cancellation reason required")
)

// ActiveTicketError rejects issuance when the student already holds an
// active ticket. It names the conflicting ticket so the caller can offer
// "view existing" instead of a blind retry.
type ActiveTicketError struct {
	ExistingTicketID     string
	ExistingTicketNumber string
}

func (e *ActiveTicketError) Error() string {
	return fmt.Sprintf("latepass: student already has active ticket %s", e.ExistingTicketNumber)
}
