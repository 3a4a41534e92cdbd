package models

import (
	"time"
)

type TicketStatus string

const (
	TicketStatusIssued   TicketStatus = "issued"
	TicketStatusUsed     TicketStatus = "used"
	TicketStatusExpired  TicketStatus = "expired"
	TicketStatusCanceled TicketStatus = "canceled"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusUsed || s == TicketStatusExpired || s == TicketStatusCanceled
}

type Ticket struct {
	ID           string       `json:"id"`
	TicketNumber string       `json:"ticket_number"` // LPT-YYYY-NNNNNN
	StudentID    string       `json:"student_id"`
	TimetableID  string       `json:"timetable_id"`
	OrgID        string       `json:"org_id"`
	Status       TicketStatus `json:"status"` // issued, used, expired, canceled
	IssuedAt     time.Time    `json:"issued_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	UsedAt       *time.Time   `json:"used_at,omitempty"`
	QRCodeData   string       `json:"qr_code_data"`

	IssuedByUserID     string     `json:"issued_by_user_id"`
	CanceledByUserID   string     `json:"canceled_by_user_id,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
}

// Active reports whether the ticket still authorizes entry at the given time.
func (t Ticket) Active(now time.Time) bool {
	return t.Status == TicketStatusIssued && !now.After(t.ExpiresAt)
}

type RedemptionResult struct {
	Ticket     Ticket          `json:"ticket"`
	Attendance AttendanceEvent `json:"attendance"`
}
