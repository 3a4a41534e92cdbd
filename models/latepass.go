package models

import (
	"time"
)

// Timetable is the slice of the scheduling domain the late-pass core needs:
// which session, when it starts, and who owns it.
type Timetable struct {
	ID            string    `json:"id"`
	StartDateTime time.Time `json:"start_date_time"`
	OrgID         string    `json:"org_id"`
}

// LatePassConfig is the per-organization policy for late-pass tickets.
type LatePassConfig struct {
	MaxGenerationDelayMinutes  int  `json:"max_generation_delay_minutes"`
	MaxAcceptanceDelayMinutes  int  `json:"max_acceptance_delay_minutes"`
	AllowMultipleActiveTickets bool `json:"allow_multiple_active_tickets"`
	AutoExpireTickets          bool `json:"auto_expire_tickets"`
}

// AttendanceEvent is emitted once per successful redemption.
type AttendanceEvent struct {
	StudentID   string    `json:"student_id"`
	TimetableID string    `json:"timetable_id"`
	ArrivedAt   time.Time `json:"arrived_at"`
}
