package services

import (
	"time"

	"latepass-system/models"
)

// Window policy for late-pass tickets. A ticket is proof of lateness, not of
// future intent: it can only be generated between session start and the
// generation deadline, and only redeemed up to the acceptance deadline.
// Both deadlines are inclusive.

func GenerationDeadline(startDateTime time.Time, cfg models.LatePassConfig) time.Time {
	return startDateTime.Add(time.Duration(cfg.MaxGenerationDelayMinutes) * time.Minute)
}

func AcceptanceDeadline(startDateTime time.Time, cfg models.LatePassConfig) time.Time {
	return startDateTime.Add(time.Duration(cfg.MaxAcceptanceDelayMinutes) * time.Minute)
}

// CanGenerate reports whether an admin may still issue a ticket for a session
// starting at startDateTime.
func CanGenerate(startDateTime time.Time, cfg models.LatePassConfig, now time.Time) bool {
	if now.Before(startDateTime) {
		return false
	}
	return !now.After(GenerationDeadline(startDateTime, cfg))
}

// CanAccept reports whether a ticket expiring at expiresAt may still be
// redeemed.
func CanAccept(expiresAt, now time.Time) bool {
	return !now.After(expiresAt)
}
