package services

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"latepass-system/models"
)

// AttendanceSink receives one event per successful redemption so the
// attendance recorder can mark the student late-but-present.
type AttendanceSink interface {
	Record(ctx context.Context, event models.AttendanceEvent) error
}

// attendanceChannel is the firehose consumed by the attendance recorder.
const attendanceChannel = "attendance-events"

// PubNubAttendanceSink publishes attendance events to the firehose channel
// and to the student's own channel.
type PubNubAttendanceSink struct {
	PubNub *pubnub.PubNub
}

func NewPubNubAttendanceSink(pn *pubnub.PubNub) *PubNubAttendanceSink {
	return &PubNubAttendanceSink{PubNub: pn}
}

func (s *PubNubAttendanceSink) Record(_ context.Context, event models.AttendanceEvent) error {
	message := map[string]any{
		"type":         "late_arrival",
		"student_id":   event.StudentID,
		"timetable_id": event.TimetableID,
		"arrived_at":   event.ArrivedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}

	_, _, err := s.PubNub.Publish().
		Channel(attendanceChannel).
		Message(message).
		Execute()
	if err != nil {
		return fmt.Errorf("attendance publish: %w", err)
	}

	channel := fmt.Sprintf("student-%s", event.StudentID)
	if _, _, err := s.PubNub.Publish().Channel(channel).Message(message).Execute(); err != nil {
		// The recorder already has the event; the student channel is
		// best-effort UI feedback.
		slog.Warn("student channel publish failed", "channel", channel, "error", err)
	}

	return nil
}

// NopAttendanceSink drops events. Used when no PubNub keys are configured.
type NopAttendanceSink struct{}

func (NopAttendanceSink) Record(context.Context, models.AttendanceEvent) error { return nil }
