package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"latepass-system/models"
)

// statsSampleSize bounds how many recent redemptions feed the lateness
// average.
const statsSampleSize = 500

type DashboardStats struct {
	Issued   int `json:"issued"`
	Used     int `json:"used"`
	Expired  int `json:"expired"`
	Canceled int `json:"canceled"`

	// AverageLatenessMinutes is the mean of (arrival - session start) over
	// recent redemptions, kept as a decimal so report sums stay exact.
	AverageLatenessMinutes decimal.Decimal `json:"average_lateness_minutes"`
	SampleSize             int             `json:"sample_size"`
}

// StatsService aggregates ticket counts and lateness for the admin
// dashboard.
type StatsService struct {
	store      TicketStore
	timetables TimetableStore
}

func NewStatsService(store TicketStore, timetables TimetableStore) *StatsService {
	return &StatsService{store: store, timetables: timetables}
}

func (s *StatsService) Dashboard(ctx context.Context) (DashboardStats, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return DashboardStats{}, err
	}

	stats := DashboardStats{
		Issued:                 counts[models.TicketStatusIssued],
		Used:                   counts[models.TicketStatusUsed],
		Expired:                counts[models.TicketStatusExpired],
		Canceled:               counts[models.TicketStatusCanceled],
		AverageLatenessMinutes: decimal.Zero,
	}

	used, err := s.store.ListUsed(ctx, statsSampleSize)
	if err != nil {
		return DashboardStats{}, err
	}

	sum := decimal.Zero
	sixty := decimal.NewFromInt(60)
	for _, t := range used {
		if t.UsedAt == nil {
			continue
		}
		timetable, err := s.timetables.TimetableByID(ctx, t.TimetableID)
		if err != nil {
			continue
		}
		lateSeconds := t.UsedAt.Sub(timetable.StartDateTime) / time.Second
		if lateSeconds < 0 {
			continue
		}
		sum = sum.Add(decimal.NewFromInt(int64(lateSeconds)).Div(sixty))
		stats.SampleSize++
	}

	if stats.SampleSize > 0 {
		stats.AverageLatenessMinutes = sum.
			Div(decimal.NewFromInt(int64(stats.SampleSize))).
			Round(2)
	}
	return stats, nil
}
