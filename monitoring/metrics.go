package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"latepass-system/models"
)

var (
	ticketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latepass_tickets_issued_total",
			Help: "Total late-pass tickets issued",
		},
		[]string{"org_id"},
	)

	ticketsRedeemed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latepass_tickets_redeemed_total",
			Help: "Total late-pass tickets redeemed",
		},
		[]string{"org_id"},
	)

	redemptionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "latepass_redemptions_rejected_total",
			Help: "Total rejected redemption attempts by reason",
		},
		[]string{"reason"},
	)

	ticketsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "latepass_tickets_by_status",
			Help: "Current ticket count per lifecycle status",
		},
		[]string{"status"},
	)

	ticketsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "latepass_tickets_swept_total",
			Help: "Total tickets expired by the background sweep",
		},
	)

	attendancePublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "latepass_attendance_publish_failures_total",
			Help: "Attendance events that could not be published",
		},
	)

	redemptionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "latepass_redemption_duration_seconds",
			Help:    "Duration of redemption requests",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)
)

// StatusCounter is the slice of the ticket store the monitor polls.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.TicketStatus]int, error)
}

type Monitor struct {
	store    StatusCounter
	interval time.Duration
	stopChan chan struct{}
}

func NewMonitor(store StatusCounter) *Monitor {
	monitor := &Monitor{
		store:    store,
		interval: 30 * time.Second,
		stopChan: make(chan struct{}),
	}

	go monitor.collectMetrics()

	return monitor
}

func (m *Monitor) Stop() {
	close(m.stopChan)
}

func (m *Monitor) collectMetrics() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.collectStatusGauges(context.Background())
		case <-m.stopChan:
			return
		}
	}
}

func (m *Monitor) collectStatusGauges(ctx context.Context) {
	counts, err := m.store.CountByStatus(ctx)
	if err != nil {
		return
	}

	for _, s := range []models.TicketStatus{
		models.TicketStatusIssued,
		models.TicketStatusUsed,
		models.TicketStatusExpired,
		models.TicketStatusCanceled,
	} {
		ticketsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// TrackTicketIssued records a successful issuance.
func TrackTicketIssued(orgID string) {
	ticketsIssued.WithLabelValues(orgID).Inc()
}

// TrackTicketRedeemed records a successful redemption.
func TrackTicketRedeemed(orgID string) {
	ticketsRedeemed.WithLabelValues(orgID).Inc()
}

// TrackRedemptionRejected records a failed redemption attempt. Signature
// failures are labelled separately so forgery attempts stand out.
func TrackRedemptionRejected(reason string) {
	redemptionsRejected.WithLabelValues(reason).Inc()
}

// TrackSwept records tickets expired by a sweep.
func TrackSwept(n int) {
	ticketsSwept.Add(float64(n))
}

// TrackAttendancePublishFailure records a dropped attendance event.
func TrackAttendancePublishFailure() {
	attendancePublishFailures.Inc()
}

// TrackRedemptionDuration records how long a redemption took.
func TrackRedemptionDuration(d time.Duration) {
	redemptionDuration.Observe(d.Seconds())
}
