package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"latepass-system/internal/status"
	"latepass-system/models"
	"latepass-system/monitoring"
	"latepass-system/utils"
)

// OrgConfigProvider resolves the late-pass policy for an organization.
// Tenant provisioning lives elsewhere; the default provider simply serves
// the server-wide defaults to every org.
type OrgConfigProvider interface {
	ConfigForOrg(ctx context.Context, orgID string) (models.LatePassConfig, error)
}

type StaticConfigProvider struct {
	Config models.LatePassConfig
}

func (p StaticConfigProvider) ConfigForOrg(context.Context, string) (models.LatePassConfig, error) {
	return p.Config, nil
}

type IssueRequest struct {
	StudentID      string `json:"student_id"`
	TimetableID    string `json:"timetable_id"`
	OrgID          string `json:"org_id"`
	IssuedByUserID string `json:"issued_by_user_id"`
}

// LatePassService drives the ticket lifecycle: issue, redeem, cancel,
// expire. All state transitions go through the store's compare-and-swap
// operations, so two concurrent scans of the same ticket can never both
// succeed.
type LatePassService struct {
	store      TicketStore
	timetables TimetableStore
	allocator  NumberAllocator
	codec      *PayloadCodec
	guard      *ActiveTicketGuard
	configs    OrgConfigProvider
	sink       AttendanceSink
	breaker    *utils.CircuitBreaker

	now func() time.Time // mockable

	sweepInterval time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

func NewLatePassService(
	store TicketStore,
	timetables TimetableStore,
	allocator NumberAllocator,
	codec *PayloadCodec,
	configs OrgConfigProvider,
	sink AttendanceSink,
	sweepInterval time.Duration,
) *LatePassService {
	return &LatePassService{
		store:         store,
		timetables:    timetables,
		allocator:     allocator,
		codec:         codec,
		guard:         NewActiveTicketGuard(store),
		configs:       configs,
		sink:          sink,
		breaker:       utils.NewCircuitBreaker("attendance-sink"),
		now:           time.Now,
		sweepInterval: sweepInterval,
		stopChan:      make(chan struct{}),
	}
}

// Issue creates a new late-pass ticket for a student who arrived late to the
// given session. Preconditions, in order: the timetable exists and belongs
// to the org, "now" falls inside the generation window, and the student has
// no other active ticket (unless the org allows multiples).
func (s *LatePassService) Issue(ctx context.Context, req IssueRequest) (models.Ticket, error) {
	timetable, err := s.timetables.TimetableByID(ctx, req.TimetableID)
	if err != nil {
		return models.Ticket{}, err
	}
	if req.OrgID != "" && timetable.OrgID != req.OrgID {
		// A timetable from another org is indistinguishable from a missing
		// one to the caller.
		return models.Ticket{}, status.ErrTimetableNotFound
	}

	cfg, err := s.configs.ConfigForOrg(ctx, timetable.OrgID)
	if err != nil {
		return models.Ticket{}, err
	}

	now := s.now().UTC()
	if !CanGenerate(timetable.StartDateTime, cfg, now) {
		return models.Ticket{}, status.ErrOutsideGenerationWindow
	}

	if !cfg.AllowMultipleActiveTickets {
		if err := s.guard.Check(ctx, req.StudentID, now); err != nil {
			return models.Ticket{}, err
		}
	}

	number, err := s.allocator.Next(ctx, now.Year())
	if err != nil {
		return models.Ticket{}, err
	}

	id, err := utils.GenerateTicketID(8)
	if err != nil {
		return models.Ticket{}, err
	}

	expiresAt := AcceptanceDeadline(timetable.StartDateTime, cfg)
	qrData, err := s.codec.Encode(TicketPayload{
		TicketID:    id,
		StudentID:   req.StudentID,
		TimetableID: req.TimetableID,
		ExpiresAt:   expiresAt.Unix(),
	})
	if err != nil {
		return models.Ticket{}, err
	}

	ticket := models.Ticket{
		ID:             id,
		TicketNumber:   number,
		StudentID:      req.StudentID,
		TimetableID:    timetable.ID,
		OrgID:          timetable.OrgID,
		Status:         models.TicketStatusIssued,
		IssuedAt:       now,
		ExpiresAt:      expiresAt,
		QRCodeData:     qrData,
		IssuedByUserID: req.IssuedByUserID,
	}

	if err := s.store.IssueTicket(ctx, ticket, cfg.AllowMultipleActiveTickets); err != nil {
		return models.Ticket{}, err
	}

	monitoring.TrackTicketIssued(ticket.OrgID)
	slog.Info("late-pass ticket issued",
		"ticket_number", ticket.TicketNumber,
		"student_id", ticket.StudentID,
		"timetable_id", ticket.TimetableID,
		"expires_at", ticket.ExpiresAt,
	)
	return ticket, nil
}

// Redeem validates a scanned QR payload and marks the ticket used. The
// transition is a single conditional update in the store; when it reports no
// rows affected, the ticket is re-read to name the terminal state that won.
func (s *LatePassService) Redeem(ctx context.Context, qrData string) (models.RedemptionResult, error) {
	started := time.Now()
	defer func() { monitoring.TrackRedemptionDuration(time.Since(started)) }()

	result, err := s.redeem(ctx, qrData)
	if err != nil {
		monitoring.TrackRedemptionRejected(rejectionReason(err))
	}
	return result, err
}

func (s *LatePassService) redeem(ctx context.Context, qrData string) (models.RedemptionResult, error) {
	payload, err := s.codec.Decode(qrData)
	if err != nil {
		slog.Warn("rejected QR payload", "error", err)
		return models.RedemptionResult{}, err
	}

	ticket, err := s.store.GetTicket(ctx, payload.TicketID)
	if err != nil {
		return models.RedemptionResult{}, err
	}

	// A payload that verifies but disagrees with the stored row is a replay
	// of a stale or regenerated ticket.
	if !payload.Matches(ticket.ExpiresAt) || payload.StudentID != ticket.StudentID {
		slog.Warn("QR payload does not match stored ticket",
			"ticket_number", ticket.TicketNumber)
		return models.RedemptionResult{}, status.ErrInvalidSignature
	}

	now := s.now().UTC()

	if ticket.Status != models.TicketStatusIssued {
		return models.RedemptionResult{}, terminalStateError(ticket.Status)
	}

	if !CanAccept(ticket.ExpiresAt, now) {
		// Lazy expiry: flip the row so reporting agrees with what the
		// scanner was told. Losing this race to another writer is fine.
		if _, err := s.store.MarkExpired(ctx, ticket.ID, now); err != nil {
			slog.Warn("lazy expire failed", "ticket_id", ticket.ID, "error", err)
		}
		return models.RedemptionResult{}, status.ErrAlreadyExpired
	}

	won, err := s.store.MarkUsed(ctx, ticket.ID, now)
	if err != nil {
		return models.RedemptionResult{}, err
	}
	if !won {
		return models.RedemptionResult{}, s.loserError(ctx, ticket.ID, now)
	}

	ticket.Status = models.TicketStatusUsed
	ticket.UsedAt = &now

	event := models.AttendanceEvent{
		StudentID:   ticket.StudentID,
		TimetableID: ticket.TimetableID,
		ArrivedAt:   now,
	}
	s.recordAttendance(ctx, event)

	monitoring.TrackTicketRedeemed(ticket.OrgID)
	slog.Info("late-pass ticket redeemed",
		"ticket_number", ticket.TicketNumber,
		"student_id", ticket.StudentID,
		"arrived_at", now,
	)

	return models.RedemptionResult{Ticket: ticket, Attendance: event}, nil
}

// recordAttendance publishes the attendance event behind the circuit
// breaker. The USED transition has already committed, so a sink outage is
// logged and counted but never unwinds the redemption.
func (s *LatePassService) recordAttendance(ctx context.Context, event models.AttendanceEvent) {
	err := s.breaker.Execute(ctx, func() error {
		return s.sink.Record(ctx, event)
	})
	if err != nil {
		monitoring.TrackAttendancePublishFailure()
		slog.Error("attendance event not delivered",
			"student_id", event.StudentID,
			"timetable_id", event.TimetableID,
			"error", err,
		)
	}
}

// loserError re-reads a ticket after a lost MarkUsed race and maps the
// winning transition to its error.
func (s *LatePassService) loserError(ctx context.Context, id string, now time.Time) error {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return err
	}
	if ticket.Status == models.TicketStatusIssued {
		// Still issued means the conditional update only failed its expiry
		// clause.
		if _, err := s.store.MarkExpired(ctx, id, now); err != nil {
			slog.Warn("lazy expire failed", "ticket_id", id, "error", err)
		}
		return status.ErrAlreadyExpired
	}
	return terminalStateError(ticket.Status)
}

// Cancel voids an ISSUED, unexpired ticket. Canceling an already-expired
// ticket is an AlreadyExpired error, not a silent success.
func (s *LatePassService) Cancel(ctx context.Context, ticketID, canceledBy, reason string) (models.Ticket, error) {
	if reason == "" {
		return models.Ticket{}, status.ErrCancellationReasonRequired
	}

	now := s.now().UTC()

	won, err := s.store.MarkCanceled(ctx, ticketID, canceledBy, reason, now)
	if err != nil {
		return models.Ticket{}, err
	}
	if !won {
		return models.Ticket{}, s.loserError(ctx, ticketID, now)
	}

	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}

	slog.Info("late-pass ticket canceled",
		"ticket_number", ticket.TicketNumber,
		"canceled_by", canceledBy,
		"reason", reason,
	)
	return ticket, nil
}

// GetActiveTicket returns the student's current active ticket, or
// status.ErrTicketNotFound.
func (s *LatePassService) GetActiveTicket(ctx context.Context, studentID string) (models.Ticket, error) {
	return s.store.FindActiveTicket(ctx, studentID, s.now().UTC())
}

// GetTicket reads a ticket, lazily reporting EXPIRED for an issued ticket
// whose expiry has passed.
func (s *LatePassService) GetTicket(ctx context.Context, id string) (models.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, id)
	if err != nil {
		return models.Ticket{}, err
	}

	now := s.now().UTC()
	if ticket.Status == models.TicketStatusIssued && !CanAccept(ticket.ExpiresAt, now) {
		if _, err := s.store.MarkExpired(ctx, ticket.ID, now); err != nil {
			slog.Warn("lazy expire failed", "ticket_id", ticket.ID, "error", err)
		}
		ticket.Status = models.TicketStatusExpired
	}
	return ticket, nil
}

// SweepExpired expires every overdue ISSUED ticket. Correctness never
// depends on it: Redeem re-checks expiry on its own. The sweep only keeps
// reporting fresh.
func (s *LatePassService) SweepExpired(ctx context.Context) (int, error) {
	swept, err := s.store.SweepExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if swept > 0 {
		monitoring.TrackSwept(swept)
		slog.Info("expired tickets swept", "count", swept)
	}
	return swept, nil
}

// StartSweeper runs SweepExpired on a ticker until Stop or ctx cancel.
func (s *LatePassService) StartSweeper(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		slog.Info("expiry sweeper started", "interval", s.sweepInterval)
		for {
			select {
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx); err != nil {
					slog.Error("sweep failed", "error", err)
				}
			case <-ctx.Done():
				return
			case <-s.stopChan:
				slog.Info("expiry sweeper stopping")
				return
			}
		}
	}()
}

func (s *LatePassService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

func terminalStateError(st models.TicketStatus) error {
	switch st {
	case models.TicketStatusUsed:
		return status.ErrAlreadyUsed
	case models.TicketStatusCanceled:
		return status.ErrAlreadyCanceled
	case models.TicketStatusExpired:
		return status.ErrAlreadyExpired
	default:
		return fmt.Errorf("ticket: unexpected status %q", st)
	}
}

func rejectionReason(err error) string {
	var activeErr *status.ActiveTicketError
	switch {
	case errors.Is(err, status.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, status.ErrMalformedPayload):
		return "malformed_payload"
	case errors.Is(err, status.ErrTicketNotFound):
		return "not_found"
	case errors.Is(err, status.ErrAlreadyUsed):
		return "already_used"
	case errors.Is(err, status.ErrAlreadyCanceled):
		return "already_canceled"
	case errors.Is(err, status.ErrAlreadyExpired):
		return "already_expired"
	case errors.As(err, &activeErr):
		return "active_ticket_conflict"
	default:
		return "internal"
	}
}
