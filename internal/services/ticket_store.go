package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"latepass-system/internal/status"
	"latepass-system/models"
)

// TicketStore is the persistence boundary of the ticket lifecycle. Every
// state transition is a compare-and-swap: the implementation must only apply
// it when the ticket is still in the expected state, and report whether it
// won the race. Tickets are never deleted.
type TicketStore interface {
	// IssueTicket persists a new ISSUED ticket. Unless allowMultiple is set,
	// the active-ticket check and the insert happen in one transactional
	// unit; a conflict returns *status.ActiveTicketError.
	IssueTicket(ctx context.Context, ticket models.Ticket, allowMultiple bool) error

	GetTicket(ctx context.Context, id string) (models.Ticket, error)

	// FindActiveTicket returns the student's ISSUED, unexpired ticket, or
	// status.ErrTicketNotFound when there is none.
	FindActiveTicket(ctx context.Context, studentID string, now time.Time) (models.Ticket, error)

	// MarkUsed flips ISSUED -> USED if the ticket is still issued and not
	// past expiry. Returns false when another transition won.
	MarkUsed(ctx context.Context, id string, now time.Time) (bool, error)

	// MarkExpired flips ISSUED -> EXPIRED if the ticket is issued and past
	// expiry.
	MarkExpired(ctx context.Context, id string, now time.Time) (bool, error)

	// MarkCanceled flips ISSUED -> CANCELED if the ticket is still issued
	// and not past expiry.
	MarkCanceled(ctx context.Context, id, canceledBy, reason string, now time.Time) (bool, error)

	// SweepExpired expires every ISSUED ticket past its expiry and reports
	// how many rows were flipped.
	SweepExpired(ctx context.Context, now time.Time) (int, error)

	CountByStatus(ctx context.Context) (map[models.TicketStatus]int, error)

	// ListUsed returns recently used tickets, most recent first.
	ListUsed(ctx context.Context, limit int) ([]models.Ticket, error)
}

// TimetableStore resolves the session a ticket is issued against. Timetable
// CRUD itself belongs to the scheduling side of the system.
type TimetableStore interface {
	TimetableByID(ctx context.Context, id string) (models.Timetable, error)
}

// timeLayout matches the PocketBase datetime column format so rows stay
// readable in the admin UI and lexicographically comparable in SQL.
const timeLayout = "2006-01-02 15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// DBTicketStore stores tickets in the app's SQLite database via dbx.
type DBTicketStore struct {
	app core.App
}

func NewDBTicketStore(app core.App) *DBTicketStore {
	return &DBTicketStore{app: app}
}

func (s *DBTicketStore) IssueTicket(_ context.Context, ticket models.Ticket, allowMultiple bool) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		if !allowMultiple {
			existing, err := findActiveTicket(txApp.DB(), ticket.StudentID, ticket.IssuedAt)
			if err == nil {
				return &status.ActiveTicketError{
					ExistingTicketID:     existing.ID,
					ExistingTicketNumber: existing.TicketNumber,
				}
			}
			if !errors.Is(err, status.ErrTicketNotFound) {
				return err
			}
		}

		_, err := txApp.DB().NewQuery(`
			INSERT INTO latepass_tickets
				(id, ticket_number, student_id, timetable_id, org_id, status,
				 issued_at, expires_at, used_at, qr_code_data,
				 issued_by_user_id, canceled_by_user_id, cancellation_reason, canceled_at)
			VALUES
				({:id}, {:number}, {:studentId}, {:timetableId}, {:orgId}, {:status},
				 {:issuedAt}, {:expiresAt}, '', {:qrData},
				 {:issuedBy}, '', '', '')`).
			Bind(dbx.Params{
				"id":          ticket.ID,
				"number":      ticket.TicketNumber,
				"studentId":   ticket.StudentID,
				"timetableId": ticket.TimetableID,
				"orgId":       ticket.OrgID,
				"status":      string(ticket.Status),
				"issuedAt":    formatTime(ticket.IssuedAt),
				"expiresAt":   formatTime(ticket.ExpiresAt),
				"qrData":      ticket.QRCodeData,
				"issuedBy":    ticket.IssuedByUserID,
			}).Execute()
		return err
	})
}

func (s *DBTicketStore) GetTicket(_ context.Context, id string) (models.Ticket, error) {
	row := dbx.NullStringMap{}
	err := s.app.DB().NewQuery(`SELECT * FROM latepass_tickets WHERE id = {:id}`).
		Bind(dbx.Params{"id": id}).
		One(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Ticket{}, status.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticketFromRow(row), nil
}

func (s *DBTicketStore) FindActiveTicket(_ context.Context, studentID string, now time.Time) (models.Ticket, error) {
	return findActiveTicket(s.app.DB(), studentID, now)
}

func findActiveTicket(db dbx.Builder, studentID string, now time.Time) (models.Ticket, error) {
	row := dbx.NullStringMap{}
	err := db.NewQuery(`
		SELECT * FROM latepass_tickets
		WHERE student_id = {:studentId} AND status = {:issued} AND expires_at >= {:now}
		ORDER BY issued_at DESC LIMIT 1`).
		Bind(dbx.Params{
			"studentId": studentID,
			"issued":    string(models.TicketStatusIssued),
			"now":       formatTime(now),
		}).One(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Ticket{}, status.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticketFromRow(row), nil
}

func (s *DBTicketStore) MarkUsed(_ context.Context, id string, now time.Time) (bool, error) {
	res, err := s.app.NonconcurrentDB().NewQuery(`
		UPDATE latepass_tickets
		SET status = {:used}, used_at = {:now}
		WHERE id = {:id} AND status = {:issued} AND expires_at >= {:now}`).
		Bind(dbx.Params{
			"id":     id,
			"used":   string(models.TicketStatusUsed),
			"issued": string(models.TicketStatusIssued),
			"now":    formatTime(now),
		}).Execute()
	if err != nil {
		return false, err
	}
	return oneRowAffected(res)
}

func (s *DBTicketStore) MarkExpired(_ context.Context, id string, now time.Time) (bool, error) {
	res, err := s.app.NonconcurrentDB().NewQuery(`
		UPDATE latepass_tickets
		SET status = {:expired}
		WHERE id = {:id} AND status = {:issued} AND expires_at < {:now}`).
		Bind(dbx.Params{
			"id":      id,
			"expired": string(models.TicketStatusExpired),
			"issued":  string(models.TicketStatusIssued),
			"now":     formatTime(now),
		}).Execute()
	if err != nil {
		return false, err
	}
	return oneRowAffected(res)
}

func (s *DBTicketStore) MarkCanceled(_ context.Context, id, canceledBy, reason string, now time.Time) (bool, error) {
	res, err := s.app.NonconcurrentDB().NewQuery(`
		UPDATE latepass_tickets
		SET status = {:canceled}, canceled_at = {:now},
		    canceled_by_user_id = {:by}, cancellation_reason = {:reason}
		WHERE id = {:id} AND status = {:issued} AND expires_at >= {:now}`).
		Bind(dbx.Params{
			"id":       id,
			"canceled": string(models.TicketStatusCanceled),
			"issued":   string(models.TicketStatusIssued),
			"by":       canceledBy,
			"reason":   reason,
			"now":      formatTime(now),
		}).Execute()
	if err != nil {
		return false, err
	}
	return oneRowAffected(res)
}

func (s *DBTicketStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	res, err := s.app.NonconcurrentDB().NewQuery(`
		UPDATE latepass_tickets
		SET status = {:expired}
		WHERE status = {:issued} AND expires_at < {:now}`).
		Bind(dbx.Params{
			"expired": string(models.TicketStatusExpired),
			"issued":  string(models.TicketStatusIssued),
			"now":     formatTime(now),
		}).Execute()
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *DBTicketStore) CountByStatus(_ context.Context) (map[models.TicketStatus]int, error) {
	var rows []dbx.NullStringMap
	err := s.app.DB().NewQuery(`
		SELECT status, COUNT(*) AS cnt FROM latepass_tickets GROUP BY status`).
		All(&rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[models.TicketStatus]int, len(rows))
	for _, row := range rows {
		var n int
		if _, err := fmt.Sscanf(row["cnt"].String, "%d", &n); err != nil {
			continue
		}
		counts[models.TicketStatus(row["status"].String)] = n
	}
	return counts, nil
}

func (s *DBTicketStore) ListUsed(_ context.Context, limit int) ([]models.Ticket, error) {
	var rows []dbx.NullStringMap
	err := s.app.DB().NewQuery(`
		SELECT * FROM latepass_tickets
		WHERE status = {:used}
		ORDER BY used_at DESC LIMIT {:limit}`).
		Bind(dbx.Params{
			"used":  string(models.TicketStatusUsed),
			"limit": limit,
		}).All(&rows)
	if err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, 0, len(rows))
	for _, row := range rows {
		tickets = append(tickets, ticketFromRow(row))
	}
	return tickets, nil
}

func oneRowAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func ticketFromRow(row dbx.NullStringMap) models.Ticket {
	t := models.Ticket{
		ID:                 row["id"].String,
		TicketNumber:       row["ticket_number"].String,
		StudentID:          row["student_id"].String,
		TimetableID:        row["timetable_id"].String,
		OrgID:              row["org_id"].String,
		Status:             models.TicketStatus(row["status"].String),
		IssuedAt:           parseTime(row["issued_at"].String),
		ExpiresAt:          parseTime(row["expires_at"].String),
		QRCodeData:         row["qr_code_data"].String,
		IssuedByUserID:     row["issued_by_user_id"].String,
		CanceledByUserID:   row["canceled_by_user_id"].String,
		CancellationReason: row["cancellation_reason"].String,
	}
	if usedAt := parseTime(row["used_at"].String); !usedAt.IsZero() {
		t.UsedAt = &usedAt
	}
	if canceledAt := parseTime(row["canceled_at"].String); !canceledAt.IsZero() {
		t.CanceledAt = &canceledAt
	}
	return t
}

// DBTimetableStore reads timetables from the scheduling side's table.
type DBTimetableStore struct {
	app core.App
}

func NewDBTimetableStore(app core.App) *DBTimetableStore {
	return &DBTimetableStore{app: app}
}

func (s *DBTimetableStore) TimetableByID(_ context.Context, id string) (models.Timetable, error) {
	row := dbx.NullStringMap{}
	err := s.app.DB().NewQuery(`SELECT id, start_date_time, org_id FROM timetables WHERE id = {:id}`).
		Bind(dbx.Params{"id": id}).
		One(&row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Timetable{}, status.ErrTimetableNotFound
		}
		return models.Timetable{}, err
	}
	return models.Timetable{
		ID:            row["id"].String,
		StartDateTime: parseTime(row["start_date_time"].String),
		OrgID:         row["org_id"].String,
	}, nil
}
