package handlers

import (
	"errors"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"latepass-system/internal/services"
	"latepass-system/internal/status"
)

type TicketHandler struct {
	app     *pocketbase.PocketBase
	service *services.LatePassService
}

func NewTicketHandler(app *pocketbase.PocketBase, service *services.LatePassService) *TicketHandler {
	return &TicketHandler{
		app:     app,
		service: service,
	}
}

// IssueTicket - Issue a late-pass ticket for a student
func (h *TicketHandler) IssueTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		StudentID   string `json:"student_id"`
		TimetableID string `json:"timetable_id"`
		OrgID       string `json:"org_id"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.StudentID == "" || req.TimetableID == "" {
		return apis.NewBadRequestError("student_id and timetable_id are required", nil)
	}

	ticket, err := h.service.Issue(e.Request.Context(), services.IssueRequest{
		StudentID:      req.StudentID,
		TimetableID:    req.TimetableID,
		OrgID:          req.OrgID,
		IssuedByUserID: e.Auth.Id,
	})
	if err != nil {
		return mapBusinessError(err)
	}

	return e.JSON(http.StatusOK, ticket)
}

// RedeemTicket - Redeem a scanned QR payload
func (h *TicketHandler) RedeemTicket(e *core.RequestEvent) error {
	var req struct {
		QRData string `json:"qr_data"`
	}

	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.QRData == "" {
		return apis.NewBadRequestError("qr_data is required", nil)
	}

	result, err := h.service.Redeem(e.Request.Context(), req.QRData)
	if err != nil {
		return mapBusinessError(err)
	}

	return e.JSON(http.StatusOK, result)
}

// CancelTicket - Cancel an issued ticket
func (h *TicketHandler) CancelTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ticketID := e.Request.PathValue("ticketId")
	if ticketID == "" {
		return apis.NewBadRequestError("Ticket ID required", nil)
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.service.Cancel(e.Request.Context(), ticketID, e.Auth.Id, req.Reason)
	if err != nil {
		return mapBusinessError(err)
	}

	return e.JSON(http.StatusOK, ticket)
}

// GetTicket - Read a single ticket (lazily reports expiry)
func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ticketID := e.Request.PathValue("ticketId")
	if ticketID == "" {
		return apis.NewBadRequestError("Ticket ID required", nil)
	}

	ticket, err := h.service.GetTicket(e.Request.Context(), ticketID)
	if err != nil {
		return mapBusinessError(err)
	}

	return e.JSON(http.StatusOK, ticket)
}

// GetActiveTicket - Get a student's current active ticket
func (h *TicketHandler) GetActiveTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	studentID := e.Request.URL.Query().Get("student_id")
	if studentID == "" {
		return apis.NewBadRequestError("student_id required", nil)
	}

	ticket, err := h.service.GetActiveTicket(e.Request.Context(), studentID)
	if err != nil {
		return mapBusinessError(err)
	}

	return e.JSON(http.StatusOK, ticket)
}

// mapBusinessError turns the lifecycle error taxonomy into distinct HTTP
// responses so the presenter can give accurate feedback.
func mapBusinessError(err error) error {
	var activeErr *status.ActiveTicketError

	switch {
	case errors.Is(err, status.ErrTimetableNotFound),
		errors.Is(err, status.ErrTicketNotFound):
		return apis.NewNotFoundError(err.Error(), err)

	case errors.As(err, &activeErr):
		return apis.NewApiError(http.StatusConflict, activeErr.Error(), map[string]any{
			"existing_ticket_id":     activeErr.ExistingTicketID,
			"existing_ticket_number": activeErr.ExistingTicketNumber,
		})

	case errors.Is(err, status.ErrOutsideGenerationWindow),
		errors.Is(err, status.ErrAlreadyUsed),
		errors.Is(err, status.ErrAlreadyCanceled),
		errors.Is(err, status.ErrAlreadyExpired),
		errors.Is(err, status.ErrInvalidSignature),
		errors.Is(err, status.ErrMalformedPayload),
		errors.Is(err, status.ErrCancellationReasonRequired):
		return apis.NewBadRequestError(err.Error(), err)

	case errors.Is(err, status.ErrTicketNumberExhausted):
		// Operational failure: requires administrator intervention.
		return apis.NewApiError(http.StatusServiceUnavailable, err.Error(), nil)

	default:
		return err
	}
}
