package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"

	"latepass-system/internal/services"
)

type AdminHandler struct {
	app     *pocketbase.PocketBase
	service *services.LatePassService
	stats   *services.StatsService
	redis   *redis.Client
}

func NewAdminHandler(app *pocketbase.PocketBase, service *services.LatePassService, stats *services.StatsService, redisClient *redis.Client) *AdminHandler {
	return &AdminHandler{
		app:     app,
		service: service,
		stats:   stats,
		redis:   redisClient,
	}
}

// GetDashboard - Ticket counts per status plus lateness aggregates
func (h *AdminHandler) GetDashboard(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	dashboard, err := h.stats.Dashboard(e.Request.Context())
	if err != nil {
		return apis.NewBadRequestError("Failed to build dashboard", err)
	}

	return e.JSON(http.StatusOK, dashboard)
}

// SweepExpired - Manually trigger an expiry sweep
func (h *AdminHandler) SweepExpired(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	swept, err := h.service.SweepExpired(e.Request.Context())
	if err != nil {
		return apis.NewBadRequestError("Sweep failed", err)
	}

	return e.JSON(http.StatusOK, map[string]any{"swept": swept})
}
