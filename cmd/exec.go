package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go/v7"

	"latepass-system/config"
	"latepass-system/internal/handlers"
	"latepass-system/internal/services"
	_ "latepass-system/migrations"
	"latepass-system/models"
	"latepass-system/monitoring"
	"latepass-system/security"
	"latepass-system/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize the attendance sink. Without PubNub keys (local dev) the
	// events are dropped.
	var sink services.AttendanceSink = services.NopAttendanceSink{}
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId("latepass-server"))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		sink = services.NewPubNubAttendanceSink(pubnub.NewPubNub(pnConfig))
	}

	// Initialize services
	ticketStore := services.NewDBTicketStore(app)
	timetableStore := services.NewDBTimetableStore(app)
	allocator := services.NewTicketNumberAllocator(redisClient)
	codec := services.NewPayloadCodec(cfg.PayloadSecretKey)
	configProvider := services.StaticConfigProvider{
		Config: models.LatePassConfig{
			MaxGenerationDelayMinutes:  cfg.MaxGenerationDelayMinutes,
			MaxAcceptanceDelayMinutes:  cfg.MaxAcceptanceDelayMinutes,
			AllowMultipleActiveTickets: cfg.AllowMultipleActiveTickets,
			AutoExpireTickets:          cfg.AutoExpireTickets,
		},
	}
	latePassService := services.NewLatePassService(
		ticketStore, timetableStore, allocator, codec, configProvider, sink, cfg.SweepInterval)
	statsService := services.NewStatsService(ticketStore, timetableStore)

	// Initialize handlers
	ticketHandler := handlers.NewTicketHandler(app, latePassService)
	adminHandler := handlers.NewAdminHandler(app, latePassService, statsService, redisClient)
	scanGuard := security.NewScanGuard(redisClient, cfg.ScannerKeyHash, cfg.ScanRateLimit, cfg.ScanRateWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	go handleShutdown(cancel, latePassService)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Ticket endpoints
		e.Router.POST("/api/v1/latepass/tickets", ticketHandler.IssueTicket)
		e.Router.POST("/api/v1/latepass/tickets/redeem", ticketHandler.RedeemTicket).
			BindFunc(scanGuard.RequireScannerKey).
			BindFunc(scanGuard.RateLimitScans)
		e.Router.POST("/api/v1/latepass/tickets/{ticketId}/cancel", ticketHandler.CancelTicket)
		e.Router.GET("/api/v1/latepass/tickets/active", ticketHandler.GetActiveTicket)
		e.Router.GET("/api/v1/latepass/tickets/{ticketId}", ticketHandler.GetTicket)

		// Admin endpoints
		e.Router.GET("/api/v1/admin/latepass-dashboard", adminHandler.GetDashboard)
		e.Router.POST("/api/v1/admin/sweep-expired", adminHandler.SweepExpired)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		// Background expiry sweep keeps reporting fresh; redemption
		// re-checks expiry on its own either way.
		if cfg.AutoExpireTickets {
			latePassService.StartSweeper(ctx)
		}

		if cfg.EnableMetrics {
			monitoring.NewMonitor(ticketStore)
			monitoring.StartMetricsServer(cfg.MetricsPort, redisClient)
		}

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		return err
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc, latePassService *services.LatePassService) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	latePassService.Stop()
	cancel()
}
