package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/facilityops/facility-service/internal/api/http"
	"github.com/facilityops/facility-service/internal/api/http/handlers"
	"github.com/facilityops/facility-service/internal/auth"
	"github.com/facilityops/facility-service/internal/cache"
	"github.com/facilityops/facility-service/internal/config"
	"github.com/facilityops/facility-service/internal/dashboard"
	"github.com/facilityops/facility-service/internal/dispatch"
	"github.com/facilityops/facility-service/internal/domain"
	"github.com/facilityops/facility-service/internal/events"
	"github.com/facilityops/facility-service/internal/observability"
	"github.com/facilityops/facility-service/internal/persistence"
	"github.com/facilityops/facility-service/internal/realtime"
	"github.com/facilityops/facility-service/internal/service"
	"github.com/facilityops/facility-service/internal/sla"
	"github.com/facilityops/facility-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var allEventTypes = []events.EventType{
	events.EventTicketCreated,
	events.EventTicketAssigned,
	events.EventTicketCompleted,
	events.EventTicketStatusChanged,
	events.EventTicketUpdated,
	events.EventTicketDeleted,
	events.EventSLABreached,
	events.EventShiftCheckedIn,
	events.EventShiftCheckedOut,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if _, err := persistence.RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	policy, err := sla.LoadPolicy(cfg.SLA.PolicyFile)
	if err != nil {
		logger.Fatal("failed to load sla policy", zap.Error(err))
	}

	var seed []domain.StaffMember
	if cfg.Store.StaffSeedFile != "" && !pg.Enabled() {
		seed, err = config.LoadStaffFile(cfg.Store.StaffSeedFile, time.Now().UTC())
		if err != nil {
			logger.Fatal("failed to load staff seed", zap.Error(err))
		}
		logger.Info("staff directory seeded", zap.Int("members", len(seed)))
	}
	stores := persistence.OpenStores(pg, seed)

	dispatcher := events.NewInMemoryDispatcher(logger.Named("events"))
	metrics := observability.NewMetrics()
	metrics.Subscribe(dispatcher, allEventTypes...)

	ticketCache, err := cache.New[[]domain.Ticket](cache.Options{
		TTL:        cfg.Cache.TTL(),
		MaxEntries: cfg.Cache.MaxEntries,
		Logger:     logger.Named("cache"),
	})
	if err != nil {
		logger.Fatal("failed to build cache", zap.Error(err))
	}
	defer ticketCache.Close()

	hub := realtime.NewHub()
	var publisher realtime.Publisher = hub
	var invalidator service.CacheInvalidator = ticketCache
	if redis != nil {
		bridge := realtime.NewRedisBridge(redis.Client, cfg.Redis.RealtimeChannel, hub, logger.Named("realtime"))
		bridge.HandleInvalidations(ticketCache)
		publisher = bridge
		invalidator = realtime.NewBroadcastInvalidator(ticketCache, bridge, logger.Named("cache"))
		go func() {
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("realtime bridge stopped", zap.Error(err))
			}
		}()
	}

	storeTimeout := cfg.Store.Timeout()
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:   stores.Tickets,
		StaffRepo:    stores.Staff,
		ShiftRepo:    stores.Shifts,
		HistoryRepo:  stores.History,
		Dispatcher:   dispatcher,
		Cache:        invalidator,
		Selector:     dispatch.Selector{Policy: policy, RequireCheckIn: cfg.Dispatch.RequireCheckIn},
		StoreTimeout: storeTimeout,
		Logger:       logger.Named("assignment"),
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   stores.Tickets,
		HistoryRepo:  stores.History,
		Dispatcher:   dispatcher,
		Cache:        invalidator,
		Assignments:  assignmentService,
		Policy:       policy,
		AutoAssign:   cfg.Dispatch.AutoAssign,
		StoreTimeout: storeTimeout,
		Logger:       logger.Named("tickets"),
	})
	shiftService := service.NewShiftService(service.ShiftDependencies{
		ShiftRepo:    stores.Shifts,
		Dispatcher:   dispatcher,
		StoreTimeout: storeTimeout,
		Logger:       logger.Named("shifts"),
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: stores.Notifications,
		StaffRepo:        stores.Staff,
		Publisher:        publisher,
		Debounce:         cfg.Notification.Debounce(),
		StoreTimeout:     storeTimeout,
		Logger:           logger.Named("notifications"),
	})
	exportService := service.NewExportService(stores.History, storeTimeout)
	boards := dashboard.NewService(dashboard.Dependencies{
		TicketRepo:  stores.Tickets,
		Cache:       ticketCache,
		Policy:      policy,
		LoadTimeout: cfg.Dashboard.LoadTimeout(),
		Logger:      logger.Named("dashboard"),
	})

	worker.StartNotificationWorker(dispatcher, notificationService, assignmentService)

	monitor := worker.NewSLAMonitor(stores.Tickets, policy, dispatcher, cfg.SLA.ScanInterval(), logger, nil)
	go monitor.Run(ctx)
	closer := worker.NewAutoCloser(stores.Tickets, ticketService, cfg.SLA.AutoCloseGrace(), cfg.SLA.AutoCloseInterval(), logger, nil)
	go closer.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, stores.Staff)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		Shifts:         handlers.NewShiftsHandler(shiftService),
		Notifications:  handlers.NewNotificationsHandler(notificationService, hub, logger.Named("sse")),
		Dashboard:      handlers.NewDashboardHandler(boards),
		Exports:        handlers.NewExportsHandler(exportService),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.Bool("durable_store", stores.Durable),
			zap.Bool("auto_assign", cfg.Dispatch.AutoAssign))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
