package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/airport-checkin/internal/clock"
	"github.com/iliyamo/airport-checkin/internal/config"
	"github.com/iliyamo/airport-checkin/internal/database"
	"github.com/iliyamo/airport-checkin/internal/handler"
	"github.com/iliyamo/airport-checkin/internal/logger"
	"github.com/iliyamo/airport-checkin/internal/middleware"
	"github.com/iliyamo/airport-checkin/internal/queue"
	"github.com/iliyamo/airport-checkin/internal/repository"
	"github.com/iliyamo/airport-checkin/internal/router"
	"github.com/iliyamo/airport-checkin/internal/seating"
	"github.com/iliyamo/airport-checkin/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load() // Load environment config
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := database.Migrate(migrateCtx, db); err != nil {
		cancel()
		log.WithError(err).Fatal("apply migrations")
	}
	cancel()

	// Redis is optional; nil disables caching, rate limiting and the
	// distributed seat lock.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable; cache, rate limiting and distributed locks disabled")
	} else {
		defer rdb.Close()
	}

	flights := repository.NewFlightRepo(db)
	bookings := repository.NewBookingRepo(db)
	admins := repository.NewAdminUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	// Audit and boarding pass events go through RabbitMQ when configured,
	// otherwise they are handled in-process.
	var pub service.EventPublisher
	if cfg.AMQPURL != "" {
		p := service.NewPublisher(cfg.AMQPURL, log)
		defer p.Close()
		pub = p
	} else {
		log.Warn("RABBITMQ_URL not set; handling events in-process")
		pub = service.InlinePublisher{Handler: &queue.Consumer{
			Sink:     auditRepo,
			Notifier: queue.LogNotifier{Log: log},
			Log:      log,
		}}
	}
	auditor := service.NewAuditor(pub, 1024, log)
	auditDone := make(chan struct{})
	go func() {
		auditor.Run(ctx)
		close(auditDone)
	}()

	clk := clock.NewSystem()
	locker := newLocker(cfg.Seating, rdb, log)
	seats := seating.NewService(flights, bookings, newHoldStore(cfg.Seating, db),
		seating.WithLocker(locker),
		seating.WithClock(clk),
		seating.WithAudit(auditor),
		seating.WithLogger(log),
		seating.WithMaxHoldTTL(cfg.Seating.HoldMaxTTL),
	)
	seats.StartSweeper(ctx, cfg.Seating.SweepEvery)

	checkin := service.NewCheckinService(service.CheckinDeps{
		Flights:  flights,
		Bookings: bookings,
		Seats:    seats,
		Locker:   locker,
		Audit:    auditor,
		Events:   pub,
		Clock:    clk,
		Log:      log,
	})

	bootstrapAdmin(ctx, cfg, admins, log)

	cache := middleware.NewCache(config.LoadCacheConfig(), rdb)
	fh := &handler.FlightHandler{
		Flights:        flights,
		Bookings:       bookings,
		Seats:          seats,
		Cache:          cache,
		Audit:          auditor,
		AuditLog:       auditRepo,
		DefaultColumns: cfg.Seating.Columns,
		Clock:          clk,
		Log:            log,
	}
	sh := &handler.SeatHandler{Seats: seats, DefaultTTL: cfg.Seating.HoldTTL, MaxTTL: cfg.Seating.HoldMaxTTL, Log: log}
	ch := &handler.CheckinHandler{Service: checkin, Bookings: bookings, Log: log}
	ah := &handler.AdminHandler{
		Flights:    flights,
		Bookings:   bookings,
		Seats:      seats,
		Admins:     admins,
		Tokens:     tokens,
		Audit:      auditor,
		BcryptCost: cfg.BcryptCost,
		Clock:      clk,
		Log:        log,
	}
	auth := handler.NewAuthHandler(cfg, admins, tokens, bookings, auditor, log)
	auth.Clock = clk

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e) // Register application routes
	router.RegisterAuth(e, auth, cfg.JWTSecret)
	router.RegisterPublic(e, fh, ch, cache)
	router.RegisterPassenger(e, sh, ch, cfg.JWTSecret)
	router.RegisterAdmin(e, fh, sh, ah, cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- e.Start(addr)
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
		}
		stop()
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("server shutdown")
	}
	<-auditDone
	if n := auditor.Dropped(); n > 0 {
		log.WithField("dropped", n).Warn("audit events dropped during run")
	}
	log.Info("server stopped")
}

// newLocker picks the per-flight lock backend.  The Redis backend falls
// back to the in-process lock when Redis is unavailable.
func newLocker(sc config.SeatingConfig, rdb *redis.Client, log logrus.FieldLogger) seating.Locker {
	if sc.LockBackend == "redis" {
		if rdb != nil {
			return seating.NewRedisLocker(rdb, sc.LockLease, sc.LockWait)
		}
		log.Warn("SEAT_LOCK_BACKEND=redis but redis is unavailable; using local locks")
	}
	return seating.NewLocalLocker()
}

func newHoldStore(sc config.SeatingConfig, db *sql.DB) seating.HoldStore {
	if sc.HoldStore == "memory" {
		return seating.NewMemoryHoldStore()
	}
	return repository.NewSeatHoldRepo(db)
}

// bootstrapAdmin creates the first operator account from ADMIN_USER and
// ADMIN_PASS when no admin exists yet.
func bootstrapAdmin(ctx context.Context, cfg config.Config, admins *repository.AdminUserRepo, log logrus.FieldLogger) {
	if cfg.AdminUser == "" || cfg.AdminPass == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := admins.Count(ctx)
	if err != nil {
		log.WithError(err).Error("count admin users")
		return
	}
	if n > 0 {
		return
	}
	if _, err := admins.Create(ctx, cfg.AdminUser, cfg.AdminPass, cfg.BcryptCost); err != nil {
		log.WithError(err).Error("bootstrap admin")
		return
	}
	log.WithField("username", cfg.AdminUser).Info("bootstrap admin created")
}
