package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/leaddesk/internal/api"
	"github.com/lalith-99/leaddesk/internal/authz"
	"github.com/lalith-99/leaddesk/internal/config"
	"github.com/lalith-99/leaddesk/internal/db"
	"github.com/lalith-99/leaddesk/internal/dedup"
	"github.com/lalith-99/leaddesk/internal/home"
	"github.com/lalith-99/leaddesk/internal/interaction"
	"github.com/lalith-99/leaddesk/internal/notify"
	"github.com/lalith-99/leaddesk/internal/observ"
	"github.com/lalith-99/leaddesk/internal/repository"
	"github.com/lalith-99/leaddesk/internal/repository/postgres"
	"github.com/lalith-99/leaddesk/internal/scheduler"
	"github.com/lalith-99/leaddesk/internal/website"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 2. Postgres: schema first, then the pool
	// ---------------------------------------------------------------
	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	pool := database.Pool()
	var (
		userRepo       repository.UserRepository       = postgres.NewUserStore(pool)
		assignmentRepo repository.AssignmentRepository = postgres.NewAssignmentStore(pool)
		leadRepo       repository.LeadRepository       = postgres.NewLeadStore(pool)
	)

	// ---------------------------------------------------------------
	// 3. Redis dedup. Optional: without it redeliveries are processed
	//    again, which the assignment constraint tolerates.
	// ---------------------------------------------------------------
	checks := map[string]api.Pinger{"postgres": api.PingFunc(database.Health)}
	var deduper api.Deduper
	if cfg.RedisURL != "" {
		store, err := dedup.NewRedisStore(cfg.RedisURL, cfg.DedupTTL)
		if err != nil {
			logger.Warn("redis unavailable, slack redeliveries will not be deduplicated", zap.Error(err))
		} else {
			defer store.Close()
			deduper = store
			checks["redis"] = store
		}
	}

	// ---------------------------------------------------------------
	// 4. Domain services
	// ---------------------------------------------------------------
	guard := authz.NewGuard(userRepo)
	dispatcher := notify.NewDispatcher(slack.New(cfg.SlackBotToken), logger.Named("slack"))
	homeSvc := home.NewService(userRepo, assignmentRepo, guard, dispatcher, logger.Named("home"))
	forwarder := website.NewForwarder(cfg.WebsiteWebhookURL, logger.Named("website"))
	if !forwarder.Enabled() {
		logger.Info("website forwarding disabled")
	}

	router := interaction.NewRouter(interaction.Deps{
		Guard:          guard,
		Users:          userRepo,
		Assignments:    assignmentRepo,
		Notifier:       dispatcher,
		Home:           homeSvc,
		Website:        forwarder,
		WebsiteBaseURL: cfg.WebsiteBaseURL,
		Logger:         logger.Named("interaction"),
	})

	// ---------------------------------------------------------------
	// 5. Background admin audit
	// ---------------------------------------------------------------
	sched, err := scheduler.New(logger)
	if err != nil {
		return err
	}
	if err := sched.ScheduleAdminAudit(cfg.AdminAuditInterval, guard); err != nil {
		return err
	}

	// ---------------------------------------------------------------
	// 6. HTTP
	// ---------------------------------------------------------------
	engine := api.NewRouter(api.Handlers{
		Slack:       api.NewSlackHandler(router, deduper, homeSvc, logger.Named("slack_http")),
		Leads:       api.NewLeadHandler(userRepo, leadRepo, guard, dispatcher, homeSvc, cfg.SlackLeadChannel, logger),
		Assignments: api.NewAssignmentHandler(assignmentRepo, guard, dispatcher, cfg.SlackLeadChannel, logger),
		Health:      api.NewHealthHandler(checks, logger),
	}, api.RouterConfig{
		SlackSigningSecret: cfg.SlackSigningSecret,
		JWTSecret:          cfg.JWTSecret,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting LeadDesk",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("lead_channel", cfg.SlackLeadChannel),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		return sched.Shutdown()
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Effects and website deliveries detached from finished requests.
		router.Wait()
		forwarder.Wait()
		return err
	})

	return g.Wait()
}
