package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/civitas-platform/civitas/cmd/civitas/cli"
	"github.com/civitas-platform/civitas/internal/amendments"
	"github.com/civitas-platform/civitas/internal/app"
	"github.com/civitas-platform/civitas/internal/audit"
	"github.com/civitas-platform/civitas/internal/auth"
	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/blogs"
	"github.com/civitas-platform/civitas/internal/events"
	"github.com/civitas-platform/civitas/internal/groups"
	"github.com/civitas-platform/civitas/internal/messages"
	"github.com/civitas-platform/civitas/internal/notifications"
	"github.com/civitas-platform/civitas/internal/observability"
	"github.com/civitas-platform/civitas/internal/platform/cache"
	"github.com/civitas-platform/civitas/internal/platform/db"
	"github.com/civitas-platform/civitas/internal/roles"
	"github.com/civitas-platform/civitas/internal/shared"
	"github.com/civitas-platform/civitas/internal/todos"
	"github.com/civitas-platform/civitas/internal/users"
	"github.com/civitas-platform/civitas/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(os.Args[2:]); err != nil {
			slog.Default().Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "civitas_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	grants := authz.NewRepository(dbpool)
	resolver := authz.NewResolver(authz.Policy{DefaultAllow: cfg.DefaultAllow})
	metrics := observability.NewMetrics()
	guard := shared.NewGuard(resolver, metrics)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	notificationsRepo := notifications.NewRepository(dbpool)
	notificationsService := notifications.NewService(notificationsRepo, jobsClient, logger)
	notificationsHandler := notifications.NewHandler(logger, notificationsService)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, guard)

	rolesRepo := roles.NewRepository(dbpool)
	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService, guard, grants)

	groupsRepo := groups.NewRepository(dbpool)
	groupsService := groups.NewService(groupsRepo, auditLogger, approvalRecorder, logger)
	groupsHandler := groups.NewHandler(logger, groupsService, guard)

	eventsRepo := events.NewRepository(dbpool)
	eventsService := events.NewService(eventsRepo, auditLogger, idempotencyStore, redisClient, logger)
	eventsHandler := events.NewHandler(logger, eventsService, guard)

	amendmentsRepo := amendments.NewRepository(dbpool)
	amendmentsService := amendments.NewService(amendmentsRepo, auditLogger, logger)
	amendmentsHandler := amendments.NewHandler(logger, amendmentsService, guard, grants)

	blogsRepo := blogs.NewRepository(dbpool)
	blogsService := blogs.NewService(blogsRepo, auditLogger, logger)
	blogsHandler := blogs.NewHandler(logger, blogsService, guard, grants)

	todosRepo := todos.NewRepository(dbpool)
	todosService := todos.NewService(todosRepo, auditLogger, notificationsService, logger)
	todosHandler := todos.NewHandler(logger, todosService, guard)

	messagesRepo := messages.NewRepository(dbpool)
	messagesService := messages.NewService(messagesRepo, notificationsService, logger)
	messagesHandler := messages.NewHandler(logger, messagesService)

	auditService := audit.NewService(audit.NewRepository(dbpool))
	auditHandler := audit.NewHandler(logger, auditService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		Grants:               grants,
		AuthHandler:          authHandler,
		UsersHandler:         usersHandler,
		RolesHandler:         rolesHandler,
		GroupsHandler:        groupsHandler,
		EventsHandler:        eventsHandler,
		AmendmentsHandler:    amendmentsHandler,
		BlogsHandler:         blogsHandler,
		TodosHandler:         todosHandler,
		MessagesHandler:      messagesHandler,
		NotificationsHandler: notificationsHandler,
		AuditHandler:         auditHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles "civitas jobs trigger <name>" and "civitas jobs stats".
func runJobsCommand(args []string) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	ctx := context.Background()
	if len(args) == 0 {
		return fmt.Errorf("usage: civitas jobs [trigger <name>|stats]")
	}
	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: civitas jobs trigger <name>")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", args[1], info.ID, info.Queue)
		return nil
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("jobs: unknown subcommand %s", args[0])
	}
}
