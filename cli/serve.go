package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reservo/config"
	"reservo/cron"
	"reservo/database"
	reservationRepo "reservo/database/repository/reservation"
	"reservo/handlers"
	"reservo/middleware"
	"reservo/routes"
	"reservo/services/auth"
	"reservo/services/notification"
	"reservo/services/realtime"
	"reservo/services/relay"
	"reservo/services/reservation"
	"reservo/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type serveOptions struct {
	withWorker  bool
	concurrency int
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the change listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.withWorker, "with-worker", true, "also drain the webhook relay queue in this process")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 10, "relay worker concurrency")
	return cmd
}

// backend holds the shared clients every command builds on.
type backend struct {
	repo    reservationRepo.ReservationRepository
	markers *relay.RedisMarkers
	relay   *relay.Relay
}

func connect(ctx context.Context) (*backend, error) {
	if err := database.InitDB(ctx); err != nil {
		return nil, err
	}
	utils.InitCache()
	utils.InitAuthCache()

	cfg := config.AppConfig
	markers := relay.NewRedisMarkers(utils.GetCacheClient())
	return &backend{
		repo:    reservationRepo.NewMongoReservationRepo(database.DB()),
		markers: markers,
		relay:   relay.NewRelay(markers, cfg.WebhookURL, cfg.WebhookTimeout, cfg.MarkerTTL),
	}, nil
}

func newNotifier(ctx context.Context) notification.NotificationService {
	logger := utils.GetLogger()
	client, err := utils.FirebaseInit(ctx)
	if err != nil {
		logger.Warn("serve: push notifications disabled", zap.Error(err))
	}
	var sender notification.Sender
	if client != nil {
		sender = client
	}
	return notification.NewNotificationService(sender, config.AppConfig.FCMTopic)
}

func runServe(parent context.Context, opts *serveOptions) error {
	logger := utils.GetLogger()
	cfg := config.AppConfig
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := connect(ctx)
	if err != nil {
		return err
	}
	defer database.Close(context.Background())
	if err := b.repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("serve: index setup failed", zap.Error(err))
	}

	// Services.
	reservationService := reservation.NewService(b.repo, b.markers, cfg.MarkerTTL)
	authManager := auth.NewManager(auth.NewRedisSessionStore(utils.GetAuthCacheClient()), cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPasswordHash, cfg.SessionTTL)
	fastPaths := auth.NewFastPaths(auth.SessionRecheckInterval)
	feed := realtime.NewMongoFeed(b.repo)

	// Server-side change listener feeding the relay queue.
	queue := asynq.NewClient(cron.QueueRedisOpt())
	defer queue.Close()
	dispatcher := relay.NewDispatcher(queue, cfg.RelayMaxRetry)
	dispatcher.OnInsert = newNotifier(ctx).NotifyNewReservation
	dispatcher.Start(ctx, realtime.NewListener(feed, nil))
	defer dispatcher.Stop(context.Background())

	if opts.withWorker {
		worker, err := cron.InitRelayWorker(ctx, b.relay, opts.concurrency)
		if err != nil {
			return err
		}
		defer worker.Shutdown()
	}

	// Handlers.
	reservationHandler := handlers.NewReservationHandler(reservationService)
	authHandler := handlers.NewAuthHandler(authManager, fastPaths)
	webhookHandler := handlers.NewWebhookHandler(b.relay, cfg.WebhookSecret)
	dashboardHandler := handlers.NewDashboardHandler(reservationService, authManager, fastPaths, func() realtime.Subscriber {
		return realtime.NewListener(feed, nil)
	})

	handlerBundle := &handlers.HandlerBundle{
		Sessions:  authManager,
		FastPaths: fastPaths,

		CreateReservationHandler: reservationHandler.CreateReservation,
		WebhookHandler:           webhookHandler.HandleReservationEvent,

		LoginHandler:   authHandler.Login,
		LogoutHandler:  authHandler.Logout,
		SessionHandler: authHandler.Session,

		ListReservationsHandler:  reservationHandler.ListReservations,
		GetReservationHandler:    reservationHandler.GetReservation,
		UpdateReservationHandler: reservationHandler.UpdateReservation,
		DeleteReservationHandler: reservationHandler.DeleteReservation,
		LegacyUpdateHandler:      reservationHandler.LegacyUpdate,

		DashboardStreamHandler:   dashboardHandler.Stream,
		DashboardSnapshotHandler: dashboardHandler.Snapshot,
	}

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger())
	routes.RegisterRoutes(router, handlerBundle)

	utils.StartHealthMonitor(ctx, []*redis.Client{utils.GetCacheClient(), utils.GetAuthCacheClient()}, database.MongoClient)

	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serve: starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}
	logger.Info("serve: server is shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("serve: server stopped gracefully")
	return nil
}
