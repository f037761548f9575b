package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tournament-core/brackets"
	"github.com/Dosada05/tournament-core/config"
	"github.com/Dosada05/tournament-core/db"
	"github.com/Dosada05/tournament-core/events"
	"github.com/Dosada05/tournament-core/handlers"
	"github.com/Dosada05/tournament-core/repositories"
	api "github.com/Dosada05/tournament-core/routes"
	"github.com/Dosada05/tournament-core/services"
	"github.com/Dosada05/tournament-core/storage"
	"github.com/Dosada05/tournament-core/wallet"
	"github.com/jonboulle/clockwork"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx, dbConn); err != nil {
		cancelMigrate()
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	cancelMigrate()

	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize evidence storage", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("evidence storage initialized")

	clock := clockwork.NewRealClock()
	bus := events.NewBus(logger)
	walletClient := wallet.NewHTTPClient(cfg.WalletBaseURL, cfg.WalletAPIKey, cfg.WalletTimeout)

	wsHub := brackets.NewHub()
	go wsHub.Run()

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	disputeRepo := repositories.NewPostgresDisputeRepository(dbConn)
	ratingRepo := repositories.NewPostgresRatingRepository(dbConn)
	prizeRepo := repositories.NewPostgresPrizeRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	conflictRepo := repositories.NewPostgresIntegrityConflictRepository(dbConn)

	tournamentService := services.NewTournamentService(
		dbConn, tournamentRepo, participantRepo, matchRepo, bus, logger)
	bracketService := services.NewBracketService(
		dbConn, tournamentRepo, participantRepo, bracketRepo, matchRepo,
		bus, clock, cfg.CheckInWindow, logger)
	matchService := services.NewMatchService(
		dbConn, tournamentRepo, matchRepo, disputeRepo,
		bus, clock, cfg.ConfirmWindow, logger)
	progressionService := services.NewProgressionService(
		dbConn, tournamentRepo, participantRepo, matchRepo, standingRepo, conflictRepo,
		bus, clock, cfg.CheckInWindow, logger)
	ratingService := services.NewRatingService(
		dbConn, tournamentRepo, participantRepo, matchRepo, ratingRepo, logger)
	settlementService := services.NewSettlementService(
		dbConn, tournamentRepo, participantRepo, matchRepo, standingRepo, prizeRepo,
		walletClient, bus, logger)
	logger.Info("services initialized")

	// State-deriving consumers run in subscription order; the hub fans
	// out to websocket rooms last so clients see settled state.
	bus.Subscribe(events.MatchCompletedSubject, progressionService.HandleMatchCompleted)
	bus.Subscribe(events.MatchCompletedSubject, ratingService.HandleMatchCompleted)
	bus.Subscribe(events.TournamentCompletedSubject, settlementService.HandleTournamentCompleted)
	bus.Subscribe(events.TournamentCancelledSubject, settlementService.HandleTournamentCancelled)
	for _, subject := range []string{
		events.MatchScheduledSubject,
		events.MatchCompletedSubject,
		events.TournamentCompletedSubject,
		events.TournamentCancelledSubject,
		events.DisputeOpenedSubject,
		events.DisputeResolvedSubject,
		events.PrizeDistributedSubject,
	} {
		bus.Subscribe(subject, wsHub.HandleEvent)
	}

	scheduler, err := services.NewScheduler(
		matchService, settlementService, clock,
		cfg.SweepInterval, cfg.SettlementLoop, logger)
	if err != nil {
		logger.Error("failed to initialize scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("failed to stop scheduler", slog.Any("error", err))
		}
	}()

	router := api.InitRoutes(api.Handlers{
		Tournament: handlers.NewTournamentHandler(tournamentService, progressionService, settlementService),
		Bracket:    handlers.NewBracketHandler(bracketService),
		Match:      handlers.NewMatchHandler(matchService, uploader),
		WebSocket:  handlers.NewWebSocketHandler(wsHub),
	}, cfg.JWTSecretKey)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			shutdown <- syscall.SIGTERM
		}
	}()

	sig := <-shutdown
	logger.Info("shutting down", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
	logger.Info("server stopped")
}
