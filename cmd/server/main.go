// Command server runs the RemindMe notification backend: the Twilio webhook
// and admin HTTP surface, the daily reminder pass, and the broadcast/RSVP
// fan-out loops. All state lives in a local SQLite database; all outbound
// traffic goes through the WhatsApp gateway.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-remind-backend/internal/config"
	"github.com/tbourn/go-remind-backend/internal/genai"
	httpapi "github.com/tbourn/go-remind-backend/internal/http"
	"github.com/tbourn/go-remind-backend/internal/messaging"
	"github.com/tbourn/go-remind-backend/internal/observability"
	"github.com/tbourn/go-remind-backend/internal/repo"
	"github.com/tbourn/go-remind-backend/internal/scheduler"
	"github.com/tbourn/go-remind-backend/internal/services"
	"github.com/tbourn/go-remind-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging before anything else so startup failures are structured too.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Persistence
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	// Outbound gateways. The assistant runs with a nil completer when no API
	// key is configured and answers with its static fallback.
	gateway := messaging.NewTwilioGateway(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)
	var completer genai.Completer
	if cfg.Gemini.APIKey != "" {
		gc := genai.NewGeminiClient(cfg.Gemini.APIKey)
		if cfg.Gemini.Model != "" {
			gc.Model = cfg.Gemini.Model
		}
		completer = gc
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, assistant replies disabled")
	}

	// Services
	guard := services.NewGuard()
	notifier := services.NewNotifierService(db, gateway)
	reminderSvc := services.NewReminderService(db, notifier, guard)
	rsvpSvc := services.NewRSVPService(db, gateway)
	assistantSvc := services.NewAssistantService(db, completer)
	assistantSvc.MaxHistoryTurns = cfg.MaxHistoryTurns
	broadcastDispatch := services.NewDispatchService(services.BroadcastSource{DB: db}, gateway)
	inviteDispatch := services.NewDispatchService(services.InviteSource{DB: db}, gateway)

	// Background loops
	hour, minute, _ := config.ParseClock(cfg.DailyCheckAt)
	sched := scheduler.New()
	sched.DailyAt(ctx, "reminder_check", hour, minute, func(ctx context.Context) error {
		_, err := reminderSvc.RunCheck(ctx)
		return err
	})
	sched.Every(ctx, "broadcast_dispatch", cfg.DispatchInterval, broadcastDispatch.RunTick)
	sched.Every(ctx, "rsvp_dispatch", cfg.DispatchInterval, inviteDispatch.RunTick)
	sched.Every(ctx, "session_prune", time.Hour, func(context.Context) error {
		assistantSvc.PruneIdle(cfg.SessionMaxIdle)
		return nil
	})

	// HTTP
	engine := gin.New()
	httpapi.RegisterRoutes(engine, db, httpapi.Services{
		Reminder:  reminderSvc,
		RSVP:      rsvpSvc,
		Assistant: assistantSvc,
		Notifier:  notifier,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server stopped")
}
