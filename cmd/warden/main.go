package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"warden/internal/auditlog"
	"warden/internal/cases"
	"warden/internal/commands"
	"warden/internal/config"
	"warden/internal/database/boltstore"
	"warden/internal/database/redisstore"
	"warden/internal/database/sqlstore"
	"warden/internal/discord"
	"warden/internal/metrics"
	"warden/internal/middleware"
	"warden/internal/moderation"
	"warden/internal/modlog"
	"warden/internal/tempban"
	"warden/internal/tracing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.FromArgs(os.Args[1:])
	setupLogging(cfg.Log, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Warden stopped with an error")
	}
	log.Info().Msg("Warden stopped")
}

// setupLogging configures the global logger: JSON when format is "json",
// pretty console output otherwise.
func setupLogging(cfg config.LogConfig, out io.Writer) {
	switch cfg.Level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// sqlDriver maps the configured database name to its database/sql driver.
func sqlDriver(name string) (driver string, err error) {
	switch name {
	case "sqlite":
		return sqlstore.DriverSQLite, nil
	case "postgres":
		return sqlstore.DriverPostgres, nil
	}
	return "", fmt.Errorf("unknown database driver %q", name)
}

func dsnFor(cfg config.DatabaseConfig) string {
	if cfg.Driver == "sqlite" {
		return sqlstore.SQLiteDSN(cfg.DSN)
	}
	return cfg.DSN
}

func run(ctx context.Context, cfg config.Config) error {
	log.Info().Msg("Starting Warden")

	if cfg.Tracing.Enabled {
		tp, err := tracing.Init(ctx, tracing.Options{
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
		log.Info().Str("endpoint", cfg.Tracing.Endpoint).Msg("Tracing enabled")
	}

	// Storage
	driver, err := sqlDriver(cfg.Database.Driver)
	if err != nil {
		return err
	}
	db, err := sqlstore.Open(ctx, driver, dsnFor(cfg.Database))
	if err != nil {
		return err
	}
	defer db.Close()
	caseStore := sqlstore.NewCaseStore(db)
	tempBanStore := sqlstore.NewTempBanStore(db)
	log.Info().Str("driver", cfg.Database.Driver).Msg("Case database opened")

	bolt, err := boltstore.Open(boltstore.Options{Path: cfg.Bolt.Path})
	if err != nil {
		return fmt.Errorf("open settings store: %w", err)
	}
	defer bolt.Close()
	settings := boltstore.NewSettingsCache(bolt.SettingsStore(), boltstore.SettingsCacheTTL)
	stopCacheCleanup := settings.StartCleanupRoutine(10 * time.Minute)
	defer stopCacheCleanup()
	log.Info().Str("path", cfg.Bolt.Path).Msg("Settings database opened")

	g, ctx := errgroup.WithContext(ctx)

	var claims auditlog.Claimer
	if cfg.Redis.Addr != "" {
		client, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()
		claims = redisstore.NewClaimStore(client, cfg.Reconciliation.DedupeTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Audit log dedupe using Redis")
	} else {
		boltClaims := bolt.ClaimStore(cfg.Reconciliation.DedupeTTL)
		g.Go(func() error {
			boltClaims.RunPruner(ctx, cfg.Reconciliation.DedupeTTL)
			return nil
		})
		claims = boltClaims
		log.Info().Msg("Audit log dedupe using the settings database")
	}

	// Discord
	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	self, err := session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("fetch bot user: %w", err)
	}
	botID, err := snowflake.Parse(self.ID)
	if err != nil {
		return fmt.Errorf("parse bot user id: %w", err)
	}
	client := discord.NewClient(session)

	// Moderation core
	dm := moderation.NewDMService(client, client, settings)
	poster := modlog.NewPoster(client, settings, db, caseStore)
	pipeline := moderation.NewPipeline(moderation.PipelineDeps{
		Transactor: db,
		Cases:      caseStore,
		TempBans:   tempBanStore,
		Enforcer:   client,
		DM:         dm,
		Policy:     moderation.NewDMPolicy(settings),
		ModLog:     poster,
	})
	service := moderation.NewService(pipeline, moderation.NewTimeoutDetector(nil), botID)

	processor := auditlog.NewProcessor(auditlog.ProcessorDeps{
		Transactor:    db,
		Cases:         caseStore,
		TempBans:      tempBanStore,
		Settings:      settings,
		Directory:     client,
		Claims:        claims,
		PendingWindow: cfg.Reconciliation.PendingMatchWindow,
	})
	orchestrator := auditlog.NewOrchestrator(
		processor,
		auditlog.NewNativeTimeoutDM(dm, settings),
		auditlog.NewModLogStep(poster),
		db,
		caseStore,
	)

	handler := commands.NewHandler(commands.Deps{
		Moderator: service,
		Resolver:  client,
		Deleter:   cases.NewDeleter(db, caseStore, client, settings, nil),
		Reasons:   cases.NewReasonUpdater(db, caseStore, client, poster),
		Suggester: cases.NewAutocomplete(caseStore),
	})

	appID := cfg.Discord.AppID
	if appID == "" {
		appID = self.ID
	}
	registered, err := session.ApplicationCommandBulkOverwrite(appID, cfg.Discord.DevGuildID, commands.Definitions(), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	log.Info().Int("count", len(registered)).Str("guild_id", cfg.Discord.DevGuildID).Msg("Slash commands registered")

	gateway := discord.NewGateway(session, orchestrator, handler)
	expirer := tempban.NewExpirer(db, tempBanStore, client, cfg.TempBan.CheckInterval)

	metrics.StartCollector(ctx, metrics.StatsSource{
		ActiveTempBans:   expirer.ActiveCount,
		GatewayConnected: gateway.Connected,
	}, cfg.Metrics.CollectInterval)

	g.Go(func() error { return gateway.Run(ctx) })
	g.Go(func() error { return expirer.Start(ctx) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return serveMetrics(ctx, cfg.Metrics.Addr) })
	}

	log.Info().
		Str("bot_id", botID.String()).
		Str("metrics", cfg.Metrics.Addr).
		Dur("pending_window", cfg.Reconciliation.PendingMatchWindow).
		Msg("Warden running")

	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", otelhttp.NewHandler(promhttp.Handler(), "metrics"))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.LoggingMiddleware(log.Logger)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("address", addr).Msg("Starting metrics server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
