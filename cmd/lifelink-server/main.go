package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lifelink/lifelink/internal/config"
	"github.com/lifelink/lifelink/internal/domain/donor"
	"github.com/lifelink/lifelink/internal/domain/match"
	"github.com/lifelink/lifelink/internal/domain/recipient"
	"github.com/lifelink/lifelink/internal/matching"
	"github.com/lifelink/lifelink/internal/platform/auth"
	"github.com/lifelink/lifelink/internal/platform/db"
	"github.com/lifelink/lifelink/internal/platform/middleware"
	"github.com/lifelink/lifelink/internal/platform/telemetry"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lifelink-server",
		Short: "Organ donor and recipient matching registry",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(refreshCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the registry API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage schema migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations not yet recorded in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("%d migration(s) applied\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "directory holding the NNN_*.sql files")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List every migration and when it was applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}
				return printMigrationStatus(os.Stdout, statuses)
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "directory holding the NNN_*.sql files")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:          "down",
		Short:        "Unsupported; write a forward migration instead",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("down migrations are not supported: write a forward migration that reverses the change")
		},
	})

	return cmd
}

// withMigrator loads config, opens a pool, and hands a ready Migrator to fn.
// Shared by the migrate subcommands so each RunE stays small.
func withMigrator(dir string, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, db.NewMigrator(pool, dir))
}

// printMigrationStatus renders one row per migration file. Pending rows show
// "pending" in place of the applied timestamp.
func printMigrationStatus(out io.Writer, statuses []db.MigrationStatus) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
	for _, s := range statuses {
		applied := "pending"
		if s.Applied {
			applied = "applied"
			if s.AppliedAt != nil {
				applied = s.AppliedAt.Format(time.DateTime)
			}
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	return w.Flush()
}

// refreshCmd rebuilds the persisted match set from the current donor and
// recipient pools without starting the API server.
func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the match set from the stored donor and recipient pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StorageDriver != config.DriverPostgres {
				return fmt.Errorf("refresh requires STORAGE_DRIVER=%s; the %s driver holds no data between processes",
					config.DriverPostgres, config.DriverMemory)
			}

			logger := newLogger(cfg)
			ctx := context.Background()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			donors, recipients, matches := buildRepos(cfg, pool)
			engine := matching.NewEngine(donors, recipients, matches, logger)
			rebuilder := transactionalRebuilder{pool: pool, next: engine}
			count, err := rebuilder.RefreshAll(ctx)
			if err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}

			fmt.Printf("Rebuilt match set: %d match(es).\n", count)
			return nil
		},
	}
}

func runServer() error {
	// Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Storage
	ctx := context.Background()
	var pool *pgxpool.Pool
	if cfg.StorageDriver == config.DriverPostgres {
		pool, err = openPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("running with in-memory storage; data is lost on shutdown")
	}
	donors, recipients, matches := buildRepos(cfg, pool)

	// Services and the matching engine
	donorSvc := donor.NewService(donors)
	recipientSvc := recipient.NewService(recipients)
	matchSvc := match.NewService(matches)

	engine := matching.NewEngine(donors, recipients, matches, logger)
	donorSvc.SetMatchNotifier(engine)
	recipientSvc.SetMatchNotifier(engine)
	recipientSvc.SetDonorRanker(engine)
	if pool != nil {
		matchSvc.SetRebuilder(transactionalRebuilder{pool: pool, next: engine})
	} else {
		matchSvc.SetRebuilder(engine)
	}

	// Telemetry
	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "lifelink-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	defer tp.Shutdown(context.Background())
	matchSvc.SetTransplantRecorder(tp)

	// HTTP server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware stack, outermost first
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.MaxBodySize))
	e.Use(tp.TracingMiddleware())
	e.Use(tp.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Authentication
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(authJWTConfig(cfg)))
	}

	// Versioned API
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	apiV1.Use(tp.OperationCounterMiddleware())

	// Domain routes
	donor.NewHandler(donorSvc).RegisterRoutes(apiV1)
	recipient.NewHandler(recipientSvc).RegisterRoutes(apiV1)
	match.NewHandler(matchSvc).RegisterRoutes(apiV1)

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}
	e.GET("/metrics", tp.PrometheusHandler())

	// Health gauges
	gaugeCtx, stopGauges := context.WithCancel(ctx)
	defer stopGauges()
	go pollHealthMetrics(gaugeCtx, tp.HealthMetrics(), pool, matches, tp.MetricsInterval())

	// Serve until interrupted, then drain
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("driver", cfg.StorageDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newLogger builds the process logger from LOG_LEVEL and ENV. Development
// mode gets the human-readable console writer.
func newLogger(cfg *config.Config) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := io.Writer(os.Stdout)
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// buildRepos selects the repository implementations for the configured
// storage driver. pool may be nil for the memory driver.
func buildRepos(cfg *config.Config, pool *pgxpool.Pool) (donor.DonorRepository, recipient.RecipientRepository, match.MatchRepository) {
	if cfg.StorageDriver == config.DriverMemory {
		return donor.NewRepoMem(), recipient.NewRepoMem(), match.NewRepoMem()
	}
	return donor.NewRepoPG(pool), recipient.NewRepoPG(pool), match.NewRepoPG(pool)
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return db.NewPool(ctx, cfg.DatabaseURL, db.PoolLimits{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
}

// transactionalRebuilder runs a full match rebuild inside one database
// transaction so a failed refresh never leaves the match table half-cleared.
type transactionalRebuilder struct {
	pool *pgxpool.Pool
	next match.Rebuilder
}

func (r transactionalRebuilder) RefreshAll(ctx context.Context) (int, error) {
	var total int
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		var err error
		total, err = r.next.RefreshAll(ctx)
		return err
	})
	return total, err
}

// authJWTConfig maps the loaded configuration onto the JWT middleware
// settings. An empty JWT_SECRET leaves HMAC validation disabled so only the
// JWKS path is active.
func authJWTConfig(cfg *config.Config) auth.JWTConfig {
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.JWTSecret != "" {
		jc.SigningKey = []byte(cfg.JWTSecret)
	}
	return jc
}

// pollHealthMetrics keeps the db pool and match count gauges current until
// ctx is cancelled.
func pollHealthMetrics(ctx context.Context, rec *telemetry.HealthMetricsRecorder, pool *pgxpool.Pool, matches match.MatchRepository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateHealthMetrics(ctx, rec, pool, matches)
		}
	}
}

func updateHealthMetrics(ctx context.Context, rec *telemetry.HealthMetricsRecorder, pool *pgxpool.Pool, matches match.MatchRepository) {
	if pool != nil {
		stats := db.GetPoolStats(pool)
		rec.SetDBPoolActive(int64(stats.AcquiredConns))
		rec.SetDBPoolIdle(int64(stats.IdleConns))
	}
	counts, err := matches.CountByStatus(ctx)
	if err != nil {
		return
	}
	var total int64
	for _, n := range counts {
		total += int64(n)
	}
	rec.SetMatchesTotal(total)
}
