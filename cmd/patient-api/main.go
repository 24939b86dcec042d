package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Dragos0000/patient-appointment-api/internal/config"
	"github.com/Dragos0000/patient-appointment-api/internal/domain/appointment"
	"github.com/Dragos0000/patient-appointment-api/internal/domain/patient"
	"github.com/Dragos0000/patient-appointment-api/internal/platform/db"
	"github.com/Dragos0000/patient-appointment-api/internal/platform/middleware"
	"github.com/Dragos0000/patient-appointment-api/internal/platform/sweep"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "patient-api",
		Short: "Patient and appointment record service",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			inMemory, _ := cmd.Flags().GetBool("in-memory")
			return runServer(inMemory)
		},
	}
	cmd.Flags().Bool("in-memory", false, "Use in-memory storage instead of PostgreSQL")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			statusOnly, _ := cmd.Flags().GetBool("status")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)

			if statusOnly {
				statuses, err := migrator.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			}

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.Flags().Bool("status", false, "Show migration status without applying")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue appointments as missed and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			patientSvc := patient.NewService(patient.NewRepoPG(pool))
			apptSvc := appointment.NewService(appointment.NewRepoPG(pool), patientSvc)

			res, err := apptSvc.RunOverdueSweep(ctx, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("sweep failed: %w", err)
			}

			fmt.Printf("Marked %d overdue appointment(s) as missed\n", len(res.Marked))
			for _, a := range res.Marked {
				fmt.Printf("  %s  patient %s  scheduled %s\n", a.ID, a.NHSNumber, a.ScheduledTime.Format(time.RFC3339))
			}
			if res.Skipped > 0 {
				fmt.Printf("Skipped %d concurrently modified appointment(s)\n", res.Skipped)
			}
			for _, itemErr := range res.Errors {
				fmt.Fprintf(os.Stderr, "error: %v\n", itemErr)
			}
			if len(res.Errors) > 0 {
				return fmt.Errorf("%d appointment(s) could not be updated", len(res.Errors))
			}
			return nil
		},
	}
}

func runServer(inMemory bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	ctx := context.Background()

	var (
		patientRepo patient.Repository
		apptRepo    appointment.Repository
		pool        *pgxpool.Pool
	)

	if inMemory {
		logger.Warn().Msg("running with in-memory storage, data is not persisted")
		patientRepo = patient.NewRepoMemory()
		apptRepo = appointment.NewRepoMemory()
	} else {
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		logger.Info().Msg("connected to database")

		migrator := db.NewMigrator(pool, cfg.MigrationsDir)
		count, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		if count > 0 {
			logger.Info().Int("applied", count).Msg("applied pending migrations")
		}

		patientRepo = patient.NewRepoPG(pool)
		apptRepo = appointment.NewRepoPG(pool)
	}

	patientSvc := patient.NewService(patientRepo)
	apptSvc := appointment.NewService(apptRepo, patientSvc)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	// Routes
	apiV1 := e.Group("/api/v1")
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)

	e.GET("/health", healthHandler(pool))
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// Overdue sweeper
	var sweeper *sweep.Sweeper
	if cfg.SweepEnabled {
		sweeper = sweep.New(apptSvc, logger)
		sweeper.Interval = cfg.SweepInterval
		sweeper.Start(ctx)
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	if sweeper != nil {
		sweeper.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger().Level(level)
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
}

func healthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		if pool != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	}
}
