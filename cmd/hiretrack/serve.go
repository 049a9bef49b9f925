package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/hiretrack/internal/config"
	"github.com/jonathan/hiretrack/internal/dashboard"
	"github.com/jonathan/hiretrack/internal/evaluation"
	"github.com/jonathan/hiretrack/internal/intake"
	"github.com/jonathan/hiretrack/internal/llm"
	"github.com/jonathan/hiretrack/internal/metrics"
	"github.com/jonathan/hiretrack/internal/pipeline"
	"github.com/jonathan/hiretrack/internal/resume"
	"github.com/jonathan/hiretrack/internal/server"
	"github.com/jonathan/hiretrack/internal/server/ratelimit"
	"github.com/jonathan/hiretrack/internal/storage"
	"github.com/jonathan/hiretrack/internal/tasks"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the public job board, application intake and the admin ATS API.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", true, "Apply database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, database, err := connect(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveMigrate {
		if err := database.RunMigrations(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	jwtConfig, err := config.NewJWTConfig(cfg)
	if err != nil {
		return err
	}
	passwords, err := config.NewPasswordConfig(cfg)
	if err != nil {
		return err
	}
	admin, err := config.NewAdminCredentials(cfg, passwords)
	if err != nil {
		return err
	}

	resumes, err := storage.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open resume storage: %w", err)
	}
	resume.SetPDFLicense(cfg.UnidocLicenseKey)

	client, err := newLLMClient(ctx, cfg)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}
	oracle := evaluation.New(client, cfg.ResumeCharLimit)

	queue, err := newQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer queue.Close()
	pool := tasks.NewPool(queue, cfg.TaskWorkers)
	uploads := tasks.NewGroup()

	manager := pipeline.NewManager(database, cfg.Thresholds())
	svc := intake.New(intake.Options{
		Store:    database,
		Storage:  resumes,
		Fetcher:  storage.NewFetcher(resumes, cfg.ResumeFetchTimeout),
		Oracle:   oracle,
		Pipeline: manager,
		Queue:    pool,
		Group:    uploads,
		Mode:     cfg.IntakeMode,

		BatchWorkers: cfg.TaskWorkers,
	})
	pool.Handle(tasks.KindEvaluate, svc.HandleEvaluateTask)
	pool.Handle(tasks.KindScoreAll, svc.HandleScoreAllTask)
	pool.Start(ctx)

	metrics.Register()
	jwtService := server.NewJWTService(jwtConfig)
	srv := server.New(server.Config{
		Port:            cfg.Port,
		AllowedOrigins:  cfg.AllowedOrigins(),
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, server.Deps{
		Store:       database,
		Intake:      svc,
		Pipeline:    manager,
		Dashboard:   dashboard.New(database),
		JWT:         jwtService,
		Auth:        server.NewAuthHandler(admin, passwords, jwtService),
		RateLimiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
		Background:  []server.Shutdowner{uploads, pool},
	})

	log.Printf("Starting hiretrack on port %d (intake mode %s, oracle configured: %t)", cfg.Port, cfg.IntakeMode, oracle.Configured())
	return srv.Run(ctx)
}

// newLLMClient builds the oracle client. A missing key leaves the oracle
// unconfigured: intake still works and scoring endpoints report it.
func newLLMClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	client, err := llm.NewClient(ctx, &llm.Config{
		Provider: llm.Provider(cfg.LLMProvider),
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		Timeout:  cfg.LLMTimeout,
	}, cfg.LLMKey())
	if errors.Is(err, llm.ErrMissingAPIKey) {
		log.Printf("[ats] no API key for provider %s, resume scoring disabled", cfg.LLMProvider)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return client, nil
}

// newQueue returns the Redis queue when REDIS_ADDR is set and an in-process queue otherwise.
func newQueue(ctx context.Context, cfg *config.Config) (tasks.Queue, error) {
	if cfg.RedisAddr == "" {
		return tasks.NewMemoryQueue(0), nil
	}
	return tasks.NewRedisQueue(ctx, tasks.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Key:      cfg.RedisQueueKey,
	})
}
