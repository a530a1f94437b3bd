package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"urbanflow/internal/backend"
	"urbanflow/internal/chat"
	"urbanflow/internal/config"
	"urbanflow/internal/logging"
	"urbanflow/internal/perception"
	"urbanflow/internal/pipeline"
	"urbanflow/internal/sentinel"
	"urbanflow/internal/server"
	"urbanflow/internal/store"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "urbanflow",
	Short: "urbanflow - vision triage service for civic issue reports",
	Long: `urbanflow accepts citizen-submitted issue reports (photo plus location),
runs four specialist vision evaluators concurrently, arbitrates their
verdicts into one category and severity, resolves geospatial duplicates
and persists the result to the record store.

It also scores chat messages for safety, analyzes emergency throttle
presses and watches live audio transcripts for distress keywords.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP triage service",
	RunE:  runServe,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent triage runs from the local audit store",
	RunE:  listRuns,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the --config path",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("%s already exists, refusing to overwrite", configPath)
		}
		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", configPath)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.DefaultConfig()
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "urbanflow.yaml", "config file path")
	runsCmd.Flags().Int("limit", 20, "maximum runs to list")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Logging.DataDir, cfg.Logging.DebugMode, cfg.Logging.Level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()
	logging.Boot("starting %s %s", cfg.Name, cfg.Version)

	llm := perception.NewGeminiClientWithConfig(perception.GeminiConfig{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Timeout:         cfg.LLM.GetTimeout(),
		MaxRetries:      cfg.LLM.MaxRetries,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
	})

	records := backend.New(cfg.Backend.BaseURL, cfg.GetBackendTimeout())

	audit, err := store.New(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer audit.Close()

	triage := pipeline.New(llm, records, cfg, audit)
	scorer := chat.NewScorer(llm, records, cfg.Pipeline.GetEvaluatorTimeout())
	throttler := chat.NewThrottler(llm, records, cfg.Pipeline.GetEvaluatorTimeout())

	var transcriber sentinel.Transcriber
	if cfg.Sentinel.Enabled && cfg.Sentinel.TranscriberURL != "" {
		transcriber = sentinel.NewHTTPTranscriber(cfg.Sentinel.TranscriberURL, cfg.GetTranscriberTimeout())
	}

	var auth server.Authenticator
	switch {
	case cfg.Auth.UserinfoURL != "":
		auth = server.NewUserInfoAuthenticator(cfg.Auth.UserinfoURL)
	case os.Getenv("URBANFLOW_DEV_USER") != "":
		logger.Warn("using static dev identity, do not run this in production")
		auth = server.StaticAuthenticator{Identity: server.Identity{
			UserID: os.Getenv("URBANFLOW_DEV_USER"),
			Email:  os.Getenv("URBANFLOW_DEV_EMAIL"),
		}}
	default:
		logger.Warn("auth userinfo URL not configured, rejecting all report submissions")
		auth = rejectAllAuth{}
	}

	srv := server.New(cfg, auth, triage, scorer, throttler, records, transcriber, records)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logging.Boot("stopped")
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")

	audit, err := store.New(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer audit.Close()

	runs, err := audit.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %-15s %-8s %-6s %-15s %6dms  %s\n",
			r.CreatedAt.Format(time.RFC3339),
			r.Category, r.Severity, r.Action, r.Status, r.ElapsedMS, r.Title)
	}
	return nil
}

// rejectAllAuth denies every request. Used when no identity provider is
// configured so reports cannot be forged with arbitrary user IDs.
type rejectAllAuth struct{}

func (rejectAllAuth) Authenticate(r *http.Request) (server.Identity, error) {
	return server.Identity{}, server.ErrUnauthorized
}
