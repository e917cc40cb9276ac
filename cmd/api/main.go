package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nyaysakhi/api/internal/config"
	"nyaysakhi/api/internal/logging"
	"nyaysakhi/api/internal/search"
	"nyaysakhi/api/internal/store"
)

var (
	// Global flags
	logLevel string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "nyaysakhi-api",
	Short: "Nyay Sakhi API server and maintenance commands",
	Long: `Nyay Sakhi helps people understand their legal documents and find a lawyer.

Run without a subcommand to start the HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if strings.TrimSpace(logLevel) != "" {
			cfg.LogLevel = logLevel
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		applied, err := store.ApplyMigrations(cmd.Context(), db, cfg.MigrationsDir)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Int("count", len(applied)), zap.Strings("files", applied))
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Push lawyers and FAQs from Postgres into Meilisearch",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		if strings.TrimSpace(cfg.MeiliURL) == "" {
			return fmt.Errorf("MEILI_URL is not set")
		}
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		searchService := search.NewService(meili, search.NewPgFTS(db), logger)
		defer searchService.Close()

		lawyers, faqs, err := searchService.ReindexAllFromPG(cmd.Context())
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reindexed %d lawyers and %d faqs\n", lawyers, faqs)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo lawyers and FAQs into empty tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		lawyers, faqs, err := store.NewPostgresStore(db).SeedDemo(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d lawyers and %d faqs\n", lawyers, faqs)
		return nil
	},
}

func openDatabase(ctx context.Context) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	return db, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override NYAY_LOG_LEVEL (debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd, migrateCmd, reindexCmd, seedCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
