// Package cli provides the command-line interface for promosignal.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/promosignal/internal/config"
	"github.com/raphaelgruber/promosignal/internal/db"
	"github.com/raphaelgruber/promosignal/internal/llm"
	"github.com/raphaelgruber/promosignal/internal/metrics"
	"github.com/raphaelgruber/promosignal/internal/parser"
	"github.com/raphaelgruber/promosignal/internal/service"
	"github.com/raphaelgruber/promosignal/internal/store"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose       bool
	outputDir     string
	providerName  string
	maxTokens     int
	concurrency   int
	employeesPath string
	showProgress  bool

	// Global config, store and collector
	cfg        config.Config
	dbClient   *db.Client
	artifacts  *store.Artifacts
	collector  *metrics.Collector
	logCleanup func() error

	// Lazy-initialized LLM components
	model   *llm.Model
	counter parser.TokenCounter
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "promosignal",
	Short: "Extract promotion signals from employee awards",
	Long: `Promosignal reads the recognition awards of employees, asks an LLM for
behavioral signals that support a VP promotion case, clusters them per
employee, consolidates the clusters per cohort and builds a taxonomy of
leadership behaviors.

Every stage persists its artifacts to the output directory (or SurrealDB),
so stages can be run one at a time or resumed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyFlagOverrides(cmd)

		// The progress bar owns the terminal, so console logs are dropped
		// and only the log file receives them.
		var logger *slog.Logger
		var cleanup func() error
		if progressEnabled(cmd) {
			logger, cleanup = config.SetupLoggerTo(io.Discard, cfg.LogFile, cfg.LogLevel)
		} else {
			logger, cleanup = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		}
		slog.SetDefault(logger)
		logCleanup = cleanup

		collector = metrics.NewCollector()

		ctx := cmd.Context()
		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		artifacts = store.NewArtifacts(backend, collector)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// Close database connection
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if collector != nil {
			slog.Info("run statistics", "metrics", collector.Snapshot())
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("provider") {
		cfg.Provider = config.NormalizeProvider(providerName)
	}
	if flags.Changed("max-tokens") {
		cfg.MaxChunkTokens = maxTokens
	}
	if flags.Changed("concurrency") {
		cfg.ExtractConcurrency = concurrency
	}
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}
}

func progressEnabled(cmd *cobra.Command) bool {
	return cmd.Name() == "run" && showProgress && term.IsTerminal(int(os.Stderr.Fd()))
}

// openBackend connects the artifact store selected by configuration.
func openBackend(ctx context.Context) (store.Backend, error) {
	switch cfg.Store {
	case config.StoreSurrealDB:
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		dbClient, err = db.NewClient(ctx, dbCfg, slog.Default(), collector)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}

		// Initialize schema
		if err := dbClient.InitSchema(ctx); err != nil {
			return nil, fmt.Errorf("initialize schema: %w", err)
		}
		return dbClient, nil
	case config.StoreFile:
		backend, err := store.NewFileBackend(cfg.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("open output directory: %w", err)
		}
		slog.Debug("writing artifacts", "dir", backend.Root())
		return backend, nil
	default:
		return nil, fmt.Errorf("unknown artifact store %q", cfg.Store)
	}
}

// getModel creates the LLM client on first use. Configuration is validated
// here so that commands without model calls work without credentials.
func getModel(ctx context.Context) (*llm.Model, error) {
	if model != nil {
		return model, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	model = m
	return model, nil
}

// getCounter loads the tokenizer on first use.
func getCounter() (parser.TokenCounter, error) {
	if counter != nil {
		return counter, nil
	}
	c, err := parser.NewTiktokenCounter(cfg.TokenizerEncoding)
	if err != nil {
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	slog.Debug("loaded tokenizer", "encoding", c.Encoding())
	counter = c
	return counter, nil
}

// getPipeline wires every stage around the shared model and store.
func getPipeline(ctx context.Context, opts service.PipelineOptions) (*service.Pipeline, error) {
	m, err := getModel(ctx)
	if err != nil {
		return nil, err
	}
	tc, err := getCounter()
	if err != nil {
		return nil, err
	}

	if opts.EmployeeConcurrency == 0 {
		opts.EmployeeConcurrency = cfg.EmployeeConcurrency
	}
	return service.NewPipeline(
		service.NewExtractor(m, artifacts, tc, service.ExtractorOptions{
			MaxTokens:   cfg.MaxChunkTokens,
			Concurrency: cfg.ExtractConcurrency,
		}, collector),
		service.NewClusterer(m, artifacts, collector),
		service.NewDeduplicator(m, artifacts, collector),
		service.NewTaxonomyBuilder(m, artifacts),
		artifacts,
		opts,
	), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&outputDir, "output", "o", "output", "artifact output directory")
	flags.StringVarP(&providerName, "provider", "p", config.ProviderAnthropic, "LLM provider (anthropic, openai, gemini, ollama, bedrock)")
	flags.IntVar(&maxTokens, "max-tokens", 40000, "token budget per award chunk")
	flags.IntVar(&concurrency, "concurrency", 5, "concurrent extraction calls per employee")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(chunkCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(clusterCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(taxonomyCmd)
}

// addEmployeesFlag registers the required --employees flag on cmd.
func addEmployeesFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&employeesPath, "employees", "e", "", "employees file (JSON or YAML)")
	_ = cmd.MarkFlagRequired("employees")
}
