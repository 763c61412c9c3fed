package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"snf_underwriting/pkg/core/cache"
	"snf_underwriting/pkg/core/config"
	"snf_underwriting/pkg/core/docs"
	"snf_underwriting/pkg/core/extraction"
	"snf_underwriting/pkg/core/llm"
	"snf_underwriting/pkg/core/logging"
	"snf_underwriting/pkg/core/pipeline"
	"snf_underwriting/pkg/core/ratios"
	"snf_underwriting/pkg/core/store"
	"snf_underwriting/pkg/core/underwriting"
	"snf_underwriting/pkg/models"
)

var (
	configPath string
	persist    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dealpipe",
		Short: "Extract, reconcile and underwrite healthcare facility deals",
		Long: `dealpipe turns seller financial packages (P&Ls, census reports, rate schedules)
into a reconciled deal record with TTM financials, data-quality findings and
underwriting metrics.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/pipeline.yaml", "Pipeline config file")
	rootCmd.PersistentFlags().BoolVar(&persist, "persist", false, "Write valid results to DATABASE_URL")

	rootCmd.AddCommand(extractCmd(), portfolioCmd(), metricsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func extractCmd() *cobra.Command {
	var (
		dealID, dealName, facility, adjustmentsPath string
	)
	cmd := &cobra.Command{
		Use:   "extract <files...>",
		Short: "Run the pipeline for one facility",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			files, err := readFiles(args)
			if err != nil {
				return err
			}
			var adjustments []models.NormalizationAdjustment
			if adjustmentsPath != "" {
				if err := readJSON(adjustmentsPath, &adjustments); err != nil {
					return err
				}
			}

			orch, cleanup, err := buildOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			res, runErr := orch.Run(cmd.Context(), pipeline.RunRequest{
				DealID:       dealID,
				DealName:     dealName,
				FacilityName: facility,
				Files:        files,
				Adjustments:  adjustments,
			})
			printJSON(pipeline.Response(res, runErr))
			return runErr
		},
	}
	cmd.Flags().StringVar(&dealID, "deal-id", "", "Deal id used as the persistence key")
	cmd.Flags().StringVar(&dealName, "deal-name", "", "Deal name (fallback for a missing facility name)")
	cmd.Flags().StringVar(&facility, "facility", "", "Facility label appended to validation messages")
	cmd.Flags().StringVar(&adjustmentsPath, "adjustments", "", "JSON file of external normalization adjustments")
	return cmd
}

func portfolioCmd() *cobra.Command {
	var (
		dealID, dealName   string
		facilities         []string
		totalRevenue, beds float64
	)
	cmd := &cobra.Command{
		Use:     "portfolio",
		Short:   "Run the pipeline for several facilities sold together",
		Example: `  dealpipe portfolio --deal-name "Midwest 3" --facility "Sunrise=t12.pdf,census.xlsx" --facility "Lakeside=pl.pdf"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(facilities) == 0 {
				return fmt.Errorf("at least one --facility is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			req := pipeline.PortfolioRequest{DealName: dealName}
			for _, arg := range facilities {
				up, err := parseFacility(arg)
				if err != nil {
					return err
				}
				if dealID != "" {
					up.DealID = dealID + "/" + up.Name
				}
				req.Facilities = append(req.Facilities, up)
			}
			if cmd.Flags().Changed("total-revenue") {
				req.Totals.TotalRevenue = &totalRevenue
			}
			if cmd.Flags().Changed("total-beds") {
				req.Totals.TotalBeds = &beds
			}

			orch, cleanup, err := buildOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			out, runErr := orch.RunPortfolio(cmd.Context(), req)
			if runErr != nil {
				printJSON(pipeline.Response(nil, runErr))
				return runErr
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dealID, "deal-id", "", "Portfolio id; facilities persist as <id>/<name>")
	cmd.Flags().StringVar(&dealName, "deal-name", "", "Portfolio name")
	cmd.Flags().StringArrayVar(&facilities, "facility", nil, "Facility as name=file1,file2 (repeatable)")
	cmd.Flags().Float64Var(&totalRevenue, "total-revenue", 0, "Portfolio revenue stated by the seller")
	cmd.Flags().Float64Var(&beds, "total-beds", 0, "Portfolio bed count stated by the seller")
	return cmd
}

func metricsCmd() *cobra.Command {
	var (
		enhanced, isPortfolio bool
		dealID                string
	)
	cmd := &cobra.Command{
		Use:   "metrics <deal.json>",
		Short: "Compute underwriting metrics for a deal or portfolio record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if isPortfolio {
				var p underwriting.Portfolio
				if err := readJSON(args[0], &p); err != nil {
					return err
				}
				printJSON(underwriting.CalculatePortfolioMetrics(&p))
				return nil
			}

			var deal models.Deal
			if err := readJSON(args[0], &deal); err != nil {
				return err
			}
			if dealID != "" && deal.Extraction == nil {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				if err := store.InitDB(cmd.Context(), cfg.DatabaseURL); err != nil {
					return err
				}
				defer store.Close()
				summary, err := store.NewDealRepo(nil).LoadSummary(cmd.Context(), dealID)
				if err != nil {
					return err
				}
				deal.Extraction = summary
			}

			if enhanced {
				printJSON(underwriting.CalculateEnhancedMetrics(&deal))
			} else {
				printJSON(underwriting.CalculateDealMetrics(&deal))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&enhanced, "enhanced", false, "Include normalized metrics")
	cmd.Flags().BoolVar(&isPortfolio, "portfolio", false, "Input is a portfolio record")
	cmd.Flags().StringVar(&dealID, "deal-id", "", "Fill missing extraction data from the stored deal")
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Configure(cfg.LogLevel, os.Stderr)
	return cfg, nil
}

// buildOrchestrator wires the provider, caches and, with --persist, the database.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*pipeline.Orchestrator, func(), error) {
	log := logging.GetLogger()
	provider, err := llm.NewProvider(cfg.LLM.Provider, cfg.LLM.Model)
	if err != nil {
		return nil, nil, err
	}

	orch := pipeline.NewOrchestrator(docs.NewTextExtractor(), extraction.NewLLMInvoker(provider, log), log)
	orch.SetLimits(pipeline.LimitsFromConfig(cfg))
	orch.SetBenchmarks(ratios.NewBenchmarkSource(cfg.Benchmarks.File,
		cache.NewTTL[string, []ratios.Benchmark](8, cfg.Benchmarks.CacheTTL)))

	cleanup := func() {}
	var pool *pgxpool.Pool
	if persist {
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		pool = store.GetPool()
		orch.SetRepository(store.NewDealRepo(pool))
		cleanup = store.Close
	}
	if pool != nil || cfg.Pipeline.CacheDir != "" {
		orch.SetCache(store.NewExtractionCache(pool, cfg.Pipeline.CacheDir, log))
	}
	return orch, cleanup, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
