package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"investorradar/app"
	"investorradar/domain/catalog"
	"investorradar/domain/signal"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/container"
	"investorradar/internal/testkit"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "radarctl",
		Short: "Operate the investor radar from the command line",
	}

	rootCmd.AddCommand(
		newStatsCmd(),
		newDiscoverCmd(),
		newRunCmd(),
		newSyncAllCmd(),
		newAddCmd(),
		newBackfillCmd(),
		newRefreshSignalsCmd(),
		newExportCmd(),
		newSeedCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withRadar builds the full dependency graph against the configured
// database, runs fn, and tears everything down afterwards.
func withRadar(ctx context.Context, mutate func(*config.Config), fn func(context.Context, *container.Container) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	// The CLI shares the server's container; release mode keeps gin's
	// route dump out of command output.
	cfg.Server.GinMode = gin.ReleaseMode
	if mutate != nil {
		mutate(cfg)
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	radar, err := container.New(cfg, internal.NewDefaultLogger())
	if err != nil {
		db.Close()
		return err
	}
	if err := radar.InitWithDatabase(ctx, db); err != nil {
		db.Close()
		return err
	}
	defer radar.Shutdown()

	return fn(ctx, radar)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show registry size, categories and the configured portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRadar(cmd.Context(), nil, runStats)
		},
	}
}

func runStats(ctx context.Context, radar *container.Container) error {
	stats, err := radar.Workflow.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Datasets tracked: %d\n", stats.TotalKnown)
	fmt.Printf("Portal: %s (configured: %t)\n", stats.Platform.Name, stats.Platform.Configured)
	if stats.Platform.BaseURL != "" {
		fmt.Printf("Base URL: %s\n", stats.Platform.BaseURL)
	}
	fmt.Printf("Categories (%d):\n", len(stats.AvailableCategories))
	for _, category := range stats.AvailableCategories {
		fmt.Printf("  - %s\n", category)
	}

	byKind, err := radar.Signals.CountByKind(ctx)
	if err != nil {
		return err
	}
	fmt.Println("Signals:")
	for _, kind := range []signal.Kind{signal.KindGrowthSpike, signal.KindSustainedTrend, signal.KindNewDataset} {
		fmt.Printf("  %-16s %d\n", kind, byKind[kind])
	}
	return nil
}

func newDiscoverCmd() *cobra.Command {
	var register bool

	cmd := &cobra.Command{
		Use:   "discover [categories...]",
		Short: "Crawl portal categories for dataset ids without syncing",
		Long: `Crawl one or more portal categories and report the identifiers found.

Without arguments every known category is crawled. Pass --register to
create registry rows for the new ids; their content stays PENDING until
the next sync.

Example: radarctl discover economy-and-finance health --register`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRadar(cmd.Context(), nil, func(ctx context.Context, radar *container.Container) error {
				return runDiscover(ctx, radar, args, register)
			})
		},
	}

	cmd.Flags().BoolVar(&register, "register", false, "Create registry rows for newly found ids")
	return cmd
}

func runDiscover(ctx context.Context, radar *container.Container, categories []string, register bool) error {
	if len(categories) == 0 {
		var err error
		categories, err = radar.Workflow.Categories(ctx)
		if err != nil {
			return err
		}
	}
	if len(categories) == 0 {
		// Nothing configured and nothing stored: crawl the home listing.
		categories = []string{""}
	}

	merged := catalog.DiscoveryResult{Mode: catalog.DiscoveryQuick}
	for _, category := range categories {
		outcome, err := radar.Discovery.Discover(ctx, app.DiscoveryRequest{Category: category})
		if err != nil {
			return fmt.Errorf("discover %q: %w", category, err)
		}
		fmt.Printf("%-28s total=%-4d new=%-4d steps=%-3d failed=%d\n",
			category, outcome.Result.Total, outcome.Result.NewFound(), outcome.Result.Steps, outcome.Result.FailedSteps)
		merged.Merge(*outcome.Result)
	}

	fmt.Printf("\n=== DISCOVERY TOTALS ===\n")
	fmt.Printf("Categories crawled: %d\n", len(categories))
	fmt.Printf("Ids observed: %d\n", merged.Total)
	fmt.Printf("New ids: %d\n", merged.NewFound())
	fmt.Printf("Steps: %d (failed: %d)\n", merged.Steps, merged.FailedSteps)

	if register && merged.NewFound() > 0 {
		report, err := radar.Workflow.AddDatasets(ctx, merged.NewIDs)
		if err != nil {
			return err
		}
		fmt.Printf("Registered: %d of %d\n", report.Added, report.Requested)
	}
	return nil
}

func newRunCmd() *cobra.Command {
	var full bool
	var category string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one discover-and-sync pass",
		Long: `Run the discovery, reconcile and content-sync workflow once, printing
each phase as it happens. --full widens discovery to every known
category and ends with a signal refresh.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRadar(cmd.Context(), nil, func(ctx context.Context, radar *container.Container) error {
				return runWorkflow(ctx, radar, full, category)
			})
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "Crawl every known category and refresh signals")
	cmd.Flags().StringVar(&category, "category", "", "Restrict the quick pass to one category")
	return cmd
}

func runWorkflow(ctx context.Context, radar *container.Container, full bool, category string) error {
	report, err := radar.Workflow.DiscoverAndSync(ctx, app.DiscoverAndSyncRequest{
		Full:     full,
		Category: category,
		Observe:  func(phase string) { fmt.Printf("phase: %s\n", phase) },
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n=== RUN REPORT ===\n")
	fmt.Printf("Discovery: mode=%s total=%d new=%d\n", report.Discovery.Mode, report.Discovery.Total, report.Discovery.NewFound)
	fmt.Printf("Reconcile: created=%d updated=%d skipped=%d\n", report.Sync.Created, report.Sync.Updated, report.Sync.Skipped)
	fmt.Printf("Content:   synced=%d failed=%d of %d\n", report.Sync.Success, report.Sync.Failed, report.Sync.Total)
	return nil
}

func newSyncAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-all",
		Short: "Refresh content for every active dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRadar(cmd.Context(), nil, func(ctx context.Context, radar *container.Container) error {
				result, err := radar.Sync.SyncAll(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Synced %d of %d datasets (%d failed)\n", result.Synced, result.Total, result.Failed)
				return nil
			})
		},
	}
}

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <external-id>...",
		Short: "Register datasets by portal identifier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRadar(cmd.Context(), nil, func(ctx context.Context, radar *container.Container) error {
				report, err := radar.Workflow.AddDatasets(ctx, args)
				if err != nil {
					return err
				}
				fmt.Printf("Added %d of %d requested\n", report.Added, report.Requested)
				return nil
			})
		},
	}
}

func newBackfillCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Resolve placeholder dataset names from portal pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRadar(cmd.Context(), nil, func(ctx context.Context, radar *container.Container) error {
				result, err := radar.Backfill.Run(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Printf("Scanned %d: %d updated, %d skipped, %d failed\n",
					result.Scanned, result.Updated, result.Skipped, result.Failed)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Records per pass (0 uses BACKFILL_BATCH)")
	return cmd
}

func newRefreshSignalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-signals",
		Short: "Recompute investment signals from stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRadar(cmd.Context(), nil, func(ctx context.Context, radar *container.Container) error {
				result, err := radar.Signals.Refresh(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Examined %d datasets: %d signals, %d failed, %d stale pruned\n",
					result.Datasets, result.Signals, result.Failed, result.Pruned)
				return nil
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dataset workbook to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mutate := func(cfg *config.Config) {
				if dir != "" {
					cfg.Export.Dir = dir
				}
			}
			return withRadar(cmd.Context(), mutate, func(ctx context.Context, radar *container.Container) error {
				path, err := radar.Exporter.SaveToDir(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Workbook written to %s\n", path)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (defaults to EXPORT_DIR)")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var datasets int
	var snapshots int
	var seed int64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the registry with fake datasets for local development",
		Long: `Insert fake but plausible datasets, each with a ramping snapshot
series, so the dashboard and the signal engine have data to work with
before a real portal is configured.

Example: radarctl seed --datasets 50 --snapshots 21`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRadar(cmd.Context(), nil, func(ctx context.Context, radar *container.Container) error {
				return runSeed(ctx, radar, datasets, snapshots, seed)
			})
		},
	}

	cmd.Flags().IntVar(&datasets, "datasets", 20, "Datasets to create")
	cmd.Flags().IntVar(&snapshots, "snapshots", 14, "Snapshot points per dataset")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
	return cmd
}

func runSeed(ctx context.Context, radar *container.Container, datasets, snapshots int, seed int64) error {
	rng := rand.New(rand.NewSource(seed))

	created := 0
	for i := 0; i < datasets; i++ {
		record := testkit.FakeDataset(rng)
		if err := radar.DatasetRepo.Create(ctx, record); err != nil {
			return fmt.Errorf("create dataset %d: %w", i+1, err)
		}
		created++

		base := int64(100 + rng.Intn(5000))
		slope := int64(rng.Intn(40))
		for _, snap := range testkit.FakeSnapshotSeries(record.ID, snapshots, base, slope, rng) {
			if err := radar.SnapshotRepo.Save(ctx, snap); err != nil {
				return fmt.Errorf("save snapshot for %s: %w", record.ExternalID, err)
			}
		}
	}

	fmt.Printf("Seeded %d datasets with %d snapshots each\n", created, snapshots)
	fmt.Println("Run 'radarctl refresh-signals' to derive signals from the series.")
	return nil
}
