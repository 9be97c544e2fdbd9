package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/shouldipickitup/internal/app"
	"github.com/user/shouldipickitup/internal/entity"
	"github.com/user/shouldipickitup/internal/usecase"
	"github.com/user/shouldipickitup/pkg/config"
	"github.com/user/shouldipickitup/pkg/logger"
	"github.com/user/shouldipickitup/pkg/utils"
)

var (
	sourceURL     string
	stalenessDays int
	outputMode    string
	howMany       int
	force         bool
	zips          []string
)

var rootCmd = &cobra.Command{
	Use:   "crawler",
	Short: "Crawl free-item listings and price them against the marketplace",
	Long: `Without --source, crawls every known source once, oldest crawl first.
With --source, crawls that one source.`,
	SilenceUsage: true,
	RunE:         runCrawl,
}

var registerCmd = &cobra.Command{
	Use:   "register URL",
	Short: "Add a never-crawled source and the zip codes it serves",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.IntVar(&stalenessDays, "staleness-days", -1, "Skip sources crawled within this many days (overrides STALENESS_DAYS)")
	flags.StringVar(&outputMode, "output", "", "Where records go: store or snapshot (overrides OUTPUT_MODE)")

	rootCmd.Flags().StringVar(&sourceURL, "source", "", "Crawl only this source URL")
	rootCmd.Flags().IntVar(&howMany, "howmany", -1, "Maximum accepted items per source (overrides HOWMANY)")
	rootCmd.Flags().BoolVar(&force, "force", false, "Crawl --source even if it is fresh")

	registerCmd.Flags().StringSliceVar(&zips, "zips", nil, "Comma-separated zip codes served by the source")
	rootCmd.AddCommand(registerCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads config, applies flag overrides and wires the application.
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if stalenessDays >= 0 {
		cfg.StalenessDays = stalenessDays
	}
	if outputMode != "" {
		cfg.OutputMode = outputMode
	}
	if howMany >= 0 {
		cfg.HowMany = howMany
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Init(os.Stderr, logger.ParseLevel(cfg.LogLevel))
	return app.New(ctx, cfg, log)
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if sourceURL != "" {
		report, err := a.Crawler.CrawlSourceWith(ctx, sourceURL, usecase.CrawlOptions{Force: force})
		if err != nil {
			return err
		}
		printReport(cmd, report)
		return nil
	}

	summary, err := a.Batch.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sources=%d crawled=%d fresh=%d leased=%d degraded=%d accepted=%d failed=%v\n",
		summary.Sources, summary.Crawled, summary.Fresh, summary.Leased, summary.Degraded, summary.Accepted, summary.Failed)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	source, ok := utils.StripQuery(args[0])
	if !ok {
		return usecase.ErrInvalidSourceURL
	}
	for i, z := range zips {
		zips[i] = strings.TrimSpace(z)
	}

	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Gateway.Register(ctx, source, zips); err != nil {
		return fmt.Errorf("register %s: %w", source, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%d zip codes)\n", source, len(zips))
	return nil
}

func printReport(cmd *cobra.Command, r *entity.CrawlReport) {
	out := cmd.OutOrStdout()
	if r.Skipped != entity.SkipNone {
		fmt.Fprintf(out, "%s skipped: %s\n", r.SourceURL, r.Skipped)
		return
	}
	fmt.Fprintf(out, "%s: fetched=%d evaluated=%d accepted=%d transient=%d geo_absent=%d write=%s run_id=%s\n",
		r.SourceURL, r.Fetched, r.Evaluated, r.Accepted, r.Transient, r.GeoAbsent, r.Write, r.RunID)
}
