package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hnsnap/hnsnap/internal/config"
	"github.com/hnsnap/hnsnap/internal/fetcher"
	"github.com/hnsnap/hnsnap/internal/parser"
	"github.com/hnsnap/hnsnap/internal/scraper"
	"github.com/hnsnap/hnsnap/internal/storage"
	"github.com/hnsnap/hnsnap/internal/types"
)

var (
	cfgFile     string
	verbose     bool
	outputPath  string
	outputType  string
	day         string
	maxStories  int
	concurrent  int
	delay       string
	timeout     string
	retries     int
	userAgent   string
	engine      string
	fetcherType string
	noComments  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hnsnap",
		Short: "hnsnap — snapshot yesterday's Hacker News front page",
		Long: `hnsnap fetches the previous day's Hacker News front page, scrapes the
top stories and their full comment threads, and writes one JSON snapshot.

Features:
  • Top 30 previous-day stories with rank, title, url, points, author
  • Full nested comment trees per story
  • CSS selector or XPath extraction engines
  • JSON, JSONL, or MongoDB output
  • Optional headless-browser fetching and bounded concurrency`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape the previous day's front page and write the snapshot",
		Args:  cobra.NoArgs,
		RunE:  runScrape,
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file path (default output.json)")
	cmd.Flags().StringVarP(&outputType, "format", "f", "", "output format: json, jsonl, mongo")
	cmd.Flags().StringVar(&day, "day", "", "front page day to scrape (YYYY-MM-DD, default previous day)")
	cmd.Flags().IntVarP(&maxStories, "max-stories", "n", 0, "maximum stories to scrape (1-30)")
	cmd.Flags().IntVar(&concurrent, "concurrency", 0, "concurrent comment-page fetches")
	cmd.Flags().StringVar(&delay, "delay", "", "politeness delay between requests")
	cmd.Flags().StringVar(&timeout, "timeout", "", "per-request timeout")
	cmd.Flags().IntVar(&retries, "retries", -1, "max retries per failed request")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "custom User-Agent string")
	cmd.Flags().StringVar(&engine, "engine", "", "parsing engine: css or xpath")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "fetcher type: http or browser")
	cmd.Flags().BoolVar(&noComments, "no-comments", false, "skip comment threads")

	return cmd
}

// runScrape executes the scrape command.
func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg)
	now := time.Now()

	logger.Info("starting scrape",
		"listing", scraper.ListingURL(&cfg.Scrape),
		"max_stories", cfg.Scrape.MaxStories,
		"concurrency", cfg.Scrape.Concurrency,
		"engine", cfg.Parser.Engine,
		"output", cfg.Storage.OutputPath,
		"format", cfg.Storage.Type,
	)

	fetch, err := newFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	defer fetch.Close()

	listing, err := newListingParser(cfg, now, logger)
	if err != nil {
		return fmt.Errorf("create parser: %w", err)
	}
	comments := parser.NewCommentTreeParser(logger)

	store, err := newStorage(cfg, now, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, aborting...", "signal", sig)
		cancel()
	}()

	scr := scraper.New(cfg, fetch, listing, comments, logger)

	start := time.Now()
	snapshot, err := scr.Run(ctx)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}

	if err := store.Store(snapshot); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	elapsed := time.Since(start)
	stats := scr.Stats().Snapshot()

	fmt.Printf("\n✅ Scrape complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Stories:   %d\n", len(snapshot.Stories))
	fmt.Printf("   Comments:  %d\n", snapshot.CommentTotal())
	fmt.Printf("   Requests:  %d sent, %d failed, %d retried\n",
		stats["requests_sent"], stats["requests_failed"], stats["retries"])
	fmt.Printf("   Data:      %d bytes downloaded\n", stats["bytes_fetched"])
	if cfg.Storage.Type != "mongo" {
		fmt.Printf("   Output:    %s\n", cfg.Storage.OutputPath)
	}

	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("hnsnap %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Fetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Follow Redirects:  %v\n", cfg.Fetcher.FollowRedirects)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nParser:\n")
			fmt.Printf("  Engine:            %s\n", cfg.Parser.Engine)
			fmt.Printf("\nScrape:\n")
			fmt.Printf("  Base URL:          %s\n", cfg.Scrape.BaseURL)
			fmt.Printf("  Max Stories:       %d\n", cfg.Scrape.MaxStories)
			fmt.Printf("  Fetch Comments:    %v\n", cfg.Scrape.FetchComments)
			fmt.Printf("  Concurrency:       %d\n", cfg.Scrape.Concurrency)
			fmt.Printf("  Politeness Delay:  %s\n", cfg.Scrape.PolitenessDelay)
			fmt.Printf("  Max Retries:       %d\n", cfg.Scrape.MaxRetries)
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  Output Path:       %s\n", cfg.Storage.OutputPath)
			return nil
		},
	}
}

// newFetcher builds the configured fetcher implementation.
func newFetcher(cfg *config.Config, logger *slog.Logger) (fetcher.Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "browser":
		return fetcher.NewBrowserFetcher(cfg, logger)
	case "http":
		return fetcher.NewHTTPFetcher(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: type %q", types.ErrNoFetcher, cfg.Fetcher.Type)
	}
}

// newListingParser builds the configured listing engine. The day window
// is the previous calendar day relative to now, or the explicitly
// requested day.
func newListingParser(cfg *config.Config, now time.Time, logger *slog.Logger) (parser.ListingParser, error) {
	window := parser.PreviousDay(now)
	if cfg.Scrape.Day != "" {
		d, err := time.Parse("2006-01-02", cfg.Scrape.Day)
		if err != nil {
			return nil, fmt.Errorf("invalid day %q: %w", cfg.Scrape.Day, err)
		}
		window = parser.Window{Start: d.UTC(), End: d.UTC().AddDate(0, 0, 1)}
	}

	if cfg.Parser.Engine == "xpath" {
		return parser.NewXPathListingParser(cfg.Scrape.BaseURL, cfg.Scrape.MaxStories, window, logger)
	}
	return parser.NewCSSListingParser(cfg.Scrape.BaseURL, cfg.Scrape.MaxStories, window, logger)
}

// newStorage builds the configured storage backend.
func newStorage(cfg *config.Config, now time.Time, logger *slog.Logger) (storage.Storage, error) {
	if cfg.Storage.Type == "mongo" {
		dayLabel := cfg.Scrape.Day
		if dayLabel == "" {
			dayLabel = now.AddDate(0, 0, -1).Format("2006-01-02")
		}
		return storage.NewMongoStorage(
			cfg.Storage.MongoURI,
			cfg.Storage.MongoDB,
			cfg.Storage.MongoColl,
			dayLabel,
			logger,
		)
	}
	return storage.NewFileStorage(cfg.Storage.Type, cfg.Storage.OutputPath, logger)
}

// setupLogger creates a structured logger per the logging config.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if day != "" {
		cfg.Scrape.Day = day
	}
	if maxStories > 0 {
		cfg.Scrape.MaxStories = maxStories
	}
	if concurrent > 0 {
		cfg.Scrape.Concurrency = concurrent
	}
	if delay != "" {
		if d, err := time.ParseDuration(delay); err == nil {
			cfg.Scrape.PolitenessDelay = d
		}
	}
	if timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Fetcher.RequestTimeout = d
		}
	}
	if retries >= 0 {
		cfg.Scrape.MaxRetries = retries
	}
	if userAgent != "" {
		cfg.Fetcher.UserAgent = userAgent
	}
	if engine != "" {
		cfg.Parser.Engine = strings.ToLower(engine)
	}
	if fetcherType != "" {
		cfg.Fetcher.Type = strings.ToLower(fetcherType)
	}
	if noComments {
		cfg.Scrape.FetchComments = false
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}
