// Package main provides the CLI entrypoint for redmd.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/redmd/redmd/internal/config"
	"github.com/redmd/redmd/internal/journal"
	"github.com/redmd/redmd/internal/logger"
	"github.com/redmd/redmd/internal/redmine"
	"github.com/redmd/redmd/internal/sync"
)

var (
	flagConfig      string
	flagOutput      string
	flagDryRun      bool
	flagLogLevel    string
	flagStatus      string
	flagSince       string
	flagConcurrency int
	flagPageSize    int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "redmd",
	Short: "Mirror Redmine issues into local markdown files",
	Long: `redmd performs a one-way sync of Redmine issues into markdown files
with YAML frontmatter. Issue comments accumulate in an anchored block
at the end of each file; text already synced is never rewritten.`,
	SilenceUsage: true,
}

var issueCmd = &cobra.Command{
	Use:   "issue <id>",
	Short: "Sync a single issue",
	Args:  cobra.ExactArgs(1),
	RunE:  runIssue,
}

var projectCmd = &cobra.Command{
	Use:   "project <identifier>",
	Short: "Sync every matching issue of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProject,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "redmd.yml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "report what would happen without writing files")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	projectCmd.Flags().StringVar(&flagStatus, "status", "", `status filter, e.g. "open", "closed" or a status id`)
	projectCmd.Flags().StringVar(&flagSince, "updated-since", "", "only sync issues updated on or after this date (YYYY-MM-DD)")
	projectCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "max simultaneous API requests (overrides config)")
	projectCmd.Flags().IntVar(&flagPageSize, "page-size", 0, "issues per listing page (overrides config)")

	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(projectCmd)
}

// setup loads config, applies flag overrides and builds the engine.
// Config and flag problems abort here, before any sync work starts.
func setup() (*sync.Engine, config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, config.Config{}, err
	}

	if flagOutput != "" {
		cfg.OutputDir = flagOutput
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagConcurrency > 0 {
		cfg.Concurrency = flagConcurrency
	}
	if flagPageSize > 0 {
		cfg.PageSize = flagPageSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, config.Config{}, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, config.Config{}, err
	}
	logger.SetLevel(level)
	if cfg.LogFile != "" {
		logger.SetLogFile(cfg.LogFile)
	}

	client := redmine.New(cfg.BaseURL, cfg.APIKey)
	client.SetConcurrency(cfg.Concurrency)
	client.SetMaxRetries(cfg.MaxRetries)

	include := redmine.Include{
		Journals:    cfg.Include.Journals,
		Relations:   cfg.Include.Relations,
		Attachments: cfg.Include.Attachments,
	}
	engine := sync.NewEngine(client, include, cfg.DocumentAnchors(), journal.TrackBy(cfg.TrackCommentsBy))
	return engine, cfg, nil
}

// parseIssueID validates a positional issue id argument.
func parseIssueID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid issue id %q: must be a positive number", arg)
	}
	return id, nil
}

func runIssue(cmd *cobra.Command, args []string) error {
	id, err := parseIssueID(args[0])
	if err != nil {
		return err
	}

	engine, cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	res := engine.SyncIssue(cmd.Context(), id, sync.Options{
		DryRun:    flagDryRun,
		OutputDir: cfg.OutputDir,
	})

	if !res.Success {
		return fmt.Errorf("issue %d: %s", res.IssueID, res.Message)
	}
	fmt.Println(res.Message)
	return nil
}

func runProject(cmd *cobra.Command, args []string) error {
	engine, cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	opts := sync.ProjectOptions{
		Options: sync.Options{
			DryRun:    flagDryRun,
			OutputDir: cfg.OutputDir,
		},
		StatusFilter: flagStatus,
		PageSize:     cfg.PageSize,
	}
	if flagSince != "" {
		since, err := time.Parse("2006-01-02", flagSince)
		if err != nil {
			return fmt.Errorf("invalid --updated-since value %q: expected YYYY-MM-DD", flagSince)
		}
		opts.UpdatedSince = since
	}

	res := engine.SyncProject(cmd.Context(), args[0], opts)

	fmt.Printf("%d issues: %d created, %d updated, %d skipped, %d failed\n",
		res.TotalIssues, res.Created, res.Updated, res.Skipped, res.Failed)
	for _, e := range res.Errors {
		fmt.Fprintf(os.Stderr, "  issue %d: %s\n", e.IssueID, e.Error)
	}
	if !res.Success {
		return fmt.Errorf("%d of %d issues failed to sync", res.Failed, res.TotalIssues)
	}
	return nil
}
