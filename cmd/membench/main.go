// Package main implements the membench binary.
// It populates a store with synthetic organization/user records in two
// layouts and measures the latency of a membership lookup in each.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arkilian/membench/internal/app"
	"github.com/arkilian/membench/internal/config"
	"github.com/arkilian/membench/internal/report"
)

var (
	version = "dev"
	commit  = "unknown"
)

// flags holds command line overrides. Only flags the user set are applied.
type flags struct {
	configFile string
	envFile    string
	storageURL string
	orgs       int
	samples    int
	layoutA    bool
	layoutB    bool
	seed       uint64
	format     string
	verify     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "membench",
		Short: "Benchmark membership lookups across two storage layouts",
		Long: `membench writes synthetic organizations and their users into a key-value
store twice: once as token -> org entries and once as one array of tokens per
organization. It then samples users at random and times one lookup per layout.

Environment variables (also read from .env):
  STORAGE_URL            redis://, rediss://, sqlite://, s3://, bitcask://, mem://
  ORGANIZATION_COUNT     organizations to create (default 10)
  USERS_PER_ORG_MIN/MAX  users per organization (default 100-1000)
  ENABLE_LAYOUT_A        write and query token -> org entries
  ENABLE_LAYOUT_B        write and query per-organization token arrays
  SAMPLE_COUNT           lookups per layout (default 1000)
  SEED                   fixed random seed (default: time based)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, f, out, true)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	pf.StringVar(&f.envFile, "env-file", "", "Path to a .env file (default ./.env if present)")
	pf.StringVar(&f.storageURL, "storage-url", "", "Storage URL")
	pf.IntVar(&f.orgs, "orgs", 0, "Number of organizations to create")
	pf.IntVar(&f.samples, "samples", 0, "Number of benchmark samples")
	pf.BoolVar(&f.layoutA, "layout-a", false, "Enable the flat key-value layout")
	pf.BoolVar(&f.layoutB, "layout-b", false, "Enable the document array layout")
	pf.Uint64Var(&f.seed, "seed", 0, "Random seed (0 = time based)")
	pf.StringVar(&f.format, "format", "", "Report format: text or json")
	pf.BoolVar(&f.verify, "verify", false, "Read every record back after generation")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Generate the dataset, benchmark both layouts and print the report",
			RunE: func(cmd *cobra.Command, args []string) error {
				return execute(cmd, f, out, true)
			},
		},
		&cobra.Command{
			Use:   "generate",
			Short: "Generate the dataset only",
			RunE: func(cmd *cobra.Command, args []string) error {
				return execute(cmd, f, out, false)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(out, "membench version %s (commit: %s)\n", version, commit)
			},
		},
	)

	return root
}

func execute(cmd *cobra.Command, f *flags, out io.Writer, benchmark bool) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	printBanner(cfg)

	application, err := app.New(cfg, app.WithOutput(out))
	if err != nil {
		return err
	}

	if benchmark {
		_, err = application.Run(cmd.Context())
	} else {
		_, err = application.Generate(cmd.Context())
	}
	return err
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	var envFiles []string
	if f.envFile != "" {
		envFiles = append(envFiles, f.envFile)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if f.configFile != "" {
		cfg, err = config.LoadFromFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	// Apply command line flags (highest priority)
	changed := cmd.Flags().Changed
	if changed("storage-url") {
		cfg.Storage.URL = f.storageURL
	}
	if changed("orgs") {
		cfg.Generate.Organizations = f.orgs
	}
	if changed("samples") {
		cfg.Bench.Samples = f.samples
	}
	if changed("layout-a") {
		cfg.Layouts.A.Enabled = f.layoutA
	}
	if changed("layout-b") {
		cfg.Layouts.B.Enabled = f.layoutB
	}
	if changed("seed") {
		cfg.Bench.Seed = f.seed
	}
	if changed("format") {
		cfg.Report.Format = f.format
	}
	if changed("verify") {
		cfg.Generate.Verify = f.verify
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("╔═══════════════════════════════════════════════════════════╗")
	log.Printf("║                      MEMBENCH                             ║")
	log.Printf("║        Membership lookup latency: flat vs document        ║")
	log.Printf("╚═══════════════════════════════════════════════════════════╝")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Storage:       %s", redact(cfg.Storage.URL))
	log.Printf("  Organizations: %d", cfg.Generate.Organizations)
	log.Printf("  Users per org: %d-%d", cfg.Generate.UsersPerOrg.Min, cfg.Generate.UsersPerOrg.Max)
	log.Printf("  Samples:       %d", cfg.Bench.Samples)
	log.Printf("  Layout A:      %v (%s)", cfg.Layouts.A.Enabled, cfg.Layouts.A.Namespace)
	log.Printf("  Layout B:      %v (%s, path %s)", cfg.Layouts.B.Enabled, cfg.Layouts.B.Namespace, cfg.Layouts.B.Path)
	if cfg.Report.Format != string(report.FormatText) {
		log.Printf("  Report:        %s", cfg.Report.Format)
	}
	log.Printf("")
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
