package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ossyrian/runzip/internal/config"
	"github.com/ossyrian/runzip/internal/logging"
	"github.com/ossyrian/runzip/internal/recode"
	"github.com/ossyrian/runzip/internal/report"
)

var (
	cfgFile string
	cfg     *config.Config

	errFailed = errors.New("some archives could not be processed")
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "runzip [flags] <file.zip>...",
	Short: "Fix Cyrillic file names in zip archives",
	Long: `runzip rewrites the file names of zip archives created with legacy
Cyrillic code pages (windows-1251, cp866, koi8-r, koi8-u) to UTF-8 and sets
the UTF-8 flag, so any modern unzip shows them correctly. Entry data is
copied byte for byte and archives are replaced atomically.`,
	Args:          cobra.MinimumNArgs(1),
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	// encodings
	rootCmd.Flags().StringP("source", "s", "", "force the source encoding of unflagged names (windows-1251, cp866, koi8-r, koi8-u); detected if empty")
	rootCmd.Flags().StringP("target", "t", "utf-8", "encoding to convert names to")
	rootCmd.Flags().BoolP("legacy-windows", "w", false, "convert names to cp866 for old Windows archivers (overrides --target)")

	// behavior
	rootCmd.Flags().BoolP("dry-run", "n", false, "report what would change without writing")
	rootCmd.Flags().IntP("workers", "j", 0, "archives processed in parallel (default: number of CPUs)")
	rootCmd.Flags().Int64("max-archive-size", 0, "refuse archives larger than this many bytes (default 4 GiB)")

	// other opts
	rootCmd.Flags().CountP("verbose", "v", "show detection details (-vv adds raw name bytes)")
	rootCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-output-dir", "", "directory to write log files (if set, logs are written to both stderr and file)")
	rootCmd.Flags().Bool("progress", false, "show a progress bar on stderr")
	rootCmd.Flags().Bool("no-color", false, "disable colored output")

	bind := map[string]string{
		"source":           "source",
		"target":           "target",
		"legacy_windows":   "legacy-windows",
		"dry_run":          "dry-run",
		"workers":          "workers",
		"max_archive_size": "max-archive-size",
		"verbose":          "verbose",
		"log_level":        "log-level",
		"log_output_dir":   "log-output-dir",
		"progress":         "progress",
		"no_color":         "no-color",
	}
	for key, flag := range bind {
		if err := viper.BindPFlag(key, rootCmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", flag, err))
		}
	}
}

// initConfig reads in config file and environment variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "runzip"))
		}
		viper.AddConfigPath("/etc/runzip")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}

	viper.SetEnvPrefix("RUNZIP")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// run recodes every archive named on the command line
func run(cmd *cobra.Command, args []string) error {
	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logCloser, err := logging.Setup(cfg.EffectiveLogLevel(), cfg.LogOutputDir, cfg.NoColor)
	if err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	defer logCloser.Close()

	opts, err := cfg.Resolve()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Debug("starting",
		"archives", len(args),
		"target", opts.Target.String(),
		"dry_run", opts.DryRun,
		"workers", opts.Workers,
	)

	printer := report.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Verbose, cfg.NoColor)
	var sink report.Sink = printer
	var bar *report.Progress
	if cfg.Progress {
		bar = report.NewProgress(printer, cmd.ErrOrStderr(), len(args))
		sink = bar
	}

	failed := recode.New(opts, slog.Default()).ProcessAll(ctx, args, sink)
	if bar != nil {
		bar.Finish()
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d failed", errFailed, failed, len(args))
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
