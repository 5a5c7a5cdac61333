package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ytarchive/internal/config"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	logger = slog.Default()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ytarchive",
	Short: "Append new YouTube transcripts to a plain-text archive",
	Long: `ytarchive keeps a plain-text transcript archive of a YouTube channel up to date.

Each sync scans the archive for the videos it already holds, looks at the
channel's newest uploads and appends the transcripts of the new ones,
oldest first. Running it twice in a row changes nothing.

Commands:
  sync     Append transcripts of new videos to the archive
  list     Preview the candidates the next sync would consider
  scan     Show the video IDs already in the archive
  history  Show recent sync runs from the ledger

Settings come from ytarchive.yaml (or .json), YTARCHIVE_* environment
variables and flags, in increasing priority.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(cmd.ErrOrStderr(), verbose)
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and runs it. A
// failed command exits with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./ytarchive.yaml or the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Flags shared by the commands that target a channel and archive. Only
// flags set on the command line override the loaded configuration.
var (
	flagArchive     string
	flagChannel     string
	flagType        string
	flagMax         int
	flagSource      string
	flagConcurrency int
)

func addArchiveFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagArchive, "archive", "a", "", "Archive file (default from config)")
}

func addTargetFlags(cmd *cobra.Command) {
	addArchiveFlag(cmd)
	cmd.Flags().StringVarP(&flagChannel, "channel", "c", "", "Channel URL, handle or ID")
	cmd.Flags().StringVarP(&flagType, "type", "t", "", "Content type: videos or streams")
	cmd.Flags().IntVarP(&flagMax, "max", "n", 0, "Maximum candidates to consider")
	cmd.Flags().StringVar(&flagSource, "source", "", "Candidate source: ytdlp, rss or api")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "Transcripts fetched in parallel")
}

// loadConfig loads the layered configuration and applies the flags the
// user set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("archive") {
		cfg.ArchivePath = flagArchive
	}
	if flags.Changed("channel") {
		cfg.ChannelURL = flagChannel
	}
	if flags.Changed("type") {
		cfg.ContentType = flagType
	}
	if flags.Changed("max") {
		cfg.MaxCandidates = flagMax
	}
	if flags.Changed("source") {
		cfg.Source = flagSource
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = flagConcurrency
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger.Debug("cli: configuration loaded", "file", cfg.Path(), "source", cfg.Source, "archive", cfg.ArchivePath)
	return cfg, nil
}
