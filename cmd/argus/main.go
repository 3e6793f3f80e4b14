// Package main provides the argus CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/argus/cli"
	"github.com/richinex/argus/config"
)

var (
	// Global flags
	dataDir string
	logFile string
	verbose bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	settings := config.MustNew()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: settings.LogLevel,
	})))

	rootCmd := &cobra.Command{
		Use:   "argus",
		Short: "Tamper-evident observability for agent pipelines",
		Long: `Inspect, verify and export the monitoring records an instrumented
pipeline produces: state snapshots, decision records and the hash-chained
audit log.

Offline commands (verify, export, search, stats, replay, archive) operate
on persisted audit logs; 'demo' runs a simulated pipeline through a live
monitor.`,
	}

	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", settings.DataDir, "Base directory for monitoring data")
	rootCmd.PersistentFlags().StringVarP(&logFile, "log", "l", "", "Audit log file (defaults to the newest under the data directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(demoCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		DataDir: dataDir,
		LogFile: logFile,
		Verbose: verbose,
	}
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the hash chain of an audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Verify(options())
		},
	}
}

func exportCmd() *cobra.Command {
	var format string
	var threadID string
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an audit log to JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Export(out, format, threadID, options())
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "audit_export.json", "Output file path")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format (json, csv)")
	cmd.Flags().StringVarP(&threadID, "thread", "t", "", "Restrict to one thread")

	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Full-text search across audit entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Search(args[0], options())
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print audit log statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Stats(options())
		},
	}
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [thread-id]",
		Short: "Replay the transition history of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Replay(args[0], options())
		},
	}
}

func archiveCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Archive an audit log into SQLite for ad-hoc SQL querying",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Archive(context.Background(), dbPath, options())
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", ".argus/archive.db", "SQLite archive path")

	return cmd
}

func demoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a simulated pipeline through a live monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Demo(options())
		},
	}
}
