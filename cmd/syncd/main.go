package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vladzaharia/dangerprep-sub010/pkg/config"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/service"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "syncd",
	Short: "syncd - content sync service runtime",
	Long: `syncd keeps configured content types synchronized from a source
tree into local storage: planned transfers under per-type size
budgets, scheduled by cron expressions, with retries, progress
tracking, health probes, and an observable HTTP surface.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"syncd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/syncd/config.yaml", "Path to configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync service",
	Long: `Load the configuration, start the service host with the file
agent, and run until SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})

		svc := service.NewService(cfg, Version)
		if err := svc.AddAgent(newFileAgent(cfg)); err != nil {
			return err
		}

		ctx := context.Background()
		if err := svc.Start(ctx); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}

		if addr := svc.APIAddr(); addr != "" {
			fmt.Printf("Observable surface on http://%s\n", addr)
		}
		fmt.Println("Service is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		sig := <-sigCh
		fmt.Printf("\nReceived %s, shutting down...\n", sig)

		if err := svc.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop cleanly: %w", err)
		}
		fmt.Println("Shutdown complete")
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration %s is valid\n", configPath)
		fmt.Printf("  Service: %s\n", cfg.Service.Name)
		fmt.Printf("  Workers: %d\n", cfg.Executor.MaxConcurrentOperations)
		fmt.Printf("  Content types: %d\n", len(cfg.ContentTypes))
		for _, ct := range cfg.ContentTypes {
			schedule := ct.Schedule
			if schedule == "" {
				schedule = "manual"
			}
			fmt.Printf("    %s -> %s (%s)\n", ct.Name, ct.LocalPath, schedule)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("syncd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}
