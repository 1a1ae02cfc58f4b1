package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"tally/internal/config"
	"tally/internal/db"
	"tally/internal/jobs"
	"tally/internal/logx"
	"tally/internal/seed"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tally",
		Short:         "Habit scoring and statistics backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newPurgeCmd())
	return root
}

// openStore connects and migrates.
func openStore(cfg config.Config, log hclog.Logger) (*gorm.DB, error) {
	gdb, err := db.Connect(cfg.DatabaseURL, log.Named("gorm"))
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadStore()
			if err != nil {
				return err
			}
			log := logx.New(cfg.LogLevel, cmd.ErrOrStderr())
			if _, err := openStore(cfg, log); err != nil {
				return err
			}
			log.Info("schema up to date")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the color palette and global categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadStore()
			if err != nil {
				return err
			}
			log := logx.New(cfg.LogLevel, cmd.ErrOrStderr())

			data, err := seed.Default()
			if file != "" {
				data, err = seed.Read(file)
			}
			if err != nil {
				return err
			}
			gdb, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			res, err := seed.Apply(gdb, data)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d colors, %d categories\n", res.Colors, res.Categories)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML seed file (default: built-in palette)")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge-jobs",
		Short: "Delete finished jobs older than a cutoff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			cfg, err := config.LoadStore()
			if err != nil {
				return err
			}
			log := logx.New(cfg.LogLevel, cmd.ErrOrStderr())
			gdb, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			n, err := (&jobs.Repo{DB: gdb}).Purge(time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "purged %d jobs\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age of the oldest finished job to keep")
	return cmd
}

func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "tally"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func isPostgres(gdb *gorm.DB) bool {
	return gdb.Dialector.Name() == "postgres"
}

