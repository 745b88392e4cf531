package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fass-go/internal/app"
	"fass-go/internal/config"
	"fass-go/internal/daemon"
	"fass-go/internal/fass"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
// It returns the config and the path it was read from.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a FassApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Backup", "BackupNow").
func newApp(operation, parameters string) (*app.FassApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewFassApp(cfg, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// newDaemonManager creates a FassApp together with the daemon controller.
func newDaemonManager(operation string) (*app.FassApp, *daemon.Manager, error) {
	cfg, configPath, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	a, err := app.NewFassApp(cfg, operation, "")
	if err != nil {
		return nil, nil, fmt.Errorf("initializing app: %w", err)
	}

	mgr, err := a.DaemonManager(configPath)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, mgr, nil
}

func formatPeriod(rec *fass.FileRecord) string {
	if !rec.AutoBackup {
		return "-"
	}
	return fmt.Sprintf("%d %s", rec.BackupInterval, rec.BackupFrequency)
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

var rootCmd = &cobra.Command{
	Use:          "fass",
	Short:        "Personal folder backup with automatic change tracking",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		backupRoot, _ := cmd.Flags().GetString("backup-root")
		if backupRoot == "" {
			backupRoot = defaults["backup_root"]
		}
		if backupRoot, err = filepath.Abs(backupRoot); err != nil {
			return fmt.Errorf("resolving backup root: %w", err)
		}

		indexType, _ := cmd.Flags().GetString("index")

		// Create config with defaults
		cfg := &config.Config{
			BaseDir:    defaults["base_dir"],
			BackupRoot: backupRoot,
			Index:      config.IndexConfig{Type: indexType},
		}
		cfg.ApplyDefaults()
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Initialize config file
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Backup Root: %s\n", cfg.BackupRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfig()
		if err != nil {
			return err
		}

		// Display config
		fmt.Printf("Configuration from %s:\n\n", configPath)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Backup Root: %s\n", cfg.BackupRoot)
		fmt.Printf("Settings:    %s\n", cfg.SettingsPath)
		fmt.Printf("Index:       %s (%s)\n", cfg.Index.Path, cfg.Index.Type)
		fmt.Printf("PID File:    %s\n", cfg.Daemon.PIDFile)
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup PATH",
	Short: "Mirror a folder into the backup root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Backup", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Backup(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Backed up %d file(s), %d unchanged, %d failed\n", report.Copied, report.Skipped, report.Failed)
		return nil
	},
}

// resync command
var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Re-check every tracked file and copy the changed ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("BackupNow", "")
		if err != nil {
			return err
		}
		defer a.Close()

		count, err := a.BackupNow(cmd.Context())
		if err != nil {
			return fmt.Errorf("resync failed: %w", err)
		}

		fmt.Printf("Backed up %d changed file(s)\n", count)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Records", "")
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.Records(cmd.Context())
		if err != nil {
			return err
		}

		if len(recs) == 0 {
			fmt.Println("No files tracked.")
			return nil
		}

		rows := make([][]string, 0, len(recs))
		for _, rec := range recs {
			rows = append(rows, []string{rec.OriginalPath, rec.BackupPath, rec.FileType, formatPeriod(rec)})
		}
		fmt.Println(renderTable(
			[]string{"Original", "Backup", "Type", "Auto-backup"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete PATH",
	Short: "Delete the backup copy of a file and stop tracking it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Delete", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Deleted backup %s\n", rec.BackupPath)
		return nil
	},
}

// auto command
var autoCmd = &cobra.Command{
	Use:   "auto PATH",
	Short: "Configure automatic backup of a tracked file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enable, _ := cmd.Flags().GetBool("enable")
		disable, _ := cmd.Flags().GetBool("disable")
		interval, _ := cmd.Flags().GetUint64("interval")
		unit, _ := cmd.Flags().GetString("unit")

		a, err := newApp("SetAutoBackup", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.SetAutoBackup(cmd.Context(), args[0], enable && !disable, interval, unit)
		if err != nil {
			return err
		}

		if rec.AutoBackup {
			fmt.Printf("Auto-backup enabled for %s every %s\n", rec.OriginalPath, formatPeriod(rec))
		} else {
			fmt.Printf("Auto-backup disabled for %s\n", rec.OriginalPath)
		}
		return nil
	},
}

// settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage global auto-backup settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show global auto-backup settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Settings", "")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Settings()
		if err != nil {
			return err
		}

		fmt.Printf("Auto-backup: %s\n", onOff(s.AutoBackupEnabled))
		fmt.Printf("Interval:    %d min\n", s.IntervalMinutes)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change global auto-backup settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("UpdateSettings", "")
		if err != nil {
			return err
		}
		defer a.Close()

		flags := cmd.Flags()
		s, err := a.UpdateSettings(func(s *fass.Settings) {
			if enable, _ := flags.GetBool("enable"); enable {
				s.AutoBackupEnabled = true
			}
			if disable, _ := flags.GetBool("disable"); disable {
				s.AutoBackupEnabled = false
			}
			if flags.Changed("interval") {
				s.IntervalMinutes, _ = flags.GetInt("interval")
			}
		})
		if err != nil {
			return err
		}

		fmt.Printf("Auto-backup: %s, interval %d min\n", onOff(s.AutoBackupEnabled), s.IntervalMinutes)
		return nil
	},
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain the backup index",
}

var indexMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rewrite a legacy index in the current format",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MigrateIndex", "")
		if err != nil {
			return err
		}
		defer a.Close()

		migrated, err := a.MigrateIndex(cmd.Context())
		if err != nil {
			return err
		}

		if migrated {
			fmt.Println("Index migrated.")
		} else {
			fmt.Println("Index is already current.")
		}
		return nil
	},
}

// daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Control the background auto-backup daemon",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, mgr, err := newDaemonManager("DaemonStart")
		if err != nil {
			return err
		}
		defer a.Close()

		pid, err := mgr.Start(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Daemon started (PID: %d)\n", pid)
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, mgr, err := newDaemonManager("DaemonStop")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := mgr.Stop(cmd.Context())
		if err != nil {
			return err
		}

		if res.Forced {
			fmt.Printf("Daemon force-killed (PID: %d)\n", res.PID)
		} else {
			fmt.Printf("Daemon stopped (PID: %d)\n", res.PID)
		}
		return nil
	},
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, mgr, err := newDaemonManager("DaemonRestart")
		if err != nil {
			return err
		}
		defer a.Close()

		pid, err := mgr.Restart(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Daemon restarted (PID: %d)\n", pid)
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, mgr, err := newDaemonManager("DaemonStatus")
		if err != nil {
			return err
		}
		defer a.Close()

		report := mgr.Status()
		if isTerminal() {
			fmt.Printf("%s %s\n", report.Glyph(), report)
		} else {
			fmt.Println(report)
		}
		return nil
	},
}

var daemonKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Kill the daemon without a graceful shutdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, mgr, err := newDaemonManager("DaemonKill")
		if err != nil {
			return err
		}
		defer a.Close()

		pid, err := mgr.Kill()
		if err != nil {
			return err
		}

		fmt.Printf("Daemon killed (PID: %d)\n", pid)
		return nil
	},
}

var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the daemon in the foreground",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := app.NewDaemonApp(cfg, os.Stdout, os.Stderr)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		defer a.Close()

		return a.RunDaemon(cmd.Context())
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("backup-root", "", "Directory backups are written to (default ~/Backup)")
	configInitCmd.Flags().String("index", "json", "Index backend: json or sqlite")
	configCmd.AddCommand(configListCmd)

	// auto flags
	autoCmd.Flags().Bool("enable", false, "Enable auto-backup")
	autoCmd.Flags().Bool("disable", false, "Disable auto-backup")
	autoCmd.Flags().Uint64("interval", 1, "Interval between checks")
	autoCmd.Flags().String("unit", string(fass.FrequencyHours), "Interval unit: minutes, hours or days")
	autoCmd.MarkFlagsMutuallyExclusive("enable", "disable")
	autoCmd.MarkFlagsOneRequired("enable", "disable")

	// settings subcommands
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsSetCmd.Flags().Bool("enable", false, "Enable auto-backup")
	settingsSetCmd.Flags().Bool("disable", false, "Disable auto-backup")
	settingsSetCmd.Flags().Int("interval", fass.DefaultIntervalMinutes, "Global check interval in minutes")
	settingsSetCmd.MarkFlagsMutuallyExclusive("enable", "disable")

	// index subcommands
	indexCmd.AddCommand(indexMigrateCmd)

	// daemon subcommands
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonRestartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonKillCmd)
	daemonCmd.AddCommand(daemonRunCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(resyncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(autoCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(daemonCmd)
}
