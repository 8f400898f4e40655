package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"fileshare/internal/app"
	"fileshare/internal/config"
	"fileshare/internal/encryption"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

// loadConfig resolves the config file and loads defaults, file and environment.
func loadConfig() (*config.Config, error) {
	path, err := app.ResolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "serve", "reconcile").
func newApp(ctx context.Context, operation string) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(ctx, cfg, operation, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:           "fileshare",
	Short:         "HTTP file sharing service",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.Serve(ctx)
		a.Finish(err)
		return err
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "migrate")
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.MigrationVersion()
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		fmt.Printf("Database schema at version %d\n", version)
		return nil
	},
}

// reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Remove blobs no file references",
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		a, err := newApp(cmd.Context(), "reconcile")
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Reconcile(cmd.Context(), dryRun)
		a.Finish(err)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}

		for _, p := range report.Orphans {
			fmt.Println(p)
		}
		if dryRun {
			fmt.Printf("Scanned %d blob(s), %d orphan(s) found (dry run)\n", report.Scanned, len(report.Orphans))
		} else {
			fmt.Printf("Scanned %d blob(s), removed %d orphan(s)\n", report.Scanned, report.Removed)
		}
		return nil
	},
}

// keygen command
var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the age key pair for encryption at rest",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		if cfg.Encryption.PublicKeyPath == "" {
			cfg.Encryption.PublicKeyPath = defaults["public_key_path"]
		}
		if cfg.Encryption.PrivateKeyPath == "" {
			cfg.Encryption.PrivateKeyPath = defaults["private_key_path"]
		}

		passphrase := cfg.Encryption.Passphrase
		if passphrase == "" {
			passphrase, err = promptPassphrase()
			if err != nil {
				return err
			}
		}

		enc := encryption.NewAgeEncryptor(cfg.Encryption)
		if err := enc.Setup(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		fmt.Println("Set ENCRYPTION_TYPE=age and ENCRYPTION_PASSPHRASE to enable encryption.")
		return nil
	},
}

// promptPassphrase reads a passphrase twice from the terminal without echo.
func promptPassphrase() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal to prompt for a passphrase: set ENCRYPTION_PASSPHRASE")
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm passphrase: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	return string(first), nil
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the built-in defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			defaults, err := app.GetDefaults()
			if err != nil {
				return fmt.Errorf("failed to get defaults: %w", err)
			}
			path = defaults["config_path"]
		}

		if err := config.Init(path, config.Default()); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Blob.S3.SecretAccessKey != "" {
			cfg.Blob.S3.SecretAccessKey = "<redacted>"
		}

		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $CONFIG_PATH or ~/.config/fileshare.toml)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	// root commands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Bool("dry-run", false, "Report orphans without removing them")
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(configCmd)
}
