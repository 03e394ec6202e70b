// Package cmd provides the threatctl maintenance commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/NeuralTrust/ThreatGate/pkg/config"
	"github.com/NeuralTrust/ThreatGate/pkg/dependency_container"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache/event"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/database"
	infraLogger "github.com/NeuralTrust/ThreatGate/pkg/infra/logger"
	_ "github.com/NeuralTrust/ThreatGate/pkg/infra/migrations"
	"github.com/NeuralTrust/ThreatGate/pkg/version"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	envFile    string

	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "threatctl",
	Short: "threatctl - maintenance tool for ThreatGate",
	Long: `threatctl runs ThreatGate maintenance jobs on demand: sweeping expired
blocks, pushing pending ledger writes, verifying the ledger chain and managing
manual blocks.`,
	Version:       version.GetInfo().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}
		if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		logger = infraLogger.NewLogger("threatctl")
		if err := config.Load(configPath); err != nil {
			return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
		cfg = config.GetConfig()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config", "directory holding config.yaml")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before the config")
}

// withContainer opens the database and builds the full dependency graph for
// the duration of fn.
func withContainer(fn func(c *dependency_container.Container) error) error {
	db, err := database.NewDB(logger, &database.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		DBName:       cfg.Database.DBName,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: 4,
	})
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	container, err := dependency_container.NewContainer(dependency_container.ContainerDI{
		Cfg:            cfg,
		Logger:         logger,
		DB:             db,
		EventsRegistry: event.Registry,
	})
	if err != nil {
		return err
	}
	defer container.Close(logger)
	return fn(container)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
