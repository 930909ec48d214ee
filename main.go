package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/guessbox/gameserver/catalog"
	"github.com/guessbox/gameserver/config"
	"github.com/guessbox/gameserver/logger"
	"github.com/guessbox/gameserver/server"
)

const releaseVersion = "0.1.0"

func main() {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "guessbox",
		Short:         "Two-player guess-the-hidden-object game server.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, verbose)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&configPath, "config", "c", ".", "directory containing config.yaml (env: GUESSBOX_CONFIG)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging (env: GUESSBOX_VERBOSE)")

	v := viper.New()
	v.SetEnvPrefix("GUESSBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("guessbox v{{.Version}}\n")

	cobra.CheckErr(cmd.Execute())
}

func run(configPath string, verbose bool) error {
	// Initialize logger
	logger.Init(verbose)

	// Optional .env file for local development
	if err := godotenv.Load(); err == nil {
		logger.Log.Debug("Loaded environment from .env")
	}

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Load the object catalog
	cat, err := catalog.Load(cfg.Game.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load object catalog: %w", err)
	}
	logger.Log.Infof("Object catalog loaded with %d entities", cat.Len())

	// Start the game server
	gameServer := server.NewGameServer(cfg, cat)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Log.Infof("Received %s, shutting down", sig)
		gameServer.Shutdown()
	}()

	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	return gameServer.Start()
}
