package main

import (
	"fmt"
	"os"

	"github.com/de-tools/account-review/pkg/app"
	"github.com/de-tools/account-review/pkg/config"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/pipeline"
	"github.com/de-tools/account-review/pkg/runtime/terminal"
	"github.com/de-tools/account-review/pkg/server"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:          "ars-web",
		Short:        "Serve account review runs over HTTP",
		SilenceUsage: true,
		RunE:         runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the settings file; without it settings come from ARS_ environment variables")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	settings, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := terminal.NewLogger(os.Stdout, settings.Logging.Level, settings.Logging.Pretty)
	ctx := logger.WithContext(cmd.Context())

	a, err := app.Open(ctx, settings)
	if err != nil {
		return err
	}
	defer a.Close()

	reviewer, err := a.Reviewer(settings.Paths.OutputDir, pipeline.Options{
		Modules:  settings.Pipeline.Modules,
		SkipDeck: settings.Pipeline.SkipDeck,
	})
	if err != nil {
		return fmt.Errorf("failed to create reviewer: %w", err)
	}

	logger.Info().Int("clients", len(settings.Clients)).Int("modules", len(a.Registry.IDs())).Msg("settings loaded")

	api := server.NewWebAPI(logger, server.Config{
		Addr: settings.Server.Addr,
		Dependencies: server.Dependencies{
			History:  a.History,
			Registry: a.Registry,
			Reviewer: reviewer,
			Clients: func(clientID, month string) (domain.ClientInfo, error) {
				c, err := settings.Client(clientID)
				if err != nil {
					return domain.ClientInfo{}, err
				}
				return c.ClientInfo(clientID, month), nil
			},
		},
	})
	return api.Start()
}
