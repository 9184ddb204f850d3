package main

import (
	"github.com/spf13/cobra"

	"github.com/searchktools/fast-host/app"
	"github.com/searchktools/fast-host/config"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo modules",
		Long: `Start the self-host and serve the demo modules until SIGINT or SIGTERM.

Examples:
  fasthost serve
  fasthost serve --prefix=http://+:8080/ --concurrency=64
  fasthost serve --config=fasthost.json --metrics --gzip`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a, err := app.New(cfg, demoModules())
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "JSON configuration file")
	config.BindFlags(cmd.Flags())
	return cmd
}
