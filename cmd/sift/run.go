package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/sift/config"
	srv "github.com/mohammad-safakhou/sift/internal/server"
	"github.com/mohammad-safakhou/sift/internal/store"
)

func runCMD() *cobra.Command {
	var cfgPath string
	var run = &cobra.Command{
		Use:   "run",
		Short: "Execute a single pipeline run and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			ctx := context.Background()
			st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
			if err != nil {
				return err
			}
			defer st.DB.Close()

			pipe := srv.BuildPipeline(cfg, st)
			return pipe.Run(ctx, "manual")
		},
	}
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}
