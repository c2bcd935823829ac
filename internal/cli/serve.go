package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/kanban/internal/mockapi"
	"github.com/idilsaglam/kanban/internal/store/jsonstore"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr     string
		dataFile string
		failRate float64
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local todo API for development",
		Long: `Run an HTTP server that speaks the same /todos API as dummyjson.

Point the board at it with --api-url http://<addr>/todos. With --fail-rate
a share of requests fail with 503 so error handling can be tried out.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := a.cfg.Serve
			if cmd.Flags().Changed("addr") {
				opts.Addr = addr
			}
			if cmd.Flags().Changed("data") {
				opts.DataFile = dataFile
			}
			if cmd.Flags().Changed("fail-rate") {
				opts.FailRate = failRate
			}
			if opts.DataFile == jsonstore.DefaultFileName {
				p, err := jsonstore.DefaultPath()
				if err != nil {
					return failf("serve: %v", err)
				}
				opts.DataFile = p
			}
			if opts.FailRate < 0 || opts.FailRate > 1 {
				return usagef("serve: --fail-rate must be within [0,1]")
			}

			srv, err := mockapi.New(mockapi.Options{
				DataPath: opts.DataFile,
				FailRate: opts.FailRate,
				Logger:   a.logger,
			})
			if err != nil {
				return failf("serve: %v", err)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(opts.Addr) }()

			select {
			case err := <-errCh:
				if err != nil {
					return failf("serve: %v", err)
				}
				return nil
			case <-cmd.Context().Done():
			}
			a.logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return failf("shutdown: %v", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8089)")
	cmd.Flags().StringVar(&dataFile, "data", "", "persist todos to this JSON file (bare --data: ./"+jsonstore.DefaultFileName+")")
	cmd.Flags().Lookup("data").NoOptDefVal = jsonstore.DefaultFileName
	cmd.Flags().Float64Var(&failRate, "fail-rate", 0, "share of requests that fail with 503")
	return cmd
}
