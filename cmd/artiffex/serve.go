package main

import (
	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/artiffex/pkg/executor"
	"github.com/ravi-parthasarathy/artiffex/pkg/server"
	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"
)

func serveCmd(a *app) *cobra.Command {
	var listen, outDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive workflow API and event feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			store, err := a.store(outDir)
			if err != nil {
				return err
			}
			r := executor.New(workflow.NewGraph(), nil, svc,
				executor.WithLogger(a.logger), executor.WithStore(store))
			srv := server.New(r, a.logger)

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			err = srv.ListenAndServe(ctx, a.cfg.Listen)
			r.Wait()
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default from config, :8080)")
	cmd.Flags().StringVar(&outDir, "out", "", "directory generated and uploaded images are kept in (default from config, artiffex-out)")
	return cmd
}
