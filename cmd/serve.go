package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/recipe-cli/internal/server"
)

var (
	servePort          int
	serveHealthSeconds int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := server.New(server.Options{
			Config:       cfg.Server,
			Auth:         server.HeaderAuthenticator{Header: cfg.Auth.UserHeader},
			Orchestrator: env.Orchestrator,
			Web:          env.Web,
			Store:        env.Store,
			Checker:      env.Checker,
			Metrics:      env.Metrics,
		})

		return runServe(ctx, env, srv, time.Duration(cfg.Cache.PruneIntervalMins)*time.Minute,
			time.Duration(serveHealthSeconds)*time.Second)
	},
}

// runner is the part of the server the lifecycle needs.
type runner interface {
	Run(ctx context.Context) error
}

// runServe runs the HTTP server, cache pruner and health checker until ctx
// is cancelled or the server fails.
func runServe(ctx context.Context, env *pipelineEnv, srv runner, pruneEvery, healthEvery time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		env.Cache.RunPruner(gctx, pruneEvery)
		return nil
	})
	g.Go(func() error {
		env.Checker.Run(gctx, healthEvery)
		return nil
	})

	err := g.Wait()
	zap.L().Info("serve: stopped", zap.Error(err))
	return err
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().IntVar(&serveHealthSeconds, "health-interval", 30, "seconds between background health checks")
	rootCmd.AddCommand(serveCmd)
}
