package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/cprwiz/internal/config"
	"github.com/ShayCichocki/cprwiz/internal/server"
	"github.com/ShayCichocki/cprwiz/internal/validation"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the authoring JSON API",
	Long: `Serve the authoring core over HTTP.

The listen address defaults to server.addr (:8080). The config file in use
is watched: rule lists under validation.* take effect without a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	watchRules(rt.validator, rt.logger)

	srv, err := server.New(rt.svc, server.Options{
		Usage:          rt.usage(),
		RequestTimeout: rt.cfg.Server.RequestTimeout,
		Logger:         rt.logger,
	})
	if err != nil {
		return err
	}

	addr := rt.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt.logger.Info("starting server",
		zap.String("addr", addr),
		zap.String("provider", rt.cfg.LLM.Provider),
		zap.String("db", rt.db.Path()),
	)
	if err := srv.Serve(ctx, addr); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// watchRules reloads the rule lists when the config file changes. Other
// settings need a restart.
func watchRules(v *validation.Validator, logger *zap.Logger) {
	path := config.WatchPath()
	if path == "" {
		return
	}
	err := config.Watch(path, logger, func(cfg *config.Config) {
		v.SetRules(ruleSet(cfg))
	})
	if err != nil {
		logger.Warn("config watch disabled", zap.String("file", path), zap.Error(err))
	}
}
