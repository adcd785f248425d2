package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/feedbackAuth/internal/httpapi"
)

func newServeCmd(configFile *string) *cobra.Command {
	var (
		embeddedRedis bool
		addr          string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configFile, embeddedRedis)
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.engine.SecurityReport()
			a.logger.WithFields(logrus.Fields{
				"signing":           report.SigningAlgorithm,
				"strict_validation": report.StrictValidation,
				"access_ttl":        report.AccessTTL.String(),
				"refresh_ttl":       report.RefreshTTL.String(),
			}).Info("auth engine ready")
			for _, w := range report.Warnings() {
				a.logger.Warn(w)
			}

			if addr == "" {
				addr = a.settings.Server.Addr
			}
			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr: addr,
				Handler: httpapi.NewRouter(httpapi.Options{
					Engine:  a.engine,
					Logger:  a.logger.WithField("component", "http"),
					Metrics: a.metrics,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.WithField("addr", addr).Info("listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.settings.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&embeddedRedis, "embedded-redis", false, "run an in-process redis (development only)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
