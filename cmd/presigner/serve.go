package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stefando/uploadpresigner/internal/app"
	"github.com/stefando/uploadpresigner/internal/config"
	"github.com/stefando/uploadpresigner/internal/logging"
)

type serveFlags struct {
	Addr string
}

func runServe(ctx context.Context, rf rootFlags, sf serveFlags) error {
	cfg, err := config.Load(rf.EnvFile)
	if err != nil {
		return err
	}
	if sf.Addr != "" {
		cfg.ListenAddr = sf.Addr
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout + 5*time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.ListenAddr,
			"bucket":  cfg.Bucket,
			"backend": cfg.StorageBackend,
			"mount":   cfg.MountPath,
		}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func runCheckConfig(out io.Writer, rf rootFlags) error {
	cfg, err := config.Load(rf.EnvFile)
	if err != nil {
		return err
	}

	credentials := "default chain"
	if cfg.HasStaticCredentials() {
		credentials = "static keys"
	}
	if cfg.RoleARN != "" {
		credentials += " + assume role " + cfg.RoleARN
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "backend\t%s\n", cfg.StorageBackend)
	fmt.Fprintf(tw, "region\t%s\n", cfg.Region)
	fmt.Fprintf(tw, "bucket\t%s\n", cfg.Bucket)
	fmt.Fprintf(tw, "endpoint\t%s\n", cfg.Endpoint)
	fmt.Fprintf(tw, "path style\t%t\n", cfg.UsePathStyle)
	fmt.Fprintf(tw, "credentials\t%s\n", credentials)
	fmt.Fprintf(tw, "upload prefix\t%s\n", cfg.UploadPrefix)
	fmt.Fprintf(tw, "presign expiration\t%s\n", cfg.PresignExpiration)
	fmt.Fprintf(tw, "part size bytes\t%d\n", cfg.PartSizeBytes())
	fmt.Fprintf(tw, "allowed origins\t%v\n", cfg.AllowedOrigins)
	fmt.Fprintf(tw, "listen addr\t%s\n", cfg.ListenAddr)
	fmt.Fprintf(tw, "mount path\t%s\n", cfg.MountPath)
	fmt.Fprintf(tw, "request timeout\t%s\n", cfg.RequestTimeout)
	fmt.Fprintf(tw, "metrics\t%t\n", cfg.MetricsEnabled)
	return tw.Flush()
}
