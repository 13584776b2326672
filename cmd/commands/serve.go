package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ncobase/genqueue/cmd/provider"
	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/logging/logger"
	"github.com/ncobase/genqueue/version"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 3 * time.Second // service shutdown timeout
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and queue workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			// cobra owns the command line
			_ = flag.CommandLine.Parse(nil)
			if configFile != "" {
				config.SetPath(configFile)
			}

			logger.SetVersion(version.GetVersionInfo().Version)
			conf, err := config.Init()
			if err != nil {
				return fmt.Errorf("[Config] Initialization error: %w", err)
			}

			cleanupLogger, err := logger.New(conf.Logger)
			if err != nil {
				return fmt.Errorf("[Logger] Initialization error: %w", err)
			}
			defer cleanupLogger()

			logger.Infof(context.Background(), "Starting %s", conf.AppName)
			return runServer(conf)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	return cmd
}

// runServer creates and runs HTTP server
func runServer(conf *config.Config) error {
	handler, cleanup, err := provider.NewServer(conf)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer cleanup()

	listener, err := createListener(conf)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	defer func(listener net.Listener) {
		_ = listener.Close()
	}(listener)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		logger.Infof(context.Background(), "Listening and serving HTTP on: %s", srv.Addr)
		if err := srv.Serve(listener); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
				logger.Errorf(context.Background(), "Listen error: %s", err)
			} else {
				logger.Infof(context.Background(), "Server closed")
			}
		}
	}()

	return gracefulShutdown(srv, errChan)
}

// createListener creates network listener
func createListener(conf *config.Config) (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", conf.Host, conf.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("error starting server: %w", err)
	}

	// update port if dynamically allocated
	if conf.Port == 0 {
		conf.Port = listener.Addr().(*net.TCPAddr).Port
	}

	return listener, nil
}

// gracefulShutdown stops accepting requests on SIGINT or SIGTERM and waits
// up to shutdownTimeout for in flight ones.
func gracefulShutdown(srv *http.Server, errChan chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)

	case <-quit:
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Errorf(context.Background(), "Shutdown error: %v", err)
			return fmt.Errorf("shutdown error: %w", err)
		}
		logger.Debugf(context.Background(), "Shutdown completed within %s", shutdownTimeout)
		return nil
	}
}
