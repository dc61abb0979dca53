package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/etienne-dldc/lomasi/apps"
	"github.com/etienne-dldc/lomasi/core"
	"github.com/etienne-dldc/lomasi/internal/config"
	"github.com/etienne-dldc/lomasi/mail"
	"github.com/etienne-dldc/lomasi/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func run() error {
	cfg := config.EnvVars{}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.GetEnv() == "DEV" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	displayAppname(cfg.GetAppName())

	registry, err := apps.LoadFile(cfg.GetAppsConfigPath())
	if err != nil {
		return err
	}
	for _, app := range registry.Apps() {
		logger.Info().Str("origin", app.Origin).Msg("app configured")
	}

	// The log mailer prints magic links instead of delivering them; swap in a
	// real Mailer implementation for production deployments.
	mailer := mail.LogMailer{Logger: logger}

	service, err := core.New(registry, mailer,
		core.WithSkipOriginCheck(cfg.GetSkipOriginCheck()),
		core.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	srv, err := server.New(registry, service,
		server.WithSkipOriginCheck(cfg.GetSkipOriginCheck()),
		server.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
