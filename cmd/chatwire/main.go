// Package main runs the chatwire gateway: a multi-session messaging
// bridge that exposes session lifecycle management over HTTP and pushes
// client events to outbound webhooks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/chatwire/chatwire/pkg/config"
	"github.com/chatwire/chatwire/pkg/driver"
	"github.com/chatwire/chatwire/pkg/logging"
	"github.com/chatwire/chatwire/pkg/server"
	"github.com/chatwire/chatwire/pkg/session"
	"github.com/chatwire/chatwire/pkg/storage"
	"github.com/chatwire/chatwire/pkg/webhook"
)

const version = "0.1.0"

const shutdownGrace = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	port := flag.Int("port", 0, "listen port (overrides configuration)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chatwire %s\n", version)
		return
	}

	if err := run(*configPath, *port); err != nil {
		fmt.Fprintf(os.Stderr, "chatwire: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, portOverride int) error {
	cfg, err := appconfig.Load(configPath)
	if err != nil {
		return err
	}
	if portOverride > 0 {
		cfg.Port = portOverride
	}

	log, logErr := logging.NewLogger("main")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "chatwire: file logging unavailable: %v\n", logErr)
	}
	defer log.Close()

	log.Infof("chatwire %s starting", version)

	store, err := storage.NewCredentialStore(cfg.SessionsDir)
	if err != nil {
		return err
	}

	gate, err := webhook.NewGate(cfg.DisabledCallbacks)
	if err != nil {
		return err
	}

	webhookLog, _ := logging.NewLogger("webhook")
	defer webhookLog.Close()
	dispatcher := webhook.NewDispatcher(cfg.APIKey, cfg.WebhookTimeout, webhookLog)

	runtime, err := driver.NewRuntime()
	if err != nil {
		return err
	}
	defer func() {
		if err := runtime.Stop(); err != nil {
			log.Errorf("failed to stop driver runtime: %v", err)
		}
	}()

	sessionLog, _ := logging.NewLogger("session")
	defer sessionLog.Close()
	manager := session.NewManager(
		cfg,
		session.NewRegistry(),
		store,
		dispatcher,
		gate,
		runtime.NewClient,
		sessionLog,
	)

	// Bring back every session that has credentials on disk before the
	// HTTP surface opens.
	manager.RestoreAll()

	serverLog, _ := logging.NewLogger("server")
	defer serverLog.Close()
	srv := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: server.New(manager, serverLog).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.ListenAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("http shutdown: %v", err)
	}

	// Destroy live clients locally; credentials stay on disk so sessions
	// restore on the next start.
	manager.Shutdown(ctx)

	log.Infof("shutdown complete")
	return nil
}
