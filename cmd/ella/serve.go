package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chazu/ellapad/examples"
	"github.com/chazu/ellapad/manifest"
	"github.com/chazu/ellapad/server"
)

// serve runs the playground server until interrupted.
func serve(cfg *manifest.Manifest) error {
	catalog, err := examples.OpenSeeded(cfg.DatabasePath(), cfg.SeedPath())
	if err != nil {
		return fmt.Errorf("open example catalog: %w", err)
	}
	defer catalog.Close()

	srv := server.New(
		server.WithQueueDepth(cfg.Server.Queue),
		server.WithCatalog(catalog),
	)
	defer srv.Stop()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigc)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(cfg.Server.Addr) }()

	select {
	case err := <-errc:
		return err
	case sig := <-sigc:
		fmt.Printf("\nreceived %s, shutting down\n", sig)
		return nil
	}
}

func runLSP() error {
	return server.NewLSP(version).Run()
}
