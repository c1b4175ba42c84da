package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/valoracion/internal/intake"
	"github.com/dshills/valoracion/internal/server"
	"github.com/dshills/valoracion/internal/store"
	"github.com/spf13/cobra"
)

type serveFlags struct {
	addr   string
	db     string
	tables string
	redact bool
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scoring and intake HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, f, nil)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.addr, "addr", envOr("VALORACION_ADDR", ":8080"), "Listen address")
	flags.StringVar(&f.db, "db", envOr("VALORACION_DB", store.DefaultConfig().Path), "SQLite database path")
	flags.StringVar(&f.tables, "tables", envOr("VALORACION_TABLES", ""), "Built-in table set name or YAML file")
	flags.BoolVar(&f.redact, "redact", true, "Redact personal identifiers from notes before storing")

	return cmd
}

// runServe blocks until ctx is cancelled or the listener fails. When ready
// is non-nil it receives the bound address once the server is listening.
func runServe(ctx context.Context, f *serveFlags, ready chan<- string) error {
	logger := log.New(os.Stderr, "", log.LstdFlags)

	engine, err := loadEngine(f.tables)
	if err != nil {
		return exitError(3, "failed to load tables: %v", err)
	}

	st, err := store.New(store.Config{Path: f.db})
	if err != nil {
		return exitError(4, "failed to open store: %v", err)
	}
	defer st.Close()

	svc := intake.NewService(engine, st, intake.Options{Redact: f.redact})
	srv := &http.Server{
		Handler:           server.NewRouter(&server.Container{Intake: svc, Logger: logger}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.addr, err)
	}
	logger.Printf("valoracion %s listening on %s (tables %s, db %s)", version, ln.Addr(), engine.Tables().Name, f.db)
	if ready != nil {
		ready <- ln.Addr().String()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
