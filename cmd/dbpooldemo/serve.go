package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/relaysql/dbpool"
)

func serveCmd(v *viper.Viper) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a pool and expose its status over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(v, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port for the status endpoint")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(v *viper.Viper, port int) error {
	log := newLogger()
	defer log.Sync() //nolint:errcheck

	factory, closeFactory, err := buildFactory(v)
	if err != nil {
		return err
	}
	defer closeFactory()

	p, err := dbpool.New(factory, poolOptionsFromViper(v, log))
	if err != nil {
		return fmt.Errorf("creating pool: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		handleStatus(w, p)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		p.Close()
		_ = srv.Shutdown(context.Background())
	}()

	log.Info("dbpooldemo listening", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// handleStatus reports per-worker index and lifecycle state as JSON.
func handleStatus(w http.ResponseWriter, p *dbpool.Pool) {
	workers := p.WorkerStates()
	status := make([]map[string]any, len(workers))
	for i, state := range workers {
		status[i] = map[string]any{
			"index": i,
			"state": state.String(),
		}
	}

	resp := map[string]any{
		"worker_count": len(workers),
		"workers":      status,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
