package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/howardwork830-creator/nomad-guide/internal/monitoring"
	"github.com/howardwork830-creator/nomad-guide/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rankings HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx, envOptions{persist: true})
		if err != nil {
			return err
		}
		defer e.Close()

		checker := monitoring.NewChecker(e.store, e.cache, e.breakers, e.limiters, dataSources, e.pipe.LastSuccessfulUpdate)
		collector := monitoring.NewCollector(e.store)

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet},
		}))

		r.Get("/api/rankings", func(w http.ResponseWriter, req *http.Request) {
			run, err := e.pipe.Rank(req.Context())
			if err != nil {
				zap.L().Error("rankings request failed", zap.Error(err))
				writeError(w, http.StatusBadGateway, "ranking run failed")
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/api/history", func(w http.ResponseWriter, req *http.Request) {
			filter := store.HistoryFilter{
				CountryKey: req.URL.Query().Get("country"),
				Days:       queryInt(req, "days", 7),
				Limit:      queryInt(req, "limit", 0),
			}
			snaps, err := e.store.History(req.Context(), filter)
			if err != nil {
				zap.L().Error("history request failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "history query failed")
				return
			}
			writeJSON(w, http.StatusOK, snaps)
		})

		r.Get("/api/trend/{country}", func(w http.ResponseWriter, req *http.Request) {
			key := chi.URLParam(req, "country")
			if _, ok := e.catalog.Get(key); !ok {
				writeError(w, http.StatusNotFound, "unknown destination")
				return
			}
			points, err := e.store.Trend(req.Context(), key, queryInt(req, "days", 30))
			if err != nil {
				zap.L().Error("trend request failed", zap.String("country", key), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "trend query failed")
				return
			}
			writeJSON(w, http.StatusOK, points)
		})

		r.Get("/api/quality", func(w http.ResponseWriter, req *http.Request) {
			report, err := collector.Collect(req.Context(), queryInt(req, "days", 7))
			if err != nil {
				zap.L().Error("quality request failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "quality query failed")
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
			report := checker.Check(req.Context())
			status := http.StatusOK
			if report.Status == monitoring.StatusDown {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, report)
		})

		r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
			if !checker.Ready(req.Context()) {
				writeError(w, http.StatusServiceUnavailable, "store unreachable")
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func queryInt(req *http.Request, key string, fallback int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
