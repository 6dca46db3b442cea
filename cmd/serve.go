package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker HTTP endpoint",
	Long:  "Exposes health, async campaign execution, and status snapshots. Campaign CRUD stays in the control plane; this surface only runs work.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initExecutor(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		wd := pipeline.NewWatchdog(env.Store, cfg.Watchdog)
		go wd.Run(ctx)

		handler := newServeMux(ctx, env.Store, env.Executor)

		port := servePort
		if port == 0 {
			port = cfg.Serve.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("worker endpoint listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// serveStore is the slice of the store the HTTP surface reads.
type serveStore interface {
	Ping(ctx context.Context) error
	GetCampaign(ctx context.Context, id string) (*model.Campaign, error)
}

// campaignRunner executes one campaign end to end.
type campaignRunner interface {
	Execute(ctx context.Context, campaignID string, maxPerZip int) (*model.Summary, error)
}

// newServeMux builds the worker HTTP surface. Async executions inherit
// baseCtx, not the request context, so a client disconnect does not cancel
// a running campaign.
func newServeMux(baseCtx context.Context, st serveStore, runner campaignRunner) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := st.Ping(req.Context()); err != nil {
			zap.L().Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": "database unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/campaigns/{id}/execute", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		c, err := st.GetCampaign(req.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "campaign load failed"})
			return
		}
		if c == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
			return
		}
		if c.Status == model.CampaignRunning {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "campaign already running"})
			return
		}

		go func() {
			summary, err := runner.Execute(baseCtx, id, 0)
			if err != nil {
				zap.L().Error("async execution failed",
					zap.String("campaign_id", id),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("async execution finished",
				zap.String("campaign_id", id),
				zap.String("status", string(summary.Status)),
				zap.Float64("cost_usd", summary.CostUSD),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "campaign_id": id})
	})

	r.Get("/campaigns/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		c, err := st.GetCampaign(req.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "campaign load failed"})
			return
		}
		if c == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "campaign not found"})
			return
		}

		writeJSON(w, http.StatusOK, c)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
