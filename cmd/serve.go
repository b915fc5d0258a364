package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/debtlink/internal/reconcile"
	"github.com/sells-group/debtlink/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read-only reporting API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		rs, err := loadRules()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(s, reconcile.New(s, rs)),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the reporting endpoints. Read-only: writes go through
// the CLI, never the API.
func buildRouter(s store.Store, r *reconcile.Reconciler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Get("/companies/{id}/coverage", func(w http.ResponseWriter, req *http.Request) {
		companyID, ok := companyParam(w, req)
		if !ok {
			return
		}
		metrics, err := r.Coverage(req.Context(), companyID)
		if err != nil {
			zap.L().Error("coverage request failed", zap.Int64("company_id", companyID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "coverage unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, metrics)
	})

	router.Get("/companies/{id}/links", func(w http.ResponseWriter, req *http.Request) {
		companyID, ok := companyParam(w, req)
		if !ok {
			return
		}
		links, err := s.ListLinks(req.Context(), companyID)
		if err != nil {
			zap.L().Error("links request failed", zap.Int64("company_id", companyID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "links unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, links)
	})

	return router
}

func companyParam(w http.ResponseWriter, req *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid company id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
