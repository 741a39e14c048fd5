package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairline-labs/fairline/internal/loop"
	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the compliance API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initLoop(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
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

func newRouter(env *loopEnv) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		snap, err := monitoring.NewCollector(env.Store).Collect(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	r.Get("/subjects", func(w http.ResponseWriter, r *http.Request) {
		subjects, err := env.Store.ListSubjects(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
	})

	r.Route("/subjects/{subjectID}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			profile, err := env.Store.LoadProfile(r.Context(), chi.URLParam(r, "subjectID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			if profile == nil {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown subject"})
				return
			}
			writeJSON(w, http.StatusOK, profile)
		})

		r.Get("/plans", func(w http.ResponseWriter, r *http.Request) {
			plans, err := env.Store.ListPlans(r.Context(), chi.URLParam(r, "subjectID"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
		})

		r.Post("/process", func(w http.ResponseWriter, r *http.Request) {
			subjectID := chi.URLParam(r, "subjectID")
			var req struct {
				AffectedEntityIDs []string `json:"affected_entity_ids"`
			}
			if r.Body != nil && r.ContentLength != 0 {
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
					return
				}
			}

			// Cycles outlive the request, so they must not inherit its context.
			if err := env.Coordinator.Enqueue(context.Background(), loop.Request{
				SubjectID:         subjectID,
				AffectedEntityIDs: req.AffectedEntityIDs,
			}); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":  "accepted",
				"subject": subjectID,
			})
		})

		r.Post("/outcomes", func(w http.ResponseWriter, r *http.Request) {
			subjectID := chi.URLParam(r, "subjectID")
			var req struct {
				EntityID     string             `json:"entity_id"`
				RuleID       model.RuleID       `json:"rule_id"`
				StrategyType model.StrategyType `json:"strategy_type"`
				Outcome      model.OutcomeType  `json:"outcome"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
				return
			}
			if req.EntityID == "" || req.RuleID == "" || req.Outcome == "" {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "entity_id, rule_id, and outcome are required"})
				return
			}

			if err := env.Coordinator.RecordOutcome(context.Background(), subjectID, req.EntityID, req.RuleID, req.StrategyType, req.Outcome); err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":  "recorded",
				"subject": subjectID,
				"entity":  req.EntityID,
			})
		})

		r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			flusher, ok := w.(http.Flusher)
			if !ok {
				writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "streaming unsupported"})
				return
			}

			subjectID := chi.URLParam(r, "subjectID")
			events, cancel := env.Bus.Subscribe(subjectID)
			defer cancel()

			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			flusher.Flush()

			for {
				select {
				case <-r.Context().Done():
					return
				case ev, open := <-events:
					if !open {
						return
					}
					data, err := json.Marshal(ev)
					if err != nil {
						continue
					}
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Phase, data)
					flusher.Flush()
				}
			}
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
