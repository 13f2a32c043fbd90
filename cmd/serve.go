package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lodging-research/internal/model"
	"github.com/sells-group/lodging-research/internal/session"
	"github.com/sells-group/lodging-research/internal/store"
)

var servePort int

// researchRunner is the orchestrator surface the API needs.
type researchRunner interface {
	Run(ctx context.Context, req *model.ResearchRequest) (*model.ResearchRecord, error)
}

// sessionAPI is the session manager surface the API needs.
type sessionAPI interface {
	Start(ctx context.Context, req *model.ResearchRequest, record *model.ResearchRecord) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	Apply(ctx context.Context, sessionID string, action model.ValidationAction) (*model.Session, error)
}

// apiServer serves the validation API over a research orchestrator.
type apiServer struct {
	runner    researchRunner
	sessions  sessionAPI
	store     store.Store
	manifests func(model.EntityKind) (*model.FieldManifest, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the research and validation API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{
			runner:    env.Orchestrator,
			sessions:  env.Sessions,
			store:     env.Store,
			manifests: manifestForKind,
		}

		// Fold accumulated corrections back into source profiles on an
		// interval while the server runs.
		go learnLoop(ctx, env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(api),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(s *apiServer) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/research", s.handleResearch)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/actions", s.handleAction)
			r.Get("/corrections", s.handleCorrections)
		})
	})

	return r
}

// sessionResponse is a session plus, once finalized, the values-only view
// handed to downstream consumers.
type sessionResponse struct {
	*model.Session
	Values map[string]any `json:"values,omitempty"`
}

func sessionPayload(sess *model.Session) sessionResponse {
	resp := sessionResponse{Session: sess}
	if sess.Finalized {
		resp.Values = sess.Record.ValueMap()
	}
	return resp
}

func (s *apiServer) handleResearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EntityKind string `json:"entity_kind"`
		model.Identity
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.EntityKind == "" {
		body.EntityKind = string(model.EntityLodging)
	}

	kind := model.EntityKind(body.EntityKind)
	m, err := s.manifests(kind)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := model.NewResearchRequest(kind, body.Identity, m)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := s.runner.Run(r.Context(), req)
	if err != nil {
		zap.L().Error("research pass failed",
			zap.String("entity", body.Name),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "research pass failed")
		return
	}

	sess, err := s.sessions.Start(r.Context(), req, record)
	if err != nil {
		zap.L().Error("start session failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "start session failed")
		return
	}

	respondJSON(w, http.StatusCreated, sessionPayload(sess))
}

func (s *apiServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			respondError(w, http.StatusNotFound, "unknown session")
			return
		}
		respondError(w, http.StatusInternalServerError, "load session failed")
		return
	}
	respondJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *apiServer) handleAction(w http.ResponseWriter, r *http.Request) {
	var action model.ValidationAction
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := action.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := s.sessions.Apply(r.Context(), chi.URLParam(r, "id"), action)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrUnknownSession):
			respondError(w, http.StatusNotFound, "unknown session")
		case errors.Is(err, session.ErrSessionFinalized):
			respondError(w, http.StatusConflict, "session is finalized")
		case errors.Is(err, session.ErrUnknownField), errors.Is(err, model.ErrManifestViolation):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			zap.L().Error("apply action failed",
				zap.String("session_id", chi.URLParam(r, "id")),
				zap.Error(err),
			)
			respondError(w, http.StatusInternalServerError, "apply action failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *apiServer) handleCorrections(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrUnknownSession) {
			respondError(w, http.StatusNotFound, "unknown session")
			return
		}
		respondError(w, http.StatusInternalServerError, "load session failed")
		return
	}

	entries, err := s.store.ListCorrections(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "list corrections failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"corrections": entries})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
