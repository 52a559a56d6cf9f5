package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heartland-scout/scout-cli/internal/model"
	"github.com/heartland-scout/scout-cli/internal/progress"
	"github.com/heartland-scout/scout-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST and SSE API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		s := &server{env: env, broker: progress.NewBroker()}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: s.routes(),
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

type server struct {
	env      *appEnv
	broker   *progress.Broker
	sweeping atomic.Bool
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/api/towns", s.handleTowns)
	r.Get("/api/runs", s.handleRuns)
	r.Post("/api/marathon/trigger", s.handleTrigger)

	r.Route("/api/scout/{town}", func(r chi.Router) {
		r.Get("/analysis", s.handleAnalysis)
		r.Get("/knowledge-base", s.handleKnowledgeBase)
		r.Get("/changelog", s.handleChangelog)
		r.Get("/stream", s.handleStream)
	})
	r.Post("/api/dossier/{town}", s.handleDossier)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// townParam normalizes the {town} path segment, writing a 404 on unknown
// towns.
func townParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	town, ok := model.NormalizeTown(chi.URLParam(r, "town"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown HDB town")
		return "", false
	}
	return town, true
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleTowns(w http.ResponseWriter, r *http.Request) {
	kbs, err := s.env.store.ListKnowledgeBases(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byTown := make(map[string]model.TownKnowledgeBase, len(kbs))
	for _, kb := range kbs {
		byTown[kb.Town] = kb
	}

	type townStatus struct {
		Town      string `json:"town"`
		TotalRuns int    `json:"total_runs"`
		LastRunAt string `json:"last_run_at,omitempty"`
	}
	out := make([]townStatus, 0, len(model.Towns()))
	for _, town := range model.Towns() {
		ts := townStatus{Town: town}
		if kb, ok := byTown[town]; ok {
			ts.TotalRuns = kb.TotalRuns
			ts.LastRunAt = kb.LastRunAt
		}
		out = append(out, ts)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Town:   r.URL.Query().Get("town"),
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}
	runs, err := s.env.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) loadKB(w http.ResponseWriter, r *http.Request) (*model.TownKnowledgeBase, bool) {
	town, ok := townParam(w, r)
	if !ok {
		return nil, false
	}
	kb, err := s.env.store.GetKnowledgeBase(r.Context(), town)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if kb == nil {
		writeError(w, http.StatusNotFound, "no analysis for this town yet")
		return nil, false
	}
	return kb, true
}

func (s *server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if kb, ok := s.loadKB(w, r); ok {
		writeJSON(w, http.StatusOK, kb.CurrentAnalysis)
	}
}

func (s *server) handleKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	if kb, ok := s.loadKB(w, r); ok {
		writeJSON(w, http.StatusOK, kb)
	}
}

func (s *server) handleChangelog(w http.ResponseWriter, r *http.Request) {
	if kb, ok := s.loadKB(w, r); ok {
		changelog := kb.Changelog
		if changelog == nil {
			changelog = []model.Delta{}
		}
		writeJSON(w, http.StatusOK, changelog)
	}
}

func (s *server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if !s.sweeping.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "a sweep is already running")
		return
	}

	go func() {
		defer s.sweeping.Store(false)
		// Detached from the request context: the sweep outlives the caller.
		results, err := s.env.pipeline(progress.NopSink{}).Sweep(context.Background())
		if err != nil {
			zap.L().Error("triggered sweep failed", zap.Error(err))
			return
		}
		zap.L().Info("triggered sweep finished", zap.Int("towns", len(results)))
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// rekeySink forwards pipeline events to the broker under a fixed stream ID,
// so an SSE subscriber can listen before the run ID exists.
type rekeySink struct {
	broker *progress.Broker
	id     string
}

func (s rekeySink) Publish(_ string, ev progress.Event) {
	s.broker.Publish(s.id, ev)
}

func (s *server) handleStream(w http.ResponseWriter, r *http.Request) {
	town, ok := townParam(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	streamID := uuid.New().String()
	events, cancel := s.broker.Subscribe(streamID)
	defer cancel()

	go func() {
		defer s.broker.Close(streamID)
		p := s.env.pipeline(rekeySink{broker: s.broker, id: streamID})
		if _, err := p.RunCycle(r.Context(), town); err != nil {
			zap.L().Error("streamed cycle failed",
				zap.String("town", town),
				zap.Error(err),
			)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (s *server) handleDossier(w http.ResponseWriter, r *http.Request) {
	town, ok := townParam(w, r)
	if !ok {
		return
	}

	var req struct {
		BusinessType string `json:"businessType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BusinessType == "" {
		writeError(w, http.StatusBadRequest, "businessType is required")
		return
	}

	kb, err := s.env.store.GetKnowledgeBase(r.Context(), town)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if kb == nil {
		writeError(w, http.StatusNotFound, "no analysis for this town yet")
		return
	}

	dossier, err := s.env.pipeline(progress.NopSink{}).GenerateDossier(r.Context(), town, req.BusinessType, &kb.CurrentAnalysis)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, dossier)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
