// Package api exposes the HTTP interface for the relay service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"apirelay/internal/config"
	"apirelay/internal/metrics"
	"apirelay/internal/probe"
	"apirelay/internal/registry"
	"apirelay/internal/relay"
)

// Server wires HTTP handlers to the registry, resolver and prober.
type Server struct {
	router   chi.Router
	registry *registry.Registry
	resolver *relay.Resolver
	prober   *probe.Prober
	logger   *zap.Logger
	cfg      config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	reg *registry.Registry,
	resolver *relay.Resolver,
	prober *probe.Prober,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		registry: reg,
		resolver: resolver,
		prober:   prober,
		logger:   logger,
		cfg:      cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/endpoints", func(r chi.Router) {
			r.Get("/", s.listEndpoints)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.getEndpoint)
				r.Put("/", s.putEndpoint)
				r.Delete("/", s.deleteEndpoint)
			})
		})
		r.Get("/match", s.match)
		r.Post("/trigger", s.trigger)
		r.Post("/probe", s.probe)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) listEndpoints(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     s.registry.Len(),
		"endpoints": s.registry.Snapshot(),
		"summary":   s.registry.Summary(),
	})
}

func (s *Server) getEndpoint(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, ok := s.registry.Normalize(name)
	if !ok {
		writeError(w, http.StatusNotFound, "endpoint not found")
		return
	}
	detail, _ := s.registry.Detail(name)
	writeJSON(w, http.StatusOK, map[string]any{"endpoint": def, "detail": detail})
}

func (s *Server) putEndpoint(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req endpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	def := req.toDefinition(name)
	if err := s.registry.Register(def); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrInvalidDefinition) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	stored, _ := s.registry.Normalize(def.Name())
	writeJSON(w, http.StatusOK, map[string]any{"endpoint": stored})
}

func (s *Server) deleteEndpoint(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.registry.Unregister(name)
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "status": "removed"})
}

func (s *Server) match(w http.ResponseWriter, r *http.Request) {
	trigger := r.URL.Query().Get("q")
	if trigger == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}
	candidates := s.registry.MatchAll(trigger)
	out := make([]matchResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, matchResponse{
			Name:       c.Name,
			Priority:   c.Priority,
			Definition: c.Definition,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"trigger": trigger, "matches": out})
}

func (s *Server) trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "missing message")
		return
	}
	def, ok := s.registry.MatchBest(req.Message)
	if !ok {
		writeError(w, http.StatusNotFound, "no endpoint matches message")
		return
	}
	if err := s.resolver.Allowed(def); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	params := relay.OverlayParams(def.Params, req.Args, req.Subject)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.FetchTimeout())
	defer cancel()
	text, path, source := s.resolver.Resolve(ctx, def, params)
	resp := triggerResponse{
		Endpoint: def.Name(),
		Type:     string(def.Type),
		Source:   string(source),
		Text:     text,
		Path:     path,
	}
	if source == relay.SourceError {
		writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) probe(w http.ResponseWriter, r *http.Request) {
	report := s.prober.Run(r.Context(), s.registry.Snapshot())
	writeJSON(w, http.StatusOK, probeResponse{
		Available:   report.Available,
		Unavailable: report.Unavailable,
		Rounds:      report.Rounds,
	})
}

// endpointRequest is the PUT body. The path name is prepended to the
// keyword list when absent, so the stored identity matches the route.
type endpointRequest struct {
	Keywords []string          `json:"keyword"`
	URLs     []string          `json:"url"`
	Type     string            `json:"type"`
	Params   map[string]string `json:"params"`
	Target   string            `json:"target"`
	Fuzzy    bool              `json:"fuzzy"`
	Priority int               `json:"priority"`
}

func (req endpointRequest) toDefinition(name string) registry.Definition {
	keywords := req.Keywords
	if name != "" && (len(keywords) == 0 || keywords[0] != name) {
		keywords = append([]string{name}, keywords...)
	}
	return registry.Definition{
		Keywords: keywords,
		URLs:     req.URLs,
		Type:     registry.ParseKind(req.Type, ""),
		Params:   req.Params,
		Target:   req.Target,
		Fuzzy:    req.Fuzzy,
		Priority: req.Priority,
	}
}

type matchResponse struct {
	Name       string              `json:"name"`
	Priority   int                 `json:"priority"`
	Definition registry.Definition `json:"definition"`
}

type triggerRequest struct {
	Message string   `json:"message"`
	Args    []string `json:"args"`
	Subject string   `json:"subject"`
}

type triggerResponse struct {
	Endpoint string `json:"endpoint"`
	Type     string `json:"type"`
	Source   string `json:"source"`
	Text     string `json:"text,omitempty"`
	Path     string `json:"path,omitempty"`
}

type probeResponse struct {
	Available   []string `json:"available"`
	Unavailable []string `json:"unavailable"`
	Rounds      int      `json:"rounds"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
