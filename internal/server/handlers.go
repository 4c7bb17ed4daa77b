package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/round"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/tasks"
)

const maxBodyBytes = 1 << 20

// Stage1 resolves the candidate artists of a round.
type Stage1 interface {
	Resolve(ctx context.Context, token string, req round.Stage1Request) (*round.Stage1Result, error)
}

// Stage2 assembles the candidate track pool of a round.
type Stage2 interface {
	Assemble(ctx context.Context, token string, req round.Stage2Request) (*round.Stage2Result, error)
}

// Ticker runs maintenance passes and accepts healing reports.
type Ticker interface {
	Tick(ctx context.Context, opts tasks.TickOptions) (*tasks.TickResult, *tasks.HealingTask)
	Healing() *tasks.SelfHealingQueue
}

// Deps are the collaborators of the HTTP surface. Metrics may be nil.
type Deps struct {
	Stage1       Stage1
	Stage2       Stage2
	Ticker       Ticker
	Metrics      http.Handler
	AwaitHealing bool
	Logger       *log.Logger
}

// Server is the HTTP surface of the round pipeline and the maintenance scheduler.
type Server struct {
	router *BasicRouter
	deps   Deps
	logger *log.Logger
}

// New builds the server and registers every route.
func New(deps Deps) *Server {
	s := &Server{
		router: NewBasicRouter(),
		deps:   deps,
		logger: shared.WithLogger(deps.Logger, "component", "http"),
	}

	s.router.Use(Recoverer(s.logger), RequestLogger(s.logger))

	s.router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(s.healthz))
	s.router.Handle(http.MethodPost, "/round/stage1-init", RequireBearer(http.HandlerFunc(s.stage1)))
	s.router.Handle(http.MethodPost, "/round/stage2-candidates", RequireBearer(http.HandlerFunc(s.stage2)))
	s.router.Handler(&maintenanceHandler{server: s})
	if deps.Metrics != nil {
		s.router.Handle(http.MethodGet, "/metrics", deps.Metrics)
	}
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stage1(w http.ResponseWriter, r *http.Request) {
	var req round.Stage1Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	res, err := s.deps.Stage1.Resolve(r.Context(), TokenFromContext(r.Context()), req)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) stage2(w http.ResponseWriter, r *http.Request) {
	var req round.Stage2Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.ArtistIDs == nil {
		writeError(w, s.logger, fmt.Errorf("%w: artistIds is required", shared.ErrValidation))
		return
	}

	res, err := s.deps.Stage2.Assemble(r.Context(), TokenFromContext(r.Context()), req)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// maintenanceHandler serves the polled maintenance endpoints.
type maintenanceHandler struct {
	server *Server
}

func (h *maintenanceHandler) Routes() []string {
	return []string{"GET /maintenance/tick", "POST /maintenance/tick", "POST /maintenance/healing"}
}

func (h *maintenanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/maintenance/tick":
		h.tick(w, r)
	case "/maintenance/healing":
		h.healing(w, r)
	default:
		http.NotFound(w, r)
	}
}

type tickRequest struct {
	Token string `json:"token"`
}

// tick always answers 200; failures are part of the payload.
func (h *maintenanceHandler) tick(w http.ResponseWriter, r *http.Request) {
	var (
		req      tickRequest
		bodyErrs []string
	)
	if r.Method == http.MethodPost {
		if err := decodeBody(w, r, &req); err != nil {
			bodyErrs = append(bodyErrs, err.Error())
		}
	}
	if req.Token == "" {
		req.Token = BearerToken(r)
	}

	await := h.server.deps.AwaitHealing
	if v := r.URL.Query().Get("await"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			await = b
		}
	}

	res, _ := h.server.deps.Ticker.Tick(r.Context(), tasks.TickOptions{Token: req.Token, AwaitHealing: await})
	res.Errors = append(bodyErrs, res.Errors...)
	writeJSON(w, http.StatusOK, res)
}

type healingResponse struct {
	Queued bool `json:"queued"`
}

func (h *maintenanceHandler) healing(w http.ResponseWriter, r *http.Request) {
	var action models.HealingAction
	if err := decodeBody(w, r, &action); err != nil {
		writeError(w, h.server.logger, err)
		return
	}

	queued, err := h.server.deps.Ticker.Healing().Enqueue(r.Context(), action)
	if err != nil {
		writeError(w, h.server.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, healingResponse{Queued: queued})
}

// decodeBody reads a JSON body. An empty body decodes to the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body: %v", shared.ErrValidation, err)
	}
	return nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to its status code. Server-side failures are logged when logger is set.
func writeError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := shared.StatusCode(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
