// Package httpapi is the gateway's JSON-over-HTTP transport: the three
// endpoints spec'd for clients (public-key, execute, usage) plus the
// operational surface (healthz, metrics). It owns request/response
// encoding and bearer-token authentication; all business logic lives in
// internal/orchestrator, internal/keystore, and internal/quota.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/echolia/inference-gateway/internal/apierror"
	"github.com/echolia/inference-gateway/internal/identity"
	"github.com/echolia/inference-gateway/internal/keystore"
	"github.com/echolia/inference-gateway/internal/logger"
	"github.com/echolia/inference-gateway/internal/metrics"
	"github.com/echolia/inference-gateway/internal/orchestrator"
	"github.com/echolia/inference-gateway/internal/quota"
	"github.com/echolia/inference-gateway/internal/tasks"
	"github.com/echolia/inference-gateway/pkg/health"
)

// Server is the gateway's HTTP transport.
type Server struct {
	addr       string
	resolver   identity.Resolver
	keys       *keystore.KeyStore
	ledger     *quota.Ledger
	orch       *orchestrator.Orchestrator
	checker    *health.Checker
	log        logger.Logger
	httpServer *http.Server
}

// New wires a Server to the gateway's core components. log may be nil.
func New(addr string, resolver identity.Resolver, keys *keystore.KeyStore, ledger *quota.Ledger, orch *orchestrator.Orchestrator, checker *health.Checker, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Server{
		addr: addr, resolver: resolver, keys: keys,
		ledger: ledger, orch: orch, checker: checker, log: log,
	}
}

// buildMux assembles the route table. Split out from Start so tests can
// exercise the handlers directly via httptest without binding a port.
func (s *Server) buildMux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/public-key", withRequestID(s.authenticate(s.handlePublicKey)))
	mux.HandleFunc("POST /v1/execute", withRequestID(s.authenticate(s.handleExecute)))
	mux.HandleFunc("GET /v1/usage", withRequestID(s.authenticate(s.handleUsage)))
	mux.HandleFunc("GET /healthz", withRequestID(s.handleHealthz))
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

type requestIDContextKey struct{}

// withRequestID assigns a correlation ID to every request, echoed back as
// a response header and available to handlers for log correlation.
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDContextKey{}, id)
		next(w, r.WithContext(ctx))
	}
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

// Start builds the route table and begins serving in a background
// goroutine, mirroring the teacher's health server's non-blocking start.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.buildMux(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.log.Info("starting http api", logger.String("address", s.addr))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("http api server error", logger.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type principalContextKey struct{}

// authenticate resolves the bearer token before delegating to next. Per
// this gateway's resolution of spec.md's public-key auth question, every
// v1 endpoint is gated — including public-key, to avoid handing an
// unauthenticated caller a rotation-timing oracle.
func (s *Server) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, apierror.Unauthenticated, nil)
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		next(w, r.WithContext(ctx))
	}
}

func principalFrom(r *http.Request) (identity.Principal, bool) {
	p, ok := r.Context().Value(principalContextKey{}).(identity.Principal)
	return p, ok
}

// publicKeyResponse is spec.md §6's public-key response shape.
type publicKeyResponse struct {
	PublicKey string `json:"public_key"`
	KeyID     string `json:"key_id"`
	ExpiresAt string `json:"expires_at"`
	Algorithm string `json:"algorithm"`
}

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	view := s.keys.CurrentPublicView()
	writeJSON(w, http.StatusOK, publicKeyResponse{
		PublicKey: base64.StdEncoding.EncodeToString(view.PublicKey),
		KeyID:     view.KeyID,
		ExpiresAt: view.ExpiresAt.UTC().Format(time.RFC3339),
		Algorithm: "X25519",
	})
}

// executeRequest is spec.md §6's execute request shape.
type executeRequest struct {
	Task               string `json:"task"`
	EncryptedContent   string `json:"encrypted_content"`
	Nonce              string `json:"nonce"`
	MAC                string `json:"mac"`
	EphemeralPublicKey string `json:"ephemeral_public_key"`
	ClientVersion      string `json:"client_version"`
}

// usageResponse is spec.md §6's usage object, shared between the execute
// response and the standalone usage endpoint.
type usageResponse struct {
	RequestsRemaining int64  `json:"requests_remaining"`
	ResetAt           string `json:"reset_at"`
	Tier              string `json:"tier"`
}

func usageResponseOf(u quota.UsageSnapshot) usageResponse {
	return usageResponse{
		RequestsRemaining: u.RequestsRemaining,
		ResetAt:           u.ResetAt.UTC().Format(time.RFC3339),
		Tier:              string(u.Tier),
	}
}

type executeResponse struct {
	EncryptedResult string        `json:"encrypted_result"`
	Nonce           string        `json:"nonce"`
	MAC             string        `json:"mac"`
	Usage           usageResponse `json:"usage"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, apierror.Unauthenticated, nil)
		return
	}

	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apierror.MalformedEnvelope, nil)
		return
	}

	content, err1 := orchestrator.DecodeBase64(req.EncryptedContent)
	nonce, err2 := orchestrator.DecodeBase64(req.Nonce)
	mac, err3 := orchestrator.DecodeBase64(req.MAC)
	ephemeralKey, err4 := orchestrator.DecodeBase64(req.EphemeralPublicKey)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		writeError(w, apierror.MalformedEnvelope, nil)
		return
	}

	env := orchestrator.Envelope{
		Task:               tasks.Tag(req.Task),
		EncryptedContent:   content,
		Nonce:              nonce,
		MAC:                mac,
		EphemeralPublicKey: ephemeralKey,
	}

	reply, err := s.orch.Execute(r.Context(), principal.UserID, env)
	if err != nil {
		s.log.Error("execute failed",
			logger.String("request_id", requestIDFrom(r.Context())),
			logger.Error(err))
		s.writeOrchestratorError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{
		EncryptedResult: base64.StdEncoding.EncodeToString(reply.EncryptedResult),
		Nonce:           base64.StdEncoding.EncodeToString(reply.Nonce),
		MAC:             base64.StdEncoding.EncodeToString(reply.MAC),
		Usage:           usageResponseOf(reply.Usage),
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, apierror.Unauthenticated, nil)
		return
	}

	snapshot, err := s.ledger.Peek(r.Context(), principal.UserID, time.Now())
	if err != nil {
		writeError(w, apierror.Server, nil)
		return
	}

	writeJSON(w, http.StatusOK, usageResponseOf(snapshot))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.checker.CheckAll(r.Context())
	httpStatus := http.StatusOK
	if status.Status == health.StatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, status)
}

func (s *Server) writeOrchestratorError(w http.ResponseWriter, err error) {
	kind := orchestrator.Kind(err)
	var usage any
	if snapshot, ok := orchestrator.UsageOf(err); ok {
		usage = usageResponseOf(snapshot)
	}
	writeError(w, kind, usage)
}

func writeError(w http.ResponseWriter, kind apierror.Kind, usage any) {
	status, body := apierror.MapToResponse(kind, usage)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
