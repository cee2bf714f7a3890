package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"zenbeasts/core"
	"zenbeasts/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// ServerConfig tunes the RPC surface. The auth token guards every mutating
// method; an empty token locks them out entirely.
type ServerConfig struct {
	AuthToken         string
	RequestsPerMinute float64
	Burst             int
}

func (c ServerConfig) withDefaults() ServerConfig {
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 600
	}
	if c.Burst <= 0 {
		c.Burst = 30
	}
	return c
}

// Server exposes the node over JSON-RPC 2.0 on POST /rpc, the journal over
// GET /ws/events, plus /healthz and /metrics.
type Server struct {
	node   *core.Node
	cfg    ServerConfig
	logger *slog.Logger

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

func NewServer(node *core.Node, cfg ServerConfig) *Server {
	return &Server{
		node:     node,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		limiters: make(map[string]*rate.Limiter),
	}
}

// SetLogger overrides the server logger.
func (s *Server) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger
}

// Router assembles the HTTP surface with tracing wrapped around the whole
// tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Post("/rpc", s.handleRPC)
	r.Get("/ws/events", s.handleEventsWS)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return otelhttp.NewHandler(r, "zenbeastd")
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	known := s.dispatch(rec, r, req)

	method := req.Method
	if !known {
		method = "unknown"
	}
	code := 0
	if rec.status != http.StatusOK {
		code = rec.status
	}
	observability.RPC().Observe(method, code, time.Since(start))
}

// dispatch routes one request; it reports false for unknown methods so the
// metrics label set stays bounded.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, req *RPCRequest) bool {
	switch req.Method {
	case "zb_initialize":
		s.mutating(w, r, req, s.handleInitialize)
	case "zb_mint":
		s.mutating(w, r, req, s.handleMint)
	case "zb_performActivity":
		s.mutating(w, r, req, s.handlePerformActivity)
	case "zb_claimRewards":
		s.mutating(w, r, req, s.handleClaimRewards)
	case "zb_upgradeTrait":
		s.mutating(w, r, req, s.handleUpgradeTrait)
	case "zb_breed":
		s.mutating(w, r, req, s.handleBreed)
	case "zb_updateOwner":
		s.mutating(w, r, req, s.handleUpdateOwner)
	case "zb_updateConfig":
		s.mutating(w, r, req, s.handleUpdateConfig)
	case "zb_transferAuthority":
		s.mutating(w, r, req, s.handleTransferAuthority)
	case "zb_repairAccount":
		s.mutating(w, r, req, s.handleRepairAccount)
	case "zb_unlockAbility":
		s.mutating(w, r, req, s.handleUnlockAbility)
	case "zb_upgradeAbility":
		s.mutating(w, r, req, s.handleUpgradeAbility)
	case "zb_initiateCombat":
		s.mutating(w, r, req, s.handleInitiateCombat)
	case "zb_combatTurn":
		s.mutating(w, r, req, s.handleCombatTurn)
	case "zb_resolveCombat":
		s.mutating(w, r, req, s.handleResolveCombat)
	case "zb_getBeast":
		s.handleGetBeast(w, r, req)
	case "zb_getConfig":
		s.handleGetConfig(w, r, req)
	case "zb_getAccount":
		s.handleGetAccount(w, r, req)
	case "zb_getCombat":
		s.handleGetCombat(w, r, req)
	case "zb_tokenSupply":
		s.handleTokenSupply(w, r, req)
	case "zb_previewUpgrade":
		s.handlePreviewUpgrade(w, r, req)
	case "zb_previewBreeding":
		s.handlePreviewBreeding(w, r, req)
	case "zb_events":
		s.handleEvents(w, r, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return false
	}
	return true
}

type rpcHandler func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

// mutating gates state-changing methods behind bearer auth and the per-client
// rate limit.
func (s *Server) mutating(w http.ResponseWriter, r *http.Request, req *RPCRequest, next rpcHandler) {
	if authErr := s.requireAuth(r); authErr != nil {
		writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
		return
	}
	source := clientSource(r)
	if !s.allowClient(source) {
		observability.RPC().RecordThrottle("client_rate")
		writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "rate limit exceeded", source)
		return
	}
	next(w, r, req)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.cfg.AuthToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowClient(source string) bool {
	if source == "" {
		source = "unknown"
	}
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[source]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RequestsPerMinute/60), s.cfg.Burst)
		s.limiters[source] = limiter
	}
	return limiter.Allow()
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	initialized, err := s.node.Initialized()
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "initialized": initialized})
}
