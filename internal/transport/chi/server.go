// Package chi is the HTTP edge of the image search API: login, text search,
// image search, health, metrics. Handlers parse and validate the request
// shape, delegate to use case services, and map sentinel errors to statuses.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/halcyon-cloud/pixdex/internal/domain"
	authuc "github.com/halcyon-cloud/pixdex/internal/usecase/auth"
	healthuc "github.com/halcyon-cloud/pixdex/internal/usecase/health"
	searchuc "github.com/halcyon-cloud/pixdex/internal/usecase/search"
)

// maxUploadBytes bounds image upload size before decoding.
const maxUploadBytes = 32 << 20

// Error response codes.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeAuthenticationFailed = "authentication_failed"
	codeInternalError        = "internal_error"
)

// ErrorResponse is the JSON error body for all non-2xx responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TokenResponse is the JSON body of a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// MatchItem is one ranked search result.
type MatchItem struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	URL   string  `json:"url"`
}

// SearchResponse is the JSON body of a successful search.
type SearchResponse struct {
	Matches []MatchItem `json:"matches"`
}

// HealthResponse is the JSON body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers for the image search API.
type Server struct {
	auth          *authuc.Authenticator
	search        *searchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	auth *authuc.Authenticator,
	search *searchuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		auth:   auth,
		search: search,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrAuthentication, http.StatusUnauthorized, codeAuthenticationFailed),
		sentinelHandler(domain.ErrUpstream, http.StatusInternalServerError, codeInternalError),
		sentinelHandler(domain.ErrProcessing, http.StatusInternalServerError, codeInternalError),
	}
	return s
}

// Register mounts the API routes on the router. Search routes are registered
// with and without the trailing slash so clients that follow either
// convention hit the same handler.
func (s *Server) Register(r chi.Router) {
	r.Post("/token", s.Token)
	r.Get("/search/text", s.SearchText)
	r.Get("/search/text/", s.SearchText)
	r.Post("/search/image", s.SearchImage)
	r.Post("/search/image/", s.SearchImage)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Token handles POST /token: exchanges form credentials for a session token.
// Bad credentials are a 400, not a 401: the client supplied a well-formed
// request that failed the credential check, there is no token to refresh.
func (s *Server) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid form body")
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "username and password are required")
		return
	}

	token, err := s.auth.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, domain.ErrAuthentication) {
			writeError(w, http.StatusBadRequest, codeAuthenticationFailed, "incorrect username or password")
			return
		}
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// SearchText handles GET /search/text/?query=...&top_k=N.
func (s *Server) SearchText(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query parameter is required")
		return
	}

	topK, ok := s.parseTopK(w, r)
	if !ok {
		return
	}

	matches, err := s.search.SearchText(r.Context(), query, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matchesToResponse(matches))
}

// SearchImage handles POST /search/image/ with a multipart "file" part.
func (s *Server) SearchImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "invalid multipart body")
		return
	}

	topK, ok := s.parseTopK(w, r)
	if !ok {
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "image file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "failed to read upload")
		return
	}

	matches, err := s.search.SearchImage(r.Context(), data, topK)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matchesToResponse(matches))
}

// parseTopK reads the optional top_k query parameter. An explicit top_k must
// be a positive integer; absence means the service default. Writes the error
// response itself and returns ok=false on a bad value.
func (s *Server) parseTopK(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("top_k")
	if raw == "" {
		return 0, true
	}

	topK, err := strconv.Atoi(raw)
	if err != nil || topK <= 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "top_k must be a positive integer")
		return 0, false
	}
	return topK, true
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func matchesToResponse(matches []domain.Match) SearchResponse {
	items := make([]MatchItem, len(matches))
	for i, m := range matches {
		items[i] = MatchItem{ID: m.ID, Score: m.Score, URL: m.URL}
	}
	return SearchResponse{Matches: items}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-facing message without exposing internals.
// Validation failures keep their full wrapped reason (every layer writes those
// for the caller); other sentinels collapse to the generic sentinel text.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrValidation) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrAuthentication,
		domain.ErrUpstream,
		domain.ErrProcessing,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
