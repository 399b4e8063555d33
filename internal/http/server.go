package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"spesedonut/internal/cache"
	"spesedonut/internal/core"
	"spesedonut/internal/live"
	"spesedonut/internal/log"
	"spesedonut/internal/metrics"
	"spesedonut/internal/middleware/ratelimit"
	"spesedonut/internal/middleware/security"
	"spesedonut/internal/middleware/trace"
	"spesedonut/internal/services"
	"spesedonut/internal/sse"
	appweb "spesedonut/web"
)

// Commands is the write side used by the handlers.
type Commands interface {
	CreateExpense(ctx context.Context, name string, cost core.Money) (core.ExpenseRecord, error)
	UpdateExpense(ctx context.Context, id string, in services.UpdateInput) (core.ExpenseRecord, error)
	DeleteExpense(ctx context.Context, id string) error
}

// LiveView is the read side: the replica and its latest frame.
type LiveView interface {
	Current() live.Frame
	Snapshot() []core.ExpenseRecord
	Ready() bool
}

// Pinger reports whether the remote store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Commands Commands
	Live     LiveView
	Hub      *sse.Hub
	Metrics  *metrics.Metrics
	Logger   *log.Logger
	// Store is optional; when set /readyz pings it.
	Store Pinger

	RateLimitPerMinute int
	IdempotencyTTL     time.Duration
}

type Server struct {
	http.Server
	templates *template.Template
	commands  Commands
	live      LiveView
	hub       *sse.Hub
	store     Pinger
	metrics   *metrics.Metrics
	logger    *log.Logger
	started   time.Time

	idempotency *cache.Idempotency[core.ExpenseRecord]
	caches      *cache.Manager

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

const (
	idempotencyMaxKeys   = 1000
	cacheCleanupInterval = time.Minute
	staticMaxAge         = 3600
)

// NewServer configures routes, middleware and templates, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	ttl := deps.IdempotencyTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	rlConfig := ratelimit.DefaultConfig()
	if deps.RateLimitPerMinute > 0 {
		rlConfig.RequestsPerMinute = deps.RateLimitPerMinute
	}

	s := &Server{
		commands:         deps.Commands,
		live:             deps.Live,
		hub:              deps.Hub,
		store:            deps.Store,
		metrics:          deps.Metrics,
		logger:           logger.WithComponent(log.ComponentHTTP),
		started:          time.Now(),
		idempotency:      cache.NewIdempotency[core.ExpenseRecord](idempotencyMaxKeys, ttl),
		caches:           cache.NewManager(),
		securityDetector: security.NewDetector(),
		rateLimiter:      ratelimit.NewLimiter(rlConfig),
	}
	if s.hub == nil {
		s.hub = sse.NewHub(logger)
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP, s.metrics.HTTPRequest)

	s.caches.Register(s.idempotency)
	s.caches.StartCleanup(cacheCleanupInterval)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.Handle("POST /expenses", limited(http.HandlerFunc(s.handleCreateExpense)))
	mux.Handle("PATCH /expenses/{id}", limited(http.HandlerFunc(s.handleUpdateExpense)))
	mux.Handle("DELETE /expenses/{id}", limited(http.HandlerFunc(s.handleDeleteExpense)))
	mux.HandleFunc("GET /chart", s.handleChart)
	mux.HandleFunc("GET /events", s.handleEvents)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.traceMiddleware.Middleware(s.withDetection(headers.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// withDetection logs scanner-looking requests; it does not block them.
func (s *Server) withDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request detected",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				"user_agent", r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Troppe richieste, riprova tra poco").Write(w)
}

// Shutdown closes event streams, stops background cleanup and drains the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.hub.Close()
		s.caches.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
