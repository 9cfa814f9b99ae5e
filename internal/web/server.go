package web

import (
	"context"
	"crypto/rand"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/depositdefender/defender/internal/cache"
	"github.com/depositdefender/defender/internal/classify"
	"github.com/depositdefender/defender/internal/config"
	"github.com/depositdefender/defender/internal/history"
	"github.com/depositdefender/defender/internal/llm"
	"github.com/depositdefender/defender/internal/payment"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
)

//go:embed templates/*
var templatesFS embed.FS

const (
	defaultRateLimit  = 30
	defaultRateWindow = time.Minute
	maxBodyBytes      = 1 << 20
)

// Deps are the collaborators a Server needs. AIProvider and History may be nil;
// AIError explains a nil AIProvider.
type Deps struct {
	Classifier *classify.Fallback
	AIProvider llm.Provider
	AIError    error
	Payments   *payment.Service
	Letters    *cache.LetterStore
	History    *history.Store
}

type Server struct {
	config       *config.Config
	classifier   *classify.Fallback
	aiProvider   llm.Provider
	aiErr        error
	payments     *payment.Service
	letters      *cache.LetterStore
	historyStore *history.Store
	paid         *PaidFlags
	rateLimiter  *RateLimiter
	csrfKey      []byte
	secure       bool
	index        *template.Template
	httpServer   *http.Server
}

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Classifier == nil || deps.Payments == nil || deps.Letters == nil {
		return nil, errors.New("classifier, payments and letter store are required")
	}

	csrfKey := make([]byte, 32)
	if _, err := rand.Read(csrfKey); err != nil {
		return nil, fmt.Errorf("failed to generate CSRF key: %w", err)
	}

	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")
	paid, err := NewPaidFlags(cfg.Server.CookieSecret, secure)
	if err != nil {
		return nil, err
	}

	index, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	aiErr := deps.AIError
	if deps.AIProvider == nil && aiErr == nil {
		aiErr = llm.ErrDisabled
	}

	return &Server{
		config:       cfg,
		classifier:   deps.Classifier,
		aiProvider:   deps.AIProvider,
		aiErr:        aiErr,
		payments:     deps.Payments,
		letters:      deps.Letters,
		historyStore: deps.History,
		paid:         paid,
		rateLimiter:  NewRateLimiter(cfg.Server.RateLimitPerMinute, defaultRateWindow),
		csrfKey:      csrfKey,
		secure:       secure,
		index:        index,
	}, nil
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(s.config.AI.TimeoutSec)*time.Second + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Deposit Defender listening on :%d (public URL %s)", s.config.Server.Port, s.config.Server.BaseURL)
	log.Printf("AI drafting: %s, payments: %s", availability(s.aiProvider != nil), availability(s.payments.Configured()))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func availability(ok bool) string {
	if ok {
		return "enabled"
	}
	return "not configured"
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(securityHeaders)

	if s.config.Server.CSRF {
		r.Use(s.plaintextHTTP)
		r.Use(csrf.Protect(
			s.csrfKey,
			csrf.Secure(s.secure),
			csrf.Path("/"),
			csrf.HttpOnly(true),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.RequestHeader("X-CSRF-Token"),
			csrf.TrustedOrigins(s.trustedOrigins()),
			csrf.ErrorHandler(http.HandlerFunc(csrfFailure)),
		))
	}

	r.Get("/", s.handleIndex)
	r.Get("/success", s.handleSuccess)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/letters/{letterID}", s.handleGetLetter)
		r.Post("/create-checkout", s.handleCreateCheckout)
		r.Post("/verify-payment", s.handleVerifyPayment)

		// drafting spends provider quota
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimiter.Middleware)
			r.Post("/chat", s.handleChat)
			r.Post("/draft", s.handleDraft)
		})
	})

	return r
}

// plaintextHTTP marks non-TLS requests so CSRF skips the HTTPS referer check
func (s *Server) plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil && !s.secure {
			r = csrf.PlaintextHTTPRequest(r)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) trustedOrigins() []string {
	origins := []string{"localhost", "127.0.0.1",
		fmt.Sprintf("localhost:%d", s.config.Server.Port),
		fmt.Sprintf("127.0.0.1:%d", s.config.Server.Port)}
	if u, err := url.Parse(s.config.Server.BaseURL); err == nil && u.Host != "" {
		origins = append(origins, u.Host)
	}
	return origins
}

func csrfFailure(w http.ResponseWriter, r *http.Request) {
	log.Printf("CSRF check failed for %s %s: %v", r.Method, r.URL.Path, csrf.FailureReason(r))
	writeError(w, http.StatusForbidden, "Invalid or missing CSRF token. Reload the page and try again.")
}

// securityHeaders adds security headers to all responses
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		// checkout redirects leave the origin, so form-action and navigation stay open to Stripe
		csp := "default-src 'self'; " +
			"script-src 'self' 'unsafe-inline'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"connect-src 'self'; " +
			"frame-ancestors 'none'; " +
			"form-action 'self' https://checkout.stripe.com; " +
			"base-uri 'self'"
		w.Header().Set("Content-Security-Policy", csp)

		// letters and paid state must never be cached by intermediaries
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")

		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		next.ServeHTTP(w, r)
	})
}
