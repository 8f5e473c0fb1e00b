// Package api exposes polls and their results over HTTP/JSON.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	"meetslot/internal/models"
	"meetslot/internal/service"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

// PollService is the part of service.PollService the handlers call.
type PollService interface {
	CreatePoll(ctx context.Context, in service.CreatePollInput) (*models.Poll, error)
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
	SubmitResponse(ctx context.Context, in service.SubmitResponseInput) (*models.Response, error)
	Results(ctx context.Context, pollID string) (*service.PollResults, error)
}

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Port           int
	RateLimit      float64 // requests per second per client, 0 disables limiting
	RateLimitBurst int
	// TrustedProxies are IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string
}

type Server struct {
	svc     PollService
	checks  map[string]Pinger
	limiter *clientLimiter
	proxies []netip.Prefix
	logger  *zerolog.Logger
	port    int
	handler http.Handler
}

// NewServer wires routes and middleware. /readyz pings every check under its name.
func NewServer(svc PollService, opts Options, logger *zerolog.Logger, checks map[string]Pinger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "http_api").Logger()

	s := &Server{
		svc:    svc,
		checks: checks,
		logger: &l,
		port:   opts.Port,
	}
	for _, p := range opts.TrustedProxies {
		prefix, err := parseProxy(p)
		if err != nil {
			l.Warn().Err(err).Str("proxy", p).Msg("ignoring trusted proxy")
			continue
		}
		s.proxies = append(s.proxies, prefix)
	}
	if opts.RateLimit > 0 {
		s.limiter = newClientLimiter(rate.Limit(opts.RateLimit), opts.RateLimitBurst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/polls", s.handleCreatePoll)
	mux.HandleFunc("GET /api/polls/{id}", s.handleGetPoll)
	mux.HandleFunc("POST /api/polls/{id}/responses", s.handleSubmitResponse)
	mux.HandleFunc("GET /api/polls/{id}/results", s.handleResults)
	mux.HandleFunc("GET /api/polls/{id}/results.xlsx", s.handleResultsXLSX)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	s.handler = chain(mux,
		s.withRequestID,
		s.withAccessLog,
		s.withRecover,
		s.withRateLimit,
	)
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Int("port", s.port).Msg("http api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http api: %w", err)
	}
	return nil
}
