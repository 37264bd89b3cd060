package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/sleepy-project/sleepy-agent/internal/config"
)

// Server is the local status API
type Server struct {
	config  *config.Config
	handler *Handler
	router  chi.Router
	server  *http.Server
}

func NewServer(cfg *config.Config, stats StatsProvider, displayServer func() string, customPort int) *Server {
	s := &Server{
		config:  cfg,
		handler: NewHandler(cfg, stats, displayServer),
		router:  chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(10 * time.Second))
	s.handler.SetupRoutes(s.router)

	port := cfg.Web.Port
	if customPort > 0 {
		port = customPort
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Web.Host, port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("Starting status API")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down status API")
	return s.server.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return s.server.Addr
}
