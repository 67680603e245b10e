// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/subgloss/subgloss/internal/api/handlers"
	"github.com/subgloss/subgloss/internal/api/middleware"
	"github.com/subgloss/subgloss/internal/domain"
)

// Dependencies wires the HTTP layer to the services behind it.
type Dependencies struct {
	Config     *domain.Config
	Search     handlers.Searcher
	Downloader handlers.Downloader
	Translator handlers.Translator
}

// Server is the public addon HTTP server.
type Server struct {
	deps       Dependencies
	httpServer *http.Server
}

func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the router. Addon routes are mounted twice: bare for
// default-config players and under /{userConfig} for players carrying an
// encoded per-user configuration segment.
func (s *Server) Handler() (http.Handler, error) {
	if s.deps.Config == nil {
		return nil, errors.New("api: missing config")
	}
	if s.deps.Search == nil || s.deps.Downloader == nil || s.deps.Translator == nil {
		return nil, errors.New("api: missing service dependencies")
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.Compress(0, 0))

	// Players fetch subtitles from web contexts; everything here is public
	// read-only data, so any origin is fine.
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	healthHandler := handlers.NewHealthHandler()
	r.Route("/health", healthHandler.Routes)

	manifestHandler := handlers.NewManifestHandler()
	subtitleHandler := handlers.NewSubtitleHandler(s.deps.Search, s.deps.Downloader, s.deps.Translator, s.deps.Config)

	addonRoutes := func(r chi.Router) {
		manifestHandler.Routes(r)
		subtitleHandler.Routes(r)
	}
	addonRoutes(r)
	r.Route("/{userConfig}", addonRoutes)

	return r, nil
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.deps.Config.Host, strconv.Itoa(s.deps.Config.Port))
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: partial-translation polling responses are quick,
		// but provider downloads can take the full search budget.
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting addon server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("addon server: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
