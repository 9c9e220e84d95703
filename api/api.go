// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api serves the projected governance state over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/govaudit/database"
	"github.com/blinklabs-io/govaudit/database/models"
	"github.com/gorilla/mux"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const DefaultListenAddress = ":3000"

// Store is the read side of the projection used by the API
type Store interface {
	Ping(ctx context.Context) error
	ListProposals(ctx context.Context) ([]models.Proposal, error)
	ProposalByTxHash(ctx context.Context, txHash []byte) (*models.Proposal, error)
	ProposalResults(ctx context.Context, proposal *models.Proposal) (*database.ProposalResults, error)
}

type Config struct {
	Logger        *slog.Logger
	Store         Store
	ListenAddress string
}

// Server is the read API HTTP server
type Server struct {
	config     Config
	logger     *slog.Logger
	httpServer *http.Server
	mu         sync.Mutex
}

func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("api: store must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	return &Server{
		config: cfg,
		logger: cfg.Logger.With("component", "api"),
	}, nil
}

// Router returns the request router
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/proposals", s.handleProposals).Methods(http.MethodGet)
	r.HandleFunc("/results/{hash}", s.handleResults).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	return r
}

// Start binds the listener and serves requests in the background until
// Stop is called
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return errors.New("server already started")
	}
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	server := &http.Server{
		// Use h2c so we can serve HTTP/2 without TLS
		Handler:           h2c.NewHandler(s.Router(), &http2.Server{}),
		ReadHeaderTimeout: 60 * time.Second,
	}
	s.httpServer = server
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	s.logger.Info("API listener started", "address", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Debug("shutting down API server")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}
	return nil
}
