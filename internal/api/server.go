// Package api provides the LyricScope REST and WebSocket server.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/FocuswithJustin/LyricScope/core/analysis"
	"github.com/FocuswithJustin/LyricScope/internal/cache"
	"github.com/FocuswithJustin/LyricScope/internal/logging"
	"github.com/FocuswithJustin/LyricScope/internal/server"
	"github.com/FocuswithJustin/LyricScope/internal/store"
)

// listingTTL bounds how stale the sheet listing may be when another
// process writes to the same database.
const listingTTL = 5 * time.Second

// Server serves lyric analysis and sheet storage over HTTP.
type Server struct {
	cfg      Config
	store    *store.Store
	analyzer *analysis.Analyzer
	hub      *Hub
	listing  *cache.Snapshot[string, store.Sheet]
	started  time.Time
}

// New creates a server over an open store.
func New(cfg Config, st *store.Store) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Server{
		cfg:      cfg,
		store:    st,
		analyzer: analysis.NewAnalyzer(cfg.Analysis, cfg.CacheSize),
		hub:      NewHub(),
		listing:  cache.New[string, store.Sheet](listingTTL),
		started:  time.Now(),
	}, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = server.SecurityHeadersWithCSP(server.EditorCSPConfig(), s.routes())

	if s.cfg.Auth.Enabled {
		handler = AuthMiddleware(s.cfg.Auth, handler)
	}
	handler = server.CORSMiddlewareWithConfig(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)

	return logging.CombinedMiddleware(handler)
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/palette", s.handlePalette)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/sheets", s.handleSheets)
	mux.HandleFunc("/sheets/{id}", s.handleSheetByID)
	mux.HandleFunc("/sheets/{id}/analysis", s.handleSheetAnalysis)
	mux.HandleFunc("/sheets/{id}/export", s.handleSheetExport)
	mux.HandleFunc("/import", s.handleImport)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return mux
}

// ListenAndServe runs the hub and the HTTP server until ctx is cancelled,
// then shuts both down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	protocol, wsProtocol := "http", "ws"
	if s.cfg.TLS.Enabled {
		protocol, wsProtocol = "https", "wss"
		logging.Info("TLS enabled", "cert_file", s.cfg.TLS.CertFile)
	}
	if len(s.cfg.AllowedOrigins) == 0 {
		logging.Warn("CORS allows all origins", "recommendation", "set --allowed-origins when exposed beyond localhost")
	}
	logging.ServerStartup("lyricscope", protocol, s.cfg.Port,
		"websocket_protocol", wsProtocol,
		"auth", s.cfg.Auth.Enabled,
		"database", server.AbsPath(s.store.Path()))

	errc := make(chan error, 1)
	go func() {
		if s.cfg.TLS.Enabled {
			errc <- srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
			return
		}
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Start builds a server and serves until ctx is cancelled.
func Start(ctx context.Context, cfg Config, st *store.Store) error {
	s, err := New(cfg, st)
	if err != nil {
		return err
	}
	return s.ListenAndServe(ctx)
}
