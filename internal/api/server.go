// Package api serves the forecasting engine over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/bizforecast/internal/api/notifier"
	"golang.org/x/sync/errgroup"
)

// DefaultDebounce is how long the data-dir watch waits for writes to settle.
const DefaultDebounce = 250 * time.Millisecond

// Server is the HTTP API server.
type Server struct {
	backend  Backend
	port     int
	watch    bool
	dataDir  string
	debounce time.Duration
	logger   *slog.Logger
	notifier *notifier.Notifier
}

// Config holds configuration for the API server.
type Config struct {
	Backend Backend
	Port    int
	// Watch reloads the working database when a CSV in DataDir changes
	Watch   bool
	DataDir string
	// Debounce overrides DefaultDebounce (optional)
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	dataDir := cfg.DataDir
	if dataDir == "" && cfg.Backend != nil {
		dataDir = cfg.Backend.DataDir()
	}
	return &Server{
		backend:  cfg.Backend,
		port:     cfg.Port,
		watch:    cfg.Watch,
		dataDir:  dataDir,
		debounce: debounce,
		logger:   logger,
		notifier: notifier.New(),
	}
}

// Notifier returns the server's event notifier.
func (s *Server) Notifier() *notifier.Notifier {
	return s.notifier
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)
	SetupRoutes(r, NewHandlers(s.backend, s.notifier, s.logger))
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		watcher, err := s.newWatcher()
		if err != nil {
			return err
		}
		eg.Go(func() error {
			return s.watchFiles(egctx, watcher)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) newWatcher() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(s.dataDir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch data dir %s: %w", s.dataDir, err)
	}
	s.logger.Info("watching data dir", "data_dir", s.dataDir)
	return watcher, nil
}

// watchFiles reloads the flat files into the working database whenever a
// CSV in the data dir is written or created. Bursts are debounced.
func (s *Server) watchFiles(ctx context.Context, watcher *fsnotify.Watcher) error {
	defer func() { _ = watcher.Close() }()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".csv") {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			name := event.Name
			debounceTimer = time.AfterFunc(s.debounce, func() {
				s.logger.Info("flat file changed, reloading", "file", filepath.Base(name))
				res, err := s.backend.ResetToInitialState(ctx)
				if err != nil {
					s.logger.Error("reload failed", "error", err)
					return
				}
				s.logger.Debug("reload complete", "rows_loaded", res.RowsLoaded)
				s.notifier.Publish(notifier.DataReset)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
