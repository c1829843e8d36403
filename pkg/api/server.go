// Package api exposes the search, extraction, and bulk pipelines over a
// local HTTP surface.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/lolikgiovi/lockey/pkg/bulk"
	"github.com/lolikgiovi/lockey/pkg/bus"
	"github.com/lolikgiovi/lockey/pkg/config"
	"github.com/lolikgiovi/lockey/pkg/dataset"
	"github.com/lolikgiovi/lockey/pkg/filter"
	"github.com/lolikgiovi/lockey/pkg/logging"
	"github.com/lolikgiovi/lockey/pkg/storage"
	"github.com/lolikgiovi/lockey/pkg/viewport"
)

// Server wires the pipelines behind HTTP handlers. It keeps the currently
// loaded dataset and filter state so the viewport endpoints can page over
// filtered rows.
type Server struct {
	cfg     *config.Config
	store   *storage.Store
	loader  *dataset.Loader
	fetcher bulk.PageFetcher
	bus     bus.MessageBus
	logger  *logging.Logger

	mu       sync.RWMutex
	current  *dataset.Dataset
	filtered []dataset.Row
	criteria filter.Criteria
	view     *viewport.Controller
}

// NewServer assembles a server from its collaborators. The fetcher, bus,
// and logger are optional; endpoints needing an absent collaborator answer
// 503.
func NewServer(cfg *config.Config, store *storage.Store, loader *dataset.Loader, fetcher bulk.PageFetcher, b bus.MessageBus, logger *logging.Logger) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Server{
		cfg:     cfg,
		store:   store,
		loader:  loader,
		fetcher: fetcher,
		bus:     b,
		logger:  logger,
		view:    viewport.NewController(cfg.Viewport.RowHeight, cfg.Viewport.Overscan),
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()

	router.Get("/api/health", s.handleHealth)

	api := chi.NewRouter()
	api.Route("/dataset", func(r chi.Router) {
		r.Get("/", s.handleGetDataset)
		r.Post("/", s.handleLoadDataset)
		r.Post("/normalize", s.handleNormalizeDataset)
	})
	api.Post("/filter", s.handleFilter)
	api.Get("/viewport", s.handleViewport)
	api.Post("/extract", s.handleExtract)
	api.Post("/bulk", s.handleBulk)
	api.Route("/pages", func(r chi.Router) {
		r.Get("/", s.handleListPages)
		r.Get("/{pageID}", s.handleGetPage)
		r.Delete("/{pageID}", s.handleDeletePage)
		r.Post("/{pageID}/hidden", s.handleHideKey)
		r.Delete("/{pageID}/hidden/{key}", s.handleUnhideKey)
	})
	api.Get("/export", s.handleExport)

	router.Mount("/api", api)
	return router
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.API.Bind,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// newLimiter paces bulk fetches per the configured budget.
func (s *Server) newLimiter() *rate.Limiter {
	perMinute := s.cfg.Bulk.FetchPerMinute
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
}

// SetDataset swaps the active dataset and resets filter state. Used by the
// handlers and by external reload sources such as the dataset file watcher.
func (s *Server) SetDataset(ds *dataset.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ds
	s.filtered = nil
	s.criteria = filter.Criteria{}
}

// activeRows returns the row slice the viewport pages over: the filtered
// rows when a filter is set, otherwise the full dataset. Callers must hold
// at least the read lock.
func (s *Server) activeRows() []dataset.Row {
	if s.filtered != nil {
		return s.filtered
	}
	if s.current != nil {
		return s.current.Rows
	}
	return nil
}
