package api

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lolikgiovi/lockey/pkg/bulk"
	"github.com/lolikgiovi/lockey/pkg/bus"
	"github.com/lolikgiovi/lockey/pkg/confluence"
	"github.com/lolikgiovi/lockey/pkg/dataset"
	"github.com/lolikgiovi/lockey/pkg/extract"
	"github.com/lolikgiovi/lockey/pkg/filter"
	"github.com/lolikgiovi/lockey/pkg/logging"
	"github.com/lolikgiovi/lockey/pkg/reconcile"
	"github.com/lolikgiovi/lockey/pkg/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// datasetSummary is the response shape for dataset endpoints. Rows are not
// echoed back; the viewport endpoint pages over them.
type datasetSummary struct {
	Loaded    bool     `json:"loaded"`
	PackID    string   `json:"packId,omitempty"`
	Languages []string `json:"languages,omitempty"`
	TotalRows int      `json:"totalRows"`
}

func summarize(ds *dataset.Dataset) datasetSummary {
	if ds == nil {
		return datasetSummary{}
	}
	return datasetSummary{
		Loaded:    true,
		PackID:    ds.PackID,
		Languages: ds.Languages,
		TotalRows: len(ds.Rows),
	}
}

func (s *Server) handleGetDataset(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	summary := summarize(s.current)
	s.mu.RUnlock()
	respondJSON(w, summary)
}

func (s *Server) handleLoadDataset(w http.ResponseWriter, r *http.Request) {
	if s.loader == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("no dataset environments configured"))
		return
	}

	var req struct {
		Environment string `json:"environment"`
	}
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}
	env := strings.TrimSpace(req.Environment)
	if env == "" {
		env = s.cfg.Dataset.DefaultEnvironment
	}

	ds, err := s.loader.Fetch(r.Context(), env)
	if err != nil {
		s.logError(logging.CategoryDataset, "dataset_load_failed", err)
		respondError(w, statusForError(err), err)
		return
	}
	s.SetDataset(ds)
	s.publish(r, bus.SubjectDatasetRefreshed, []byte(env))

	respondJSON(w, summarize(ds))
}

func (s *Server) handleNormalizeDataset(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytesDataset)
	data, err := io.ReadAll(body)
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	ds, err := dataset.Normalize(data)
	if err != nil {
		s.logError(logging.CategoryDataset, "dataset_normalize_failed", err)
		respondError(w, statusForError(err), err)
		return
	}
	s.SetDataset(ds)

	respondJSON(w, summarize(ds))
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var criteria filter.Criteria
	if status, err := decodeJSONBody(w, r, &criteria, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		respondError(w, http.StatusConflict, fmt.Errorf("no dataset loaded"))
		return
	}

	rows := filter.Filter(s.current.Rows, s.current.Languages, criteria)
	s.filtered = rows
	s.criteria = criteria

	respondJSON(w, map[string]any{
		"total": len(rows),
		"rows":  rows,
	})
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	height := queryInt(r, "height", 0)
	if height <= 0 {
		respondError(w, http.StatusBadRequest, fmt.Errorf("height query parameter required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.activeRows()

	s.view.Recompute(offset, height, len(rows))
	plan := s.view.Plan(len(rows))

	window := rows[plan.Window.Start:plan.Window.End]
	respondJSON(w, map[string]any{
		"plan":  plan,
		"rows":  window,
		"total": len(rows),
	})
}

// extractRequest identifies one Confluence page, by URL, id, or space+title.
type extractRequest struct {
	URL    string `json:"url,omitempty"`
	PageID string `json:"pageId,omitempty"`
	Space  string `json:"space,omitempty"`
	Title  string `json:"title,omitempty"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("confluence is not configured"))
		return
	}

	var req extractRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}

	page, err := s.resolvePage(r, req)
	if err != nil {
		s.logError(logging.CategoryNetwork, "page_fetch_failed", err)
		respondError(w, statusForError(err), err)
		return
	}

	candidates, err := extract.Extract(page.HTML)
	if err != nil {
		s.logError(logging.CategoryExtract, "page_parse_failed", err)
		respondError(w, statusForError(err), err)
		return
	}

	s.mu.RLock()
	ds := s.current
	s.mu.RUnlock()
	lockeys := reconcile.Reconcile(candidates, ds)

	if s.store != nil {
		if err := s.store.SavePage(page.ID, page.Title, lockeys); err != nil {
			s.logError(logging.CategoryCache, "page_save_failed", err)
		}
	}

	respondJSON(w, map[string]any{
		"pageId":  page.ID,
		"title":   page.Title,
		"lockeys": lockeys,
		"summary": reconcile.Summarize(lockeys),
	})
}

func (s *Server) resolvePage(r *http.Request, req extractRequest) (*confluence.Page, error) {
	ctx := r.Context()
	switch {
	case strings.TrimSpace(req.PageID) != "":
		return s.fetcher.FetchPage(ctx, strings.TrimSpace(req.PageID))
	case strings.TrimSpace(req.URL) != "":
		ref, err := confluence.ParsePageURL(req.URL)
		if err != nil {
			return nil, err
		}
		if ref.PageID != "" {
			return s.fetcher.FetchPage(ctx, ref.PageID)
		}
		return s.fetcher.FetchPageByTitle(ctx, ref.SpaceKey, ref.Title)
	case strings.TrimSpace(req.Title) != "":
		return s.fetcher.FetchPageByTitle(ctx, strings.TrimSpace(req.Space), strings.TrimSpace(req.Title))
	default:
		return nil, fmt.Errorf("one of url, pageId, or title is required")
	}
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("confluence is not configured"))
		return
	}

	var req struct {
		Inputs []string `json:"inputs"`
		Space  string   `json:"space,omitempty"`
	}
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}
	if len(req.Inputs) == 0 {
		respondError(w, http.StatusBadRequest, fmt.Errorf("inputs required"))
		return
	}

	s.mu.RLock()
	ds := s.current
	s.mu.RUnlock()

	runner := &bulk.Runner{
		Fetcher:      s.fetcher,
		Dataset:      ds,
		DefaultSpace: strings.TrimSpace(req.Space),
		Limiter:      s.newLimiter(),
		Bus:          s.bus,
		Logger:       s.logger,
	}

	results, summary, err := runner.Run(r.Context(), req.Inputs)
	if err != nil {
		respondError(w, http.StatusRequestTimeout, err)
		return
	}

	if s.store != nil {
		for _, result := range results {
			if result.Error != "" || result.PageID == "" {
				continue
			}
			if err := s.store.SavePage(result.PageID, result.ScreenName, result.Lockeys); err != nil {
				s.logError(logging.CategoryCache, "page_save_failed", err)
			}
		}
	}

	respondJSON(w, map[string]any{
		"summary": summary,
		"results": results,
	})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("cache is not configured"))
		return
	}
	pages, err := s.store.ListPages()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, map[string]any{"pages": pages})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("cache is not configured"))
		return
	}
	page, err := s.store.GetPage(chi.URLParam(r, "pageID"))
	if err == storage.ErrNotFound {
		respondError(w, http.StatusNotFound, fmt.Errorf("page not cached"))
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, page)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("cache is not configured"))
		return
	}
	if err := s.store.DeletePage(chi.URLParam(r, "pageID")); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHideKey(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("cache is not configured"))
		return
	}
	var req struct {
		Key string `json:"key"`
	}
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesSmall); err != nil {
		respondError(w, status, err)
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("key required"))
		return
	}
	if err := s.store.HideKey(chi.URLParam(r, "pageID"), req.Key); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnhideKey(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("cache is not configured"))
		return
	}
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.store.UnhideKey(chi.URLParam(r, "pageID"), key); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, fmt.Errorf("cache is not configured"))
		return
	}
	pageID := strings.TrimSpace(r.URL.Query().Get("page"))
	if pageID == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("page query parameter required"))
		return
	}
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = "tsv"
	}

	page, err := s.store.GetPage(pageID)
	if err == storage.ErrNotFound {
		respondError(w, http.StatusNotFound, fmt.Errorf("page not cached"))
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	candidates := dropHidden(page.Lockeys, page.HiddenKeys)

	switch format {
	case "tsv":
		w.Header().Set("Content-Type", "text/tab-separated-values")
		w.Header().Set("Content-Disposition", exportFilename(pageID, "tsv"))
		err = reconcile.WriteTSV(w, candidates)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", exportFilename(pageID, "csv"))
		err = reconcile.WriteCSV(w, candidates)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", exportFilename(pageID, "xlsx"))
		err = reconcile.WriteXLSX(w, candidates)
	default:
		respondError(w, http.StatusBadRequest, fmt.Errorf("unsupported format %q", format))
		return
	}
	if err != nil {
		s.logError(logging.CategoryAPI, "export_failed", err)
	}
}

func dropHidden(candidates []reconcile.Candidate, hidden []string) []reconcile.Candidate {
	if len(hidden) == 0 {
		return candidates
	}
	hiddenSet := make(map[string]bool, len(hidden))
	for _, key := range hidden {
		hiddenSet[key] = true
	}
	out := make([]reconcile.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !hiddenSet[c.Key] {
			out = append(out, c)
		}
	}
	return out
}

func exportFilename(pageID, ext string) string {
	return fmt.Sprintf(`attachment; filename="lockeys-%s.%s"`, pageID, ext)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func (s *Server) publish(r *http.Request, subject string, data []byte) {
	if s.bus == nil {
		return
	}
	_ = s.bus.Publish(r.Context(), subject, data)
}

func (s *Server) logError(category logging.Category, eventType string, err error) {
	if s.logger == nil {
		return
	}
	_ = s.logger.Error(category, eventType, err.Error(), nil)
}
