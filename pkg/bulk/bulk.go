// Package bulk runs the extract/reconcile pipeline over many Confluence
// pages, strictly sequentially, so the remote service is never overwhelmed.
package bulk

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/lolikgiovi/lockey/pkg/confluence"
	"github.com/lolikgiovi/lockey/pkg/dataset"
	lockeyerrors "github.com/lolikgiovi/lockey/pkg/errors"
	"github.com/lolikgiovi/lockey/pkg/extract"
	"github.com/lolikgiovi/lockey/pkg/logging"
	"github.com/lolikgiovi/lockey/pkg/reconcile"
)

// PageFetcher is the external fetch collaborator.
type PageFetcher interface {
	FetchPage(ctx context.Context, pageID string) (*confluence.Page, error)
	FetchPageByTitle(ctx context.Context, spaceKey, title string) (*confluence.Page, error)
}

// Publisher receives per-page progress events. Satisfied by bus.MessageBus.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Result is the outcome for one page input. Error is set on failure and the
// page never aborts the rest of the run.
type Result struct {
	ScreenName string                `json:"screenName"`
	PageID     string                `json:"pageId,omitempty"`
	Lockeys    []reconcile.Candidate `json:"lockeys"`
	Error      string                `json:"error,omitempty"`
}

// Summary aggregates a bulk run.
type Summary struct {
	RunID     string `json:"runId"`
	Pages     int    `json:"pages"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	TotalKeys int    `json:"totalKeys"`
	Active    int    `json:"active"`
	Struck    int    `json:"struck"`
}

// SubjectPageDone is the bus subject for per-page progress events.
const SubjectPageDone = "lockey.bulk.page"

// Runner drives sequential bulk extraction.
type Runner struct {
	Fetcher      PageFetcher
	Dataset      *dataset.Dataset // presence source; nil marks all keys absent
	DefaultSpace string           // space for bare-title inputs
	Limiter      *rate.Limiter    // paces fetches; nil disables pacing
	Bus          Publisher        // optional progress events
	Logger       *logging.Logger  // optional
}

var numericID = regexp.MustCompile(`^\d+$`)

// Run processes the inputs one at a time and returns one Result per input,
// in input order, plus the aggregate summary. Per-page failures are captured
// in the Result; Run itself fails only when the context is cancelled.
func (r *Runner) Run(ctx context.Context, inputs []string) ([]Result, Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	results := make([]Result, 0, len(inputs))

	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, summary, err
		}

		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				return results, summary, err
			}
		}

		result := r.processPage(ctx, input)
		results = append(results, result)

		summary.Pages++
		if result.Error != "" {
			summary.Failed++
		} else {
			summary.Succeeded++
			s := reconcile.Summarize(result.Lockeys)
			summary.TotalKeys += s.Total
			summary.Active += s.Active
			summary.Struck += s.Struck
		}

		r.publishProgress(ctx, result)
	}

	if r.Logger != nil {
		r.Logger.Info(logging.CategoryBulk, "run_complete", "bulk run finished", map[string]any{
			"run_id":    summary.RunID,
			"pages":     summary.Pages,
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
		})
	}
	return results, summary, nil
}

func (r *Runner) processPage(ctx context.Context, input string) Result {
	result := Result{ScreenName: input}

	page, err := r.fetch(ctx, input)
	if err != nil {
		result.Error = lockeyerrors.UserFacing(err)
		if r.Logger != nil {
			r.Logger.Error(logging.CategoryBulk, "page_failed", result.Error, map[string]any{"input": input})
		}
		return result
	}

	result.ScreenName = page.Title
	result.PageID = page.ID

	candidates, err := extract.Extract(page.HTML)
	if err != nil {
		result.Error = lockeyerrors.UserFacing(err)
		return result
	}
	if len(candidates) == 0 {
		result.Error = "no localization keys found on page"
		return result
	}

	result.Lockeys = reconcile.Reconcile(candidates, r.Dataset)
	return result
}

// fetch resolves one input string: a full page URL, a bare numeric page id,
// or a page title looked up in the default space.
func (r *Runner) fetch(ctx context.Context, input string) (*confluence.Page, error) {
	if numericID.MatchString(input) {
		return r.Fetcher.FetchPage(ctx, input)
	}
	if strings.Contains(input, "://") {
		ref, err := confluence.ParsePageURL(input)
		if err != nil {
			return nil, err
		}
		if ref.PageID != "" {
			return r.Fetcher.FetchPage(ctx, ref.PageID)
		}
		return r.Fetcher.FetchPageByTitle(ctx, ref.SpaceKey, ref.Title)
	}
	return r.Fetcher.FetchPageByTitle(ctx, r.DefaultSpace, input)
}

func (r *Runner) publishProgress(ctx context.Context, result Result) {
	if r.Bus == nil {
		return
	}
	event := map[string]any{
		"screenName": result.ScreenName,
		"pageId":     result.PageID,
		"keys":       len(result.Lockeys),
	}
	if result.Error != "" {
		event["error"] = result.Error
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	// progress is best-effort; a bus failure never fails the run
	_ = r.Bus.Publish(ctx, SubjectPageDone, data)
}
