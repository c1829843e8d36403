package bulk

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/lolikgiovi/lockey/pkg/confluence"
	"github.com/lolikgiovi/lockey/pkg/dataset"
	"github.com/lolikgiovi/lockey/pkg/extract"
)

type fakeFetcher struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	pages    map[string]*confluence.Page // by id
	byTitle  map[string]*confluence.Page
	fail     map[string]string // id -> error message
}

func (f *fakeFetcher) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
}

func (f *fakeFetcher) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeFetcher) FetchPage(ctx context.Context, pageID string) (*confluence.Page, error) {
	f.enter()
	defer f.leave()
	if msg, ok := f.fail[pageID]; ok {
		return nil, fmt.Errorf("%s", msg)
	}
	page, ok := f.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("page %s not found", pageID)
	}
	return page, nil
}

func (f *fakeFetcher) FetchPageByTitle(ctx context.Context, spaceKey, title string) (*confluence.Page, error) {
	f.enter()
	defer f.leave()
	page, ok := f.byTitle[title]
	if !ok {
		return nil, fmt.Errorf("page %q not found in %s", title, spaceKey)
	}
	return page, nil
}

const lockeyTable = `<table>
	<tr><th>Lockey</th></tr>
	<tr><td>knownKey</td></tr>
	<tr><td><s>droppedKey</s></td></tr>
</table>`

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Normalize([]byte(`{"content":{"en":{"knownKey":"Hello"}}}`))
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return ds
}

func TestRunProcessesAllPages(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]*confluence.Page{
			"100": {ID: "100", Title: "Screen A", HTML: lockeyTable},
			"200": {ID: "200", Title: "Screen B", HTML: lockeyTable},
		},
	}
	runner := &Runner{Fetcher: fetcher, Dataset: testDataset(t)}

	results, summary, err := runner.Run(context.Background(), []string{"100", "200"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if summary.Pages != 2 || summary.Succeeded != 2 || summary.Failed != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.TotalKeys != 4 || summary.Active != 2 || summary.Struck != 2 {
		t.Errorf("unexpected key counts: %+v", summary)
	}
	if results[0].ScreenName != "Screen A" || results[0].PageID != "100" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if !results[0].Lockeys[0].InRemote {
		t.Error("knownKey should be marked present in remote")
	}
}

func TestRunCapturesPerPageFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]*confluence.Page{
			"100": {ID: "100", Title: "Good", HTML: lockeyTable},
			"300": {ID: "300", Title: "Empty", HTML: "<p>nothing here</p>"},
		},
		fail: map[string]string{"200": "connection reset"},
	}
	runner := &Runner{Fetcher: fetcher}

	results, summary, err := runner.Run(context.Background(), []string{"100", "200", "300"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("a failing page must not abort the run, got %d results", len(results))
	}
	if results[0].Error != "" {
		t.Errorf("first page should succeed: %+v", results[0])
	}
	if results[1].Error == "" {
		t.Error("fetch failure should be captured in Error")
	}
	if len(results[1].Lockeys) != 0 {
		t.Error("failed page carries no lockeys")
	}
	if results[2].Error == "" {
		t.Error("zero candidates should be captured as an error")
	}
	if summary.Succeeded != 1 || summary.Failed != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestRunIsStrictlySequential(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*confluence.Page{}}
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("%d00", i+1)
		fetcher.pages[id] = &confluence.Page{ID: id, Title: id, HTML: lockeyTable}
	}

	var inputs []string
	for id := range fetcher.pages {
		inputs = append(inputs, id)
	}

	runner := &Runner{Fetcher: fetcher}
	if _, _, err := runner.Run(context.Background(), inputs); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if fetcher.maxSeen != 1 {
		t.Errorf("expected at most 1 in-flight fetch, saw %d", fetcher.maxSeen)
	}
}

func TestRunResolvesInputForms(t *testing.T) {
	page := &confluence.Page{ID: "900", Title: "Resolved", HTML: lockeyTable}
	fetcher := &fakeFetcher{
		pages:   map[string]*confluence.Page{"900": page},
		byTitle: map[string]*confluence.Page{"Screen Name": page},
	}
	runner := &Runner{Fetcher: fetcher, DefaultSpace: "HOME"}

	inputs := []string{
		"900",
		"https://wiki.example.com/pages/viewpage.action?pageId=900",
		"https://wiki.example.com/display/HOME/Screen+Name",
		"Screen Name",
	}
	results, _, err := runner.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i, r := range results {
		if r.Error != "" {
			t.Errorf("input %d failed: %s", i, r.Error)
		}
		if r.PageID != "900" {
			t.Errorf("input %d resolved to page %q", i, r.PageID)
		}
	}
}

func TestRunSkipsBlankInputs(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*confluence.Page{
		"100": {ID: "100", Title: "A", HTML: lockeyTable},
	}}
	runner := &Runner{Fetcher: fetcher}

	results, summary, err := runner.Run(context.Background(), []string{"", "  ", "100"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 1 || summary.Pages != 1 {
		t.Errorf("blank inputs should be skipped: %d results", len(results))
	}
}

type captureBus struct {
	mu     sync.Mutex
	events [][]byte
}

func (b *captureBus) Publish(ctx context.Context, subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, data)
	return nil
}

func TestRunPublishesProgress(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*confluence.Page{
		"100": {ID: "100", Title: "A", HTML: lockeyTable},
	}}
	bus := &captureBus{}
	runner := &Runner{Fetcher: fetcher, Bus: bus}

	if _, _, err := runner.Run(context.Background(), []string{"100", "missing"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(bus.events) != 2 {
		t.Errorf("expected one progress event per page, got %d", len(bus.events))
	}
}

func TestRunStatusDedupThroughPipeline(t *testing.T) {
	html := `<table>
		<tr><th>Lockey</th></tr>
		<tr><td>duplicatedKey</td></tr>
		<tr><td><s>duplicatedKey</s></td></tr>
	</table>`
	fetcher := &fakeFetcher{pages: map[string]*confluence.Page{
		"100": {ID: "100", Title: "A", HTML: html},
	}}
	runner := &Runner{Fetcher: fetcher}

	results, _, err := runner.Run(context.Background(), []string{"100"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results[0].Lockeys) != 1 {
		t.Fatalf("expected dedup to 1 key, got %d", len(results[0].Lockeys))
	}
	if results[0].Lockeys[0].Status != extract.StatusPlain {
		t.Errorf("plain occurrence should win, got %s", results[0].Lockeys[0].Status)
	}
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{pages: map[string]*confluence.Page{}}
	runner := &Runner{Fetcher: fetcher}

	_, _, err := runner.Run(ctx, []string{"100"})
	if err == nil {
		t.Error("cancelled context should stop the run")
	}
}
