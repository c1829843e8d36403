package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/lolikgiovi/lockey/pkg/api"
	"github.com/lolikgiovi/lockey/pkg/bulk"
	"github.com/lolikgiovi/lockey/pkg/bus"
	"github.com/lolikgiovi/lockey/pkg/config"
	"github.com/lolikgiovi/lockey/pkg/confluence"
	"github.com/lolikgiovi/lockey/pkg/dataset"
	"github.com/lolikgiovi/lockey/pkg/extract"
	"github.com/lolikgiovi/lockey/pkg/logging"
	"github.com/lolikgiovi/lockey/pkg/reconcile"
	"github.com/lolikgiovi/lockey/pkg/storage"
	"github.com/lolikgiovi/lockey/pkg/watch"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "grab":
		err = runGrab(args[1:])
	case "bulk":
		err = runBulk(args[1:])
	case "export":
		err = runExport(args[1:])
	case "serve":
		err = runServe(args[1:])
	case "version":
		fmt.Printf("lockey %s (%s, built %s)\n", version, commit, buildDate)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: lockey <command> [flags]

Commands:
  grab <page>     extract lockeys from one Confluence page (URL, id, or title)
  bulk <file>     extract lockeys from every page listed in a file
  export          export a cached page as TSV, CSV, or XLSX
  serve           run the local HTTP API
  version         print version information
`)
}

type app struct {
	cfg    *config.Config
	store  *storage.Store
	client *confluence.Client
	loader *dataset.Loader
	logger *logging.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Cache.Path)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, store: store}

	if cfg.Confluence.Domain != "" {
		a.client = confluence.NewClient(cfg.Confluence.Domain, cfg.Confluence.Token,
			cfg.Confluence.SkipTLSVerify, cfg.Confluence.Timeout)
	}
	if len(cfg.Dataset.Environments) > 0 {
		a.loader = dataset.NewLoader(cfg.Dataset.Environments, cfg.Confluence.SkipTLSVerify)
		a.loader.Cache = store
		a.loader.MaxAge = time.Hour
	}
	if logger, err := logging.NewLogger(cfg.Logging.Dir, uuid.NewString()); err == nil {
		a.logger = logger
	}
	return a, nil
}

func (a *app) close() {
	if a.logger != nil {
		a.logger.Close()
	}
	a.store.Close()
}

// loadDataset fetches the dataset for the environment named by the flag,
// falling back to the configured default. Empty env with no environments
// configured returns nil, which marks every key absent.
func (a *app) loadDataset(ctx context.Context, env string) (*dataset.Dataset, error) {
	if a.loader == nil {
		return nil, nil
	}
	if env == "" {
		env = a.cfg.Dataset.DefaultEnvironment
	}
	return a.loader.Fetch(ctx, env)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runGrab(args []string) error {
	fs := flag.NewFlagSet("grab", flag.ExitOnError)
	env := fs.String("env", "", "dataset environment to reconcile against")
	space := fs.String("space", "", "space key for bare-title lookups")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lockey grab [flags] <page-url|page-id|title>")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if a.client == nil {
		return fmt.Errorf("confluence domain is not configured")
	}

	ctx, cancel := signalContext()
	defer cancel()

	ds, err := a.loadDataset(ctx, *env)
	if err != nil {
		return err
	}

	page, err := fetchOne(ctx, a.client, fs.Arg(0), *space)
	if err != nil {
		return err
	}

	candidates, err := extract.Extract(page.HTML)
	if err != nil {
		return err
	}
	lockeys := reconcile.Reconcile(candidates, ds)

	if err := a.store.SavePage(page.ID, page.Title, lockeys); err != nil {
		return err
	}

	if err := reconcile.WriteTSV(os.Stdout, lockeys); err != nil {
		return err
	}
	summary := reconcile.Summarize(lockeys)
	fmt.Fprintf(os.Stderr, "%s: %d lockeys (%d active, %d struck, %d uncertain), %d in remote\n",
		page.Title, summary.Total, summary.Active, summary.Struck, summary.Uncertain, summary.Present)
	return nil
}

func fetchOne(ctx context.Context, client *confluence.Client, input, space string) (*confluence.Page, error) {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "://") {
		ref, err := confluence.ParsePageURL(input)
		if err != nil {
			return nil, err
		}
		if ref.PageID != "" {
			return client.FetchPage(ctx, ref.PageID)
		}
		return client.FetchPageByTitle(ctx, ref.SpaceKey, ref.Title)
	}
	if isNumeric(input) {
		return client.FetchPage(ctx, input)
	}
	return client.FetchPageByTitle(ctx, space, input)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func runBulk(args []string) error {
	fs := flag.NewFlagSet("bulk", flag.ExitOnError)
	env := fs.String("env", "", "dataset environment to reconcile against")
	space := fs.String("space", "", "space key for bare-title inputs")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: lockey bulk [flags] <screens-file>")
	}

	inputs, err := readLines(fs.Arg(0))
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no screens listed in %s", fs.Arg(0))
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if a.client == nil {
		return fmt.Errorf("confluence domain is not configured")
	}

	ctx, cancel := signalContext()
	defer cancel()

	ds, err := a.loadDataset(ctx, *env)
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if perMinute := a.cfg.Bulk.FetchPerMinute; perMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
	}

	runner := &bulk.Runner{
		Fetcher:      a.client,
		Dataset:      ds,
		DefaultSpace: *space,
		Limiter:      limiter,
		Logger:       a.logger,
	}

	results, summary, err := runner.Run(ctx, inputs)
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error != "" {
			fmt.Fprintf(os.Stderr, "  %-40s FAILED: %s\n", result.ScreenName, result.Error)
			continue
		}
		fmt.Fprintf(os.Stderr, "  %-40s %d lockeys\n", result.ScreenName, len(result.Lockeys))
		if result.PageID != "" {
			if err := a.store.SavePage(result.PageID, result.ScreenName, result.Lockeys); err != nil {
				fmt.Fprintf(os.Stderr, "  %-40s cache save failed: %v\n", result.ScreenName, err)
			}
		}
	}
	fmt.Fprintf(os.Stderr, "run %s: %d pages, %d ok, %d failed, %d keys (%d active, %d struck)\n",
		summary.RunID, summary.Pages, summary.Succeeded, summary.Failed,
		summary.TotalKeys, summary.Active, summary.Struck)
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	pageID := fs.String("page", "", "cached page id to export")
	format := fs.String("format", "tsv", "output format: tsv, csv, or xlsx")
	out := fs.String("o", "", "output file (default stdout)")
	fs.Parse(args)
	if *pageID == "" {
		return fmt.Errorf("usage: lockey export -page <id> [-format tsv|csv|xlsx] [-o file]")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	page, err := a.store.GetPage(*pageID)
	if err != nil {
		return err
	}

	hidden := make(map[string]bool, len(page.HiddenKeys))
	for _, key := range page.HiddenKeys {
		hidden[key] = true
	}
	candidates := make([]reconcile.Candidate, 0, len(page.Lockeys))
	for _, c := range page.Lockeys {
		if !hidden[c.Key] {
			candidates = append(candidates, c)
		}
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch strings.ToLower(*format) {
	case "tsv":
		return reconcile.WriteTSV(w, candidates)
	case "csv":
		return reconcile.WriteCSV(w, candidates)
	case "xlsx":
		return reconcile.WriteXLSX(w, candidates)
	default:
		return fmt.Errorf("unsupported format %q", *format)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	bind := fs.String("bind", "", "address to listen on (overrides config)")
	fs.Parse(args)

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	if *bind != "" {
		a.cfg.API.Bind = *bind
	}

	ctx, cancel := signalContext()
	defer cancel()

	var eventBus bus.MessageBus
	if a.cfg.Bus.Backend == "nats" {
		natsBus, err := bus.NewNATSBus(a.cfg.Bus.URL, "lockey")
		if err != nil {
			return err
		}
		eventBus = natsBus
	} else {
		eventBus = bus.NewMemoryBus()
	}
	defer eventBus.Close()

	// A nil *Client must not become a non-nil interface.
	var fetcher bulk.PageFetcher
	if a.client != nil {
		fetcher = a.client
	}
	server := api.NewServer(a.cfg, a.store, a.loader, fetcher, eventBus, a.logger)

	if path := strings.TrimSpace(a.cfg.Dataset.WatchPath); path != "" {
		watcher, err := watch.New(a.cfg.Search.DebounceInterval, eventBus)
		if err != nil {
			return err
		}
		defer watcher.Close()
		if err := watcher.Watch(path); err != nil {
			return err
		}
		wireDatasetWatch(watcher, server, a.logger)
	}

	fmt.Fprintf(os.Stderr, "lockey %s listening on http://%s\n", version, a.cfg.API.Bind)
	return server.Start(ctx)
}

// wireDatasetWatch swaps the server's dataset on every successful reload of
// the watched dataset file. Failed reloads keep the last good dataset.
func wireDatasetWatch(watcher *watch.Watcher, server *api.Server, logger *logging.Logger) {
	watcher.Subscribe("", func(ev watch.Event) {
		if ev.Err != nil {
			if logger != nil {
				logger.Error(logging.CategoryDataset, "dataset_reload_failed", ev.Err.Error(),
					map[string]any{"path": ev.Path})
			}
			return
		}
		server.SetDataset(ev.Dataset)
		if logger != nil {
			logger.Info(logging.CategoryDataset, "dataset_reloaded", "watched dataset file reloaded",
				map[string]any{"path": ev.Path, "rows": len(ev.Dataset.Rows)})
		}
	})
}
