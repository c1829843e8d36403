package dataset

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lolikgiovi/lockey/pkg/errors"
)

// Cache persists fetched datasets keyed by domain. Implemented by
// storage.Store; nil disables persistence.
type Cache interface {
	SaveDataset(domain string, payload []byte, fetchedAt time.Time) error
	LoadDataset(domain string) ([]byte, time.Time, error)
}

// Loader fetches environment language-pack payloads over HTTP and
// normalizes them. Concurrent fetches of the same environment are collapsed
// into a single request.
type Loader struct {
	Environments map[string]string // environment name -> dataset URL
	Cache        Cache
	MaxAge       time.Duration // serve cached payloads younger than this; 0 disables
	HTTPClient   *http.Client

	group singleflight.Group
}

// NewLoader creates a loader for the given environment URL map.
func NewLoader(environments map[string]string, insecure bool) *Loader {
	transport := http.DefaultTransport
	if insecure {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Loader{
		Environments: environments,
		HTTPClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Fetch retrieves and normalizes the dataset for the named environment.
func (l *Loader) Fetch(ctx context.Context, environment string) (*Dataset, error) {
	envURL, ok := l.Environments[environment]
	if !ok || envURL == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown environment").
			WithContext("environment", environment)
	}

	v, err, _ := l.group.Do(environment, func() (any, error) {
		return l.fetchAndNormalize(ctx, envURL)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Dataset), nil
}

func (l *Loader) fetchAndNormalize(ctx context.Context, envURL string) (*Dataset, error) {
	domain := domainOf(envURL)

	if l.Cache != nil && l.MaxAge > 0 {
		if payload, fetchedAt, err := l.Cache.LoadDataset(domain); err == nil && payload != nil {
			if time.Since(fetchedAt) < l.MaxAge {
				if ds, err := Normalize(payload); err == nil {
					return ds, nil
				}
				// corrupt cached payload falls through to a fresh fetch
			}
		}
	}

	payload, err := l.download(ctx, envURL)
	if err != nil {
		return nil, err
	}

	ds, err := Normalize(payload)
	if err != nil {
		return nil, err
	}

	if l.Cache != nil {
		if err := l.Cache.SaveDataset(domain, payload, time.Now()); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeCacheWrite, "failed to cache dataset").
				WithContext("domain", domain)
		}
	}
	return ds, nil
}

func (l *Loader) download(ctx context.Context, envURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, envURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid dataset URL")
	}

	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePageFetch, "failed to fetch dataset").
			WithUserMessage(fmt.Sprintf("Failed to fetch env JSON: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.ErrCodePageFetch, "dataset endpoint returned non-200").
			WithContext("status", resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePageFetch, "failed to read dataset body")
	}
	return payload, nil
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
