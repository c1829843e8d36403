// Package confluence is a thin client for the Confluence Data Center REST
// API: page content by id, page lookup by space/title, and CQL title search.
package confluence

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lolikgiovi/lockey/pkg/errors"
)

// Page is the content returned from a fetch: id, title and storage HTML.
type Page struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// PageInfo is a search result entry.
type PageInfo struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SpaceKey string `json:"spaceKey,omitempty"`
}

// Client calls the Confluence REST API with PAT bearer auth.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the given Confluence base URL.
func NewClient(baseURL, token string, skipTLSVerify bool, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := http.DefaultTransport
	if skipTLSVerify {
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

type contentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  *struct {
		Storage *struct {
			Value string `json:"value"`
		} `json:"storage"`
		View *struct {
			Value string `json:"value"`
		} `json:"view"`
	} `json:"body"`
}

func (c contentResponse) html() string {
	if c.Body == nil {
		return ""
	}
	if c.Body.Storage != nil {
		return c.Body.Storage.Value
	}
	if c.Body.View != nil {
		return c.Body.View.Value
	}
	return ""
}

// FetchPage retrieves a page's content by page id.
func (c *Client) FetchPage(ctx context.Context, pageID string) (*Page, error) {
	endpoint := fmt.Sprintf("%s/rest/api/content/%s?expand=body.storage", c.BaseURL, url.PathEscape(pageID))

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp.StatusCode, pageID); err != nil {
		return nil, err
	}

	var content contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePageParse, "failed to parse content response")
	}

	return &Page{ID: content.ID, Title: content.Title, HTML: content.html()}, nil
}

// FetchPageByTitle looks a page up by space key and title. Confluence Server
// installs differ on the /wiki context path, so both prefixes are tried.
func (c *Client) FetchPageByTitle(ctx context.Context, spaceKey, title string) (*Page, error) {
	var lastStatus int

	for _, prefix := range []string{"/wiki", ""} {
		endpoint := fmt.Sprintf("%s%s/rest/api/content?spaceKey=%s&title=%s&expand=body.storage",
			c.BaseURL, prefix, url.QueryEscape(spaceKey), url.QueryEscape(title))

		resp, err := c.get(ctx, endpoint)
		if err != nil {
			continue
		}

		lastStatus = resp.StatusCode
		// auth errors are terminal, other statuses try the next prefix
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			resp.Body.Close()
			return nil, c.checkStatus(resp.StatusCode, title)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			continue
		}

		var list struct {
			Results []contentResponse `json:"results"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&list)
		resp.Body.Close()
		if decodeErr != nil {
			continue
		}
		if len(list.Results) > 0 {
			page := list.Results[0]
			return &Page{ID: page.ID, Title: page.Title, HTML: page.html()}, nil
		}
	}

	return nil, errors.New(errors.ErrCodePageNotFound, "page not found by title").
		WithContext("space", spaceKey).
		WithContext("title", title).
		WithContext("last_status", lastStatus).
		WithUserMessage(fmt.Sprintf("Page '%s' not found in space '%s'", title, spaceKey))
}

// SearchPages finds pages whose title matches the query, via CQL.
func (c *Client) SearchPages(ctx context.Context, query string) ([]PageInfo, error) {
	cql := fmt.Sprintf("type=page AND title~%q", query)
	endpoint := fmt.Sprintf("%s/rest/api/content/search?cql=%s&limit=20", c.BaseURL, url.QueryEscape(cql))

	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp.StatusCode, query); err != nil {
		return nil, err
	}

	var search struct {
		Results []struct {
			Content *struct {
				ID         string `json:"id"`
				Title      string `json:"title"`
				Expandable *struct {
					Space string `json:"space"`
				} `json:"_expandable"`
			} `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePageParse, "failed to parse search results")
	}

	var pages []PageInfo
	for _, result := range search.Results {
		if result.Content == nil {
			continue
		}
		info := PageInfo{ID: result.Content.ID, Title: result.Content.Title}
		if result.Content.Expandable != nil {
			// space arrives as a path like /rest/api/space/SPACEKEY
			parts := strings.Split(result.Content.Expandable.Space, "/")
			info.SpaceKey = parts[len(parts)-1]
		}
		pages = append(pages, info)
	}
	return pages, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request URL")
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("X-Atlassian-Token", "no-check")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePageFetch, "request failed").
			WithUserMessage(fmt.Sprintf("Connection error: unable to reach Confluence (%v)", err))
	}
	return resp, nil
}

func (c *Client) checkStatus(status int, subject string) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized:
		return errors.New(errors.ErrCodeAuthFailed, "confluence returned 401").
			WithUserMessage("Authentication failed (401): invalid or expired PAT. Update your Confluence credentials in settings.")
	case status == http.StatusForbidden:
		return errors.New(errors.ErrCodeAccessDenied, "confluence returned 403").
			WithUserMessage("Access denied (403): you don't have permission to view this page.")
	case status == http.StatusNotFound:
		return errors.New(errors.ErrCodePageNotFound, "confluence returned 404").
			WithContext("subject", subject).
			WithUserMessage("Page not found (404): check the page ID.")
	default:
		return errors.New(errors.ErrCodePageFetch, "confluence returned non-200").
			WithContext("status", status).
			WithUserMessage(fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)))
	}
}
