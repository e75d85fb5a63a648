// Package metadata talks to an external comic metadata source. The scrape
// pipeline is the only consumer; it treats every failure here as recoverable
// and counts it toward the run's skip threshold.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"longbox/internal/config"
	"longbox/internal/services"
)

// Details holds the fields a successful scrape returns for one comic.
type Details struct {
	Series    string `json:"series"`
	Title     string `json:"title"`
	Number    string `json:"number"`
	Year      int    `json:"year"`
	Summary   string `json:"summary"`
	Publisher string `json:"publisher"`
}

// Service is the metadata-source collaborator consumed by the scrape
// pipeline.
type Service interface {
	// Scrape fetches current details for the given source reference.
	Scrape(ctx context.Context, source string, refID string) (*Details, error)
}

// NewService builds a metadata client from configuration. Without a base URL
// the returned service rejects every scrape with a configuration error.
func NewService(cfg *config.Config) Service {
	baseURL := strings.TrimSpace(cfg.Metadata.BaseURL)
	if baseURL == "" {
		return unconfigured{}
	}

	timeout := time.Duration(cfg.Metadata.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(cfg.Metadata.APIKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Service = (*client)(nil)

func (c *client) Scrape(ctx context.Context, source, refID string) (*Details, error) {
	source = strings.TrimSpace(source)
	refID = strings.TrimSpace(refID)
	if source == "" || refID == "" {
		return nil, services.Wrap(services.ErrValidation, "scrape", "metadata_lookup",
			"metadata source and reference id are required", nil)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(source), url.PathEscape(refID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrAdaptor, "scrape", "metadata_lookup",
			"build metadata request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scrape", "metadata_lookup",
			"metadata request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "scrape", "metadata_lookup",
			fmt.Sprintf("no metadata for %s/%s", source, refID), nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, services.Wrap(services.ErrTransient, "scrape", "metadata_lookup",
			fmt.Sprintf("metadata source returned %s", resp.Status), nil)
	case resp.StatusCode != http.StatusOK:
		return nil, services.Wrap(services.ErrAdaptor, "scrape", "metadata_lookup",
			fmt.Sprintf("metadata source returned %s", resp.Status), nil)
	}

	var details Details
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, services.Wrap(services.ErrAdaptor, "scrape", "metadata_lookup",
			"decode metadata response", err)
	}
	return &details, nil
}

type unconfigured struct{}

func (unconfigured) Scrape(context.Context, string, string) (*Details, error) {
	return nil, services.Wrap(services.ErrConfiguration, "scrape", "metadata_lookup",
		"metadata base URL is not configured", nil)
}
