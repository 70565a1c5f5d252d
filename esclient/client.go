// Package esclient is a small HTTP client for the Elasticsearch endpoints the
// runner needs: the root info document and cluster health.
package esclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/retry"
	"github.com/ethereum/go-ethereum/log"
)

const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 30 * time.Second
)

// Config configures a Client
type Config struct {
	Log         log.Logger
	URL         string
	Username    string
	Password    string
	MaxAttempts int
	Strategy    retry.Strategy
	HTTPClient  *http.Client
}

// Info is the document served on the root endpoint
type Info struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Version     struct {
		Number        string `json:"number"`
		BuildFlavor   string `json:"build_flavor"`
		LuceneVersion string `json:"lucene_version"`
	} `json:"version"`
	Tagline string `json:"tagline"`
}

// Health is the document served on /_cluster/health
type Health struct {
	ClusterName      string `json:"cluster_name"`
	Status           string `json:"status"`
	NumberOfNodes    int    `json:"number_of_nodes"`
	ActiveShards     int    `json:"active_shards"`
	UnassignedShards int    `json:"unassigned_shards"`
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Client talks to a single Elasticsearch node
type Client struct {
	log      log.Logger
	base     *url.URL
	username string
	password string
	attempts int
	strategy retry.Strategy
	http     *http.Client
}

// New creates a client from cfg
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("elasticsearch url is required")
	}
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid elasticsearch url: %w", err)
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Strategy == nil {
		cfg.Strategy = retry.Exponential()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	// credentials in the url take precedence
	username, password := cfg.Username, cfg.Password
	if base.User != nil {
		username = base.User.Username()
		password, _ = base.User.Password()
		base.User = nil
	}
	return &Client{
		log:      cfg.Log,
		base:     base,
		username: username,
		password: password,
		attempts: cfg.MaxAttempts,
		strategy: cfg.Strategy,
		http:     cfg.HTTPClient,
	}, nil
}

// URL returns the base url without credentials
func (c *Client) URL() string {
	return c.base.String()
}

// Info fetches the root info document
func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.get(ctx, "/", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Version returns the version number reported by the node
func (c *Client) Version(ctx context.Context) (string, error) {
	info, err := c.Info(ctx)
	if err != nil {
		return "", err
	}
	if info.Version.Number == "" {
		return "", errors.New("response does not contain a version number")
	}
	return info.Version.Number, nil
}

// ClusterHealth fetches the cluster health
func (c *Client) ClusterHealth(ctx context.Context) (*Health, error) {
	var health Health
	if err := c.get(ctx, "/_cluster/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	target := c.base.JoinPath(path).String()
	body, err := retry.Do(ctx, c.attempts, c.strategy, func() ([]byte, error) {
		body, err := c.do(ctx, target)
		if err != nil {
			c.log.Debug("Elasticsearch request failed", "url", target, "err", err)
		}
		return body, err
	})
	if err != nil {
		return fmt.Errorf("GET %s: %w", target, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response of GET %s: %w", target, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
