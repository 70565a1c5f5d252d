// Package smoke is the catalog the op-ftr binary runs configs against: an es
// service, a cluster page object, smoke test files and a ping runner.
package smoke

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	ftr "github.com/ethereum-optimism/infra/op-ftr"
	"github.com/ethereum-optimism/infra/op-ftr/config"
	"github.com/ethereum-optimism/infra/op-ftr/esclient"
	"github.com/ethereum-optimism/infra/op-ftr/providers"
	"github.com/ethereum-optimism/infra/op-ftr/services"
)

const (
	DefaultProtocol = "http"
	DefaultHostname = "localhost"
	DefaultPort     = 9200

	// HealthTimeout bounds how long the health test waits for a non-red cluster
	HealthTimeout = time.Minute
)

// Catalog returns the built-in catalog
func Catalog() *ftr.Catalog {
	return ftr.NewCatalog().
		AddService("es", newES,
			providers.ServiceRef("config"), providers.ServiceRef("log")).
		AddPageObject("cluster", newCluster,
			providers.ServiceRef("es"), providers.ServiceRef("retry")).
		AddTestFile("es_info", loadInfoTests).
		AddTestFile("es_health", loadHealthTests).
		AddRunner("es_ping", ping)
}

// ESURL builds the url of the servers.elasticsearch section of cfg
func ESURL(cfg *config.Config) string {
	protocol := cfg.String("servers.elasticsearch.protocol")
	if protocol == "" {
		protocol = DefaultProtocol
	}
	hostname := cfg.String("servers.elasticsearch.hostname")
	if hostname == "" {
		hostname = DefaultHostname
	}
	port := cfg.Int("servers.elasticsearch.port")
	if port == 0 {
		port = DefaultPort
	}
	u := url.URL{Scheme: protocol, Host: net.JoinHostPort(hostname, strconv.Itoa(port))}
	return u.String()
}

func newES(ctx context.Context, r *providers.Resolver) (any, error) {
	cfg, err := providers.GetService[*config.Config](ctx, r, "config")
	if err != nil {
		return nil, err
	}
	logger, err := providers.GetService[log.Logger](ctx, r, "log")
	if err != nil {
		return nil, err
	}
	return esclient.New(esclient.Config{
		Log:      logger,
		URL:      ESURL(cfg),
		Username: cfg.String("servers.elasticsearch.username"),
		Password: cfg.String("servers.elasticsearch.password"),
	})
}

// Cluster waits on the state of the es cluster
type Cluster struct {
	es    *esclient.Client
	retry *services.Retry
}

func newCluster(ctx context.Context, r *providers.Resolver) (any, error) {
	es, err := providers.GetService[*esclient.Client](ctx, r, "es")
	if err != nil {
		return nil, err
	}
	retry, err := providers.GetService[*services.Retry](ctx, r, "retry")
	if err != nil {
		return nil, err
	}
	return &Cluster{es: es, retry: retry}, nil
}

// WaitForStatus waits until the cluster reports one of the given health statuses
func (c *Cluster) WaitForStatus(ctx context.Context, timeout time.Duration, statuses ...string) (*esclient.Health, error) {
	var health *esclient.Health
	err := c.retry.TryForTime(ctx, timeout, func(ctx context.Context) error {
		h, err := c.es.ClusterHealth(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			if h.Status == s {
				health = h
				return nil
			}
		}
		return fmt.Errorf("cluster status is %q, want one of %v", h.Status, statuses)
	})
	return health, err
}

// ping is a custom runner that only checks es is reachable. It returns the
// number of failed checks.
func ping(ctx context.Context, r *providers.Resolver) (any, error) {
	logger, err := providers.GetService[log.Logger](ctx, r, "log")
	if err != nil {
		return nil, err
	}
	es, err := providers.GetService[*esclient.Client](ctx, r, "es")
	if err != nil {
		return nil, err
	}
	info, err := es.Info(ctx)
	if err != nil {
		var statusErr *esclient.StatusError
		if errors.As(err, &statusErr) {
			logger.Error("Elasticsearch ping failed", "url", es.URL(), "status", statusErr.Code)
			return 1, nil
		}
		return nil, err
	}
	logger.Info("Elasticsearch reachable", "cluster", info.ClusterName, "version", info.Version.Number)
	return nil, nil
}
