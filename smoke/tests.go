package smoke

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-ftr/esclient"
	"github.com/ethereum-optimism/infra/op-ftr/failure"
	"github.com/ethereum-optimism/infra/op-ftr/providers"
	"github.com/ethereum-optimism/infra/op-ftr/suite"
	"github.com/ethereum-optimism/infra/op-ftr/version"
)

// resolve turns a value handed out while loading a test file into a T. Values
// are only resolved inside tests and hooks, since test analysis hands out
// placeholders.
func resolve[T any](v any) (T, error) {
	var zero T
	if providers.IsPending(v) {
		return zero, providers.ErrPending
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("got %T, want %T", v, zero)
	}
	return t, nil
}

func loadInfoTests(b *suite.Builder) error {
	esValue, err := b.GetService("es")
	if err != nil {
		return err
	}
	expected, err := b.GetService("esVersion")
	if err != nil {
		return err
	}
	metadata, err := b.GetService("failureMetadata")
	if err != nil {
		return err
	}

	b.Describe("elasticsearch info", func(b *suite.Builder) {
		b.Tags("smoke", "info")

		var info *esclient.Info
		b.Before(func(ctx context.Context) error {
			es, err := resolve[*esclient.Client](esValue)
			if err != nil {
				return err
			}
			info, err = es.Info(ctx)
			return err
		})

		b.It("reports the expected version", func(ctx context.Context) error {
			v, err := resolve[version.Version](expected)
			if err != nil {
				return err
			}
			if !v.Eql(info.Version.Number) {
				return fmt.Errorf("expected version %s, got %s", v, info.Version.Number)
			}
			return nil
		})

		b.It("reports a cluster name", func(ctx context.Context) error {
			if info.ClusterName == "" {
				if c, err := resolve[*failure.Collector](metadata); err == nil {
					_ = c.Add(map[string]any{"node": info.Name, "tagline": info.Tagline})
				}
				return errors.New("cluster name is empty")
			}
			return nil
		})
	})
	return nil
}

func loadHealthTests(b *suite.Builder) error {
	clusterValue, err := b.GetPageObject("cluster")
	if err != nil {
		return err
	}

	b.Describe("elasticsearch cluster health", func(b *suite.Builder) {
		b.Tags("smoke", "health")

		b.It("is not red", func(ctx context.Context) error {
			cluster, err := resolve[*Cluster](clusterValue)
			if err != nil {
				return err
			}
			_, err = cluster.WaitForStatus(ctx, HealthTimeout, "green", "yellow")
			return err
		})

		b.Describe("shards", func(b *suite.Builder) {
			b.ESVersionRequirement(">=7.0.0")

			b.It("has no unassigned primaries on a single node", func(ctx context.Context) error {
				cluster, err := resolve[*Cluster](clusterValue)
				if err != nil {
					return err
				}
				h, err := cluster.es.ClusterHealth(ctx)
				if err != nil {
					return err
				}
				if h.NumberOfNodes == 1 && h.Status == "red" {
					return fmt.Errorf("%d unassigned shards", h.UnassignedShards)
				}
				return nil
			})
		})
	})
	return nil
}
