package service

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-ftr/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"

	MetricsHost = "0.0.0.0"
	MetricsPort = 7300
)

// Config selects where the servers listen. An empty Config uses the defaults.
type Config struct {
	HealthzAddr    string
	MetricsEnabled bool
	MetricsAddr    string
}

// DefaultConfig serves healthz and metrics on their default ports
func DefaultConfig() Config {
	return Config{
		HealthzAddr:    net.JoinHostPort(HealthzHost, HealthzPort),
		MetricsEnabled: true,
		MetricsAddr:    net.JoinHostPort(MetricsHost, strconv.Itoa(MetricsPort)),
	}
}

type Service struct {
	cfg     Config
	log     log.Logger
	Healthz *HealthzServer
	Metrics *MetricsServer
	group   *errgroup.Group
}

func New(logger log.Logger, cfg Config) *Service {
	if cfg.HealthzAddr == "" {
		cfg.HealthzAddr = DefaultConfig().HealthzAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = DefaultConfig().MetricsAddr
	}
	s := &Service{
		cfg:     cfg,
		log:     logger,
		Healthz: &HealthzServer{log: logger},
		Metrics: &MetricsServer{},
	}
	return s
}

func (s *Service) Start(ctx context.Context) {
	s.log.Info("service starting")

	s.group, ctx = errgroup.WithContext(ctx)
	s.group.Go(func() error {
		s.log.Info("starting healthz server", "addr", s.cfg.HealthzAddr)
		if err := s.Healthz.Start(ctx, s.cfg.HealthzAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error starting healthz server", "err", err)
			metrics.RecordErrorDetails("error starting healthz server", err)
			return err
		}
		return nil
	})

	if s.cfg.MetricsEnabled {
		s.group.Go(func() error {
			s.log.Info("starting metrics server", "addr", s.cfg.MetricsAddr)
			if err := s.Metrics.Start(ctx, s.cfg.MetricsAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("error starting metrics server", "err", err)
				metrics.RecordErrorDetails("error starting metrics server", err)
				return err
			}
			return nil
		})
	}

	s.log.Info("service started")
}

// Shutdown stops both servers and waits for them to exit
func (s *Service) Shutdown() error {
	s.log.Info("service shutting down")

	_ = s.Healthz.Shutdown()
	s.log.Info("healthz stopped")

	_ = s.Metrics.Shutdown()
	s.log.Info("metrics stopped")

	var err error
	if s.group != nil {
		err = s.group.Wait()
	}
	s.log.Info("service stopped")
	return err
}
