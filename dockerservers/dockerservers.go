// Package dockerservers starts the docker containers a config asks for before
// the tests run and kills them on cleanup.
package dockerservers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/retry"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-ftr/lifecycle"
	"github.com/ethereum-optimism/infra/op-ftr/suite"
)

const (
	DefaultWaitTimeout = 2 * time.Minute
	logPollInterval    = 500 * time.Millisecond
)

// Server is the config of one docker server
type Server struct {
	Name            string
	Enabled         bool
	Image           string
	Port            int
	PortInContainer int
	WaitForLogLine  string
	WaitTimeout     time.Duration
	Args            []string

	// URL is set once the server has been started
	URL string
}

// Runtime runs containers
type Runtime interface {
	Start(ctx context.Context, s Server) (string, error)
	Logs(ctx context.Context, id string) (string, error)
	Kill(ctx context.Context, id string) error
}

// Servers manages the docker servers of a run
type Servers struct {
	log     log.Logger
	runtime Runtime
	servers map[string]*Server

	mu         sync.Mutex
	containers map[string]string
}

// New creates the servers described by cfg and subscribes them to l.
// cfg is the dockerServers section of a config.
func New(logger log.Logger, l *lifecycle.Lifecycle, runtime Runtime, cfg map[string]any) (*Servers, error) {
	servers, err := parse(cfg)
	if err != nil {
		return nil, err
	}
	s := &Servers{
		log:        logger,
		runtime:    runtime,
		servers:    servers,
		containers: make(map[string]string),
	}
	l.BeforeTests.Add(func(ctx context.Context, _ *suite.Suite) error {
		return s.Start(ctx)
	})
	l.Cleanup.Add(func(ctx context.Context, _ lifecycle.None) error {
		return s.Stop(ctx)
	})
	return s, nil
}

func parse(cfg map[string]any) (map[string]*Server, error) {
	servers := make(map[string]*Server, len(cfg))
	for name, raw := range cfg {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("docker server %q: config must be a map", name)
		}
		s := &Server{Name: name, WaitTimeout: DefaultWaitTimeout}
		s.Enabled, _ = m["enabled"].(bool)
		s.Image, _ = m["image"].(string)
		s.WaitForLogLine, _ = m["waitForLogLine"].(string)
		s.Port = intValue(m["port"])
		s.PortInContainer = intValue(m["portInContainer"])
		if s.PortInContainer == 0 {
			s.PortInContainer = s.Port
		}
		switch v := m["waitTimeout"].(type) {
		case string:
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("docker server %q: invalid waitTimeout: %w", name, err)
			}
			s.WaitTimeout = d
		case int:
			s.WaitTimeout = time.Duration(v) * time.Millisecond
		}
		if args, ok := m["args"].([]any); ok {
			for _, a := range args {
				if str, ok := a.(string); ok {
					s.Args = append(s.Args, str)
				}
			}
		}
		if s.Enabled && s.Image == "" {
			return nil, fmt.Errorf("docker server %q: image is required", name)
		}
		if s.Port != 0 {
			s.URL = fmt.Sprintf("http://localhost:%d", s.Port)
		}
		servers[name] = s
	}
	return servers, nil
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Has reports whether a server is configured
func (s *Servers) Has(name string) bool {
	_, ok := s.servers[name]
	return ok
}

// IsEnabled reports whether a server is configured and enabled
func (s *Servers) IsEnabled(name string) bool {
	srv, ok := s.servers[name]
	return ok && srv.Enabled
}

// Get returns the config of a server
func (s *Servers) Get(name string) (Server, error) {
	srv, ok := s.servers[name]
	if !ok {
		return Server{}, fmt.Errorf("no docker server named %q", name)
	}
	return *srv, nil
}

// Names returns the configured servers sorted by name
func (s *Servers) Names() []string {
	names := make([]string, 0, len(s.servers))
	for name := range s.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start starts every enabled server and waits until each is ready
func (s *Servers) Start(ctx context.Context) error {
	for _, name := range s.Names() {
		srv := s.servers[name]
		if !srv.Enabled {
			continue
		}
		s.log.Info("Starting docker server", "name", name, "image", srv.Image, "port", srv.Port)
		id, err := s.runtime.Start(ctx, *srv)
		if err != nil {
			return fmt.Errorf("starting docker server %q: %w", name, err)
		}
		s.mu.Lock()
		s.containers[name] = id
		s.mu.Unlock()

		if err := s.waitReady(ctx, srv, id); err != nil {
			return fmt.Errorf("waiting for docker server %q: %w", name, err)
		}
		s.log.Info("Docker server ready", "name", name, "container", id)
	}
	return nil
}

var errNotReady = errors.New("log line not found yet")

func (s *Servers) waitReady(ctx context.Context, srv *Server, id string) error {
	if srv.WaitForLogLine == "" {
		return nil
	}
	attempts := max(int(srv.WaitTimeout/logPollInterval), 1)
	_, err := retry.Do(ctx, attempts, retry.Fixed(logPollInterval), func() (struct{}, error) {
		logs, err := s.runtime.Logs(ctx, id)
		if err != nil {
			return struct{}{}, err
		}
		if !strings.Contains(logs, srv.WaitForLogLine) {
			return struct{}{}, errNotReady
		}
		return struct{}{}, nil
	})
	return err
}

// Stop kills every started container. All containers are killed even if one fails.
func (s *Servers) Stop(ctx context.Context) error {
	s.mu.Lock()
	containers := s.containers
	s.containers = make(map[string]string)
	s.mu.Unlock()

	var errs []error
	for name, id := range containers {
		s.log.Info("Killing docker server", "name", name, "container", id)
		if err := s.runtime.Kill(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("killing docker server %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
