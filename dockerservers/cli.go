package dockerservers

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// CLI runs containers with the docker command line client
type CLI struct {
	Binary string
}

func (c CLI) binary() string {
	if c.Binary == "" {
		return "docker"
	}
	return c.Binary
}

func (c CLI) run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, c.binary(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", "", fmt.Errorf("%s %s: %w: %s", c.binary(), args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), stderr.String(), nil
}

// RunArgs returns the docker arguments used to start s
func RunArgs(s Server) []string {
	args := []string{"run", "-d", "--rm"}
	if s.Port != 0 {
		args = append(args, "-p", strconv.Itoa(s.Port)+":"+strconv.Itoa(s.PortInContainer))
	}
	args = append(args, s.Args...)
	return append(args, s.Image)
}

// Start implements Runtime
func (c CLI) Start(ctx context.Context, s Server) (string, error) {
	out, _, err := c.run(ctx, RunArgs(s)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Logs implements Runtime
func (c CLI) Logs(ctx context.Context, id string) (string, error) {
	// docker logs forwards the container's stderr to its own stderr
	stdout, stderr, err := c.run(ctx, "logs", id)
	return stdout + stderr, err
}

// Kill implements Runtime
func (c CLI) Kill(ctx context.Context, id string) error {
	_, _, err := c.run(ctx, "kill", id)
	return err
}
