//go:build integration

// Package testhelpers starts throwaway PostgreSQL and Redis containers for
// integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const startupTimeout = 60 * time.Second

// Container is a running service container and its connection URL.
type Container struct {
	Container testcontainers.Container
	URL       string
}

// Terminate stops and removes the container.
func (c *Container) Terminate(ctx context.Context) error {
	if c == nil || c.Container == nil {
		return nil
	}
	return c.Container.Terminate(ctx)
}

// StartPostgres runs postgres:16-alpine and returns a pgx connection URL.
func StartPostgres(ctx context.Context) (*Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "jobmate",
			"POSTGRES_PASSWORD": "jobmate",
			"POSTGRES_DB":       "jobmate_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(startupTimeout),
	}
	c, err := start(ctx, req, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}
	c.URL = fmt.Sprintf("postgres://jobmate:jobmate@%s/jobmate_test?sslmode=disable", c.URL)
	return c, nil
}

// StartRedis runs redis:7-alpine and returns a go-redis URL.
func StartRedis(ctx context.Context) (*Container, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(startupTimeout),
	}
	c, err := start(ctx, req, "6379")
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}
	c.URL = "redis://" + c.URL + "/0"
	return c, nil
}

// start runs req and returns the container with URL set to host:port.
func start(ctx context.Context, req testcontainers.ContainerRequest, port string) (*Container, error) {
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	mapped, err := ctr.MappedPort(ctx, port+"/tcp")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	return &Container{Container: ctr, URL: net.JoinHostPort(host, mapped.Port())}, nil
}
