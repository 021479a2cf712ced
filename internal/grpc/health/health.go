// Package health serves the standard gRPC health protocol for orchestrators
// that probe over gRPC instead of HTTP.
package health

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"xpose-triage/pkg/logger"
)

// ServiceName is the service name reported alongside the overall status
const ServiceName = "xpose.triage.v1.TriageService"

const (
	defaultInterval = 10 * time.Second
	pingTimeout     = 2 * time.Second
)

// Pinger is a dependency whose reachability gates SERVING
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker keeps the gRPC health status in step with its dependencies
type Checker struct {
	server   *health.Server
	checks   map[string]Pinger
	interval time.Duration
	logger   *logger.Logger
}

// NewChecker creates a checker. Nil entries in checks are ignored.
func NewChecker(checks map[string]Pinger, interval time.Duration, log *logger.Logger) *Checker {
	if interval <= 0 {
		interval = defaultInterval
	}
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &Checker{
		server:   health.NewServer(),
		checks:   active,
		interval: interval,
		logger:   log.WithComponent("grpc-health"),
	}
}

// Register attaches the health service to s
func (c *Checker) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, c.server)
}

// Refresh pings every dependency once and updates the serving status.
// It returns true when all of them answered.
func (c *Checker) Refresh(ctx context.Context) bool {
	healthy := true
	for name, p := range c.checks {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			c.logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
			healthy = false
		}
	}

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !healthy {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)
	return healthy
}

// Run refreshes the status until ctx is cancelled, then marks the
// service as shutting down.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}
