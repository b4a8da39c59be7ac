// Package health implements the external service health checker used by
// cmd/healthcheck: per-service HTTP probes with a hard timeout, an optional
// Redis ping, and critical/non-critical classification driving the exit code.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Exit codes reported by the checker.
const (
	ExitHealthy         = 0 // every service healthy
	ExitNonCriticalDown = 1 // only non-critical services down
	ExitCriticalDown    = 2 // at least one critical service down
	ExitCheckerCrashed  = 3 // the checker itself failed
)

// DefaultTimeout bounds each individual probe. A service that does not
// answer within it is reported unhealthy rather than waited on.
const DefaultTimeout = 5 * time.Second

// Service is one probe target.
type Service struct {
	Name      string
	URL       string // HTTP probe when set
	RedisAddr string // Redis ping probe when set
	Critical  bool
}

// Result is the outcome of one probe.
type Result struct {
	Name     string
	Healthy  bool
	Critical bool
	Status   int // HTTP status code, 0 for non-HTTP probes
	Latency  time.Duration
	Err      string
}

// Checker probes a fixed set of services.
type Checker struct {
	services []Service
	client   *http.Client
}

func NewChecker(services []Service, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{
		services: services,
		client:   &http.Client{Timeout: timeout},
	}
}

// Run probes every service and returns the results plus the overall exit
// code.
func (c *Checker) Run(ctx context.Context) ([]Result, int) {
	results := make([]Result, 0, len(c.services))
	for _, svc := range c.services {
		results = append(results, c.probe(ctx, svc))
	}

	code := ExitHealthy
	for _, r := range results {
		if r.Healthy {
			continue
		}
		if r.Critical {
			code = ExitCriticalDown
			break
		}
		code = ExitNonCriticalDown
	}
	return results, code
}

func (c *Checker) probe(ctx context.Context, svc Service) Result {
	start := time.Now()
	res := Result{Name: svc.Name, Critical: svc.Critical}

	switch {
	case svc.URL != "":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.URL, nil)
		if err != nil {
			res.Err = err.Error()
			break
		}
		resp, err := c.client.Do(req)
		if err != nil {
			res.Err = err.Error()
			break
		}
		resp.Body.Close()
		res.Status = resp.StatusCode
		if resp.StatusCode == http.StatusOK {
			res.Healthy = true
		} else {
			res.Err = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}

	case svc.RedisAddr != "":
		client := redis.NewClient(&redis.Options{Addr: svc.RedisAddr})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, c.client.Timeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			res.Err = err.Error()
		} else {
			res.Healthy = true
		}

	default:
		res.Err = "no probe configured"
	}

	res.Latency = time.Since(start)
	return res
}
