// Command healthcheck probes the relay and its dependencies and exits with
// 0 (all healthy), 1 (non-critical service down), 2 (critical service down)
// or 3 (checker crashed). Each probe has a 5 second timeout.
package main

import (
	"context"
	"os"

	"github.com/billlzzz18/bl1nk-realtime/internal/health"
	pkgconfig "github.com/billlzzz18/bl1nk-realtime/pkg/config"
	"github.com/billlzzz18/bl1nk-realtime/pkg/log"
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	log.Init(log.Config{Level: pkgconfig.GetEnv("LOG_LEVEL", "info"), Pretty: true, ServiceName: "healthcheck"})
	logger := log.L()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("health checker crashed")
			code = health.ExitCheckerCrashed
		}
	}()

	services := []health.Service{
		{
			Name:     "relay",
			URL:      pkgconfig.GetEnv("RELAY_HEALTH_URL", "http://localhost:3001/health"),
			Critical: true,
		},
	}
	if frontend := pkgconfig.GetEnv("FRONTEND_URL", ""); frontend != "" {
		services = append(services, health.Service{Name: "frontend", URL: frontend, Critical: false})
	}
	if redisAddr := pkgconfig.GetEnv("REDIS_ADDRESS", ""); redisAddr != "" {
		services = append(services, health.Service{Name: "redis", RedisAddr: redisAddr, Critical: false})
	}

	checker := health.NewChecker(services, health.DefaultTimeout)
	results, code := checker.Run(context.Background())

	for _, r := range results {
		ev := logger.Info()
		if !r.Healthy {
			ev = logger.Warn()
		}
		ev.Str("service", r.Name).
			Bool("healthy", r.Healthy).
			Bool("critical", r.Critical).
			Dur("latency", r.Latency)
		if r.Status != 0 {
			ev = ev.Int("status", r.Status)
		}
		if r.Err != "" {
			ev = ev.Str("error", r.Err)
		}
		ev.Msg("probe result")
	}

	switch code {
	case health.ExitHealthy:
		logger.Info().Msg("all services healthy")
	case health.ExitNonCriticalDown:
		logger.Warn().Msg("non-critical service down")
	case health.ExitCriticalDown:
		logger.Error().Msg("critical service down")
	}
	return code
}
