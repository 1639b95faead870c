// Package health serves the liveness, readiness and startup probes of the
// planner and the gateway.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v3"
)

// Check reports whether one dependency can serve requests.
type Check func(ctx context.Context) error

// ============================================================
// Health Check Handlers
// ============================================================

type Probes struct {
	timeout time.Duration
	started atomic.Bool

	mu     sync.RWMutex
	checks map[string]Check
}

func New() *Probes {
	return &Probes{timeout: 2 * time.Second, checks: make(map[string]Check)}
}

// AddCheck регистрирует проверку зависимости для readiness.
func (p *Probes) AddCheck(name string, fn Check) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks[name] = fn
}

// MarkStarted переводит startup probe в успешное состояние.
func (p *Probes) MarkStarted() { p.started.Store(true) }

// Register вешает пробы на /health/*.
func (p *Probes) Register(r fiber.Router) {
	r.Get("/health/live", p.Liveness)
	r.Get("/health/ready", p.Readiness)
	r.Get("/health/startup", p.Startup)
}

// Liveness проверяет, что приложение работает
func (p *Probes) Liveness(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// Readiness прогоняет все зарегистрированные проверки зависимостей.
func (p *Probes) Readiness(c fiber.Ctx) error {
	p.mu.RLock()
	names := make([]string, 0, len(p.checks))
	for name := range p.checks {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	failed := fiber.Map{}
	for _, name := range names {
		p.mu.RLock()
		check := p.checks[name]
		p.mu.RUnlock()
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not ready",
			"checks": failed,
		})
	}
	return c.JSON(fiber.Map{
		"status": "ready",
	})
}

// Startup проверяет, что приложение успешно запустилось
func (p *Probes) Startup(c fiber.Ctx) error {
	if !p.started.Load() {
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "starting",
		})
	}
	return c.JSON(fiber.Map{
		"status": "started",
	})
}
