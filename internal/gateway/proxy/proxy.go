package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
)

// hopHeaders are not copied between the client and the planner.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
}

// ============================================================
// Proxy Handler
// ============================================================

// Upstream forwards gateway requests to one backend service.
type Upstream struct {
	base   string
	prefix string
	client *http.Client
	log    *log.Logger
}

type Option func(*Upstream)

func WithClient(c *http.Client) Option {
	return func(u *Upstream) { u.client = c }
}

func WithLogger(l *log.Logger) Option {
	return func(u *Upstream) { u.log = l }
}

// StripPrefix removes prefix from the request path before it is appended to
// the upstream base URL.
func StripPrefix(prefix string) Option {
	return func(u *Upstream) { u.prefix = prefix }
}

func New(baseURL string, opts ...Option) *Upstream {
	u := &Upstream{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.log == nil {
		u.log = log.Default()
	}
	return u
}

// Handler проксирует любой метод, сохраняя путь и query string.
func (u *Upstream) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		return u.Forward(c, u.target(c))
	}
}

func (u *Upstream) target(c fiber.Ctx) string {
	path := strings.TrimPrefix(c.Path(), u.prefix)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	target := u.base + path
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		target += "?" + string(q)
	}
	return target
}

// Forward отправляет запрос на targetURL. Тело уходит как есть, поэтому
// multipart сохраняет свой boundary из Content-Type.
func (u *Upstream) Forward(c fiber.Ctx, targetURL string) error {
	u.log.Debugf("[PROXY] %s %s -> %s (%d bytes)", c.Method(), c.Path(), targetURL, len(c.Body()))

	req, err := http.NewRequest(c.Method(), targetURL, bytes.NewReader(c.Body()))
	if err != nil {
		u.log.Errorf("[PROXY] build request error: %v", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "proxy failed"})
	}
	for key, value := range c.GetReqHeaders() {
		if hopHeaders[http.CanonicalHeaderKey(key)] || len(value) == 0 {
			continue
		}
		req.Header.Set(key, value[0])
	}
	req.Header.Set("X-Forwarded-For", c.IP())

	resp, err := u.client.Do(req)
	if err != nil {
		u.log.Warnf("[PROXY] upstream error: %v", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "failed to reach upstream service"})
	}
	defer resp.Body.Close()

	return u.copyResponse(c, resp)
}

func (u *Upstream) copyResponse(c fiber.Ctx, resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		u.log.Warnf("[PROXY] read response error: %v", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": "invalid upstream response"})
	}

	for key, values := range resp.Header {
		if hopHeaders[key] || len(values) == 0 {
			continue
		}
		c.Set(key, values[0])
	}

	c.Status(resp.StatusCode)
	return c.Send(data)
}

// Ready checks that the upstream answers its readiness probe.
func (u *Upstream) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.base+"/health/ready", nil)
	if err != nil {
		return err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream answered %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return nil
}
