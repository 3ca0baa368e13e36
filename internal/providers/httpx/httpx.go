// Package httpx agrupa lo que comparten los clientes de proveedores:
// errores de estado HTTP, decodificación y reintentos con backoff.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"simfleet-svr/internal/observability"
)

const maxErrBody = 4 << 10

// StatusError es una respuesta no-2xx de un proveedor.
type StatusError struct {
	Provider string
	Op       string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Provider, e.Op, e.Code, e.Body)
}

// IsNotFound vale para cualquier proveedor.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Client envuelve un *http.Client con nombre de proveedor para métricas y errores.
type Client struct {
	Provider   string
	HTTP       *http.Client
	MaxRetries uint64
	// InitialBackoff 0 usa el default de backoff.
	InitialBackoff time.Duration
}

func New(provider string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		Provider:   provider,
		HTTP:       &http.Client{Timeout: timeout},
		MaxRetries: 2,
	}
}

// Do ejecuta la petición construida por build. Las peticiones idempotentes
// (GET) se reintentan ante 429/5xx y errores de red; el resto va una sola vez.
// build se llama en cada intento porque el body no es reutilizable.
func (c *Client) Do(ctx context.Context, op string, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	start := time.Now()
	var resp *http.Response

	attempt := func() error {
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		r, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil || req.Method != http.MethodGet {
				return backoff.Permanent(err)
			}
			return err
		}
		if r.StatusCode < 200 || r.StatusCode > 299 {
			se := c.statusError(op, r)
			if req.Method == http.MethodGet && retryable(r.StatusCode) {
				return se
			}
			return backoff.Permanent(se)
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	if c.InitialBackoff > 0 {
		b.InitialInterval = c.InitialBackoff
	}
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(b, c.MaxRetries), ctx))
	observability.ObserveProvider(c.Provider, op, start, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) statusError(op string, r *http.Response) *StatusError {
	defer r.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(r.Body, maxErrBody))
	return &StatusError{Provider: c.Provider, Op: op, Code: r.StatusCode, Body: string(body)}
}

// DecodeJSON consume y cierra el body.
func DecodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// Drain descarta el body para reutilizar la conexión.
func Drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
