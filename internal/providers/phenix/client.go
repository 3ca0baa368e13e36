// Package phenix es el cliente REST de Phenix. Los nombres de campo cambian
// entre versiones de la API, así que los registros se leen como mapas.
package phenix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"simfleet-svr/internal/providers/httpx"
	"simfleet-svr/internal/sim"
)

type Client struct {
	baseURL string
	creds   clientcredentials.Config
	http    *httpx.Client

	mu sync.Mutex
	ts oauth2.TokenSource
}

func New(baseURL, clientID, clientSecret string, timeout time.Duration) *Client {
	base := strings.TrimRight(baseURL, "/")
	return &Client{
		baseURL: base,
		creds: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     base + "/oauth/token",
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		http: httpx.New(string(sim.ProviderPhenix), timeout),
	}
}

func (c *Client) Name() sim.Provider { return sim.ProviderPhenix }

// token respeta ctx: el TokenSource vive con context.Background para los
// refrescos, así que la espera se corta aquí.
func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.ts == nil {
		base := context.WithValue(context.Background(), oauth2.HTTPClient, c.http.HTTP)
		c.ts = c.creds.TokenSource(base)
	}
	ts := c.ts
	c.mu.Unlock()

	type result struct {
		tok *oauth2.Token
		err error
	}
	ch := make(chan result, 1)
	go func() {
		tok, err := ts.Token()
		ch <- result{tok, err}
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("phenix: token: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("phenix: token: %w", r.err)
		}
		return r.tok, nil
	}
}

// resetToken descarta el token cacheado; el próximo pedido obtiene uno nuevo.
func (c *Client) resetToken() {
	c.mu.Lock()
	c.ts = nil
	c.mu.Unlock()
}

// do firma la petición y, ante un 401, renueva el token y reintenta una vez.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	for attempt := 0; ; attempt++ {
		tok, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(ctx, op, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, method, u, nil)
			if err != nil {
				return nil, err
			}
			tok.SetAuthHeader(req)
			req.Header.Set("Accept", "application/json")
			return req, nil
		})
		if err != nil && httpx.IsUnauthorized(err) && attempt == 0 {
			c.resetToken()
			continue
		}
		return resp, err
	}
}

type pageResponse struct {
	Content       []map[string]any `json:"content"`
	TotalElements *int             `json:"totalElements"`
	TotalPages    int              `json:"totalPages"`
	Number        int              `json:"number"`
}

// ListSIMs pide la página 1-based; la API es 0-based al estilo Spring.
func (c *Client) ListSIMs(ctx context.Context, page, pageSize int) ([]sim.SIM, int, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page-1))
	q.Set("size", strconv.Itoa(pageSize))
	resp, err := c.do(ctx, "list_sims", http.MethodGet, "/api/v1/sims", q)
	if err != nil {
		return nil, 0, err
	}
	var pr pageResponse
	if err := httpx.DecodeJSON(resp, &pr); err != nil {
		return nil, 0, fmt.Errorf("phenix list: %w", err)
	}
	out := make([]sim.SIM, 0, len(pr.Content))
	for _, rec := range pr.Content {
		out = append(out, ToSIM(rec))
	}
	// sin totalElements el total es desconocido y se pagina hasta una página corta
	total := -1
	if pr.TotalElements != nil {
		total = *pr.TotalElements
	}
	return out, total, nil
}

func (c *Client) GetSIM(ctx context.Context, iccid string) (sim.SIM, error) {
	resp, err := c.do(ctx, "get_sim", http.MethodGet, "/api/v1/sims/"+url.PathEscape(iccid), nil)
	if err != nil {
		if httpx.IsNotFound(err) {
			return sim.SIM{}, sim.ErrNotFound
		}
		return sim.SIM{}, err
	}
	var rec map[string]any
	if err := httpx.DecodeJSON(resp, &rec); err != nil {
		return sim.SIM{}, fmt.Errorf("phenix get: %w", err)
	}
	// algunas versiones envuelven en {"sim": {...}}
	if inner, ok := rec["sim"].(map[string]any); ok {
		rec = inner
	}
	return ToSIM(rec), nil
}

func (c *Client) SetStatus(ctx context.Context, iccid string, st sim.Status) error {
	var action string
	switch st {
	case sim.StatusActive:
		action = "activate"
	case sim.StatusSuspended:
		action = "suspend"
	default:
		return fmt.Errorf("phenix: status %q: %w", st, sim.ErrUnsupported)
	}
	resp, err := c.do(ctx, action, http.MethodPost, "/api/v1/sims/"+url.PathEscape(iccid)+"/"+action, nil)
	if err != nil {
		if httpx.IsNotFound(err) {
			return sim.ErrNotFound
		}
		return err
	}
	httpx.Drain(resp)
	return nil
}

// ToSIM normaliza un registro Phenix en cualquiera de sus variantes.
func ToSIM(rec map[string]any) sim.SIM {
	raw := pick(rec, "status", "etat", "state", "statut")
	s := sim.SIM{
		ICCID:     pick(rec, "iccid", "ICCID", "iccId"),
		MSISDN:    sim.NormalizeMSISDN(pick(rec, "msisdn", "MSISDN", "phoneNumber", "numero", "numeroLigne")),
		IMSI:      pick(rec, "imsi", "IMSI"),
		IMEI:      pick(rec, "imei", "IMEI", "lastImei"),
		Provider:  sim.ProviderPhenix,
		Status:    sim.ParseStatus(sim.ProviderPhenix, raw),
		RawStatus: raw,
		Label:     pick(rec, "label", "libelle", "name", "alias"),
	}
	if iccid, err := sim.NormalizeICCID(s.ICCID); err == nil {
		s.ICCID = iccid
	}
	if ts, ok := parseTime(pick(rec, "lastActivity", "derniereActivite", "lastSeen", "lastConnection")); ok {
		s.LastSeen = &ts
	}
	s.DataUsageBytes = pickInt(rec, "dataUsage", "consoData", "dataBytes")
	if s.DataUsageBytes == 0 {
		if cons, ok := rec["consumption"].(map[string]any); ok {
			s.DataUsageBytes = pickInt(cons, "data", "dataBytes")
		}
	}
	s.DataLimitBytes = pickInt(rec, "dataLimit", "forfaitData")
	return s
}

func pick(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch x := v.(type) {
		case string:
			if s := strings.TrimSpace(x); s != "" {
				return s
			}
		case json.Number:
			return x.String()
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
	}
	return ""
}

func pickInt(m map[string]any, keys ...string) int64 {
	v := pick(m, keys...)
	if v == "" {
		return 0
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int64(f)
	}
	return 0
}

func parseTime(v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "02/01/2006 15:04:05", "02/01/2006 15:04", "02/01/2006"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
