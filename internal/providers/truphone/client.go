package truphone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"simfleet-svr/internal/providers/httpx"
	"simfleet-svr/internal/sim"
)

const apiVersion = "/v2.2"

type Client struct {
	baseURL string
	apiKey  string
	http    *httpx.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + apiVersion,
		apiKey:  apiKey,
		http:    httpx.New(string(sim.ProviderTruphone), timeout),
	}
}

func (c *Client) Name() sim.Provider { return sim.ProviderTruphone }

type apiSIM struct {
	ICCID         string   `json:"iccid"`
	MSISDN        string   `json:"msisdn"`
	PrimaryMSISDN string   `json:"primary_msisdn"`
	IMSI          string   `json:"imsi"`
	IMEI          string   `json:"imei"`
	Label         string   `json:"label"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	SIMStatus     string   `json:"sim_status"`
	Tags          []string `json:"tags"`
	LastActivity  string   `json:"last_network_activity"`
	DataUsage     int64    `json:"data_usage"`
	DataLimit     int64    `json:"data_limit"`
}

func (x apiSIM) toSIM() sim.SIM {
	raw := firstNonEmpty(x.Status, x.SIMStatus)
	s := sim.SIM{
		ICCID:          x.ICCID,
		MSISDN:         sim.NormalizeMSISDN(firstNonEmpty(x.MSISDN, x.PrimaryMSISDN)),
		IMSI:           x.IMSI,
		IMEI:           x.IMEI,
		Provider:       sim.ProviderTruphone,
		Status:         sim.ParseStatus(sim.ProviderTruphone, raw),
		RawStatus:      raw,
		Label:          firstNonEmpty(x.Label, x.Description),
		Tags:           x.Tags,
		DataUsageBytes: x.DataUsage,
		DataLimitBytes: x.DataLimit,
	}
	if iccid, err := sim.NormalizeICCID(x.ICCID); err == nil {
		s.ICCID = iccid
	}
	if t, err := time.Parse(time.RFC3339, x.LastActivity); err == nil {
		t = t.UTC()
		s.LastSeen = &t
	}
	return s
}

func (c *Client) request(ctx context.Context, op, method, path string, body []byte) (*http.Response, error) {
	return c.http.Do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Token "+c.apiKey)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return req, nil
	})
}

// ListSIMs: el cuerpo es un array y el total viene en X-Pagination-Total-Count.
func (c *Client) ListSIMs(ctx context.Context, page, perPage int) ([]sim.SIM, int, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	resp, err := c.request(ctx, "list_sims", http.MethodGet, "/sims?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	total := -1
	if v := resp.Header.Get("X-Pagination-Total-Count"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			total = n
		}
	}
	var list []apiSIM
	if err := httpx.DecodeJSON(resp, &list); err != nil {
		return nil, 0, fmt.Errorf("truphone list: %w", err)
	}
	out := make([]sim.SIM, 0, len(list))
	for _, x := range list {
		out = append(out, x.toSIM())
	}
	return out, total, nil
}

func (c *Client) GetSIM(ctx context.Context, iccid string) (sim.SIM, error) {
	resp, err := c.request(ctx, "get_sim", http.MethodGet, "/sims/"+url.PathEscape(iccid), nil)
	if err != nil {
		if httpx.IsNotFound(err) {
			return sim.SIM{}, sim.ErrNotFound
		}
		return sim.SIM{}, err
	}
	var x apiSIM
	if err := httpx.DecodeJSON(resp, &x); err != nil {
		return sim.SIM{}, fmt.Errorf("truphone get: %w", err)
	}
	return x.toSIM(), nil
}

func (c *Client) SetStatus(ctx context.Context, iccid string, st sim.Status) error {
	var target string
	switch st {
	case sim.StatusActive:
		target = "ACTIVE"
	case sim.StatusSuspended:
		target = "SUSPENDED"
	default:
		return fmt.Errorf("truphone: status %q: %w", st, sim.ErrUnsupported)
	}
	body, _ := json.Marshal(map[string]string{"status": target})
	resp, err := c.request(ctx, "set_status", http.MethodPost, "/sims/"+url.PathEscape(iccid)+"/status", body)
	if err != nil {
		if httpx.IsNotFound(err) {
			return sim.ErrNotFound
		}
		return err
	}
	httpx.Drain(resp)
	return nil
}

// DataUsage devuelve los bytes consumidos en el período de facturación actual.
func (c *Client) DataUsage(ctx context.Context, iccid string) (int64, error) {
	resp, err := c.request(ctx, "data_usage", http.MethodGet, "/sims/"+url.PathEscape(iccid)+"/usage", nil)
	if err != nil {
		if httpx.IsNotFound(err) {
			return 0, sim.ErrNotFound
		}
		return 0, err
	}
	var out struct {
		Data struct {
			Bytes json.Number `json:"bytes"`
		} `json:"data"`
	}
	if err := httpx.DecodeJSON(resp, &out); err != nil {
		return 0, fmt.Errorf("truphone usage: %w", err)
	}
	if out.Data.Bytes == "" {
		return 0, nil
	}
	n, err := out.Data.Bytes.Int64()
	if err != nil {
		f, ferr := out.Data.Bytes.Float64()
		if ferr != nil {
			return 0, fmt.Errorf("truphone usage: %w", err)
		}
		n = int64(f)
	}
	return n, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
