// Package flespi consulta dispositivos, telemetría y assets de la plataforma Flespi.
package flespi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"simfleet-svr/internal/providers/httpx"
	"simfleet-svr/internal/sim"
)

// APIError junta los errores del envelope {"errors": [...]}.
type APIError struct {
	Errors []ErrorItem
}

type ErrorItem struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

func (e *APIError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, it := range e.Errors {
		parts = append(parts, fmt.Sprintf("%d %s", it.Code, it.Reason))
	}
	return "flespi: " + strings.Join(parts, "; ")
}

type Client struct {
	baseURL string
	token   string
	http    *httpx.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpx.New(string(sim.ProviderFlespi), timeout),
	}
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Errors []ErrorItem     `json:"errors"`
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := c.http.Do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "FlespiToken "+c.token)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	var env envelope
	if err := httpx.DecodeJSON(resp, &env); err != nil {
		return fmt.Errorf("flespi %s: %w", op, err)
	}
	if len(env.Errors) > 0 {
		return &APIError{Errors: env.Errors}
	}
	if len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("flespi %s: decode result: %w", op, err)
	}
	return nil
}

type rawDevice struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	DeviceTypeID  int64  `json:"device_type_id"`
	Connected     *bool  `json:"connected"`
	LastActive    int64  `json:"last_active"`
	Configuration struct {
		Ident string `json:"ident"`
		Phone string `json:"phone"`
	} `json:"configuration"`
}

func (r rawDevice) toDevice() Device {
	d := Device{
		ID:           r.ID,
		Name:         r.Name,
		DeviceTypeID: r.DeviceTypeID,
		IMEI:         strings.TrimSpace(r.Configuration.Ident),
		Phone:        sim.NormalizeMSISDN(r.Configuration.Phone),
	}
	if r.Connected != nil {
		d.Connected = *r.Connected
	}
	if r.LastActive > 0 {
		t := time.Unix(r.LastActive, 0).UTC()
		d.LastActive = &t
	}
	return d
}

const deviceFields = "id,name,device_type_id,connected,last_active,configuration"

func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var raw []rawDevice
	if err := c.get(ctx, "devices", "/gw/devices/all", url.Values{"fields": {deviceFields}}, &raw); err != nil {
		return nil, err
	}
	out := make([]Device, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toDevice())
	}
	return out, nil
}

func (c *Client) Device(ctx context.Context, id int64) (Device, error) {
	var raw []rawDevice
	path := "/gw/devices/" + strconv.FormatInt(id, 10)
	if err := c.get(ctx, "device", path, url.Values{"fields": {deviceFields}}, &raw); err != nil {
		return Device{}, err
	}
	if len(raw) == 0 {
		return Device{}, fmt.Errorf("flespi device %d: %w", id, sim.ErrNotFound)
	}
	return raw[0].toDevice(), nil
}

// Telemetry devuelve los últimos valores conocidos por parámetro.
func (c *Client) Telemetry(ctx context.Context, id int64) (Telemetry, error) {
	var raw []struct {
		ID        int64                     `json:"id"`
		Telemetry map[string]TelemetryValue `json:"telemetry"`
	}
	path := "/gw/devices/" + strconv.FormatInt(id, 10) + "/telemetry/all"
	if err := c.get(ctx, "telemetry", path, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || raw[0].Telemetry == nil {
		return Telemetry{}, nil
	}
	return raw[0].Telemetry, nil
}

func (c *Client) Assets(ctx context.Context) ([]Asset, error) {
	var raw []struct {
		ID       int64          `json:"id"`
		Name     string         `json:"name"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := c.get(ctx, "assets", "/gw/assets/all", nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Asset, 0, len(raw))
	for _, r := range raw {
		out = append(out, Asset{ID: r.ID, Name: r.Name, Kind: KindFromMetadata(r.Metadata), Metadata: r.Metadata})
	}
	return out, nil
}

func (c *Client) AssetIntervals(ctx context.Context, assetID int64) ([]Interval, error) {
	var raw []struct {
		ID       int64   `json:"id"`
		Begin    float64 `json:"begin"`
		End      float64 `json:"end"`
		DeviceID int64   `json:"device_id"`
	}
	path := "/gw/assets/" + strconv.FormatInt(assetID, 10) + "/intervals/all"
	if err := c.get(ctx, "asset_intervals", path, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Interval, 0, len(raw))
	for _, r := range raw {
		iv := Interval{ID: r.ID, DeviceID: r.DeviceID, Begin: unixFloat(r.Begin)}
		if r.End > 0 {
			iv.End = unixFloat(r.End)
		}
		out = append(out, iv)
	}
	return out, nil
}

func unixFloat(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
