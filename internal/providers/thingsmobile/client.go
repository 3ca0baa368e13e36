// Package thingsmobile habla con la business API XML de Things Mobile.
package thingsmobile

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"simfleet-svr/internal/providers/httpx"
	"simfleet-svr/internal/sim"
)

// APIError es un <done>false</done> con código y mensaje del proveedor.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("thingsmobile: error %s: %s", e.Code, e.Message)
}

type Client struct {
	baseURL  string
	username string
	token    string
	http     *httpx.Client
	loc      *time.Location
}

func New(baseURL, username, token string, timeout time.Duration) *Client {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		token:    token,
		http:     httpx.New(string(sim.ProviderThingsMobile), timeout),
		loc:      loc,
	}
}

func (c *Client) Name() sim.Provider { return sim.ProviderThingsMobile }

type xmlSIM struct {
	ICCID              string `xml:"iccid"`
	MSISDN             string `xml:"msisdn"`
	Name               string `xml:"name"`
	Tag                string `xml:"tag"`
	Status             string `xml:"status"`
	Balance            string `xml:"balance"`
	ActivationDate     string `xml:"activationDate"`
	LastConnectionDate string `xml:"lastConnectionDate"`
	MonthlyTraffic     string `xml:"monthlyTraffic"`
	MonthlyLimit       string `xml:"monthlyTrafficLimit"`
}

type xmlResult struct {
	XMLName      xml.Name `xml:"result"`
	Done         bool     `xml:"done"`
	ErrorCode    string   `xml:"errorCode"`
	ErrorMessage string   `xml:"errorMessage"`
	SIMs         []xmlSIM `xml:"sims>sim"`
}

// call hace POST form-encoded y valida el envelope <result>.
func (c *Client) call(ctx context.Context, op string, params url.Values) (*xmlResult, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("token", c.token)
	for k, v := range params {
		form[k] = v
	}
	body := form.Encode()

	resp, err := c.http.Do(ctx, op, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/xml")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out xmlResult
	if err := xml.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("thingsmobile %s: decode xml: %w", op, err)
	}
	if !out.Done {
		return nil, &APIError{Code: out.ErrorCode, Message: out.ErrorMessage}
	}
	return &out, nil
}

// ListSIMs devuelve una página (1-based). La API no informa el total: -1.
func (c *Client) ListSIMs(ctx context.Context, page, pageSize int) ([]sim.SIM, int, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))
	res, err := c.call(ctx, "simListLite", params)
	if err != nil {
		return nil, 0, err
	}
	out := make([]sim.SIM, 0, len(res.SIMs))
	for _, x := range res.SIMs {
		out = append(out, c.toSIM(x))
	}
	return out, -1, nil
}

func (c *Client) GetSIM(ctx context.Context, iccid string) (sim.SIM, error) {
	res, err := c.call(ctx, "simStatus", url.Values{"iccid": {iccid}})
	if err != nil {
		if isNotFound(err) {
			return sim.SIM{}, sim.ErrNotFound
		}
		return sim.SIM{}, err
	}
	if len(res.SIMs) == 0 {
		return sim.SIM{}, sim.ErrNotFound
	}
	return c.toSIM(res.SIMs[0]), nil
}

// SetStatus: active → activateSim o unblockSim según el estado actual; suspended → blockSim.
func (c *Client) SetStatus(ctx context.Context, iccid string, st sim.Status) error {
	switch st {
	case sim.StatusActive:
		cur, err := c.GetSIM(ctx, iccid)
		if err != nil {
			return err
		}
		op := "unblockSim"
		if cur.Status == sim.StatusInventory {
			op = "activateSim"
		}
		_, err = c.call(ctx, op, url.Values{"iccid": {iccid}})
		return err
	case sim.StatusSuspended:
		_, err := c.call(ctx, "blockSim", url.Values{"iccid": {iccid}})
		return err
	}
	return fmt.Errorf("thingsmobile: status %q: %w", st, sim.ErrUnsupported)
}

func (c *Client) UpdateName(ctx context.Context, iccid, name string) error {
	_, err := c.call(ctx, "updateSimName", url.Values{"iccid": {iccid}, "name": {name}})
	return err
}

func (c *Client) toSIM(x xmlSIM) sim.SIM {
	s := sim.SIM{
		ICCID:          strings.TrimSpace(x.ICCID),
		MSISDN:         sim.NormalizeMSISDN(x.MSISDN),
		Provider:       sim.ProviderThingsMobile,
		Status:         sim.ParseStatus(sim.ProviderThingsMobile, x.Status),
		RawStatus:      strings.TrimSpace(x.Status),
		Label:          strings.TrimSpace(x.Name),
		DataUsageBytes: ParseTraffic(x.MonthlyTraffic),
		DataLimitBytes: ParseTraffic(x.MonthlyLimit),
	}
	if iccid, err := sim.NormalizeICCID(x.ICCID); err == nil {
		s.ICCID = iccid
	}
	if tag := strings.TrimSpace(x.Tag); tag != "" {
		s.Tags = strings.Split(tag, ",")
		for i := range s.Tags {
			s.Tags[i] = strings.TrimSpace(s.Tags[i])
		}
	}
	if b, err := strconv.ParseFloat(strings.TrimSpace(x.Balance), 64); err == nil {
		s.Balance = b
	}
	if ts, ok := c.parseDate(x.LastConnectionDate); ok {
		s.LastSeen = &ts
	}
	return s
}

func (c *Client) parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, v, c.loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// ParseTraffic acepta bytes crudos ("1048576") o texto con unidad
// ("1.5 MB", "512KB", "2 GB"). Unidades en base 1024. Lo ilegible vale 0.
func ParseTraffic(v string) int64 {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return 0
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n
	}
	mult := float64(1)
	for _, u := range []struct {
		suffix string
		mult   float64
	}{
		{"TB", 1 << 40}, {"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1},
	} {
		if strings.HasSuffix(v, u.suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, u.suffix))
			mult = u.mult
			break
		}
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f * mult)
}

func isNotFound(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		msg := strings.ToLower(ae.Message)
		return strings.Contains(msg, "not found") || strings.Contains(msg, "non trovata")
	}
	return httpx.IsNotFound(err)
}
