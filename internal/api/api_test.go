package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simfleet-svr/internal/aggregate"
	"simfleet-svr/internal/operator"
	"simfleet-svr/internal/providers/flespi"
	"simfleet-svr/internal/providers/siv"
	"simfleet-svr/internal/sim"
)

type fakeSIMs struct {
	lastQuery   sim.Query
	lastPage    int
	lastSize    int
	lastRefresh bool
	searchErr   error
	sims        map[string]sim.SIM
	devicesErr  error
}

func (f *fakeSIMs) Search(_ context.Context, q sim.Query, page, size int, refresh bool) (aggregate.Result, error) {
	f.lastQuery, f.lastPage, f.lastSize, f.lastRefresh = q, page, size, refresh
	if f.searchErr != nil {
		return aggregate.Result{}, f.searchErr
	}
	items := make([]sim.SIM, 0, len(f.sims))
	for _, s := range f.sims {
		items = append(items, s)
	}
	return aggregate.Result{Page: sim.Paginate(items, page, size)}, nil
}

func (f *fakeSIMs) Get(_ context.Context, iccid string) (sim.SIM, error) {
	norm, err := sim.NormalizeICCID(iccid)
	if err != nil {
		return sim.SIM{}, err
	}
	s, ok := f.sims[norm]
	if !ok {
		return sim.SIM{}, fmt.Errorf("%s: %w", norm, sim.ErrNotFound)
	}
	return s, nil
}

func (f *fakeSIMs) SetStatus(ctx context.Context, iccid string, st sim.Status) (sim.SIM, error) {
	if st != sim.StatusActive && st != sim.StatusSuspended {
		return sim.SIM{}, aggregate.ErrInvalidStatus
	}
	s, err := f.Get(ctx, iccid)
	if err != nil {
		return sim.SIM{}, err
	}
	s.Status = st
	return s, nil
}

func (f *fakeSIMs) Detect(_ context.Context, s sim.SIM) sim.Operator { return operator.Detect(s) }

func (f *fakeSIMs) EnrichDevices(context.Context) ([]aggregate.Device, error) {
	if f.devicesErr != nil {
		return nil, f.devicesErr
	}
	return []aggregate.Device{{Device: flespi.Device{ID: 1, Name: "Camion"}, ICCID: "8944500000001234562"}}, nil
}

func (f *fakeSIMs) Assets(context.Context) ([]aggregate.AssetView, error) {
	return []aggregate.AssetView{{Asset: flespi.Asset{ID: 2, Name: "AB-123-CD", Kind: flespi.KindVehicle}, DeviceID: 1}}, nil
}

type fakeVehicles struct{ quota bool }

func (f *fakeVehicles) Lookup(_ context.Context, plate string) (siv.Vehicle, error) {
	norm, err := siv.NormalizePlate(plate)
	if err != nil {
		return siv.Vehicle{}, err
	}
	if f.quota {
		return siv.Vehicle{}, siv.ErrQuotaExceeded
	}
	if norm == "ZZ-999-ZZ" {
		return siv.Vehicle{}, siv.ErrVehicleNotFound
	}
	return siv.Vehicle{Plate: norm, Make: "RENAULT"}, nil
}

type quotaVehicles struct {
	fakeVehicles
	left int
}

func (q *quotaVehicles) QuotaRemaining(context.Context) (int, bool) { return q.left, true }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(t *testing.T, sims *fakeSIMs, veh VehicleLookup, ready Pinger) *httptest.Server {
	srv := httptest.NewServer(NewServer(sims, veh, ready, slog.New(slog.NewTextHandler(io.Discard, nil))).Router())
	t.Cleanup(srv.Close)
	return srv
}

func defaultSIMs() *fakeSIMs {
	return &fakeSIMs{sims: map[string]sim.SIM{
		"8944500000001234562": {ICCID: "8944500000001234562", Provider: sim.ProviderThingsMobile, Status: sim.StatusActive},
	}}
}

func get(t *testing.T, url string) (int, map[string]any) {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	b, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(b, &body)
	return resp.StatusCode, body
}

func TestListSIMs(t *testing.T) {
	sims := defaultSIMs()
	srv := newTestServer(t, sims, nil, nil)

	code, body := get(t, srv.URL+"/api/sims?q=camion&provider=tm&status=ACTIVE&sort=lastSeen&order=desc&page=2&pageSize=10&refresh=true")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, sim.Query{Text: "camion", Provider: sim.ProviderThingsMobile, Status: sim.StatusActive, Sort: sim.SortLastSeen, Desc: true}, sims.lastQuery)
	assert.Equal(t, 2, sims.lastPage)
	assert.Equal(t, 10, sims.lastSize)
	assert.True(t, sims.lastRefresh)
	assert.Equal(t, float64(1), body["total"])

	code, _ = get(t, srv.URL+"/api/sims")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, sims.lastPage)
	assert.Equal(t, sim.DefaultPageSize, sims.lastSize)
	assert.False(t, sims.lastRefresh)
}

func TestListSIMs_BadParams(t *testing.T) {
	srv := newTestServer(t, defaultSIMs(), nil, nil)
	for _, qs := range []string{
		"provider=vodafone",
		"status=lost",
		"sort=color",
		"order=sideways",
		"page=x",
		"pageSize=-3",
		"refresh=maybe",
	} {
		code, body := get(t, srv.URL+"/api/sims?"+qs)
		assert.Equal(t, http.StatusBadRequest, code, qs)
		assert.NotEmpty(t, body["error"], qs)
	}
}

func TestListSIMs_Upstream(t *testing.T) {
	sims := defaultSIMs()
	sims.searchErr = aggregate.ProviderErrors{sim.ProviderPhenix: errors.New("down")}
	srv := newTestServer(t, sims, nil, nil)
	code, body := get(t, srv.URL+"/api/sims")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body["error"], "phenix: down")
}

func TestGetSIM(t *testing.T) {
	srv := newTestServer(t, defaultSIMs(), nil, nil)

	code, body := get(t, srv.URL+"/api/sims/8944500000001234562")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "thingsmobile", body["provider"])

	code, _ = get(t, srv.URL+"/api/sims/89330100000000000012")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, srv.URL+"/api/sims/12ab")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSetStatus(t *testing.T) {
	srv := newTestServer(t, defaultSIMs(), nil, nil)
	post := func(body string) (int, map[string]any) {
		resp, err := http.Post(srv.URL+"/api/sims/8944500000001234562/status", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	code, body := post(`{"status":"Suspended"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "suspended", body["status"])

	code, _ = post(`{"status":"deactivated"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = post(`{"state":"active"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = post(`not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDetectOperator(t *testing.T) {
	srv := newTestServer(t, defaultSIMs(), nil, nil)

	code, body := get(t, srv.URL+"/api/operators/detect?iccid=8933%200100%200000%200000%200012")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "89330100000000000012", body["iccid"])
	assert.Equal(t, true, body["iccid_valid"])
	assert.Equal(t, "Orange France", body["operator"].(map[string]any)["name"])
	assert.NotContains(t, body, "expected_check_digit")

	code, body = get(t, srv.URL+"/api/operators/detect?iccid=89330100000000000013")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["iccid_valid"])
	assert.Equal(t, "2", body["expected_check_digit"])

	code, body = get(t, srv.URL+"/api/operators/detect?msisdn=%2B33612345678")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "FR", body["operator"].(map[string]any)["country"])
	assert.NotContains(t, body, "iccid_valid")

	code, _ = get(t, srv.URL+"/api/operators/detect")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = get(t, srv.URL+"/api/operators/detect?iccid=123")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDevicesAndAssets(t *testing.T) {
	sims := defaultSIMs()
	srv := newTestServer(t, sims, nil, nil)

	code, body := get(t, srv.URL+"/api/devices")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
	dev := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "Camion", dev["name"])
	assert.Equal(t, "8944500000001234562", dev["iccid"])

	code, body = get(t, srv.URL+"/api/assets")
	require.Equal(t, http.StatusOK, code)
	asset := body["items"].([]any)[0].(map[string]any)
	assert.Equal(t, "vehicle", asset["kind"])
	assert.Equal(t, float64(1), asset["device_id"])

	sims.devicesErr = aggregate.ErrNoDeviceSource
	code, _ = get(t, srv.URL+"/api/devices")
	assert.Equal(t, http.StatusNotImplemented, code)
}

func TestLookupVehicle(t *testing.T) {
	srv := newTestServer(t, defaultSIMs(), &fakeVehicles{}, nil)

	code, body := get(t, srv.URL+"/api/vehicles/ab123cd")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "AB-123-CD", body["plate"])

	code, _ = get(t, srv.URL+"/api/vehicles/ZZ-999-ZZ")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get(t, srv.URL+"/api/vehicles/nope")
	assert.Equal(t, http.StatusBadRequest, code)

	quota := newTestServer(t, defaultSIMs(), &fakeVehicles{quota: true}, nil)
	code, _ = get(t, quota.URL+"/api/vehicles/AB-123-CD")
	assert.Equal(t, http.StatusTooManyRequests, code)

	disabled := newTestServer(t, defaultSIMs(), nil, nil)
	code, _ = get(t, disabled.URL+"/api/vehicles/AB-123-CD")
	assert.Equal(t, http.StatusNotImplemented, code)
}

func TestLookupVehicle_QuotaHeader(t *testing.T) {
	srv := newTestServer(t, defaultSIMs(), &quotaVehicles{left: 7}, nil)
	resp, err := http.Get(srv.URL + "/api/vehicles/AB-123-CD")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "7", resp.Header.Get("X-Quota-Remaining"))

	out := newTestServer(t, defaultSIMs(), &quotaVehicles{fakeVehicles: fakeVehicles{quota: true}}, nil)
	resp, err = http.Get(out.URL + "/api/vehicles/AB-123-CD")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-Quota-Remaining"))

	plain := newTestServer(t, defaultSIMs(), &fakeVehicles{}, nil)
	resp, err = http.Get(plain.URL + "/api/vehicles/AB-123-CD")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("X-Quota-Remaining"))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, defaultSIMs(), nil, fakePinger{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := newTestServer(t, defaultSIMs(), nil, fakePinger{err: errors.New("dial tcp: refused")})
	code, body := get(t, down.URL+"/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "redis unavailable", body["error"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(fmt.Errorf("phenix: %w", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusNotImplemented, statusFor(sim.ErrUnsupported))
	assert.Equal(t, http.StatusBadGateway, statusFor(errors.New("boom")))
}
