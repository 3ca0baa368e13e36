package phenix

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simfleet-svr/internal/sim"
)

type fakePhenix struct {
	mu       sync.Mutex
	issued   int
	valid    string
	queries  []string
	actions  []string
	tokenReq int
}

func (f *fakePhenix) revoke() {
	f.mu.Lock()
	f.valid = ""
	f.mu.Unlock()
}

func (f *fakePhenix) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/oauth/token" {
		_ = r.ParseForm()
		if r.PostForm.Get("client_id") != "cid" || r.PostForm.Get("client_secret") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.tokenReq++
		f.issued++
		f.valid = fmt.Sprintf("tok-%d", f.issued)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":%q,"token_type":"Bearer","expires_in":3600}`, f.valid)
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+f.valid || f.valid == "" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.URL.Path == "/api/v1/sims":
		f.queries = append(f.queries, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{
			"content": [
				{"iccid": "89332700123456789019", "msisdn": "+33612345678", "status": "ACTIF", "label": "VL 01",
				 "lastActivity": "2025-02-10T08:00:00Z", "consumption": {"data": 2048}},
				{"ICCID": "8933270000000000018", "numero": "0033700000001", "etat": "Suspendu", "libelle": "VL 02",
				 "derniereActivite": "10/02/2025 09:30", "dataUsage": 99}
			],
			"totalElements": 7, "totalPages": 4, "number": 0
		}`))
	case r.URL.Path == "/api/v1/sims/89332700123456789019":
		_, _ = w.Write([]byte(`{"sim": {"iccid": "89332700123456789019", "imsi": "208271234567890", "status": "résilié"}}`))
	case r.Method == http.MethodPost && (r.URL.Path == "/api/v1/sims/89332700123456789019/suspend" ||
		r.URL.Path == "/api/v1/sims/89332700123456789019/activate"):
		f.actions = append(f.actions, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func newFake(t *testing.T) (*fakePhenix, *Client) {
	f := &fakePhenix{}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, New(srv.URL, "cid", "secret", 2*time.Second)
}

func TestListSIMs_FieldVariants(t *testing.T) {
	f, c := newFake(t)

	sims, total, err := c.ListSIMs(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, sims, 2)
	assert.Equal(t, "page=0&size=2", f.queries[0])

	a := sims[0]
	assert.Equal(t, "89332700123456789019", a.ICCID)
	assert.Equal(t, "33612345678", a.MSISDN)
	assert.Equal(t, sim.StatusActive, a.Status)
	assert.Equal(t, "VL 01", a.Label)
	assert.Equal(t, int64(2048), a.DataUsageBytes)
	require.NotNil(t, a.LastSeen)
	assert.Equal(t, time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC), *a.LastSeen)

	b := sims[1]
	assert.Equal(t, "8933270000000000018", b.ICCID)
	assert.Equal(t, "33700000001", b.MSISDN)
	assert.Equal(t, sim.StatusSuspended, b.Status)
	assert.Equal(t, "Suspendu", b.RawStatus)
	assert.Equal(t, "VL 02", b.Label)
	assert.Equal(t, int64(99), b.DataUsageBytes)
	require.NotNil(t, b.LastSeen)
	assert.Equal(t, 9, b.LastSeen.Hour())
}

func TestToken_ReusedAndRefreshedOn401(t *testing.T) {
	f, c := newFake(t)
	ctx := context.Background()

	_, _, err := c.ListSIMs(ctx, 1, 10)
	require.NoError(t, err)
	_, _, err = c.ListSIMs(ctx, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, f.tokenReq, "token cached between calls")

	f.revoke()
	_, _, err = c.ListSIMs(ctx, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, f.tokenReq)
}

func TestGetSIM(t *testing.T) {
	_, c := newFake(t)
	s, err := c.GetSIM(context.Background(), "89332700123456789019")
	require.NoError(t, err)
	assert.Equal(t, "208271234567890", s.IMSI)
	assert.Equal(t, sim.StatusDeactivated, s.Status)

	_, err = c.GetSIM(context.Background(), "89330000000000000000")
	assert.ErrorIs(t, err, sim.ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	f, c := newFake(t)
	ctx := context.Background()
	require.NoError(t, c.SetStatus(ctx, "89332700123456789019", sim.StatusSuspended))
	require.NoError(t, c.SetStatus(ctx, "89332700123456789019", sim.StatusActive))
	assert.Equal(t, []string{
		"/api/v1/sims/89332700123456789019/suspend",
		"/api/v1/sims/89332700123456789019/activate",
	}, f.actions)

	assert.ErrorIs(t, c.SetStatus(ctx, "89332700123456789019", sim.StatusTest), sim.ErrUnsupported)
	assert.ErrorIs(t, c.SetStatus(ctx, "89330000000000000000", sim.StatusActive), sim.ErrNotFound)
}

func TestListSIMs_UnknownTotal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"t","token_type":"Bearer","expires_in":3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"iccid":"89332700123456789019"}]}`))
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL, "cid", "secret", 2*time.Second)

	items, total, err := c.ListSIMs(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, -1, total)
}

func TestToken_HonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	c := New(srv.URL, "cid", "secret", 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, _, err := c.ListSIMs(ctx, 1, 10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	done, stop := context.WithCancel(context.Background())
	stop()
	_, err = c.GetSIM(done, "89332700123456789019")
	assert.ErrorIs(t, err, context.Canceled)
}
