package observability

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestObserveProvider(t *testing.T) {
	ok := ProviderRequests.WithLabelValues("truphone", "test_op", "ok")
	bad := ProviderRequests.WithLabelValues("truphone", "test_op", "error")
	beforeOK, beforeBad := testutil.ToFloat64(ok), testutil.ToFloat64(bad)

	ObserveProvider("truphone", "test_op", time.Now(), nil)
	ObserveProvider("truphone", "test_op", time.Now(), errors.New("boom"))
	ObserveProvider("truphone", "test_op", time.Now(), errors.New("boom"))

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(ok))
	assert.Equal(t, beforeBad+2, testutil.ToFloat64(bad))
}
