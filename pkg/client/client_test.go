package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apivaluation "dcf_valuation/pkg/api/valuation"
	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/core/config"
	"dcf_valuation/pkg/core/pipeline"
)

func baseCase() *assumption.Assumptions {
	return &assumption.Assumptions{
		CurrentRevenue: 2000, GrowthRate: 15, EBITDAMargin: 20, TaxRate: 25,
		CapexRate: 3, DAndARate: 2, NWCRate: 1.5, WACC: 9, TerminalGrowthRate: 2.5,
		SharesOutstanding: 1000, Cash: 500, Debt: 300,
	}
}

func testClient(t *testing.T, url string, retries int) *Client {
	c := New(url)
	c.Retries = retries
	c.RetryDelay = time.Millisecond
	c.Logger = zaptest.NewLogger(t)
	return c
}

func TestValue_AgainstRealHandler(t *testing.T) {
	h := apivaluation.NewHandler(config.NewRuntime(pipeline.DefaultOptions()), nil, zaptest.NewLogger(t), "", "USD")
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv.URL+"/", 0)
	resp, err := c.Value(context.Background(), baseCase())
	require.NoError(t, err)
	assert.Equal(t, 6.72, resp.IntrinsicValue)
	assert.Len(t, resp.SensitivityAnalysis.Table, 5)

	page, err := c.Report(context.Background(), baseCase())
	require.NoError(t, err)
	assert.Contains(t, page, "<table>")

	bad := baseCase()
	bad.TerminalGrowthRate = 12
	_, err = c.Value(context.Background(), bad)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "divergent_model", apiErr.Kind)
}

func TestValue_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("X-Run-ID", "run-1")
		w.Write([]byte(`{"intrinsicValue": 6.72, "sensitivityAnalysis": {"wacc_headers": [], "growth_headers": [], "table": []}}`))
	}))
	defer srv.Close()

	resp, err := testClient(t, srv.URL, 3).Value(context.Background(), baseCase())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 6.72, resp.IntrinsicValue)
	assert.Equal(t, "run-1", resp.RunID)
}

func TestValue_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"kind": "validation_error", "message": "wacc must be greater than 0", "field": "wacc"}}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 5).Value(context.Background(), baseCase())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "wacc", apiErr.Field)
	assert.False(t, apiErr.Temporary())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestValue_GivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL, 2).Value(context.Background(), baseCase())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	// Retries=0 makes exactly one attempt.
	atomic.StoreInt32(&calls, 0)
	_, err = testClient(t, srv.URL, 0).Value(context.Background(), baseCase())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestValue_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL, 3)
	c.RetryDelay = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Value(ctx, baseCase())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestValue_NilAssumptions(t *testing.T) {
	_, err := New("http://unused").Value(context.Background(), nil)
	assert.Error(t, err)
}
