package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apivaluation "dcf_valuation/pkg/api/valuation"
	coreconfig "dcf_valuation/pkg/core/config"
	"dcf_valuation/pkg/core/pipeline"
)

const acmeYAML = `currentRevenue: 2000
growthRate: 15
ebitdaMargin: 20
taxRate: 25
capexRate: 3
dA_Rate: 2
nwcRate: 1.5
wacc: 9
terminalGrowthRate: 2.5
sharesOutstanding: 1000
cash: 500
debt: 300
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithConfig(t, filepath.Join(t.TempDir(), "missing.yaml"), args...)
}

func executeWithConfig(t *testing.T, configFile string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--config", configFile))
	t.Cleanup(func() {
		format, horizon, currency, repair = "terminal", 0, "", false
		remoteURL, retries, remoteReport = "", -1, false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

// fastRetryConfig keeps retry waits short; the default delay is seconds.
const fastRetryConfig = `client:
  retries: 3
  retry_delay: 1ms
  timeout: 5s
`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	apivaluation.NewHandler(coreconfig.NewRuntime(pipeline.DefaultOptions()), nil, zaptest.NewLogger(t), "", "USD").Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValue_Markdown(t *testing.T) {
	out, err := execute(t, "value", writeFile(t, "acme.yaml", acmeYAML), "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "## Sensitivity")
	assert.Contains(t, out, "| WACC \\ g |")
	assert.Contains(t, out, "**$6.72**")
}

func TestValue_JSONWithHorizon(t *testing.T) {
	out, err := execute(t, "value", writeFile(t, "acme.yaml", acmeYAML), "--format", "json", "--horizon", "7")
	require.NoError(t, err)

	var rep struct {
		Projections []json.RawMessage `json:"projections"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Len(t, rep.Projections, 7)
}

func TestValue_Errors(t *testing.T) {
	_, err := execute(t, "value", writeFile(t, "bad.yaml", strings.Replace(acmeYAML, "wacc: 9", "wacc: 2", 1)))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "divergent_model: "), err.Error())

	_, err = execute(t, "value", writeFile(t, "acme.yaml", acmeYAML), "--format", "pdf")
	assert.ErrorContains(t, err, "unknown format")

	_, err = execute(t, "value")
	assert.Error(t, err)
}

func TestValue_HelpListsRequiredFields(t *testing.T) {
	out, err := execute(t, "help", "value")
	require.NoError(t, err)
	assert.Contains(t, out, "Required fields: currentRevenue,")
	assert.Contains(t, out, "dA_Rate")
}

func TestRemote_URLOverride(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, "remote", writeFile(t, "acme.yaml", acmeYAML), "--url", srv.URL, "--retries", "0")
	require.NoError(t, err)

	var resp apivaluation.DCFResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.InDelta(t, 6.72, resp.IntrinsicValue, 0.005)
	assert.Len(t, resp.SensitivityAnalysis.Table, 5)
}

func TestRemote_Report(t *testing.T) {
	srv := newServer(t)

	out, err := execute(t, "remote", writeFile(t, "acme.yaml", acmeYAML), "--url", srv.URL, "--report")
	require.NoError(t, err)
	assert.Contains(t, out, "<table")
	assert.Contains(t, out, "$6.72")
}

func TestRemote_RetriesTransientFailure(t *testing.T) {
	backend := newServer(t)
	var calls int32
	flaky := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		resp, err := http.Post(backend.URL+r.URL.Path, "application/json", r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()
		w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
		w.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(w, resp.Body)
	}))
	t.Cleanup(flaky.Close)
	configFile := writeFile(t, "dcf.yaml", fastRetryConfig)

	out, err := executeWithConfig(t, configFile, "remote", writeFile(t, "acme.yaml", acmeYAML), "--url", flaky.URL, "--retries", "1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Contains(t, out, "intrinsicValue")
}

func TestRemote_RetriesFlagOverridesConfig(t *testing.T) {
	var calls int32
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)
	configFile := writeFile(t, "dcf.yaml", fastRetryConfig)
	acme := writeFile(t, "acme.yaml", acmeYAML)

	_, err := executeWithConfig(t, configFile, "remote", acme, "--url", down.URL, "--retries", "0")
	assert.ErrorContains(t, err, "giving up after 1 attempts")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	_, err = executeWithConfig(t, configFile, "remote", acme, "--url", down.URL)
	assert.ErrorContains(t, err, "giving up after 4 attempts")
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
}

func TestRemote_ValidationErrorIsNotRetried(t *testing.T) {
	srv := newServer(t)
	configFile := writeFile(t, "dcf.yaml", fastRetryConfig)
	bad := writeFile(t, "bad.yaml", strings.Replace(acmeYAML, "wacc: 9", "wacc: 2", 1))

	_, err := executeWithConfig(t, configFile, "remote", bad, "--url", srv.URL)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "giving up")
}
