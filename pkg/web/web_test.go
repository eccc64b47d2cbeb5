package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aistatsd/aistatsd/internal/fixtures"
	"github.com/aistatsd/aistatsd/pkg/healthcheck"
	"github.com/aistatsd/aistatsd/pkg/web"
)

func TestHttpServerShutsdown(t *testing.T) {
	testCtx, completed := testContext(t)
	defer completed()

	hs, err := web.NewHttpServer(
		fixtures.NewTestLogger(t),
		nil,
		nil,
		nil,
		"TestHttpServerShutsdown",
		"127.0.0.1:0", // should pick a random port to bind to
		false,
		false,
		true,
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(testCtx)
	chDone := make(chan struct{}, 1)
	go func() {
		hs.Run(ctx)
		chDone <- struct{}{}
	}()

	cancel()
	select {
	case <-testCtx.Done():
	case <-chDone:
	}
}

func TestHttpServerRequiresARoute(t *testing.T) {
	t.Parallel()
	_, err := web.NewHttpServer(fixtures.NewTestLogger(t), nil, nil, nil, "TestHttpServerRequiresARoute", "", false, false, false)
	require.Error(t, err)
}

func TestHttpServerIngestionRequiresEmitter(t *testing.T) {
	t.Parallel()
	_, err := web.NewHttpServer(fixtures.NewTestLogger(t), nil, nil, nil, "TestHttpServerIngestionRequiresEmitter", "", false, true, false)
	require.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	t.Parallel()

	healthy := func() (string, healthcheck.HealthyStatus) { return "healthy", healthcheck.Healthy }
	unhealthy := func() (string, healthcheck.HealthyStatus) { return "unhealthy", healthcheck.Unhealthy }

	hs, err := web.NewHttpServer(
		fixtures.NewTestLogger(t),
		nil,
		[]healthcheck.HealthcheckFunc{healthy},
		[]healthcheck.HealthcheckFunc{healthy, unhealthy},
		"TestHealthChecks",
		"",
		false,
		false,
		true,
	)
	require.NoError(t, err)

	c := httptest.NewServer(hs.Router)
	defer c.Close()

	resp, err := http.Get(c.URL + "/healthcheck")
	require.NoError(t, err)
	body := readAll(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":["healthy"],"failed":[]}`, body)

	resp, err = http.Get(c.URL + "/deepcheck")
	require.NoError(t, err)
	body = readAll(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"ok":["healthy"],"failed":["unhealthy"]}`, body)

	resp, err = http.Get(c.URL + "/nope")
	require.NoError(t, err)
	_ = readAll(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExpvar(t *testing.T) {
	t.Parallel()
	hs, err := web.NewHttpServer(fixtures.NewTestLogger(t), &capturingEmitter{}, nil, nil, "TestExpvar", "", true, true, false)
	require.NoError(t, err)

	c := httptest.NewServer(hs.Router)
	defer c.Close()

	resp, err := http.Get(c.URL + "/expvar")
	require.NoError(t, err)
	body := readAll(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"http.TestExpvar.incoming"`)
}

func TestNewHttpServersFromViper(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set("http-servers", []string{"internal", "ingest"})
	v.Set("http.ingest.enable-ingestion", true)
	v.Set("http.ingest.enable-healthcheck", false)

	servers, err := web.NewHttpServersFromViper(v, fixtures.NewTestLogger(t), &capturingEmitter{}, nil, nil)
	require.NoError(t, err)
	require.Len(t, servers, 2)

	v.Set("http.internal.enable-healthcheck", false)
	_, err = web.NewHttpServersFromViper(v, fixtures.NewTestLogger(t), &capturingEmitter{}, nil, nil)
	require.Error(t, err)
}
