package app

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/credguard/internal/config"
	"github.com/your-org/credguard/internal/service/credstore"
	"github.com/your-org/credguard/internal/service/verifier"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Verifier.KDF.Iterations = 10
	cfg.Server.HTTP.Addr = "127.0.0.1:0"
	return cfg
}

func TestNew_DefaultBuildInfo(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	assert.Equal(t, "dev", a.buildInfo.Version)

	a, err = New(testConfig(), WithBuildInfo(BuildInfo{Version: "1.2.3"}))
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", a.buildInfo.Version)
}

func TestInitialize_InvalidMode(t *testing.T) {
	cfg := testConfig()
	cfg.Verifier.Mode = "lenient"

	a, err := New(cfg)
	require.NoError(t, err)
	assert.Error(t, a.Initialize(context.Background()))
}

func TestInitialize_InlineSeeds(t *testing.T) {
	cfg := testConfig()
	cfg.Verifier.Mode = verifier.ModeLegacy
	cfg.Credentials.Seeds = []credstore.Seed{{Identity: 1500, Secret: "24681357"}}

	a, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))

	assert.Equal(t, verifier.ModeLegacy, a.Verifier().Mode())
	assert.Equal(t, 1, a.Store().Snapshot().Len())
	assert.Equal(t, "inline", a.Store().Snapshot().Source())
}

func TestApp_ServeAndShutdown(t *testing.T) {
	a, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, a.Initialize(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ln) }()

	url := "http://" + ln.Addr().String()
	resp, err := http.Post(url+"/auth", "application/json",
		strings.NewReader(`{"user_id": 1001, "pin": "12345678"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(url+"/auth", "application/json",
		strings.NewReader(`{"user_id": 1003, "pin": "12345678"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))
	require.NoError(t, <-errCh)
}
