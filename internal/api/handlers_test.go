package api

import (
	"archive/zip"
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glinrdock-paas/supervisor/internal/deploy"
	"github.com/glinrdock-paas/supervisor/internal/registry"
	"github.com/glinrdock-paas/supervisor/internal/webhook"
)

func buildStaticZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("index.html")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*httptest.Server, *deploy.Pipeline, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	reg, err := registry.Open(filepath.Join(root, "data", "apps.json"))
	require.NoError(t, err)

	pipeline := deploy.New(deploy.Config{
		AppsRoot:          root,
		PortFloor:         16200,
		AutoRestartMax:    3,
		AutoRestartWindow: time.Minute,
		LogMaxSizeMB:      1,
		LogMaxFiles:       3,
		StopGrace:         2 * time.Second,
	}, reg)

	redeployer := webhook.New(reg, pipeline.Redeploy)

	engine := gin.New()
	New(engine, pipeline, reg, redeployer, nil, root)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv, pipeline, reg
}

func TestPlatformHealthReportsAppCount(t *testing.T) {
	srv, pipeline, _ := newTestServer(t)

	_, err := pipeline.Deploy("site", deploy.Source{Archive: buildStaticZip(t)})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/platform/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 1, body["app_count"])
}

func TestAppHealthUnknownAppReturns404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/apps/ghost/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpointUnavailableWithoutGlobalCollector(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	srv, pipeline, reg := newTestServer(t)

	_, err := pipeline.Deploy("site", deploy.Source{Archive: buildStaticZip(t)})
	require.NoError(t, err)
	require.NoError(t, reg.Update("site", func(a registry.App) (registry.App, error) {
		a.WebhookSecret = []byte("shh")
		return a, nil
	}))

	resp, err := http.Post(srv.URL+"/webhooks/site", "application/json", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookAcceptsValidSignature(t *testing.T) {
	srv, pipeline, reg := newTestServer(t)

	_, err := pipeline.Deploy("site", deploy.Source{Archive: buildStaticZip(t)})
	require.NoError(t, err)

	secret := []byte("shh")
	require.NoError(t, reg.Update("site", func(a registry.App) (registry.App, error) {
		a.WebhookSecret = secret
		a.RepoURL = "https://example.invalid/repo.git"
		a.Branch = "main"
		return a, nil
	}))

	body := []byte("{}")
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/site", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Hub-Signature-256", sig)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	// The redeploy itself will fail (no real git remote), but signature
	// verification must pass and return something other than 401.
	assert.NotEqual(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestStreamLogsUpgradesForKnownApp(t *testing.T) {
	srv, pipeline, _ := newTestServer(t)

	_, err := pipeline.Deploy("site", deploy.Source{Archive: buildStaticZip(t)})
	require.NoError(t, err)

	wsURL := "ws" + srv.URL[len("http"):] + "/apps/site/logs/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
}

func TestStreamLogsUnknownAppReturns404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	wsURL := "ws" + srv.URL[len("http"):] + "/apps/ghost/logs/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}
