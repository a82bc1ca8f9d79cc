package readapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tecnovert/particl-coldstakepool/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testSettings(allowCORS bool) *config.Settings {
	return &config.Settings{
		Mode:              config.ModeMaster,
		AllowCORS:         allowCORS,
		ManagementKeySalt: "pepper",
		ManagementKeyHash: managementHash("letmein", "pepper"),
		DataDir:           "/var/lib/coldstakepool",
		RpcCookieDir:      "/var/lib/particl/.cookie",
		RpcAuth:           "user:pass",
		PoolAddress:       "rtpw1pooladdress",
		RewardAddress:     "RRewardAddress",
	}
}

func managementHash(code, salt string) string {
	sum := sha256.Sum256([]byte(code + salt))
	return hex.EncodeToString(sum[:])
}

func TestCheckManagementCode(t *testing.T) {
	srv := NewServer(&ReadAPI{}, testSettings(true))
	require.True(t, srv.checkManagementCode("letmein"))
	require.False(t, srv.checkManagementCode("wrong"))
	require.False(t, srv.checkManagementCode(""))
}

func TestCORSHeaderPresentWhenEnabled(t *testing.T) {
	api, _, _ := newTestAPI(t)
	srv := NewServer(api, testSettings(true))

	req := httptest.NewRequest(http.MethodGet, "/json", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSHeaderAbsentWhenDisabled(t *testing.T) {
	api, _, _ := newTestAPI(t)
	srv := NewServer(api, testSettings(false))

	req := httptest.NewRequest(http.MethodGet, "/json", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightHandledWhenEnabled(t *testing.T) {
	api, _, _ := newTestAPI(t)
	srv := NewServer(api, testSettings(true))

	req := httptest.NewRequest(http.MethodOptions, "/json", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestJSONSummaryRoute(t *testing.T) {
	api, _, _ := newTestAPI(t)
	srv := NewServer(api, testSettings(true))

	req := httptest.NewRequest(http.MethodGet, "/json", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "PoolHeight")
}

func TestJSONMetricsRebuildRequiresManagementCode(t *testing.T) {
	api, _, _ := newTestAPI(t)
	srv := NewServer(api, testSettings(true))

	req := httptest.NewRequest(http.MethodGet, "/json/metrics/wrongcode", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "unknown argument", body["error"])
}

func TestJSONPendingExpandDetailWithManagementCode(t *testing.T) {
	api, _, _ := newTestAPI(t)
	srv := NewServer(api, testSettings(true))

	req := httptest.NewRequest(http.MethodGet, "/json/pending/letmein", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "participants")
}

func TestPageIndexServesHTML(t *testing.T) {
	api, _, _ := newTestAPI(t)
	srv := NewServer(api, testSettings(true))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	require.Contains(t, rec.Body.String(), "Particl Stake Pool")
}

func TestPageConfigRedactsSensitiveFields(t *testing.T) {
	api, _, _ := newTestAPI(t)
	srv := NewServer(api, testSettings(true))

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "...", body["DataDir"])
	require.Equal(t, "...", body["PoolAddress"])
	require.Equal(t, "", body["ManagementKeyHash"])
}
