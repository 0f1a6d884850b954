package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	redis_adapter "github.com/user/webmonitor/internal/adapter/redis"
	"github.com/user/webmonitor/internal/adapter/sqlite"
	"github.com/user/webmonitor/internal/auth"
	"github.com/user/webmonitor/internal/delivery/http/handler"
	"github.com/user/webmonitor/internal/delivery/http/response"
	"github.com/user/webmonitor/internal/delivery/http/router"
	"github.com/user/webmonitor/internal/usecase"
	"github.com/user/webmonitor/pkg/metrics"
)

const (
	testSecret = "test-secret"
	ownerEmail = "owner@test"
)

type testServer struct {
	http.Handler
	users   *sqlite.UserRepoImpl
	redis   *miniredis.Miniredis
	metrics *metrics.Metrics
}

func setupTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "webmonitor-handler-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	db, err := sqlite.Open(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create test database: %v", err)
	}
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		db.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to start redis: %v", err)
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	sites := sqlite.NewSiteRepo(db)
	users := sqlite.NewUserRepo(db)
	markers := redis_adapter.NewMarkerRepo(rdb)
	collector := usecase.NewCollector(sites, users, sqlite.NewEventRepo(db), markers, m, usecase.CollectorConfig{
		DefaultOwnerEmail: ownerEmail,
	})
	h := handler.NewHandler(collector, map[string]handler.Pinger{"sqlite": sites, "redis": markers}, 10*time.Minute)

	srv := &testServer{
		Handler: router.New(h, router.Options{Verifier: auth.NewVerifier(testSecret), Metrics: m, Gatherer: reg}),
		users:   users,
		redis:   mr,
		metrics: m,
	}
	cleanup := func() {
		rdb.Close()
		mr.Close()
		db.Close()
		os.RemoveAll(tmpDir)
	}
	return srv, cleanup
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) ownerToken(t *testing.T) string {
	t.Helper()
	owner, err := s.users.DefaultOwner(context.Background(), ownerEmail)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := auth.IssueToken(testSecret, owner.ID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func collectRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/collect", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "192.0.2.10:5555"
	return req
}

func beaconBody(code string) string {
	return `{"siteId":"` + code + `","timestamp":1740830400000,"data":{"url":"https://shop.test","loadTime":1200,` +
		`"errors":[{"type":"TypeError","message":"x is undefined","filename":"app.js","lineno":3}],` +
		`"consoleEntries":[{"type":"warn","message":"careful","timestamp":"2025-03-01T12:00:00Z"}],` +
		`"imageIssues":[{"url":"https://shop.test/a.png","originalSize":{"width":2000,"height":1000},"displaySize":{"width":100,"height":50}}]}}`
}

func trackingCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == handler.TrackingCookie {
			return c
		}
	}
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCollectStoresThenSuppressesByCookie(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()
	code := "wm_" + uuid.NewString()

	rec := srv.do(collectRequest(beaconBody(code)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if got := decode[response.CollectResponse](t, rec); !got.Success {
		t.Errorf("response = %+v", got)
	}
	cookie := trackingCookie(rec)
	if cookie == nil {
		t.Fatal("tracking cookie not set")
	}
	if cookie.Value != strings.TrimPrefix(code, "wm_") || cookie.MaxAge != 600 || !cookie.HttpOnly {
		t.Errorf("cookie = %+v", cookie)
	}

	// A different client address rules out the redis marker.
	req := collectRequest(beaconBody(code))
	req.RemoteAddr = "198.51.100.7:1"
	req.AddCookie(&http.Cookie{Name: handler.TrackingCookie, Value: cookie.Value})
	rec = srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("suppressed status = %d body = %s", rec.Code, rec.Body)
	}
	got := decode[response.CollectResponse](t, rec)
	if !got.Success || got.Message != "data already collected recently" {
		t.Errorf("suppressed response = %+v", got)
	}
	if v := testutil.ToFloat64(srv.metrics.BeaconsReceived.WithLabelValues("suppressed")); v != 1 {
		t.Errorf("suppressed beacons = %v", v)
	}
}

func TestCollectSuppressesByClientMarker(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()
	code := "wm_" + uuid.NewString()

	if rec := srv.do(collectRequest(beaconBody(code))); rec.Code != http.StatusCreated {
		t.Fatalf("first status = %d", rec.Code)
	}
	// Same address and user agent, no cookie returned by the browser.
	if rec := srv.do(collectRequest(beaconBody(code))); rec.Code != http.StatusOK {
		t.Fatalf("second status = %d, want suppression", rec.Code)
	}

	srv.redis.FastForward(11 * time.Minute)
	if rec := srv.do(collectRequest(beaconBody(code))); rec.Code != http.StatusCreated {
		t.Fatalf("after expiry status = %d", rec.Code)
	}
}

func TestCollectRejectsBadInput(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	tests := map[string]string{
		"missing siteId": `{"timestamp":1,"data":{"loadTime":5}}`,
		"invalid json":   `{"siteId":`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := srv.do(collectRequest(body))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			got := decode[response.ErrorResponse](t, rec)
			if got.Success || got.Code != response.CodeValidation {
				t.Errorf("error = %+v", got)
			}
			if trackingCookie(rec) != nil {
				t.Error("cookie set on rejected request")
			}
		})
	}
}

func TestCollectPreflight(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodOptions, "/api/collect", nil)
	req.Header.Set("Origin", "https://shop.test")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := srv.do(req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	h := rec.Header()
	if h.Get("Access-Control-Allow-Origin") != "https://shop.test" ||
		h.Get("Access-Control-Allow-Credentials") != "true" ||
		h.Get("Vary") != "Origin" {
		t.Errorf("headers = %v", h)
	}
}

func TestListAndDetailRequireAuth(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	for _, path := range []string{"/api/collect", "/api/collect/sites/wm_x"} {
		rec := srv.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s anonymous status = %d", path, rec.Code)
		}

		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		if rec := srv.do(req); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s bad token status = %d", path, rec.Code)
		}
	}
}

func TestListAndDetailForOwner(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()
	code := "wm_" + uuid.NewString()

	if rec := srv.do(collectRequest(beaconBody(code))); rec.Code != http.StatusCreated {
		t.Fatalf("collect status = %d", rec.Code)
	}
	tok := srv.ownerToken(t)

	req := httptest.NewRequest(http.MethodGet, "/api/collect", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d body = %s", rec.Code, rec.Body)
	}
	list := decode[[]response.Site](t, rec)
	if len(list) != 1 {
		t.Fatalf("sites = %+v", list)
	}
	site := list[0]
	if site.MonitoringCode != code || site.URL != "https://shop.test" || site.Status != "warning" {
		t.Errorf("site = %+v", site)
	}
	if site.LastUpdate == nil || site.Metrics.LoadTime != 1200 {
		t.Errorf("site = %+v", site)
	}
	if len(site.Metrics.Errors) != 1 || site.Metrics.Errors[0].LineNumber != 3 {
		t.Errorf("errors = %+v", site.Metrics.Errors)
	}
	if site.PerformanceData != nil {
		t.Errorf("list carries performanceData: %+v", site.PerformanceData)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/collect/sites/"+code, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = srv.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail status = %d body = %s", rec.Code, rec.Body)
	}
	detail := decode[response.Site](t, rec)
	if len(detail.PerformanceData) != 1 || detail.PerformanceData[0].Time != "12:00" {
		t.Errorf("performanceData = %+v", detail.PerformanceData)
	}
	if len(detail.Metrics.ImageIssues) != 1 || detail.Metrics.ImageIssues[0].OriginalSize.Width != 2000 {
		t.Errorf("imageIssues = %+v", detail.Metrics.ImageIssues)
	}
	if len(detail.Metrics.ConsoleEntries) != 1 || detail.Metrics.ConsoleEntries[0].Type != "warn" {
		t.Errorf("consoleEntries = %+v", detail.Metrics.ConsoleEntries)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/collect/sites/wm_unknown", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = srv.do(req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown status = %d", rec.Code)
	}
	if got := decode[response.ErrorResponse](t, rec); got.Code != response.CodeNotFound {
		t.Errorf("error = %+v", got)
	}
}

func TestDetailHidesForeignSites(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()
	code := "wm_" + uuid.NewString()

	if rec := srv.do(collectRequest(beaconBody(code))); rec.Code != http.StatusCreated {
		t.Fatalf("collect status = %d", rec.Code)
	}
	tok, err := auth.IssueToken(testSecret, uuid.New(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/collect/sites/"+code, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	if rec := srv.do(req); rec.Code != http.StatusNotFound {
		t.Errorf("foreign detail status = %d", rec.Code)
	}
}

func TestHealthReportsDependencies(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if got := decode[response.HealthResponse](t, rec); got.Checks["redis"] != "ok" || got.Checks["sqlite"] != "ok" {
		t.Errorf("health = %+v", got)
	}

	srv.redis.Close()
	rec = srv.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status with redis down = %d", rec.Code)
	}
	if got := decode[response.HealthResponse](t, rec); got.Status != "degraded" || got.Checks["redis"] != "unavailable" {
		t.Errorf("health = %+v", got)
	}
}

func TestTrackerScriptAndMetrics(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	rec := srv.do(httptest.NewRequest(http.MethodGet, "/tracker.js", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/javascript") {
		t.Fatalf("tracker.js status = %d type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "data-site-id") {
		t.Error("tracker.js does not mention data-site-id")
	}

	srv.do(httptest.NewRequest(http.MethodGet, "/api/collect/sites/wm_a", nil))
	srv.do(httptest.NewRequest(http.MethodGet, "/api/collect/sites/wm_b", nil))
	if v := testutil.ToFloat64(srv.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/collect/sites/{monitoringCode}", "401")); v != 2 {
		t.Errorf("requests by route pattern = %v, want 2", v)
	}

	rec = srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Errorf("metrics status = %d", rec.Code)
	}
}
