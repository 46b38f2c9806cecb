package manager

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"edgegate/gateway"
	"edgegate/history"
	"edgegate/recorder"
	"edgegate/router"
	"edgegate/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *gateway.Gateway) {
	t.Helper()
	reg := router.MustRegistry(map[string]string{
		"usuario": "http://localhost:3001",
		"produto": "http://localhost:3002",
		"pedido":  "http://localhost:3003",
	})
	s := store.NewLocalStore()
	t.Cleanup(func() { _ = s.Close() })
	gw := gateway.New(reg, recorder.New(history.New(20), s, reg.Len()), gateway.WithLatency(0))

	srv := httptest.NewServer(NewManagementAPI(gw).Handler())
	t.Cleanup(srv.Close)
	return srv, gw
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestRouteEndpoint(t *testing.T) {
	srv, gw := newServer(t)

	tests := []struct {
		body    string
		status  int
		outcome string
		reason  string
	}{
		{`{"serviceName":"usuario"}`, http.StatusOK, "routed", ""},
		{`{}`, http.StatusUnprocessableEntity, "rejected", "empty_payload"},
		{``, http.StatusUnprocessableEntity, "rejected", "empty_payload"},
		{`{"acao":"teste"}`, http.StatusUnprocessableEntity, "rejected", "missing_service_name"},
		{`{"serviceName":"servico_inexistente"}`, http.StatusNotFound, "rejected", "unknown_service"},
	}
	for _, tt := range tests {
		resp, out := post(t, srv.URL+"/api/route", tt.body)
		assert.Equal(t, tt.status, resp.StatusCode, tt.body)
		assert.Equal(t, tt.outcome, out["outcome"], tt.body)
		if tt.reason != "" {
			assert.Equal(t, tt.reason, out["reason"], tt.body)
		}
	}

	assert.Zero(t, gw.Recorder().History().Len(), "dry run must not record")
}

func TestRouteEndpointTarget(t *testing.T) {
	srv, _ := newServer(t)
	_, out := post(t, srv.URL+"/api/route", `{"serviceName":"usuario"}`)
	assert.Equal(t, "http://localhost:3001", out["target"])
}

func TestRouteEndpointBadJSON(t *testing.T) {
	srv, gw := newServer(t)
	bodies := []string{
		`{"serviceName":`,
		`{"serviceName":7}`,
		`[1,2]`,
		`{"serviceName":"usuario"} garbage`,
		`{"serviceName":"usuario"}{"serviceName":"nope"}`,
	}
	for _, body := range bodies {
		resp, _ := post(t, srv.URL+"/api/route", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	resp, _ := post(t, srv.URL+"/api/requests", `{"serviceName":"pedido"}trailing`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, gw.Recorder().History().Len(), "malformed bodies must not be recorded")

	resp, _ = post(t, srv.URL+"/api/route", "{\"serviceName\":\"usuario\"}\n")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "trailing whitespace is fine")
}

func TestRequestsEndpoint(t *testing.T) {
	srv, gw := newServer(t)

	resp, out := post(t, srv.URL+"/api/requests", `{"serviceName":"pedido","id":"12345"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "http://localhost:3003", out["url"])

	resp, out = post(t, srv.URL+"/api/requests", `{"serviceName":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "service 'nope' not found", out["error"])

	st, err := gw.Recorder().Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.TotalRequests)
	assert.Equal(t, int64(1), st.Rejected)
}

func TestStatusServicesAndHistory(t *testing.T) {
	srv, _ := newServer(t)
	post(t, srv.URL+"/api/requests", `{"serviceName":"usuario"}`)

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	var status struct {
		Status string         `json:"status"`
		Stats  recorder.Stats `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, "active", status.Status)
	assert.Equal(t, int64(1), status.Stats.TotalRequests)
	assert.Equal(t, 3, status.Stats.Services)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, err = http.Get(srv.URL + "/api/services")
	require.NoError(t, err)
	var services struct {
		Services map[string]string `json:"services"`
		Count    int               `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&services))
	resp.Body.Close()
	assert.Equal(t, 3, services.Count)
	assert.Equal(t, "http://localhost:3002", services.Services["produto"])

	resp, err = http.Get(srv.URL + "/api/services/ghost")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/history?limit=1")
	require.NoError(t, err)
	var recs []history.Record
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	resp.Body.Close()
	require.Len(t, recs, 1)
	assert.Equal(t, history.KindOutbound, recs[0].Kind)

	resp, err = http.Get(srv.URL + "/api/history?limit=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newServer(t)
	resp, err := http.Get(srv.URL + "/api/route")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
