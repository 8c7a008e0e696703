package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testTarget(t testing.TB, handler http.HandlerFunc) *Target {
	t.Helper()

	_, targetURL := testBackendWithHandler(t, handler)

	target, err := NewTarget(targetURL)
	require.NoError(t, err)
	return target
}

func testBackend(t testing.TB, body string, statusCode int) (*httptest.Server, string) {
	t.Helper()

	return testBackendWithHandler(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statusCode)
		w.Write([]byte(body))
	})
}

func testBackendWithHandler(t testing.TB, handler http.HandlerFunc) (*httptest.Server, string) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	serverURL, err := url.Parse(server.URL)
	require.NoError(t, err)

	return server, serverURL.Host
}

func testServer(t testing.TB) *Server {
	t.Helper()

	config := &Config{
		Bind:                "127.0.0.1",
		HttpPort:            0,
		MaxMemoryBufferSize: DefaultMaxMemoryBufferSize,
		InspectForms:        true,
		AlternateConfigDir:  t.TempDir(),
	}
	router := NewRouter(config.StatePath())
	server := NewServer(config, router)
	err := server.Start()
	require.NoError(t, err)

	t.Cleanup(server.Stop)

	return server
}

func testFormRequest(contentType, body string) *http.Request {
	req := httptest.NewRequest("POST", "http://app.example.com/submit", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}
