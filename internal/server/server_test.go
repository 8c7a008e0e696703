package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_ReplaysFormBodyToBackend(t *testing.T) {
	var receivedBody string
	var receivedContentType string
	var receivedContentLength int64

	_, backend := testBackendWithHandler(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		receivedBody = string(body)
		receivedContentType = r.Header.Get("Content-Type")
		receivedContentLength = r.ContentLength
		w.WriteHeader(http.StatusOK)
	})

	server := testServer(t)
	require.NoError(t, server.router.SetTarget("app.example.com", backend))

	body := "first=1&second=two&second=2"
	req, err := http.NewRequest("POST", fmt.Sprintf("http://127.0.0.1:%d/submit", server.HttpPort()), strings.NewReader(body))
	require.NoError(t, err)
	req.Host = "app.example.com"
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, body, receivedBody)
	assert.Equal(t, "application/x-www-form-urlencoded", receivedContentType)
	assert.Equal(t, int64(len(body)), receivedContentLength)
}

func TestServer_PassesNonFormRequestsThroughUnchanged(t *testing.T) {
	var receivedBody string

	_, backend := testBackendWithHandler(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		receivedBody = string(body)
	})

	server := testServer(t)
	require.NoError(t, server.router.SetTarget("app.example.com", backend))

	req, err := http.NewRequest("POST", fmt.Sprintf("http://127.0.0.1:%d/api", server.HttpPort()), strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	req.Host = "app.example.com"
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"a":1}`, receivedBody)
}

func TestServer_UnknownHostReturnsServiceNotFound(t *testing.T) {
	server := testServer(t)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", server.HttpPort()))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
