package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestContextCarriesThroughContext(t *testing.T) {
	req := testFormRequest("application/x-www-form-urlencoded", "a=1")

	rc, req := WithRequestContext(req)

	recovered := RequestContextFrom(req.Context())
	require.Same(t, rc, recovered)
	assert.Same(t, req, rc.Request())
}

func TestRequestContextFromMissing(t *testing.T) {
	assert.Nil(t, RequestContextFrom(context.Background()))
}

func TestRequestSlotReplacement(t *testing.T) {
	req := testFormRequest("application/x-www-form-urlencoded", "a=1")
	rc, req := WithRequestContext(req)

	replacement := new(http.Request)
	*replacement = *req
	rc.SetRequest(replacement)

	// All holders of the context see the new innermost request
	assert.Same(t, replacement, RequestContextFrom(req.Context()).Request())
}

func TestForwardHeadersAreLowerCased(t *testing.T) {
	headers := ForwardHeaders{}
	headers.Set("Content-Type", "application/x-www-form-urlencoded")

	value, ok := headers.Get("content-type")
	require.True(t, ok)
	assert.Equal(t, "application/x-www-form-urlencoded", value)

	value, ok = headers.Get("CONTENT-TYPE")
	require.True(t, ok)
	assert.Equal(t, "application/x-www-form-urlencoded", value)

	_, ok = headers.Get("x-missing")
	assert.False(t, ok)
}

func TestDispatchedInProcessFlag(t *testing.T) {
	req := testFormRequest("multipart/form-data; boundary=abc", "")
	rc, _ := WithRequestContext(req)

	assert.False(t, rc.DispatchedInProcess())
	rc.MarkDispatchedInProcess()
	assert.True(t, rc.DispatchedInProcess())
}
