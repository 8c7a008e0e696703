package server

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormExtractor_URLEncoded(t *testing.T) {
	extractor := NewFormExtractor()

	t.Run("preserves document order", func(t *testing.T) {
		req := testFormRequest("application/x-www-form-urlencoded", "b=2&a=1&b=3")

		fields, err := extractor.Extract(req)
		require.NoError(t, err)

		require.Equal(t, 2, fields.Len())
		assert.Equal(t, "b", fields.Fields()[0].Name)
		assert.Equal(t, "a", fields.Fields()[1].Name)
		assert.Equal(t, "2", fields.Values("b")[0].Text)
		assert.Equal(t, "3", fields.Values("b")[1].Text)
	})

	t.Run("decodes percent encoding", func(t *testing.T) {
		req := testFormRequest("application/x-www-form-urlencoded", "greeting=hello+world&sym=%26%3D")

		fields, err := extractor.Extract(req)
		require.NoError(t, err)

		assert.Equal(t, "hello world", fields.Values("greeting")[0].Text)
		assert.Equal(t, "&=", fields.Values("sym")[0].Text)
	})

	t.Run("empty body is a valid empty field set", func(t *testing.T) {
		req := testFormRequest("application/x-www-form-urlencoded", "")

		fields, err := extractor.Extract(req)
		require.NoError(t, err)
		assert.Equal(t, 0, fields.Len())
	})

	t.Run("malformed escape", func(t *testing.T) {
		req := testFormRequest("application/x-www-form-urlencoded", "a=%zz")

		_, err := extractor.Extract(req)
		assert.Error(t, err)
	})
}

func TestFormExtractor_Multipart(t *testing.T) {
	extractor := NewFormExtractor()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("first", "1"))

	part, err := writer.CreateFormFile("upload", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("file contents"))
	require.NoError(t, err)

	require.NoError(t, writer.WriteField("last", "2"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "http://app.example.com/submit", bytes.NewReader(body.Bytes()))
	req.Header.Set("Content-Type", writer.FormDataContentType())

	fields, err := extractor.Extract(req)
	require.NoError(t, err)

	require.Equal(t, 3, fields.Len())
	assert.Equal(t, "first", fields.Fields()[0].Name)
	assert.Equal(t, "upload", fields.Fields()[1].Name)
	assert.Equal(t, "last", fields.Fields()[2].Name)

	upload := fields.Values("upload")[0]
	require.True(t, upload.IsFile())
	assert.Equal(t, "notes.txt", upload.File.Filename)
	assert.Equal(t, []byte("file contents"), upload.File.Data)
}

func TestFormExtractor_MultipartWithoutBoundary(t *testing.T) {
	extractor := NewFormExtractor()
	req := testFormRequest("multipart/form-data", "irrelevant")

	_, err := extractor.Extract(req)
	assert.Error(t, err)
}

func TestFormExtractor_RewindsConsumedBody(t *testing.T) {
	extractor := NewFormExtractor()

	req := testFormRequest("application/x-www-form-urlencoded", "a=1&b=2")
	req.Body = NewRewindableReadCloser(req.Body, 0, 1024)

	// An upstream consumer drains the stream completely
	_, err := io.ReadAll(req.Body)
	require.NoError(t, err)

	fields, err := extractor.Extract(req)
	require.NoError(t, err)

	require.Equal(t, 2, fields.Len())
	assert.Equal(t, "1", fields.Values("a")[0].Text)
	assert.Equal(t, "2", fields.Values("b")[0].Text)
}

func TestFormExtractor_FallsBackToParsedFormCache(t *testing.T) {
	extractor := NewFormExtractor()

	req := testFormRequest("application/x-www-form-urlencoded", "b=2&a=1")

	// An upstream parser consumes the body, leaving only its cache behind
	require.NoError(t, req.ParseForm())
	_, err := io.Copy(io.Discard, req.Body)
	require.NoError(t, err)

	fields, err := extractor.Extract(req)
	require.NoError(t, err)

	require.Equal(t, 2, fields.Len())
	assert.Equal(t, "1", fields.Values("a")[0].Text)
	assert.Equal(t, "2", fields.Values("b")[0].Text)
}

func TestFormExtractor_UnparsableContentType(t *testing.T) {
	extractor := NewFormExtractor()
	req := testFormRequest("not a media type", "a=1")

	_, err := extractor.Extract(req)
	assert.Error(t, err)
}

func TestFormExtractor_UnsupportedContentType(t *testing.T) {
	extractor := NewFormExtractor()
	req := testFormRequest("application/json", `{"a":1}`)

	_, err := extractor.Extract(req)
	assert.Error(t, err)
}

func TestParseURLEncodedBody_IgnoresEmptyPairs(t *testing.T) {
	fields, err := parseURLEncodedBody([]byte("&a=1&&b=2&"))
	require.NoError(t, err)
	assert.Equal(t, 2, fields.Len())
}

func TestParseMultipartBody_Empty(t *testing.T) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.Close())

	fields, err := parseMultipartBody(body.Bytes(), writer.Boundary())
	require.NoError(t, err)
	assert.Equal(t, 0, fields.Len())
}

func TestFormExtractor_ValueOnlyPair(t *testing.T) {
	extractor := NewFormExtractor()
	req := testFormRequest("application/x-www-form-urlencoded", "flag")

	fields, err := extractor.Extract(req)
	require.NoError(t, err)

	require.Equal(t, 1, fields.Len())
	assert.Equal(t, "", fields.Values("flag")[0].Text)
	assert.False(t, strings.Contains(fields.Fields()[0].Name, "="))
}
