package server

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingExtractor struct {
	inner FormExtractor
	calls atomic.Int64
}

func (e *countingExtractor) Extract(r *http.Request) (*FieldSet, error) {
	e.calls.Add(1)
	return e.inner.Extract(r)
}

type failingExtractor struct {
	err error
}

func (e *failingExtractor) Extract(r *http.Request) (*FieldSet, error) {
	return nil, e.err
}

func testFormBody(req *http.Request, extractor FormExtractor) (*FormBody, ForwardHeaders) {
	forward := ForwardHeaders{}
	return NewFormBody(req, extractor, NewFormEncoder(), forward, 0, DefaultMaxMemoryBufferSize), forward
}

func TestFormBody_AccessorsAreIdempotent(t *testing.T) {
	extractor := &countingExtractor{inner: NewFormExtractor()}
	req := testFormRequest("application/x-www-form-urlencoded", "a=1&b=x&b=y")
	body, _ := testFormBody(req, extractor)
	defer body.Close()

	contentType, err := body.ContentType()
	require.NoError(t, err)

	length, err := body.ContentLength64()
	require.NoError(t, err)

	first, err := body.Reader()
	require.NoError(t, err)
	firstBytes, err := io.ReadAll(first)
	require.NoError(t, err)

	// Repeat in a different order; everything answers from the same buffer
	second, err := body.Reader()
	require.NoError(t, err)
	secondBytes, err := io.ReadAll(second)
	require.NoError(t, err)

	contentTypeAgain, err := body.ContentType()
	require.NoError(t, err)
	lengthAgain, err := body.ContentLength64()
	require.NoError(t, err)

	assert.Equal(t, "a=1&b=x&b=y", string(firstBytes))
	assert.Equal(t, firstBytes, secondBytes)
	assert.Equal(t, contentType, contentTypeAgain)
	assert.Equal(t, length, lengthAgain)
	assert.Equal(t, int64(len(firstBytes)), length)

	assert.Equal(t, int64(1), extractor.calls.Load())
}

func TestFormBody_PublishesFinalizedContentType(t *testing.T) {
	req := testFormRequest("application/x-www-form-urlencoded", "a=1")
	body, forward := testFormBody(req, NewFormExtractor())
	defer body.Close()

	_, ok := forward.Get("content-type")
	assert.False(t, ok, "nothing published before the first access")

	contentType, err := body.ContentType()
	require.NoError(t, err)

	published, ok := forward.Get("content-type")
	require.True(t, ok)
	assert.Equal(t, contentType, published)
}

func TestFormBody_MultipartBoundaryIsFinalized(t *testing.T) {
	req := testFormRequest("multipart/form-data; boundary=staleboundary", "ignored")

	// Bypass the raw stream so the rebuild works from a fresh field set
	fields := NewFieldSet()
	fields.Add("a", "1")
	body, forward := testFormBody(req, &staticExtractor{fields: fields})
	defer body.Close()

	contentType, err := body.ContentType()
	require.NoError(t, err)

	finalized, err := ParseMediaType(contentType)
	require.NoError(t, err)
	boundary, ok := finalized.Param("boundary")
	require.True(t, ok)
	assert.NotEqual(t, "staleboundary", boundary)

	reader, err := body.Reader()
	require.NoError(t, err)
	encoded, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "--"+boundary)

	published, ok := forward.Get("content-type")
	require.True(t, ok)
	assert.Equal(t, contentType, published)
}

type staticExtractor struct {
	fields *FieldSet
}

func (e *staticExtractor) Extract(r *http.Request) (*FieldSet, error) {
	return e.fields, nil
}

func TestFormBody_AbsentContentLengthStaysAbsent(t *testing.T) {
	extractor := &countingExtractor{inner: NewFormExtractor()}

	for _, reported := range []int64{-1, 0} {
		req := testFormRequest("application/x-www-form-urlencoded", "a=1")
		req.ContentLength = reported
		body, _ := testFormBody(req, extractor)

		length, err := body.ContentLength64()
		require.NoError(t, err)
		assert.Equal(t, reported, length)

		intLength, err := body.ContentLength()
		require.NoError(t, err)
		assert.Equal(t, int(reported), intLength)
	}

	assert.Equal(t, int64(0), extractor.calls.Load(), "absent lengths must not trigger a build")
}

func TestFormBody_BuildFailureIsStickyAndLabeled(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	req := testFormRequest("application/x-www-form-urlencoded", "a=1")
	body, forward := testFormBody(req, &failingExtractor{err: cause})

	_, err := body.ContentType()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotConvertFormData)
	assert.ErrorIs(t, err, cause)

	// No buffer is ever published
	_, readerErr := body.Reader()
	assert.Equal(t, err, readerErr)
	_, lengthErr := body.ContentLength64()
	assert.Equal(t, err, lengthErr)

	_, ok := forward.Get("content-type")
	assert.False(t, ok)
}

func TestFormBody_MissingContentTypeAtBuildTime(t *testing.T) {
	req := testFormRequest("", "a=1")

	fields := NewFieldSet()
	fields.Add("a", "1")
	body, _ := testFormBody(req, &staticExtractor{fields: fields})

	_, err := body.ContentType()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotConvertFormData)
}

func TestFormBody_ConcurrentAccessBuildsOnce(t *testing.T) {
	extractor := &countingExtractor{inner: NewFormExtractor()}
	req := testFormRequest("application/x-www-form-urlencoded", "a=1&b=2")
	body, _ := testFormBody(req, extractor)
	defer body.Close()

	var wg sync.WaitGroup
	results := make([]string, 20)

	for i := range results {
		wg.Go(func() {
			reader, err := body.Reader()
			if err != nil {
				return
			}
			data, err := io.ReadAll(reader)
			if err != nil {
				return
			}
			results[i] = string(data)
		})
	}
	wg.Wait()

	for _, result := range results {
		assert.Equal(t, "a=1&b=2", result)
	}
	assert.Equal(t, int64(1), extractor.calls.Load())
}

func TestFormBody_LazyBodyDefersBuild(t *testing.T) {
	extractor := &countingExtractor{inner: NewFormExtractor()}
	req := testFormRequest("application/x-www-form-urlencoded", "a=1")
	body, _ := testFormBody(req, extractor)
	defer body.Close()

	lazy := body.Body()
	assert.Equal(t, int64(0), extractor.calls.Load(), "installing the body must not build")

	data, err := io.ReadAll(lazy)
	require.NoError(t, err)
	assert.Equal(t, "a=1", string(data))
	assert.Equal(t, int64(1), extractor.calls.Load())

	require.NoError(t, lazy.Close())
}

func TestFormBody_EmptyFieldSetIsValid(t *testing.T) {
	req := testFormRequest("application/x-www-form-urlencoded", "")
	req.ContentLength = 1 // force the length accessor through the build

	body, _ := testFormBody(req, NewFormExtractor())
	defer body.Close()

	length, err := body.ContentLength64()
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)

	reader, err := body.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFormBody_ReaderDoesNotAdvanceBuffer(t *testing.T) {
	req := testFormRequest("application/x-www-form-urlencoded", "a=1&b=2")
	body, _ := testFormBody(req, NewFormExtractor())
	defer body.Close()

	first, err := body.Reader()
	require.NoError(t, err)
	partial := make([]byte, 3)
	_, err = io.ReadFull(first, partial)
	require.NoError(t, err)

	second, err := body.Reader()
	require.NoError(t, err)
	data, err := io.ReadAll(second)
	require.NoError(t, err)
	assert.Equal(t, "a=1&b=2", string(data))
	assert.True(t, strings.HasPrefix(string(data), string(partial)))
}
