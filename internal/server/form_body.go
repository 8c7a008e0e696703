package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

var ErrCannotConvertFormData = errors.New("cannot convert form data")

// FormBody stands in for a request's single-read form body. It lazily
// extracts the field set from the original request, re-encodes it into an
// immutable buffer, and from then on answers every body-shaped query from
// that buffer. Building happens at most once per instance, on first demand;
// eligible requests whose body is never read again pay nothing.
type FormBody struct {
	request   *http.Request
	extractor FormExtractor
	encoder   FormEncoder
	forward   ForwardHeaders
	maxBytes  int64
	maxMem    int64

	mu        sync.Mutex
	buffer    *Buffer
	mediaType MediaType
	length    int64
	buildErr  error
}

func NewFormBody(r *http.Request, extractor FormExtractor, encoder FormEncoder, forward ForwardHeaders, maxBytes, maxMemBytes int64) *FormBody {
	return &FormBody{
		request:   r,
		extractor: extractor,
		encoder:   encoder,
		forward:   forward,
		maxBytes:  maxBytes,
		maxMem:    maxMemBytes,
	}
}

// ContentType returns the finalized content type, which for multipart bodies
// carries the regenerated boundary.
func (b *FormBody) ContentType() (string, error) {
	err := b.build()
	if err != nil {
		return "", err
	}
	return b.mediaType.String(), nil
}

func (b *FormBody) ContentLength() (int, error) {
	length, err := b.ContentLength64()
	return int(length), err
}

// ContentLength64 returns the encoded buffer's length. When the original
// request reported a non-positive length, that value is passed through
// untouched, without triggering a build: an absent length stays absent.
func (b *FormBody) ContentLength64() (int64, error) {
	if b.request.ContentLength <= 0 {
		return b.request.ContentLength, nil
	}

	err := b.build()
	if err != nil {
		return 0, err
	}
	return b.length, nil
}

// Reader returns a fresh, independent read of the full encoded body. The
// underlying buffer is never advanced by being read, so every call yields
// the same bytes.
func (b *FormBody) Reader() (io.ReadCloser, error) {
	err := b.build()
	if err != nil {
		return nil, err
	}
	return b.buffer.NewReader(), nil
}

// Body returns a ReadCloser suitable for installing as a request body. The
// build is deferred until the first Read, so installing the body is free for
// requests that never read it.
func (b *FormBody) Body() io.ReadCloser {
	return &lazyFormReader{body: b}
}

func (b *FormBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buffer != nil {
		return b.buffer.Close()
	}
	return nil
}

// Private

// build runs the extract-encode step exactly once per instance. Failures are
// sticky: once a build has failed, no buffer is ever exposed and every
// accessor reports the same error.
func (b *FormBody) build() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buffer != nil || b.buildErr != nil {
		return b.buildErr
	}

	buffer, mediaType, err := b.buildBuffer()
	if err != nil {
		b.buildErr = fmt.Errorf("%w: %w", ErrCannotConvertFormData, err)
		return b.buildErr
	}

	b.buffer = buffer
	b.mediaType = mediaType
	b.length = buffer.Len()
	b.forward.Set("content-type", mediaType.String())

	return nil
}

func (b *FormBody) buildBuffer() (*Buffer, MediaType, error) {
	fields, err := b.extractor.Extract(b.request)
	if err != nil {
		return nil, MediaType{}, err
	}

	contentType := b.request.Header.Get("Content-Type")
	if contentType == "" {
		return nil, MediaType{}, errors.New("missing content type")
	}
	declared, err := ParseMediaType(contentType)
	if err != nil {
		return nil, MediaType{}, err
	}

	buffer := NewBuffer(b.maxBytes, b.maxMem)
	finalized, err := b.encoder.Write(fields, declared, buffer)
	if err != nil {
		buffer.Close()
		return nil, MediaType{}, err
	}

	return buffer, finalized, nil
}

type lazyFormReader struct {
	body   *FormBody
	reader io.ReadCloser
}

func (l *lazyFormReader) Read(p []byte) (int, error) {
	if l.reader == nil {
		reader, err := l.body.Reader()
		if err != nil {
			return 0, err
		}
		l.reader = reader
	}
	return l.reader.Read(p)
}

func (l *lazyFormReader) Close() error {
	if l.reader == nil {
		return nil
	}
	return l.reader.Close()
}
