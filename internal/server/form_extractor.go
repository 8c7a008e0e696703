package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

var ErrNoFormData = errors.New("no recoverable form data")

// FormExtractor recovers the logical field set from a request, even when an
// earlier pipeline stage has already consumed the body stream.
type FormExtractor interface {
	Extract(r *http.Request) (*FieldSet, error)
}

// NewFormExtractor returns the default extractor. It prefers re-parsing the
// raw body (rewinding it first when the pipeline's buffer made that
// possible), which preserves field order exactly. When the stream is gone it
// falls back to the caches an upstream parse populated.
func NewFormExtractor() FormExtractor {
	return &formExtractor{}
}

type formExtractor struct{}

func (e *formExtractor) Extract(r *http.Request) (*FieldSet, error) {
	mediaType, err := ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("unparsable content type: %w", err)
	}

	raw, err := e.readRawBody(r)
	if err != nil {
		fields, cacheErr := e.extractFromCaches(r)
		if cacheErr != nil {
			return nil, fmt.Errorf("body unreadable (%w): %w", err, ErrNoFormData)
		}
		return fields, nil
	}

	if len(raw) == 0 {
		// The stream may have been consumed by a parser we can't rewind past;
		// prefer its caches when they hold anything.
		fields, cacheErr := e.extractFromCaches(r)
		if cacheErr == nil {
			return fields, nil
		}
	}

	switch {
	case MediaTypeFormURLEncoded.Includes(mediaType):
		return parseURLEncodedBody(raw)
	case MediaTypeMultipartForm.Includes(mediaType):
		boundary, ok := mediaType.Param("boundary")
		if !ok {
			return nil, errors.New("multipart content type without boundary")
		}
		return parseMultipartBody(raw, boundary)
	default:
		return nil, fmt.Errorf("unsupported media type %q", mediaType.Type)
	}
}

// Private

func (e *formExtractor) readRawBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	if rewinder, ok := r.Body.(Rewindable); ok {
		rewinder.Rewind()
	}

	return io.ReadAll(r.Body)
}

func (e *formExtractor) extractFromCaches(r *http.Request) (*FieldSet, error) {
	if r.MultipartForm != nil {
		return fieldsFromMultipartCache(r.MultipartForm)
	}

	if len(r.PostForm) > 0 {
		return fieldsFromValues(r.PostForm), nil
	}

	return nil, ErrNoFormData
}

func parseURLEncodedBody(raw []byte) (*FieldSet, error) {
	fields := NewFieldSet()

	for pair := range strings.SplitSeq(string(raw), "&") {
		if pair == "" {
			continue
		}

		name, value, _ := strings.Cut(pair, "=")
		name, err := url.QueryUnescape(name)
		if err != nil {
			return nil, fmt.Errorf("malformed field name: %w", err)
		}
		value, err = url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("malformed field value: %w", err)
		}

		fields.Add(name, value)
	}

	return fields, nil
}

func parseMultipartBody(raw []byte, boundary string) (*FieldSet, error) {
	fields := NewFieldSet()
	reader := multipart.NewReader(bytes.NewReader(raw), boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed multipart body: %w", err)
		}

		data, err := io.ReadAll(part)
		if err != nil {
			return nil, fmt.Errorf("unreadable multipart part: %w", err)
		}

		name := part.FormName()
		if filename := part.FileName(); filename != "" {
			fields.AddFile(name, &FilePart{
				Filename:    filename,
				ContentType: part.Header.Get("Content-Type"),
				Data:        data,
			})
		} else {
			fields.Add(name, string(data))
		}
	}

	return fields, nil
}

func fieldsFromValues(values url.Values) *FieldSet {
	fields := NewFieldSet()

	// url.Values is unordered, so the recovered order is name order rather
	// than document order. Value order within a name is preserved.
	for _, name := range slices.Sorted(maps.Keys(values)) {
		for _, value := range values[name] {
			fields.Add(name, value)
		}
	}

	return fields
}

func fieldsFromMultipartCache(form *multipart.Form) (*FieldSet, error) {
	fields := NewFieldSet()

	for _, name := range slices.Sorted(maps.Keys(form.Value)) {
		for _, value := range form.Value[name] {
			fields.Add(name, value)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(form.File)) {
		for _, header := range form.File[name] {
			file, err := header.Open()
			if err != nil {
				return nil, fmt.Errorf("unreadable file part %q: %w", name, err)
			}

			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return nil, fmt.Errorf("unreadable file part %q: %w", name, err)
			}

			fields.AddFile(name, &FilePart{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}

	if fields.Len() == 0 {
		return nil, ErrNoFormData
	}

	return fields, nil
}
