package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
)

// FormEncoder serializes a field set into canonical bytes for its media type
// family, returning the media type actually used. For multipart bodies that
// finalized type carries the freshly generated boundary.
type FormEncoder interface {
	Write(fields *FieldSet, mediaType MediaType, sink io.Writer) (MediaType, error)
}

func NewFormEncoder() FormEncoder {
	return &formEncoder{}
}

type formEncoder struct{}

func (e *formEncoder) Write(fields *FieldSet, mediaType MediaType, sink io.Writer) (MediaType, error) {
	switch {
	case MediaTypeFormURLEncoded.Includes(mediaType):
		return e.writeURLEncoded(fields, mediaType, sink)
	case MediaTypeMultipartForm.Includes(mediaType):
		return e.writeMultipart(fields, mediaType, sink)
	default:
		return MediaType{}, fmt.Errorf("unsupported media type %q", mediaType.Type)
	}
}

// Private

func (e *formEncoder) writeURLEncoded(fields *FieldSet, mediaType MediaType, sink io.Writer) (MediaType, error) {
	var b strings.Builder

	for _, field := range fields.Fields() {
		for _, value := range field.Values {
			if value.IsFile() {
				return MediaType{}, errors.New("file parts cannot be urlencoded")
			}

			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(field.Name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(value.Text))
		}
	}

	_, err := io.WriteString(sink, b.String())
	if err != nil {
		return MediaType{}, err
	}

	return mediaType, nil
}

func (e *formEncoder) writeMultipart(fields *FieldSet, mediaType MediaType, sink io.Writer) (MediaType, error) {
	writer := multipart.NewWriter(sink)

	for _, field := range fields.Fields() {
		for _, value := range field.Values {
			var err error
			if value.IsFile() {
				err = writeFilePart(writer, field.Name, value.File)
			} else {
				err = writer.WriteField(field.Name, value.Text)
			}
			if err != nil {
				return MediaType{}, err
			}
		}
	}

	err := writer.Close()
	if err != nil {
		return MediaType{}, err
	}

	return mediaType.WithParam("boundary", writer.Boundary()), nil
}

func writeFilePart(writer *multipart.Writer, name string, file *FilePart) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		escapeQuotes(name), escapeQuotes(file.Filename)))
	if file.ContentType != "" {
		header.Set("Content-Type", file.ContentType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}

	_, err = part.Write(file.Data)
	return err
}

func escapeQuotes(s string) string {
	return strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(s)
}
