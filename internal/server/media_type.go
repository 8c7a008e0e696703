package server

import (
	"maps"
	"mime"
	"slices"
	"strings"
)

var (
	MediaTypeFormURLEncoded = MediaType{Type: "application/x-www-form-urlencoded"}
	MediaTypeMultipartForm  = MediaType{Type: "multipart/form-data"}
)

// MediaType is a parsed content type with its parameters in a stable order,
// so the boundary parameter we emit in a header always matches the body.
type MediaType struct {
	Type   string
	Params []MediaParam
}

type MediaParam struct {
	Name  string
	Value string
}

func ParseMediaType(contentType string) (MediaType, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return MediaType{}, err
	}

	parsed := MediaType{Type: mediaType}
	for _, name := range slices.Sorted(maps.Keys(params)) {
		parsed.Params = append(parsed.Params, MediaParam{Name: name, Value: params[name]})
	}

	return parsed, nil
}

// Includes reports whether other is the same type and subtype as m,
// ignoring parameters.
func (m MediaType) Includes(other MediaType) bool {
	return strings.EqualFold(m.Type, other.Type)
}

func (m MediaType) Param(name string) (string, bool) {
	for _, param := range m.Params {
		if param.Name == name {
			return param.Value, true
		}
	}
	return "", false
}

// WithParam returns a copy of m with the named parameter set, replacing any
// existing value while keeping its position.
func (m MediaType) WithParam(name, value string) MediaType {
	updated := MediaType{Type: m.Type, Params: slices.Clone(m.Params)}

	for i, param := range updated.Params {
		if param.Name == name {
			updated.Params[i].Value = value
			return updated
		}
	}

	updated.Params = append(updated.Params, MediaParam{Name: name, Value: value})
	return updated
}

func (m MediaType) String() string {
	var b strings.Builder
	b.WriteString(m.Type)

	for _, param := range m.Params {
		b.WriteString("; ")
		b.WriteString(param.Name)
		b.WriteString("=")
		b.WriteString(quoteMediaParam(param.Value))
	}

	return b.String()
}

// Private

func quoteMediaParam(value string) string {
	if value != "" && !strings.ContainsAny(value, "()<>@,;:\\\"/[]?= \t") {
		return value
	}

	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		if value[i] == '"' || value[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(value[i])
	}
	b.WriteByte('"')
	return b.String()
}
